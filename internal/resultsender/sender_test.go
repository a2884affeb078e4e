package resultsender

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldpj/backend/internal/plc"
)

type recordingTransport struct {
	writes map[int][]byte
	failWB bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{writes: make(map[int][]byte)}
}

func (r *recordingTransport) Connect() error  { return nil }
func (r *recordingTransport) Disconnect()     {}
func (r *recordingTransport) Connected() bool { return true }
func (r *recordingTransport) ReadBlock(block, offset, size int) ([]byte, error) {
	return make([]byte, size), nil
}
func (r *recordingTransport) WriteBlock(block, offset int, data []byte) error {
	if r.failWB {
		return errors.New("write failed")
	}
	r.writes[offset] = append([]byte(nil), data...)
	return nil
}

func int16At(t *testing.T, writes map[int][]byte, offset int) int16 {
	t.Helper()
	data, ok := writes[offset]
	require.True(t, ok, "expected a write at offset %d", offset)
	return int16(binary.BigEndian.Uint16(data))
}

func TestWriteResultLeakEncodesBase(t *testing.T) {
	tr := newRecordingTransport()
	s := New(DefaultConfig(), tr)

	require.NoError(t, s.WriteResult(0, 0.95))
	assert.Equal(t, int16(0), int16At(t, tr.writes, 200))
}

func TestWriteResultOKScalesProbability(t *testing.T) {
	tr := newRecordingTransport()
	s := New(DefaultConfig(), tr)

	require.NoError(t, s.WriteResult(1, 0.95))
	assert.Equal(t, int16(9), int16At(t, tr.writes, 200), "base(0) + int(0.95*10) = 9")
}

func TestWriteFaultCodeWritesAtConfiguredOffset(t *testing.T) {
	tr := newRecordingTransport()
	s := New(DefaultConfig(), tr)

	require.NoError(t, s.WriteFaultCode(7))
	assert.Equal(t, int16(7), int16At(t, tr.writes, 202))
}

func TestWriteResultFailurePropagates(t *testing.T) {
	tr := newRecordingTransport()
	tr.failWB = true
	s := New(DefaultConfig(), tr)

	err := s.WriteResult(1, 0.5)
	assert.Error(t, err, "expected write failure to propagate")
}

var _ plc.Transport = (*recordingTransport)(nil)
