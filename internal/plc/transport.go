// Package plc provides the byte-block read/write abstraction over the PLC
// link, a frame codec for the cabin-array layout, and a mock transport for
// offline development. The real transport implementation depends only on
// this block read/write contract; the underlying wire protocol (S7/snap7)
// is an external transport library concern and is not implemented here.
package plc

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ldpj/backend/internal/errs"
)

// CabinSizeBytes is the fixed per-cabin record size: int16 analog, float32
// pressure, int16 position, float32 angle, big-endian.
const CabinSizeBytes = 12

// Transport is the contract every PLC connection variant satisfies. Connect
// and Disconnect are idempotent. Any ReadBlock/WriteBlock failure must also
// transition the transport to "not connected" so the caller's reconnect
// path is triggered on the next attempt.
type Transport interface {
	Connect() error
	Disconnect()
	Connected() bool
	ReadBlock(block, offset, size int) ([]byte, error)
	WriteBlock(block, offset int, data []byte) error
}

// Config carries the connection and cabin-array parameters needed to build
// a Transport and to size its reads.
type Config struct {
	IP                 string
	Rack               int
	Slot               int
	ReconnectIntervalS float64
	DBNumber           int
	StartOffset        int
	CabinCount         int
	CabinSizeBytes     int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		IP:                 "192.168.0.10",
		Rack:               0,
		Slot:               1,
		ReconnectIntervalS: 5,
		DBNumber:           9,
		StartOffset:        0,
		CabinCount:         25,
		CabinSizeBytes:     CabinSizeBytes,
	}
}

// TotalReadSize is cabin_count * cabin_size_bytes, the size of one full
// cabin-array read.
func (c Config) TotalReadSize() int {
	return c.CabinCount * c.CabinSizeBytes
}

// ---------------------------------------------------------------------
// S7 transport: byte-block abstraction only. The real wire protocol (S7
// over TCP) lives in an external transport library the core only ever
// reaches through this struct's three operations; nothing here implements
// S7 framing itself.
// ---------------------------------------------------------------------

// Dialer is the minimal surface the real S7 client exposes. Production
// wiring supplies a concrete implementation backed by the external S7
// transport library; it is not implemented in this module.
type Dialer interface {
	Dial(ip string, rack, slot int) error
	Close() error
	ReadBlock(block, offset, size int) ([]byte, error)
	WriteBlock(block, offset int, data []byte) error
}

// S7Transport manages a single connection to a Siemens S7-class PLC
// through a Dialer.
type S7Transport struct {
	cfg    Config
	dial   Dialer
	mu     sync.Mutex
	connected bool
}

// NewS7Transport builds a transport bound to the given dialer.
func NewS7Transport(cfg Config, dial Dialer) *S7Transport {
	return &S7Transport{cfg: cfg, dial: dial}
}

func (t *S7Transport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}
	if err := t.dial.Dial(t.cfg.IP, t.cfg.Rack, t.cfg.Slot); err != nil {
		t.connected = false
		return fmt.Errorf("cannot connect to PLC %s: %w", t.cfg.IP, errs.ErrConnectionLost)
	}
	t.connected = true
	return nil
}

func (t *S7Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dial != nil {
		_ = t.dial.Close() // disconnect swallows errors, always idempotent
	}
	t.connected = false
}

func (t *S7Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *S7Transport) ReadBlock(block, offset, size int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil, errs.ErrConnectionLost
	}
	data, err := t.dial.ReadBlock(block, offset, size)
	if err != nil {
		t.connected = false
		return nil, fmt.Errorf("db_read failed: %w", errs.ErrReadFailure)
	}
	return data, nil
}

func (t *S7Transport) WriteBlock(block, offset int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return errs.ErrConnectionLost
	}
	if err := t.dial.WriteBlock(block, offset, data); err != nil {
		t.connected = false
		return fmt.Errorf("db_write failed: %w", errs.ErrWriteFailure)
	}
	return nil
}

// ---------------------------------------------------------------------
// Mock transport: synthetic frames for offline development. Not a test
// artifact — a first-class selectable mode (see --mode flag).
// ---------------------------------------------------------------------

// MockTransport generates synthetic cabin data with a tick counter and
// small random jitter. It is always connected and accepts writes as
// no-ops.
type MockTransport struct {
	cfg  Config
	mu   sync.Mutex
	tick int
	rnd  *rand.Rand
}

// NewMockTransport builds a synthetic transport sized to cfg.CabinCount.
func NewMockTransport(cfg Config) *MockTransport {
	return &MockTransport{
		cfg: cfg,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockTransport) Connect() error  { return nil }
func (m *MockTransport) Disconnect()     {}
func (m *MockTransport) Connected() bool { return true }

func (m *MockTransport) ReadBlock(block, offset, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++

	buf := make([]byte, 0, size)
	for i := 0; i < m.cfg.CabinCount; i++ {
		analog := int16(i*100 + m.rnd.Intn(11))
		pressure := float32(950.0 + (m.rnd.Float64()*10 - 5))
		position := int16(m.tick % 360)
		angle := float32(position) + float32(m.rnd.Float64()-0.5)

		var rec [CabinSizeBytes]byte
		binary.BigEndian.PutUint16(rec[0:2], uint16(analog))
		binary.BigEndian.PutUint32(rec[2:6], math.Float32bits(pressure))
		binary.BigEndian.PutUint16(rec[6:8], uint16(position))
		binary.BigEndian.PutUint32(rec[8:12], math.Float32bits(angle))
		buf = append(buf, rec[:]...)
	}
	if len(buf) > size {
		buf = buf[:size]
	}
	return buf, nil
}

// WriteBlock accepts writes as no-ops, as the mock has no HMI to reflect
// them to.
func (m *MockTransport) WriteBlock(block, offset int, data []byte) error {
	return nil
}
