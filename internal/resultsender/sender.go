// Package resultsender encodes the classification outcome and the active
// fault code back to the PLC as two atomic short int16 writes.
package resultsender

import (
	"fmt"

	"github.com/ldpj/backend/internal/errs"
	"github.com/ldpj/backend/internal/plc"
)

// Config carries the write-back offsets and scaling.
type Config struct {
	WriteBackDB     int
	WriteBackOffset int
	Scale           int
	Base            int
	FaultDB         int
	FaultOffset     int
}

// DefaultConfig returns the spec's documented write-back defaults.
func DefaultConfig() Config {
	return Config{
		WriteBackDB:     9,
		WriteBackOffset: 200,
		Scale:           10,
		Base:            0,
		FaultDB:         9,
		FaultOffset:     202,
	}
}

// Sender writes results and fault codes through a shared PLC transport.
// It borrows the polling engine's transport handle; the transport itself
// serializes reads against this writer's writes.
type Sender struct {
	cfg       Config
	transport plc.Transport
}

// New builds a Sender bound to transport.
func New(cfg Config, transport plc.Transport) *Sender {
	return &Sender{cfg: cfg, transport: transport}
}

// WriteResult computes value = base + int(probability*scale) if label=1,
// else base (leak), and writes it big-endian int16 at
// (write_back_db, write_back_offset).
func (s *Sender) WriteResult(label int, probability float64) error {
	value := s.cfg.Base
	if label == 1 {
		value = s.cfg.Base + int(probability*float64(s.cfg.Scale))
	}

	if err := s.transport.WriteBlock(s.cfg.WriteBackDB, s.cfg.WriteBackOffset,
		plc.EncodeInt16BE(int16(value))); err != nil {
		return fmt.Errorf("writing result word: %w", errs.ErrWriteFailure)
	}
	return nil
}

// WriteFaultCode writes plcValue big-endian int16 at (fault_db, fault_offset).
func (s *Sender) WriteFaultCode(plcValue int) error {
	if err := s.transport.WriteBlock(s.cfg.FaultDB, s.cfg.FaultOffset,
		plc.EncodeInt16BE(int16(plcValue))); err != nil {
		return fmt.Errorf("writing fault code word: %w", errs.ErrWriteFailure)
	}
	return nil
}
