// Package errs holds the shared error taxonomy for ldpj-backend.
//
// Each sentinel maps to one failure domain named in the original fault
// taxonomy (connection / read / write / model load / model predict /
// storage / health-check / configuration). Callers wrap a sentinel with
// fmt.Errorf("...: %w", err) so errors.Is still matches the domain while
// the message carries the specific cause.
package errs

import "errors"

var (
	// ErrConnectionLost indicates the PLC transport is not connected.
	ErrConnectionLost = errors.New("plc: connection lost")
	// ErrReadFailure indicates a single db_read call failed.
	ErrReadFailure = errors.New("plc: read failure")
	// ErrWriteFailure indicates a single db_write call failed.
	ErrWriteFailure = errors.New("plc: write failure")

	// ErrModelLoad indicates the classifier or scaler artifact could not
	// be loaded.
	ErrModelLoad = errors.New("inference: model load failed")
	// ErrModelPredict indicates inference failed on a loaded model.
	ErrModelPredict = errors.New("inference: predict failed")

	// ErrStorage indicates a record-store insert or query failed.
	ErrStorage = errors.New("store: operation failed")

	// ErrHealthCheck indicates an individual health probe failed.
	ErrHealthCheck = errors.New("health: check failed")

	// ErrConfig indicates a configuration document was malformed; callers
	// fall back to defaults rather than propagating this upward.
	ErrConfig = errors.New("config: malformed document")
)
