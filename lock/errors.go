package lock

import (
	"errors"
	"fmt"

	"github.com/roelbroersma/kerong-BT-lock/protocol"
)

var (
	// ErrNotConnected is returned when operations are invoked before the
	// transport connection is established.
	ErrNotConnected = errors.New("lock: transport not connected")
	// ErrNotAuthenticated is returned for user-management operations issued
	// before the admin handshake succeeded. Nothing is written to the device.
	ErrNotAuthenticated = errors.New("lock: admin authentication required")
	// ErrPairingPasswordMissing is returned by PairAndAuthenticate when the
	// configuration carries no pairing password. Fails fast, no I/O.
	ErrPairingPasswordMissing = errors.New("lock: pairing password not configured")
	// ErrBatteryRequestPending enforces the single-flight battery policy.
	ErrBatteryRequestPending = errors.New("lock: battery request already in flight")
	// ErrHandshakePending is returned by PairAndAuthenticate while an earlier
	// handshake is still waiting for its result.
	ErrHandshakePending = errors.New("lock: authentication handshake already in flight")
	// ErrTimeout indicates the lock did not answer within the deadline.
	ErrTimeout = errors.New("lock: timeout waiting for lock response")
)

// DeviceStatusError reports a non-success status byte returned by the lock.
// The session survives it; the failed operation may simply be retried.
type DeviceStatusError struct {
	Op     string
	Status protocol.Status
}

func (e *DeviceStatusError) Error() string {
	return fmt.Sprintf("lock: %s failed with device status %s", e.Op, e.Status)
}

// WriteError reports an outbound write that still failed after every retry
// attempt. Session state is left unchanged so the caller can retry the
// whole operation.
type WriteError struct {
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("lock: write failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
