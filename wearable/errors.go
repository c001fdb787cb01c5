package wearable

import (
	"errors"
	"fmt"
)

// FailureKind classifies a link failure so callers can pick the right
// remedy: open system settings, toggle the radio, or simply retry.
type FailureKind string

const (
	FailurePermissionDenied    FailureKind = "permission_denied"
	FailureRadioUnavailable    FailureKind = "radio_unavailable"
	FailureScanTimeout         FailureKind = "scan_timeout"
	FailureConnectFailed       FailureKind = "connect_failed"
	FailureDiscoveryIncomplete FailureKind = "discovery_incomplete"
	FailureDecodeError         FailureKind = "decode_error"
	FailureCommandRejected     FailureKind = "command_rejected"
)

// LinkError is the structured error for all wearable link failures.
type LinkError struct {
	Kind FailureKind
	Msg  string
}

func (e *LinkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is allows errors.Is to compare LinkError values by Kind.
func (e *LinkError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*LinkError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, one per failure kind.
var (
	ErrPermissionDenied = &LinkError{Kind: FailurePermissionDenied}
	ErrRadioUnavailable = &LinkError{Kind: FailureRadioUnavailable}
	ErrScanTimeout      = &LinkError{Kind: FailureScanTimeout}
	ErrConnectFailed    = &LinkError{Kind: FailureConnectFailed}
	ErrCommandRejected  = &LinkError{Kind: FailureCommandRejected}
)

// ErrMonitorStopped indicates an operation was requested after the monitor's
// run loop exited.
var ErrMonitorStopped = errors.New("monitor stopped")

// IsFailure reports whether err is a LinkError with the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var lerr *LinkError
	if errors.As(err, &lerr) {
		return lerr.Kind == kind
	}
	return false
}
