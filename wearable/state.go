// Package wearable implements the BLE wearable communication core: scanning
// for the target device, supervising the connection and its characteristic
// bindings, decoding telemetry, and publishing a reconnect-resilient
// vital-signs stream.
package wearable

import "time"

// ConnectionState is the single authoritative state of the wearable link.
// Exactly one value is current at any time; every transition is broadcast.
type ConnectionState int

const (
	// StateDisconnected means no link and the radio is off or idle after a
	// disconnect.
	StateDisconnected ConnectionState = iota

	// StateReady means the radio is on and no target is selected.
	StateReady

	// StateScanning means time-bounded discovery is in progress.
	StateScanning

	// StateConnecting means link establishment or service discovery is in
	// progress.
	StateConnecting

	// StateConnected is the steady state with live characteristic bindings.
	StateConnected

	// StateError is terminal until an explicit retry (re-scan).
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateReady:
		return "ready"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "invalid"
	}
}

// Severity tags a StatusMessage for display purposes.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// StatusMessage is a human-readable diagnostic. Purely informational,
// never used for control decisions.
type StatusMessage struct {
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// DiscoveredDevice is one scan candidate. Created on advertisement receipt,
// superseded at the start of the next scan.
type DiscoveredDevice struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	RSSI     int       `json:"rssi"`
	LastSeen time.Time `json:"last_seen"`
}
