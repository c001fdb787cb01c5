// Package platform abstracts the OS Bluetooth stack and its permission model
// behind small interfaces so the connection state machine can be driven by a
// fake radio in tests and by go-ble in production.
package platform

import (
	"context"
	"strings"
)

// RadioState is the platform adapter's power/authorization state.
type RadioState int

const (
	RadioUnknown RadioState = iota
	RadioOn
	RadioOff
	RadioTurningOn
	RadioTurningOff
	RadioUnauthorized
)

func (s RadioState) String() string {
	switch s {
	case RadioOn:
		return "on"
	case RadioOff:
		return "off"
	case RadioTurningOn:
		return "turningOn"
	case RadioTurningOff:
		return "turningOff"
	case RadioUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Advertisement is a single received BLE advertisement.
type Advertisement interface {
	// ID is the peripheral identity (address on Linux, CoreBluetooth UUID on
	// macOS). Stable within one scan session, used for deduplication.
	ID() string
	LocalName() string
	RSSI() int
	Connectable() bool
}

// Characteristic is an opaque handle to a live GATT characteristic.
// Handles are only valid for the Link that produced them.
type Characteristic interface {
	UUID() string
	Notifiable() bool
	Writable() bool
}

// ProfileService is one discovered GATT service and its characteristics.
type ProfileService struct {
	UUID            string
	Characteristics []Characteristic
}

// Profile is the discovered service tree of a connected peripheral.
type Profile struct {
	Services []ProfileService
}

// Link is an established connection to a peripheral.
type Link interface {
	// Profile enumerates the peripheral's service tree. Bounded by ctx.
	Profile(ctx context.Context) (*Profile, error)

	// Subscribe enables notifications on the characteristic. The handler is
	// invoked on a platform goroutine; it must not block.
	Subscribe(ch Characteristic, handler func(data []byte)) error

	// Unsubscribe disables notifications on the characteristic.
	Unsubscribe(ch Characteristic) error

	// Write sends data to the characteristic.
	Write(ch Characteristic, data []byte) error

	// Alive reports whether the platform still enumerates this link as
	// active. Used by the liveness poll to catch missed disconnect events.
	Alive() bool

	// Disconnected is closed when the platform reports the link lost.
	Disconnected() <-chan struct{}

	// Close releases the link. Idempotent.
	Close() error
}

// Radio is the exclusive OS radio resource: one scan or one dial at a time.
type Radio interface {
	// States streams adapter state changes, starting with the current state.
	States() <-chan RadioState

	// Scan runs discovery until ctx is done, invoking handler per
	// advertisement. The handler runs on a platform goroutine.
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error

	// Dial connects to the peripheral with the given identity.
	Dial(ctx context.Context, id string) (Link, error)
}

// NormalizeUUID converts a UUID string to the canonical lookup form
// (lowercase, no dashes) used across the platform layer.
func NormalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}
