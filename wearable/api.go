package wearable

import (
	"fmt"
	"time"

	"github.com/materna-health/wearlink/vitals"
)

// StartScan begins a time-bounded discovery session. A non-positive timeout
// uses the configured scan timeout. Calling StartScan while a scan is already
// in progress is a no-op. Fails fast when the radio is off or permissions are
// missing.
func (m *Monitor) StartScan(timeout time.Duration) error {
	req := scanRequest{timeout: timeout, reply: make(chan error, 1)}
	if !m.post(req) {
		return ErrMonitorStopped
	}
	return m.await(req.reply)
}

// StopScan cancels an in-progress discovery session. No-op when not
// scanning.
func (m *Monitor) StopScan() error {
	req := stopScanRequest{reply: make(chan error, 1)}
	if !m.post(req) {
		return ErrMonitorStopped
	}
	return m.await(req.reply)
}

// Disconnect tears down the current link or cancels an in-progress connect
// attempt. Idempotent: disconnecting while already disconnected succeeds.
// Reconnecting afterwards requires a fresh StartScan.
func (m *Monitor) Disconnect() error {
	req := disconnectRequest{reply: make(chan error, 1)}
	if !m.post(req) {
		return ErrMonitorStopped
	}
	return m.await(req.reply)
}

// SendCommand writes an opaque payload to the wearable's command
// characteristic. Fails fast with FailureCommandRejected when not connected
// or when the device exposes no writable command characteristic.
func (m *Monitor) SendCommand(data []byte) error {
	req := commandRequest{reply: make(chan commandGrant, 1)}
	if !m.post(req) {
		return ErrMonitorStopped
	}

	var grant commandGrant
	select {
	case grant = <-req.reply:
	case <-m.done:
		return ErrMonitorStopped
	}
	if grant.err != nil {
		return grant.err
	}

	// The write happens off the loop so a slow device never stalls event
	// processing. A link torn down between grant and write surfaces as a
	// write error.
	if err := grant.link.Write(grant.char, data); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// RecordBloodPressure merges a manually entered blood-pressure pair into the
// aggregate and publishes the updated snapshot.
func (m *Monitor) RecordBloodPressure(systolic, diastolic int) {
	m.vitalsB.Publish(m.agg.SetBloodPressure(systolic, diastolic, time.Now()))
}

// RecordGlucose merges a manually entered glucose value into the aggregate
// and publishes the updated snapshot.
func (m *Monitor) RecordGlucose(mgdl float64) {
	m.vitalsB.Publish(m.agg.SetGlucose(mgdl, time.Now()))
}

// ConnectionStates subscribes to state transitions. The returned cancel
// function releases the subscription; it is safe to call more than once.
func (m *Monitor) ConnectionStates() (<-chan ConnectionState, func()) {
	return m.stateB.Subscribe()
}

// Vitals subscribes to aggregate snapshots. Every accepted reading publishes
// the whole aggregate, carrying the last known value of every other channel.
func (m *Monitor) Vitals() (<-chan vitals.VitalSigns, func()) {
	return m.vitalsB.Subscribe()
}

// DiscoveredDevices subscribes to scan candidate lists, ordered by first
// sighting.
func (m *Monitor) DiscoveredDevices() (<-chan []DiscoveredDevice, func()) {
	return m.devicesB.Subscribe()
}

// StatusMessages subscribes to diagnostic messages.
func (m *Monitor) StatusMessages() (<-chan StatusMessage, func()) {
	return m.statusB.Subscribe()
}

// CurrentState returns the current connection state without subscribing.
func (m *Monitor) CurrentState() ConnectionState {
	return ConnectionState(m.currentState.Load())
}

// LatestVitals returns a copy of the current aggregate snapshot.
func (m *Monitor) LatestVitals() vitals.VitalSigns {
	return m.agg.Latest()
}

// RecentStatus drains and returns the retained status history, oldest first.
func (m *Monitor) RecentStatus() []StatusMessage {
	var out []StatusMessage
	for !m.history.IsEmpty() {
		msg, err := m.history.Dequeue()
		if err != nil {
			break
		}
		out = append(out, msg)
	}
	return out
}

func (m *Monitor) await(reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrMonitorStopped
	}
}
