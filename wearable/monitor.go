package wearable

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/materna-health/wearlink/internal/platform"
	"github.com/materna-health/wearlink/internal/ringchan"
	"github.com/materna-health/wearlink/vitals"
)

// eventBuffer bounds the monitor's inbox so platform callbacks rarely block.
const eventBuffer = 64

// Monitor supervises the wearable link: it owns the connection state machine,
// the scan session, and all live characteristic bindings. All mutation is
// serialized onto the single Run loop; asynchronous radio events, scan
// results, notifications and API requests arrive as events on one channel.
//
// Monitor is constructed explicitly and injected where needed; there is no
// package-level instance.
type Monitor struct {
	cfg    *Config
	logger *logrus.Logger
	radio  platform.Radio
	gate   platform.PermissionGate
	agg    *Aggregator

	events  chan any
	done    chan struct{}
	running atomic.Bool
	runCtx  context.Context

	// routes maps a bound characteristic UUID to its telemetry channel. It
	// is the only state touched by platform notification goroutines; a
	// lock-free map lets teardown clear it while late notifications are
	// still firing.
	routes *hashmap.Map[string, vitals.Channel]

	stateB   *ringchan.Broadcaster[ConnectionState]
	vitalsB  *ringchan.Broadcaster[vitals.VitalSigns]
	devicesB *ringchan.Broadcaster[[]DiscoveredDevice]
	statusB  *ringchan.Broadcaster[StatusMessage]
	history  mpmc.RichOverlappedRingBuffer[StatusMessage]

	currentState atomic.Int32

	// Loop-owned state. Only the Run goroutine reads or writes these.
	state         ConnectionState
	lastRadio     platform.RadioState
	gen           uint64
	devices       *orderedmap.OrderedMap[string, DiscoveredDevice]
	scanCancel    context.CancelFunc
	connectCancel context.CancelFunc
	link          platform.Link
	bindings      map[vitals.Channel]platform.Characteristic
	commandChar   platform.Characteristic
}

// Loop events.
type (
	advertisementEvent struct {
		gen  uint64
		id   string
		name string
		rssi int
	}

	scanDoneEvent struct {
		gen uint64
		err error
	}

	connectResultEvent struct {
		gen     uint64
		link    platform.Link
		profile *platform.Profile
		err     error
	}

	linkDroppedEvent struct {
		gen uint64
	}

	notificationEvent struct {
		gen     uint64
		channel vitals.Channel
		payload []byte
		at      time.Time
	}

	scanRequest struct {
		timeout time.Duration
		reply   chan error
	}

	stopScanRequest struct {
		reply chan error
	}

	disconnectRequest struct {
		reply chan error
	}

	commandGrant struct {
		link platform.Link
		char platform.Characteristic
		err  error
	}

	commandRequest struct {
		reply chan commandGrant
	}
)

// NewMonitor creates a Monitor. A nil cfg uses DefaultConfig; a nil gate
// uses the host permission gate. The monitor does nothing until Run is
// called.
func NewMonitor(cfg *Config, radio platform.Radio, gate platform.PermissionGate, logger *logrus.Logger) (*Monitor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}
	if radio == nil {
		return nil, fmt.Errorf("radio is required")
	}
	if gate == nil {
		gate = platform.NewHostGate(nil)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Monitor{
		cfg:      cfg,
		logger:   logger,
		radio:    radio,
		gate:     gate,
		agg:      NewAggregator(),
		events:   make(chan any, eventBuffer),
		done:     make(chan struct{}),
		routes:   hashmap.New[string, vitals.Channel](),
		stateB:   ringchan.NewBroadcaster[ConnectionState](cfg.StreamBuffer),
		vitalsB:  ringchan.NewBroadcaster[vitals.VitalSigns](cfg.StreamBuffer),
		devicesB: ringchan.NewBroadcaster[[]DiscoveredDevice](cfg.StreamBuffer),
		statusB:  ringchan.NewBroadcaster[StatusMessage](cfg.StreamBuffer),
		history:  mpmc.NewOverlappedRingBuffer[StatusMessage](uint32(cfg.StatusHistory)),
		devices:  orderedmap.New[string, DiscoveredDevice](),
		state:    StateDisconnected,
	}, nil
}

// Run executes the monitor loop until ctx is cancelled. It must be running
// for any other Monitor method to make progress.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("monitor is already running")
	}
	m.runCtx = ctx

	ticker := time.NewTicker(m.cfg.LivenessInterval)
	defer ticker.Stop()
	defer m.shutdown()

	states := m.radio.States()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case s, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			m.handleRadioState(s)

		case <-ticker.C:
			m.handleLivenessTick()

		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

func (m *Monitor) shutdown() {
	close(m.done)
	if m.scanCancel != nil {
		m.scanCancel()
	}
	if m.connectCancel != nil {
		m.connectCancel()
	}
	m.teardownLink()
	m.stateB.Close()
	m.vitalsB.Close()
	m.devicesB.Close()
	m.statusB.Close()
	m.logger.Info("Wearable monitor stopped")
}

func (m *Monitor) handleEvent(ev any) {
	switch ev := ev.(type) {
	case advertisementEvent:
		m.handleAdvertisement(ev)
	case scanDoneEvent:
		m.handleScanDone(ev)
	case connectResultEvent:
		m.handleConnectResult(ev)
	case linkDroppedEvent:
		m.handleLinkDropped(ev)
	case notificationEvent:
		m.handleNotification(ev)
	case scanRequest:
		m.handleStartScan(ev)
	case stopScanRequest:
		m.handleStopScan(ev)
	case disconnectRequest:
		m.handleDisconnect(ev)
	case commandRequest:
		m.handleCommand(ev)
	}
}

// ----------------------------
// Adapter state mapping
// ----------------------------

// handleRadioState applies the adapter state mapping even when no scan or
// connection is in progress; the radio can be toggled externally at any
// time. Off and unauthorized are authoritative and abort in-flight work.
func (m *Monitor) handleRadioState(s platform.RadioState) {
	m.logger.WithField("radio_state", s.String()).Debug("Adapter state changed")
	m.lastRadio = s

	switch s {
	case platform.RadioOn:
		if m.idle() {
			m.setState(StateReady)
			m.status(SeverityInfo, "Bluetooth radio on")
		}
	case platform.RadioTurningOn:
		if m.idle() {
			m.setState(StateConnecting)
		}
	case platform.RadioOff, platform.RadioTurningOff:
		m.abortAll("Bluetooth radio off", StateDisconnected)
	case platform.RadioUnauthorized, platform.RadioUnknown:
		m.abortAll(fmt.Sprintf("Bluetooth radio unavailable (%s)", s), StateError)
	}
}

// idle reports whether no scan, connect attempt or link is active, i.e. the
// current state is purely radio-derived.
func (m *Monitor) idle() bool {
	return m.scanCancel == nil && m.connectCancel == nil && m.link == nil &&
		m.state != StateConnected
}

// abortAll cancels any in-flight scan or connect attempt, tears down the
// link, and forces the given state.
func (m *Monitor) abortAll(reason string, final ConnectionState) {
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	if m.connectCancel != nil {
		m.connectCancel()
		m.connectCancel = nil
	}
	m.teardownLink()

	if m.state != final {
		m.setState(final)
		m.status(SeverityWarning, reason)
	}
}

// ----------------------------
// Scanning
// ----------------------------

func (m *Monitor) handleStartScan(req scanRequest) {
	// Already scanning: coalesce, never run two sessions concurrently.
	if m.state == StateScanning {
		req.reply <- nil
		return
	}

	if err := m.gate.EnsureRadioPermissions(); err != nil {
		m.status(SeverityError, "radio permissions denied; grant Bluetooth permissions in system settings")
		req.reply <- &LinkError{Kind: FailurePermissionDenied, Msg: err.Error()}
		return
	}

	if m.lastRadio != platform.RadioOn {
		req.reply <- &LinkError{
			Kind: FailureRadioUnavailable,
			Msg:  fmt.Sprintf("Bluetooth radio is %s", m.lastRadio),
		}
		return
	}

	// Scanning is the explicit retry path: allowed from Ready, from Error,
	// and from Disconnected after a link drop; never while a connection is
	// in progress or established.
	if m.state == StateConnecting || m.state == StateConnected {
		req.reply <- &LinkError{
			Kind: FailureRadioUnavailable,
			Msg:  fmt.Sprintf("cannot scan while %s", m.state),
		}
		return
	}

	timeout := req.timeout
	if timeout <= 0 {
		timeout = m.cfg.ScanTimeout
	}

	m.gen++
	m.devices = orderedmap.New[string, DiscoveredDevice]()
	m.publishDevices()

	scanCtx, cancel := context.WithTimeout(m.runCtx, timeout)
	m.scanCancel = cancel
	m.setState(StateScanning)
	m.status(SeverityInfo, fmt.Sprintf("scanning for wearable (timeout %s)", timeout))

	go m.scanWorker(m.gen, scanCtx)
	req.reply <- nil
}

func (m *Monitor) scanWorker(gen uint64, ctx context.Context) {
	err := m.radio.Scan(ctx, false, func(adv platform.Advertisement) {
		m.post(advertisementEvent{
			gen:  gen,
			id:   adv.ID(),
			name: adv.LocalName(),
			rssi: adv.RSSI(),
		})
	})
	if err == nil {
		err = ctx.Err()
	}
	m.post(scanDoneEvent{gen: gen, err: err})
}

func (m *Monitor) handleStopScan(req stopScanRequest) {
	if m.state == StateScanning && m.scanCancel != nil {
		m.scanCancel()
	}
	req.reply <- nil
}

func (m *Monitor) handleAdvertisement(ev advertisementEvent) {
	if ev.gen != m.gen || m.state != StateScanning {
		return
	}

	now := time.Now()
	if d, ok := m.devices.Get(ev.id); ok {
		d.RSSI = ev.rssi
		d.LastSeen = now
		if d.Name == "" {
			d.Name = ev.name
		}
		m.devices.Set(ev.id, d)
	} else {
		m.devices.Set(ev.id, DiscoveredDevice{ID: ev.id, Name: ev.name, RSSI: ev.rssi, LastSeen: now})
		m.logger.WithFields(logrus.Fields{
			"device":  ev.name,
			"address": ev.id,
			"rssi":    ev.rssi,
		}).Info("Discovered new device")
		m.status(SeverityInfo, fmt.Sprintf("discovered %s", displayName(ev.name, ev.id)))
	}
	m.publishDevices()

	// First match wins: stop scanning immediately and connect, even if other
	// candidates are still advertising.
	if m.cfg.MatchesTarget(ev.name) {
		m.status(SeverityInfo, fmt.Sprintf("target %q found, connecting", ev.name))
		if m.scanCancel != nil {
			m.scanCancel()
			m.scanCancel = nil
		}
		m.setState(StateConnecting)

		connectCtx, cancel := context.WithTimeout(m.runCtx, m.cfg.ConnectTimeout)
		m.connectCancel = cancel
		go m.connectWorker(m.gen, connectCtx, ev.id)
	}
}

func (m *Monitor) handleScanDone(ev scanDoneEvent) {
	if ev.gen != m.gen || m.state != StateScanning {
		return
	}
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}

	switch {
	case ev.err == nil || ev.err == context.DeadlineExceeded || ev.err == context.Canceled:
		// No match within the bound is not an error condition.
		m.setState(StateReady)
		m.status(SeverityInfo, "scan finished, no matching wearable found")
	default:
		m.setState(StateError)
		m.status(SeverityError, fmt.Sprintf("scan failed: %v", ev.err))
	}
}

func (m *Monitor) publishDevices() {
	list := make([]DiscoveredDevice, 0, m.devices.Len())
	for pair := m.devices.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, pair.Value)
	}
	m.devicesB.Publish(list)
}

// ----------------------------
// Connecting
// ----------------------------

func (m *Monitor) connectWorker(gen uint64, ctx context.Context, id string) {
	link, err := m.radio.Dial(ctx, id)
	if err != nil {
		m.post(connectResultEvent{gen: gen, err: err})
		return
	}

	profile, err := link.Profile(ctx)
	if err != nil {
		_ = link.Close()
		m.post(connectResultEvent{gen: gen, err: fmt.Errorf("service discovery failed: %w", err)})
		return
	}

	m.post(connectResultEvent{gen: gen, link: link, profile: profile})
}

func (m *Monitor) handleConnectResult(ev connectResultEvent) {
	if ev.gen != m.gen || m.state != StateConnecting {
		// Superseded attempt (radio-off race, shutdown): never complete a
		// connection on a dead radio.
		if ev.link != nil {
			_ = ev.link.Close()
		}
		return
	}

	if m.connectCancel != nil {
		m.connectCancel()
		m.connectCancel = nil
	}

	if ev.err != nil {
		m.status(SeverityError, fmt.Sprintf("connection failed: %v", ev.err))
		m.setState(StateError)
		return
	}

	m.link = ev.link
	m.bindChannels(ev.profile)
	m.setState(StateConnected)
	m.status(SeverityInfo, "wearable connected")

	go m.watchLink(m.gen, ev.link)
}

// bindChannels creates one binding per telemetry channel found in the
// discovered profile and subscribes to its notifications. Handles are never
// reused across connections; every connect rebinds from scratch.
func (m *Monitor) bindChannels(profile *platform.Profile) {
	m.bindings = make(map[vitals.Channel]platform.Characteristic)
	m.commandChar = nil
	gen := m.gen

	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			if vitals.IsCommandCharacteristic(svc.UUID, char.UUID()) {
				if char.Writable() {
					m.commandChar = char
				}
				continue
			}

			ch, ok := vitals.ChannelFor(svc.UUID, char.UUID())
			if !ok {
				continue
			}
			if _, bound := m.bindings[ch]; bound {
				continue
			}
			if !char.Notifiable() {
				m.status(SeverityWarning, fmt.Sprintf("%s characteristic does not support notifications", ch))
				continue
			}

			uuid := char.UUID()
			m.routes.Set(uuid, ch)
			err := m.link.Subscribe(char, func(data []byte) {
				m.onNotify(gen, uuid, data)
			})
			if err != nil {
				m.routes.Del(uuid)
				m.logger.WithFields(logrus.Fields{
					"channel":   ch.String(),
					"char_uuid": uuid,
					"error":     err,
				}).Warn("Failed to subscribe to characteristic")
				m.status(SeverityWarning, fmt.Sprintf("cannot subscribe to %s channel: %v", ch, err))
				continue
			}

			m.bindings[ch] = char
			m.logger.WithFields(logrus.Fields{
				"channel":   ch.String(),
				"char_uuid": uuid,
			}).Info("Bound telemetry channel")
		}
	}

	// Partial telemetry is preferable to none; absence is surfaced for
	// diagnosability only.
	missing := make([]string, 0, 4)
	for _, ch := range []vitals.Channel{vitals.ChannelHeartRate, vitals.ChannelSpO2, vitals.ChannelTemperature, vitals.ChannelBattery} {
		if _, ok := m.bindings[ch]; !ok {
			missing = append(missing, ch.String())
		}
	}
	switch {
	case len(missing) == 4:
		m.status(SeverityWarning, "no telemetry channels found on device; connected without vitals")
	case len(missing) > 0:
		m.status(SeverityInfo, fmt.Sprintf("telemetry channels missing: %v", missing))
	}
}

// onNotify runs on a platform goroutine. It resolves the channel through the
// lock-free routing table (cleared on teardown, so late notifications from a
// dead link are dropped here) and hands the payload to the loop.
func (m *Monitor) onNotify(gen uint64, uuid string, data []byte) {
	ch, ok := m.routes.Get(uuid)
	if !ok {
		return
	}
	// The platform may reuse the notification buffer after the callback.
	payload := make([]byte, len(data))
	copy(payload, data)

	m.post(notificationEvent{gen: gen, channel: ch, payload: payload, at: time.Now()})
}

func (m *Monitor) watchLink(gen uint64, link platform.Link) {
	select {
	case <-link.Disconnected():
		m.post(linkDroppedEvent{gen: gen})
	case <-m.done:
	}
}

// ----------------------------
// Connected steady state
// ----------------------------

func (m *Monitor) handleNotification(ev notificationEvent) {
	if ev.gen != m.gen || m.state != StateConnected {
		return
	}

	reading, err := vitals.Decode(ev.channel, ev.payload, ev.at)
	if err != nil {
		// One bad sample must not destabilize the pipeline: the previous
		// aggregate value for the channel is retained unchanged.
		m.logger.WithFields(logrus.Fields{
			"channel": ev.channel.String(),
			"length":  len(ev.payload),
		}).WithError(err).Warn("Dropped malformed telemetry payload")
		m.status(SeverityWarning, fmt.Sprintf("dropped malformed %s sample: %v", ev.channel, err))
		return
	}

	m.vitalsB.Publish(m.agg.Apply(reading))
}

// handleLivenessTick confirms the platform still enumerates the link as
// active, compensating for missed explicit disconnect callbacks.
func (m *Monitor) handleLivenessTick() {
	if m.state != StateConnected || m.link == nil {
		return
	}
	if m.link.Alive() {
		return
	}

	m.status(SeverityWarning, "wearable link lost (liveness check)")
	m.teardownLink()
	m.setState(StateDisconnected)
}

func (m *Monitor) handleLinkDropped(ev linkDroppedEvent) {
	if ev.gen != m.gen || m.state != StateConnected {
		return
	}

	m.status(SeverityWarning, "wearable disconnected")
	m.teardownLink()
	m.setState(StateDisconnected)
}

func (m *Monitor) handleDisconnect(req disconnectRequest) {
	switch {
	case m.state == StateConnecting:
		if m.connectCancel != nil {
			m.connectCancel()
			m.connectCancel = nil
		}
		m.setState(StateDisconnected)
		m.status(SeverityInfo, "connection attempt cancelled")
	case m.link != nil:
		m.teardownLink()
		m.setState(StateDisconnected)
		m.status(SeverityInfo, "wearable disconnected")
	}
	// Disconnecting an already-disconnected monitor is a no-op.
	req.reply <- nil
}

// teardownLink clears all characteristic bindings and releases the link.
// Idempotent. The caller decides the resulting state.
func (m *Monitor) teardownLink() {
	if m.link == nil && m.bindings == nil {
		return
	}

	// Invalidate in-flight events and stop the notification routes first so
	// platform callbacks racing with teardown are dropped.
	m.gen++
	m.routes.Range(func(uuid string, _ vitals.Channel) bool {
		m.routes.Del(uuid)
		return true
	})

	if m.link != nil {
		if m.link.Alive() {
			for _, char := range m.bindings {
				_ = m.link.Unsubscribe(char)
			}
		}
		_ = m.link.Close()
		m.link = nil
	}
	m.bindings = nil
	m.commandChar = nil
}

func (m *Monitor) handleCommand(req commandRequest) {
	if m.state != StateConnected || m.link == nil {
		req.reply <- commandGrant{err: &LinkError{Kind: FailureCommandRejected, Msg: "not connected"}}
		return
	}
	if m.commandChar == nil {
		req.reply <- commandGrant{err: &LinkError{Kind: FailureCommandRejected, Msg: "command channel not bound"}}
		return
	}
	req.reply <- commandGrant{link: m.link, char: m.commandChar}
}

// ----------------------------
// Shared helpers
// ----------------------------

func (m *Monitor) setState(s ConnectionState) {
	if m.state == s {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"from": m.state.String(),
		"to":   s.String(),
	}).Debug("Connection state transition")

	m.state = s
	m.currentState.Store(int32(s))
	m.stateB.Publish(s)
}

func (m *Monitor) status(sev Severity, text string) {
	msg := StatusMessage{Severity: sev, Text: text, Time: time.Now()}

	switch sev {
	case SeverityError:
		m.logger.Error(text)
	case SeverityWarning:
		m.logger.Warn(text)
	default:
		m.logger.Info(text)
	}

	_, _ = m.history.EnqueueM(msg)
	m.statusB.Publish(msg)
}

// post delivers an event to the loop, giving up if the monitor stopped.
func (m *Monitor) post(ev any) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
