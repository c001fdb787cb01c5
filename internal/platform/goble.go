package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/sirupsen/logrus"
)

// stateBuffer bounds the adapter-state stream; states are coalescable and a
// slow consumer only needs the most recent ones.
const stateBuffer = 8

// DeviceFactory creates ble.Device instances (can be overridden in tests).
var DeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}

// mapRadioError classifies a go-ble error into the adapter state it implies,
// so upstream library message changes stay contained here.
func mapRadioError(err error) RadioState {
	if err == nil {
		return RadioOn
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not permitted"):
		return RadioUnauthorized
	case strings.Contains(msg, "down"), strings.Contains(msg, "powered off"),
		strings.Contains(msg, "no devices available"):
		return RadioOff
	default:
		return RadioUnknown
	}
}

// GobleRadio implements Radio on top of go-ble's HCI device.
//
// go-ble exposes no adapter state-change stream, so the radio derives states
// from operation outcomes: device creation and successful calls imply on,
// classified failures push off/unauthorized. A richer platform backend can
// replace this without touching the state machine.
type GobleRadio struct {
	dev    ble.Device
	logger *logrus.Logger

	mu     sync.Mutex
	states chan RadioState
	last   RadioState
}

// NewGobleRadio opens the HCI device via DeviceFactory and reports the
// initial adapter state on the States stream.
func NewGobleRadio(logger *logrus.Logger) (*GobleRadio, error) {
	if logger == nil {
		logger = logrus.New()
	}

	r := &GobleRadio{
		logger: logger,
		states: make(chan RadioState, stateBuffer),
	}

	dev, err := DeviceFactory()
	if err != nil {
		state := mapRadioError(err)
		if state == RadioUnknown {
			state = RadioUnauthorized
		}
		r.pushState(state)
		return nil, fmt.Errorf("failed to open BLE device: %w", err)
	}
	r.dev = dev
	r.pushState(RadioOn)

	logger.Info("BLE radio initialized")
	return r, nil
}

func (r *GobleRadio) pushState(s RadioState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s == r.last {
		return
	}
	r.last = s

	select {
	case r.states <- s:
	default:
		// Drop oldest; only the latest states matter.
		select {
		case <-r.states:
		default:
		}
		r.states <- s
	}
}

func (r *GobleRadio) States() <-chan RadioState {
	return r.states
}

func (r *GobleRadio) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	err := r.dev.Scan(ctx, allowDup, func(a ble.Advertisement) {
		handler(&gobleAdvertisement{adv: a})
	})
	if err != nil && ctx.Err() == nil {
		if s := mapRadioError(err); s != RadioUnknown && s != RadioOn {
			r.pushState(s)
		}
	}
	return err
}

func (r *GobleRadio) Dial(ctx context.Context, id string) (Link, error) {
	client, err := r.dev.Dial(ctx, ble.NewAddr(id))
	if err != nil {
		if s := mapRadioError(err); s != RadioUnknown && s != RadioOn {
			r.pushState(s)
		}
		return nil, fmt.Errorf("failed to connect to %q: %w", id, err)
	}
	return &gobleLink{client: client, logger: r.logger}, nil
}

type gobleAdvertisement struct {
	adv ble.Advertisement
}

func (a *gobleAdvertisement) ID() string        { return a.adv.Addr().String() }
func (a *gobleAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *gobleAdvertisement) RSSI() int         { return a.adv.RSSI() }
func (a *gobleAdvertisement) Connectable() bool { return a.adv.Connectable() }

type gobleCharacteristic struct {
	char *ble.Characteristic
	uuid string
}

func (c *gobleCharacteristic) UUID() string { return c.uuid }

func (c *gobleCharacteristic) Notifiable() bool {
	return c.char.Property&(ble.CharNotify|ble.CharIndicate) != 0
}

func (c *gobleCharacteristic) Writable() bool {
	return c.char.Property&(ble.CharWrite|ble.CharWriteNR) != 0
}

type gobleLink struct {
	client ble.Client
	logger *logrus.Logger

	closeOnce sync.Once
	closeErr  error
}

func (l *gobleLink) Profile(ctx context.Context) (*Profile, error) {
	type result struct {
		profile *ble.Profile
		err     error
	}

	// go-ble's discovery has no context parameter; run it in a goroutine and
	// abandon the connection on timeout.
	resCh := make(chan result, 1)
	go func() {
		p, err := l.client.DiscoverProfile(true)
		resCh <- result{profile: p, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to discover profile: %w", res.err)
		}
		profile := &Profile{}
		for _, svc := range res.profile.Services {
			ps := ProfileService{UUID: NormalizeUUID(svc.UUID.String())}
			for _, char := range svc.Characteristics {
				ps.Characteristics = append(ps.Characteristics, &gobleCharacteristic{
					char: char,
					uuid: NormalizeUUID(char.UUID.String()),
				})
			}
			profile.Services = append(profile.Services, ps)
		}
		return profile, nil
	}
}

func (l *gobleLink) Subscribe(ch Characteristic, handler func([]byte)) error {
	gc, ok := ch.(*gobleCharacteristic)
	if !ok {
		return fmt.Errorf("characteristic %q does not belong to this link", ch.UUID())
	}
	return l.client.Subscribe(gc.char, false, func(data []byte) {
		handler(data)
	})
}

func (l *gobleLink) Unsubscribe(ch Characteristic) error {
	gc, ok := ch.(*gobleCharacteristic)
	if !ok {
		return fmt.Errorf("characteristic %q does not belong to this link", ch.UUID())
	}
	err1 := l.client.Unsubscribe(gc.char, false) // notify
	err2 := l.client.Unsubscribe(gc.char, true)  // indicate
	if err1 != nil && err2 != nil {
		return fmt.Errorf("failed to unsubscribe %s: notify=%v, indicate=%v", gc.uuid, err1, err2)
	}
	return nil
}

func (l *gobleLink) Write(ch Characteristic, data []byte) error {
	gc, ok := ch.(*gobleCharacteristic)
	if !ok {
		return fmt.Errorf("characteristic %q does not belong to this link", ch.UUID())
	}
	noRsp := gc.char.Property&ble.CharWrite == 0
	if err := l.client.WriteCharacteristic(gc.char, data, noRsp); err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", gc.uuid, err)
	}
	return nil
}

func (l *gobleLink) Alive() bool {
	select {
	case <-l.client.Disconnected():
		return false
	default:
		return true
	}
}

func (l *gobleLink) Disconnected() <-chan struct{} {
	return l.client.Disconnected()
}

func (l *gobleLink) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.client.CancelConnection()
	})
	return l.closeErr
}
