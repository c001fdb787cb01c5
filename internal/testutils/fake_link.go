package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/materna-health/wearlink/internal/platform"
)

// FakeCharacteristic is a scripted GATT characteristic handle.
type FakeCharacteristic struct {
	uuid     string
	notify   bool
	writable bool
}

func (c *FakeCharacteristic) UUID() string     { return c.uuid }
func (c *FakeCharacteristic) Notifiable() bool { return c.notify }
func (c *FakeCharacteristic) Writable() bool   { return c.writable }

// FakeLink is a scriptable platform.Link. Tests feed notifications through
// Notify, simulate remote drops through Drop, and inspect recorded writes.
type FakeLink struct {
	mu           sync.Mutex
	profile      *platform.Profile
	profileErr   error
	profileHang  bool
	subscribeErr map[string]error
	writeErr     error
	handlers     map[string]func([]byte)
	writes       []RecordedWrite
	alive        bool
	dropped      chan struct{}
	dropOnce     sync.Once
}

// RecordedWrite is one captured Write call.
type RecordedWrite struct {
	CharUUID string
	Data     []byte
}

func NewFakeLink() *FakeLink {
	return &FakeLink{
		subscribeErr: make(map[string]error),
		handlers:     make(map[string]func([]byte)),
		alive:        true,
		dropped:      make(chan struct{}),
	}
}

// WithProfile sets the service tree returned by Profile.
func (l *FakeLink) WithProfile(p *platform.Profile) *FakeLink {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profile = p
	return l
}

// WithProfileHang makes service discovery block until its context is done.
func (l *FakeLink) WithProfileHang() *FakeLink {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profileHang = true
	return l
}

// WithProfileError makes service discovery fail.
func (l *FakeLink) WithProfileError(err error) *FakeLink {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.profileErr = err
	return l
}

// WithSubscribeError makes subscribing to the given characteristic fail.
func (l *FakeLink) WithSubscribeError(charUUID string, err error) *FakeLink {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribeErr[platform.NormalizeUUID(charUUID)] = err
	return l
}

// WithWriteError makes all writes fail.
func (l *FakeLink) WithWriteError(err error) *FakeLink {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
	return l
}

func (l *FakeLink) Profile(ctx context.Context) (*platform.Profile, error) {
	l.mu.Lock()
	hang := l.profileHang
	l.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.profileErr != nil {
		return nil, l.profileErr
	}
	if l.profile == nil {
		return &platform.Profile{}, nil
	}
	return l.profile, nil
}

func (l *FakeLink) Subscribe(ch platform.Characteristic, handler func(data []byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	uuid := platform.NormalizeUUID(ch.UUID())
	if err, ok := l.subscribeErr[uuid]; ok {
		return err
	}
	l.handlers[uuid] = handler
	return nil
}

func (l *FakeLink) Unsubscribe(ch platform.Characteristic) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, platform.NormalizeUUID(ch.UUID()))
	return nil
}

func (l *FakeLink) Write(ch platform.Characteristic, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	if !l.alive {
		return fmt.Errorf("link is down")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	l.writes = append(l.writes, RecordedWrite{CharUUID: platform.NormalizeUUID(ch.UUID()), Data: buf})
	return nil
}

func (l *FakeLink) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive
}

func (l *FakeLink) Disconnected() <-chan struct{} {
	return l.dropped
}

func (l *FakeLink) Close() error {
	l.mu.Lock()
	l.alive = false
	l.mu.Unlock()
	l.dropOnce.Do(func() { close(l.dropped) })
	return nil
}

// Notify delivers a notification payload for the given characteristic, as the
// platform would on its own goroutine. Returns false when nothing is
// subscribed to it.
func (l *FakeLink) Notify(charUUID string, payload []byte) bool {
	l.mu.Lock()
	handler, ok := l.handlers[platform.NormalizeUUID(charUUID)]
	l.mu.Unlock()
	if !ok {
		return false
	}
	handler(payload)
	return true
}

// Drop simulates the platform reporting the link lost.
func (l *FakeLink) Drop() {
	l.mu.Lock()
	l.alive = false
	l.mu.Unlock()
	l.dropOnce.Do(func() { close(l.dropped) })
}

// Vanish makes the link report not-alive without firing the disconnect
// event, so only the liveness poll can notice.
func (l *FakeLink) Vanish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alive = false
}

// Writes returns all recorded writes.
func (l *FakeLink) Writes() []RecordedWrite {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RecordedWrite, len(l.writes))
	copy(out, l.writes)
	return out
}

// Subscribed reports whether the given characteristic has an active
// subscription.
func (l *FakeLink) Subscribed(charUUID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handlers[platform.NormalizeUUID(charUUID)]
	return ok
}
