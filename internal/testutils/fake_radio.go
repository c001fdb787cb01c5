package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/materna-health/wearlink/internal/platform"
)

// FakeAdvertisement is a scripted scan result.
type FakeAdvertisement struct {
	Addr        string
	Name        string
	Signal      int
	connectable bool
}

func NewFakeAdvertisement(name, id string, rssi int) *FakeAdvertisement {
	return &FakeAdvertisement{Addr: id, Name: name, Signal: rssi, connectable: true}
}

func (a *FakeAdvertisement) ID() string        { return a.Addr }
func (a *FakeAdvertisement) LocalName() string { return a.Name }
func (a *FakeAdvertisement) RSSI() int         { return a.Signal }
func (a *FakeAdvertisement) Connectable() bool { return a.connectable }

// FakeRadio is a scriptable platform.Radio. Tests push adapter states,
// announce advertisements during a scan, and register links per device id.
type FakeRadio struct {
	mu      sync.Mutex
	states  chan platform.RadioState
	links   map[string]*FakeLink
	dialErr map[string]error
	pending []platform.Advertisement
	handler func(platform.Advertisement)
	scans   int
	started chan struct{}
}

func NewFakeRadio() *FakeRadio {
	return &FakeRadio{
		states:  make(chan platform.RadioState, 16),
		links:   make(map[string]*FakeLink),
		dialErr: make(map[string]error),
		started: make(chan struct{}, 16),
	}
}

// PushState emits an adapter state change.
func (r *FakeRadio) PushState(s platform.RadioState) {
	r.states <- s
}

func (r *FakeRadio) States() <-chan platform.RadioState {
	return r.states
}

// QueueAdvertisement schedules an advertisement to be delivered as soon as
// the next scan starts.
func (r *FakeRadio) QueueAdvertisement(adv platform.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, adv)
}

// Announce delivers an advertisement to the active scan handler, or queues it
// when no scan is running.
func (r *FakeRadio) Announce(adv platform.Advertisement) {
	r.mu.Lock()
	handler := r.handler
	if handler == nil {
		r.pending = append(r.pending, adv)
	}
	r.mu.Unlock()

	if handler != nil {
		handler(adv)
	}
}

// WithLink registers the link returned when the given device id is dialed.
func (r *FakeRadio) WithLink(id string, link *FakeLink) *FakeRadio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[id] = link
	return r
}

// WithDialError makes dialing the given device id fail.
func (r *FakeRadio) WithDialError(id string, err error) *FakeRadio {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialErr[id] = err
	return r
}

func (r *FakeRadio) Scan(ctx context.Context, _ bool, handler func(platform.Advertisement)) error {
	r.mu.Lock()
	r.scans++
	r.handler = handler
	queued := r.pending
	r.pending = nil
	r.mu.Unlock()

	select {
	case r.started <- struct{}{}:
	default:
	}

	for _, adv := range queued {
		handler(adv)
	}

	<-ctx.Done()

	r.mu.Lock()
	r.handler = nil
	r.mu.Unlock()
	return ctx.Err()
}

func (r *FakeRadio) Dial(ctx context.Context, id string) (platform.Link, error) {
	r.mu.Lock()
	err, hasErr := r.dialErr[id]
	link, hasLink := r.links[id]
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if hasErr {
		return nil, err
	}
	if !hasLink {
		return nil, fmt.Errorf("no such device: %s", id)
	}
	return link, nil
}

// ScanCount reports how many scan sessions have been started.
func (r *FakeRadio) ScanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

// Scanning reports whether a scan session is currently active.
func (r *FakeRadio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler != nil
}

// ScanStarted signals once per scan session start.
func (r *FakeRadio) ScanStarted() <-chan struct{} {
	return r.started
}
