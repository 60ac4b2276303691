// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package registrar

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

const registrarChannel = "8879f616-d468-4793-afcd-d66f0cea4651"

// fakeRegistry records scope mutations and can fail a scripted number of
// times.
type fakeRegistry struct {
	mu           sync.Mutex
	ensured      map[string]string
	removed      []string
	failuresLeft int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{ensured: make(map[string]string)}
}

func (f *fakeRegistry) EnsureScope(ctx context.Context, scope, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("management API unavailable")
	}
	f.ensured[scope] = description
	return nil
}

func (f *fakeRegistry) RemoveScope(ctx context.Context, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("management API unavailable")
	}
	f.removed = append(f.removed, scope)
	return nil
}

func (f *fakeRegistry) ensuredScopes() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.ensured))
	for k, v := range f.ensured {
		out[k] = v
	}
	return out
}

func (f *fakeRegistry) removedScopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// startRegistrar runs a registrar over a fresh bus until test cleanup.
func startRegistrar(t *testing.T, registry ScopeRegistry) *Publisher {
	t.Helper()

	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	r := New(bus, registry, "access:")
	r.backoffBase = 10 * time.Millisecond // keep retry tests fast

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Serve(ctx)
	}()
	t.Cleanup(func() { cancel(); <-done })

	// Give the subscriber a moment to attach before intents flow
	time.Sleep(50 * time.Millisecond)
	return NewPublisher(bus)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestChannelCreatedEnsuresScope(t *testing.T) {
	registry := newFakeRegistry()
	pub := startRegistrar(t, registry)

	pub.ChannelCreated(registrarChannel, "Chamonix Sud")

	wantScope := "access:" + registrarChannel
	waitFor(t, 2*time.Second, func() bool {
		_, ok := registry.ensuredScopes()[wantScope]
		return ok
	})

	if desc := registry.ensuredScopes()[wantScope]; desc != "Access to channel Chamonix Sud" {
		t.Errorf("description = %q", desc)
	}
}

func TestChannelUpdatedReassertsScope(t *testing.T) {
	registry := newFakeRegistry()
	pub := startRegistrar(t, registry)

	pub.ChannelUpdated(registrarChannel, "Renamed")

	waitFor(t, 2*time.Second, func() bool {
		return registry.ensuredScopes()["access:"+registrarChannel] == "Access to channel Renamed"
	})
}

func TestHardDeleteRemovesScope(t *testing.T) {
	registry := newFakeRegistry()
	pub := startRegistrar(t, registry)

	pub.ChannelHardDeleted(registrarChannel)

	waitFor(t, 2*time.Second, func() bool {
		removed := registry.removedScopes()
		return len(removed) == 1 && removed[0] == "access:"+registrarChannel
	})
}

func TestIntentRetriesUntilSuccess(t *testing.T) {
	registry := newFakeRegistry()
	registry.failuresLeft = 2
	pub := startRegistrar(t, registry)

	pub.ChannelCreated(registrarChannel, "Flaky")

	waitFor(t, 5*time.Second, func() bool {
		_, ok := registry.ensuredScopes()["access:"+registrarChannel]
		return ok
	})
}

func TestPublishWithoutConsumerDoesNotBlock(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })
	pub := NewPublisher(bus)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No subscriber: publishes must return immediately regardless
		for i := 0; i < 10; i++ {
			pub.ChannelCreated(registrarChannel, "orphan")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing without a consumer blocked")
	}
}
