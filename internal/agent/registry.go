// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

package agent

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/errs"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

// shardCount sizes the registry's lock striping. The placement function is
// deterministic (fnv-1a over the lowercased UUID), the seam a multi-process
// directory would plug into.
const shardCount = 16

// registryEntry pairs an agent with the cancel that stops its loop.
type registryEntry struct {
	agent  *Agent
	cancel context.CancelFunc
}

// registryShard holds one stripe of the uuid → agent map.
type registryShard struct {
	mu     sync.Mutex
	agents map[string]registryEntry
}

// Registry resolves channel UUIDs to their owning agents, creating agents
// on first use with the roster loaded from the store.
type Registry struct {
	shards   [shardCount]registryShard
	store    Store
	notifier Notifier
	opts     Options

	// ctx bounds every agent's run loop; cancel stops them all.
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewRegistry creates an agent registry. Agents run until Shutdown.
func NewRegistry(store Store, notifier Notifier, opts Options) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		store:    store,
		notifier: notifier,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := range r.shards {
		r.shards[i].agents = make(map[string]registryEntry)
	}
	return r
}

// shardFor selects the stripe for a channel UUID.
func (r *Registry) shardFor(channelUUID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(channelUUID))
	return &r.shards[h.Sum32()%shardCount]
}

// Get returns the agent owning the channel, creating and starting it on
// first use. The channel must exist in the store.
func (r *Registry) Get(ctx context.Context, channelUUID string) (*Agent, error) {
	channelUUID = models.NormalizeUUID(channelUUID)

	shard := r.shardFor(channelUUID)
	shard.mu.Lock()
	if entry, ok := shard.agents[channelUUID]; ok {
		shard.mu.Unlock()
		return entry.agent, nil
	}
	shard.mu.Unlock()

	// Verify existence outside the shard lock: store reads can be slow and
	// must not serialize unrelated channels.
	if _, err := r.store.GetChannel(ctx, channelUUID); err != nil {
		return nil, err
	}

	a := newAgent(channelUUID, r.store, r.notifier, r.opts)
	if err := a.loadRoster(ctx); err != nil {
		return nil, err
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if existing, ok := shard.agents[channelUUID]; ok {
		// Another caller won the race; its agent is authoritative
		return existing.agent, nil
	}

	agentCtx, agentCancel := context.WithCancel(r.ctx)
	shard.agents[channelUUID] = registryEntry{agent: a, cancel: agentCancel}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		a.run(agentCtx)
	}()

	logging.Debug().Str("channel", channelUUID).Msg("channel agent started")
	return a, nil
}

// Lookup returns the agent for a channel only if one is already running.
// Used when routing session-scoped calls: a chunk for a channel with no
// live agent has no active session by definition.
func (r *Registry) Lookup(channelUUID string) (*Agent, bool) {
	channelUUID = models.NormalizeUUID(channelUUID)
	shard := r.shardFor(channelUUID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	entry, ok := shard.agents[channelUUID]
	return entry.agent, ok
}

// Remove stops a channel's agent and forgets it (hard delete, channel
// shutdown). Any active transmission ends with the shutdown reason.
func (r *Registry) Remove(channelUUID string) {
	channelUUID = models.NormalizeUUID(channelUUID)
	shard := r.shardFor(channelUUID)
	shard.mu.Lock()
	entry, ok := shard.agents[channelUUID]
	delete(shard.agents, channelUUID)
	shard.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

// Count returns the number of live agents, reported by the health endpoint.
func (r *Registry) Count() int {
	count := 0
	for i := range r.shards {
		r.shards[i].mu.Lock()
		count += len(r.shards[i].agents)
		r.shards[i].mu.Unlock()
	}
	return count
}

// ResolveSession routes a session ID to its owning agent. The channel
// segment of the ID is used for routing only; the agent's own state decides
// whether the session exists.
func (r *Registry) ResolveSession(sessionID string) (*Agent, error) {
	channelUUID, ok := models.ParseSessionChannel(sessionID)
	if !ok {
		return nil, errs.New(errs.KindInvalid, "Invalid session ID")
	}
	a, ok := r.Lookup(channelUUID)
	if !ok {
		return nil, errs.New(errs.KindNotFound, "Transmission session not found")
	}
	return a, nil
}

// Shutdown stops every agent loop and waits for them to finish. Active
// transmissions are closed with the shutdown reason.
func (r *Registry) Shutdown() {
	r.cancel()
	r.wg.Wait()
}
