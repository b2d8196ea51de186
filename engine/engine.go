// Package engine runs the poll loop at the core of the gateway: it reads
// snapshots from the upstream source, diffs them against the last-broadcast
// state, and pushes patch and liveness events to connected clients.
package engine

import (
	"context"
	"reflect"
	"sync"
	"time"

	"taglink/config"
	"taglink/logging"
	"taglink/metric"
	"taglink/registry"
	"taglink/source"
	"taglink/stream"
)

// sentState is the last value and timestamp broadcast for one tag.
type sentState struct {
	value interface{}
	ts    *int64
}

// ChangeListener receives the patch batch produced by a poll tick.
// Listeners run on the poll goroutine and must not block.
type ChangeListener func(batch []stream.TagUpdate)

// CommsListener receives liveness transitions.
type CommsListener func(comms stream.Comms)

// Engine owns the poll loop and all process-wide mutable state: the
// last-sent map and the liveness detector, both written only by the loop.
type Engine struct {
	reg *registry.Registry
	src source.Source
	hub *stream.Hub

	pollInterval time.Duration
	keepalive    time.Duration
	liveTimeout  time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	lastSent  map[string]sentState
	live      *Liveness
	lastComms *stream.Comms

	changeListeners []ChangeListener
	commsListeners  []CommsListener

	metrics *metric.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine for the given registry and source.
func New(cfg *config.Config, reg *registry.Registry, src source.Source) *Engine {
	pollInterval := cfg.PollRate
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	keepalive := cfg.Engine.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = 3 * time.Second
	}
	multiplier := cfg.Engine.LivenessMultiplier
	if multiplier <= 0 {
		multiplier = 6
	}

	return &Engine{
		reg:          reg,
		src:          src,
		hub:          stream.NewHub(),
		pollInterval: pollInterval,
		keepalive:    keepalive,
		liveTimeout:  time.Duration(multiplier) * pollInterval,
		now:          time.Now,
		lastSent:     make(map[string]sentState),
	}
}

// SetClock injects a clock for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetMetrics attaches Prometheus metrics. Optional.
func (e *Engine) SetMetrics(m *metric.Metrics) {
	e.metrics = m
}

// Hub returns the client fan-out hub.
func (e *Engine) Hub() *stream.Hub {
	return e.hub
}

// PollInterval returns the poll period.
func (e *Engine) PollInterval() time.Duration {
	return e.pollInterval
}

// LivenessTimeout returns the comms-loss window.
func (e *Engine) LivenessTimeout() time.Duration {
	return e.liveTimeout
}

// TagCount returns the number of registry tags.
func (e *Engine) TagCount() int {
	return len(e.reg.Tags)
}

// Registry returns the immutable tag registry.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// AddChangeListener registers a callback for patch batches (republishers).
func (e *Engine) AddChangeListener(fn ChangeListener) {
	e.changeListeners = append(e.changeListeners, fn)
}

// AddCommsListener registers a callback for liveness transitions.
func (e *Engine) AddCommsListener(fn CommsListener) {
	e.commsListeners = append(e.commsListeners, fn)
}

// Start begins the poll and keepalive loops.
func (e *Engine) Start() {
	if e.ctx != nil {
		return
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.wg.Add(2)
	go e.pollLoop()
	go e.keepaliveLoop()

	logging.DebugLog("engine", "started: %d tags, poll %v, liveness window %v",
		len(e.reg.Tags), e.pollInterval, e.liveTimeout)
}

// Stop halts the loops and disconnects all clients.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.hub.Stop()
	logging.DebugLog("engine", "stopped")
}

func (e *Engine) pollLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) keepaliveLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if e.hub.ClientCount() > 0 {
				e.hub.Broadcast(stream.Event{Type: stream.EventHeartbeat})
			}
		}
	}
}

// Tick runs one poll cycle: read, diff, broadcast, evaluate liveness.
// Any failure makes the tick a no-op; polling continues on the next tick.
func (e *Engine) Tick() {
	raw, err := e.src.GetAllData()
	if err != nil {
		logging.DebugLog("engine", "source read failed: %v", err)
		if e.metrics != nil {
			e.metrics.SourceErrors.Inc()
		}
		return
	}
	snap := source.Normalize(raw)

	batch := e.diff(snap)

	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
		e.metrics.ChangedTags.Add(float64(len(batch)))
	}

	if len(batch) > 0 {
		if e.hub.ClientCount() > 0 {
			e.hub.Broadcast(stream.Event{Type: stream.EventPatch, Data: batch})
			if e.metrics != nil {
				e.metrics.PatchesBroadcast.Inc()
			}
		}
		for _, fn := range e.changeListeners {
			fn(batch)
		}
	}

	e.evaluateLiveness(snap)
}

// diff compares the snapshot to the last-sent state and returns the changed
// tags as one patch batch. Unchanged values with newer source timestamps get
// a silent timestamp refresh so staleness tracking stays accurate without
// re-announcing values.
func (e *Engine) diff(snap source.Snapshot) []stream.TagUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()

	var batch []stream.TagUpdate
	for _, tag := range e.reg.Tags {
		reading, ok := snap[tag]
		if !ok {
			reading = source.Reading{TagID: tag}
		}

		prev, sent := e.lastSent[tag]
		if sent && valueEqual(prev.value, reading.Value) {
			if reading.Timestamp != nil && (prev.ts == nil || *reading.Timestamp > *prev.ts) {
				prev.ts = reading.Timestamp
				e.lastSent[tag] = prev
			}
			continue
		}

		e.lastSent[tag] = sentState{value: reading.Value, ts: reading.Timestamp}
		batch = append(batch, stream.TagUpdate{
			TagID:     tag,
			Value:     reading.Value,
			Timestamp: reading.Timestamp,
		})
	}
	return batch
}

// evaluateLiveness advances the liveness detector for this tick and
// broadcasts a comms event on state transitions only. The first evaluation
// announces once to establish the baseline for connected clients.
func (e *Engine) evaluateLiveness(snap source.Snapshot) {
	beatTag := e.beatTag()
	if beatTag == "" {
		return
	}

	e.mu.Lock()
	if e.live == nil || e.live.Tag() != beatTag {
		e.live = NewLiveness(beatTag, e.liveTimeout, e.now)
		logging.DebugLog("engine", "liveness tag %q classified as %s", beatTag, e.live.Kind())
	}

	beatValue := snap[beatTag].Value
	ok := e.live.Evaluate(beatValue)

	announce := e.lastComms == nil || e.lastComms.OK != ok
	var comms stream.Comms
	if announce {
		comms = stream.Comms{
			OK:        ok,
			Timestamp: e.now().UnixMilli(),
			Tag:       beatTag,
			Value:     beatValue,
			TimeoutMs: e.liveTimeout.Milliseconds(),
		}
		e.lastComms = &comms
	}
	e.mu.Unlock()

	if !announce {
		return
	}

	logging.DebugLog("engine", "comms transition: ok=%v tag=%s", ok, beatTag)
	if e.metrics != nil {
		e.metrics.SetCommsOK(ok)
	}

	e.hub.Broadcast(stream.Event{Type: stream.EventComms, Data: comms})
	for _, fn := range e.commsListeners {
		fn(comms)
	}
}

// beatTag asks the source which tag carries the liveness beat.
// A settings failure keeps the previous designation.
func (e *Engine) beatTag() string {
	settings, err := e.src.GetSettings()
	if err != nil {
		e.mu.RLock()
		defer e.mu.RUnlock()
		if e.live != nil {
			return e.live.Tag()
		}
		return ""
	}
	return settings[source.SettingHeartbeat]
}

// SnapshotUpdates returns the full last-sent state as one patch batch, in
// registry order. Sent to newly joined clients so they are never missing
// data already known to the server.
func (e *Engine) SnapshotUpdates() []stream.TagUpdate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	batch := make([]stream.TagUpdate, 0, len(e.reg.Tags))
	for _, tag := range e.reg.Tags {
		st := e.lastSent[tag]
		batch = append(batch, stream.TagUpdate{
			TagID:     tag,
			Value:     st.value,
			Timestamp: st.ts,
		})
	}
	return batch
}

// CurrentComms returns the liveness state for a newly joined client.
func (e *Engine) CurrentComms() stream.Comms {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.lastComms != nil {
		return *e.lastComms
	}
	return stream.Comms{
		OK:        false,
		Timestamp: e.now().UnixMilli(),
		TimeoutMs: e.liveTimeout.Milliseconds(),
	}
}

// valueEqual is the strict comparison used by the diff: values are equal
// only when type and value both match.
func valueEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}
