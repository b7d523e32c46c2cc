// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schedsync/internal/gateway"
)

// Call records one gateway invocation.
type Call struct {
	Op gateway.Op
	ID string
}

// Entry is the stored state of one remote schedule.
type Entry struct {
	Schedule gateway.Schedule
	Paused   bool
	Note     string
	// Version counts create/update/pause writes.
	Version int
}

type failure struct {
	err   error
	times int // < 0 means forever
}

type failKey struct {
	op gateway.Op
	id string
}

// Memory is a concurrency-safe fake of the remote scheduling service.
type Memory struct {
	// LazyLookup makes Lookup always succeed, deferring the existence check
	// to Describe the way the Temporal SDK handle does.
	LazyLookup bool
	// Delay is slept (respecting ctx) at the start of every call.
	Delay time.Duration

	mu       sync.Mutex
	entries  map[string]*Entry
	calls    []Call
	failures map[failKey]*failure
	stale    map[string]bool
	inFlight int
	maxIn    int
}

var _ gateway.Gateway = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries:  map[string]*Entry{},
		failures: map[failKey]*failure{},
		stale:    map[string]bool{},
	}
}

type handle string

func (h handle) ID() string { return string(h) }

// Seed stores a schedule as if it already existed remotely.
func (m *Memory) Seed(id string, s gateway.Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &Entry{Schedule: s, Paused: s.State.Paused, Note: s.State.Note}
}

// MarkStale makes Lookup hand out a handle for id while Describe reports it missing.
func (m *Memory) MarkStale(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale[id] = true
}

// FailOn makes the next times calls of op on id fail with err. times < 0 fails forever.
// Errors without a status are reported as codes.Unavailable.
func (m *Memory) FailOn(op gateway.Op, id string, err error, times int) {
	if _, ok := status.FromError(err); !ok {
		err = status.Error(codes.Unavailable, err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failKey{op, id}] = &failure{err: err, times: times}
}

// Get returns a copy of the stored entry.
func (m *Memory) Get(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (m *Memory) Exists(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// IDs lists stored schedule ids in sorted order.
func (m *Memory) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Calls returns every recorded call in arrival order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Count returns how many times op was called for id. An empty id matches all.
func (m *Memory) Count(op gateway.Op, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op && (id == "" || c.ID == id) {
			n++
		}
	}
	return n
}

// MaxInFlight reports the highest number of concurrently executing calls observed.
func (m *Memory) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxIn
}

// Reset clears recorded calls, keeping stored schedules.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.maxIn = 0
}

// enter records the call, applies Delay and injected failures.
func (m *Memory) enter(ctx context.Context, op gateway.Op, id string) (func(), error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Op: op, ID: id})
	m.inFlight++
	if m.inFlight > m.maxIn {
		m.maxIn = m.inFlight
	}
	m.mu.Unlock()
	leave := func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			leave()
			return nil, gateway.Classify(op, id, ctx.Err())
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		leave()
		return nil, gateway.Classify(op, id, err)
	}

	m.mu.Lock()
	f := m.failures[failKey{op, id}]
	var injected error
	if f != nil && f.times != 0 {
		injected = f.err
		if f.times > 0 {
			f.times--
		}
	}
	m.mu.Unlock()
	if injected != nil {
		leave()
		return nil, gateway.Classify(op, id, injected)
	}
	return leave, nil
}

func notFound(op gateway.Op, id string) error {
	return gateway.Classify(op, id, status.Error(codes.NotFound, "schedule not found"))
}

func (m *Memory) Lookup(ctx context.Context, id string) (gateway.Handle, error) {
	leave, err := m.enter(ctx, gateway.OpLookup, id)
	if err != nil {
		return nil, err
	}
	defer leave()

	if m.LazyLookup {
		return handle(id), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok && !m.stale[id] {
		return nil, notFound(gateway.OpLookup, id)
	}
	return handle(id), nil
}

func (m *Memory) Describe(ctx context.Context, h gateway.Handle) (gateway.Description, error) {
	id := h.ID()
	leave, err := m.enter(ctx, gateway.OpDescribe, id)
	if err != nil {
		return gateway.Description{}, err
	}
	defer leave()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || m.stale[id] {
		return gateway.Description{}, notFound(gateway.OpDescribe, id)
	}
	return gateway.Description{ID: id, Paused: e.Paused, Note: e.Note, NumActions: 0}, nil
}

func (m *Memory) Create(ctx context.Context, id string, s *gateway.Schedule) (gateway.Handle, error) {
	leave, err := m.enter(ctx, gateway.OpCreate, id)
	if err != nil {
		return nil, err
	}
	defer leave()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; ok && !m.stale[id] {
		return nil, gateway.Classify(gateway.OpCreate, id, status.Error(codes.AlreadyExists, "schedule already exists"))
	}
	delete(m.stale, id)
	m.entries[id] = &Entry{Schedule: *s, Paused: s.State.Paused, Note: s.State.Note, Version: 1}
	return handle(id), nil
}

func (m *Memory) Update(ctx context.Context, h gateway.Handle, s *gateway.Schedule) error {
	id := h.ID()
	leave, err := m.enter(ctx, gateway.OpUpdate, id)
	if err != nil {
		return err
	}
	defer leave()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || m.stale[id] {
		return notFound(gateway.OpUpdate, id)
	}
	e.Schedule = *s
	e.Paused = s.State.Paused
	e.Note = s.State.Note
	e.Version++
	return nil
}

func (m *Memory) Pause(ctx context.Context, h gateway.Handle, note string) error {
	id := h.ID()
	leave, err := m.enter(ctx, gateway.OpPause, id)
	if err != nil {
		return err
	}
	defer leave()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || m.stale[id] {
		return notFound(gateway.OpPause, id)
	}
	e.Paused = true
	if note != "" {
		e.Note = note
	}
	e.Version++
	return nil
}

func (m *Memory) Delete(ctx context.Context, h gateway.Handle) error {
	id := h.ID()
	leave, err := m.enter(ctx, gateway.OpDelete, id)
	if err != nil {
		return err
	}
	defer leave()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok || m.stale[id] {
		return notFound(gateway.OpDelete, id)
	}
	delete(m.entries, id)
	return nil
}
