package dessim

import (
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/rand"
	"golang.org/x/exp/slices"
)

type (
	// Simulation is the event-scheduling kernel. It owns the logical clock,
	// the seeded PRNG, the actor registry, the pending event queue, the
	// cancellation set, and the undelivered-events log.
	//
	// The kernel is strictly single-threaded: events dispatch serially in
	// (time, id) order, handlers run to completion, and the clock advances
	// only on dispatch. Instances must be created via NewSimulation.
	Simulation struct {
		clock       float64
		actors      map[string]Actor
		queue       eventQueue
		canceled    map[uint64]struct{}
		undelivered []EventEntry
		eventCount  uint64
		src         *rand.PCGSource
		rng         *rand.Rand
		mcTrace     []string
	}

	// simSnapshot captures the restorable portion of the kernel for the
	// model checker: actor states, the cancellation set, the event counter,
	// and the PRNG. The queue is deliberately absent: during checking the
	// pending set is represented explicitly by the DFS frame, and the clock
	// is not restored (each step sets it to the time of the entry it
	// dispatches).
	simSnapshot struct {
		actors     map[string]any
		canceled   map[uint64]struct{}
		eventCount uint64
		rng        []byte
	}
)

// NewSimulation returns a kernel seeded with the given value. The same seed
// and initial events always reproduce the same run.
func NewSimulation(seed uint64) *Simulation {
	src := new(rand.PCGSource)
	src.Seed(seed)
	return &Simulation{
		actors:   make(map[string]Actor),
		canceled: make(map[uint64]struct{}),
		src:      src,
		rng:      rand.New(src),
	}
}

// Time returns the current logical clock.
func (x *Simulation) Time() float64 {
	return x.clock
}

// AddActor registers an actor under the given address, replacing any
// previous registration.
func (x *Simulation) AddActor(addr string, actor Actor) {
	x.actors[addr] = actor
}

// Actor returns the actor registered at addr, or nil.
func (x *Simulation) Actor(addr string) Actor {
	return x.actors[addr]
}

// Actors exposes the live actor registry. Callers must treat it as
// read-only; it exists so invariant predicates can inspect actor state.
func (x *Simulation) Actors() map[string]Actor {
	return x.actors
}

// AddEvent schedules event for dispatch to dst after delay, committing it to
// the pending queue, and returns the assigned id.
func (x *Simulation) AddEvent(event Event, src, dst string, delay float64) uint64 {
	return x.addEvent(event, src, dst, delay, nil)
}

// addEvent assigns the next id and routes the entry either to the committed
// queue or, during model checking, to the DFS frame.
func (x *Simulation) addEvent(event Event, src, dst string, delay float64, mc *[]EventEntry) uint64 {
	checkDelay(delay)
	t := x.clock + delay
	if math.IsNaN(t) {
		panic(fmt.Errorf(`dessim: event time is NaN`))
	}
	entry := EventEntry{
		ID:    x.eventCount,
		Time:  t,
		Src:   src,
		Dst:   dst,
		Event: event,
	}
	if mc != nil {
		*mc = append(*mc, entry)
	} else {
		x.queue.push(entry)
	}
	x.eventCount++
	return entry.ID
}

// CancelEvent marks the event with the given id as canceled. The entry stays
// queued and is discarded when popped. Canceling an unknown or already
// dispatched id is a no-op.
func (x *Simulation) CancelEvent(id uint64) {
	x.canceled[id] = struct{}{}
}

// Step dispatches the next pending event. It returns false only when the
// queue is empty; a step that discards a canceled entry still returns true.
func (x *Simulation) Step() bool {
	return x.step(nil)
}

// step is the shared substrate of both execution modes. With a non-nil mc
// frame it pops from the frame's tail instead of the committed queue, and
// handler emissions land in the frame: committed queue mutations are
// forbidden during checking.
func (x *Simulation) step(mc *[]EventEntry) bool {
	var (
		e  EventEntry
		ok bool
	)
	if mc != nil {
		if n := len(*mc); n != 0 {
			e = (*mc)[n-1]
			*mc = (*mc)[:n-1]
			ok = true
		}
	} else {
		e, ok = x.queue.popMin()
	}
	if !ok {
		return false
	}

	if _, canceled := x.canceled[e.ID]; canceled {
		delete(x.canceled, e.ID)
		return true
	}

	x.clock = e.Time

	actor, registered := x.actors[e.Dst]
	if !registered {
		x.undelivered = append(x.undelivered, e)
		return true
	}
	if !actor.IsActive() {
		// crashed actor: drop silently
		return true
	}

	ctx := ActorContext{
		Addr:        e.Dst,
		time:        x.clock,
		rng:         x.rng,
		nextEventID: x.eventCount,
	}
	actor.On(e.Event, &ctx)

	for _, ce := range ctx.events {
		x.addEvent(ce.event, e.Dst, ce.dst, ce.delay, mc)
	}
	for _, id := range ctx.canceled {
		x.CancelEvent(id)
	}
	return true
}

// Steps runs up to n steps, returning false if the queue emptied early.
func (x *Simulation) Steps(n int) bool {
	for i := 0; i < n; i++ {
		if !x.Step() {
			return false
		}
	}
	return true
}

// StepUntilNoEvents runs to quiescence.
func (x *Simulation) StepUntilNoEvents() {
	for x.Step() {
	}
}

// StepForDuration runs until the clock has advanced by at least duration
// from its value at the call, or the queue empties.
func (x *Simulation) StepForDuration(duration float64) {
	end := x.clock + duration
	for x.Step() && x.clock < end {
	}
}

// PendingEvents returns a copy of the committed queue contents, in no
// particular order. The model checker seeds its DFS frame from this.
func (x *Simulation) PendingEvents() []EventEntry {
	return x.queue.entries()
}

// ReadUndeliveredEvents drains and returns the undelivered-events log:
// events whose destination address had no registered actor at dispatch.
// These are collected, not errors.
func (x *Simulation) ReadUndeliveredEvents() []EventEntry {
	out := x.undelivered
	x.undelivered = nil
	return out
}

// snapshot captures actor state, the cancellation set, the event counter,
// and the PRNG.
func (x *Simulation) snapshot() simSnapshot {
	s := simSnapshot{
		actors:     make(map[string]any, len(x.actors)),
		canceled:   maps.Clone(x.canceled),
		eventCount: x.eventCount,
	}
	keys := maps.Keys(x.actors)
	slices.Sort(keys)
	for _, addr := range keys {
		s.actors[addr] = x.actors[addr].Snapshot()
	}
	rng, err := x.src.MarshalBinary()
	if err != nil {
		panic(fmt.Errorf(`dessim: snapshot rng: %w`, err))
	}
	s.rng = rng
	return s
}

// restore reinstates a snapshot taken from this kernel.
func (x *Simulation) restore(s simSnapshot) {
	keys := maps.Keys(s.actors)
	slices.Sort(keys)
	for _, addr := range keys {
		x.actors[addr].Restore(s.actors[addr])
	}
	x.canceled = maps.Clone(s.canceled)
	x.eventCount = s.eventCount
	if err := x.src.UnmarshalBinary(s.rng); err != nil {
		panic(fmt.Errorf(`dessim: restore rng: %w`, err))
	}
}
