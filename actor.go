package dessim

import (
	"math"

	"golang.org/x/exp/rand"
)

type (
	// Actor is an addressable reactive object invoked by the kernel with
	// one event at a time. Actors are registered once and persist; a
	// "crashed" actor stays registered and reports IsActive false, causing
	// the kernel to silently drop events addressed to it.
	//
	// Snapshot and Restore exist for the model checker. Snapshot must
	// return a full semantic clone of the actor's state: restoring it must
	// yield an observationally equal actor. The returned value is opaque to
	// the kernel.
	Actor interface {
		On(event Event, ctx *ActorContext)
		IsActive() bool
		Snapshot() any
		Restore(state any)
	}

	// ActorContext is the handle through which a handler observes and
	// mutates the simulation. All emissions and cancellations requested
	// during a handler run are buffered here and applied by the kernel
	// after the handler returns; nothing touches the committed queue
	// mid-handler.
	ActorContext struct {
		// Addr is the address of the actor currently being dispatched.
		Addr string

		time        float64
		rng         *rand.Rand
		nextEventID uint64
		events      []ctxEvent
		canceled    []uint64
	}

	// ctxEvent is a buffered emission: the src is filled in by the kernel
	// as the dispatching actor's address.
	ctxEvent struct {
		event Event
		dst   string
		delay float64
	}
)

// Time returns the kernel clock as of the dispatch of the current event.
// It does not advance during handler execution.
func (x *ActorContext) Time() float64 {
	return x.time
}

// Rand returns a pseudo-random float64 in [0, 1) drawn from the kernel's
// seeded PRNG. Draws are part of the deterministic event order: the same
// seed and schedule always yield the same sequence.
func (x *ActorContext) Rand() float64 {
	return x.rng.Float64()
}

// Emit schedules event for dispatch to dst after delay, returning the id the
// entry will be assigned. The emission is buffered until the handler returns.
// Delay must be finite and non-negative; NaN is forbidden anywhere time is
// involved.
func (x *ActorContext) Emit(event Event, dst string, delay float64) uint64 {
	checkDelay(delay)
	x.events = append(x.events, ctxEvent{event: event, dst: dst, delay: delay})
	id := x.nextEventID
	x.nextEventID++
	return id
}

// CancelEvent requests lazy cancellation of the event with the given id.
// Canceling an id absent from the queue is a no-op; cancellation is
// idempotent.
func (x *ActorContext) CancelEvent(id uint64) {
	x.canceled = append(x.canceled, id)
}

func checkDelay(delay float64) {
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay < 0 {
		panic(errInvalidDelay(delay))
	}
}
