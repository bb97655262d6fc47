package dessim

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

// CheckFunc is an invariant predicate over the actor registry. It must
// return true while the system is still consistent. Predicates typically
// type-assert entries to *NodeActor to reach node-level state; see
// NodeActor.LocalEvents.
type CheckFunc func(actors map[string]Actor) bool

// RunModelChecking explores every event-selection order reachable from the
// current pending queue, depth-first, bounded by the given wall-clock
// budget. It returns false iff a state violating check is reachable within
// the budget; the violating schedule is then available via
// ReadModelCheckingTrace.
//
// A true result is NOT a verification claim: on budget exhaustion the
// checker returns true vacuously, meaning only that no counterexample was
// found in time.
//
// Worst-case cost is O(k! * step) for k pending events. Keep k small.
func (x *Simulation) RunModelChecking(check CheckFunc, limit time.Duration) bool {
	events := x.PendingEvents()
	// pending order is heap order; make the frame deterministic
	slices.SortFunc(events, func(a, b EventEntry) int {
		if a.before(b) {
			return -1
		}
		return 1
	})
	deadline := time.Now().Add(limit)
	return x.modelCheckingStep(check, deadline, &events)
}

// modelCheckingStep recursively tries each frame position as "next". For
// each choice it snapshots the kernel, consumes the chosen event through the
// shared step substrate (emissions land in the frame, not the committed
// queue), recurses, then unwinds: appended events are discarded, the chosen
// event returns to its original position, and the snapshot is restored.
//
// The trace is accumulated tail-first as the recursion unwinds; callers read
// it reversed.
func (x *Simulation) modelCheckingStep(check CheckFunc, deadline time.Time, events *[]EventEntry) bool {
	k := len(*events)
	if k == 0 {
		return check(x.actors)
	}
	for i := 0; i < k; i++ {
		if !time.Now().Before(deadline) {
			return true
		}

		snap := x.snapshot()

		evt := (*events)[i]
		*events = slices.Delete(*events, i, i+1)
		// sentinel: step consumes from the tail
		*events = append(*events, evt)
		x.step(events)

		ok := x.modelCheckingStep(check, deadline, events)
		if !ok {
			x.mcTrace = append(x.mcTrace, mcTraceLine(evt))
		}

		// unwind: drop anything emitted under this choice, put the chosen
		// event back, and restore the kernel
		for len(*events) >= k {
			*events = (*events)[:len(*events)-1]
		}
		*events = slices.Insert(*events, i, evt)
		x.restore(snap)

		if !ok {
			return false
		}
	}
	return true
}

// ReadModelCheckingTrace drains the recorded counterexample trace, reversed
// into schedule order (the checker records it tail-to-head).
func (x *Simulation) ReadModelCheckingTrace() []string {
	out := x.mcTrace
	x.mcTrace = nil
	slices.Reverse(out)
	return out
}

func mcTraceLine(e EventEntry) string {
	var kind, text1, text2 string
	switch event := e.Event.(type) {
	case MessageSend:
		kind, text1, text2 = `message_send`, event.Msg.Tag, event.Msg.Data
	case MessageReceive:
		kind, text1, text2 = `message_receive`, event.Msg.Tag, event.Msg.Data
	case LocalMessageReceive:
		kind, text1, text2 = `local_message_receive`, event.Msg.Tag, event.Msg.Data
	case TimerFired:
		kind, text1 = `timer_fired`, event.Name
	}
	return fmt.Sprintf(`%9.3f %15s --> %-15s %-25s %-10s %s`,
		e.Time, e.Src, e.Dst, kind, text1, text2)
}
