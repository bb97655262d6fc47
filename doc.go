// Package dessim implements a deterministic discrete-event simulator for
// distributed algorithms, augmented with a bounded state-space model checker.
//
// A simulated system is a set of user-authored nodes that exchange messages
// over a lossy virtual network, set timers, and emit local outputs. The
// package supports two execution modes sharing the same step semantics:
//
//   - Run one pseudo-random trajectory to completion, reproducible from a
//     seed ([System.StepUntilNoEvents] and friends).
//   - Exhaustively explore every event-selection order reachable from the
//     current state, searching for a schedule that violates a user-supplied
//     invariant and reporting a minimal violating trace
//     ([System.StartModelChecking]).
//
// # Architecture
//
// The [Simulation] kernel owns the logical clock, the seeded PRNG, the actor
// registry, and a priority-ordered event queue keyed by (time, id). Event
// dispatch order is total and deterministic: ties on time break on insertion
// id. Handlers run to completion on a single logical thread; simulated
// concurrency is an illusion produced by interleaving handler invocations
// along the timeline.
//
// A [Node] is adapted to the kernel's [Actor] protocol by a wrapper that
// maintains its timers, mailbox, local-event log, delivery counters, and
// crash status. The [Network] actor sits between senders and receivers,
// applying configurable delay, drop, duplication, corruption, link-disable,
// and partition policies. The [System] facade composes all of the above and
// is the intended entry point.
//
// # Determinism
//
// Given the same seed and initial events, two runs produce identical dispatch
// sequences and identical final state. Nothing in the kernel consults the
// wall clock, ambient I/O, or goroutine-local state; randomness is consumed
// exclusively through the per-dispatch handler context. The model checker
// relies on this: it snapshots actor state, the cancellation set, the event
// counter, and the PRNG, and restores all four across alternative orderings.
//
// # Model checking
//
// [System.StartModelChecking] explores permutations of the pending event set
// depth-first, bounded by a wall-clock budget. A true result means no
// counterexample was found within the budget: it is NOT a verification
// claim. A false result comes with a human-readable trace of the violating
// schedule, available via [System.ReadModelCheckingTrace]. Worst-case cost is
// factorial in the number of in-flight events; keep configurations small.
//
// # Observability
//
// The simulator logs through github.com/joeycumines/logiface; see
// [WithLogger]. An optional line-delimited event log consumable by an
// external visualizer is produced via [WithEventLog]. Scripted nodes are
// supported by the gojanode subpackage, and the dessimtest subpackage
// provides a scenario harness.
package dessim
