package dessim

import (
	randv2 "math/rand/v2"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/exp/slices"
)

// LocalAddr returns the reserved source address used for local injections
// into the node with the given id.
func LocalAddr(id string) string {
	return `local@` + id
}

// System composes a simulation kernel, a network actor registered at
// NetAddr, and a registry of node wrappers keyed by node id. It is the
// intended entry point: registration, fault injection, local I/O, stepping,
// inspection, and model checking all go through the facade.
//
// Passing an unregistered node id to any facade method is a programmer
// error and panics.
type System struct {
	sim     *Simulation
	net     *Network
	nodes   map[string]*NodeActor
	nodeIDs []string
	crashed map[string]struct{}
	seed    uint64
	log     *logiface.Logger[logiface.Event]
	elog    *EventLog
}

// NewSystem builds a system. Without WithSeed, a seed is drawn from a
// process-wide source and echoed through the logger, so any run can be
// reproduced.
func NewSystem(options ...Option) *System {
	var c systemConfig
	for _, o := range options {
		o.apply(&c)
	}

	seed := randv2.Uint64N(999_999) + 1
	if c.seed != nil {
		seed = *c.seed
	}

	x := &System{
		sim:     NewSimulation(seed),
		net:     newNetwork(c.logger, c.eventLog),
		nodes:   make(map[string]*NodeActor),
		crashed: make(map[string]struct{}),
		seed:    seed,
		log:     c.logger,
		elog:    c.eventLog,
	}
	x.sim.AddActor(NetAddr, x.net)
	x.log.Info().Uint64(`seed`, seed).Log(`system created`)
	return x
}

// Seed returns the seed in effect, for reproduction.
func (x *System) Seed() uint64 {
	return x.seed
}

// Time returns the current logical clock.
func (x *System) Time() float64 {
	return x.sim.Time()
}

// Network returns the composed network actor, for direct policy access.
func (x *System) Network() *Network {
	return x.net
}

// Simulation returns the underlying kernel.
func (x *System) Simulation() *Simulation {
	return x.sim
}

func (x *System) nodeActor(id string) *NodeActor {
	actor, ok := x.nodes[id]
	if !ok {
		panic(errUnknownNode(id))
	}
	return actor
}

// AddNode registers node under its id. Re-registering an existing id
// replaces the wrapper wholesale (fresh timers, mailbox, log, counters): if
// the node was previously crashed this is a recover (the crashed flag is
// cleared in the network), otherwise a restart.
func (x *System) AddNode(node Node) {
	id := node.ID()
	actor := newNodeActor(node, x.log, x.elog)
	if _, exists := x.nodes[id]; exists {
		if _, crashed := x.crashed[id]; crashed {
			delete(x.crashed, id)
			x.net.NodeRecovered(id)
			x.log.Debug().Float64(`ts`, x.sim.Time()).Str(`node`, id).Log(`node recovered`)
			x.elog.add(NodeRecoveredEvent{Node: id, Ts: x.sim.Time()})
		} else {
			x.log.Debug().Float64(`ts`, x.sim.Time()).Str(`node`, id).Log(`node restarted`)
			x.elog.add(NodeRestartedEvent{Node: id, Ts: x.sim.Time()})
		}
	} else {
		x.nodeIDs = append(x.nodeIDs, id)
	}
	x.nodes[id] = actor
	x.sim.AddActor(id, actor)
}

// NodeIDs returns the registered node ids, in registration order.
func (x *System) NodeIDs() []string {
	return slices.Clone(x.nodeIDs)
}

// NodeCount returns the number of registered nodes.
func (x *System) NodeCount() int {
	return len(x.nodes)
}

// NodeActor returns the wrapper for the given node id.
func (x *System) NodeActor(id string) *NodeActor {
	return x.nodeActor(id)
}

// CrashNode marks the node crashed: its wrapper stops dispatching, the
// kernel drops events addressed to it, and the network discards its sends.
// Recovery is by re-registering a node instance under the same id.
func (x *System) CrashNode(id string) {
	actor := x.nodeActor(id)
	x.log.Warning().Float64(`ts`, x.sim.Time()).Str(`node`, id).Log(`node crashed`)
	x.crashed[id] = struct{}{}
	actor.Crash()
	x.net.NodeCrashed(id)
	x.elog.add(NodeCrashedEvent{Node: id, Ts: x.sim.Time()})
}

// SetDelay fixes the network transit delay.
func (x *System) SetDelay(delay float64) {
	x.net.SetDelay(delay)
}

// SetDelays sets the network transit delay range.
func (x *System) SetDelays(minDelay, maxDelay float64) {
	x.net.SetDelays(minDelay, maxDelay)
}

// SetDropRate sets the network drop probability.
func (x *System) SetDropRate(dropRate float64) {
	x.net.SetDropRate(dropRate)
}

// SetDuplRate sets the network duplication probability.
func (x *System) SetDuplRate(duplRate float64) {
	x.net.SetDuplRate(duplRate)
}

// SetCorruptRate sets the network corruption probability.
func (x *System) SetCorruptRate(corruptRate float64) {
	x.net.SetCorruptRate(corruptRate)
}

// DropIncoming drops all traffic addressed to id.
func (x *System) DropIncoming(id string) {
	x.net.DropIncoming(id)
}

// PassIncoming reverses DropIncoming.
func (x *System) PassIncoming(id string) {
	x.net.PassIncoming(id)
}

// DropOutgoing drops all traffic originating from id.
func (x *System) DropOutgoing(id string) {
	x.net.DropOutgoing(id)
}

// PassOutgoing reverses DropOutgoing.
func (x *System) PassOutgoing(id string) {
	x.net.PassOutgoing(id)
}

// DisconnectNode drops traffic in both directions for id.
func (x *System) DisconnectNode(id string) {
	x.net.DisconnectNode(id)
	x.elog.add(NodeDisconnectedEvent{Node: id, Ts: x.sim.Time()})
}

// ConnectNode reverses DisconnectNode.
func (x *System) ConnectNode(id string) {
	x.net.ConnectNode(id)
	x.elog.add(NodeConnectedEvent{Node: id, Ts: x.sim.Time()})
}

// DisableLink drops traffic on the directed link from -> to.
func (x *System) DisableLink(from, to string) {
	x.net.DisableLink(from, to)
	x.elog.add(LinkDisabledEvent{Src: from, Dst: to, Ts: x.sim.Time()})
}

// EnableLink reverses DisableLink.
func (x *System) EnableLink(from, to string) {
	x.net.EnableLink(from, to)
	x.elog.add(LinkEnabledEvent{Src: from, Dst: to, Ts: x.sim.Time()})
}

// MakePartition disables every directed link between the two groups.
func (x *System) MakePartition(group1, group2 []string) {
	x.net.MakePartition(group1, group2)
	x.elog.add(NetworkPartitionEvent{
		Group1: slices.Clone(group1),
		Group2: slices.Clone(group2),
		Ts:     x.sim.Time(),
	})
}

// ResetNetwork clears the drop-incoming/outgoing sets and all disabled
// links; the delay range, rate knobs, and crashed-node status persist.
func (x *System) ResetNetwork() {
	x.net.Reset()
}

// Send injects a MessageSend from src to dst, as though src had sent it.
func (x *System) Send(msg Message, src, dst string) {
	x.sim.AddEvent(MessageSend{Msg: msg, Src: src, Dst: dst}, src, NetAddr, 0)
}

// SendLocal injects an external input for the node dst, delivered at the
// current time from the reserved local@<id> address.
func (x *System) SendLocal(msg Message, dst string) {
	x.nodeActor(dst) // fail loudly on unknown ids
	x.sim.AddEvent(LocalMessageReceive{Msg: msg}, LocalAddr(dst), dst, 0)
}

// Step dispatches the next pending event, returning false when the queue is
// empty.
func (x *System) Step() bool {
	return x.sim.Step()
}

// Steps runs up to n steps, returning false if the queue emptied early.
func (x *System) Steps(n int) bool {
	return x.sim.Steps(n)
}

// StepUntilNoEvents runs to quiescence.
func (x *System) StepUntilNoEvents() {
	x.sim.StepUntilNoEvents()
}

// StepForDuration runs until the clock has advanced by at least duration, or
// the queue empties.
func (x *System) StepForDuration(duration float64) {
	x.sim.StepForDuration(duration)
}

// StepUntilLocalMessage steps until the mailbox of id is non-empty,
// returning the drained messages. If the queue empties first, or maxSteps
// (when positive) is exhausted, it returns ErrNoMessages.
func (x *System) StepUntilLocalMessage(id string, maxSteps int) ([]Message, error) {
	actor := x.nodeActor(id)
	for steps := 0; actor.CountLocalMessages() == 0; steps++ {
		if maxSteps > 0 && steps >= maxSteps {
			return nil, ErrNoMessages
		}
		if !x.Step() {
			return nil, ErrNoMessages
		}
	}
	return actor.ReadLocalMessages(), nil
}

// CountLocalMessages returns the number of messages awaiting collection in
// the mailbox of id.
func (x *System) CountLocalMessages(id string) int {
	return x.nodeActor(id).CountLocalMessages()
}

// ReadLocalMessages drains and returns the mailbox of id.
func (x *System) ReadLocalMessages(id string) []Message {
	return x.nodeActor(id).ReadLocalMessages()
}

// GetLocalEvents returns a copy of the local-events log of id.
func (x *System) GetLocalEvents(id string) []LocalEvent {
	return x.nodeActor(id).LocalEvents()
}

// SentMessageCount returns the number of sends issued by id.
func (x *System) SentMessageCount(id string) uint64 {
	return x.nodeActor(id).SentMessageCount()
}

// ReceivedMessageCount returns the number of deliveries dispatched to id.
func (x *System) ReceivedMessageCount(id string) uint64 {
	return x.nodeActor(id).ReceivedMessageCount()
}

// SetClockSkew sets the additive clock-skew offset of id. Skew affects only
// the node-visible time (Context.Time and local-event timestamps); kernel
// ordering always uses true time.
func (x *System) SetClockSkew(id string, skew float64) {
	x.nodeActor(id).SetClockSkew(skew)
}

// CountUndeliveredEvents drains the undelivered-events log and returns its
// size.
func (x *System) CountUndeliveredEvents() int {
	return len(x.sim.ReadUndeliveredEvents())
}

// ReadUndeliveredEvents drains and returns the undelivered-events log.
func (x *System) ReadUndeliveredEvents() []EventEntry {
	return x.sim.ReadUndeliveredEvents()
}

// StartModelChecking seeds the checker's DFS frame with a copy of the
// kernel's pending events and explores every selection order, bounded by
// the wall-clock limit. False means a schedule violating check was found;
// the trace is then available via ReadModelCheckingTrace. True means no
// counterexample was found within the budget, not that the system was
// verified.
func (x *System) StartModelChecking(check CheckFunc, limit time.Duration) bool {
	x.log.Info().Float64(`ts`, x.sim.Time()).Dur(`limit`, limit).Log(`model checking started`)
	ok := x.sim.RunModelChecking(check, limit)
	x.log.Info().Bool(`ok`, ok).Log(`model checking finished`)
	return ok
}

// ReadModelCheckingTrace drains the counterexample trace recorded by the
// most recent failed check, in schedule order.
func (x *System) ReadModelCheckingTrace() []string {
	return x.sim.ReadModelCheckingTrace()
}
