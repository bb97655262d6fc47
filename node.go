package dessim

import (
	"github.com/joeycumines/logiface"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// Node is a user-authored distributed-algorithm component. The
	// simulator never introspects node state beyond the two serialization
	// hooks; SnapshotState must return a full semantic clone, and
	// RestoreState must accept a value previously returned by
	// SnapshotState on the same (or an equivalent) node.
	Node interface {
		ID() string
		OnMessage(msg Message, from string, ctx *Context)
		OnLocalMessage(msg Message, ctx *Context)
		OnTimer(name string, ctx *Context)
		SnapshotState() any
		RestoreState(state any)
	}

	// LocalEventType distinguishes the two directions of a node's local
	// boundary.
	LocalEventType int

	// LocalEvent is one entry of a node's local-events log: a message
	// crossing the node's local boundary, stamped with the node-visible
	// time (true kernel time plus the node's clock skew).
	LocalEvent struct {
		Type LocalEventType
		Msg  Message
		Time float64
	}

	// Context is the handler context seen by node code. It narrows the
	// kernel's ActorContext to the node surface: sending, local output,
	// timers, node-visible time, and seeded randomness.
	Context struct {
		actor *NodeActor
		ctx   *ActorContext
	}

	nodeStatus int

	// NodeActor adapts a Node to the kernel's Actor protocol. It maintains
	// the node's timer registry, collection mailbox, local-events log,
	// sent/received counters, clock-skew offset, and crash status.
	//
	// Invariant predicates passed to the model checker may type-assert
	// registry entries to *NodeActor to reach this state.
	NodeActor struct {
		node        Node
		timers      map[string]uint64
		localEvents []LocalEvent
		mailbox     *ringBuffer[Message]
		status      nodeStatus
		sentCount   uint64
		recvCount   uint64
		clockSkew   float64
		log         *logiface.Logger[logiface.Event]
		elog        *EventLog
	}

	// nodeActorSnapshot is the opaque deep clone returned by
	// NodeActor.Snapshot.
	nodeActorSnapshot struct {
		node        any
		timers      map[string]uint64
		localEvents []LocalEvent
		mailbox     *ringBuffer[Message]
		status      nodeStatus
		sentCount   uint64
		recvCount   uint64
		clockSkew   float64
	}
)

const (
	// LocalMessageSend records a message the node emitted at its local
	// boundary (via Context.SendLocal).
	LocalMessageSend LocalEventType = iota
	// LocalMessageReceived records an external input delivered to the node
	// (via System.SendLocal).
	LocalMessageReceived
)

const (
	statusHealthy nodeStatus = iota
	statusCrashed
)

const mailboxInitialSize = 8

func newNodeActor(node Node, log *logiface.Logger[logiface.Event], elog *EventLog) *NodeActor {
	return &NodeActor{
		node:    node,
		timers:  make(map[string]uint64),
		mailbox: newRingBuffer[Message](mailboxInitialSize),
		log:     log,
		elog:    elog,
	}
}

// Time returns the node-visible time: kernel time plus this node's clock
// skew. Kernel ordering always uses true time; the skew is observational.
func (x *Context) Time() float64 {
	return x.ctx.Time() + x.actor.clockSkew
}

// Rand returns a pseudo-random float64 in [0, 1) from the kernel's seeded
// PRNG.
func (x *Context) Rand() float64 {
	return x.ctx.Rand()
}

// Send addresses msg to the node dst. A self-addressed send short-circuits:
// the message is emitted directly as a zero-delay MessageReceive, bypassing
// the network entirely (its counters are unaffected).
func (x *Context) Send(msg Message, dst string) {
	src := x.ctx.Addr
	x.actor.log.Trace().
		Float64(`ts`, x.ctx.Time()).
		Str(`src`, src).
		Str(`dst`, dst).
		Stringer(`msg`, msg).
		Log(`message send`)
	x.actor.elog.add(MessageSendEvent{Msg: msg, Src: src, Dst: dst, Ts: x.ctx.Time()})
	if src == dst {
		x.ctx.Emit(MessageReceive{Msg: msg, Src: src, Dst: dst}, dst, 0)
	} else {
		x.ctx.Emit(MessageSend{Msg: msg, Src: src, Dst: dst}, NetAddr, 0)
	}
	x.actor.sentCount++
}

// SendLocal emits msg at the node's local boundary: it is appended to both
// the local-events log and the collection mailbox, for the embedder to drain
// via System.ReadLocalMessages.
func (x *Context) SendLocal(msg Message) {
	x.actor.log.Trace().
		Float64(`ts`, x.ctx.Time()).
		Str(`src`, x.ctx.Addr).
		Str(`dst`, `local`).
		Stringer(`msg`, msg).
		Log(`local message send`)
	x.actor.elog.add(LocalMessageSendEvent{Msg: msg, Dst: x.ctx.Addr, Ts: x.ctx.Time()})
	x.actor.localEvents = append(x.actor.localEvents, LocalEvent{
		Type: LocalMessageSend,
		Msg:  msg,
		Time: x.Time(),
	})
	x.actor.mailbox.Append(msg)
}

// SetTimer schedules (or reschedules) the named timer. Setting a name that
// is already pending replaces the earlier schedule: the old event is
// canceled and a new one emitted.
func (x *Context) SetTimer(name string, delay float64) {
	if id, ok := x.actor.timers[name]; ok {
		x.ctx.CancelEvent(id)
	}
	id := x.ctx.Emit(TimerFired{Name: name}, x.ctx.Addr, delay)
	x.actor.timers[name] = id
	x.actor.elog.add(TimerSetEvent{Name: name, Delay: delay, Node: x.ctx.Addr, Ts: x.ctx.Time()})
}

// CancelTimer cancels the named timer, if pending. Cancellation is
// idempotent.
func (x *Context) CancelTimer(name string) {
	if id, ok := x.actor.timers[name]; ok {
		delete(x.actor.timers, name)
		x.ctx.CancelEvent(id)
	}
}

// On implements Actor.
func (x *NodeActor) On(event Event, ctx *ActorContext) {
	if x.status != statusHealthy {
		return
	}
	nodeCtx := Context{actor: x, ctx: ctx}
	switch e := event.(type) {
	case MessageReceive:
		x.log.Trace().
			Float64(`ts`, ctx.Time()).
			Str(`src`, e.Src).
			Str(`dst`, e.Dst).
			Stringer(`msg`, e.Msg).
			Log(`message receive`)
		x.elog.add(MessageReceiveEvent{Msg: e.Msg, Src: e.Src, Dst: e.Dst, Ts: ctx.Time()})
		x.recvCount++
		x.node.OnMessage(e.Msg, e.Src, &nodeCtx)
	case LocalMessageReceive:
		x.log.Trace().
			Float64(`ts`, ctx.Time()).
			Str(`src`, `local`).
			Str(`dst`, ctx.Addr).
			Stringer(`msg`, e.Msg).
			Log(`local message receive`)
		x.elog.add(LocalMessageReceiveEvent{Msg: e.Msg, Dst: ctx.Addr, Ts: ctx.Time()})
		x.localEvents = append(x.localEvents, LocalEvent{
			Type: LocalMessageReceived,
			Msg:  e.Msg,
			Time: nodeCtx.Time(),
		})
		x.node.OnLocalMessage(e.Msg, &nodeCtx)
	case TimerFired:
		// remove before invoking user code, so the handler may re-set it
		delete(x.timers, e.Name)
		x.log.Trace().
			Float64(`ts`, ctx.Time()).
			Str(`node`, ctx.Addr).
			Str(`timer`, e.Name).
			Log(`timer fired`)
		x.elog.add(TimerFiredEvent{Name: e.Name, Node: ctx.Addr, Ts: ctx.Time()})
		x.node.OnTimer(e.Name, &nodeCtx)
	}
}

// IsActive implements Actor; the kernel drops events addressed to inactive
// actors.
func (x *NodeActor) IsActive() bool {
	return x.status == statusHealthy
}

// Crash flips the node to crashed. Timers already scheduled stay queued and
// become no-ops on dispatch.
func (x *NodeActor) Crash() {
	x.status = statusCrashed
}

// Node returns the wrapped node.
func (x *NodeActor) Node() Node {
	return x.node
}

// CountLocalMessages returns the number of messages awaiting collection in
// the mailbox.
func (x *NodeActor) CountLocalMessages() int {
	return x.mailbox.Len()
}

// ReadLocalMessages drains and returns the mailbox.
func (x *NodeActor) ReadLocalMessages() []Message {
	return x.mailbox.Drain()
}

// LocalEvents returns a copy of the node's local-events log.
func (x *NodeActor) LocalEvents() []LocalEvent {
	return slices.Clone(x.localEvents)
}

// SentMessageCount returns the number of sends issued by the node.
func (x *NodeActor) SentMessageCount() uint64 {
	return x.sentCount
}

// ReceivedMessageCount returns the number of message deliveries dispatched
// to the node.
func (x *NodeActor) ReceivedMessageCount() uint64 {
	return x.recvCount
}

// SetClockSkew sets the node's additive clock-skew offset.
func (x *NodeActor) SetClockSkew(skew float64) {
	x.clockSkew = skew
}

// ClockSkew returns the node's additive clock-skew offset.
func (x *NodeActor) ClockSkew() float64 {
	return x.clockSkew
}

// Snapshot implements Actor, deep-cloning the wrapper state and delegating
// node state to Node.SnapshotState.
func (x *NodeActor) Snapshot() any {
	return nodeActorSnapshot{
		node:        x.node.SnapshotState(),
		timers:      maps.Clone(x.timers),
		localEvents: slices.Clone(x.localEvents),
		mailbox:     x.mailbox.clone(),
		status:      x.status,
		sentCount:   x.sentCount,
		recvCount:   x.recvCount,
		clockSkew:   x.clockSkew,
	}
}

// Restore implements Actor.
func (x *NodeActor) Restore(state any) {
	s := state.(nodeActorSnapshot)
	x.node.RestoreState(s.node)
	x.timers = maps.Clone(s.timers)
	x.localEvents = slices.Clone(s.localEvents)
	x.mailbox = s.mailbox.clone()
	x.status = s.status
	x.sentCount = s.sentCount
	x.recvCount = s.recvCount
	x.clockSkew = s.clockSkew
}
