package dessim

import (
	"math"

	"github.com/joeycumines/logiface"
	"golang.org/x/exp/maps"
)

// NetAddr is the reserved address of the network actor.
const NetAddr = `net`

type (
	link struct {
		from string
		to   string
	}

	// Network is the actor that carries messages between nodes, applying
	// the configured delay, drop, duplication, corruption, link-disable,
	// and partition policies. It handles MessageSend events only; all
	// other event kinds are ignored.
	//
	// FIFO is NOT guaranteed: random jitter combined with (time, id)
	// reordering means two sends A then B can arrive B first whenever
	// A draws the longer delay. Nodes must tolerate this.
	Network struct {
		minDelay      float64
		maxDelay      float64
		dropRate      float64
		duplRate      float64
		corruptRate   float64
		crashedNodes  map[string]struct{}
		dropIncoming  map[string]struct{}
		dropOutgoing  map[string]struct{}
		disabledLinks map[link]struct{}
		msgCount      uint64
		traffic       uint64
		log           *logiface.Logger[logiface.Event]
		elog          *EventLog
	}

	networkSnapshot struct {
		minDelay      float64
		maxDelay      float64
		dropRate      float64
		duplRate      float64
		corruptRate   float64
		crashedNodes  map[string]struct{}
		dropIncoming  map[string]struct{}
		dropOutgoing  map[string]struct{}
		disabledLinks map[link]struct{}
		msgCount      uint64
		traffic       uint64
	}
)

func newNetwork(log *logiface.Logger[logiface.Event], elog *EventLog) *Network {
	return &Network{
		minDelay:      1,
		maxDelay:      1,
		crashedNodes:  make(map[string]struct{}),
		dropIncoming:  make(map[string]struct{}),
		dropOutgoing:  make(map[string]struct{}),
		disabledLinks: make(map[link]struct{}),
		log:           log,
		elog:          elog,
	}
}

// SetDelay fixes the transit delay (min == max, no jitter).
func (x *Network) SetDelay(delay float64) {
	x.SetDelays(delay, delay)
}

// SetDelays sets the transit delay range; each delivery draws uniformly from
// [min, max].
func (x *Network) SetDelays(minDelay, maxDelay float64) {
	checkDelay(minDelay)
	checkDelay(maxDelay)
	x.minDelay = minDelay
	x.maxDelay = maxDelay
}

// SetDropRate sets the probability that a message is dropped in transit.
func (x *Network) SetDropRate(dropRate float64) {
	x.dropRate = dropRate
}

// SetDuplRate sets the probability that a delivery is duplicated.
func (x *Network) SetDuplRate(duplRate float64) {
	x.duplRate = duplRate
}

// SetCorruptRate sets the probability that a delivered payload is corrupted
// in transit; see Message.Corrupt.
func (x *Network) SetCorruptRate(corruptRate float64) {
	x.corruptRate = corruptRate
}

// NodeCrashed marks a source address as crashed; its sends are discarded.
func (x *Network) NodeCrashed(id string) {
	x.crashedNodes[id] = struct{}{}
}

// NodeRecovered clears the crashed mark.
func (x *Network) NodeRecovered(id string) {
	delete(x.crashedNodes, id)
}

// DropIncoming drops all traffic addressed to id.
func (x *Network) DropIncoming(id string) {
	x.dropIncoming[id] = struct{}{}
}

// PassIncoming reverses DropIncoming.
func (x *Network) PassIncoming(id string) {
	delete(x.dropIncoming, id)
}

// DropOutgoing drops all traffic originating from id.
func (x *Network) DropOutgoing(id string) {
	x.dropOutgoing[id] = struct{}{}
}

// PassOutgoing reverses DropOutgoing.
func (x *Network) PassOutgoing(id string) {
	delete(x.dropOutgoing, id)
}

// DisconnectNode drops traffic in both directions for id.
func (x *Network) DisconnectNode(id string) {
	x.dropIncoming[id] = struct{}{}
	x.dropOutgoing[id] = struct{}{}
}

// ConnectNode reverses DisconnectNode.
func (x *Network) ConnectNode(id string) {
	delete(x.dropIncoming, id)
	delete(x.dropOutgoing, id)
}

// DisableLink drops traffic on the directed link from -> to.
func (x *Network) DisableLink(from, to string) {
	x.disabledLinks[link{from: from, to: to}] = struct{}{}
}

// EnableLink reverses DisableLink.
func (x *Network) EnableLink(from, to string) {
	delete(x.disabledLinks, link{from: from, to: to})
}

// MakePartition disables every directed link between the two groups, in both
// directions. Links within each group are untouched.
func (x *Network) MakePartition(group1, group2 []string) {
	for _, n1 := range group1 {
		for _, n2 := range group2 {
			x.disabledLinks[link{from: n1, to: n2}] = struct{}{}
			x.disabledLinks[link{from: n2, to: n1}] = struct{}{}
		}
	}
}

// Reset clears the drop-incoming/outgoing sets and all disabled links. The
// delay range, the rate knobs, and the crashed set are NOT reset.
func (x *Network) Reset() {
	x.dropIncoming = make(map[string]struct{})
	x.dropOutgoing = make(map[string]struct{})
	x.disabledLinks = make(map[link]struct{})
}

// MessageCount returns the number of sends observed by the network,
// including dropped ones (but not discards from crashed senders).
func (x *Network) MessageCount() uint64 {
	return x.msgCount
}

// Traffic returns the total bytes observed in transit, per Message.Size.
func (x *Network) Traffic() uint64 {
	return x.traffic
}

// On implements Actor.
//
// RNG discipline: every non-discarded send consumes the drop-gate draw. A
// send that is not dropped then consumes the delay draw, the corruption
// draw, and the duplication draw exactly once each, even when min == max or
// a rate is zero. A dropped send consumes no further draws, and the
// duplication-count draw is taken only when duplication fires.
func (x *Network) On(event Event, ctx *ActorContext) {
	e, ok := event.(MessageSend)
	if !ok {
		return
	}

	if _, crashed := x.crashedNodes[e.Src]; crashed {
		x.log.Debug().
			Float64(`ts`, ctx.Time()).
			Str(`src`, e.Src).
			Str(`dst`, e.Dst).
			Stringer(`msg`, e.Msg).
			Log(`discarded message from crashed node`)
		x.elog.add(MessageDiscardedEvent{Msg: e.Msg, Src: e.Src, Dst: e.Dst, Ts: ctx.Time()})
		return
	}

	x.msgCount++
	x.traffic += e.Msg.Size()

	dropped := ctx.Rand() < x.dropRate
	if !dropped {
		if _, drop := x.dropOutgoing[e.Src]; drop {
			dropped = true
		}
	}
	if !dropped {
		if _, drop := x.dropIncoming[e.Dst]; drop {
			dropped = true
		}
	}
	if !dropped {
		if _, drop := x.disabledLinks[link{from: e.Src, to: e.Dst}]; drop {
			dropped = true
		}
	}
	if dropped {
		x.log.Debug().
			Float64(`ts`, ctx.Time()).
			Str(`src`, e.Src).
			Str(`dst`, e.Dst).
			Stringer(`msg`, e.Msg).
			Log(`dropped message`)
		x.elog.add(MessageDroppedEvent{Msg: e.Msg, Src: e.Src, Dst: e.Dst, Ts: ctx.Time()})
		return
	}

	delay := x.minDelay + ctx.Rand()*(x.maxDelay-x.minDelay)

	msg := e.Msg
	if ctx.Rand() < x.corruptRate {
		msg.Corrupt()
	}

	receive := MessageReceive{Msg: msg, Src: e.Src, Dst: e.Dst}
	if ctx.Rand() >= x.duplRate {
		ctx.Emit(receive, e.Dst, delay)
	} else {
		dups := int(math.Ceil(ctx.Rand()*2)) + 1
		for i := 0; i < dups; i++ {
			ctx.Emit(receive, e.Dst, delay)
		}
	}
}

// IsActive implements Actor; the network never crashes.
func (x *Network) IsActive() bool {
	return true
}

// Snapshot implements Actor.
func (x *Network) Snapshot() any {
	return networkSnapshot{
		minDelay:      x.minDelay,
		maxDelay:      x.maxDelay,
		dropRate:      x.dropRate,
		duplRate:      x.duplRate,
		corruptRate:   x.corruptRate,
		crashedNodes:  maps.Clone(x.crashedNodes),
		dropIncoming:  maps.Clone(x.dropIncoming),
		dropOutgoing:  maps.Clone(x.dropOutgoing),
		disabledLinks: maps.Clone(x.disabledLinks),
		msgCount:      x.msgCount,
		traffic:       x.traffic,
	}
}

// Restore implements Actor.
func (x *Network) Restore(state any) {
	s := state.(networkSnapshot)
	x.minDelay = s.minDelay
	x.maxDelay = s.maxDelay
	x.dropRate = s.dropRate
	x.duplRate = s.duplRate
	x.corruptRate = s.corruptRate
	x.crashedNodes = maps.Clone(s.crashedNodes)
	x.dropIncoming = maps.Clone(s.dropIncoming)
	x.dropOutgoing = maps.Clone(s.dropOutgoing)
	x.disabledLinks = maps.Clone(s.disabledLinks)
	x.msgCount = s.msgCount
	x.traffic = s.traffic
}
