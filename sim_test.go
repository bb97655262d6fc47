package dessim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulation_emissionsGetContiguousIDs(t *testing.T) {
	sim := NewSimulation(1)
	node := &testNode{
		id: `a`,
		onLocalMessage: func(_ *testNode, _ Message, ctx *Context) {
			// ids returned by Emit must match the ids assigned on commit:
			// both deliveries below dispatch in emission order
			ctx.SetTimer(`t1`, 1)
			ctx.SetTimer(`t2`, 1)
		},
		onTimer: func(_ *testNode, name string, ctx *Context) {
			ctx.SendLocal(NewMessage(`FIRED`, `"`+name+`"`))
		},
	}
	actor := newNodeActor(node, nil, nil)
	sim.AddActor(`a`, actor)
	sim.AddEvent(LocalMessageReceive{Msg: NewMessage(`GO`, `{}`)}, LocalAddr(`a`), `a`, 0)
	sim.StepUntilNoEvents()

	msgs := actor.ReadLocalMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, `"t1"`, msgs[0].Data)
	assert.Equal(t, `"t2"`, msgs[1].Data)
}

func TestSimulation_undeliveredEventsAreCollected(t *testing.T) {
	sim := NewSimulation(1)
	sim.AddEvent(LocalMessageReceive{Msg: NewMessage(`M`, `{}`)}, LocalAddr(`ghost`), `ghost`, 1)
	require.True(t, sim.Step())
	undelivered := sim.ReadUndeliveredEvents()
	require.Len(t, undelivered, 1)
	assert.Equal(t, `ghost`, undelivered[0].Dst)
	// drained
	assert.Empty(t, sim.ReadUndeliveredEvents())
}

func TestSimulation_crashedActorDropsSilently(t *testing.T) {
	sim := NewSimulation(1)
	node := &testNode{id: `a`}
	actor := newNodeActor(node, nil, nil)
	sim.AddActor(`a`, actor)
	actor.Crash()
	sim.AddEvent(LocalMessageReceive{Msg: NewMessage(`M`, `{}`)}, LocalAddr(`a`), `a`, 1)
	require.True(t, sim.Step())
	assert.Empty(t, sim.ReadUndeliveredEvents())
	assert.Empty(t, actor.LocalEvents())
	// the clock still advanced to the dispatch time
	assert.Equal(t, 1.0, sim.Time())
}

func TestSimulation_stepForDuration(t *testing.T) {
	sim := NewSimulation(1)
	node := &testNode{
		id: `a`,
		onTimer: func(_ *testNode, _ string, ctx *Context) {
			ctx.SetTimer(`tick`, 1)
		},
	}
	actor := newNodeActor(node, nil, nil)
	sim.AddActor(`a`, actor)
	sim.AddEvent(TimerFired{Name: `tick`}, `a`, `a`, 1)

	sim.StepForDuration(5)
	assert.GreaterOrEqual(t, sim.Time(), 5.0)
	assert.LessOrEqual(t, sim.Time(), 6.0)
}

func TestSimulation_invalidDelayPanics(t *testing.T) {
	sim := NewSimulation(1)
	assert.Panics(t, func() {
		sim.AddEvent(TimerFired{Name: `t`}, `a`, `a`, -1)
	})
}

func TestSimulation_determinism(t *testing.T) {
	run := func(seed uint64) ([]LocalEvent, uint64, uint64, uint64) {
		sys := NewSystem(WithSeed(seed))
		sys.AddNode(forwarder(`sender`, `receiver`))
		sys.AddNode(forwarder(`receiver`, `sender`))
		sys.SetDelays(1, 5)
		sys.SetDropRate(0.3)
		sys.SetDuplRate(0.2)
		for i := 0; i < 10; i++ {
			sys.SendLocal(MessageFrom(`INFO`, i), `sender`)
		}
		sys.StepUntilNoEvents()
		return sys.GetLocalEvents(`receiver`),
			sys.SentMessageCount(`sender`),
			sys.ReceivedMessageCount(`receiver`),
			sys.Network().MessageCount()
	}

	ev1, sent1, recv1, net1 := run(42)
	ev2, sent2, recv2, net2 := run(42)
	assert.Equal(t, ev1, ev2)
	assert.Equal(t, sent1, sent2)
	assert.Equal(t, recv1, recv2)
	assert.Equal(t, net1, net2)

	// a different seed takes a different trajectory (overwhelmingly likely
	// with jitter, drops, and duplication in play)
	ev3, _, _, _ := run(43)
	assert.NotEqual(t, ev1, ev3)
}

func TestSimulation_snapshotRestoreIdentity(t *testing.T) {
	sys := NewSystem(WithSeed(7))
	sys.AddNode(forwarder(`a`, `b`))
	sys.AddNode(forwarder(`b`, `a`))
	sys.SetDelays(1, 3)
	sys.SendLocal(MessageFrom(`INFO`, `x`), `a`)
	sys.SendLocal(MessageFrom(`INFO`, `y`), `a`)
	require.True(t, sys.Steps(3))

	sim := sys.Simulation()
	snap := sim.snapshot()
	observe := func() (events []LocalEvent, sent, recv uint64, mailbox int) {
		b := sys.NodeActor(`b`)
		return b.LocalEvents(), sys.SentMessageCount(`a`), b.ReceivedMessageCount(), b.CountLocalMessages()
	}
	ev0, sent0, recv0, mb0 := observe()

	// mutate: run to quiescence, then restore
	sys.StepUntilNoEvents()
	sim.restore(snap)

	ev1, sent1, recv1, mb1 := observe()
	assert.Empty(t, cmp.Diff(ev0, ev1))
	assert.Equal(t, sent0, sent1)
	assert.Equal(t, recv0, recv1)
	assert.Equal(t, mb0, mb1)
}
