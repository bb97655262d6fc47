package dessim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_singleMessage(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	sys.AddNode(forwarder(`a`, `b`))
	sys.AddNode(forwarder(`b`, `a`))
	sys.SetDelay(1)
	sys.SendLocal(NewMessage(`PING`, `{"info":"ping"}`), `a`)
	sys.StepUntilNoEvents()

	events := sys.GetLocalEvents(`b`)
	sends := localEventsOfType(events, LocalMessageSend)
	require.Len(t, sends, 1)
	assert.Equal(t, `ACK`, sends[0].Msg.Tag)
	assert.Equal(t, 1.0, sends[0].Time)

	assert.Equal(t, uint64(1), sys.Network().MessageCount())
	assert.Equal(t, uint64(1), sys.SentMessageCount(`a`))
	assert.Equal(t, uint64(1), sys.ReceivedMessageCount(`b`))

	received := localEventsOfType(sys.GetLocalEvents(`a`), LocalMessageReceived)
	require.Len(t, received, 1)
	assert.Equal(t, `PING`, received[0].Msg.Tag)
	assert.Equal(t, 0.0, received[0].Time)
}

func TestSystem_stepUntilLocalMessage(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	sys.AddNode(forwarder(`a`, `b`))
	sys.AddNode(forwarder(`b`, `a`))
	sys.SendLocal(NewMessage(`PING`, `{}`), `a`)

	msgs, err := sys.StepUntilLocalMessage(`b`, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `ACK`, msgs[0].Tag)

	// queue is now empty: no further messages can arrive
	_, err = sys.StepUntilLocalMessage(`b`, 0)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestSystem_stepUntilLocalMessage_stepCap(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	// a ticks forever without ever producing local output
	sys.AddNode(&testNode{
		id: `a`,
		onLocalMessage: func(_ *testNode, _ Message, ctx *Context) {
			ctx.SetTimer(`tick`, 1)
		},
		onTimer: func(_ *testNode, _ string, ctx *Context) {
			ctx.SetTimer(`tick`, 1)
		},
	})
	sys.SendLocal(NewMessage(`START`, `{}`), `a`)

	_, err := sys.StepUntilLocalMessage(`a`, 50)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestSystem_recoverVersusRestart(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	sys.AddNode(forwarder(`a`, `b`))
	sys.AddNode(forwarder(`b`, `a`))

	// healthy re-registration is a restart: the network keeps carrying its
	// traffic, and the wrapper state is replaced wholesale
	sys.SendLocal(NewMessage(`PING`, `{}`), `a`)
	sys.StepUntilNoEvents()
	require.Equal(t, uint64(1), sys.SentMessageCount(`a`))
	sys.AddNode(forwarder(`a`, `b`))
	assert.Zero(t, sys.SentMessageCount(`a`))
	assert.Equal(t, []string{`a`, `b`}, sys.NodeIDs())

	// crash then re-register: a recover, clearing the network's discard set
	sys.CrashNode(`a`)
	sys.Send(MessageFrom(`INFO`, 1), `a`, `b`)
	sys.StepUntilNoEvents()
	assert.Equal(t, uint64(1), sys.ReceivedMessageCount(`b`)) // discarded while crashed

	sys.AddNode(forwarder(`a`, `b`))
	sys.SendLocal(NewMessage(`PING`, `{}`), `a`)
	sys.StepUntilNoEvents()
	assert.Equal(t, uint64(2), sys.ReceivedMessageCount(`b`))
}

func TestSystem_unknownNodePanics(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	assert.Panics(t, func() { sys.SendLocal(NewMessage(`M`, `{}`), `ghost`) })
	assert.Panics(t, func() { sys.CrashNode(`ghost`) })
	assert.Panics(t, func() { sys.ReadLocalMessages(`ghost`) })
}

func TestSystem_seedIsEchoedAndNonZero(t *testing.T) {
	sys := NewSystem()
	assert.NotZero(t, sys.Seed())
	assert.Equal(t, uint64(99), NewSystem(WithSeed(99)).Seed())
}

func TestSystem_nodeCountAndIDs(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	assert.Zero(t, sys.NodeCount())
	sys.AddNode(forwarder(`a`, `b`))
	sys.AddNode(forwarder(`b`, `a`))
	assert.Equal(t, 2, sys.NodeCount())
	assert.Equal(t, []string{`a`, `b`}, sys.NodeIDs())
}

func TestSystem_undeliveredInspection(t *testing.T) {
	sys := NewSystem(WithSeed(1))
	sys.AddNode(&testNode{
		id: `a`,
		onLocalMessage: func(_ *testNode, msg Message, ctx *Context) {
			ctx.Send(msg, `nowhere`)
		},
	})
	sys.SendLocal(NewMessage(`M`, `{}`), `a`)
	sys.StepUntilNoEvents()

	// the network delivered to an unregistered address
	assert.Equal(t, 1, sys.CountUndeliveredEvents())
	// the log drains on read
	assert.Zero(t, sys.CountUndeliveredEvents())
}
