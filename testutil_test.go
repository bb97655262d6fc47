package dessim

import (
	"golang.org/x/exp/slices"
)

// testNode is a scriptable Node for tests: behavior is injected as function
// fields, and delivered accumulates every payload seen by OnMessage.
type testNode struct {
	id             string
	delivered      []Message
	onMessage      func(x *testNode, msg Message, from string, ctx *Context)
	onLocalMessage func(x *testNode, msg Message, ctx *Context)
	onTimer        func(x *testNode, name string, ctx *Context)
}

type testNodeState struct {
	delivered []Message
}

func (x *testNode) ID() string { return x.id }

func (x *testNode) OnMessage(msg Message, from string, ctx *Context) {
	x.delivered = append(x.delivered, msg)
	if x.onMessage != nil {
		x.onMessage(x, msg, from, ctx)
	}
}

func (x *testNode) OnLocalMessage(msg Message, ctx *Context) {
	if x.onLocalMessage != nil {
		x.onLocalMessage(x, msg, ctx)
	}
}

func (x *testNode) OnTimer(name string, ctx *Context) {
	if x.onTimer != nil {
		x.onTimer(x, name, ctx)
	}
}

func (x *testNode) SnapshotState() any {
	return testNodeState{delivered: slices.Clone(x.delivered)}
}

func (x *testNode) RestoreState(state any) {
	x.delivered = slices.Clone(state.(testNodeState).delivered)
}

// forwarder returns a node that forwards every local input to dst and emits
// a local ack for every message received.
func forwarder(id, dst string) *testNode {
	return &testNode{
		id: id,
		onLocalMessage: func(_ *testNode, msg Message, ctx *Context) {
			ctx.Send(msg, dst)
		},
		onMessage: func(_ *testNode, msg Message, _ string, ctx *Context) {
			ctx.SendLocal(NewMessage(`ACK`, msg.Data))
		},
	}
}

// localEventsOfType filters a local-events log by type.
func localEventsOfType(events []LocalEvent, t LocalEventType) (out []LocalEvent) {
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
