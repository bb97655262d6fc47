// Package gojanode embeds JavaScript node implementations into the
// simulator, using the goja runtime.
//
// A script provides a factory function returning a handler object:
//
//	function newNode(id) {
//	    let delivered = [];
//	    return {
//	        onMessage: function (msg, from, ctx) {
//	            delivered.push(msg.data);
//	            ctx.sendLocal({type: 'ACK', data: msg.data});
//	        },
//	        onLocalMessage: function (msg, ctx) {
//	            ctx.send(msg, 'other');
//	        },
//	        onTimer: function (name, ctx) {},
//	        getState: function () { return JSON.stringify(delivered); },
//	        setState: function (s) { delivered = JSON.parse(s); },
//	    };
//	}
//
// Messages cross the boundary as {type, data} objects, with data a raw
// serialized string (use JSON.parse/JSON.stringify as needed). The ctx
// argument mirrors the Go-side handler context: send(msg, dst),
// sendLocal(msg), setTimer(name, delay), cancelTimer(name), time(), and
// rand().
//
// getState and setState are optional, but a node without them cannot
// participate in model checking: its state is invisible to the checker's
// snapshots. They must round-trip a string that fully captures node state.
package gojanode

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
	dessim "github.com/joeycumines/go-dessim"
)

type (
	// Factory compiles a node script once and builds runtime instances
	// from it. Each built node gets its own goja runtime; scripted nodes
	// never share JS state.
	Factory struct {
		prog *goja.Program
		ctor string
	}

	// Node is a dessim.Node backed by a JavaScript handler object.
	Node struct {
		id             string
		vm             *goja.Runtime
		this           goja.Value
		onMessage      goja.Callable
		onLocalMessage goja.Callable
		onTimer        goja.Callable
		getState       goja.Callable
		setState       goja.Callable
	}
)

var (
	// compile time assertions

	_ dessim.Node = (*Node)(nil)
)

// NewFactory reads and compiles the script at path. The ctor argument names
// the global factory function the script defines.
func NewFactory(path, ctor string) (*Factory, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(`gojanode: read script: %w`, err)
	}
	return NewFactoryFromSource(path, string(src), ctor)
}

// NewFactoryFromSource compiles an in-memory script; name is used for stack
// traces only.
func NewFactoryFromSource(name, source, ctor string) (*Factory, error) {
	prog, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf(`gojanode: compile script: %w`, err)
	}
	return &Factory{prog: prog, ctor: ctor}, nil
}

// Build instantiates a node: it runs the script in a fresh runtime, calls
// the factory function with (id, args...), and binds the returned handler
// object.
func (x *Factory) Build(id string, args ...any) (*Node, error) {
	vm := goja.New()
	if _, err := vm.RunProgram(x.prog); err != nil {
		return nil, fmt.Errorf(`gojanode: run script: %w`, err)
	}

	ctor, ok := goja.AssertFunction(vm.Get(x.ctor))
	if !ok {
		return nil, fmt.Errorf(`gojanode: %q is not a function`, x.ctor)
	}

	ctorArgs := make([]goja.Value, 0, len(args)+1)
	ctorArgs = append(ctorArgs, vm.ToValue(id))
	for _, arg := range args {
		ctorArgs = append(ctorArgs, vm.ToValue(arg))
	}
	this, err := ctor(goja.Undefined(), ctorArgs...)
	if err != nil {
		return nil, fmt.Errorf(`gojanode: %s(%q): %w`, x.ctor, id, err)
	}
	obj := this.ToObject(vm)
	if obj == nil {
		return nil, fmt.Errorf(`gojanode: %s(%q) did not return an object`, x.ctor, id)
	}

	node := &Node{id: id, vm: vm, this: this}
	for _, binding := range []struct {
		name     string
		target   *goja.Callable
		required bool
	}{
		{name: `onMessage`, target: &node.onMessage, required: true},
		{name: `onLocalMessage`, target: &node.onLocalMessage, required: true},
		{name: `onTimer`, target: &node.onTimer, required: true},
		{name: `getState`, target: &node.getState},
		{name: `setState`, target: &node.setState},
	} {
		fn, ok := goja.AssertFunction(obj.Get(binding.name))
		if ok {
			*binding.target = fn
		} else if binding.required {
			return nil, fmt.Errorf(`gojanode: %s(%q): missing handler %q`, x.ctor, id, binding.name)
		}
	}
	return node, nil
}

// ID implements dessim.Node.
func (x *Node) ID() string {
	return x.id
}

// OnMessage implements dessim.Node.
func (x *Node) OnMessage(msg dessim.Message, from string, ctx *dessim.Context) {
	x.call(x.onMessage, `onMessage`, x.messageValue(msg), x.vm.ToValue(from), x.contextValue(ctx))
}

// OnLocalMessage implements dessim.Node.
func (x *Node) OnLocalMessage(msg dessim.Message, ctx *dessim.Context) {
	x.call(x.onLocalMessage, `onLocalMessage`, x.messageValue(msg), x.contextValue(ctx))
}

// OnTimer implements dessim.Node.
func (x *Node) OnTimer(name string, ctx *dessim.Context) {
	x.call(x.onTimer, `onTimer`, x.vm.ToValue(name), x.contextValue(ctx))
}

// SnapshotState implements dessim.Node, via the script's getState hook.
func (x *Node) SnapshotState() any {
	if x.getState == nil {
		return nil
	}
	v, err := x.getState(x.this)
	if err != nil {
		panic(fmt.Errorf(`gojanode: %s: getState: %w`, x.id, err))
	}
	return v.String()
}

// RestoreState implements dessim.Node, via the script's setState hook.
func (x *Node) RestoreState(state any) {
	if x.setState == nil {
		return
	}
	if _, err := x.setState(x.this, x.vm.ToValue(state.(string))); err != nil {
		panic(fmt.Errorf(`gojanode: %s: setState: %w`, x.id, err))
	}
}

// call invokes a handler; a JS exception is a node bug and fails loudly.
func (x *Node) call(fn goja.Callable, name string, args ...goja.Value) {
	if _, err := fn(x.this, args...); err != nil {
		panic(fmt.Errorf(`gojanode: %s: %s: %w`, x.id, name, err))
	}
}

// messageValue projects a message into JS as a {type, data} object.
func (x *Node) messageValue(msg dessim.Message) goja.Value {
	obj := x.vm.NewObject()
	_ = obj.Set(`type`, msg.Tag)
	_ = obj.Set(`data`, msg.Data)
	return obj
}

// messageFromValue accepts a {type, data} object back from JS.
func (x *Node) messageFromValue(v goja.Value) dessim.Message {
	obj := v.ToObject(x.vm)
	if obj == nil {
		panic(fmt.Errorf(`gojanode: %s: message must be a {type, data} object`, x.id))
	}
	msg := dessim.Message{}
	if tag := obj.Get(`type`); tag != nil && !goja.IsUndefined(tag) {
		msg.Tag = tag.String()
	}
	if data := obj.Get(`data`); data != nil && !goja.IsUndefined(data) {
		msg.Data = data.String()
	}
	return msg
}

// contextValue builds the per-dispatch ctx object. The bindings close over
// the Go context, which is only valid for the duration of the handler.
func (x *Node) contextValue(ctx *dessim.Context) goja.Value {
	obj := x.vm.NewObject()
	_ = obj.Set(`send`, func(call goja.FunctionCall) goja.Value {
		ctx.Send(x.messageFromValue(call.Argument(0)), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set(`sendLocal`, func(call goja.FunctionCall) goja.Value {
		ctx.SendLocal(x.messageFromValue(call.Argument(0)))
		return goja.Undefined()
	})
	_ = obj.Set(`setTimer`, func(call goja.FunctionCall) goja.Value {
		ctx.SetTimer(call.Argument(0).String(), call.Argument(1).ToFloat())
		return goja.Undefined()
	})
	_ = obj.Set(`cancelTimer`, func(call goja.FunctionCall) goja.Value {
		ctx.CancelTimer(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set(`time`, func(call goja.FunctionCall) goja.Value {
		return x.vm.ToValue(ctx.Time())
	})
	_ = obj.Set(`rand`, func(call goja.FunctionCall) goja.Value {
		return x.vm.ToValue(ctx.Rand())
	})
	return obj
}
