package dessim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// DefaultEventLogPath is the conventional location of the visualizer log.
const DefaultEventLogPath = `events.log`

type (
	// DebugEvent is one line of the visualizer event log. The closed set of
	// implementations mirrors the log format: message traffic, local I/O,
	// drops and discards, timers, and topology changes.
	DebugEvent interface {
		appendJSON(buf []byte) []byte
	}

	// MessageSendEvent records a node addressing a message to another node.
	MessageSendEvent struct {
		Msg Message
		Src string
		Dst string
		Ts  float64
	}

	// MessageReceiveEvent records a delivery dispatched to a node.
	MessageReceiveEvent struct {
		Msg Message
		Src string
		Dst string
		Ts  float64
	}

	// LocalMessageSendEvent records a node emitting at its local boundary.
	LocalMessageSendEvent struct {
		Msg Message
		Dst string
		Ts  float64
	}

	// LocalMessageReceiveEvent records an external input delivered to a
	// node.
	LocalMessageReceiveEvent struct {
		Msg Message
		Dst string
		Ts  float64
	}

	// MessageDroppedEvent records a message dropped by network policy.
	MessageDroppedEvent struct {
		Msg Message
		Src string
		Dst string
		Ts  float64
	}

	// MessageDiscardedEvent records a message discarded because its sender
	// had crashed.
	MessageDiscardedEvent struct {
		Msg Message
		Src string
		Dst string
		Ts  float64
	}

	// TimerSetEvent records a timer being scheduled.
	TimerSetEvent struct {
		Name  string
		Delay float64
		Node  string
		Ts    float64
	}

	// TimerFiredEvent records a timer dispatch.
	TimerFiredEvent struct {
		Name string
		Node string
		Ts   float64
	}

	// NodeCrashedEvent records a crash injection.
	NodeCrashedEvent struct {
		Node string
		Ts   float64
	}

	// NodeRecoveredEvent records re-registration of a previously crashed
	// node.
	NodeRecoveredEvent struct {
		Node string
		Ts   float64
	}

	// NodeRestartedEvent records re-registration of a healthy node.
	NodeRestartedEvent struct {
		Node string
		Ts   float64
	}

	// NodeConnectedEvent records traffic being re-enabled in both
	// directions.
	NodeConnectedEvent struct {
		Node string
		Ts   float64
	}

	// NodeDisconnectedEvent records traffic being dropped in both
	// directions.
	NodeDisconnectedEvent struct {
		Node string
		Ts   float64
	}

	// LinkEnabledEvent records a directed link being re-enabled.
	LinkEnabledEvent struct {
		Src string
		Dst string
		Ts  float64
	}

	// LinkDisabledEvent records a directed link being disabled.
	LinkDisabledEvent struct {
		Src string
		Dst string
		Ts  float64
	}

	// NetworkPartitionEvent records a two-group partition.
	NetworkPartitionEvent struct {
		Group1 []string
		Group2 []string
		Ts     float64
	}

	// EventLog writes the line-delimited event log consumed by the
	// external visualizer: an optional NODE_IDS header, TEST_BEGIN /
	// TEST_END control lines, and one JSON object per data line.
	//
	// A nil *EventLog is valid and discards everything, so instrumented
	// code never needs to branch on whether logging is enabled.
	EventLog struct {
		f *os.File
	}
)

// NewEventLog creates (truncating) the log file at path.
func NewEventLog(path string) (*EventLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf(`dessim: event log: %w`, err)
	}
	return &EventLog{f: f}, nil
}

// AddNodeIDs writes the NODE_IDS header line.
func (x *EventLog) AddNodeIDs(ids []string) {
	if x == nil || x.f == nil {
		return
	}
	buf := []byte(`NODE_IDS`)
	for _, id := range ids {
		buf = append(buf, ':')
		buf = append(buf, id...)
	}
	buf = append(buf, '\n')
	_, _ = x.f.Write(buf)
}

// Add writes one data line.
func (x *EventLog) Add(event DebugEvent) {
	if x == nil || x.f == nil {
		return
	}
	buf := event.appendJSON(make([]byte, 0, 256))
	buf = append(buf, '\n')
	_, _ = x.f.Write(buf)
}

// add is the internal alias used by the simulator's own instrumentation.
func (x *EventLog) add(event DebugEvent) { x.Add(event) }

// SetTest writes a TEST_BEGIN control line.
func (x *EventLog) SetTest(name string) {
	if x == nil || x.f == nil {
		return
	}
	_, _ = fmt.Fprintf(x.f, "TEST_BEGIN:%s\n", name)
}

// SetTestResult writes a TEST_END control line.
func (x *EventLog) SetTestResult(result string) {
	if x == nil || x.f == nil {
		return
	}
	_, _ = fmt.Fprintf(x.f, "TEST_END:%s\n", result)
}

// Close closes the underlying file.
func (x *EventLog) Close() error {
	if x == nil || x.f == nil {
		return nil
	}
	return x.f.Close()
}

// appendHeader opens the envelope: {"type":<variant>,"data":{
func appendHeader(buf []byte, variant string) []byte {
	buf = append(buf, `{"type":`...)
	buf = jsonenc.AppendString(buf, variant)
	return append(buf, `,"data":{`...)
}

// appendMsg appends the nested message projection: "msg":{"type":<tag>,"data":<raw>},
// Data is embedded raw: it is expected to already be serialized JSON.
func appendMsg(buf []byte, msg Message) []byte {
	buf = append(buf, `"msg":{"type":`...)
	buf = jsonenc.AppendString(buf, msg.Tag)
	buf = append(buf, `,"data":`...)
	if msg.Data == `` {
		buf = append(buf, `""`...)
	} else {
		buf = append(buf, msg.Data...)
	}
	return append(buf, `},`...)
}

func appendStrField(buf []byte, name, val string) []byte {
	buf = append(buf, '"')
	buf = append(buf, name...)
	buf = append(buf, `":`...)
	buf = jsonenc.AppendString(buf, val)
	return append(buf, ',')
}

func appendTs(buf []byte, ts float64) []byte {
	buf = append(buf, `"ts":`...)
	buf = jsonenc.AppendFloat64(buf, ts)
	return append(buf, `}}`...)
}

func appendMessageEvent(buf []byte, variant string, msg Message, src, dst string, ts float64) []byte {
	buf = appendHeader(buf, variant)
	buf = appendMsg(buf, msg)
	if src != `` {
		buf = appendStrField(buf, `src`, src)
	}
	buf = appendStrField(buf, `dst`, dst)
	return appendTs(buf, ts)
}

func appendNodeEvent(buf []byte, variant, node string, ts float64) []byte {
	buf = appendHeader(buf, variant)
	buf = appendStrField(buf, `node`, node)
	return appendTs(buf, ts)
}

func appendLinkEvent(buf []byte, variant, src, dst string, ts float64) []byte {
	buf = appendHeader(buf, variant)
	buf = appendStrField(buf, `src`, src)
	buf = appendStrField(buf, `dst`, dst)
	return appendTs(buf, ts)
}

func (x MessageSendEvent) appendJSON(buf []byte) []byte {
	return appendMessageEvent(buf, `MessageSend`, x.Msg, x.Src, x.Dst, x.Ts)
}

func (x MessageReceiveEvent) appendJSON(buf []byte) []byte {
	return appendMessageEvent(buf, `MessageReceive`, x.Msg, x.Src, x.Dst, x.Ts)
}

func (x LocalMessageSendEvent) appendJSON(buf []byte) []byte {
	return appendMessageEvent(buf, `LocalMessageSend`, x.Msg, ``, x.Dst, x.Ts)
}

func (x LocalMessageReceiveEvent) appendJSON(buf []byte) []byte {
	return appendMessageEvent(buf, `LocalMessageReceive`, x.Msg, ``, x.Dst, x.Ts)
}

func (x MessageDroppedEvent) appendJSON(buf []byte) []byte {
	return appendMessageEvent(buf, `MessageDropped`, x.Msg, x.Src, x.Dst, x.Ts)
}

func (x MessageDiscardedEvent) appendJSON(buf []byte) []byte {
	return appendMessageEvent(buf, `MessageDiscarded`, x.Msg, x.Src, x.Dst, x.Ts)
}

func (x TimerSetEvent) appendJSON(buf []byte) []byte {
	buf = appendHeader(buf, `TimerSet`)
	buf = appendStrField(buf, `name`, x.Name)
	buf = append(buf, `"delay":`...)
	buf = jsonenc.AppendFloat64(buf, x.Delay)
	buf = append(buf, ',')
	buf = appendStrField(buf, `node`, x.Node)
	return appendTs(buf, x.Ts)
}

func (x TimerFiredEvent) appendJSON(buf []byte) []byte {
	buf = appendHeader(buf, `TimerFired`)
	buf = appendStrField(buf, `name`, x.Name)
	buf = appendStrField(buf, `node`, x.Node)
	return appendTs(buf, x.Ts)
}

func (x NodeCrashedEvent) appendJSON(buf []byte) []byte {
	return appendNodeEvent(buf, `NodeCrashed`, x.Node, x.Ts)
}

func (x NodeRecoveredEvent) appendJSON(buf []byte) []byte {
	return appendNodeEvent(buf, `NodeRecovered`, x.Node, x.Ts)
}

func (x NodeRestartedEvent) appendJSON(buf []byte) []byte {
	return appendNodeEvent(buf, `NodeRestarted`, x.Node, x.Ts)
}

func (x NodeConnectedEvent) appendJSON(buf []byte) []byte {
	return appendNodeEvent(buf, `NodeConnected`, x.Node, x.Ts)
}

func (x NodeDisconnectedEvent) appendJSON(buf []byte) []byte {
	return appendNodeEvent(buf, `NodeDisconnected`, x.Node, x.Ts)
}

func (x LinkEnabledEvent) appendJSON(buf []byte) []byte {
	return appendLinkEvent(buf, `LinkEnabled`, x.Src, x.Dst, x.Ts)
}

func (x LinkDisabledEvent) appendJSON(buf []byte) []byte {
	return appendLinkEvent(buf, `LinkDisabled`, x.Src, x.Dst, x.Ts)
}

func (x NetworkPartitionEvent) appendJSON(buf []byte) []byte {
	buf = appendHeader(buf, `NetworkPartition`)
	g1, err := json.Marshal(x.Group1)
	if err != nil {
		panic(fmt.Errorf(`dessim: event log: %w`, err))
	}
	g2, err := json.Marshal(x.Group2)
	if err != nil {
		panic(fmt.Errorf(`dessim: event log: %w`, err))
	}
	buf = append(buf, `"group1":`...)
	buf = append(buf, g1...)
	buf = append(buf, `,"group2":`...)
	buf = append(buf, g2...)
	buf = append(buf, ',')
	return appendTs(buf, x.Ts)
}
