package dessim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_fullRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), `events.log`)
	elog, err := NewEventLog(path)
	require.NoError(t, err)

	sys := NewSystem(WithSeed(1), WithEventLog(elog))
	sys.AddNode(forwarder(`a`, `b`))
	sys.AddNode(forwarder(`b`, `a`))
	elog.AddNodeIDs(sys.NodeIDs())
	elog.SetTest(`single message`)

	sys.SetDelay(1)
	sys.SendLocal(NewMessage(`PING`, `{"info":"ping"}`), `a`)
	sys.StepUntilNoEvents()
	sys.CrashNode(`b`)
	sys.DisableLink(`a`, `b`)
	sys.EnableLink(`a`, `b`)
	sys.DisconnectNode(`a`)
	sys.ConnectNode(`a`)
	sys.MakePartition([]string{`a`}, []string{`b`})

	elog.SetTestResult(`PASSED`)
	require.NoError(t, elog.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")

	require.GreaterOrEqual(t, len(lines), 8)
	assert.Equal(t, `NODE_IDS:a:b`, lines[0])
	assert.Equal(t, `TEST_BEGIN:single message`, lines[1])
	assert.Equal(t, `TEST_END:PASSED`, lines[len(lines)-1])

	type envelope struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	var types []string
	for _, line := range lines[2 : len(lines)-1] {
		var e envelope
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		require.NotEmpty(t, e.Type, line)
		require.Contains(t, e.Data, `ts`, line)
		types = append(types, e.Type)
	}
	for _, want := range []string{
		`LocalMessageReceive`, `MessageSend`, `MessageReceive`,
		`LocalMessageSend`, `NodeCrashed`, `LinkDisabled`, `LinkEnabled`,
		`NodeDisconnected`, `NodeConnected`, `NetworkPartition`,
	} {
		assert.Contains(t, types, want)
	}
}

func TestEventLog_messagePayloadIsNested(t *testing.T) {
	buf := MessageSendEvent{
		Msg: NewMessage(`PING`, `{"info":"ping"}`),
		Src: `a`,
		Dst: `b`,
		Ts:  1.5,
	}.appendJSON(nil)

	var e struct {
		Type string `json:"type"`
		Data struct {
			Msg struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			} `json:"msg"`
			Src string  `json:"src"`
			Dst string  `json:"dst"`
			Ts  float64 `json:"ts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf, &e))
	assert.Equal(t, `MessageSend`, e.Type)
	assert.Equal(t, `PING`, e.Data.Msg.Type)
	assert.Equal(t, map[string]any{`info`: `ping`}, e.Data.Msg.Data)
	assert.Equal(t, `a`, e.Data.Src)
	assert.Equal(t, `b`, e.Data.Dst)
	assert.Equal(t, 1.5, e.Data.Ts)
}

func TestEventLog_timerAndPartitionShapes(t *testing.T) {
	for _, tc := range [...]struct {
		Name  string
		Event DebugEvent
		Want  string
	}{
		{
			Name:  `timer set`,
			Event: TimerSetEvent{Name: `t`, Delay: 2.5, Node: `a`, Ts: 0},
			Want:  `{"type":"TimerSet","data":{"name":"t","delay":2.5,"node":"a","ts":0}}`,
		},
		{
			Name:  `timer fired`,
			Event: TimerFiredEvent{Name: `t`, Node: `a`, Ts: 2.5},
			Want:  `{"type":"TimerFired","data":{"name":"t","node":"a","ts":2.5}}`,
		},
		{
			Name:  `partition`,
			Event: NetworkPartitionEvent{Group1: []string{`n1`, `n2`}, Group2: []string{`n3`}, Ts: 1},
			Want:  `{"type":"NetworkPartition","data":{"group1":["n1","n2"],"group2":["n3"],"ts":1}}`,
		},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Want, string(tc.Event.appendJSON(nil)))
		})
	}
}

func TestEventLog_nilIsSafe(t *testing.T) {
	var elog *EventLog
	elog.AddNodeIDs([]string{`a`})
	elog.Add(NodeCrashedEvent{Node: `a`})
	elog.SetTest(`x`)
	elog.SetTestResult(`PASSED`)
	assert.NoError(t, elog.Close())
}
