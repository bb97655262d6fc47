package dessim

import (
	"encoding/json"
	"fmt"
	"regexp"
)

type (
	// Message is the payload exchanged between nodes. The kernel treats it
	// as opaque; only the network (for traffic accounting and corruption)
	// and the logging layer look inside.
	//
	// Data is expected to hold serialized JSON, though nothing in the
	// simulator enforces that; the event log embeds it as is.
	Message struct {
		// Tag identifies the message kind, e.g. `PING`.
		Tag string
		// Data is the serialized payload.
		Data string
	}
)

// fieldNamePattern matches JSON object keys, for Corrupt.
var fieldNamePattern = regexp.MustCompile(`"[^"]*"\s*:`)

// NewMessage returns a message with the given tag and raw serialized data.
func NewMessage(tag, data string) Message {
	return Message{Tag: tag, Data: data}
}

// MessageFrom serializes val as JSON and wraps it with the given tag.
// It panics if val cannot be marshaled, which is a programmer error.
func MessageFrom(tag string, val any) Message {
	b, err := json.Marshal(val)
	if err != nil {
		panic(fmt.Errorf(`dessim: message from: %w`, err))
	}
	return Message{Tag: tag, Data: string(b)}
}

// Size returns the payload size in bytes, used for traffic accounting.
func (x Message) Size() uint64 {
	return uint64(len(x.Data))
}

// Empty reports whether the message is the zero value.
func (x Message) Empty() bool {
	return x.Tag == `` && x.Data == ``
}

// Corrupt degrades the payload in place: every JSON field name in Data is
// blanked, leaving the payload parseable but semantically destroyed. Values
// are untouched, so the size shrinks only by the removed name bytes. The
// network counts traffic before corrupting, so its totals are unaffected.
func (x *Message) Corrupt() {
	x.Data = fieldNamePattern.ReplaceAllString(x.Data, `"":`)
}

// String implements fmt.Stringer, in the `<tag> <data>` format used by log
// and trace output.
func (x Message) String() string {
	return x.Tag + ` ` + x.Data
}
