package dessim

type (
	// Event is a tagged record dispatched by the kernel to an actor at a
	// scheduled time. The closed set of implementations is MessageSend,
	// MessageReceive, LocalMessageReceive, and TimerFired.
	Event interface {
		sysEvent()
	}

	// MessageSend is produced by a node and consumed by the network actor.
	MessageSend struct {
		Msg Message
		Src string
		Dst string
	}

	// MessageReceive is produced by the network actor (or by a
	// self-addressed send, which bypasses the network) and consumed by a
	// node.
	MessageReceive struct {
		Msg Message
		Src string
		Dst string
	}

	// LocalMessageReceive is an external input to a node, injected via
	// System.SendLocal.
	LocalMessageReceive struct {
		Msg Message
	}

	// TimerFired is scheduled by the node wrapper on behalf of the owning
	// node and dispatched back to it.
	TimerFired struct {
		Name string
	}

	// EventEntry is a queued event. Entries are ordered by ascending Time,
	// ties broken by ascending ID; IDs are assigned from a monotonically
	// increasing insertion counter, so the order is total and reproducible.
	EventEntry struct {
		ID    uint64
		Time  float64
		Src   string
		Dst   string
		Event Event
	}
)

func (MessageSend) sysEvent()         {}
func (MessageReceive) sysEvent()      {}
func (LocalMessageReceive) sysEvent() {}
func (TimerFired) sysEvent()          {}

// before reports whether x dispatches before other, per the total
// (time, id) order.
func (x EventEntry) before(other EventEntry) bool {
	if x.Time != other.Time {
		return x.Time < other.Time
	}
	return x.ID < other.ID
}
