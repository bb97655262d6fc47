package dessim

import "container/heap"

// eventQueue is a min-heap of pending events keyed by (time, id). It
// implements heap.Interface; callers use push/popMin.
//
// Cancellation is lazy: canceled ids live in the kernel's cancellation set
// and are discarded when popped, rather than repaired in place, because
// event ids are not indexable by heap position.
type eventQueue []EventEntry

func (x eventQueue) Len() int { return len(x) }

func (x eventQueue) Less(i, j int) bool { return x[i].before(x[j]) }

func (x eventQueue) Swap(i, j int) { x[i], x[j] = x[j], x[i] }

func (x *eventQueue) Push(v any) { *x = append(*x, v.(EventEntry)) }

func (x *eventQueue) Pop() any {
	old := *x
	n := len(old)
	v := old[n-1]
	*x = old[:n-1]
	return v
}

func (x *eventQueue) push(e EventEntry) {
	heap.Push(x, e)
}

// popMin removes and returns the minimum entry, or false when empty.
func (x *eventQueue) popMin() (EventEntry, bool) {
	if len(*x) == 0 {
		return EventEntry{}, false
	}
	return heap.Pop(x).(EventEntry), true
}

// entries returns a copy of the queue contents, in no particular order.
func (x eventQueue) entries() []EventEntry {
	out := make([]EventEntry, len(x))
	copy(out, x)
	return out
}
