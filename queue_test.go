package dessim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_orderedByTimeThenID(t *testing.T) {
	var q eventQueue
	q.push(EventEntry{ID: 3, Time: 1})
	q.push(EventEntry{ID: 1, Time: 2})
	q.push(EventEntry{ID: 2, Time: 1})
	q.push(EventEntry{ID: 0, Time: 5})

	var got []uint64
	for {
		e, ok := q.popMin()
		if !ok {
			break
		}
		got = append(got, e.ID)
	}
	assert.Equal(t, []uint64{2, 3, 1, 0}, got)
}

func TestEventQueue_totalOrderIsDeterministic(t *testing.T) {
	// same entries, different insertion orders, same pop sequence
	entries := []EventEntry{
		{ID: 0, Time: 3},
		{ID: 1, Time: 3},
		{ID: 2, Time: 0.5},
		{ID: 3, Time: 3},
		{ID: 4, Time: 0.5},
	}
	pop := func(q *eventQueue) (ids []uint64) {
		for {
			e, ok := q.popMin()
			if !ok {
				return ids
			}
			ids = append(ids, e.ID)
		}
	}
	var q1, q2 eventQueue
	for _, e := range entries {
		q1.push(e)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		q2.push(entries[i])
	}
	want := []uint64{2, 4, 0, 1, 3}
	assert.Equal(t, want, pop(&q1))
	assert.Equal(t, want, pop(&q2))
}

func TestSimulation_lazyCancellation(t *testing.T) {
	sim := NewSimulation(1)
	node := &testNode{id: `a`}
	sim.AddActor(`a`, newNodeActor(node, nil, nil))

	id1 := sim.AddEvent(LocalMessageReceive{Msg: NewMessage(`M`, `{}`)}, LocalAddr(`a`), `a`, 1)
	sim.AddEvent(LocalMessageReceive{Msg: NewMessage(`M`, `{}`)}, LocalAddr(`a`), `a`, 2)

	sim.CancelEvent(id1)
	sim.CancelEvent(id1) // idempotent

	// first step discards the canceled entry without advancing the clock
	require.True(t, sim.Step())
	assert.Equal(t, 0.0, sim.Time())

	require.True(t, sim.Step())
	assert.Equal(t, 2.0, sim.Time())

	assert.False(t, sim.Step())
}

func TestSimulation_cancelUnknownIDIsNoOp(t *testing.T) {
	sim := NewSimulation(1)
	sim.CancelEvent(12345)
	assert.False(t, sim.Step())
}
