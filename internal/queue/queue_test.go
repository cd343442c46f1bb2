package queue

import (
	"testing"

	"elevator-rig-core/internal/cabin"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueUniqueMembership(t *testing.T) {
	q := New()

	assert.True(t, q.Enqueue(cabin.First))
	assert.False(t, q.Enqueue(cabin.First))

	floor, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, cabin.First, floor)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPopIsFIFO(t *testing.T) {
	q := New()
	q.Enqueue(cabin.Third)
	q.Enqueue(cabin.Ground)
	q.Enqueue(cabin.Second)

	var order []cabin.Floor
	for {
		f, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, f)
	}

	assert.Equal(t, []cabin.Floor{cabin.Third, cabin.Ground, cabin.Second}, order)
}

func TestEnqueueAfterFloorRequeued(t *testing.T) {
	q := New()
	q.Enqueue(cabin.Ground)
	q.Pop()
	assert.True(t, q.Enqueue(cabin.Ground))
}

func TestTripEmergencyClearsQueueAndRejectsFurtherEnqueues(t *testing.T) {
	q := New()
	q.Enqueue(cabin.First)
	q.Enqueue(cabin.Second)

	q.TripEmergency()

	_, ok := q.Pop()
	assert.False(t, ok, "emergency must clear the pending queue")
	assert.False(t, q.Enqueue(cabin.Third))
	assert.True(t, q.Emergency())
}

func TestEmergencyIsOneWay(t *testing.T) {
	q := New()
	q.TripEmergency()
	q.TripEmergency()
	assert.True(t, q.Emergency())
}
