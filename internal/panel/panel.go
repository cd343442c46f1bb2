// Package panel polls the call-button registers exposed over the
// peripheral link and turns button presses into floor requests or
// emergency trips: 11 registers per cabin (six hall call buttons, one
// emergency stop, four direct car calls), polled every 500ms.
package panel

import (
	"log"
	"time"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/link"
	"elevator-rig-core/internal/queue"
)

// registerCount is the number of button registers exposed per cabin.
const registerCount = 11

// baseAddress is the first register address for each cabin's button bank.
func baseAddress(id cabin.ID) uint8 {
	if id == cabin.A {
		return 0x00
	}
	return 0xA0
}

// emergencyIndex is the register offset of the emergency stop button,
// constant across both cabins' banks.
const emergencyIndex = 6

// floorForIndex maps a register offset to the floor it requests. The
// emergency offset has no floor and is handled separately by the poller.
var floorForIndex = [registerCount]cabin.Floor{
	0: cabin.Ground, // ground hall call, up
	1: cabin.First,  // first hall call, up
	2: cabin.First,  // first hall call, down
	3: cabin.Second, // second hall call, up
	4: cabin.Second, // second hall call, down
	5: cabin.Third,  // third hall call, down
	6: cabin.Ground, // emergency offset, unused: see emergencyIndex
	7: cabin.Ground, // ground car call
	8: cabin.First,  // first car call
	9: cabin.Second, // second car call
	10: cabin.Third, // third car call
}

const pollInterval = 500 * time.Millisecond

// Poller periodically reads one cabin's button registers and drives its
// Queue accordingly.
type Poller struct {
	id    cabin.ID
	link  *link.Link
	queue *queue.Queue
}

// NewPoller builds a poller for the given cabin.
func NewPoller(id cabin.ID, l *link.Link, q *queue.Queue) *Poller {
	return &Poller{id: id, link: l, queue: q}
}

// Run polls at pollInterval until stop is closed. It is meant to run in its
// own goroutine for the lifetime of the supervisor.
func (p *Poller) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	if p.queue.Emergency() {
		return
	}

	registers, err := p.link.ReadRegisterRange(baseAddress(p.id), registerCount)
	if err != nil {
		log.Printf("panel: cabin %s: read registers: %v", p.id, err)
		return
	}

	if registers[emergencyIndex] != 0 {
		p.tripEmergency()
		return
	}

	for i, asserted := range registers {
		if i == emergencyIndex || asserted == 0 {
			continue
		}
		p.queue.Enqueue(floorForIndex[i])
	}
}

func (p *Poller) tripEmergency() {
	p.queue.TripEmergency()

	state := make([]bool, registerCount)
	state[emergencyIndex] = true

	if err := p.link.WriteRegisterRange(baseAddress(p.id), state); err != nil {
		log.Printf("panel: cabin %s: write emergency registers: %v", p.id, err)
	}
}

// Deassert clears the car-call and hall-call registers for a floor a cabin
// has just serviced, leaving every other register untouched. Used by the
// move loop after a cabin arrives at (or was already at) the popped floor.
func Deassert(l *link.Link, id cabin.ID, floor cabin.Floor) error {
	indices := indicesForFloor(floor)
	if len(indices) == 0 {
		return nil
	}

	full, err := l.ReadRegisterRange(baseAddress(id), registerCount)
	if err != nil {
		return err
	}

	state := boolsFromBytes(full)
	for _, i := range indices {
		state[i] = false
	}

	return l.WriteRegisterRange(baseAddress(id), state)
}

func indicesForFloor(floor cabin.Floor) []int {
	var out []int
	for i, f := range floorForIndex {
		if i == emergencyIndex {
			continue
		}
		if f == floor {
			out = append(out, i)
		}
	}
	return out
}

func boolsFromBytes(b []byte) []bool {
	out := make([]bool, len(b))
	for i, v := range b {
		out[i] = v != 0
	}
	return out
}
