package panel

import (
	"io"
	"testing"
	"time"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/link"
	"elevator-rig-core/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPort replies with one canned response per Write call and records
// every request it saw, mirroring internal/link's own test fake.
type scriptedPort struct {
	responses  [][]byte
	writesSeen [][]byte
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.writesSeen = append(p.writesSeen, append([]byte(nil), b...))
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	idx := len(p.writesSeen) - 1
	if idx < 0 || idx >= len(p.responses) {
		return 0, io.EOF
	}
	return copy(b, p.responses[idx]), nil
}

func (p *scriptedPort) ResetInputBuffer() error          { return nil }
func (p *scriptedPort) ResetOutputBuffer() error         { return nil }
func (p *scriptedPort) SetReadTimeout(time.Duration) error { return nil }
func (p *scriptedPort) Close() error                     { return nil }

func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func readRegistersResponse(payload []byte) []byte {
	resp := append([]byte{0x00, 0x03}, payload...)
	crc := crc16(resp)
	return append(resp, byte(crc), byte(crc>>8))
}

func writeRegistersResponse(n int) []byte {
	resp := append([]byte{0x00, 0x06}, make([]byte, n)...)
	crc := crc16(resp)
	return append(resp, byte(crc), byte(crc>>8))
}

func TestPollEnqueuesAssertedButtons(t *testing.T) {
	payload := make([]byte, registerCount)
	payload[1] = 1 // first floor hall call, up
	payload[10] = 1 // third floor car call

	p := &scriptedPort{responses: [][]byte{readRegistersResponse(payload)}}
	l := link.WrapPort(p)
	q := queue.New()

	poller := NewPoller(cabin.A, l, q)
	poller.poll()

	floor, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, cabin.First, floor)

	floor, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, cabin.Third, floor)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPollTripsEmergencyAndClearsQueue(t *testing.T) {
	payload := make([]byte, registerCount)
	payload[emergencyIndex] = 1

	p := &scriptedPort{responses: [][]byte{
		readRegistersResponse(payload),
		writeRegistersResponse(registerCount),
	}}
	l := link.WrapPort(p)
	q := queue.New()
	q.Enqueue(cabin.Second)

	poller := NewPoller(cabin.A, l, q)
	poller.poll()

	assert.True(t, q.Emergency())
	_, ok := q.Pop()
	assert.False(t, ok)

	require.Len(t, p.writesSeen, 2)
	writeReq := p.writesSeen[1]
	assert.Equal(t, uint8(registerCount), writeReq[3])
	assert.Equal(t, byte(1), writeReq[4+emergencyIndex])
}

func TestPollSkippedOnceEmergencyLatched(t *testing.T) {
	p := &scriptedPort{}
	l := link.WrapPort(p)
	q := queue.New()
	q.TripEmergency()

	poller := NewPoller(cabin.A, l, q)
	poller.poll()

	assert.Empty(t, p.writesSeen, "poller must not touch the link once emergency is latched")
}

func TestDeassertClearsOnlyMatchingFloor(t *testing.T) {
	full := make([]byte, registerCount)
	for i := range full {
		full[i] = 1
	}

	p := &scriptedPort{responses: [][]byte{
		readRegistersResponse(full),
		writeRegistersResponse(registerCount),
	}}
	l := link.WrapPort(p)

	require.NoError(t, Deassert(l, cabin.A, cabin.First))

	writeReq := p.writesSeen[1]
	assert.Equal(t, byte(0), writeReq[4+1])
	assert.Equal(t, byte(0), writeReq[4+2])
	assert.Equal(t, byte(0), writeReq[4+8])
	assert.Equal(t, byte(1), writeReq[4+0])
	assert.Equal(t, byte(1), writeReq[4+emergencyIndex])
}
