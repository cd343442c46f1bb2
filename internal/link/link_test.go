package link

import (
	"io"
	"testing"
	"time"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/proto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory Port that replies to a canned sequence of
// responses, one per call to Write, optionally failing the first N
// attempts before succeeding — enough to exercise the retry/flush path
// without a real tty.
type fakePort struct {
	responses   [][]byte
	failWrites  int // number of leading Write calls that report a short write
	callIdx     int
	flushCount  int
	writesSeen  [][]byte
	closeCalled bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	p.writesSeen = append(p.writesSeen, cp)
	if p.callIdx < p.failWrites {
		p.callIdx++
		return 0, io.ErrShortWrite
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	idx := len(p.writesSeen) - 1
	if idx < 0 || idx >= len(p.responses) {
		return 0, io.EOF
	}
	resp := p.responses[idx]
	n := copy(b, resp)
	return n, nil
}

func (p *fakePort) ResetInputBuffer() error  { p.flushCount++; return nil }
func (p *fakePort) ResetOutputBuffer() error { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (p *fakePort) Close() error             { p.closeCalled = true; return nil }

func TestGetEncoderValueHappyPath(t *testing.T) {
	resp := []byte{0x00, 0x23, 0xC1, 0x78, 0x56, 0x34, 0x12}
	resp = appendCRC(resp)

	p := &fakePort{responses: [][]byte{resp}}
	l := WrapPort(p)

	value, err := l.GetEncoderValue(cabin.EncoderA)
	require.NoError(t, err)
	assert.Equal(t, int32(0x12345678), value)
	assert.Len(t, p.writesSeen, 1)
}

func TestExchangeRetriesOnBadFrameThenSucceeds(t *testing.T) {
	bad := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF} // garbage, bad CRC
	good := appendCRC([]byte{0x00, 0x23, 0xC1, 0x01, 0x00, 0x00, 0x00})

	p := &fakePort{responses: [][]byte{bad, good}}
	l := WrapPort(p)

	value, err := l.GetEncoderValue(cabin.EncoderB)
	require.NoError(t, err)
	assert.Equal(t, int32(1), value)
	assert.Equal(t, 1, p.flushCount)
}

func TestExchangeFailsAfterThreeAttempts(t *testing.T) {
	bad := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	p := &fakePort{responses: [][]byte{bad, bad, bad}}
	l := WrapPort(p)

	_, err := l.GetEncoderValue(cabin.EncoderA)
	require.Error(t, err)
	var linkErr *Error
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, 3, linkErr.Attempt)
	assert.Equal(t, 3, p.flushCount)
}

func TestSendControlSignalRoundTrip(t *testing.T) {
	resp := appendCRC([]byte{0x00, 0x16, 0xC2})
	p := &fakePort{responses: [][]byte{resp}}
	l := WrapPort(p)

	err := l.SendControlSignal(cabin.EncoderA, -42)
	require.NoError(t, err)

	require.Len(t, p.writesSeen, 1)
	req := p.writesSeen[0]
	// payload is [encoder_id, pwm_le(4)]
	got := int32(req[4]) | int32(req[5])<<8 | int32(req[6])<<16 | int32(req[7])<<24
	assert.Equal(t, int32(-42), got)
}

func TestReadRegisterRangeCabinA(t *testing.T) {
	payload := make([]byte, 11)
	payload[6] = 1 // emergency asserted
	resp := append([]byte{0x00, 0x03}, payload...)
	resp = appendCRC(resp)

	p := &fakePort{responses: [][]byte{resp}}
	l := WrapPort(p)

	got, err := l.ReadRegisterRange(0x00, 11)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteRegisterRangeEncodesBooleans(t *testing.T) {
	resp := appendCRC([]byte{0x00, 0x06, 0x00, 0x00, 0x00})
	p := &fakePort{responses: [][]byte{resp}}
	l := WrapPort(p)

	err := l.WriteRegisterRange(0x00, []bool{false, true, false})
	require.NoError(t, err)

	req := p.writesSeen[0]
	// [target][code][subcode][n][b0][b1][b2][registerCode(4)][crc(2)]
	assert.Equal(t, uint8(3), req[3])
	assert.Equal(t, []byte{0, 1, 0}, req[4:7])
}

func TestTryRequestReplySkipsWhenBusy(t *testing.T) {
	resp := appendCRC([]byte{0x00, 0x23, 0xC1, 0, 0, 0, 0})
	p := &fakePort{responses: [][]byte{resp}}
	l := WrapPort(p)

	l.mu.Lock()
	_, ok, err := l.TryRequestReply("read-encoder", proto.ReadEncoder, []byte{0x00}, 9)
	l.mu.Unlock()

	require.NoError(t, err)
	assert.False(t, ok)
}

func appendCRC(frame []byte) []byte {
	// Recompute CRC the same way proto does, by round-tripping through
	// Encode for an equivalent op and borrowing its trailing bytes would
	// require matching the op's register-code trailer (requests only); for
	// responses we just need a frame whose last two bytes are a valid
	// CRC-16 over the rest, so we hand-compute it using the same
	// polynomial as internal/proto (mirrored here intentionally to avoid
	// importing an unexported function across packages).
	crc := uint16(0xFFFF)
	for _, b := range frame {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return append(frame, byte(crc), byte(crc>>8))
}
