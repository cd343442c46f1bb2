// Package link implements the peripheral link: a bounded-retry
// request/response transport to the microcontroller that exposes encoder
// reads, PWM commands, temperature reports, and panel button registers.
// It is built on go.bug.st/serial, a natural fit whenever the wire
// protocol is a raw framed protocol over a tty rather than TCP Modbus.
package link

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"elevator-rig-core/internal/cabin"
	"elevator-rig-core/internal/proto"

	"go.bug.st/serial"
)

// Port is the subset of go.bug.st/serial.Port the link depends on. It is an
// interface so tests can substitute an in-memory fake without a real tty.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	ResetOutputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// readTimeout bounds every read on the serial port.
const readTimeout = 100 * time.Millisecond

// maxAttempts bounds every request/response exchange; the third failure is
// fatal.
const maxAttempts = 3

// Error is returned once every retry attempt for an exchange has been
// exhausted.
type Error struct {
	Op      string
	Reason  string
	Attempt int
}

func (e *Error) Error() string {
	return fmt.Sprintf("link: %s failed after %d attempts: %s", e.Op, e.Attempt, e.Reason)
}

// Link serializes every exchange with the peripheral behind one exclusive
// lock, held for the whole retried request/response round trip: the UART
// is one physical resource and pipelining it would just interleave bytes
// from different callers on the wire.
type Link struct {
	mu   sync.Mutex
	port Port
}

// Open opens the named serial device at 115200 8N1, matching the
// microcontroller peripheral's fixed UART configuration.
func Open(device string) (*Link, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("link: set read timeout: %w", err)
	}

	return &Link{port: port}, nil
}

// WrapPort constructs a Link around an already-open Port, used by tests to
// inject a fake transport.
func WrapPort(p Port) *Link {
	return &Link{port: p}
}

// Close releases the underlying serial port.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port.Close()
}

// flush drains both RX and TX queues, ignoring errors since it only runs on
// the retry path where the port may already be in a bad state.
func (l *Link) flush() {
	_ = l.port.ResetInputBuffer()
	_ = l.port.ResetOutputBuffer()
}

// exchange performs one write-then-read-then-validate cycle, retrying up to
// maxAttempts times and flushing after every failed attempt. respLen is the expected
// response frame length for this operation. Callers must hold l.mu.
func (l *Link) exchange(opName string, req []byte, respLen int, op proto.Op) ([]byte, error) {
	var lastErr error
	resp := make([]byte, respLen)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := l.port.Write(req); err != nil {
			lastErr = fmt.Errorf("write: %w", err)
			log.Printf("link: (%d/%d) %s write failed: %v", attempt, maxAttempts, opName, lastErr)
			l.flush()
			continue
		}

		n, err := l.port.Read(resp)
		if err != nil {
			lastErr = fmt.Errorf("read: %w", err)
			log.Printf("link: (%d/%d) %s read failed: %v", attempt, maxAttempts, opName, lastErr)
			l.flush()
			continue
		}
		if n != respLen {
			lastErr = fmt.Errorf("short read: got %d want %d", n, respLen)
			log.Printf("link: (%d/%d) %s %v", attempt, maxAttempts, opName, lastErr)
			l.flush()
			continue
		}

		payload, err := proto.Decode(op, resp)
		if err != nil {
			lastErr = err
			log.Printf("link: (%d/%d) %s decode failed: %v", attempt, maxAttempts, opName, lastErr)
			l.flush()
			continue
		}

		return payload, nil
	}

	return nil, &Error{Op: opName, Reason: lastErr.Error(), Attempt: maxAttempts}
}

// RequestReply sends a request and returns the validated response payload.
func (l *Link) RequestReply(opName string, op proto.Op, payload []byte, respLen int) ([]byte, error) {
	req := proto.Encode(op, payload)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exchange(opName, req, respLen, op)
}

// Send sends a request and validates the reply but discards its payload;
// used for fire-and-forget commands that still echo a response frame.
func (l *Link) Send(opName string, op proto.Op, payload []byte, respLen int) error {
	_, err := l.RequestReply(opName, op, payload, respLen)
	return err
}

// GetEncoderValue reads the 4-byte little-endian signed encoder position
// for the given cabin's encoder.
func (l *Link) GetEncoderValue(id cabin.EncoderID) (int32, error) {
	resp, err := l.RequestReply("read-encoder", proto.ReadEncoder, []byte{byte(id)}, 9)
	if err != nil {
		return 0, err
	}
	return int32(resp[0]) | int32(resp[1])<<8 | int32(resp[2])<<16 | int32(resp[3])<<24, nil
}

// SendControlSignal commands a signed PWM percentage on the given cabin's
// encoder/motor pairing. Sign conveys direction, magnitude is percent.
func (l *Link) SendControlSignal(id cabin.EncoderID, pwmPercent int32) error {
	data := make([]byte, 5)
	data[0] = byte(id)
	putI32LE(data[1:], pwmPercent)
	return l.Send("send-pwm", proto.SendPWM, data, 5)
}

// SendTemperature reports a cabin's measured temperature.
func (l *Link) SendTemperature(id cabin.ID, celsius float32) error {
	data := make([]byte, 5)
	data[0] = byte(id)
	putF32LE(data[1:], celsius)
	return l.Send("send-temp", proto.SendTemp, data, 5)
}

// ReadRegisterRange reads n consecutive button/indicator registers
// starting at addr.
func (l *Link) ReadRegisterRange(addr, n uint8) ([]byte, error) {
	op := proto.ReadRegisters(addr, n)
	return l.RequestReply("read-registers", op, []byte{n}, 4+int(n))
}

// WriteRegisterRange writes n consecutive boolean registers starting at
// addr.
func (l *Link) WriteRegisterRange(addr uint8, state []bool) error {
	if len(state) == 0 || len(state) > 255 {
		return errors.New("link: invalid register range length")
	}
	n := uint8(len(state))
	data := make([]byte, 1+len(state))
	data[0] = n
	for i, s := range state {
		if s {
			data[1+i] = 1
		}
	}
	op := proto.WriteRegisters(addr, n)
	return l.Send("write-registers", op, data, 4+int(n))
}

// TryRequestReply is the best-effort counterpart used by the move-to-floor
// loop's opportunistic PWM echo: it does not block on a busy link,
// returning ok=false immediately if another caller is mid-exchange.
func (l *Link) TryRequestReply(opName string, op proto.Op, payload []byte, respLen int) (resp []byte, ok bool, err error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	defer l.mu.Unlock()

	req := proto.Encode(op, payload)
	resp, err = l.exchange(opName, req, respLen, op)
	return resp, true, err
}

// TrySendControlSignal is SendControlSignal's best-effort counterpart:
// the move loop calls it every tick purely to echo the commanded PWM to
// the peripheral's diagnostic register, and a busy link simply means the
// echo is skipped this tick rather than stalling the control loop.
func (l *Link) TrySendControlSignal(id cabin.EncoderID, pwmPercent int32) (ok bool, err error) {
	data := make([]byte, 5)
	data[0] = byte(id)
	putI32LE(data[1:], pwmPercent)
	_, ok, err = l.TryRequestReply("send-pwm", proto.SendPWM, data, 5)
	return ok, err
}

func putI32LE(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putF32LE(b []byte, v float32) {
	bits := math.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}
