package proto

import (
	"encoding/binary"
	"fmt"
)

// Addressing bytes fixed by the wire protocol.
const (
	sourceAddress uint8 = 0x00 // prefixes every response
	targetAddress uint8 = 0x01 // prefixes every request
)

// registerCode is the fixed four-byte trailer appended to every request
// after the payload, before the CRC.
var registerCode = [4]byte{0x06, 0x05, 0x02, 0x01}

// Op describes one wire operation: its code, subcode (or, for the register
// operations, the register address), and — for the register operations —
// the payload quantity that the response must carry so that a response
// with no subcode echo can still be validated.
type Op struct {
	Code    uint8
	Subcode uint8
	Qty     *uint8 // nil unless the operation carries an explicit length
}

func qty(n uint8) *uint8 { return &n }

var (
	// ReadEncoder reads the 4-byte little-endian encoder count for the
	// encoder id given as the single payload byte.
	ReadEncoder = Op{Code: 0x23, Subcode: 0xC1}
	// SendPWM commands a signed percent duty on the named encoder's motor.
	SendPWM = Op{Code: 0x16, Subcode: 0xC2}
	// SendTemp reports a cabin's measured temperature.
	SendTemp = Op{Code: 0x16, Subcode: 0xD1}
)

// ReadRegisters builds the READ_REGISTERS(addr, n) operation.
func ReadRegisters(addr, n uint8) Op {
	return Op{Code: 0x03, Subcode: addr, Qty: qty(n)}
}

// WriteRegisters builds the WRITE_REGISTERS(addr, n) operation.
func WriteRegisters(addr, n uint8) Op {
	return Op{Code: 0x06, Subcode: addr, Qty: qty(n)}
}

// DecodeError is returned by Decode with a human-readable diagnostic so a
// frame mismatch yields a typed, explained failure instead of a bare bool.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "proto: " + e.Reason }

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Encode builds a request frame for op carrying payload data:
//
//	[TARGET][code][subcode][data...][registerCode(4)][crc16_le(2)]
func Encode(op Op, data []byte) []byte {
	buf := make([]byte, 0, 3+len(data)+4+2)
	buf = append(buf, targetAddress, op.Code, op.Subcode)
	buf = append(buf, data...)
	buf = append(buf, registerCode[:]...)

	crc := crc16(buf)
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)

	return buf
}

// Decode validates a response frame against the operation that produced
// the request and returns its payload.
//
// Response layout is [SOURCE][code][subcode (only when op.Qty == nil)]
// [payload...][crc16_le(2)]. Decode checks, in order: minimum length,
// source address, matching opcode, matching subcode (when Qty is nil),
// expected payload length (when Qty is set), and CRC equality.
func Decode(op Op, frame []byte) ([]byte, error) {
	if len(frame) < 5 {
		return nil, decodeErrorf("invalid length: %d < 5", len(frame))
	}

	if frame[0] != sourceAddress {
		return nil, decodeErrorf("invalid address: %#x != %#x", frame[0], sourceAddress)
	}

	if frame[1] != op.Code {
		return nil, decodeErrorf("invalid code: %#x != %#x", frame[1], op.Code)
	}

	var payload []byte
	if op.Qty == nil {
		if len(frame) < 3 {
			return nil, decodeErrorf("invalid length: %d < 3", len(frame))
		}
		if frame[2] != op.Subcode {
			return nil, decodeErrorf("invalid subcode: %#x != %#x", frame[2], op.Subcode)
		}
		payload = frame[3 : len(frame)-2]
	} else {
		payload = frame[2 : len(frame)-2]
		if len(payload) != int(*op.Qty) {
			return nil, decodeErrorf("invalid data length: %d != %d", len(payload), *op.Qty)
		}
	}

	wantCRC := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	gotCRC := crc16(frame[:len(frame)-2])
	if wantCRC != gotCRC {
		return nil, decodeErrorf("invalid crc16: %#x != %#x", wantCRC, gotCRC)
	}

	return payload, nil
}
