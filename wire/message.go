// Package wire implements a minimal display protocol over a Unix stream
// socket, and a [winloop.Connection] speaking it.
//
// Every message is a protobuf-encoded record prefixed with its varint length.
// Field 1 is the opcode and field 2 the window id; the remaining fields are
// interpreted per opcode, see [Message].
package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Opcode identifies a message.
type Opcode uint32

// Client to server requests.
const (
	OpCreateSurface Opcode = iota + 1
	OpDestroySurface
	OpFrameRequest
	OpSetSurfaceSize
	OpSync
)

// Server to client events.
const (
	OpConfigure Opcode = iota + 16
	OpScale
	OpClose
	OpFrameDone
	OpFocus
	OpPointerMotion
	OpPointerButton
	OpKey
	OpRelativeMotion
	OpDone
)

var opcodeNames = map[Opcode]string{
	OpCreateSurface:  "CreateSurface",
	OpDestroySurface: "DestroySurface",
	OpFrameRequest:   "FrameRequest",
	OpSetSurfaceSize: "SetSurfaceSize",
	OpSync:           "Sync",
	OpConfigure:      "Configure",
	OpScale:          "Scale",
	OpClose:          "Close",
	OpFrameDone:      "FrameDone",
	OpFocus:          "Focus",
	OpPointerMotion:  "PointerMotion",
	OpPointerButton:  "PointerButton",
	OpKey:            "Key",
	OpRelativeMotion: "RelativeMotion",
	OpDone:           "Done",
}

// String returns a human-readable representation of the opcode.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint32(o))
}

// Message is the union of every message's fields.
//
//	CreateSurface, SetSurfaceSize, Configure: X, Y are the logical width, height
//	Scale:                                     X is the scale factor
//	PointerMotion, RelativeMotion:             X, Y are the position / delta
//	PointerButton, Key:                        Code, Flag (pressed)
//	Focus:                                     Flag (focused)
//	Sync, Done:                                Serial
//
// Key and RelativeMotion with a zero Window are device events, attributed to
// Device.
type Message struct {
	X      float64
	Y      float64
	Window uint64
	Serial uint64
	Device uint64
	Op     Opcode
	Code   uint32
	Flag   bool
}

const (
	fieldOp     protowire.Number = 1
	fieldWindow protowire.Number = 2
	fieldX      protowire.Number = 3
	fieldY      protowire.Number = 4
	fieldCode   protowire.Number = 5
	fieldFlag   protowire.Number = 6
	fieldSerial protowire.Number = 7
	fieldDevice protowire.Number = 8
)

// MaxFrameSize bounds the encoded size of one message.
const MaxFrameSize = 1 << 16

var (
	// ErrFrameTooLarge is returned for a length prefix above MaxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	errMissingOpcode = errors.New("wire: message has no opcode")
)

// AppendMessage appends the encoding of m, without a length prefix. Zero
// fields are omitted, except the opcode.
func AppendMessage(b []byte, m Message) []byte {
	b = protowire.AppendTag(b, fieldOp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Op))
	b = appendVarintField(b, fieldWindow, m.Window)
	b = appendDoubleField(b, fieldX, m.X)
	b = appendDoubleField(b, fieldY, m.Y)
	b = appendVarintField(b, fieldCode, uint64(m.Code))
	b = appendVarintField(b, fieldFlag, protowire.EncodeBool(m.Flag))
	b = appendVarintField(b, fieldSerial, m.Serial)
	b = appendVarintField(b, fieldDevice, m.Device)
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDoubleField(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// ParseMessage decodes one message, as encoded by [AppendMessage]. Unknown
// fields are skipped.
func ParseMessage(b []byte) (Message, error) {
	var (
		m     Message
		hasOp bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && isVarintField(num):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Message{}, fmt.Errorf("wire: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldOp:
				m.Op = Opcode(v)
				hasOp = true
			case fieldWindow:
				m.Window = v
			case fieldCode:
				m.Code = uint32(v)
			case fieldFlag:
				m.Flag = protowire.DecodeBool(v)
			case fieldSerial:
				m.Serial = v
			case fieldDevice:
				m.Device = v
			}
		case typ == protowire.Fixed64Type && (num == fieldX || num == fieldY):
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return Message{}, fmt.Errorf("wire: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldX {
				m.X = math.Float64frombits(v)
			} else {
				m.Y = math.Float64frombits(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Message{}, fmt.Errorf("wire: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !hasOp {
		return Message{}, errMissingOpcode
	}
	return m, nil
}

func isVarintField(num protowire.Number) bool {
	switch num {
	case fieldOp, fieldWindow, fieldCode, fieldFlag, fieldSerial, fieldDevice:
		return true
	default:
		return false
	}
}

// AppendFrame appends m with its length prefix.
func AppendFrame(b []byte, m Message) []byte {
	var scratch [64]byte
	body := AppendMessage(scratch[:0], m)
	b = protowire.AppendVarint(b, uint64(len(body)))
	return append(b, body...)
}

// ConsumeFrame decodes the first frame in b, returning the number of bytes
// consumed. It returns 0 and a nil error if b holds an incomplete frame.
func ConsumeFrame(b []byte) (Message, int, error) {
	size, n := protowire.ConsumeVarint(b)
	if n < 0 {
		if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
			return Message{}, 0, nil
		}
		return Message{}, 0, fmt.Errorf("wire: bad frame length: %w", protowire.ParseError(n))
	}
	if size > MaxFrameSize {
		return Message{}, 0, ErrFrameTooLarge
	}
	if uint64(len(b)-n) < size {
		return Message{}, 0, nil
	}
	m, err := ParseMessage(b[n : n+int(size)])
	if err != nil {
		return Message{}, 0, err
	}
	return m, n + int(size), nil
}
