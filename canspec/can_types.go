package canspec

import (
	"errors"
	"fmt"
	"time"
)

// MaxFields is the number of named sub-fields a message may declare.
const MaxFields = 4

// MaxBytes is the classical CAN payload size.
const MaxBytes = 8

const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

var (
	ErrDuplicateID   = errors.New("canspec: duplicate message id")
	ErrDuplicateName = errors.New("canspec: duplicate message name")
	ErrInvalidLayout = errors.New("canspec: invalid byte layout")
	ErrInvalidPeriod = errors.New("canspec: invalid period")
	ErrInvalidID     = errors.New("canspec: invalid identifier")
)

// Channel is a bitmask of CAN channels. Bit n addresses transmitter n.
type Channel uint8

const (
	ChanNone Channel = 0
	Chan1    Channel = 1
	Chan2    Channel = 2
	Chan3    Channel = 4
)

// Has reports whether every bit of c is set in ch.
func (ch Channel) Has(c Channel) bool { return c != 0 && ch&c == c }

// Callback is notified when a message is received or transmitted. Exactly one
// of rx and tx is non-zero per call.
type Callback interface {
	OnCANEvent(rx, tx Channel)
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(rx, tx Channel)

func (f CallbackFunc) OnCANEvent(rx, tx Channel) { f(rx, tx) }

// Field is a named sub-range of a message payload.
type Field struct {
	Name      string
	StartByte uint8
	ByteCount uint8
	Signed    bool
}

// Descriptor is the static description of one CAN message.
type Descriptor struct {
	ID   uint32
	Name string
	// ExtendedID selects the 29-bit frame format. Ids above 0x7FF are always
	// extended.
	ExtendedID bool
	Period     time.Duration
	Bytes      uint8
	Fields     []Field
	TxChan     Channel
	RxChan     Channel
	Callback   Callback
}

// Extended reports whether the message uses the 29-bit frame format.
func (d *Descriptor) Extended() bool { return d.ExtendedID || d.ID > maxStdID }

func (d *Descriptor) validate() error {
	if d.ID > maxExtID {
		return fmt.Errorf("message %s: id 0x%X: %w", d.Name, d.ID, ErrInvalidID)
	}
	if d.Bytes > MaxBytes {
		return fmt.Errorf("message %s (0x%X): %d bytes: %w", d.Name, d.ID, d.Bytes, ErrInvalidLayout)
	}
	if d.TxChan != ChanNone && d.Period <= 0 {
		return fmt.Errorf("message %s (0x%X): transmitted with period %v: %w", d.Name, d.ID, d.Period, ErrInvalidPeriod)
	}
	if d.Period < 0 {
		return fmt.Errorf("message %s (0x%X): period %v: %w", d.Name, d.ID, d.Period, ErrInvalidPeriod)
	}
	if len(d.Fields) > MaxFields {
		return fmt.Errorf("message %s (0x%X): %d fields, at most %d: %w", d.Name, d.ID, len(d.Fields), MaxFields, ErrInvalidLayout)
	}
	for _, f := range d.Fields {
		switch f.ByteCount {
		case 1, 2, 4:
		default:
			return fmt.Errorf("message %s field %s: byte count %d: %w", d.Name, f.Name, f.ByteCount, ErrInvalidLayout)
		}
		if f.StartByte%f.ByteCount != 0 {
			return fmt.Errorf("message %s field %s: start byte %d not aligned to %d: %w",
				d.Name, f.Name, f.StartByte, f.ByteCount, ErrInvalidLayout)
		}
		if int(f.StartByte)+int(f.ByteCount) > int(d.Bytes) {
			return fmt.Errorf("message %s field %s: bytes %d..%d outside dlc %d: %w",
				d.Name, f.Name, f.StartByte, int(f.StartByte)+int(f.ByteCount)-1, d.Bytes, ErrInvalidLayout)
		}
	}
	return nil
}
