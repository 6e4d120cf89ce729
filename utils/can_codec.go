package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.einride.tech/can"
)

// SLCAN (Lawicel) ASCII framing used by USB-serial CAN adapters:
//
//	t iii L dd..   standard data frame
//	T iiiiiiii L dd..  extended data frame
//	r / R          remote frames, no data
//
// each terminated by '\r'.

var ErrSLCANFrame = errors.New("slcan: malformed frame")

// EncodeSLCAN converts a frame into its SLCAN command line.
func EncodeSLCAN(frame can.Frame) string {
	var b strings.Builder
	switch {
	case frame.IsRemote && frame.IsExtended:
		b.WriteByte('R')
	case frame.IsRemote:
		b.WriteByte('r')
	case frame.IsExtended:
		b.WriteByte('T')
	default:
		b.WriteByte('t')
	}

	if frame.IsExtended {
		fmt.Fprintf(&b, "%08X", frame.ID&0x1FFFFFFF)
	} else {
		fmt.Fprintf(&b, "%03X", frame.ID&0x7FF)
	}

	length := frame.Length
	if length > 8 {
		length = 8
	}
	b.WriteByte('0' + length)

	if !frame.IsRemote {
		for i := uint8(0); i < length; i++ {
			fmt.Fprintf(&b, "%02X", frame.Data[i])
		}
	}
	b.WriteByte('\r')
	return b.String()
}

// DecodeSLCAN parses one SLCAN frame line, with or without the trailing '\r'.
func DecodeSLCAN(line string) (can.Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return can.Frame{}, ErrSLCANFrame
	}

	var f can.Frame
	idLen := 3
	switch line[0] {
	case 't':
	case 'T':
		f.IsExtended = true
		idLen = 8
	case 'r':
		f.IsRemote = true
	case 'R':
		f.IsRemote, f.IsExtended = true, true
		idLen = 8
	default:
		return can.Frame{}, fmt.Errorf("%w: unknown command %q", ErrSLCANFrame, line[0])
	}
	if len(line) < 1+idLen+1 {
		return can.Frame{}, fmt.Errorf("%w: %q too short", ErrSLCANFrame, line)
	}

	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return can.Frame{}, fmt.Errorf("%w: id: %v", ErrSLCANFrame, err)
	}
	f.ID = uint32(id)

	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return can.Frame{}, fmt.Errorf("%w: dlc %q", ErrSLCANFrame, dlc)
	}
	f.Length = dlc - '0'

	if f.IsRemote {
		return f, nil
	}
	data := line[2+idLen:]
	if len(data) < 2*int(f.Length) {
		return can.Frame{}, fmt.Errorf("%w: %d data bytes declared, %d hex digits present", ErrSLCANFrame, f.Length, len(data))
	}
	for i := 0; i < int(f.Length); i++ {
		v, err := strconv.ParseUint(data[2*i:2*i+2], 16, 8)
		if err != nil {
			return can.Frame{}, fmt.Errorf("%w: data: %v", ErrSLCANFrame, err)
		}
		f.Data[i] = byte(v)
	}
	return f, nil
}
