package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	"go.einride.tech/can"
)

// slcanBitrates maps bus bit rates to the adapter's S<n> setup codes.
var slcanBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// SLCANPort drives a Lawicel-compatible USB-serial CAN adapter. It is both a
// scheduler transmitter and a FrameReader.
type SLCANPort struct {
	port    io.ReadWriteCloser
	r       *bufio.Reader
	pending string
	log     *Logger

	wmu    sync.Mutex
	failed atomic.Uint64
}

// OpenSLCAN opens device at the given serial baud rate and starts the
// adapter on the bus at bitrate.
func OpenSLCAN(device string, baud, bitrate int, log *Logger) (*SLCANPort, error) {
	code, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("slcan: unsupported bitrate %d", bitrate)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	p := NewSLCANPort(port, log)
	if err := p.start(code); err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

// NewSLCANPort wraps an already open serial stream.
func NewSLCANPort(rw io.ReadWriteCloser, log *Logger) *SLCANPort {
	return &SLCANPort{port: rw, r: bufio.NewReader(rw), log: log}
}

func (p *SLCANPort) start(code byte) error {
	for _, cmd := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if err := p.write(cmd); err != nil {
			return fmt.Errorf("slcan setup %q: %w", strings.TrimSpace(cmd), err)
		}
	}
	return nil
}

func (p *SLCANPort) write(s string) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err := io.WriteString(p.port, s)
	return err
}

// Transmit writes the frame to the adapter. Write errors are logged and
// counted.
func (p *SLCANPort) Transmit(frame can.Frame) {
	if err := p.write(EncodeSLCAN(frame)); err != nil {
		p.failed.Add(1)
		p.log.Error("slcan tx id=0x%X: %v", frame.ID, err)
	}
}

// Failed returns the number of frames that could not be written.
func (p *SLCANPort) Failed() uint64 { return p.failed.Load() }

// ReadFrame returns the next frame reported by the adapter. Command
// acknowledgements are skipped. A serial read timeout only rechecks ctx.
func (p *SLCANPort) ReadFrame(ctx context.Context) (can.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return can.Frame{}, err
		}

		chunk, err := p.r.ReadString('\r')
		p.pending += chunk
		if err != nil {
			if errors.Is(err, io.EOF) {
				continue
			}
			return can.Frame{}, fmt.Errorf("slcan read: %w", err)
		}

		line := strings.TrimLeft(p.pending, "\a")
		p.pending = ""
		if line == "" {
			continue
		}
		switch line[0] {
		case 't', 'T', 'r', 'R':
			f, err := DecodeSLCAN(line)
			if err != nil {
				p.log.Warn("slcan: %v", err)
				continue
			}
			return f, nil
		}
	}
}

// Close takes the adapter off the bus and closes the port.
func (p *SLCANPort) Close() error {
	_ = p.write("C\r")
	return p.port.Close()
}
