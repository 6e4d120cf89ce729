package utils

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// FrameReader defines the interface for reading CAN frames
type FrameReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// SocketCANReader implements FrameReader using Einride's socketcan
type SocketCANReader struct {
	conn        net.Conn
	recv        *socketcan.Receiver
	errorFrames atomic.Uint64
}

// NewSocketCANReader creates a new SocketCAN reader
func NewSocketCANReader(ctx context.Context, ifname string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", ifname, err)
	}

	return &SocketCANReader{
		conn: conn,
		recv: socketcan.NewReceiver(conn),
	}, nil
}

// ReadFrame blocks for the next data frame. Error frames from the controller
// are counted and skipped; bus-off handling stays with the driver.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	// Unblock the pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = r.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for r.recv.Receive() {
		if r.recv.HasErrorFrame() {
			r.errorFrames.Add(1)
			continue
		}
		return r.recv.Frame(), nil
	}
	if ctx.Err() != nil {
		return can.Frame{}, ctx.Err()
	}
	if err := r.recv.Err(); err != nil {
		return can.Frame{}, fmt.Errorf("socketcan receive: %w", err)
	}
	return can.Frame{}, io.EOF
}

// ErrorFrames returns how many controller error frames were skipped.
func (r *SocketCANReader) ErrorFrames() uint64 { return r.errorFrames.Load() }

// Close closes the CAN socket
func (r *SocketCANReader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
