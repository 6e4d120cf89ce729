package utils

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

type SocketCANWriter struct {
	ctx    context.Context
	conn   net.Conn
	tx     *socketcan.Transmitter
	log    *Logger
	failed atomic.Uint64
}

// NewSocketCANWriter dials iface (e.g. "can0", "vcan0"). ctx bounds the
// writes made through Transmit.
func NewSocketCANWriter(ctx context.Context, iface string, log *Logger) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &SocketCANWriter{
		ctx:  ctx,
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
		log:  log,
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

// Transmit satisfies the scheduler's transmitter contract. Errors are logged
// and counted, never returned: the next period retransmits anyway.
func (w *SocketCANWriter) Transmit(frame can.Frame) {
	if err := w.WriteFrame(w.ctx, frame); err != nil {
		w.failed.Add(1)
		w.log.Error("socketcan tx id=0x%X: %v", frame.ID, err)
	}
}

// Failed returns the number of frames the kernel refused.
func (w *SocketCANWriter) Failed() uint64 { return w.failed.Load() }

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
