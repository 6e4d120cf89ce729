package utils

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.einride.tech/can"
)

// FrameQueue buffers received frames between blocking reader goroutines and
// the polling dispatcher. Receive never blocks.
type FrameQueue struct {
	ch      chan can.Frame
	dropped atomic.Uint64
}

func NewFrameQueue(size int) *FrameQueue {
	if size < 1 {
		size = 1
	}
	return &FrameQueue{ch: make(chan can.Frame, size)}
}

// Push enqueues f, dropping it when the queue is full.
func (q *FrameQueue) Push(f can.Frame) bool {
	select {
	case q.ch <- f:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Receive returns the oldest buffered frame, or false when the queue is empty.
func (q *FrameQueue) Receive() (can.Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
		return can.Frame{}, false
	}
}

// Dropped returns how many frames were lost to a full queue.
func (q *FrameQueue) Dropped() uint64 { return q.dropped.Load() }

// Pump copies frames from r into the queue until ctx ends or r fails.
func (q *FrameQueue) Pump(ctx context.Context, name string, r FrameReader, log *Logger) error {
	log.Debug("RX pump %s started", name)
	defer log.Debug("RX pump %s stopped", name)

	for {
		frame, err := r.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("rx %s: %w", name, err)
		}
		if !q.Push(frame) {
			log.Warn("RX queue full, dropped id=0x%X from %s", frame.ID, name)
			continue
		}
		if log.Enabled(TRACE) {
			log.Trace("RX %s id=0x%X len=%d data=% X", name, frame.ID, frame.Length, frame.Data[:frame.Length])
		}
	}
}
