// Package dispatch routes received CAN frames into the blackboard.
package dispatch

import (
	"encoding/binary"

	"go.einride.tech/can"

	"bbcan/blackboard"
	"bbcan/canspec"
)

// Receiver yields at most one buffered frame per call and reports false when
// nothing is pending. It must not block.
type Receiver interface {
	Receive() (can.Frame, bool)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func() (can.Frame, bool)

func (f ReceiverFunc) Receive() (can.Frame, bool) { return f() }

// RxDispatcher updates blackboard elements from incoming frames.
type RxDispatcher struct {
	store *blackboard.Store
	reg   *canspec.Registry
	rx    Receiver

	unknown      uint64
	unsubscribed uint64
	rejected     uint64
}

// New builds a dispatcher reading from rx.
func New(store *blackboard.Store, rx Receiver) *RxDispatcher {
	return &RxDispatcher{store: store, reg: store.Registry(), rx: rx}
}

// Poll consumes one frame. Frames with an unknown id, or an id this node does
// not subscribe to, are dropped. So are remote frames and frames whose
// identifier format does not match the message. Otherwise the whole 8-byte payload is written
// to the matching element, its callback runs, and the index is returned.
func (d *RxDispatcher) Poll() (canspec.Index, bool) {
	idx, updated, _ := d.step()
	return idx, updated
}

// Drain polls until the receiver is idle or max frames were consumed, and
// returns how many frames were taken. A max of zero or less means no limit.
func (d *RxDispatcher) Drain(max int) int {
	n := 0
	for max <= 0 || n < max {
		if _, _, consumed := d.step(); !consumed {
			break
		}
		n++
	}
	return n
}

func (d *RxDispatcher) step() (idx canspec.Index, updated, consumed bool) {
	frame, ok := d.rx.Receive()
	if !ok {
		return 0, false, false
	}

	idx, ok = d.reg.Lookup(frame.ID)
	if !ok {
		d.unknown++
		return 0, false, true
	}
	desc := d.reg.At(idx)
	if desc.RxChan == canspec.ChanNone {
		d.unsubscribed++
		return 0, false, true
	}
	if frame.IsRemote || frame.IsExtended != desc.Extended() {
		d.rejected++
		return 0, false, true
	}

	w0 := binary.LittleEndian.Uint32(frame.Data[0:4])
	w1 := binary.LittleEndian.Uint32(frame.Data[4:8])
	d.store.SetRawPair(idx, w0, w1)

	if desc.Callback != nil {
		desc.Callback.OnCANEvent(desc.RxChan, canspec.ChanNone)
	}
	return idx, true, true
}

// Discarded returns how many frames were dropped for an unknown id, for an
// unsubscribed id, and for being a remote or wrongly formatted frame.
func (d *RxDispatcher) Discarded() (unknown, unsubscribed, rejected uint64) {
	return d.unknown, d.unsubscribed, d.rejected
}
