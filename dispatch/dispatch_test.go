package dispatch

import (
	"testing"
	"time"

	"go.einride.tech/can"

	"bbcan/blackboard"
	"bbcan/canspec"
)

type fakeClock struct{ now uint32 }

func (c *fakeClock) Ticks() uint32 { return c.now }

type queue struct{ frames []can.Frame }

func (q *queue) Receive() (can.Frame, bool) {
	if len(q.frames) == 0 {
		return can.Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

type event struct{ rx, tx canspec.Channel }

func setup(t *testing.T, q *queue) (*RxDispatcher, *blackboard.Store, *fakeClock, *[]event) {
	t.Helper()
	events := &[]event{}
	reg := canspec.MustRegistry(
		canspec.Descriptor{ID: 0x100, Name: "Out", Period: 10 * time.Millisecond, Bytes: 8, TxChan: canspec.Chan1},
		canspec.Descriptor{ID: 0x200, Name: "In", Bytes: 4, RxChan: canspec.Chan2,
			Callback: canspec.CallbackFunc(func(rx, tx canspec.Channel) {
				*events = append(*events, event{rx, tx})
			})},
		canspec.Descriptor{ID: 0x300, Name: "Ext", ExtendedID: true, Bytes: 8, RxChan: canspec.Chan1},
	)
	clk := &fakeClock{now: 77}
	store := blackboard.New(reg, clk)
	return New(store, q), store, clk, events
}

func TestPollUpdatesSubscribedElement(t *testing.T) {
	q := &queue{frames: []can.Frame{{ID: 0x200, Length: 4, Data: can.Data{1, 2, 3, 4, 5, 6, 7, 8}}}}
	d, store, _, events := setup(t, q)

	idx, ok := d.Poll()
	if !ok || idx != 1 {
		t.Fatalf("Poll = %d,%v", idx, ok)
	}
	if got := store.RawBytes(1); got != [8]byte{1, 2, 3, 4, 5, 6, 7, 8} {
		t.Fatalf("element = % X", got)
	}
	if got := store.LastUpdate(1); got != 77 {
		t.Fatalf("LastUpdate = %d", got)
	}
	if len(*events) != 1 || (*events)[0] != (event{canspec.Chan2, canspec.ChanNone}) {
		t.Fatalf("callbacks = %+v", *events)
	}
}

func TestPollDiscards(t *testing.T) {
	q := &queue{frames: []can.Frame{
		{ID: 0x7FF, Length: 8, Data: can.Data{0xFF}},
		{ID: 0x100, Length: 8, Data: can.Data{0xEE}},
		{ID: 0x200, Length: 4, IsRemote: true},
		{ID: 0x200, Length: 4, IsExtended: true, Data: can.Data{9, 9, 9, 9}},
		{ID: 0x300, Length: 8, Data: can.Data{0xAA}},
	}}
	d, store, _, events := setup(t, q)

	for i := 0; i < 5; i++ {
		if _, ok := d.Poll(); ok {
			t.Fatalf("frame %d updated the blackboard", i)
		}
	}
	if _, ok := d.Poll(); ok {
		t.Fatalf("empty receiver reported an update")
	}

	for i := 0; i < store.Len(); i++ {
		if got := store.RawBytes(canspec.Index(i)); got != ([8]byte{}) {
			t.Fatalf("element %d modified: % X", i, got)
		}
	}
	if len(*events) != 0 {
		t.Fatalf("callbacks fired for discarded frames")
	}
	unknown, unsubscribed, rejected := d.Discarded()
	if unknown != 1 || unsubscribed != 1 || rejected != 3 {
		t.Fatalf("Discarded = %d,%d,%d, want 1,1,3", unknown, unsubscribed, rejected)
	}
}

func TestPollExtendedFrame(t *testing.T) {
	q := &queue{frames: []can.Frame{{ID: 0x300, Length: 8, IsExtended: true, Data: can.Data{0xAA, 0xBB}}}}
	d, store, _, _ := setup(t, q)

	idx, ok := d.Poll()
	if !ok || idx != 2 {
		t.Fatalf("Poll = %d,%v", idx, ok)
	}
	if got := blackboard.Get[uint16](store, 2, 0); got != 0xBBAA {
		t.Fatalf("Ext word = 0x%X", got)
	}
	if _, _, rejected := d.Discarded(); rejected != 0 {
		t.Fatalf("rejected = %d", rejected)
	}
}

func TestDrain(t *testing.T) {
	q := &queue{}
	for i := 0; i < 5; i++ {
		q.frames = append(q.frames, can.Frame{ID: 0x200, Length: 4, Data: can.Data{byte(i)}})
	}
	q.frames = append(q.frames, can.Frame{ID: 0x555})
	d, store, clk, events := setup(t, q)

	if n := d.Drain(2); n != 2 {
		t.Fatalf("Drain(2) = %d", n)
	}
	if got := blackboard.Get[uint8](store, 1, 0); got != 1 {
		t.Fatalf("after Drain(2) byte0 = %d, want 1", got)
	}

	clk.now = 90
	if n := d.Drain(0); n != 4 {
		t.Fatalf("Drain(0) = %d, want 4", n)
	}
	if got := blackboard.Get[uint8](store, 1, 0); got != 4 {
		t.Fatalf("latest value = %d, want 4", got)
	}
	if len(*events) != 5 {
		t.Fatalf("callbacks = %d, want 5", len(*events))
	}
	if store.LastUpdate(1) != 90 {
		t.Fatalf("LastUpdate = %d", store.LastUpdate(1))
	}
	if n := d.Drain(10); n != 0 {
		t.Fatalf("Drain on empty = %d", n)
	}
}

func TestReceiverFunc(t *testing.T) {
	sent := false
	rx := ReceiverFunc(func() (can.Frame, bool) {
		if sent {
			return can.Frame{}, false
		}
		sent = true
		return can.Frame{ID: 0x200, Length: 4, Data: can.Data{9}}, true
	})
	d, store, _, _ := setup(t, &queue{})
	d = New(store, rx)
	if _, ok := d.Poll(); !ok {
		t.Fatalf("Poll through ReceiverFunc failed")
	}
	if got := blackboard.Get[uint8](store, 1, 0); got != 9 {
		t.Fatalf("byte0 = %d", got)
	}
}
