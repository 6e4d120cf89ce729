// Package scheduler emits every transmitted blackboard message on its
// configured period.
//
// Process is called from one polling loop with the current and previous tick
// counts. Each message keeps a countdown in the blackboard; once it runs out
// the message is sent once on every channel of its tx mask and the countdown
// restarts at period - (overflow mod period). However many periods were
// missed, a message goes out at most once per call and its phase does not
// drift.
package scheduler

import (
	"time"

	"go.einride.tech/can"

	"bbcan/blackboard"
	"bbcan/canspec"
)

// Transmitter hands a frame to one physical channel. It must not block;
// failures are the driver's to count.
type Transmitter interface {
	Transmit(frame can.Frame)
}

// TransmitterFunc adapts a function to the Transmitter interface.
type TransmitterFunc func(frame can.Frame)

func (f TransmitterFunc) Transmit(frame can.Frame) { f(frame) }

// Option configures a TxScheduler.
type Option func(*TxScheduler)

// WithTickPeriod sets the duration of one tick. Message periods are converted
// with it. Defaults to one millisecond.
func WithTickPeriod(d time.Duration) Option {
	return func(s *TxScheduler) {
		if d > 0 {
			s.tickPeriod = d
		}
	}
}

// TxScheduler decides which messages are due and transmits them.
type TxScheduler struct {
	store        *blackboard.Store
	reg          *canspec.Registry
	tickPeriod   time.Duration
	periods      []uint32
	maxDelay     uint32
	transmitters []Transmitter
}

// New builds a scheduler over store. Call Init before Process.
func New(store *blackboard.Store, opts ...Option) *TxScheduler {
	s := &TxScheduler{
		store:      store,
		reg:        store.Registry(),
		tickPeriod: time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}

	s.periods = make([]uint32, s.reg.Len())
	for i := range s.periods {
		// round up so a message is never sent faster than its period
		p := uint32((s.reg.At(canspec.Index(i)).Period + s.tickPeriod - 1) / s.tickPeriod)
		if p == 0 {
			p = 1
		}
		s.periods[i] = p
	}
	return s
}

// Init staggers the wakeup offsets (now + index) so that not every message
// comes due on the first tick, and records the delay cap and transmitters.
// Transmitter n serves channel bit 1<<n.
func (s *TxScheduler) Init(maxDelay uint32, transmitters []Transmitter, now uint32) {
	s.maxDelay = maxDelay
	s.transmitters = transmitters
	for i := 0; i < s.reg.Len(); i++ {
		s.store.SetWakeupOffset(canspec.Index(i), now+uint32(i))
	}
}

// PeriodTicks returns the period of the message at idx in ticks.
func (s *TxScheduler) PeriodTicks(idx canspec.Index) uint32 {
	return s.periods[idx]
}

// Process advances every transmitted message by now - prevPoll ticks and
// sends the ones that came due. It returns how many ticks the caller may idle
// before the next call: the smallest remaining offset, capped at maxDelay.
func (s *TxScheduler) Process(now, prevPoll uint32) uint32 {
	elapsed := now - prevPoll
	hint := s.maxDelay

	for i := 0; i < s.reg.Len(); i++ {
		idx := canspec.Index(i)
		d := s.reg.At(idx)
		if d.TxChan == canspec.ChanNone {
			continue
		}

		if !s.store.DecrementWakeupOffset(idx, elapsed) {
			overflow := s.store.OverflowTicks(idx, elapsed)
			period := s.periods[i]
			s.store.SetWakeupOffset(idx, period-(overflow%period))
			s.transmit(idx, d)
		}

		if off := s.store.WakeupOffset(idx); off < hint {
			hint = off
		}
	}
	return hint
}

// transmit sends one snapshot of the element on every channel of its mask.
func (s *TxScheduler) transmit(idx canspec.Index, d *canspec.Descriptor) {
	frame := can.Frame{
		ID:         d.ID,
		Length:     d.Bytes,
		Data:       can.Data(s.store.RawBytes(idx)),
		IsExtended: d.Extended(),
	}

	for ch := 0; ch < len(s.transmitters); ch++ {
		mask := canspec.Channel(1) << ch
		if d.TxChan&mask == 0 {
			continue
		}
		s.transmitters[ch].Transmit(frame)
		if d.Callback != nil {
			d.Callback.OnCANEvent(canspec.ChanNone, mask)
		}
	}
}
