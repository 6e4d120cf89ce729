// Package schedcheck certifies a CAN message set before deployment using
// worst-case response-time analysis for priority-arbitrated buses, after
// Davis, Burns, Bril and Lukkien, "Controller Area Network (CAN)
// schedulability analysis: Refuted, revisited and revised" (2007).
//
// All times are integer microseconds.
package schedcheck

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"bbcan/canspec"
)

// Unbounded marks a busy period, queue depth or response time that does not
// converge because the bus is saturated at that priority level.
const Unbounded int64 = math.MaxInt64

var (
	ErrDuplicateID    = errors.New("schedcheck: duplicate message id")
	ErrInvalidMessage = errors.New("schedcheck: invalid message")
	ErrInvalidParams  = errors.New("schedcheck: invalid parameters")
)

// Params are the tunables of one analysis run.
type Params struct {
	Jitter          int64 // queueing jitter of every message
	DeadlinePercent int64 // deadline as a percentage of the period
	BitTime         int64 // duration of one bit on the bus
	IDBits          int   // 11 or 29
}

// DefaultParams matches a 1 Mbit/s bus with 11-bit ids, 500µs jitter and a
// deadline of 90% of the period.
func DefaultParams() Params {
	return Params{Jitter: 500, DeadlinePercent: 90, BitTime: 1, IDBits: 11}
}

func (p Params) validate() error {
	if p.IDBits != 11 && p.IDBits != 29 {
		return fmt.Errorf("id width %d (want 11 or 29): %w", p.IDBits, ErrInvalidParams)
	}
	if p.BitTime <= 0 {
		return fmt.Errorf("bit time %d: %w", p.BitTime, ErrInvalidParams)
	}
	if p.Jitter < 0 {
		return fmt.Errorf("jitter %d: %w", p.Jitter, ErrInvalidParams)
	}
	if p.DeadlinePercent <= 0 {
		return fmt.Errorf("deadline %d%%: %w", p.DeadlinePercent, ErrInvalidParams)
	}
	return nil
}

// headerBits is the worst-case frame overhead including bit stuffing.
func (p Params) headerBits() int64 {
	if p.IDBits == 29 {
		return 80
	}
	return 55
}

// Message is the analyzer's view of one registry entry.
type Message struct {
	Name   string
	ID     uint32
	Bytes  uint8
	Period int64
}

// FromRegistry converts every descriptor of reg that has a period. Messages
// without one (received only, cycle unknown) cannot be analyzed and are left
// out.
func FromRegistry(reg *canspec.Registry) []Message {
	out := make([]Message, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		if d.Period <= 0 {
			continue
		}
		out = append(out, Message{
			Name:   d.Name,
			ID:     d.ID,
			Bytes:  d.Bytes,
			Period: d.Period.Microseconds(),
		})
	}
	return out
}

// Row holds the inputs and every intermediate quantity for one message.
type Row struct {
	Name string
	P    uint32 // priority (the CAN id)
	S    int64  // data bytes
	T    int64  // period
	D    int64  // deadline
	J    int64  // queueing jitter

	C int64   // transmission time
	B int64   // blocking by a lower priority frame in flight
	I int64   // interference from higher priority frames
	W int64   // queueing delay, B + I
	Y int64   // priority level busy period
	Q int64   // instances that become ready within Y
	U float64 // utilization at this priority level and above
	R int64   // worst-case response time
	N int64   // instances that need buffering

	Unschedulable bool
}

// Report is the result of one analysis run, rows in priority order.
type Report struct {
	Rows          []Row
	Unschedulable int
}

// Schedulable reports whether every message meets its deadline.
func (r *Report) Schedulable() bool { return r.Unschedulable == 0 }

// Analyze computes the timing table for msgs. It has no side effects and may
// run concurrently on independent inputs.
func Analyze(msgs []Message, p Params) (*Report, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rows := make([]Row, len(msgs))
	seen := make(map[uint32]string, len(msgs))
	for i, m := range msgs {
		if prev, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("id 0x%X used by %s and %s: %w", m.ID, prev, m.Name, ErrDuplicateID)
		}
		seen[m.ID] = m.Name
		if m.Period <= 0 {
			return nil, fmt.Errorf("message %s: period %d: %w", m.Name, m.Period, ErrInvalidMessage)
		}
		if m.Bytes > canspec.MaxBytes {
			return nil, fmt.Errorf("message %s: %d bytes: %w", m.Name, m.Bytes, ErrInvalidMessage)
		}
		rows[i] = Row{
			Name: m.Name,
			P:    m.ID,
			S:    int64(m.Bytes),
			T:    m.Period,
			D:    m.Period * p.DeadlinePercent / 100,
			J:    p.Jitter,
		}
	}

	// Smaller id wins arbitration, so it goes first.
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].P < rows[b].P })

	a := &analysis{rows: rows, p: p}
	a.transmissionTimes()
	a.blockingTimes()
	for i := range rows {
		a.queueingDelay(i)
		a.busyPeriod(i)
	}
	n := 0
	for i := range rows {
		if a.responseTime(i) {
			n++
		}
	}
	return &Report{Rows: rows, Unschedulable: n}, nil
}

type analysis struct {
	rows []Row
	p    Params
}

func (a *analysis) transmissionTimes() {
	for i := range a.rows {
		a.rows[i].C = (a.p.headerBits() + 10*a.rows[i].S) * a.p.BitTime
	}
}

func (a *analysis) blockingTimes() {
	var worst int64
	for i := len(a.rows) - 1; i >= 0; i-- {
		a.rows[i].B = worst
		if a.rows[i].C > worst {
			worst = a.rows[i].C
		}
	}
}

// interference is the bus time taken by higher priority frames that can be
// queued during a window of length w.
func (a *analysis) interference(i int, w int64) int64 {
	var sum int64
	for k := 0; k < i; k++ {
		hp := &a.rows[k]
		sum += hp.C * ceilDiv(w+hp.J+a.p.BitTime, hp.T)
	}
	return sum
}

// queueingDelay iterates W = B + I(W) from W = B. W only grows, so once the
// response already misses the deadline the loop stops; W is then a lower
// bound and the message is flagged by responseTime.
func (a *analysis) queueingDelay(i int) {
	r := &a.rows[i]
	w := r.B
	for {
		prev := w
		r.I = a.interference(i, prev)
		w = r.B + r.I
		if r.J+w+r.C > r.D || w == prev {
			break
		}
	}
	r.W = w
}

// busyPeriod iterates Y over all messages of this priority level and above.
// It cannot converge at utilization 1 or more.
func (a *analysis) busyPeriod(i int) {
	r := &a.rows[i]

	var u float64
	for k := 0; k <= i; k++ {
		u += float64(a.rows[k].C) / float64(a.rows[k].T)
	}
	r.U = u
	if u >= 1 {
		r.Y = Unbounded
		r.Q = Unbounded
		return
	}

	y := r.C
	for {
		prev := y
		var sum int64
		for k := 0; k <= i; k++ {
			m := &a.rows[k]
			sum += m.C * ceilDiv(prev+m.J, m.T)
		}
		y = r.B + sum
		if y == prev {
			break
		}
	}
	r.Y = y
	r.Q = ceilDiv(y+r.J, r.T)
}

// responseTime fills R and N and reports whether the message misses its
// deadline.
func (a *analysis) responseTime(i int) bool {
	r := &a.rows[i]

	switch {
	case r.U >= 1:
		r.R = Unbounded
	case r.Q <= 1:
		r.R = r.J + r.W + r.C
	default:
		// Each of the Q instances queued in the busy period is checked;
		// instance q starts behind q earlier copies of itself.
		r.R = 0
		for q := int64(0); q < r.Q; q++ {
			base := r.B + q*r.C
			w := base
			var rmq int64
			for {
				prev := w
				w = base + a.interference(i, prev)
				rmq = r.J + w + r.C - q*r.T
				if rmq > r.D || w == prev {
					break
				}
			}
			if rmq > r.R {
				r.R = rmq
			}
		}
	}

	if r.R == Unbounded {
		r.N = Unbounded
	} else {
		r.N = ceilDiv(r.R, r.T)
	}
	r.Unschedulable = r.R > r.D
	return r.Unschedulable
}

func ceilDiv(n, d int64) int64 {
	return (n + d - 1) / d
}
