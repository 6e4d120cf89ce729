package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bbcan/blackboard"
	"bbcan/canspec"
	"bbcan/dispatch"
	"bbcan/scheduler"
	"bbcan/utils"
)

type namedReader struct {
	name string
	r    utils.FrameReader
}

// transportCounter is a fault counter exposed by a channel's transport.
type transportCounter struct {
	name string
	read func() uint64
}

type Runner struct {
	cfg   NodeConfig
	log   *utils.Logger
	reg   *canspec.Registry
	clock *utils.MonotonicClock
	store *blackboard.Store
	sched *scheduler.TxScheduler
	disp  *dispatch.RxDispatcher
	queue *utils.FrameQueue

	transmitters []scheduler.Transmitter
	readers      []namedReader
	closers      []io.Closer
	counters     []transportCounter

	staleTicks uint32
	stale      []bool

	txEvents atomic.Uint64
	rxEvents atomic.Uint64
}

func NewRunner(ctx context.Context, cfg NodeConfig, log *utils.Logger) (*Runner, error) {
	r := &Runner{
		cfg:   cfg,
		log:   log,
		clock: utils.NewMonotonicClock(cfg.Timing.Tick),
		queue: utils.NewFrameQueue(cfg.Timing.RxQueue),
	}

	reg, err := canspec.LoadFile(cfg.Registry,
		canspec.WithNodeName(cfg.Meta.DBCNode),
		canspec.WithCallbackFactory(r.eventCallback))
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	r.reg = reg
	r.store = blackboard.New(reg, r.clock)
	r.sched = scheduler.New(r.store, scheduler.WithTickPeriod(cfg.Timing.Tick))
	r.disp = dispatch.New(r.store, r.queue)

	for _, v := range cfg.Values {
		idx, f, err := r.store.Named(v.Message, v.Field)
		if err != nil {
			return nil, fmt.Errorf("initial value: %w", err)
		}
		r.store.SetField(idx, f, v.Value)
	}

	for i, ch := range cfg.Channels {
		if err := r.openChannel(ctx, i, ch); err != nil {
			r.Close()
			return nil, err
		}
	}

	r.staleTicks = uint32(cfg.Timing.StaleAfter / cfg.Timing.Tick)
	r.stale = make([]bool, reg.Len())
	return r, nil
}

func (r *Runner) openChannel(ctx context.Context, i int, ch ChannelConfig) error {
	name := fmt.Sprintf("ch%d", i+1)
	switch ch.Transport {
	case "socketcan":
		w, err := utils.NewSocketCANWriter(ctx, ch.Interface, r.log)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.closers = append(r.closers, w)
		r.transmitters = append(r.transmitters, w)
		r.counters = append(r.counters, transportCounter{name + "_tx_failed", w.Failed})
		if ch.TxOnly {
			break
		}
		rd, err := utils.NewSocketCANReader(ctx, ch.Interface)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.closers = append(r.closers, rd)
		r.counters = append(r.counters, transportCounter{name + "_rx_error_frames", rd.ErrorFrames})
		r.readers = append(r.readers, namedReader{name: name + "/" + ch.Interface, r: rd})

	case "slcan":
		baud := ch.Baud
		if baud == 0 {
			baud = 115200
		}
		p, err := utils.OpenSLCAN(ch.Device, baud, ch.Bitrate, r.log)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.closers = append(r.closers, p)
		r.transmitters = append(r.transmitters, p)
		r.counters = append(r.counters, transportCounter{name + "_tx_failed", p.Failed})
		if !ch.TxOnly {
			r.readers = append(r.readers, namedReader{name: name + "/" + ch.Device, r: p})
		}

	case "loopback":
		r.transmitters = append(r.transmitters, utils.NewLoopback(r.queue))
	}
	r.log.Info("Channel %s (mask 0x%02X) opened: transport=%s", name, uint8(ChannelMask(i)), ch.Transport)
	return nil
}

// eventCallback counts transmissions and receptions and traces them.
func (r *Runner) eventCallback(d *canspec.Descriptor) canspec.Callback {
	name, id := d.Name, d.ID
	return canspec.CallbackFunc(func(rx, tx canspec.Channel) {
		if rx != canspec.ChanNone {
			r.rxEvents.Add(1)
		} else {
			r.txEvents.Add(1)
		}
		if r.log.Enabled(utils.TRACE) {
			r.log.Trace("event %s id=0x%X rx=0x%02X tx=0x%02X", name, id, uint8(rx), uint8(tx))
		}
	})
}

func (r *Runner) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.log.Warn("close: %v", err)
		}
	}
	r.closers = nil
}

func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Timing.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timing.Duration)
		defer cancel()
	}

	r.log.Info("Starting node=%s messages=%d channels=%d tick=%v max_delay=%d",
		r.cfg.Meta.Name, r.reg.Len(), len(r.transmitters), r.cfg.Timing.Tick, r.cfg.Timing.MaxDelayTicks)

	g, gctx := errgroup.WithContext(ctx)
	for _, nr := range r.readers {
		nr := nr
		g.Go(func() error {
			return r.queue.Pump(gctx, nr.name, nr.r, r.log)
		})
	}
	g.Go(func() error {
		return r.tickLoop(gctx)
	})

	err := g.Wait()
	r.logStatus()
	r.log.Info("Stopped node=%s", r.cfg.Meta.Name)
	if err == context.DeadlineExceeded && r.cfg.Timing.Duration > 0 {
		return nil
	}
	return err
}

func (r *Runner) tickLoop(ctx context.Context) error {
	now := r.clock.Ticks()
	r.sched.Init(r.cfg.Timing.MaxDelayTicks, r.transmitters, now)

	ticker := time.NewTicker(r.cfg.Timing.Tick)
	defer ticker.Stop()

	var statusTicker <-chan time.Time
	if r.cfg.Timing.StatusEvery > 0 {
		st := time.NewTicker(r.cfg.Timing.StatusEvery)
		defer st.Stop()
		statusTicker = st.C
	}

	prev := now
	var sleep uint32
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-statusTicker:
			r.logStatus()

		case <-ticker.C:
			now = r.clock.Ticks()
			if now-prev >= sleep {
				sleep = r.sched.Process(now, prev)
				prev = now
			}
			r.disp.Drain(r.cfg.Timing.RxBurst)
			r.checkStale(now)
		}
	}
}

// checkStale warns when a subscribed message stops arriving and again when it
// comes back.
func (r *Runner) checkStale(now uint32) {
	if r.staleTicks == 0 {
		return
	}
	for i := 0; i < r.reg.Len(); i++ {
		idx := canspec.Index(i)
		d := r.reg.At(idx)
		if d.RxChan == canspec.ChanNone {
			continue
		}
		age := r.store.Age(idx, now)
		stale := age > r.staleTicks
		if stale == r.stale[i] {
			continue
		}
		r.stale[i] = stale
		if stale {
			r.log.Warn("No %s (id=0x%X) for %v", d.Name, d.ID, time.Duration(age)*r.cfg.Timing.Tick)
		} else {
			r.log.Info("%s (id=0x%X) receiving again", d.Name, d.ID)
		}
	}
}

func (r *Runner) logStatus() {
	unknown, unsubscribed, rejected := r.disp.Discarded()
	var sb strings.Builder
	for _, c := range r.counters {
		fmt.Fprintf(&sb, " %s=%d", c.name, c.read())
	}
	r.log.Info("Status: tx_events=%d rx_events=%d rx_unknown=%d rx_unsubscribed=%d rx_rejected=%d rx_dropped=%d%s",
		r.txEvents.Load(), r.rxEvents.Load(), unknown, unsubscribed, rejected, r.queue.Dropped(), sb.String())
}
