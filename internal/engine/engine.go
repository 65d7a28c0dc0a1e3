// Package engine owns the daemon's clocks: the 1 Hz tick that drives the
// attention sampler and the soft-block countdown, and the slower rollover
// ticker that resets stale day rows.
package engine

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"tabwarden/internal/attention"
	"tabwarden/internal/enforcer"
	"tabwarden/internal/rollover"
	"tabwarden/internal/softblock"
)

// Engine runs the periodic work. Network-bound tasks run in guarded
// goroutines so a slow backend cannot stall the countdown tick.
type Engine struct {
	enforcer *enforcer.Enforcer
	timer    *softblock.Timer
	sampler  *attention.Sampler
	resetter *rollover.Resetter

	rolloverEvery time.Duration

	samplerBusy  atomic.Bool
	rolloverBusy atomic.Bool
	pauseBusy    atomic.Bool
}

func NewEngine(enf *enforcer.Enforcer, timer *softblock.Timer, sampler *attention.Sampler, resetter *rollover.Resetter, rolloverEvery time.Duration) *Engine {
	if rolloverEvery <= 0 {
		rolloverEvery = time.Minute
	}
	return &Engine{
		enforcer:      enf,
		timer:         timer,
		sampler:       sampler,
		resetter:      resetter,
		rolloverEvery: rolloverEvery,
	}
}

// Run starts the tickers and blocks until ctx is cancelled. A final flush
// runs on the way out so accumulated attention survives a restart.
func (e *Engine) Run(ctx context.Context) error {
	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	roll := time.NewTicker(e.rolloverEvery)
	defer roll.Stop()

	log.Println("Engine started - sampling attention and watching the countdown...")

	// Catch up stale day rows immediately on start.
	e.runRollover(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Engine shutting down...")
			e.finalFlush()
			return nil
		case <-tick.C:
			e.tickSecond(ctx)
		case <-roll.C:
			e.runRollover(ctx)
		}
	}
}

// tickSecond is one beat of the 1 Hz clock: advance the countdown, push
// the remaining time to the tabs, and credit the active tab's attention.
func (e *Engine) tickSecond(ctx context.Context) {
	e.tickCountdown(ctx)

	if e.samplerBusy.CompareAndSwap(false, true) {
		go func() {
			defer e.samplerBusy.Store(false)
			e.sampler.Tick(ctx)
		}()
	}
}

func (e *Engine) tickCountdown(ctx context.Context) {
	st := e.timer.Status()
	if !st.Running {
		return
	}

	// Suspend the clock while focus sits on an allowed tab. The check can
	// hit the backend, so it runs guarded; the countdown keeps its current
	// value until the verdict lands.
	if !st.Paused && e.pauseBusy.CompareAndSwap(false, true) {
		go func() {
			defer e.pauseBusy.Store(false)
			e.enforcer.PauseIfIdle(ctx)
		}()
	}

	_, expired := e.timer.TickDown()
	if expired {
		log.Println("Soft block countdown expired")
		e.enforcer.BroadcastTick()
		go e.enforcer.EnforceExpiry(ctx)
		return
	}
	if st.Paused {
		return
	}
	e.enforcer.BroadcastTick()
}

func (e *Engine) runRollover(ctx context.Context) {
	if !e.rolloverBusy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.rolloverBusy.Store(false)
		if err := e.resetter.Run(ctx); err != nil {
			log.Printf("Day rollover pass failed: %v", err)
		}
	}()
}

// finalFlush pushes whatever the accumulator holds before shutdown. Runs
// with its own deadline since the run context is already cancelled.
func (e *Engine) finalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.sampler.Flush(ctx); err != nil {
		log.Printf("Final flush failed: %v", err)
	}
}
