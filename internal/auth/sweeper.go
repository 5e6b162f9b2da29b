package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs the sweep once an hour.
const DefaultSweepSchedule = "@every 1h"

// Sweeper periodically removes expired sessions on a cron schedule.
// It runs until Stop() is called.
type Sweeper struct {
	sessions *Sessions
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper schedules sessions.Sweep and runs one sweep synchronously before returning.
func NewSweeper(ctx context.Context, sessions *Sessions, schedule string) (*Sweeper, error) {
	sweeperCtx, cancel := context.WithCancel(ctx)

	sw := &Sweeper{
		sessions: sessions,
		cron:     cron.New(),
		ctx:      sweeperCtx,
		cancel:   cancel,
	}

	if _, err := sw.cron.AddFunc(schedule, sw.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	// Do initial sweep synchronously
	sw.sweep(ctx)

	sw.cron.Start()

	return sw, nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	sw.cancel()
	<-sw.cron.Stop().Done()
	sw.wg.Wait()

	log.Info().Msg("Session sweeper stopped")
}

func (sw *Sweeper) run() {
	sw.wg.Add(1)
	defer sw.wg.Done()

	if sw.ctx.Err() != nil {
		return
	}

	sw.sweep(sw.ctx)
}

func (sw *Sweeper) sweep(ctx context.Context) {
	count, err := sw.sessions.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Str("op", "sweep").Msg("Failed to sweep expired sessions")
		return
	}

	if count > 0 {
		log.Info().Int("count", count).Msg("Swept expired sessions")
		return
	}

	log.Debug().Msg("No expired sessions to sweep")
}
