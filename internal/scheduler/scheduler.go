package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const pollTimeout = 5 * time.Minute

// Poller is one live observation pass over the configured sources.
type Poller interface {
	PollLive(ctx context.Context, perChannelLimit int)
}

// Scheduler drives the live polling loop on a fixed cron interval.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	poller    Poller
	pollEvery time.Duration
	pollLimit int
	log       *slog.Logger
}

func New(
	ctx context.Context,
	poller Poller,
	pollEvery time.Duration,
	pollLimit int,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ctx:       ctx,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		poller:    poller,
		pollEvery: pollEvery,
		pollLimit: pollLimit,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.pollEvery)

	if _, err := s.cron.AddFunc(spec, s.poll); err != nil {
		return fmt.Errorf("add cron func: %w", err)
	}

	s.cron.Start()

	return nil
}

// Stop halts scheduling; a run already in progress completes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) poll() {
	ctx, cancel := context.WithTimeout(s.ctx, pollTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	s.poller.PollLive(ctx, s.pollLimit)
}
