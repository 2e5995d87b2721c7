package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/civiclens/civiclens-go/utils"
)

// Scheduler runs periodic parse sweeps over pending posts. Sweeps never
// overlap: a tick that arrives while one is running is skipped.
type Scheduler struct {
	orch      *Orchestrator
	batchSize int
	cron      *cron.Cron
	running   chan struct{}
	log       *utils.Logger
}

// NewScheduler creates a sweep scheduler for the orchestrator
func NewScheduler(orch *Orchestrator, batchSize int, log *utils.Logger) *Scheduler {
	return &Scheduler{
		orch:      orch,
		batchSize: batchSize,
		cron:      cron.New(),
		running:   make(chan struct{}, 1),
		log:       log,
	}
}

// Start registers the sweep on the given cron schedule and begins ticking
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid parse schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	if s.log != nil {
		s.log.Info("parse scheduler started", utils.String("schedule", schedule))
	}
	return nil
}

// Stop halts the ticker and waits for a sweep in flight to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		if s.log != nil {
			s.log.Warn("timed out waiting for running sweep to finish")
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	default:
		if s.log != nil {
			s.log.Warn("skipping sweep, previous still running")
		}
		return
	}

	runID := uuid.NewString()
	start := time.Now()
	parsed, err := s.orch.ProcessPending(ctx, s.batchSize)
	if err != nil {
		if s.log != nil {
			s.log.Error("parse sweep failed", err,
				utils.String("run_id", runID),
				utils.Int("parsed", parsed))
		}
		return
	}
	if s.log != nil {
		s.log.Info("parse sweep complete",
			utils.String("run_id", runID),
			utils.Int("parsed", parsed),
			utils.Duration("elapsed", time.Since(start)))
	}
}
