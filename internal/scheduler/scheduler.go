package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"PortfolioTracker/internal/model"
)

// Cycler runs one rotation cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Passer runs one aggregation pass.
type Passer interface {
	Pass(ctx context.Context) (*model.Window, error)
}

// Options configures the two loops.
type Options struct {
	CycleInterval     time.Duration
	AggregateInterval time.Duration
	RunOnStart        bool
}

// Scheduler drives the rotation and aggregation loops on one cron runner.
// Each loop skips a tick while its previous run is still in progress.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	rotator    Cycler
	aggregator Passer
	opts       Options

	rotateID    cron.EntryID
	aggregateID cron.EntryID
	wg          sync.WaitGroup
}

// NewScheduler creates a new Scheduler. ctx is handed to every job; cancelling
// it stops in-flight work at the next check.
func NewScheduler(ctx context.Context, rot Cycler, agg Passer, opts Options) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Ctx:        ctx,
		rotator:    rot,
		aggregator: agg,
		opts:       opts,
	}
}

// RegisterAll registers the rotation and aggregation jobs.
//
// Intervals are measured start to start, not from the end of the previous run
// as a sleep loop would. A run that outlasts its interval makes the next tick
// a no-op (SkipIfStillRunning), so a loop never overlaps itself and never
// queues a burst of catch-up runs.
func (s *Scheduler) RegisterAll() error {
	if s.opts.CycleInterval < time.Second {
		return fmt.Errorf("register rotation: interval %s below 1s", s.opts.CycleInterval)
	}
	if s.opts.AggregateInterval < time.Second {
		return fmt.Errorf("register aggregation: interval %s below 1s", s.opts.AggregateInterval)
	}
	s.rotateID = s.Cron.Schedule(cron.Every(s.opts.CycleInterval), cron.FuncJob(s.rotate))
	s.aggregateID = s.Cron.Schedule(cron.Every(s.opts.AggregateInterval), cron.FuncJob(s.aggregate))
	return nil
}

// Start starts the cron runner and, when enabled, runs both jobs once right away.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Printf("[INFO] scheduler started: rotation every %s, aggregation every %s", s.opts.CycleInterval, s.opts.AggregateInterval)
	if s.opts.RunOnStart {
		s.RunNow()
	}
}

// RunNow triggers both jobs through their wrapped chain, so a run already in
// progress makes the trigger a no-op.
func (s *Scheduler) RunNow() {
	for _, id := range []cron.EntryID{s.rotateID, s.aggregateID} {
		e := s.Cron.Entry(id)
		if !e.Valid() {
			continue
		}
		s.wg.Add(1)
		go func(j cron.Job) {
			defer s.wg.Done()
			j.Run()
		}(e.WrappedJob)
	}
}

// Stop stops scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.Cron.Stop()
	manual := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(manual)
	}()
	for _, done := range []<-chan struct{}{cronDone.Done(), manual} {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("scheduler stop: %w", ctx.Err())
		}
	}
	log.Println("[INFO] scheduler stopped")
	return nil
}

func (s *Scheduler) rotate() {
	if s.Ctx.Err() != nil {
		return
	}
	if _, err := s.rotator.RunCycle(s.Ctx); err != nil {
		log.Printf("[ERROR] rotation cycle: %v", err)
	}
}

func (s *Scheduler) aggregate() {
	if s.Ctx.Err() != nil {
		return
	}
	if _, err := s.aggregator.Pass(s.Ctx); err != nil {
		log.Printf("[ERROR] aggregation pass: %v", err)
	}
}
