package scheduler

import (
	"context"
	"sync"

	"cafenotice/noticebot/logger"

	"github.com/robfig/cron/v3"
)

// Job is the work run on every tick
type Job func(ctx context.Context) int

// Scheduler runs a poll job on a cron schedule
type Scheduler struct {
	cron *cron.Cron
	job  Job
	ctx  context.Context
	log  *logger.Logger

	mu      sync.Mutex
	running bool
}

// New creates a scheduler that runs job on spec (standard cron or "@every 5m").
// Ticks that arrive while the previous run is still busy are skipped.
func New(ctx context.Context, spec string, job Job) (*Scheduler, error) {
	log := logger.ForComponent("scheduler")
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))

	s := &Scheduler{
		cron: c,
		job:  job,
		ctx:  ctx,
		log:  log,
	}

	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}

	return s, nil
}

// Start starts the cron loop in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info().Time("next", e.Next).Msg("Scheduler started")
	}
}

// Stop stops scheduling new runs and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce runs the job immediately unless a run is already in progress.
// It reports whether the job ran.
func (s *Scheduler) RunOnce() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug().Msg("Run already in progress, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.ctx.Err() != nil {
		return false
	}
	s.job(s.ctx)
	return true
}

func (s *Scheduler) tick() {
	s.RunOnce()
}

// cronLogger adapts the zerolog wrapper to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
