package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/flipcheck/flipcheck/pkg/logging"
)

// Job is a unit of scheduled work. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// Scheduler runs named jobs on cron schedules. A job still running when its next
// activation comes due is skipped for that activation.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// New creates a scheduler; call Start to begin running jobs
func New() *Scheduler {
	logger := logging.WithComponent("scheduler")
	cl := cronLogger{logger.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job under name with a standard cron spec or descriptor such as "@monthly"
func (s *Scheduler) Add(name, spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Info("Running scheduled job", zap.String("job", name))
		job(s.ctx)
		s.logger.Info("Scheduled job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("could not schedule %s (%q): %w", name, spec, err)
	}

	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return id, nil
}

// Run invokes a registered job immediately on the calling goroutine
func (s *Scheduler) Run(id cron.EntryID) bool {
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return false
	}
	entry.WrappedJob.Run()
	return true
}

// Next returns when the job will next run, or the zero time before Start
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", s.Len()))
}

// Stop stops scheduling, cancels running jobs' context and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
