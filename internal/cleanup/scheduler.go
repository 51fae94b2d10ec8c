package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RunTimeout bounds a single purge run.
const RunTimeout = 30 * time.Minute

// Purger deletes meetings whose retention has expired.
type Purger interface {
	PurgeStaleCancelled(ctx context.Context) (int, error)
}

// Scheduler runs the purge on a cron schedule evaluated in UTC.
type Scheduler struct {
	purger   Purger
	schedule string
	cron     *cron.Cron
	entry    cron.EntryID
	base     context.Context
	cancel   context.CancelFunc
	running  sync.WaitGroup
	logger   *zap.Logger
}

// NewScheduler validates schedule and registers the purge job. Overlapping runs are skipped.
func NewScheduler(purger Purger, schedule string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLog := cronLogger{logger.Named("cron").Sugar()}
	base, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		purger:   purger,
		schedule: schedule,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		base:   base,
		cancel: cancel,
		logger: logger,
	}
	id, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing on schedule. With runNow the job also fires immediately,
// through the same overlap guard as scheduled runs.
func (s *Scheduler) Start(runNow bool) {
	s.cron.Start()
	s.logger.Info("cleanup scheduler started", zap.String("schedule", s.schedule), zap.Time("next_run", s.Next()))
	if runNow {
		job := s.cron.Entry(s.entry).WrappedJob
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			job.Run()
		}()
	}
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop halts the schedule and waits for an in-flight run to finish. If ctx expires first the
// run is cancelled; it stops before its next meeting.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		s.logger.Info("cleanup scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("cleanup scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(s.base, RunTimeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce performs one purge and records its outcome. A failed run is logged and
// left for the next tick.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	purged, err := s.purger.PurgeStaleCancelled(ctx)
	elapsed := time.Since(start)

	runDuration.Observe(elapsed.Seconds())
	purgedTotal.Add(float64(purged))
	if err != nil {
		runsTotal.WithLabelValues("failure").Inc()
		s.logger.Error("cleanup run failed", zap.Int("purged", purged), zap.Duration("took", elapsed), zap.Error(err))
		return purged, err
	}
	runsTotal.WithLabelValues("success").Inc()
	s.logger.Info("cleanup run finished", zap.Int("purged", purged), zap.Duration("took", elapsed))
	return purged, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
