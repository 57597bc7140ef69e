package system

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/user_board/internal/logging"
)

// Job is a periodic maintenance task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on cron specs.
type Scheduler struct {
	cron   *cron.Cron
	log    *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers the jobs. Jobs with an empty spec are skipped.
func NewScheduler(log *logging.Logger, jobs ...Job) (*Scheduler, error) {
	if log == nil {
		log = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range jobs {
		if job.Spec == "" || job.Run == nil {
			continue
		}
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) run(job Job) {
	if err := job.Run(s.ctx); err != nil {
		s.log.WithFields(map[string]interface{}{"job": job.Name}).WithError(err).Warn("maintenance job failed")
		return
	}
	s.log.WithFields(map[string]interface{}{"job": job.Name}).Debug("maintenance job finished")
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Name() string { return "maintenance" }

func (s *Scheduler) Start(context.Context) error {
	s.cron.Start()
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
