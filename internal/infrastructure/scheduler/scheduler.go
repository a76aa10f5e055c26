package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler accepting six-field cron specs (seconds first).
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
	}
}

// AddJob registers a job. The job's error is handed to onError rather than
// dropped; pass nil to ignore failures.
func (s *Scheduler) AddJob(spec string, job func(context.Context) error, onError func(error)) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil && onError != nil {
			onError(err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
