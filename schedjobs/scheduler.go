// Package schedjobs runs recurring jobs on a cron runner.
package schedjobs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zeptools/gw-dbi/logger"
)

// CronJob is a recurring task. Spec is a five-field cron expression or a
// descriptor such as "@hourly" or "@every 30s".
type CronJob struct {
	ID   string
	Spec string
	Task func(ctx context.Context) error
	// Job-specific callback
	OnFinished func(error)

	entry cron.EntryID
}

// Scheduler runs cron jobs with the context it was created with.
// A job still running when its next activation comes up is skipped.
type Scheduler struct {
	ctx    context.Context
	runner *cron.Cron
	log    logger.Logger
	mu     sync.Mutex
	jobs   map[string]*CronJob
	// Default callback
	OnCronJobFinished func(job *CronJob, err error)
}

func NewScheduler(ctx context.Context) *Scheduler {
	l := logger.Log().AddContext(logger.Ctx{"component": "schedjobs"})
	cl := cronLogger{l}
	return &Scheduler{
		ctx:    ctx,
		runner: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:    l,
		jobs:   make(map[string]*CronJob),
	}
}

func (s *Scheduler) Start() {
	s.runner.Start()
	jobs := s.CronJobs()
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	s.log.Info("job scheduler started", logger.Ctx{"jobs": ids})
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.runner.Stop().Done()
	s.log.Info("job scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start()
	<-ctx.Done()
	s.Stop()
}

func (s *Scheduler) AddCronJob(job *CronJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already scheduled", job.ID)
	}
	id, err := s.runner.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Spec, job.ID, err)
	}
	job.entry = id
	s.jobs[job.ID] = job
	s.log.Debug("cron job added", logger.Ctx{"job": job.ID, "spec": job.Spec})
	return nil
}

// CronJobs returns the registered jobs ordered by ID.
func (s *Scheduler) CronJobs() []*CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*CronJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *CronJob) int { return strings.Compare(a.ID, b.ID) })
	return jobs
}

// NextRun returns the next activation time of a job. It is zero until the scheduler has started.
func (s *Scheduler) NextRun(jobID string) (time.Time, bool) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.runner.Entry(job.entry).Next, true
}

func (s *Scheduler) run(job *CronJob) {
	err := job.Task(s.ctx)
	if err != nil {
		s.log.Warn("cron job failed", logger.Ctx{"job": job.ID, "err": err})
	}
	if job.OnFinished != nil {
		job.OnFinished(err)
	}
	if s.OnCronJobFinished != nil {
		s.OnCronJobFinished(job, err)
	}
}

// cronLogger forwards the runner's own messages. Its chatter goes to debug.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	ctx := pairs(keysAndValues)
	ctx["err"] = err
	l.log.Error(msg, ctx)
}

func pairs(kv []any) logger.Ctx {
	ctx := logger.Ctx{}
	for i := 0; i+1 < len(kv); i += 2 {
		ctx[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return ctx
}
