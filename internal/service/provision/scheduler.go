package provision

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"quilt-athena/internal/domain"
)

// ErrRunInProgress is returned when a run is triggered for a bucket that is
// still being provisioned.
var ErrRunInProgress = errors.New("a provisioning run for this bucket is already in progress")

type scheduledJob struct {
	spec    string
	objects []domain.CatalogObject
	params  domain.ProvisioningParameters
	entryID cron.EntryID
	running bool
	last    *Report
	lastErr error
}

// Scheduler re-provisions buckets on cron schedules. Ticks that arrive while
// the previous run for the same bucket is still going are skipped.
type Scheduler struct {
	cron   *cron.Cron
	orch   *Orchestrator
	logger *slog.Logger
	mu     sync.Mutex
	jobs   map[string]*scheduledJob // bucket -> job
}

// NewScheduler creates a scheduler running orch.
func NewScheduler(orch *Orchestrator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		orch:   orch,
		logger: logger,
		jobs:   make(map[string]*scheduledJob),
	}
}

// Add registers a schedule for params.BucketName, replacing any existing
// one. The plan is resolved up front so a bad template or catalog is
// reported here rather than on the first tick.
func (s *Scheduler) Add(spec string, objects []domain.CatalogObject, params domain.ProvisioningParameters) error {
	if _, err := s.orch.Plan(objects, params); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := params.BucketName
	if old, ok := s.jobs[bucket]; ok {
		s.cron.Remove(old.entryID)
		delete(s.jobs, bucket)
	}

	job := &scheduledJob{spec: spec, objects: objects, params: params}
	entryID, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Trigger(context.Background(), bucket); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("scheduled provisioning failed", "bucket", bucket, "error", err)
		}
	})
	if err != nil {
		return domain.ErrValidation("invalid cron schedule %q: %v", spec, err)
	}
	job.entryID = entryID
	s.jobs[bucket] = job
	s.logger.Info("scheduled provisioning", "bucket", bucket, "schedule", spec)
	return nil
}

// Remove drops the schedule for bucket. It reports whether one existed.
func (s *Scheduler) Remove(bucket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[bucket]
	if !ok {
		return false
	}
	s.cron.Remove(job.entryID)
	delete(s.jobs, bucket)
	return true
}

// Trigger runs the scheduled job for bucket now. It returns
// ErrRunInProgress if a run for bucket has not finished yet.
func (s *Scheduler) Trigger(ctx context.Context, bucket string) (*Report, error) {
	s.mu.Lock()
	job, ok := s.jobs[bucket]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound("no schedule for bucket %q", bucket)
	}
	if job.running {
		s.mu.Unlock()
		s.logger.Info("skipping tick, previous run still in progress", "bucket", bucket)
		return nil, ErrRunInProgress
	}
	job.running = true
	s.mu.Unlock()

	report, err := s.orch.Run(ctx, job.objects, job.params)

	s.mu.Lock()
	job.running = false
	job.last = report
	job.lastErr = err
	s.mu.Unlock()
	return report, err
}

// LastRun returns the report and error of the most recent run for bucket.
func (s *Scheduler) LastRun(bucket string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[bucket]
	if !ok {
		return nil, domain.ErrNotFound("no schedule for bucket %q", bucket)
	}
	return job.last, job.lastErr
}

// Buckets returns the number of scheduled buckets.
func (s *Scheduler) Buckets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("provisioning scheduler started")
}

// Stop stops the cron loop and waits for in-flight runs, or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("provisioning scheduler stopped")
}
