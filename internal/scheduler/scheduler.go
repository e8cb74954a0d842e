package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/krxvalue/pkg/logger"
)

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	mu      sync.RWMutex

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
	jobTimeout time.Duration
}

// Options tunes retries and the per-attempt timeout
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration // 0 = no timeout
}

// DefaultOptions retries three times a minute apart
var DefaultOptions = Options{
	MaxRetries: 3,
	RetryDelay: 1 * time.Minute,
	JobTimeout: 30 * time.Minute,
}

// New creates a new scheduler with DefaultOptions
func New(log *logger.Logger) *Scheduler {
	return NewWithOptions(DefaultOptions, log)
}

// NewWithOptions creates a new scheduler
func NewWithOptions(opts Options, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log.Component("scheduler"),
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		jobTimeout: opts.JobTimeout,
	}
}

// AddJob validates the cron spec and registers job under its name
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	// Add job to cron
	entryID, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	// Store job
	s.jobs[jobName] = job
	s.entries[jobName] = entryID
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// Start begins firing jobs on their cron schedules
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next fire time of a job after now.
// Works before Start, unlike cron.Entry.Next.
func (s *Scheduler) NextRun(jobName string, now time.Time) (time.Time, error) {
	s.mu.RLock()
	id, exists := s.entries[jobName]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", jobName)
	}
	return s.cron.Entry(id).Schedule.Next(now), nil
}

// RunJobSync runs a job immediately and waits for it, retries included
func (s *Scheduler) RunJobSync(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", jobName)
	}

	result := s.runJob(ctx, job)
	if !result.Success {
		return result, fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}
	return result, nil
}

// runJob runs job up to maxRetries+1 times and records one result.
// Cancelling parent ends the retry wait early.
func (s *Scheduler) runJob(parent context.Context, job Job) JobResult {
	result := JobResult{JobName: job.Name(), StartTime: time.Now()}
	log := s.logger.WithField("job", result.JobName)
	log.Info("Job started")

	var lastErr error
retry:
	for result.Attempts <= s.maxRetries {
		result.Attempts++
		if lastErr = s.attempt(parent, job); lastErr == nil {
			result.Success = true
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": result.Attempts,
			"error":   lastErr.Error(),
		}).Warn("Job attempt failed")

		if result.Attempts > s.maxRetries {
			break
		}
		select {
		case <-parent.Done():
			lastErr = parent.Err()
			break retry
		case <-time.After(s.retryDelay):
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if lastErr != nil && !result.Success {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if history, ok := s.history[result.JobName]; ok {
		history.Add(result)
	}
	s.mu.Unlock()

	fields := map[string]interface{}{
		"duration": result.Duration,
		"attempts": result.Attempts,
	}
	if result.Success {
		log.WithFields(fields).Info("Job completed successfully")
	} else {
		log.WithFields(fields).WithField("error", result.Error).Error("Job failed after all retries")
	}

	return result
}

func (s *Scheduler) attempt(parent context.Context, job Job) error {
	if s.jobTimeout <= 0 {
		return job.Run(parent)
	}

	ctx, cancel := context.WithTimeout(parent, s.jobTimeout)
	defer cancel()
	return job.Run(ctx)
}

// GetJobHistory returns a copy of the kept results of a job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history.clone(), nil
}

// GetAllJobs lists registered job names in sorted order
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats summarizes the kept history of every job
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.history))
	for jobName, history := range s.history {
		stats[jobName] = history.Stats(jobName, s.jobs[jobName].Schedule())
	}
	return stats
}
