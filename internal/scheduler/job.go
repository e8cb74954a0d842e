package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run is called once per attempt; the scheduler retries on error
	Run(ctx context.Context) error

	// Schedule is a six-field cron expression (seconds first),
	// e.g. "0 30 18 * * 1-5" for weekdays at 18:30
	Schedule() string
}

// JobResult is the outcome of one scheduled or manual run, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// historyLimit bounds the results kept per job
const historyLimit = 100

// JobHistory keeps the most recent results of a job, oldest first.
// The scheduler guards it with its own lock.
type JobHistory struct {
	Results []JobResult
}

// Add appends a result, dropping the oldest past historyLimit
func (h *JobHistory) Add(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = append([]JobResult(nil), h.Results[over:]...)
	}
}

// Latest returns up to n most recent results
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	return append([]JobResult{}, h.Results[len(h.Results)-n:]...)
}

// Failures returns every failed result still in the history
func (h *JobHistory) Failures() []JobResult {
	var failed []JobResult
	for _, r := range h.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// SuccessRate is the successful share of kept results (0 when empty)
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(h.successes()) / float64(len(h.Results))
}

func (h *JobHistory) successes() int {
	n := 0
	for _, r := range h.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Stats summarizes the history for status output
func (h *JobHistory) Stats(jobName, schedule string) JobStats {
	stats := JobStats{
		JobName:      jobName,
		Schedule:     schedule,
		TotalRuns:    len(h.Results),
		SuccessCount: h.successes(),
		SuccessRate:  h.SuccessRate(),
	}
	stats.FailureCount = stats.TotalRuns - stats.SuccessCount

	for i := len(h.Results) - 1; i >= 0; i-- {
		r := h.Results[i]
		if stats.LastRun == nil {
			stats.LastRun = &r.StartTime
		}
		if r.Success && stats.LastSuccess == nil {
			stats.LastSuccess = &r.StartTime
		}
		if !r.Success && stats.LastFailure == nil {
			stats.LastFailure = &r.StartTime
		}
		if stats.LastSuccess != nil && stats.LastFailure != nil {
			break
		}
	}
	return stats
}

func (h *JobHistory) clone() *JobHistory {
	return &JobHistory{Results: append([]JobResult(nil), h.Results...)}
}

// JobStats is the status view of one job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
