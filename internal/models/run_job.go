package models

import "time"

// RunJobStatus tracks an asynchronous substitution run.
type RunJobStatus string

const (
	RunJobQueued   RunJobStatus = "queued"
	RunJobRunning  RunJobStatus = "running"
	RunJobFinished RunJobStatus = "finished"
	RunJobFailed   RunJobStatus = "failed"
)

// RunSummary condenses a run result for listings and job polling.
type RunSummary struct {
	RunID       string         `json:"runId"`
	Date        string         `json:"date"`
	Day         string         `json:"day"`
	Status      string         `json:"status"`
	Assignments int            `json:"assignments"`
	Unfilled    int            `json:"unfilled"`
	Warnings    int            `json:"warnings"`
	Kinds       map[string]int `json:"warningKinds,omitempty"`
	DurationMs  int64          `json:"durationMs"`
}

// RunJob is the polling view of a queued run.
type RunJob struct {
	ID         string       `json:"id"`
	Date       string       `json:"date"`
	Absentees  []string     `json:"absentees,omitempty"`
	Status     RunJobStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	Error      string       `json:"error,omitempty"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	Summary    *RunSummary  `json:"summary,omitempty"`
}

// MetricsSnapshot is the JSON view of service metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	RunsTotal                uint64    `json:"runsTotal"`
	AssignmentsTotal         uint64    `json:"assignmentsTotal"`
	WarningsTotal            uint64    `json:"warningsTotal"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
