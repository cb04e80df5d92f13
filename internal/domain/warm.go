package domain

import "time"

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// FailureKind classifies why a warm job ended in JobFailed.
type FailureKind string

const (
	FailureJob       FailureKind = "job_failed"
	FailureTimeout   FailureKind = "timeout"
	FailureCancelled FailureKind = "cancelled"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerDeploy    = "deploy"
)

type JobFailure struct {
	Name   string      `json:"name"`
	Reason string      `json:"reason"`
	Kind   FailureKind `json:"kind"`
}

type WarmReport struct {
	RunID      string       `json:"runId"`
	Trigger    string       `json:"trigger"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Succeeded  []string     `json:"succeeded"`
	Failed     []JobFailure `json:"failed"`
	Cancelled  bool         `json:"cancelled"`
}

func (r WarmReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r WarmReport) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}
