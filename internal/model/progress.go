package model

import (
	"time"

	"algojudge/internal/sandbox/verdict"
)

// ProgressEvent is a single entry on the per-submission progress channel.
// RuntimeMs and MemoryKb stay null until the terminal event of an
// accepted submission.
type ProgressEvent struct {
	SubmissionID    int64           `json:"submissionId"`
	Username        string          `json:"username"`
	SubmitStatus    verdict.Verdict `json:"submitStatus"`
	ProgressPercent int             `json:"progressPercent"`
	CurrentTest     int             `json:"currentTest"`
	TotalTests      int             `json:"totalTests"`
	Timestamp       string          `json:"timestamp"`
	RuntimeMs       *int64          `json:"runtimeMs"`
	MemoryKb        *int64          `json:"memoryKb"`
}

// StampNow sets the event timestamp to the current wall clock.
func (e *ProgressEvent) StampNow() {
	e.Timestamp = time.Now().Format(time.RFC3339Nano)
}
