// Package model defines the wire payloads consumed and produced by the
// judge worker.
package model

import (
	"strings"

	appErr "algojudge/pkg/errors"
)

// JudgeMessage is the ingress payload for one submission.
type JudgeMessage struct {
	SubmissionID  int64  `json:"submissionId"`
	ProblemID     int64  `json:"problemId"`
	Username      string `json:"username"`
	SourceCode    string `json:"sourceCode"`
	Language      string `json:"language"`
	TimeLimitSec  int64  `json:"timeLimitSec"`
	MemoryLimitMb int64  `json:"memoryLimitMb"`
}

// Validate checks that every field required for judging is present and
// sane. Language support is checked later against the configured
// profiles, not here.
func (m *JudgeMessage) Validate() error {
	if m.SubmissionID <= 0 {
		return appErr.ValidationError("submissionId", "must be positive")
	}
	if m.ProblemID <= 0 {
		return appErr.ValidationError("problemId", "must be positive")
	}
	if m.Username == "" {
		return appErr.ValidationError("username", "required")
	}
	if strings.TrimSpace(m.SourceCode) == "" {
		return appErr.ValidationError("sourceCode", "required")
	}
	if m.Language == "" {
		return appErr.ValidationError("language", "required")
	}
	if m.TimeLimitSec <= 0 {
		return appErr.ValidationError("timeLimitSec", "must be positive")
	}
	if m.MemoryLimitMb <= 0 {
		return appErr.ValidationError("memoryLimitMb", "must be positive")
	}
	return nil
}
