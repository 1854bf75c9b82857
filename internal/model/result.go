package model

import "algojudge/internal/sandbox/verdict"

// ResultMessage is the terminal verdict published to the result queue.
// RuntimeMs and MemoryKb are null for every verdict except ACCEPTED,
// where they carry the maxima over all executed tests.
type ResultMessage struct {
	SubmissionID int64           `json:"submissionId"`
	ProblemID    int64           `json:"problemId"`
	Username     string          `json:"username"`
	SubmitStatus verdict.Verdict `json:"submitStatus"`
	RuntimeMs    *int64          `json:"runtimeMs"`
	MemoryKb     *int64          `json:"memoryKb"`
}

// NewResultMessage builds the egress payload for a finished submission.
// The maxima are attached only when the verdict is ACCEPTED.
func NewResultMessage(msg *JudgeMessage, v verdict.Verdict, maxima verdict.Maxima) *ResultMessage {
	res := &ResultMessage{
		SubmissionID: msg.SubmissionID,
		ProblemID:    msg.ProblemID,
		Username:     msg.Username,
		SubmitStatus: v,
	}
	if v == verdict.Accepted {
		runtime := maxima.RuntimeMs
		memory := maxima.MemoryKB
		res.RuntimeMs = &runtime
		res.MemoryKb = &memory
	}
	return res
}
