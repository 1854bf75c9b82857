// Package verdict classifies sandbox run outcomes into submission verdicts.
package verdict

import "strings"

// Verdict is the submission status carried on the wire.
type Verdict string

const (
	Judging             Verdict = "JUDGING"
	Accepted            Verdict = "ACCEPTED"
	WrongAnswer         Verdict = "WRONG_ANSWER"
	TimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	MemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
	RuntimeError        Verdict = "RUNTIME_ERROR"
	CompileError        Verdict = "COMPILE_ERROR"
	ServerError         Verdict = "SERVER_ERROR"
)

// Terminal reports whether v ends the judging pipeline.
func (v Verdict) Terminal() bool {
	return v != "" && v != Judging
}

// Exit codes with a reserved meaning inside the sandbox.
const (
	exitCodeOOMKilled       = 137
	exitCodeCommandNotFound = 127
)

// Evidence is what one sandboxed run leaves behind for classification.
type Evidence struct {
	ExitCode        int
	WallExceeded    bool
	CPUTimeMs       int64
	PeakMemoryKB    int64
	Stdout          string
	StdoutTruncated bool
	Stderr          string
}

// Classify maps the evidence of a single test run to a verdict. The rules
// are ordered; the first match wins:
//
//  1. wall clock exceeded, or measured CPU time above the limit
//  2. OOM kill (exit 137) or a language memory-error token in stderr
//  3. exit 127, the runtime binary itself is missing
//  4. any other non-zero exit
//  5. truncated stdout capture, the comparison has no complete output
//  6. output mismatch after trailing-whitespace stripping
//
// A zero return value means the case passed.
func Classify(ev Evidence, expected string, limitMs int64, memoryTokens []string) Verdict {
	if ev.WallExceeded || (limitMs > 0 && ev.CPUTimeMs > limitMs) {
		return TimeLimitExceeded
	}
	if ev.ExitCode == exitCodeOOMKilled || containsAny(ev.Stderr, memoryTokens) {
		return MemoryLimitExceeded
	}
	if ev.ExitCode == exitCodeCommandNotFound {
		return ServerError
	}
	if ev.ExitCode != 0 {
		return RuntimeError
	}
	if ev.StdoutTruncated {
		return ServerError
	}
	if StripTrailing(ev.Stdout) != StripTrailing(expected) {
		return WrongAnswer
	}
	return ""
}

// Maxima accumulates peak resource usage across passed cases. The values
// are only reported for accepted submissions.
type Maxima struct {
	RuntimeMs int64
	MemoryKB  int64
}

// Observe folds one run's measurements into the running maxima.
func (m *Maxima) Observe(ev Evidence) {
	if ev.CPUTimeMs > m.RuntimeMs {
		m.RuntimeMs = ev.CPUTimeMs
	}
	if ev.PeakMemoryKB > m.MemoryKB {
		m.MemoryKB = ev.PeakMemoryKB
	}
}

// StripTrailing trims trailing spaces, tabs, CR and LF from the whole
// payload. Interior whitespace is preserved so per-line formatting still
// counts.
func StripTrailing(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
