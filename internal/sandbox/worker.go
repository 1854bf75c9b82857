// Package sandbox runs one submission through its compile gate and test
// loop inside the execution engine.
package sandbox

import (
	"context"
	"strings"
	"time"

	"algojudge/internal/model"
	"algojudge/internal/problemdata"
	"algojudge/internal/repository"
	"algojudge/internal/sandbox/engine"
	"algojudge/internal/sandbox/profile"
	"algojudge/internal/sandbox/verdict"
	appErr "algojudge/pkg/errors"
	"algojudge/pkg/utils/logger"
)

// Outcome is what one judged submission produces: the terminal verdict
// and, for accepted submissions, the resource maxima over all tests.
type Outcome struct {
	Verdict verdict.Verdict
	Maxima  verdict.Maxima
}

// Worker executes the compile-then-run workflow for one submission at a
// time. The orchestrator owns workspace and test data; the worker owns
// everything that happens inside the sandbox.
type Worker struct {
	engine         engine.Engine
	languages      *profile.Registry
	progress       repository.ProgressPublisher
	compileTimeout time.Duration
	wallGrace      time.Duration
}

// NewWorker creates a worker. A nil progress publisher silences the
// intermediate events; the terminal event stays with the orchestrator.
func NewWorker(eng engine.Engine, languages *profile.Registry, progress repository.ProgressPublisher, compileTimeout, wallGrace time.Duration) (*Worker, error) {
	if eng == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("sandbox engine is required")
	}
	if languages == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("language registry is required")
	}
	if compileTimeout <= 0 {
		compileTimeout = 90 * time.Second
	}
	if wallGrace <= 0 {
		wallGrace = 2 * time.Second
	}
	return &Worker{
		engine:         eng,
		languages:      languages,
		progress:       progress,
		compileTimeout: compileTimeout,
		wallGrace:      wallGrace,
	}, nil
}

// Judge runs the submission in workDir against the given tests and
// returns the outcome. The error return covers infrastructure failures
// only; those map to SERVER_ERROR upstream. Judging failures (compile
// errors, wrong answers, limit violations) are verdicts, not errors.
func (w *Worker) Judge(ctx context.Context, msg *model.JudgeMessage, workDir string, tests []problemdata.TestCase) (Outcome, error) {
	if msg == nil {
		return Outcome{}, appErr.New(appErr.InvalidParams).WithMessage("judge message is required")
	}
	if workDir == "" {
		return Outcome{}, appErr.New(appErr.WorkspaceError).WithMessage("workspace dir is required")
	}
	if len(tests) == 0 {
		return Outcome{}, appErr.New(appErr.TestDataMissing).WithMessage("no test cases to run")
	}

	lang, err := w.languages.Get(msg.Language)
	if err != nil {
		return Outcome{}, err
	}
	effTimeSec, effMemoryMb := lang.EffectiveLimits(msg.TimeLimitSec, msg.MemoryLimitMb)

	if lang.CompileEnabled {
		ok, err := w.compile(ctx, lang, workDir, effMemoryMb)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			return Outcome{Verdict: verdict.CompileError}, nil
		}
	}

	if w.progress != nil {
		w.progress.PublishStart(ctx, msg, len(tests))
	}

	runCmd, err := lang.RunCommand(effMemoryMb)
	if err != nil {
		return Outcome{}, err
	}
	limitMs := effTimeSec * 1000
	wall := time.Duration(effTimeSec)*time.Second + w.wallGrace

	var maxima verdict.Maxima
	total := len(tests)
	for i, tc := range tests {
		res, err := w.engine.Run(ctx, engine.RunSpec{
			Image:    lang.Image,
			Command:  runCmd,
			WorkDir:  workDir,
			Writable: false,
			Stdin:    tc.Input,
			MemoryMb: effMemoryMb,
			WallTime: wall,
		})
		if err != nil {
			return Outcome{}, err
		}

		ev := verdict.Evidence{
			ExitCode:        res.ExitCode,
			WallExceeded:    res.WallExceeded,
			CPUTimeMs:       res.CPUTimeMs,
			PeakMemoryKB:    res.PeakMemoryKB,
			Stdout:          res.Stdout,
			StdoutTruncated: res.StdoutTruncated,
			Stderr:          res.Stderr,
		}
		if v := verdict.Classify(ev, tc.Expected, limitMs, lang.MemoryErrorTokens); v != "" {
			logger.Infof(ctx, "test case failed submission_id=%d case=%d verdict=%s", msg.SubmissionID, tc.Number, v)
			return Outcome{Verdict: v, Maxima: maxima}, nil
		}
		maxima.Observe(ev)

		if w.progress != nil && i+1 < total {
			w.progress.PublishTestCase(ctx, msg, i+1, total)
		}
	}
	return Outcome{Verdict: verdict.Accepted, Maxima: maxima}, nil
}

// compile runs the language's compile step with the workspace mounted
// read-write. It reports false for user-caused compile failures; token
// scanning backs up the exit code for interpreters that report syntax
// problems without failing.
func (w *Worker) compile(ctx context.Context, lang profile.LanguageSpec, workDir string, effMemoryMb int64) (bool, error) {
	cmd, err := lang.CompileCommand()
	if err != nil {
		return false, err
	}
	if len(cmd) == 0 {
		return true, nil
	}
	res, err := w.engine.Run(ctx, engine.RunSpec{
		Image:    lang.Image,
		Command:  cmd,
		WorkDir:  workDir,
		Writable: true,
		MemoryMb: effMemoryMb,
		WallTime: w.compileTimeout,
	})
	if err != nil {
		return false, err
	}
	if res.WallExceeded {
		logger.Warnf(ctx, "compile timed out language=%s", lang.ID)
		return false, nil
	}
	if res.ExitCode != 0 {
		return false, nil
	}
	for _, token := range lang.CompileErrorTokens {
		if token != "" && strings.Contains(res.Stderr, token) {
			return false, nil
		}
	}
	return true, nil
}
