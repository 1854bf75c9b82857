// Package service ties the judging pipeline together: it owns the
// lifecycle of one submission from the queue message to the published
// verdict.
package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"algojudge/internal/common/mq"
	"algojudge/internal/model"
	"algojudge/internal/problemdata"
	"algojudge/internal/repository"
	"algojudge/internal/sandbox"
	"algojudge/internal/sandbox/verdict"
	"algojudge/internal/workspace"
	appErr "algojudge/pkg/errors"
	"algojudge/pkg/utils/logger"
)

// Service judges submissions delivered by the message queue.
type Service struct {
	workspaces     *workspace.Manager
	worker         *sandbox.Worker
	testData       problemdata.Provider
	progress       repository.ProgressPublisher
	results        repository.ResultPublisher
	judgeTimeout   time.Duration
	maxSourceBytes int64
}

// Config holds service dependencies and settings.
type Config struct {
	Workspaces *workspace.Manager
	Worker     *sandbox.Worker
	TestData   problemdata.Provider
	Progress   repository.ProgressPublisher
	Results    repository.ResultPublisher
	// JudgeTimeout bounds one whole submission end to end. Zero means
	// only the per-run wall clocks apply.
	JudgeTimeout time.Duration
	// MaxSourceBytes caps the accepted source size. Zero disables the
	// check.
	MaxSourceBytes int64
}

// NewService creates the orchestrator.
func NewService(cfg Config) (*Service, error) {
	if cfg.Workspaces == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("workspace manager is required")
	}
	if cfg.Worker == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("sandbox worker is required")
	}
	if cfg.TestData == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("test data provider is required")
	}
	if cfg.Progress == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("progress publisher is required")
	}
	if cfg.Results == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("result publisher is required")
	}
	return &Service{
		workspaces:     cfg.Workspaces,
		worker:         cfg.Worker,
		testData:       cfg.TestData,
		progress:       cfg.Progress,
		results:        cfg.Results,
		judgeTimeout:   cfg.JudgeTimeout,
		maxSourceBytes: cfg.MaxSourceBytes,
	}, nil
}

// HandleMessage processes one queue message. Malformed payloads are
// logged and acknowledged; redelivering them cannot help. For judged
// submissions the message is acknowledged only after the result publish
// succeeds, so a crash mid-flight re-delivers the submission.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return nil
	}
	var payload model.JudgeMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		logger.Errorf(ctx, "discard malformed judge message: %v", err)
		return nil
	}
	if err := payload.Validate(); err != nil {
		logger.Errorf(ctx, "discard invalid judge message: %v", err)
		return nil
	}
	if s.maxSourceBytes > 0 && int64(len(payload.SourceCode)) > s.maxSourceBytes {
		err := appErr.Newf(appErr.CodeTooLarge, "source is %d bytes, limit is %d", len(payload.SourceCode), s.maxSourceBytes)
		logger.Errorf(ctx, "discard submission %d: %v", payload.SubmissionID, err)
		return nil
	}

	ctx = logger.WithSubmission(ctx, payload.SubmissionID, payload.ProblemID, payload.Username)
	judgeCtx := ctx
	if s.judgeTimeout > 0 {
		var cancel context.CancelFunc
		judgeCtx, cancel = context.WithTimeout(ctx, s.judgeTimeout)
		defer cancel()
	}

	v, maxima := s.Judge(judgeCtx, &payload)

	// Terminal publishes run on the handler context, not the judge
	// timeout: when the timeout collapses a slow submission to
	// SERVER_ERROR, that verdict still has to reach the user.
	s.progress.PublishFinal(ctx, &payload, v, maxima)
	if err := s.results.Publish(ctx, model.NewResultMessage(&payload, v, maxima)); err != nil {
		logger.Errorf(ctx, "publish result failed: %v", err)
		return err
	}
	logger.Infof(ctx, "submission judged verdict=%s", v)
	return nil
}

// Judge runs one submission through the pipeline and returns its terminal
// verdict. Every failure of the pipeline itself collapses to
// SERVER_ERROR; the workspace is destroyed on all exit paths.
func (s *Service) Judge(ctx context.Context, msg *model.JudgeMessage) (verdict.Verdict, verdict.Maxima) {
	path, err := s.workspaces.Materialize(msg.SourceCode, msg.SubmissionID, msg.Username, msg.Language)
	if err != nil {
		logger.Errorf(ctx, "materialize workspace failed: %v", err)
		return verdict.ServerError, verdict.Maxima{}
	}
	defer func() {
		if err := s.workspaces.Destroy(msg.SubmissionID, msg.Username); err != nil {
			logger.Errorf(ctx, "destroy workspace failed: %v", err)
		}
	}()

	tests, err := s.testData.Fetch(ctx, msg.ProblemID)
	if err != nil {
		logger.Errorf(ctx, "fetch test data failed: %v", err)
		return verdict.ServerError, verdict.Maxima{}
	}

	outcome, err := s.worker.Judge(ctx, msg, filepath.Dir(path), tests)
	if err != nil {
		logger.Errorf(ctx, "judge pipeline failed: %v", err)
		return verdict.ServerError, verdict.Maxima{}
	}
	return outcome.Verdict, outcome.Maxima
}
