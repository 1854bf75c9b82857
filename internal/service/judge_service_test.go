package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"algojudge/internal/common/mq"
	"algojudge/internal/model"
	"algojudge/internal/problemdata"
	"algojudge/internal/sandbox"
	"algojudge/internal/sandbox/engine"
	"algojudge/internal/sandbox/profile"
	"algojudge/internal/sandbox/verdict"
	"algojudge/internal/service"
	"algojudge/internal/workspace"
)

// fakeEngine replays scripted run results.
type fakeEngine struct {
	results []engine.RunResult
	calls   int
}

func (f *fakeEngine) Run(ctx context.Context, spec engine.RunSpec) (engine.RunResult, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return engine.RunResult{}, nil
}

func (f *fakeEngine) Ping(ctx context.Context) error { return nil }

// stallingEngine blocks every run until the context expires.
type stallingEngine struct{}

func (stallingEngine) Run(ctx context.Context, spec engine.RunSpec) (engine.RunResult, error) {
	<-ctx.Done()
	return engine.RunResult{}, ctx.Err()
}

func (stallingEngine) Ping(ctx context.Context) error { return nil }

// fakeProvider serves a fixed test set.
type fakeProvider struct {
	cases []problemdata.TestCase
	err   error
}

func (f *fakeProvider) Fetch(ctx context.Context, problemID int64) ([]problemdata.TestCase, error) {
	return f.cases, f.err
}

// fakeProgress records every event kind and the health of the context
// each terminal event arrived on.
type fakeProgress struct {
	starts      int
	perTest     int
	finals      []verdict.Verdict
	maxima      verdict.Maxima
	finalCtxErr error
}

func (f *fakeProgress) PublishStart(ctx context.Context, msg *model.JudgeMessage, totalTests int) {
	f.starts++
}

func (f *fakeProgress) PublishTestCase(ctx context.Context, msg *model.JudgeMessage, currentTest, totalTests int) {
	f.perTest++
}

func (f *fakeProgress) PublishFinal(ctx context.Context, msg *model.JudgeMessage, v verdict.Verdict, maxima verdict.Maxima) {
	f.finals = append(f.finals, v)
	f.maxima = maxima
	f.finalCtxErr = ctx.Err()
}

// fakeResults captures published results.
type fakeResults struct {
	published  []*model.ResultMessage
	failWith   error
	lastCtxErr error
}

func (f *fakeResults) Publish(ctx context.Context, result *model.ResultMessage) error {
	f.lastCtxErr = ctx.Err()
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, result)
	return nil
}

type testHarness struct {
	svc      *service.Service
	root     string
	progress *fakeProgress
	results  *fakeResults
	engine   engine.Engine
}

func newHarness(t *testing.T, eng engine.Engine, provider problemdata.Provider) *testHarness {
	return newHarnessWith(t, eng, provider, 0, 0)
}

func newHarnessWith(t *testing.T, eng engine.Engine, provider problemdata.Provider, judgeTimeout time.Duration, maxSourceBytes int64) *testHarness {
	t.Helper()
	root := t.TempDir()
	workspaces, err := workspace.NewManager(root)
	if err != nil {
		t.Fatalf("new workspace manager: %v", err)
	}
	progress := &fakeProgress{}
	worker, err := sandbox.NewWorker(eng, profile.NewRegistry(nil), progress, 90*time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	results := &fakeResults{}
	svc, err := service.NewService(service.Config{
		Workspaces:     workspaces,
		Worker:         worker,
		TestData:       provider,
		Progress:       progress,
		Results:        results,
		JudgeTimeout:   judgeTimeout,
		MaxSourceBytes: maxSourceBytes,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testHarness{svc: svc, root: root, progress: progress, results: results, engine: eng}
}

func queueMessage(t *testing.T, payload *model.JudgeMessage) *mq.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return mq.NewMessage(body)
}

func submission() *model.JudgeMessage {
	return &model.JudgeMessage{
		SubmissionID:  42,
		ProblemID:     7,
		Username:      "alice",
		SourceCode:    "print(int(input())+1)",
		Language:      "PYTHON",
		TimeLimitSec:  1,
		MemoryLimitMb: 128,
	}
}

func (h *testHarness) workspaceGone(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(h.root, "alice", "42")); !os.IsNotExist(err) {
		t.Fatal("workspace must be destroyed after judging")
	}
}

func TestHandleMessageAccepted(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{results: []engine.RunResult{
		{ExitCode: 0},
		{ExitCode: 0, Stdout: "2\n", CPUTimeMs: 30, PeakMemoryKB: 1000},
		{ExitCode: 0, Stdout: "42\n", CPUTimeMs: 55, PeakMemoryKB: 900},
	}}
	provider := &fakeProvider{cases: []problemdata.TestCase{
		{Number: 1, Input: "1", Expected: "2"},
		{Number: 2, Input: "41", Expected: "42"},
	}}
	h := newHarness(t, eng, provider)

	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, submission())); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(h.progress.finals) != 1 || h.progress.finals[0] != verdict.Accepted {
		t.Fatalf("expected one ACCEPTED final event, got %v", h.progress.finals)
	}
	if h.progress.maxima.RuntimeMs != 55 || h.progress.maxima.MemoryKB != 1000 {
		t.Fatalf("unexpected maxima: %+v", h.progress.maxima)
	}
	if len(h.results.published) != 1 {
		t.Fatalf("expected one result, got %d", len(h.results.published))
	}
	res := h.results.published[0]
	if res.SubmitStatus != verdict.Accepted || res.RuntimeMs == nil || *res.RuntimeMs != 55 {
		t.Fatalf("unexpected result: %+v", res)
	}
	h.workspaceGone(t)
}

func TestHandleMessageCompileError(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{results: []engine.RunResult{
		{ExitCode: 1, Stderr: "error: ';' expected"},
	}}
	h := newHarness(t, eng, &fakeProvider{cases: []problemdata.TestCase{{Number: 1, Input: "x", Expected: "x"}}})

	msg := submission()
	msg.Language = "JAVA"
	msg.SourceCode = "class Main { oops }"
	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, msg)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(h.progress.finals) != 1 || h.progress.finals[0] != verdict.CompileError {
		t.Fatalf("expected COMPILE_ERROR final, got %v", h.progress.finals)
	}
	if h.progress.starts != 0 {
		t.Fatal("compile failures must not announce a judging phase")
	}
	if h.results.published[0].RuntimeMs != nil {
		t.Fatal("non-accepted result must carry null runtime")
	}
	h.workspaceGone(t)
}

func TestHandleMessageTestDataFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeEngine{}, &fakeProvider{err: errors.New("bucket unreachable")})

	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, submission())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(h.progress.finals) != 1 || h.progress.finals[0] != verdict.ServerError {
		t.Fatalf("expected SERVER_ERROR final, got %v", h.progress.finals)
	}
	h.workspaceGone(t)
}

func TestHandleMessageMalformedPayloadIsAcked(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeEngine{}, &fakeProvider{})

	if err := h.svc.HandleMessage(context.Background(), mq.NewMessage([]byte("{not json"))); err != nil {
		t.Fatalf("malformed payload must be acked, got %v", err)
	}
	missing := submission()
	missing.Username = ""
	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, missing)); err != nil {
		t.Fatalf("invalid payload must be acked, got %v", err)
	}
	if len(h.progress.finals) != 0 || len(h.results.published) != 0 {
		t.Fatal("malformed payloads must not publish anything")
	}
}

func TestHandleMessageJudgeTimeoutStillPublishes(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{cases: []problemdata.TestCase{{Number: 1, Input: "1", Expected: "2"}}}
	h := newHarnessWith(t, stallingEngine{}, provider, 50*time.Millisecond, 0)

	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, submission())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(h.progress.finals) != 1 || h.progress.finals[0] != verdict.ServerError {
		t.Fatalf("expected SERVER_ERROR final after the judge timeout, got %v", h.progress.finals)
	}
	if h.progress.finalCtxErr != nil {
		t.Fatalf("terminal progress must not run on the expired judge context: %v", h.progress.finalCtxErr)
	}
	if len(h.results.published) != 1 || h.results.published[0].SubmitStatus != verdict.ServerError {
		t.Fatalf("expected a published SERVER_ERROR result, got %+v", h.results.published)
	}
	if h.results.lastCtxErr != nil {
		t.Fatalf("result publish must not run on the expired judge context: %v", h.results.lastCtxErr)
	}
	h.workspaceGone(t)
}

func TestHandleMessageOversizedSourceIsAcked(t *testing.T) {
	t.Parallel()

	h := newHarnessWith(t, &fakeEngine{}, &fakeProvider{}, 0, 16)

	msg := submission() // the source exceeds the 16 byte cap
	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, msg)); err != nil {
		t.Fatalf("oversized source must be acked, got %v", err)
	}
	if len(h.progress.finals) != 0 || len(h.results.published) != 0 {
		t.Fatal("oversized source must not reach the pipeline")
	}
	h.workspaceGone(t)
}

func TestHandleMessageResultPublishFailureNacks(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{results: []engine.RunResult{
		{ExitCode: 0},
		{ExitCode: 0, Stdout: "2"},
	}}
	h := newHarness(t, eng, &fakeProvider{cases: []problemdata.TestCase{{Number: 1, Input: "1", Expected: "2"}}})
	h.results.failWith = errors.New("broker down")

	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, submission())); err == nil {
		t.Fatal("result publish failure must propagate so the message is redelivered")
	}
	h.workspaceGone(t)
}

func TestHandleMessageUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeEngine{}, &fakeProvider{cases: []problemdata.TestCase{{Number: 1, Input: "x", Expected: "x"}}})

	msg := submission()
	msg.Language = "COBOL"
	if err := h.svc.HandleMessage(context.Background(), queueMessage(t, msg)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(h.progress.finals) != 1 || h.progress.finals[0] != verdict.ServerError {
		t.Fatalf("expected SERVER_ERROR for unsupported language, got %v", h.progress.finals)
	}
}
