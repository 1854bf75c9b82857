package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	cachex "algojudge/internal/common/cache"
	"algojudge/internal/model"
	"algojudge/internal/repository"
	"algojudge/internal/sandbox/verdict"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, cachex.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	cacheClient, err := cachex.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() {
		_ = cacheClient.Close()
	})
	return mr, cacheClient
}

func testMessage() *model.JudgeMessage {
	return &model.JudgeMessage{
		SubmissionID:  42,
		ProblemID:     7,
		Username:      "alice",
		SourceCode:    "print(1)",
		Language:      "PYTHON",
		TimeLimitSec:  1,
		MemoryLimitMb: 128,
	}
}

func lastStatus(t *testing.T, mr *miniredis.Miniredis, submissionID string) model.ProgressEvent {
	t.Helper()
	raw, err := mr.Get("judge:status:" + submissionID)
	if err != nil {
		t.Fatalf("read status mirror: %v", err)
	}
	var event model.ProgressEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("decode status mirror: %v", err)
	}
	return event
}

func TestPublishStart(t *testing.T) {
	t.Parallel()

	mr, cacheClient := newTestCache(t)
	publisher := repository.NewRedisProgressPublisher(cacheClient, time.Minute)

	publisher.PublishStart(context.Background(), testMessage(), 3)

	event := lastStatus(t, mr, "42")
	if event.SubmitStatus != verdict.Judging {
		t.Fatalf("expected JUDGING, got %s", event.SubmitStatus)
	}
	if event.ProgressPercent != 0 || event.CurrentTest != 0 || event.TotalTests != 3 {
		t.Fatalf("unexpected start event: %+v", event)
	}
	if event.RuntimeMs != nil || event.MemoryKb != nil {
		t.Fatal("start event must not carry maxima")
	}
	if event.Timestamp == "" {
		t.Fatal("event must be timestamped")
	}
}

func TestPublishTestCaseProgressPercent(t *testing.T) {
	t.Parallel()

	mr, cacheClient := newTestCache(t)
	publisher := repository.NewRedisProgressPublisher(cacheClient, time.Minute)

	publisher.PublishTestCase(context.Background(), testMessage(), 1, 3)
	event := lastStatus(t, mr, "42")
	if event.ProgressPercent != 33 {
		t.Fatalf("expected floor(1/3*100)=33, got %d", event.ProgressPercent)
	}
	if event.CurrentTest != 1 || event.TotalTests != 3 {
		t.Fatalf("unexpected per-test event: %+v", event)
	}

	publisher.PublishTestCase(context.Background(), testMessage(), 2, 3)
	event = lastStatus(t, mr, "42")
	if event.ProgressPercent != 66 {
		t.Fatalf("expected floor(2/3*100)=66, got %d", event.ProgressPercent)
	}
}

func TestPublishFinalAccepted(t *testing.T) {
	t.Parallel()

	mr, cacheClient := newTestCache(t)
	publisher := repository.NewRedisProgressPublisher(cacheClient, time.Minute)

	publisher.PublishFinal(context.Background(), testMessage(), verdict.Accepted, verdict.Maxima{RuntimeMs: 120, MemoryKB: 2048})

	event := lastStatus(t, mr, "42")
	if event.SubmitStatus != verdict.Accepted {
		t.Fatalf("expected ACCEPTED, got %s", event.SubmitStatus)
	}
	if event.ProgressPercent != 100 {
		t.Fatalf("terminal event must carry progress 100, got %d", event.ProgressPercent)
	}
	if event.RuntimeMs == nil || *event.RuntimeMs != 120 {
		t.Fatalf("expected runtime 120, got %v", event.RuntimeMs)
	}
	if event.MemoryKb == nil || *event.MemoryKb != 2048 {
		t.Fatalf("expected memory 2048, got %v", event.MemoryKb)
	}
}

func TestPublishFinalRejectedCarriesNoMaxima(t *testing.T) {
	t.Parallel()

	mr, cacheClient := newTestCache(t)
	publisher := repository.NewRedisProgressPublisher(cacheClient, time.Minute)

	publisher.PublishFinal(context.Background(), testMessage(), verdict.WrongAnswer, verdict.Maxima{RuntimeMs: 50, MemoryKB: 100})

	event := lastStatus(t, mr, "42")
	if event.SubmitStatus != verdict.WrongAnswer {
		t.Fatalf("expected WRONG_ANSWER, got %s", event.SubmitStatus)
	}
	if event.ProgressPercent != 100 {
		t.Fatalf("terminal event must carry progress 100, got %d", event.ProgressPercent)
	}
	if event.RuntimeMs != nil || event.MemoryKb != nil {
		t.Fatal("non-accepted terminal event must not carry maxima")
	}
}

func TestPublishSurvivesDeadCache(t *testing.T) {
	t.Parallel()

	mr, cacheClient := newTestCache(t)
	publisher := repository.NewRedisProgressPublisher(cacheClient, time.Minute)
	mr.Close()

	// Best-effort delivery: a dead redis must not panic or error out.
	publisher.PublishStart(context.Background(), testMessage(), 1)
	publisher.PublishFinal(context.Background(), testMessage(), verdict.ServerError, verdict.Maxima{})
}
