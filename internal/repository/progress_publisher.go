package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	cachex "algojudge/internal/common/cache"
	"algojudge/internal/model"
	"algojudge/internal/sandbox/verdict"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	progressChannelPrefix = "progress:"
	statusKeyPrefix       = "judge:status:"

	defaultStatusTTL = 30 * time.Minute
)

// ProgressPublisher emits submission progress events. Delivery is
// best-effort: failures are logged and never influence the verdict, so
// none of the methods return an error.
type ProgressPublisher interface {
	PublishStart(ctx context.Context, msg *model.JudgeMessage, totalTests int)
	PublishTestCase(ctx context.Context, msg *model.JudgeMessage, currentTest, totalTests int)
	PublishFinal(ctx context.Context, msg *model.JudgeMessage, v verdict.Verdict, maxima verdict.Maxima)
}

// RedisProgressPublisher publishes events on the per-submission channel
// progress:<submissionId> and mirrors the latest event under a TTL'd
// status key so late subscribers can catch up.
type RedisProgressPublisher struct {
	cache     cachex.Cache
	statusTTL time.Duration
}

// NewRedisProgressPublisher creates a publisher backed by redis.
func NewRedisProgressPublisher(cache cachex.Cache, statusTTL time.Duration) *RedisProgressPublisher {
	if statusTTL <= 0 {
		statusTTL = defaultStatusTTL
	}
	return &RedisProgressPublisher{cache: cache, statusTTL: statusTTL}
}

var _ ProgressPublisher = (*RedisProgressPublisher)(nil)

// PublishStart announces that judging began with totalTests cases ahead.
func (p *RedisProgressPublisher) PublishStart(ctx context.Context, msg *model.JudgeMessage, totalTests int) {
	p.publish(ctx, &model.ProgressEvent{
		SubmissionID: msg.SubmissionID,
		Username:     msg.Username,
		SubmitStatus: verdict.Judging,
		TotalTests:   totalTests,
	})
}

// PublishTestCase reports one passed case. Failing cases skip straight to
// the final event.
func (p *RedisProgressPublisher) PublishTestCase(ctx context.Context, msg *model.JudgeMessage, currentTest, totalTests int) {
	if totalTests <= 0 {
		return
	}
	p.publish(ctx, &model.ProgressEvent{
		SubmissionID:    msg.SubmissionID,
		Username:        msg.Username,
		SubmitStatus:    verdict.Judging,
		ProgressPercent: currentTest * 100 / totalTests,
		CurrentTest:     currentTest,
		TotalTests:      totalTests,
	})
}

// PublishFinal reports the terminal verdict. Resource maxima are attached
// only for accepted submissions.
func (p *RedisProgressPublisher) PublishFinal(ctx context.Context, msg *model.JudgeMessage, v verdict.Verdict, maxima verdict.Maxima) {
	event := &model.ProgressEvent{
		SubmissionID:    msg.SubmissionID,
		Username:        msg.Username,
		SubmitStatus:    v,
		ProgressPercent: 100,
	}
	if v == verdict.Accepted {
		runtime := maxima.RuntimeMs
		memory := maxima.MemoryKB
		event.RuntimeMs = &runtime
		event.MemoryKb = &memory
	}
	p.publish(ctx, event)
}

func (p *RedisProgressPublisher) publish(ctx context.Context, event *model.ProgressEvent) {
	logger := logx.WithContext(ctx)
	if p.cache == nil {
		logger.Error("progress publisher has no cache client")
		return
	}
	event.StampNow()
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("marshal progress event failed: %v", err)
		return
	}
	channel := progressChannelPrefix + formatID(event.SubmissionID)
	if err := p.cache.Publish(ctx, channel, string(payload)); err != nil {
		logger.Errorf("publish progress failed submission_id=%d: %v", event.SubmissionID, err)
	}
	statusKey := statusKeyPrefix + formatID(event.SubmissionID)
	if err := p.cache.Set(ctx, statusKey, string(payload), p.statusTTL); err != nil {
		logger.Errorf("mirror progress status failed submission_id=%d: %v", event.SubmissionID, err)
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
