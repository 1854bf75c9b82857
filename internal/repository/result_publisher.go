package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	cachex "algojudge/internal/common/cache"
	"algojudge/internal/common/mq"
	"algojudge/internal/model"
	appErr "algojudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	resultMarkerPrefix = "judge:result:"
	resultGroup        = "results"

	headerDedupID      = "x-dedup-id"
	headerMessageGroup = "x-message-group"

	defaultResultMarkerTTL = 24 * time.Hour
)

// ResultPublisher delivers the terminal verdict to the result queue.
type ResultPublisher interface {
	Publish(ctx context.Context, result *model.ResultMessage) error
}

// MQResultPublisher publishes results to kafka, keyed per submission so
// consumers see one partition-ordered stream per id. A redis marker makes
// redelivered submissions skip the publish; crashes between publish and
// marker are covered by the dedup header downstream.
type MQResultPublisher struct {
	queue     mq.MessageQueue
	cache     cachex.Cache
	topic     string
	markerTTL time.Duration
}

// NewMQResultPublisher creates a publisher for the given topic. The cache
// may be nil, which disables redelivery suppression.
func NewMQResultPublisher(queue mq.MessageQueue, cache cachex.Cache, topic string, markerTTL time.Duration) *MQResultPublisher {
	if markerTTL <= 0 {
		markerTTL = defaultResultMarkerTTL
	}
	return &MQResultPublisher{
		queue:     queue,
		cache:     cache,
		topic:     topic,
		markerTTL: markerTTL,
	}
}

var _ ResultPublisher = (*MQResultPublisher)(nil)

// Publish sends the result exactly once per submission under normal
// operation. Publish failures propagate so the ingress message is not
// acknowledged and the submission is rejudged.
func (p *MQResultPublisher) Publish(ctx context.Context, result *model.ResultMessage) error {
	logger := logx.WithContext(ctx)
	if p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("result publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("result topic is required")
	}
	if result == nil || result.SubmissionID <= 0 {
		return appErr.ValidationError("submissionId", "required")
	}

	id := strconv.FormatInt(result.SubmissionID, 10)
	marker := resultMarkerPrefix + id
	if p.cache != nil {
		n, err := p.cache.Exists(ctx, marker)
		if err != nil {
			logger.Errorf("check result marker failed submission_id=%d: %v", result.SubmissionID, err)
		} else if n > 0 {
			logger.Infof("result already published submission_id=%d", result.SubmissionID)
			return nil
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return appErr.Wrapf(err, appErr.InvalidFormat, "marshal result failed")
	}
	message := mq.NewMessage(payload)
	message.ID = id
	message.SetHeader(headerDedupID, id)
	message.SetHeader(headerMessageGroup, resultGroup)
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.QueuePublishFailed, "publish result failed")
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, marker, "1", p.markerTTL); err != nil {
			logger.Errorf("set result marker failed submission_id=%d: %v", result.SubmissionID, err)
		}
	}
	logger.Infof("result published submission_id=%d status=%s", result.SubmissionID, result.SubmitStatus)
	return nil
}
