package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/utils"
)

type ReferenceType string

const (
	ReferenceGuest        ReferenceType = "guest"
	ReferenceGuestContact ReferenceType = "guest_contact"
	ReferenceCase         ReferenceType = "case"
	ReferenceCaseDetail   ReferenceType = "case_detail"
	ReferenceVendor       ReferenceType = "vendor"
	ReferenceUser         ReferenceType = "user"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Publisher interface {
	Publish(ctx context.Context, msg config.ChangeMessage) error
}

// NewChange builds a change message for an already committed write. The
// acting user and correlation id come from ctx.
func NewChange(ctx context.Context, refType ReferenceType, action Action, refId int, obj interface{}) config.ChangeMessage {
	msg := config.ChangeMessage{
		ReferenceId:   refId,
		ReferenceType: string(refType),
		Action:        string(action),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		msg.UserId = userId
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		msg.CorrelationId = cid
	} else {
		msg.CorrelationId = uuid.NewString()
	}
	if obj != nil {
		if data, err := json.Marshal(obj); err == nil {
			msg.NewObj = data
		}
	}
	return msg
}

type PubSubPublisher struct {
	topic   *pubsub.Topic
	timeout time.Duration
}

func NewPubSubPublisher(topic *pubsub.Topic) *PubSubPublisher {
	return &PubSubPublisher{topic: topic, timeout: 10 * time.Second}
}

func (p *PubSubPublisher) Publish(ctx context.Context, msg config.ChangeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"reference_type": msg.ReferenceType,
			"action":         msg.Action,
			"correlation_id": msg.CorrelationId,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s %s %d: %w", msg.ReferenceType, msg.Action, msg.ReferenceId, err)
	}
	return nil
}

// Stop flushes buffered messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}

// LogPublisher is used when no topic is configured.
type LogPublisher struct {
	Logger *logrus.Logger
}

func (p LogPublisher) Publish(_ context.Context, msg config.ChangeMessage) error {
	p.Logger.WithFields(logrus.Fields{
		"field":          "LogPublisher",
		"reference_type": msg.ReferenceType,
		"reference_id":   msg.ReferenceId,
		"action":         msg.Action,
		"user_id":        msg.UserId,
		"correlation_id": msg.CorrelationId,
	}).Info("change event")
	return nil
}
