package config

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// ChangeMessage is the payload published for every committed create,
// update or delete of a guest, contact, case, case detail, vendor or user.
type ChangeMessage struct {
	ReferenceId   int    `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
	Action        string `json:"action"`
	UserId        int    `json:"user_id"`
	OccurredAt    string `json:"occurred_at"`
	NewObj        []byte `json:"new_obj,omitempty"`
	CorrelationId string `json:"correlation_id"`
}

// NewPubSubClient uses PUBSUB_CREDENTIALS_JSON when set, otherwise
// Application Default Credentials.
func NewPubSubClient(ctx context.Context, cfg PubSubConfig) (*pubsub.Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Credentials)))
	}
	c, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client (project_id=%s): %w", cfg.ProjectID, err)
	}
	log.Printf("pubsub client ready (project_id=%s)", cfg.ProjectID)
	return c, nil
}

func CreateTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}
