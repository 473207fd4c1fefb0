package publisher

import (
	"context"

	"PennyAI/internal/model"
)

// NoopPublisher is used when no Kafka brokers are configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (n *NoopPublisher) PublishVerdicts(_ context.Context, _ []model.AnnotationUpdate) (int, error) {
	return 0, nil
}

func (n *NoopPublisher) Close() error { return nil }
