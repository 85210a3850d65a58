// Package notify publishes status events for asynchronous consumers such as
// a websocket gateway. Delivery is best-effort.
package notify

import (
	"context"
	"fmt"
	"time"
)

const (
	ProviderNone = "none"
	ProviderAMQP = "amqp"
	ProviderNATS = "nats"

	EventResumeStatus            = "resume.status"
	EventRecommendationsComputed = "recommendations.computed"
)

type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	UploadID  string    `json:"uploadId,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event Event) error
	Close() error
}

// ResumeKey is the routing key for status changes of one upload.
func ResumeKey(uploadID string) string {
	return fmt.Sprintf("resume.%s", uploadID)
}

// RecommendationsKey is the routing key for recommendation events of one user.
func RecommendationsKey(userID string) string {
	return fmt.Sprintf("recommendations.%s", userID)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, Event) error { return nil }

func (Noop) Close() error { return nil }
