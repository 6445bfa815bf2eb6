package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"chatdesk/internal/domain/conversation"
)

// Publisher pushes conversation lifecycle events to the broker. Publishing is
// strictly fire-and-forget: a nil Publisher disables it and failures are
// logged, never surfaced.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

const (
	eventIngested = "conversation.ingested"
	eventSynced   = "conversation.synced"
	eventSwept    = "conversation.swept"

	eventsTopic = "conversation.events.v1"
)

func (s *Service) publish(ctx context.Context, name string, conv *conversation.Conversation) {
	publishEvent(ctx, s.Events, s.TopicPrefix, s.Logger, name, conv.ChatID, map[string]any{
		"conversation_id":   conv.ID,
		"chat_id":           conv.ChatID,
		"synced":            conv.Synced,
		"last_message_time": conv.LastMessageTime,
	})
}

// publishEvent wraps the payload in a cloudevents JSON envelope and sends it
// to the conversation events topic.
func publishEvent(ctx context.Context, p Publisher, topicPrefix string, logger logWarner, name, key string, data map[string]any) {
	if p == nil {
		return
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            name + ".v1",
		"source":          "chatdesk",
		"time":            time.Now().UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Warn("cannot encode event", "event", name, "error", err)
		return
	}
	topic := eventsTopic
	if topicPrefix != "" {
		topic = topicPrefix + topic
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	if err := p.Publish(ctx, topic, key, payload, headers); err != nil {
		logger.Warn("cannot publish event", "event", name, "topic", topic, "error", err)
	}
}

type logWarner interface {
	Warn(msg string, args ...any)
}
