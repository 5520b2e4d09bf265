package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"boxguard/internal/config"
)

// ControlFeeds are the inbound topics the controller accepts commands on.
var ControlFeeds = []string{"led_control", "buzzer_control", "servo_control", "stealth_mode"}

// CommandHandler consumes a control command. Implementations must tolerate
// arbitrary input: the channel is remote and untrusted.
type CommandHandler interface {
	Handle(feed, value string)
}

// StartSubscriber consumes the control topics and forwards each command to
// the handler. Malformed messages are skipped, never fatal.
func StartSubscriber(ctx context.Context, cfg *config.Manager, handler CommandHandler, logger *slog.Logger) {
	current := cfg.Get().Telemetry
	if !current.Enabled || len(current.Brokers) == 0 {
		if logger != nil {
			logger.Info("command subscriber disabled")
		}
		return
	}
	topics := make([]string, 0, len(ControlFeeds))
	topicToFeed := make(map[string]string, len(ControlFeeds))
	for _, feed := range ControlFeeds {
		feedKey, ok := current.Feeds[feed]
		if !ok {
			continue
		}
		topic := current.TopicPrefix + feedKey
		topics = append(topics, topic)
		topicToFeed[topic] = feed
	}
	if len(topics) == 0 {
		if logger != nil {
			logger.Warn("no control feeds configured, subscriber not started")
		}
		return
	}
	if logger != nil {
		logger.Info("command subscriber enabled", "brokers", current.Brokers, "topics", topics)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     current.Brokers,
		GroupID:     current.GroupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    1e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("command read error", "err", err)
				}
				continue
			}
			feed, ok := topicToFeed[m.Topic]
			if !ok {
				continue
			}
			handler.Handle(feed, DecodeValue(m.Value))
		}
	}()
}

// DecodeValue extracts the scalar from a {"value": ...} payload, falling
// back to the raw text for plain-string messages.
func DecodeValue(payload []byte) string {
	var envelope struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Value != nil {
		switch v := envelope.Value.(type) {
		case string:
			return v
		case float64:
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%g", v)
		case bool:
			if v {
				return "true"
			}
			return "false"
		}
	}
	return strings.TrimSpace(string(payload))
}
