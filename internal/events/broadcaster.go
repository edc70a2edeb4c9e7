package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/chat-story/pkg/progression"
)

const publishTimeout = 2 * time.Second

// Event is the envelope published for every render instruction
type Event struct {
	Type      progression.Kind        `json:"type"`
	SessionID string                  `json:"session_id"`
	Data      progression.Instruction `json:"data"`
}

// Broadcaster publishes the render stream to Redis Pub/Sub so other front ends
// can follow a session. It is a progression.Presenter.
type Broadcaster struct {
	progression.StreamFunc

	redisClient *redis.Client
	session     func() uuid.UUID
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster. session names the channel
// and is read on every publish, so a new game moves to a new channel.
func NewBroadcaster(redisClient *redis.Client, session func() uuid.UUID, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		redisClient: redisClient,
		session:     session,
		logger:      logger,
	}
	b.StreamFunc = b.publishInstruction
	return b
}

// Channel is the pub/sub channel of a session.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("story-events:%s", sessionID.String())
}

// Publish sends one instruction to the session channel
func (b *Broadcaster) Publish(ctx context.Context, sessionID uuid.UUID, in progression.Instruction) error {
	channel := Channel(sessionID)
	event := Event{
		Type:      in.Kind,
		SessionID: sessionID.String(),
		Data:      in,
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"chat_id", in.ChatID,
	)
	return nil
}

// publishInstruction is best effort; the story never waits on subscribers.
func (b *Broadcaster) publishInstruction(in progression.Instruction) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_ = b.Publish(ctx, b.session(), in)
}
