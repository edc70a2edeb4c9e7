package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/chat-story/internal/logger"
	"github.com/jwebster45206/chat-story/pkg/progression"
	"github.com/jwebster45206/chat-story/pkg/script"
)

func setupBroadcaster(t *testing.T, sessionID uuid.UUID) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewBroadcaster(client, func() uuid.UUID { return sessionID }, logger.Discard())
	return b, client
}

func subscribe(t *testing.T, client *redis.Client, channel string) <-chan *redis.Message {
	t.Helper()
	ctx := context.Background()
	sub := client.Subscribe(ctx, channel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	return sub.Channel()
}

func receive(t *testing.T, ch <-chan *redis.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_PublishesPresenterCallbacks(t *testing.T) {
	sessionID := uuid.New()
	b, client := setupBroadcaster(t, sessionID)
	ch := subscribe(t, client, Channel(sessionID))

	var p progression.Presenter = b
	p.OnMessageRevealed(&script.Message{ID: 3, ChatID: 2, Author: "Sam", Text: "hi"}, false)
	p.OnChatTransition(2, 5)

	ev := receive(t, ch)
	assert.Equal(t, progression.KindMessageRevealed, ev.Type)
	assert.Equal(t, sessionID.String(), ev.SessionID)
	require.NotNil(t, ev.Data.Message)
	assert.Equal(t, "hi", ev.Data.Message.Text)
	assert.Equal(t, script.ChatID(2), ev.Data.ChatID)

	ev = receive(t, ch)
	assert.Equal(t, progression.KindChatTransition, ev.Type)
	assert.Equal(t, script.ChatID(2), ev.Data.FromChatID)
	assert.Equal(t, script.ChatID(5), ev.Data.ChatID)
}

func TestBroadcaster_Channel(t *testing.T) {
	id := uuid.MustParse("0b6f3a52-0a4e-4c38-9d0c-8f4a3b2b9c11")
	assert.Equal(t, "story-events:0b6f3a52-0a4e-4c38-9d0c-8f4a3b2b9c11", Channel(id))
}

func TestBroadcaster_PublishFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	b := NewBroadcaster(client, uuid.New, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := b.Publish(ctx, uuid.New(), progression.Instruction{Kind: progression.KindNotice, Text: "x"})
	assert.Error(t, err)

	// The presenter path swallows the error.
	b.OnNotice("still fine")
}
