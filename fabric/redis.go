// Package fabric shares canonical messages between server instances over redis pub/sub.
package fabric

import (
	"chat-live/domain"
	"chat-live/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type image struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// envelope is the payload published on the channel.
type envelope struct {
	Origin      string    `json:"origin"`
	ID          uuid.UUID `json:"id"`
	RoomID      string    `json:"roomId"`
	AuthorID    string    `json:"authorId"`
	Text        string    `json:"text,omitempty"`
	Image       *image    `json:"image,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	ClientToken string    `json:"clientToken,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RedisFabric struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisFabric(client *redis.Client, channel string, log *slog.Logger) *RedisFabric {
	return &RedisFabric{client: client, channel: channel, log: log}
}

func (f *RedisFabric) Publish(ctx context.Context, evt event.MessagePosted) error {
	payload, err := json.Marshal(toEnvelope(evt))
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe blocks until ctx is canceled. Undecodable payloads are logged and skipped.
func (f *RedisFabric) Subscribe(ctx context.Context, handle func(event.MessagePosted)) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = pubsub.Close() }()

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.log.Info("Subscribed to fabric", "channel", f.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("fabric subscription to %s closed", f.channel)
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.log.Warn("Invalid fabric payload", "channel", f.channel, "error", err)
				continue
			}
			handle(fromEnvelope(env))
		}
	}
}

func toEnvelope(evt event.MessagePosted) envelope {
	m := evt.Message
	env := envelope{
		Origin:      evt.Origin,
		ID:          m.ID,
		RoomID:      m.RoomID.String(),
		AuthorID:    m.AuthorID,
		Text:        m.Body.Text,
		Lang:        m.Lang,
		ClientToken: m.ClientToken,
		CreatedAt:   m.CreatedAt,
	}
	if m.Body.Image != nil {
		env.Image = &image{Name: m.Body.Image.Name, MimeType: m.Body.Image.MimeType}
	}
	return env
}

func fromEnvelope(env envelope) event.MessagePosted {
	m := domain.Message{
		ID:          env.ID,
		RoomID:      domain.RoomID(env.RoomID),
		AuthorID:    env.AuthorID,
		Body:        domain.Body{Text: env.Text},
		Lang:        env.Lang,
		ClientToken: env.ClientToken,
		CreatedAt:   env.CreatedAt,
	}
	if env.Image != nil {
		m.Body.Image = &domain.Image{Name: env.Image.Name, MimeType: env.Image.MimeType}
	}
	return event.MessagePosted{Message: m, Origin: env.Origin}
}
