// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package redis adapts the shared rank-update channel onto Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/rankcore/rankcore/internal/rank"
)

// Default reconnect backoff parameters for establishing the subscription.
const (
	defaultRetryBase = 100 * time.Millisecond
	defaultRetryMax  = 30 * time.Second
)

// Channel publishes and consumes rank change messages over one Redis
// pub/sub channel. It implements rank.ChangePublisher and
// propagation.Source.
type Channel struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// New creates a channel adapter over an existing Redis client.
func New(client *redis.Client, channel string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish encodes the message as JSON and publishes it. Delivery is
// at-least-once from the consumer's point of view; messages are idempotent
// by construction so that is safe.
func (c *Channel) Publish(ctx context.Context, msg rank.ChangeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.In("propagation").Code("MESSAGE_ENCODE_FAILED").
			With("message_id", msg.ID).
			Wrap(err)
	}
	if err := c.client.Publish(ctx, c.channel, payload).Err(); err != nil {
		return oops.In("propagation").Code("PUBLISH_FAILED").
			With("channel", c.channel).
			With("message_id", msg.ID).
			Wrap(err)
	}
	return nil
}

// Messages subscribes to the channel and returns a stream of decoded
// change messages. Establishing the subscription is retried with
// exponential backoff; once established, go-redis reconnects the
// subscription itself. The returned channel closes when ctx is cancelled.
func (c *Channel) Messages(ctx context.Context) (<-chan rank.ChangeMessage, error) {
	var sub *redis.PubSub

	backoff := retry.WithMaxDuration(defaultRetryMax, retry.NewExponential(defaultRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sub = c.client.Subscribe(ctx, c.channel)
		if _, recvErr := sub.Receive(ctx); recvErr != nil {
			_ = sub.Close() //nolint:errcheck // subscription never established
			return retry.RetryableError(recvErr)
		}
		return nil
	})
	if err != nil {
		return nil, oops.In("propagation").Code("SUBSCRIBE_FAILED").
			With("channel", c.channel).
			Wrap(err)
	}

	out := make(chan rank.ChangeMessage, 100)
	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck // shutting down

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg rank.ChangeMessage
				if decodeErr := json.Unmarshal([]byte(m.Payload), &msg); decodeErr != nil {
					c.logger.Warn("dropping undecodable rank change message",
						"channel", c.channel,
						"error", decodeErr)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
