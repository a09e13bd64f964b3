package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisChannel is the shared channel used for cross-process change
// events.
const DefaultRedisChannel = "epikomhub:changes"

// publishTimeout bounds a single Redis PUBLISH.
const publishTimeout = 2 * time.Second

// RedisBridge connects the local Fanout with a Redis Pub/Sub channel so
// that changes committed by another hub process sharing the database
// reach this process's feeds. Local events are delivered immediately and
// also published to Redis; events received from Redis that originated
// here are dropped.
type RedisBridge struct {
	client  *redis.Client
	channel string
	origin  string
	local   Publisher
	log     *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisBridge creates a bridge that forwards remote events into local.
// origin must be the same identifier the persistence gateway stamps on
// its events.
func NewRedisBridge(
	client *redis.Client, channel, origin string, local Publisher, log *zap.Logger,
) *RedisBridge {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{
		client:  client,
		channel: channel,
		origin:  origin,
		local:   local,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start subscribes to the channel and forwards remote events until ctx
// is cancelled or Close is called. It returns once the subscription is
// confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		b.cancel()
		pubsub.Close()
		close(b.done)
		return err
	}

	go b.run(ctx, pubsub)
	b.log.Info("redis bridge started", zap.String("channel", b.channel))
	return nil
}

// Publish delivers ev locally and to every other process.
func (b *RedisBridge) Publish(ev Event) {
	b.local.Publish(ev)

	body, err := encodeEnvelope(ev)
	if err != nil {
		b.log.Error("encoding change event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		b.log.Warn("publishing change event",
			zap.String("channel", b.channel),
			zap.String("table", ev.Table),
			zap.Error(err),
		)
	}
}

// Close stops forwarding and waits for the receive loop to exit.
func (b *RedisBridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
}

func (b *RedisBridge) run(ctx context.Context, pubsub *redis.PubSub) {
	defer close(b.done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.log.Warn("dropping malformed change event", zap.Error(err))
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			b.local.Publish(ev)
		}
	}
}

// envelope is the message shape stored in Redis.
type envelope struct {
	Event  Event     `json:"event"`
	SentAt time.Time `json:"sent_at"`
}

func encodeEnvelope(ev Event) ([]byte, error) {
	return json.Marshal(envelope{Event: ev, SentAt: time.Now().UTC()})
}

func decodeEnvelope(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, err
	}
	return env.Event, nil
}
