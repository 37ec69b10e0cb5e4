package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type envelope struct {
	Origin string `json:"origin"`
	RoomID string `json:"room_id,omitempty"`
	Global bool   `json:"global"`
	Event  Event  `json:"event"`
}

// RedisRelay fans events out to other server instances over a Redis
// channel. Local clients are served by the wrapped hub directly; events
// published by this instance are ignored when they come back.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   *Hub
	origin  string
	log     *logrus.Logger
}

// NewRedisRelay wraps hub with cross-instance delivery.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, log *logrus.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   hub,
		origin:  uuid.New().String(),
		log:     log,
	}
}

// Emit delivers locally and publishes to the other instances.
func (r *RedisRelay) Emit(event Event) {
	r.local.Emit(event)
	r.publish(envelope{Global: true, Event: event})
}

// EmitToRoom delivers locally and publishes to the other instances.
func (r *RedisRelay) EmitToRoom(roomID string, event Event) {
	r.local.EmitToRoom(roomID, event)
	r.publish(envelope{RoomID: roomID, Event: event})
}

func (r *RedisRelay) publish(env envelope) {
	env.Origin = r.origin
	if env.Event.Timestamp.IsZero() {
		env.Event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		r.log.WithError(err).Error("realtime: failed to marshal relay envelope")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.WithError(err).WithField("channel", r.channel).Warn("realtime: relay publish failed")
	}
}

// Run consumes events from other instances until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.WithField("channel", r.channel).Info("realtime relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.log.WithError(err).Warn("realtime: dropping malformed relay message")
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.Global {
		r.local.Emit(env.Event)
		return
	}
	r.local.EmitToRoom(env.RoomID, env.Event)
}
