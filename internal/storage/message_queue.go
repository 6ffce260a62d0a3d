package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"instrument-firmware/pkg/protocol"
)

// backlogDepth limits the per-instrument history kept in Redis.
const backlogDepth = 1000

// MessageQueue publishes completed measurements to a Redis channel and keeps
// a trimmed backlog list per instrument.
type MessageQueue struct {
	client  *redis.Client
	channel string
	log     *logrus.Logger
}

func NewMessageQueue(addr, password, channel string, db int, poolSize int, log *logrus.Logger) (*MessageQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info("redis connected")

	return &MessageQueue{
		client:  client,
		channel: channel,
		log:     log,
	}, nil
}

// Publish sends one measurement to the pub/sub channel and appends it to the
// backlog. A backlog failure is logged but does not fail the publish.
func (mq *MessageQueue) Publish(ctx context.Context, m *protocol.Measurement) error {
	jsonData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal measurement: %w", err)
	}

	if err := mq.client.Publish(ctx, mq.channel, jsonData).Err(); err != nil {
		return fmt.Errorf("publish measurement: %w", err)
	}

	listKey := fmt.Sprintf("instrument:%s:%s:data", m.DeviceID, m.Instrument)
	if err := mq.client.LPush(ctx, listKey, jsonData).Err(); err != nil {
		mq.log.Warnf("backlog push failed: %v", err)
		return nil
	}
	mq.client.LTrim(ctx, listKey, 0, backlogDepth-1)

	return nil
}

// Close shuts the client down.
func (mq *MessageQueue) Close() error {
	return mq.client.Close()
}
