package taskq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/kafka"
	"github.com/augeas/BirdSpider/pkg/log"
)

// KafkaQueue publishes task envelopes to the shared task topic.
type KafkaQueue struct {
	Config   *cfg.Config
	Logger   log.Logger
	producer *kafka.Producer
}

func NewKafkaQueue(config *cfg.Config, logger log.Logger) *KafkaQueue {
	producer := kafka.NewProducer(config, logger, config.Kafka.TaskTopic)
	return &KafkaQueue{
		Config:   config,
		Logger:   logger,
		producer: producer,
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, task string, args interface{}, delay time.Duration) error {
	jsonBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args for task %s: %w", task, err)
	}
	return q.publish(ctx, Envelope{
		Task:      task,
		Args:      jsonBytes,
		NotBefore: time.Now().Add(delay),
	})
}

// Chain enqueues the first spec carrying the rest as its continuation.
// Mỗi task hoàn thành sẽ enqueue task kế tiếp trong chain.
func (q *KafkaQueue) Chain(ctx context.Context, specs ...TaskSpec) error {
	if len(specs) == 0 {
		return nil
	}
	head := specs[0]
	return q.publish(ctx, Envelope{
		Task:      head.Task,
		Args:      head.Args,
		NotBefore: time.Now().Add(time.Duration(head.DelaySeconds) * time.Second),
		Then:      specs[1:],
	})
}

func (q *KafkaQueue) publish(ctx context.Context, env Envelope) error {
	if err := q.producer.Publish(ctx, env.Task, env); err != nil {
		return fmt.Errorf("failed to publish task %s: %w", env.Task, err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	return q.producer.Close()
}
