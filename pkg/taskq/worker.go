package taskq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/kafka"
	"github.com/augeas/BirdSpider/pkg/log"
)

// HandlerFunc xử lý một task, tham số là phần args của envelope.
// Trả về RetryAfter để được chạy lại, trả về lỗi khác thì envelope bị bỏ
// (Kafka giao at-least-once nên handler phải idempotent).
type HandlerFunc func(ctx context.Context, args json.RawMessage) error

// Worker consumes the task topic and dispatches envelopes to handlers.
type Worker struct {
	Config   *cfg.Config
	Logger   log.Logger
	Queue    Queue
	consumer *kafka.Consumer
	handlers map[string]HandlerFunc
	slots    chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(config *cfg.Config, logger log.Logger, queue Queue) *Worker {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.TaskTopic, config.Kafka.ConsumerGroup)

	// Số envelope được xử lý đồng thời trong một worker process
	maxConcurrent := 8

	return &Worker{
		Config:   config,
		Logger:   logger,
		Queue:    queue,
		consumer: consumer,
		handlers: make(map[string]HandlerFunc),
		slots:    make(chan struct{}, maxConcurrent),
	}
}

// Register binds a handler to a task name.
func (w *Worker) Register(task string, handler HandlerFunc) {
	w.handlers[task] = handler
	w.consumer.RegisterHandler(task, func(data []byte) error {
		return w.dispatch(task, data)
	})
}

func (w *Worker) dispatch(task string, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal envelope for task %s: %w", task, err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(context.Background(), env)
	}()
	return nil
}

func (w *Worker) run(ctx context.Context, env Envelope) {
	// Envelope chưa đến hạn chờ TRƯỚC khi chiếm slot: một đợt retry dài
	// không được giữ slot hay chặn consumer loop, task đến hạn vẫn phải chạy
	if wait := time.Until(env.NotBefore); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	w.slots <- struct{}{}
	defer func() { <-w.slots }()

	handler, exists := w.handlers[env.Task]
	if !exists {
		w.Logger.Warn(ctx, "No handler registered for task: %s", env.Task)
		return
	}

	err := handler(ctx, env.Args)
	if err == nil {
		if len(env.Then) > 0 {
			if chainErr := w.Queue.Chain(ctx, env.Then...); chainErr != nil {
				w.Logger.Error(ctx, "Failed to continue chain after task %s: %v", env.Task, chainErr)
			}
		}
		return
	}

	if delay, ok := RetryDelay(err); ok {
		w.Logger.Info(ctx, "Task %s rescheduled after %s", env.Task, delay)
		head := TaskSpec{Task: env.Task, Args: env.Args, DelaySeconds: int64(delay / time.Second)}
		if retryErr := w.Queue.Chain(ctx, append([]TaskSpec{head}, env.Then...)...); retryErr != nil {
			w.Logger.Error(ctx, "Failed to reschedule task %s: %v", env.Task, retryErr)
		}
		return
	}

	w.Logger.Error(ctx, "Task %s failed: %v", env.Task, err)
}

// Start blocks consuming the task topic until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	err := w.consumer.Start(ctx)
	w.wg.Wait()
	return err
}

func (w *Worker) Close() error {
	return w.consumer.Close()
}
