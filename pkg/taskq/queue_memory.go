package taskq

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryQueue ghi lại các envelope thay vì publish, dùng trong unit test
type MemoryQueue struct {
	mu        sync.Mutex
	Envelopes []Envelope
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task string, args interface{}, delay time.Duration) error {
	jsonBytes, err := json.Marshal(args)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Envelopes = append(q.Envelopes, Envelope{
		Task:      task,
		Args:      jsonBytes,
		NotBefore: time.Now().Add(delay),
	})
	return nil
}

func (q *MemoryQueue) Chain(ctx context.Context, specs ...TaskSpec) error {
	if len(specs) == 0 {
		return nil
	}
	head := specs[0]
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Envelopes = append(q.Envelopes, Envelope{
		Task:      head.Task,
		Args:      head.Args,
		NotBefore: time.Now().Add(time.Duration(head.DelaySeconds) * time.Second),
		Then:      specs[1:],
	})
	return nil
}

// Tasks returns the recorded task names in enqueue order.
func (q *MemoryQueue) Tasks() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	names := make([]string, 0, len(q.Envelopes))
	for _, env := range q.Envelopes {
		names = append(names, env.Task)
	}
	return names
}
