// Gói taskq cung cấp hàng đợi task phân tán trên Kafka.
// Mỗi task là một envelope JSON tự chứa: tên task, tham số, thời điểm sớm nhất
// được chạy và phần còn lại của chain. Worker nào nhận được envelope cũng chạy
// lại được từ đầu, không có state nằm trong process.

package taskq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TaskSpec mô tả một task trong chain, tham số đã được marshal sẵn
type TaskSpec struct {
	Task         string          `json:"task"`
	Args         json.RawMessage `json:"args"`
	DelaySeconds int64           `json:"delay_seconds,omitempty"`
}

// Envelope là message thực sự nằm trên topic
type Envelope struct {
	Task      string          `json:"task"`
	Args      json.RawMessage `json:"args"`
	NotBefore time.Time       `json:"not_before"`
	Then      []TaskSpec      `json:"then,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, task string, args interface{}, delay time.Duration) error
	Chain(ctx context.Context, specs ...TaskSpec) error
}

// NewSpec marshals task arguments into a TaskSpec for chaining.
func NewSpec(task string, args interface{}) (TaskSpec, error) {
	jsonBytes, err := json.Marshal(args)
	if err != nil {
		return TaskSpec{}, fmt.Errorf("failed to marshal args for task %s: %w", task, err)
	}
	return TaskSpec{Task: task, Args: jsonBytes}, nil
}

type retryAfterError struct {
	after time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("task retry requested after %s", e.after)
}

// RetryAfter yêu cầu worker chạy lại chính envelope hiện tại sau một khoảng chờ.
// Chain của envelope được giữ nguyên.
func RetryAfter(after time.Duration) error {
	return &retryAfterError{after: after}
}

// RetryDelay reports whether err is a retry request and its delay.
func RetryDelay(err error) (time.Duration, bool) {
	var retryErr *retryAfterError
	if errors.As(err, &retryErr) {
		return retryErr.after, true
	}
	return 0, false
}
