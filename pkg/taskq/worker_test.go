package taskq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/log"
)

func newTestWorker(t *testing.T) (*Worker, *MemoryQueue) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	logger, err := log.NewNullLogger()
	require.NoError(t, err)

	queue := NewMemoryQueue()
	return NewWorker(config, logger, queue), queue
}

func marshalEnvelope(t *testing.T, env Envelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestDelayedEnvelopesDoNotStarveReadyTasks(t *testing.T) {
	worker, _ := newTestWorker(t)

	ran := make(chan string, 32)
	worker.Register("delayed", func(ctx context.Context, args json.RawMessage) error {
		ran <- "delayed"
		return nil
	})
	worker.Register("ready", func(ctx context.Context, args json.RawMessage) error {
		ran <- "ready"
		return nil
	})

	// Nhiều hơn số slot: nếu envelope chưa đến hạn giữ slot,
	// consumer loop kẹt và task đến hạn không bao giờ chạy
	for i := 0; i < 16; i++ {
		env := Envelope{Task: "delayed", NotBefore: time.Now().Add(time.Hour)}
		require.NoError(t, worker.dispatch("delayed", marshalEnvelope(t, env)))
	}

	env := Envelope{Task: "ready", NotBefore: time.Now()}
	require.NoError(t, worker.dispatch("ready", marshalEnvelope(t, env)))

	select {
	case task := <-ran:
		assert.Equal(t, "ready", task)
	case <-time.After(2 * time.Second):
		t.Fatal("ready task did not run while delayed envelopes were pending")
	}
}

func TestDispatchRunsChainContinuation(t *testing.T) {
	worker, queue := newTestWorker(t)

	done := make(chan struct{})
	worker.Register("head", func(ctx context.Context, args json.RawMessage) error {
		close(done)
		return nil
	})

	env := Envelope{
		Task:      "head",
		NotBefore: time.Now(),
		Then:      []TaskSpec{{Task: "tail"}},
	}
	require.NoError(t, worker.dispatch("head", marshalEnvelope(t, env)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("head task did not run")
	}

	// Chain được đẩy tiếp sau khi handler xong
	require.Eventually(t, func() bool {
		return len(queue.Tasks()) == 1 && queue.Tasks()[0] == "tail"
	}, 2*time.Second, 10*time.Millisecond)
}
