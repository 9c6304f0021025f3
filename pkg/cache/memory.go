package cache

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory là bản in-process của Store, dùng trong unit test
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	lists map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		data:  make(map[string]string),
		lists: make(map[string][]string),
	}
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (m *Memory) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) GetJSON(ctx context.Context, key string, out interface{}) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), out)
}

func (m *Memory) SetJSON(ctx context.Context, key string, value interface{}) error {
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(jsonBytes))
}

func (m *Memory) ListPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *Memory) ListPop(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if len(list) == 0 {
		return "", ErrCacheMiss
	}
	val := list[0]
	m.lists[key] = list[1:]
	return val, nil
}
