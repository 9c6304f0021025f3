// Gói cache cung cấp key-value store dùng chung giữa các worker.
// Các cờ trạng thái crawl, quota record và FIFO ứng viên đều nằm ở đây.

package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss được trả về khi key không tồn tại
var ErrCacheMiss = errors.New("cache: key not found")

type Store interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}) error

	// ListPush đẩy value vào cuối FIFO, ListPop lấy value ở đầu.
	// ListPop trả về ErrCacheMiss khi FIFO rỗng.
	ListPush(ctx context.Context, key string, values ...string) error
	ListPop(ctx context.Context, key string) (string, error)
}
