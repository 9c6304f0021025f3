package model

import (
	"context"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

type Model struct {
	Config *cfg.Config `gorm:"-"`
	Logger log.Logger  `gorm:"-"`
	Mysql  *db.Mysql   `gorm:"-"`
}

// withRetry chạy một thao tác ghi với retry có giới hạn.
// Hết lượt retry thì panic: không có chế độ ghi thiếu dữ liệu trong im lặng.
func (m *Model) withRetry(ctx context.Context, name string, op func() error) {
	attempts := m.Config.Crawler.StoreRetryCount
	if attempts <= 0 {
		attempts = 50
	}
	delay := time.Duration(m.Config.Crawler.StoreRetryDelaySec) * time.Second
	if delay <= 0 {
		delay = 2 * time.Second
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil {
			return
		}
		m.Logger.Warn(ctx, "Store write %s failed (attempt %d/%d): %v", name, i+1, attempts, err)
		time.Sleep(delay)
	}

	m.Logger.Critical(ctx, "Store write %s exhausted %d retries: %v", name, attempts, err)
	panic(err)
}
