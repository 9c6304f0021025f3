package model

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

// Follow là cạnh có hướng giữa hai user.
// Quy ước: (source, target) nghĩa là source follows target.
type Follow struct {
	Model
	ID           uint      `json:"id" gorm:"primaryKey"`
	SourceHandle string    `json:"source_handle" gorm:"column:source_handle;type:varchar(255);not null;uniqueIndex:idx_follow_edge,priority:1"`
	TargetHandle string    `json:"target_handle" gorm:"column:target_handle;type:varchar(255);not null;uniqueIndex:idx_follow_edge,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func NewFollow(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Follow, error) {
	return &Follow{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (f *Follow) TableName() string {
	return "follows"
}

// UpsertEdges merge một batch cạnh follows, cạnh trùng là no-op
func (f *Follow) UpsertEdges(ctx context.Context, edges []Follow) error {
	if len(edges) == 0 {
		return nil
	}

	gormDb, err := f.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	f.withRetry(ctx, "upsert_follows", func() error {
		return gormDb.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_handle"}, {Name: "target_handle"}},
				DoNothing: true,
			}).CreateInBatches(edges, 200).Error
		})
	})
	return nil
}
