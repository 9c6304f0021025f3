package model

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

// Các loại node entity đi kèm một post
const (
	RefHashtag = "hashtag"
	RefURL     = "url"
	RefMedia   = "media"
)

// Ref là node hashtag/url/media, key là (kind, value)
type Ref struct {
	Model
	Kind      string    `json:"kind" gorm:"column:kind;primaryKey;type:varchar(16)"`
	Value     string    `json:"value" gorm:"column:value;primaryKey;type:varchar(512)"`
	Extra     string    `json:"extra" gorm:"column:extra;type:varchar(1024)"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func NewRef(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Ref, error) {
	return &Ref{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (r *Ref) TableName() string {
	return "refs"
}

// PostRef là cạnh tagged/linked/embeds từ post đến một Ref
type PostRef struct {
	Model
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostKind  string    `json:"post_kind" gorm:"column:post_kind;type:varchar(16);not null;uniqueIndex:idx_post_ref,priority:1"`
	PostIDStr string    `json:"post_id_str" gorm:"column:post_id_str;type:varchar(32);not null;uniqueIndex:idx_post_ref,priority:2"`
	RefKind   string    `json:"ref_kind" gorm:"column:ref_kind;type:varchar(16);not null;uniqueIndex:idx_post_ref,priority:3"`
	RefValue  string    `json:"ref_value" gorm:"column:ref_value;type:varchar(512);not null;uniqueIndex:idx_post_ref,priority:4"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (pr *PostRef) TableName() string {
	return "post_refs"
}

// Mention là cạnh mentions từ post đến một user
type Mention struct {
	Model
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostKind  string    `json:"post_kind" gorm:"column:post_kind;type:varchar(16);not null;uniqueIndex:idx_mention,priority:1"`
	PostIDStr string    `json:"post_id_str" gorm:"column:post_id_str;type:varchar(32);not null;uniqueIndex:idx_mention,priority:2"`
	Handle    string    `json:"handle" gorm:"column:handle;type:varchar(255);not null;uniqueIndex:idx_mention,priority:3"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (m *Mention) TableName() string {
	return "mentions"
}

// UpsertBatch merge các node ref, node trùng là no-op
func (r *Ref) UpsertBatch(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}

	gormDb, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	r.withRetry(ctx, "upsert_refs", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "value"}},
			DoNothing: true,
		}).CreateInBatches(refs, 200).Error
	})
	return nil
}

// LinkBatch merge các cạnh post-ref
func (r *Ref) LinkBatch(ctx context.Context, links []PostRef) error {
	if len(links) == 0 {
		return nil
	}

	gormDb, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	r.withRetry(ctx, "link_post_refs", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "post_kind"}, {Name: "post_id_str"}, {Name: "ref_kind"}, {Name: "ref_value"},
			},
			DoNothing: true,
		}).CreateInBatches(links, 200).Error
	})
	return nil
}

// LinkMentions merge các cạnh mention
func (r *Ref) LinkMentions(ctx context.Context, mentions []Mention) error {
	if len(mentions) == 0 {
		return nil
	}

	gormDb, err := r.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	r.withRetry(ctx, "link_mentions", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "post_kind"}, {Name: "post_id_str"}, {Name: "handle"},
			},
			DoNothing: true,
		}).CreateInBatches(mentions, 200).Error
	})
	return nil
}
