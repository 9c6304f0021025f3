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

// Các quan hệ giữa post với post và user với post
const (
	RelationRetweetOf = "retweet_of"
	RelationQuoteOf   = "quote_of"
	RelationInReplyTo = "in_reply_to"

	VerbTweeted   = "tweeted"
	VerbRetweeted = "retweeted"
	VerbQuoted    = "quoted"
)

// Post là một node tweet/retweet/quotetweet, key là (kind, id_str).
// Mỗi variant là một namespace riêng: cùng id_str ở hai kind là hai node.
type Post struct {
	Model
	Kind                string     `json:"kind" gorm:"column:kind;primaryKey;type:varchar(16)"`
	IDStr               string     `json:"id_str" gorm:"column:id_str;primaryKey;type:varchar(32)"`
	TwitterID           int64      `json:"twitter_id" gorm:"column:twitter_id"`
	Text                string     `json:"text" gorm:"column:text;type:text"`
	Source              string     `json:"source" gorm:"column:source;type:varchar(512)"`
	Lang                string     `json:"lang" gorm:"column:lang;type:varchar(16)"`
	IsoTime             string     `json:"isotime" gorm:"column:isotime;type:varchar(40)"`
	FavoriteCount       int64      `json:"favorite_count" gorm:"column:favorite_count;default:0"`
	RetweetCount        int64      `json:"retweet_count" gorm:"column:retweet_count;default:0"`
	PossiblySensitive   bool       `json:"possibly_sensitive" gorm:"column:possibly_sensitive;default:false"`
	InReplyToStatusID   *int64     `json:"in_reply_to_status_id" gorm:"column:in_reply_to_status_id"`
	InReplyToScreenName string     `json:"in_reply_to_screen_name" gorm:"column:in_reply_to_screen_name;type:varchar(255)"`
	Longitude           *float64   `json:"longitude" gorm:"column:longitude"`
	Latitude            *float64   `json:"latitude" gorm:"column:latitude"`
	LastScraped         *time.Time `json:"last_scraped" gorm:"column:last_scraped"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

var postAttrColumns = []string{
	"twitter_id", "text", "source", "lang", "isotime", "favorite_count", "retweet_count",
	"possibly_sensitive", "in_reply_to_status_id", "in_reply_to_screen_name",
	"longitude", "latitude", "last_scraped", "updated_at",
}

// PostAction là cạnh tác giả: user tweeted/retweeted/quoted một post
type PostAction struct {
	Model
	ID          uint      `json:"id" gorm:"primaryKey"`
	ActorHandle string    `json:"actor_handle" gorm:"column:actor_handle;type:varchar(255);not null;uniqueIndex:idx_post_action,priority:1"`
	PostKind    string    `json:"post_kind" gorm:"column:post_kind;type:varchar(16);not null;uniqueIndex:idx_post_action,priority:2"`
	PostIDStr   string    `json:"post_id_str" gorm:"column:post_id_str;type:varchar(32);not null;uniqueIndex:idx_post_action,priority:3"`
	Verb        string    `json:"verb" gorm:"column:verb;type:varchar(16);not null;uniqueIndex:idx_post_action,priority:4"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (a *PostAction) TableName() string {
	return "post_actions"
}

// PostLink là cạnh có hướng giữa hai post (retweet_of, quote_of, in_reply_to)
type PostLink struct {
	Model
	ID        uint      `json:"id" gorm:"primaryKey"`
	SrcKind   string    `json:"src_kind" gorm:"column:src_kind;type:varchar(16);not null;uniqueIndex:idx_post_link,priority:1"`
	SrcIDStr  string    `json:"src_id_str" gorm:"column:src_id_str;type:varchar(32);not null;uniqueIndex:idx_post_link,priority:2"`
	DstKind   string    `json:"dst_kind" gorm:"column:dst_kind;type:varchar(16);not null;uniqueIndex:idx_post_link,priority:3"`
	DstIDStr  string    `json:"dst_id_str" gorm:"column:dst_id_str;type:varchar(32);not null;uniqueIndex:idx_post_link,priority:4"`
	Relation  string    `json:"relation" gorm:"column:relation;type:varchar(16);not null;uniqueIndex:idx_post_link,priority:5"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (l *PostLink) TableName() string {
	return "post_links"
}

func NewPost(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Post, error) {
	return &Post{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (p *Post) TableName() string {
	return "posts"
}

// UpsertBatch merge một batch post theo (kind, id_str)
func (p *Post) UpsertBatch(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}

	gormDb, err := p.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	p.withRetry(ctx, "upsert_posts", func() error {
		return gormDb.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "kind"}, {Name: "id_str"}},
				DoUpdates: clause.AssignmentColumns(postAttrColumns),
			}).CreateInBatches(posts, 100).Error
		})
	})
	return nil
}

// EnsureBatch tạo các post chưa có, không ghi đè post đã tồn tại.
// Dùng cho reply target chỉ biết id.
func (p *Post) EnsureBatch(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}

	gormDb, err := p.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	p.withRetry(ctx, "ensure_posts", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "id_str"}},
			DoNothing: true,
		}).CreateInBatches(posts, 100).Error
	})
	return nil
}

// LinkActions merge các cạnh tác giả, cạnh trùng là no-op
func (p *Post) LinkActions(ctx context.Context, actions []PostAction) error {
	if len(actions) == 0 {
		return nil
	}

	gormDb, err := p.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	p.withRetry(ctx, "link_post_actions", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "actor_handle"}, {Name: "post_kind"}, {Name: "post_id_str"}, {Name: "verb"},
			},
			DoNothing: true,
		}).CreateInBatches(actions, 200).Error
	})
	return nil
}

// LinkPosts merge các cạnh post-post, cạnh trùng là no-op
func (p *Post) LinkPosts(ctx context.Context, links []PostLink) error {
	if len(links) == 0 {
		return nil
	}

	gormDb, err := p.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	p.withRetry(ctx, "link_posts", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "src_kind"}, {Name: "src_id_str"}, {Name: "dst_kind"}, {Name: "dst_id_str"}, {Name: "relation"},
			},
			DoNothing: true,
		}).CreateInBatches(links, 200).Error
	})
	return nil
}
