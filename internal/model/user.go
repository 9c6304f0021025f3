package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

// User là một node twitter_user trong graph, key duy nhất là handle
type User struct {
	Model
	Handle               string     `json:"handle" gorm:"column:handle;primaryKey;type:varchar(255)"`
	TwitterID            int64      `json:"twitter_id" gorm:"column:twitter_id"`
	TwitterIDStr         string     `json:"twitter_id_str" gorm:"column:twitter_id_str;type:varchar(32)"`
	Name                 string     `json:"name" gorm:"column:name;type:varchar(255)"`
	Description          string     `json:"description" gorm:"column:description;type:text"`
	Location             string     `json:"location" gorm:"column:location;type:varchar(255)"`
	Lang                 string     `json:"lang" gorm:"column:lang;type:varchar(16)"`
	Url                  string     `json:"url" gorm:"column:url;type:varchar(512)"`
	IsoTime              string     `json:"isotime" gorm:"column:isotime;type:varchar(40)"`
	FollowersCount       int64      `json:"followers_count" gorm:"column:followers_count;default:0"`
	FriendsCount         int64      `json:"friends_count" gorm:"column:friends_count;default:0"`
	StatusesCount        int64      `json:"statuses_count" gorm:"column:statuses_count;default:0"`
	ListedCount          int64      `json:"listed_count" gorm:"column:listed_count;default:0"`
	FavouritesCount      int64      `json:"favourites_count" gorm:"column:favourites_count;default:0"`
	Verified             bool       `json:"verified" gorm:"column:verified;default:false"`
	Protected            bool       `json:"protected" gorm:"column:protected;default:false"`
	GeoEnabled           bool       `json:"geo_enabled" gorm:"column:geo_enabled;default:false"`
	Defunct              bool       `json:"defunct" gorm:"column:defunct;default:false"`
	LastScraped          *time.Time `json:"last_scraped" gorm:"column:last_scraped"`
	FriendsLastScraped   *time.Time `json:"friends_last_scraped" gorm:"column:friends_last_scraped"`
	FollowersLastScraped *time.Time `json:"followers_last_scraped" gorm:"column:followers_last_scraped"`
	TweetsLastScraped    *time.Time `json:"tweets_last_scraped" gorm:"column:tweets_last_scraped"`
	CreatedAt            time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

// userAttrColumns là các cột được ghi đè khi re-fetch một user
var userAttrColumns = []string{
	"twitter_id", "twitter_id_str", "name", "description", "location", "lang", "url",
	"isotime", "followers_count", "friends_count", "statuses_count", "listed_count",
	"favourites_count", "verified", "protected", "geo_enabled", "last_scraped", "updated_at",
}

func NewUser(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*User, error) {
	return &User{
		Model: Model{
			Config: config,
			Logger: logger,
			Mysql:  mysql,
		},
	}, nil
}

func (u *User) TableName() string {
	return "users"
}

// UpsertBatch merge một batch user theo handle: tạo nếu chưa có, ghi đè
// thuộc tính nếu đã có. Gọi hai lần với cùng input cho cùng một kết quả.
func (u *User) UpsertBatch(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}

	gormDb, err := u.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	u.withRetry(ctx, "upsert_users", func() error {
		return gormDb.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "handle"}},
				DoUpdates: clause.AssignmentColumns(userAttrColumns),
			}).CreateInBatches(users, 100).Error
		})
	})
	return nil
}

// EnsureBatch tạo các user chưa có nhưng không ghi đè user đã tồn tại.
// Dùng cho các bare reference (mention, reply) chưa được lookup đầy đủ.
func (u *User) EnsureBatch(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}

	gormDb, err := u.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	u.withRetry(ctx, "ensure_users", func() error {
		return gormDb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handle"}},
			DoNothing: true,
		}).CreateInBatches(users, 100).Error
	})
	return nil
}

// Exists kiểm tra một user node đã tồn tại trong graph hay chưa
func (u *User) Exists(ctx context.Context, handle string) (bool, error) {
	gormDb, err := u.Mysql.Db()
	if err != nil {
		return false, fmt.Errorf("failed to get database connection: %w", err)
	}

	var existing User
	result := gormDb.Select("handle").Where("handle = ?", handle).First(&existing)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, result.Error
	}
	return true, nil
}

// MarkDefunct đặt cờ defunct cho một user đã tồn tại (match-only)
func (u *User) MarkDefunct(ctx context.Context, handle string) error {
	gormDb, err := u.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	u.withRetry(ctx, "mark_defunct", func() error {
		return gormDb.Model(&User{}).Where("handle = ?", handle).Update("defunct", true).Error
	})
	u.Logger.Info(ctx, "Marked user %s defunct", handle)
	return nil
}

// StampCrawled ghi mốc thời gian crawl gần nhất của một job kind lên user.
// Cột hợp lệ: friends_last_scraped, followers_last_scraped, tweets_last_scraped.
func (u *User) StampCrawled(ctx context.Context, handle string, column string, at time.Time) error {
	gormDb, err := u.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	u.withRetry(ctx, "stamp_crawled", func() error {
		return gormDb.Model(&User{}).Where("handle = ?", handle).
			Updates(map[string]interface{}{column: at, "last_scraped": at}).Error
	})
	return nil
}
