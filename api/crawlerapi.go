// Package api cung cấp các API public để điều khiển một phiên crawl
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/cluster"
	"github.com/augeas/BirdSpider/internal/crawler"
	"github.com/augeas/BirdSpider/internal/model"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
	"github.com/augeas/BirdSpider/pkg/taskq"
)

// ScrapeStatus chứa trạng thái hiện tại của các phiên crawl,
// đọc trực tiếp từ các cờ trong cache nên phản ánh cả worker khác
type ScrapeStatus struct {
	Mode            string `json:"mode"`
	DefaultScrape   string `json:"defaultScrape"`
	UserScrape      string `json:"userScrape"`
	ScrapeUser      string `json:"scrapeUser"`
	FriendsScrape   string `json:"friendsScrape"`
	FollowersScrape string `json:"followersScrape"`
	TweetsScrape    string `json:"tweetsScrape"`
	DatabaseStatus  string `json:"databaseStatus"`
	CacheStatus     string `json:"cacheStatus"`
}

// CrawlerAPI điều khiển các phiên crawl qua cache và task queue
type CrawlerAPI struct {
	ctx    context.Context
	config *cfg.Config
	logger log.Logger
	mysql  *db.Mysql
	redis  cache.Store
	queue  taskq.Queue
	graph  *model.Graph
}

// NewCrawlerAPI tạo một instance mới của CrawlerAPI
func NewCrawlerAPI() *CrawlerAPI {
	return &CrawlerAPI{}
}

// Initialize khởi tạo các thành phần cần thiết cho crawler
func (a *CrawlerAPI) Initialize(ctx context.Context) error {
	a.ctx = ctx

	var err error

	loader, _ := cfg.NewViperLoader()
	a.config, err = loader.Load()
	if err != nil {
		a.logger, _ = log.NewCslLogger()
		a.logger.Error(a.ctx, "Failed to load configuration: %v", err)
		return err
	}

	a.logger, err = log.NewCslLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.mysql, err = db.NewMysql(a.config)
	if err != nil {
		a.logger.Error(a.ctx, "Failed to connect to database: %v", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	a.redis, err = cache.NewRedis(a.config)
	if err != nil {
		a.logger.Error(a.ctx, "Failed to connect to redis: %v", err)
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.queue = taskq.NewKafkaQueue(a.config, a.logger)

	a.graph, err = model.NewGraph(a.config, a.logger, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create graph: %w", err)
	}

	return a.graph.Migrate()
}

// StartDefaultScrape bật phiên default scrape trên toàn graph
func (a *CrawlerAPI) StartDefaultScrape(latest bool) (string, error) {
	if a.queue == nil {
		return "", errors.New("api is not initialized")
	}

	args := crawler.ScrapeArgs{Latest: latest}
	if err := a.queue.Enqueue(a.ctx, crawler.TaskStartScrape, args, 0); err != nil {
		return "", fmt.Errorf("failed to enqueue start_scrape: %w", err)
	}
	return "Default scrape started", nil
}

// StartUserScrape bật phiên user scrape quanh một seed đã có trong graph
func (a *CrawlerAPI) StartUserScrape(seed string) (string, error) {
	if a.queue == nil {
		return "", errors.New("api is not initialized")
	}
	if seed == "" {
		return "", errors.New("a seed user is required")
	}

	args := crawler.StartUserScrapeArgs{Seed: seed}
	if err := a.queue.Enqueue(a.ctx, crawler.TaskStartUserScrape, args, 0); err != nil {
		return "", fmt.Errorf("failed to enqueue start_user_scrape: %w", err)
	}
	return "User scrape started around " + seed, nil
}

// SeedUser phát chain crawl đầy đủ cho một user mới.
// followUp=true sẽ mở tiếp một phiên user scrape sau khi seed xong.
func (a *CrawlerAPI) SeedUser(handle string, followUp bool) (string, error) {
	if a.queue == nil {
		return "", errors.New("api is not initialized")
	}
	if handle == "" {
		return "", errors.New("a user handle is required")
	}

	args := crawler.SeedUserArgs{Handle: handle, FollowUp: followUp}
	if err := a.queue.Enqueue(a.ctx, crawler.TaskSeedUser, args, 0); err != nil {
		return "", fmt.Errorf("failed to enqueue seed_user: %w", err)
	}
	return "Seeding crawl for " + handle, nil
}

// ClusterGraph phát một lượt clustering trên graph hiện tại
func (a *CrawlerAPI) ClusterGraph(criteria string) (string, error) {
	if a.queue == nil {
		return "", errors.New("api is not initialized")
	}

	args := cluster.ClusterGraphArgs{Criteria: criteria}
	if err := a.queue.Enqueue(a.ctx, cluster.TaskClusterGraph, args, 0); err != nil {
		return "", fmt.Errorf("failed to enqueue cluster_graph: %w", err)
	}
	return "Clustering run enqueued with criteria " + criteria, nil
}

// StopScrape hạ cờ của cả hai loại phiên. Các vòng poll đang chạy
// sẽ tự dừng ở lần kiểm tra kế tiếp, không cần signal trực tiếp.
func (a *CrawlerAPI) StopScrape() (string, error) {
	if a.redis == nil {
		return "", errors.New("api is not initialized")
	}

	if err := a.redis.Set(a.ctx, "default_scrape", ""); err != nil {
		return "", fmt.Errorf("failed to clear default_scrape flag: %w", err)
	}
	if err := a.redis.Set(a.ctx, "user_scrape", ""); err != nil {
		return "", fmt.Errorf("failed to clear user_scrape flag: %w", err)
	}
	if err := a.redis.Set(a.ctx, "scrape_mode", ""); err != nil {
		return "", fmt.Errorf("failed to clear scrape_mode flag: %w", err)
	}

	return "Scrape sessions will stop on the next poll", nil
}

// GetStatus trả về trạng thái hiện tại của các phiên crawl
func (a *CrawlerAPI) GetStatus() (*ScrapeStatus, error) {
	if a.redis == nil {
		return nil, errors.New("api is not initialized")
	}

	status := &ScrapeStatus{
		Mode:            a.flag("scrape_mode"),
		DefaultScrape:   a.flag("default_scrape"),
		UserScrape:      a.flag("user_scrape"),
		ScrapeUser:      a.flag("scrape_user"),
		FriendsScrape:   a.flag("scrape_friends"),
		FollowersScrape: a.flag("scrape_followers"),
		TweetsScrape:    a.flag("scrape_tweets"),
	}

	status.DatabaseStatus, _ = a.GetDatabaseStatus()
	if err := a.redis.Ping(a.ctx); err != nil {
		status.CacheStatus = "Cache not connected: " + err.Error()
	} else {
		status.CacheStatus = "Cache connected"
	}

	return status, nil
}

// flag đọc một cờ trong cache, key chưa tồn tại được coi là rỗng
func (a *CrawlerAPI) flag(key string) string {
	val, err := a.redis.Get(a.ctx, key)
	if err != nil {
		return ""
	}
	return val
}

// GetDatabaseStatus kiểm tra trạng thái kết nối cơ sở dữ liệu
func (a *CrawlerAPI) GetDatabaseStatus() (string, error) {
	if a.mysql == nil {
		return "Database not initialized", nil
	}

	gormDb, err := a.mysql.Db()
	if err != nil {
		return "Database error: " + err.Error(), err
	}

	sqlDB, err := gormDb.DB()
	if err != nil {
		return "Database error: " + err.Error(), err
	}

	if err := sqlDB.Ping(); err != nil {
		return "Database not connected: " + err.Error(), err
	}

	return "Database connected", nil
}

// Close giải phóng kết nối queue và cache của API
func (a *CrawlerAPI) Close() {
	if closer, ok := a.queue.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if closer, ok := a.redis.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
