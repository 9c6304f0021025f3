// Gói crawler điều phối các vòng crawl trên task queue.
// Mọi state của một phiên crawl nằm trong cache và trong args của envelope,
// worker process chết giữa chừng thì phiên vẫn tiếp tục được từ chỗ cũ.

package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/decompose"
	"github.com/augeas/BirdSpider/internal/model"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/log"
	"github.com/augeas/BirdSpider/pkg/taskq"
)

// Tên các task trên queue
const (
	TaskStartScrape     = "start_scrape"
	TaskDoScrape        = "do_scrape"
	TaskStartUserScrape = "start_user_scrape"
	TaskDoUserScrape    = "do_user_scrape"
	TaskGetUsers        = "get_users"
	TaskGetConnections  = "get_connections"
	TaskGetTweets       = "get_tweets"
	TaskSearchTweets    = "search_tweets"
	TaskSeedUser        = "seed_user"
)

// jobs là các job kind được schedule độc lập trong một phiên crawl
var jobs = []string{model.JobFriends, model.JobFollowers, model.JobTweets}

// TwitterClient là phần API mà crawler cần
type TwitterClient interface {
	WaitTime(ctx context.Context, method string) time.Duration
	LookupUsers(ctx context.Context, handles []string) ([]twitterapi.UserResponse, error)
	FriendsPage(ctx context.Context, handle string, cursor int64) (*twitterapi.ConnectionPage, error)
	FollowersPage(ctx context.Context, handle string, cursor int64) (*twitterapi.ConnectionPage, error)
	TimelinePage(ctx context.Context, handle string, maxID int64) ([]twitterapi.TweetResponse, error)
	SearchTweets(ctx context.Context, query string) ([]twitterapi.TweetResponse, error)
}

// GraphStore là phần persistence mà crawler cần
type GraphStore interface {
	UpsertUsers(ctx context.Context, users []twitterapi.UserResponse) error
	UpsertConnections(ctx context.Context, source string, users []twitterapi.UserResponse, friends bool) error
	PushTweetDump(ctx context.Context, user string, dump *decompose.Dump) error
	MarkDefunct(ctx context.Context, handle string) error
}

// CandidatePicker chọn user tiếp theo cho một job kind
type CandidatePicker interface {
	NextGlobal(ctx context.Context, job string, latest bool) (string, bool, error)
	NextNearest(ctx context.Context, seed, job, rootTask string) (string, bool, error)
}

// PostIndexer đẩy post sang search index, best-effort
type PostIndexer interface {
	IndexPosts(ctx context.Context, posts []twitterapi.TweetResponse)
}

type Crawler struct {
	Config *cfg.Config
	Logger log.Logger
	Api    TwitterClient
	Graph  GraphStore
	Picker CandidatePicker
	Cache  cache.Store
	Queue  taskq.Queue
	Search PostIndexer
}

func NewCrawler(
	config *cfg.Config,
	logger log.Logger,
	api TwitterClient,
	graph GraphStore,
	picker CandidatePicker,
	cacheStore cache.Store,
	queue taskq.Queue,
	search PostIndexer,
) *Crawler {
	return &Crawler{
		Config: config,
		Logger: logger,
		Api:    api,
		Graph:  graph,
		Picker: picker,
		Cache:  cacheStore,
		Queue:  queue,
		Search: search,
	}
}

// RegisterHandlers gắn toàn bộ task handler của crawler vào worker
func (c *Crawler) RegisterHandlers(w *taskq.Worker) {
	w.Register(TaskStartScrape, c.HandleStartScrape)
	w.Register(TaskDoScrape, c.HandleDoScrape)
	w.Register(TaskStartUserScrape, c.HandleStartUserScrape)
	w.Register(TaskDoUserScrape, c.HandleDoUserScrape)
	w.Register(TaskGetUsers, c.HandleGetUsers)
	w.Register(TaskGetConnections, c.HandleGetConnections)
	w.Register(TaskGetTweets, c.HandleGetTweets)
	w.Register(TaskSearchTweets, c.HandleSearchTweets)
	w.Register(TaskSeedUser, c.HandleSeedUser)
}

func (c *Crawler) pollInterval() time.Duration {
	return time.Duration(c.Config.Crawler.PollIntervalSec) * time.Second
}

// flag đọc một cờ trong cache, key chưa tồn tại được coi là idle
func (c *Crawler) flag(ctx context.Context, key string) string {
	val, err := c.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.Logger.Warn(ctx, "Cannot read flag %s: %v", key, err)
		}
		return FlagIdle
	}
	return val
}

func (c *Crawler) setFlag(ctx context.Context, key, value string) {
	if err := c.Cache.Set(ctx, key, value); err != nil {
		c.Logger.Error(ctx, "Cannot set flag %s: %v", key, err)
	}
}

// finishJob đánh dấu một job đã xong để scheduler phát job tiếp theo
func (c *Crawler) finishJob(ctx context.Context, flag string) {
	if flag == "" {
		return
	}
	c.setFlag(ctx, flag, FlagDone)
}

// retryWait là khoảng chờ khi API trả về rate-limited.
// Quota record cho biết chính xác, không có record thì chờ một phút.
func (c *Crawler) retryWait(ctx context.Context, method string) time.Duration {
	if wait := c.Api.WaitTime(ctx, method); wait > 0 {
		return wait
	}
	return time.Minute
}
