package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/cluster"
	"github.com/augeas/BirdSpider/internal/crawler"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/log"
	"github.com/augeas/BirdSpider/pkg/taskq"
)

func newTestAPI(t *testing.T) (*CrawlerAPI, *taskq.MemoryQueue, *cache.Memory) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	logger, err := log.NewNullLogger()
	require.NoError(t, err)

	store := cache.NewMemory()
	queue := taskq.NewMemoryQueue()
	crawlerApi := &CrawlerAPI{
		ctx:    context.Background(),
		config: config,
		logger: logger,
		redis:  store,
		queue:  queue,
	}
	return crawlerApi, queue, store
}

func TestStartDefaultScrapeEnqueuesStartTask(t *testing.T) {
	crawlerApi, queue, _ := newTestAPI(t)

	msg, err := crawlerApi.StartDefaultScrape(true)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	require.Equal(t, []string{crawler.TaskStartScrape}, queue.Tasks())
	var args crawler.ScrapeArgs
	require.NoError(t, json.Unmarshal(queue.Envelopes[0].Args, &args))
	assert.True(t, args.Latest)
}

func TestStartUserScrapeRequiresSeed(t *testing.T) {
	crawlerApi, queue, _ := newTestAPI(t)

	_, err := crawlerApi.StartUserScrape("")
	require.Error(t, err)
	assert.Empty(t, queue.Tasks())

	_, err = crawlerApi.StartUserScrape("alice")
	require.NoError(t, err)
	require.Equal(t, []string{crawler.TaskStartUserScrape}, queue.Tasks())

	var args crawler.StartUserScrapeArgs
	require.NoError(t, json.Unmarshal(queue.Envelopes[0].Args, &args))
	assert.Equal(t, "alice", args.Seed)
}

func TestSeedUserEnqueuesSeedChain(t *testing.T) {
	crawlerApi, queue, _ := newTestAPI(t)

	_, err := crawlerApi.SeedUser("", false)
	require.Error(t, err)

	_, err = crawlerApi.SeedUser("alice", true)
	require.NoError(t, err)
	require.Equal(t, []string{crawler.TaskSeedUser}, queue.Tasks())

	var args crawler.SeedUserArgs
	require.NoError(t, json.Unmarshal(queue.Envelopes[0].Args, &args))
	assert.Equal(t, "alice", args.Handle)
	assert.True(t, args.FollowUp)
}

func TestClusterGraphEnqueuesClusteringRun(t *testing.T) {
	crawlerApi, queue, _ := newTestAPI(t)

	_, err := crawlerApi.ClusterGraph(cluster.CriteriaSharedFriends)
	require.NoError(t, err)
	require.Equal(t, []string{cluster.TaskClusterGraph}, queue.Tasks())

	var args cluster.ClusterGraphArgs
	require.NoError(t, json.Unmarshal(queue.Envelopes[0].Args, &args))
	assert.Equal(t, cluster.CriteriaSharedFriends, args.Criteria)
}

func TestStopScrapeClearsSessionFlags(t *testing.T) {
	crawlerApi, _, store := newTestAPI(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "default_scrape", "running"))
	require.NoError(t, store.Set(ctx, "user_scrape", "running"))
	require.NoError(t, store.Set(ctx, "scrape_mode", "default"))

	_, err := crawlerApi.StopScrape()
	require.NoError(t, err)

	for _, key := range []string{"default_scrape", "user_scrape", "scrape_mode"} {
		val, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, val, "flag %s not cleared", key)
	}
}

func TestGetStatusReadsFlagsFromCache(t *testing.T) {
	crawlerApi, _, store := newTestAPI(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "scrape_mode", "default"))
	require.NoError(t, store.Set(ctx, "default_scrape", "running"))
	require.NoError(t, store.Set(ctx, "scrape_friends", "running"))
	require.NoError(t, store.Set(ctx, "scrape_tweets", "done"))

	status, err := crawlerApi.GetStatus()
	require.NoError(t, err)

	assert.Equal(t, "default", status.Mode)
	assert.Equal(t, "running", status.DefaultScrape)
	assert.Equal(t, "running", status.FriendsScrape)
	assert.Equal(t, "done", status.TweetsScrape)
	assert.Empty(t, status.UserScrape)
	assert.Equal(t, "Cache connected", status.CacheStatus)
	assert.Equal(t, "Database not initialized", status.DatabaseStatus)
}
