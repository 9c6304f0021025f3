package crawler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/decompose"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/log"
	"github.com/augeas/BirdSpider/pkg/taskq"
)

type connCall struct {
	source  string
	count   int
	friends bool
}

type dumpCall struct {
	user string
	dump *decompose.Dump
}

type fakeGraph struct {
	upserted    [][]twitterapi.UserResponse
	connections []connCall
	dumps       []dumpCall
	defunct     []string
}

func (g *fakeGraph) UpsertUsers(ctx context.Context, users []twitterapi.UserResponse) error {
	g.upserted = append(g.upserted, users)
	return nil
}

func (g *fakeGraph) UpsertConnections(ctx context.Context, source string, users []twitterapi.UserResponse, friends bool) error {
	g.connections = append(g.connections, connCall{source: source, count: len(users), friends: friends})
	return nil
}

func (g *fakeGraph) PushTweetDump(ctx context.Context, user string, dump *decompose.Dump) error {
	g.dumps = append(g.dumps, dumpCall{user: user, dump: dump})
	return nil
}

func (g *fakeGraph) MarkDefunct(ctx context.Context, handle string) error {
	g.defunct = append(g.defunct, handle)
	return nil
}

type fakeApi struct {
	waits     map[string]time.Duration
	friends   func(cursor int64) (*twitterapi.ConnectionPage, error)
	followers func(cursor int64) (*twitterapi.ConnectionPage, error)
	timeline  func(maxID int64) ([]twitterapi.TweetResponse, error)
	lookup    func(handles []string) ([]twitterapi.UserResponse, error)
	search    func(query string) ([]twitterapi.TweetResponse, error)
}

func (a *fakeApi) WaitTime(ctx context.Context, method string) time.Duration {
	return a.waits[method]
}

func (a *fakeApi) LookupUsers(ctx context.Context, handles []string) ([]twitterapi.UserResponse, error) {
	return a.lookup(handles)
}

func (a *fakeApi) FriendsPage(ctx context.Context, handle string, cursor int64) (*twitterapi.ConnectionPage, error) {
	return a.friends(cursor)
}

func (a *fakeApi) FollowersPage(ctx context.Context, handle string, cursor int64) (*twitterapi.ConnectionPage, error) {
	return a.followers(cursor)
}

func (a *fakeApi) TimelinePage(ctx context.Context, handle string, maxID int64) ([]twitterapi.TweetResponse, error) {
	return a.timeline(maxID)
}

func (a *fakeApi) SearchTweets(ctx context.Context, query string) ([]twitterapi.TweetResponse, error) {
	return a.search(query)
}

type fakePicker struct {
	global  map[string]string
	nearest map[string]string
}

func (p *fakePicker) NextGlobal(ctx context.Context, job string, latest bool) (string, bool, error) {
	handle, ok := p.global[job]
	return handle, ok, nil
}

func (p *fakePicker) NextNearest(ctx context.Context, seed, job, rootTask string) (string, bool, error) {
	handle, ok := p.nearest[job]
	return handle, ok, nil
}

func newTestCrawler(t *testing.T, api *fakeApi, picker *fakePicker) (*Crawler, *fakeGraph, *cache.Memory, *taskq.MemoryQueue) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	logger, err := log.NewNullLogger()
	require.NoError(t, err)

	graph := &fakeGraph{}
	store := cache.NewMemory()
	queue := taskq.NewMemoryQueue()
	if api == nil {
		api = &fakeApi{}
	}
	if picker == nil {
		picker = &fakePicker{}
	}

	spider := NewCrawler(config, logger, api, graph, picker, store, queue, nil)
	return spider, graph, store, queue
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func somePage(count int, nextCursor int64) *twitterapi.ConnectionPage {
	page := &twitterapi.ConnectionPage{NextCursor: nextCursor}
	for i := 0; i < count; i++ {
		page.Users = append(page.Users, twitterapi.UserResponse{
			ID:         int64(i + 1),
			ScreenName: "user" + string(rune('a'+i)),
		})
	}
	return page
}

func TestGetConnectionsPagesThroughCursor(t *testing.T) {
	ctx := context.Background()
	api := &fakeApi{
		friends: func(cursor int64) (*twitterapi.ConnectionPage, error) {
			if cursor == -1 {
				return somePage(2, 7), nil
			}
			return somePage(1, 0), nil
		},
	}
	spider, graph, store, queue := newTestCrawler(t, api, nil)

	args := GetConnectionsArgs{Handle: "alice", Friends: true, Cursor: -1, Flag: "scrape_friends"}
	require.NoError(t, spider.HandleGetConnections(ctx, mustMarshal(t, args)))

	// Trang đầu chưa hạ cờ, trang kế tiếp đã nằm trên queue với cursor mới
	require.Len(t, queue.Envelopes, 1)
	assert.Equal(t, TaskGetConnections, queue.Envelopes[0].Task)

	var next GetConnectionsArgs
	require.NoError(t, json.Unmarshal(queue.Envelopes[0].Args, &next))
	assert.Equal(t, int64(7), next.Cursor)
	assert.Equal(t, "scrape_friends", next.Flag)

	_, err := store.Get(ctx, "scrape_friends")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	// Chạy trang cuối: cursor 0 kết thúc job
	require.NoError(t, spider.HandleGetConnections(ctx, queue.Envelopes[0].Args))

	require.Len(t, graph.connections, 2)
	assert.Equal(t, connCall{source: "alice", count: 2, friends: true}, graph.connections[0])
	assert.Equal(t, connCall{source: "alice", count: 1, friends: true}, graph.connections[1])

	flag, err := store.Get(ctx, "scrape_friends")
	require.NoError(t, err)
	assert.Equal(t, FlagDone, flag)
	assert.Len(t, queue.Envelopes, 1)
}

func TestGetConnectionsNotFoundMarksDefunct(t *testing.T) {
	ctx := context.Background()
	api := &fakeApi{
		followers: func(cursor int64) (*twitterapi.ConnectionPage, error) {
			return nil, &twitterapi.CallError{Method: twitterapi.MethodGetFollowersList, Kind: twitterapi.KindNotFound}
		},
	}
	spider, graph, store, queue := newTestCrawler(t, api, nil)

	args := GetConnectionsArgs{Handle: "ghost", Friends: false, Cursor: -1, Flag: "scrape_followers"}
	require.NoError(t, spider.HandleGetConnections(ctx, mustMarshal(t, args)))

	assert.Equal(t, []string{"ghost"}, graph.defunct)
	assert.Empty(t, graph.connections)
	assert.Empty(t, queue.Envelopes)

	flag, err := store.Get(ctx, "scrape_followers")
	require.NoError(t, err)
	assert.Equal(t, FlagDone, flag)
}

func TestGetConnectionsRateLimitedRequestsRetry(t *testing.T) {
	ctx := context.Background()
	api := &fakeApi{
		waits: map[string]time.Duration{},
		friends: func(cursor int64) (*twitterapi.ConnectionPage, error) {
			return nil, &twitterapi.CallError{Method: twitterapi.MethodGetFriendsList, Kind: twitterapi.KindRateLimited}
		},
	}
	spider, _, _, _ := newTestCrawler(t, api, nil)

	args := GetConnectionsArgs{Handle: "alice", Friends: true, Cursor: -1}
	err := spider.HandleGetConnections(ctx, mustMarshal(t, args))

	require.Error(t, err)
	delay, ok := taskq.RetryDelay(err)
	require.True(t, ok)
	// Không có quota record thì lùi lại một phút
	assert.Equal(t, time.Minute, delay)
}

func TestGetConnectionsWaitsForQuotaWindow(t *testing.T) {
	ctx := context.Background()
	api := &fakeApi{
		waits: map[string]time.Duration{twitterapi.MethodGetFriendsList: 42 * time.Second},
	}
	spider, _, _, _ := newTestCrawler(t, api, nil)

	args := GetConnectionsArgs{Handle: "alice", Friends: true, Cursor: -1}
	err := spider.HandleGetConnections(ctx, mustMarshal(t, args))

	delay, ok := taskq.RetryDelay(err)
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, delay)
}

func TestGetTweetsWalksWatermarkAndStopsAtCap(t *testing.T) {
	ctx := context.Background()
	var requestedMaxIDs []int64
	api := &fakeApi{
		timeline: func(maxID int64) ([]twitterapi.TweetResponse, error) {
			requestedMaxIDs = append(requestedMaxIDs, maxID)
			base := int64(100)
			if maxID > 0 {
				base = maxID
			}
			var tweets []twitterapi.TweetResponse
			for i := int64(0); i < 3; i++ {
				id := base - i
				tweets = append(tweets, twitterapi.TweetResponse{ID: id, IDStr: "t", Text: "x"})
			}
			return tweets, nil
		},
	}
	spider, graph, store, queue := newTestCrawler(t, api, nil)

	args := GetTweetsArgs{Handle: "alice", MaxTweets: 5, Flag: "scrape_tweets"}
	require.NoError(t, spider.HandleGetTweets(ctx, mustMarshal(t, args)))

	// Trang đầu 3 tweet, chưa chạm trần 5: trang kế tiếp với watermark lùi
	require.Len(t, queue.Envelopes, 1)
	var next GetTweetsArgs
	require.NoError(t, json.Unmarshal(queue.Envelopes[0].Args, &next))
	assert.Equal(t, int64(97), next.MaxID)
	assert.Equal(t, 3, next.Collected)

	require.NoError(t, spider.HandleGetTweets(ctx, queue.Envelopes[0].Args))

	// Trang hai đưa tổng lên 6, vượt trần 5: job kết thúc
	assert.Equal(t, []int64{0, 97}, requestedMaxIDs)
	assert.Len(t, graph.dumps, 2)
	flag, err := store.Get(ctx, "scrape_tweets")
	require.NoError(t, err)
	assert.Equal(t, FlagDone, flag)
	assert.Len(t, queue.Envelopes, 1)
}

func TestGetTweetsEmptyTimelineFinishes(t *testing.T) {
	ctx := context.Background()
	api := &fakeApi{
		timeline: func(maxID int64) ([]twitterapi.TweetResponse, error) {
			return nil, nil
		},
	}
	spider, graph, store, queue := newTestCrawler(t, api, nil)

	args := GetTweetsArgs{Handle: "quiet", Flag: "scrape_tweets"}
	require.NoError(t, spider.HandleGetTweets(ctx, mustMarshal(t, args)))

	assert.Empty(t, graph.dumps)
	assert.Empty(t, queue.Envelopes)
	flag, err := store.Get(ctx, "scrape_tweets")
	require.NoError(t, err)
	assert.Equal(t, FlagDone, flag)
}

func TestGetUsersNotFoundMarksDefunct(t *testing.T) {
	ctx := context.Background()
	api := &fakeApi{
		lookup: func(handles []string) ([]twitterapi.UserResponse, error) {
			return nil, &twitterapi.CallError{Method: twitterapi.MethodLookupUser, Kind: twitterapi.KindNotFound}
		},
	}
	spider, graph, _, _ := newTestCrawler(t, api, nil)

	args := GetUsersArgs{Handles: []string{"ghost", "phantom"}}
	require.NoError(t, spider.HandleGetUsers(ctx, mustMarshal(t, args)))

	assert.Equal(t, []string{"ghost", "phantom"}, graph.defunct)
}

func TestDoScrapeDispatchesIdleJobsAndReArms(t *testing.T) {
	ctx := context.Background()
	picker := &fakePicker{global: map[string]string{
		"friends":   "alice",
		"followers": "bob",
		"tweets":    "carol",
	}}
	spider, _, store, queue := newTestCrawler(t, nil, picker)

	require.NoError(t, store.Set(ctx, FlagDefaultScrape, FlagRunning))
	require.NoError(t, spider.HandleDoScrape(ctx, nil))

	tasks := queue.Tasks()
	assert.Equal(t, []string{TaskGetConnections, TaskGetConnections, TaskGetTweets, TaskDoScrape}, tasks)

	for _, job := range []string{"friends", "followers", "tweets"} {
		flag, err := store.Get(ctx, "scrape_"+job)
		require.NoError(t, err)
		assert.Equal(t, FlagRunning, flag)
	}
}

func TestDoScrapeSkipsRunningJobs(t *testing.T) {
	ctx := context.Background()
	picker := &fakePicker{global: map[string]string{
		"friends":   "alice",
		"followers": "bob",
		"tweets":    "carol",
	}}
	spider, _, store, queue := newTestCrawler(t, nil, picker)

	require.NoError(t, store.Set(ctx, FlagDefaultScrape, FlagRunning))
	require.NoError(t, store.Set(ctx, "scrape_friends", FlagRunning))
	require.NoError(t, spider.HandleDoScrape(ctx, nil))

	tasks := queue.Tasks()
	assert.Equal(t, []string{TaskGetConnections, TaskGetTweets, TaskDoScrape}, tasks)
}

func TestDoScrapeStoppedDoesNotReArm(t *testing.T) {
	ctx := context.Background()
	spider, _, _, queue := newTestCrawler(t, nil, nil)

	require.NoError(t, spider.HandleDoScrape(ctx, nil))
	assert.Empty(t, queue.Envelopes)
}

func TestDoUserScrapeFinishesWhenExhausted(t *testing.T) {
	ctx := context.Background()
	picker := &fakePicker{nearest: map[string]string{}}
	spider, _, store, queue := newTestCrawler(t, nil, picker)

	require.NoError(t, store.Set(ctx, FlagUserScrape, FlagRunning))
	require.NoError(t, store.Set(ctx, FlagScrapeUser, "alice"))

	args := UserScrapeArgs{Seed: "alice", RootTask: "abc123"}
	require.NoError(t, spider.HandleDoUserScrape(ctx, mustMarshal(t, args)))

	// Không job nào chạy, không ứng viên nào còn: phiên kết thúc, không re-arm
	assert.Empty(t, queue.Envelopes)
	flag, err := store.Get(ctx, FlagUserScrape)
	require.NoError(t, err)
	assert.Equal(t, FlagIdle, flag)
}

func TestDoUserScrapeKeepsPollingWhileJobsRun(t *testing.T) {
	ctx := context.Background()
	picker := &fakePicker{nearest: map[string]string{}}
	spider, _, store, queue := newTestCrawler(t, nil, picker)

	require.NoError(t, store.Set(ctx, FlagUserScrape, FlagRunning))
	require.NoError(t, store.Set(ctx, "scrape_tweets", FlagRunning))

	args := UserScrapeArgs{Seed: "alice", RootTask: "abc123"}
	require.NoError(t, spider.HandleDoUserScrape(ctx, mustMarshal(t, args)))

	require.Len(t, queue.Envelopes, 1)
	assert.Equal(t, TaskDoUserScrape, queue.Envelopes[0].Task)
}

func TestSeedUserBuildsFullChain(t *testing.T) {
	ctx := context.Background()
	spider, _, _, queue := newTestCrawler(t, nil, nil)

	args := SeedUserArgs{Handle: "alice", FollowUp: true}
	require.NoError(t, spider.HandleSeedUser(ctx, mustMarshal(t, args)))

	require.Len(t, queue.Envelopes, 1)
	head := queue.Envelopes[0]
	assert.Equal(t, TaskGetUsers, head.Task)

	require.Len(t, head.Then, 4)
	assert.Equal(t, TaskGetConnections, head.Then[0].Task)
	assert.Equal(t, TaskGetConnections, head.Then[1].Task)
	assert.Equal(t, TaskGetTweets, head.Then[2].Task)
	assert.Equal(t, TaskStartUserScrape, head.Then[3].Task)

	var friendsArgs GetConnectionsArgs
	require.NoError(t, json.Unmarshal(head.Then[0].Args, &friendsArgs))
	assert.True(t, friendsArgs.Friends)
	assert.Equal(t, int64(-1), friendsArgs.Cursor)

	var tweetArgs GetTweetsArgs
	require.NoError(t, json.Unmarshal(head.Then[2].Args, &tweetArgs))
	assert.Equal(t, 1000, tweetArgs.MaxTweets)
}

func TestStartUserScrapeRequiresSeed(t *testing.T) {
	ctx := context.Background()
	spider, _, _, _ := newTestCrawler(t, nil, nil)

	err := spider.HandleStartUserScrape(ctx, mustMarshal(t, StartUserScrapeArgs{}))
	assert.Error(t, err)
}
