// Các page task của crawler. Mỗi task xử lý đúng một trang API rồi
// tự enqueue trang kế tiếp, nên độ sâu của một crawl không phụ thuộc
// vào tuổi thọ của worker process.

package crawler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/augeas/BirdSpider/internal/decompose"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/taskq"
)

type GetUsersArgs struct {
	Handles []string `json:"handles"`
}

type GetConnectionsArgs struct {
	Handle  string `json:"handle"`
	Friends bool   `json:"friends"`
	Cursor  int64  `json:"cursor"`
	Flag    string `json:"flag,omitempty"`
}

type GetTweetsArgs struct {
	Handle    string `json:"handle"`
	MaxID     int64  `json:"max_id,omitempty"`
	Collected int    `json:"collected,omitempty"`
	MaxTweets int    `json:"max_tweets,omitempty"`
	Flag      string `json:"flag,omitempty"`
}

type SearchTweetsArgs struct {
	Query string `json:"query"`
}

type SeedUserArgs struct {
	Handle   string `json:"handle"`
	FollowUp bool   `json:"follow_up,omitempty"`
}

// HandleGetUsers tra cứu và merge một nhóm user theo handle.
// User không tồn tại được đánh dấu defunct, chain vẫn được chạy tiếp
// vì các task sau tự xử lý được user đã biến mất.
func (c *Crawler) HandleGetUsers(ctx context.Context, args json.RawMessage) error {
	var lookupArgs GetUsersArgs
	if err := json.Unmarshal(args, &lookupArgs); err != nil {
		return fmt.Errorf("invalid get_users args: %w", err)
	}

	if wait := c.Api.WaitTime(ctx, twitterapi.MethodLookupUser); wait > 0 {
		return taskq.RetryAfter(wait)
	}

	users, err := c.Api.LookupUsers(ctx, lookupArgs.Handles)
	if err != nil {
		switch {
		case twitterapi.IsRateLimited(err):
			return taskq.RetryAfter(c.retryWait(ctx, twitterapi.MethodLookupUser))
		case twitterapi.IsNotFound(err):
			for _, handle := range lookupArgs.Handles {
				if markErr := c.Graph.MarkDefunct(ctx, handle); markErr != nil {
					c.Logger.Error(ctx, "Cannot mark %s defunct: %v", handle, markErr)
				}
			}
			return nil
		default:
			return err
		}
	}

	return c.Graph.UpsertUsers(ctx, users)
}

// HandleGetConnections lấy một trang friend hoặc follower của một user,
// merge vào graph rồi enqueue trang kế tiếp theo cursor.
// Trang cuối (cursor 0) hạ cờ job để scheduler phát user tiếp theo.
func (c *Crawler) HandleGetConnections(ctx context.Context, args json.RawMessage) error {
	var pageArgs GetConnectionsArgs
	if err := json.Unmarshal(args, &pageArgs); err != nil {
		return fmt.Errorf("invalid get_connections args: %w", err)
	}

	method := twitterapi.MethodGetFollowersList
	if pageArgs.Friends {
		method = twitterapi.MethodGetFriendsList
	}

	if wait := c.Api.WaitTime(ctx, method); wait > 0 {
		return taskq.RetryAfter(wait)
	}

	var page *twitterapi.ConnectionPage
	var err error
	if pageArgs.Friends {
		page, err = c.Api.FriendsPage(ctx, pageArgs.Handle, pageArgs.Cursor)
	} else {
		page, err = c.Api.FollowersPage(ctx, pageArgs.Handle, pageArgs.Cursor)
	}
	if err != nil {
		return c.handleCrawlError(ctx, err, method, pageArgs.Handle, pageArgs.Flag)
	}

	if err := c.Graph.UpsertConnections(ctx, pageArgs.Handle, page.Users, pageArgs.Friends); err != nil {
		return err
	}

	if page.NextCursor != 0 {
		next := pageArgs
		next.Cursor = page.NextCursor
		return c.Queue.Enqueue(ctx, TaskGetConnections, next, 0)
	}

	c.finishJob(ctx, pageArgs.Flag)
	return nil
}

// HandleGetTweets lấy một trang timeline của một user, decompose rồi
// merge vào graph. Watermark max_id lùi dần qua từng trang cho đến khi
// timeline cạn hoặc chạm trần max_tweets.
func (c *Crawler) HandleGetTweets(ctx context.Context, args json.RawMessage) error {
	var pageArgs GetTweetsArgs
	if err := json.Unmarshal(args, &pageArgs); err != nil {
		return fmt.Errorf("invalid get_tweets args: %w", err)
	}

	maxTweets := pageArgs.MaxTweets
	if maxTweets <= 0 {
		maxTweets = c.Config.Crawler.MaxTweets
	}

	if wait := c.Api.WaitTime(ctx, twitterapi.MethodGetUserTimeline); wait > 0 {
		return taskq.RetryAfter(wait)
	}

	tweets, err := c.Api.TimelinePage(ctx, pageArgs.Handle, pageArgs.MaxID)
	if err != nil {
		return c.handleCrawlError(ctx, err, twitterapi.MethodGetUserTimeline, pageArgs.Handle, pageArgs.Flag)
	}

	if len(tweets) == 0 {
		c.finishJob(ctx, pageArgs.Flag)
		return nil
	}

	dump := decompose.Decompose(tweets)
	if err := c.Graph.PushTweetDump(ctx, pageArgs.Handle, dump); err != nil {
		return err
	}
	if c.Search != nil {
		c.Search.IndexPosts(ctx, originalPosts(dump))
	}

	collected := pageArgs.Collected + len(tweets)
	if collected >= maxTweets {
		c.Logger.Info(ctx, "Timeline of %s reached %d tweets, stopping", pageArgs.Handle, collected)
		c.finishJob(ctx, pageArgs.Flag)
		return nil
	}

	next := pageArgs
	next.MaxID = oldestID(tweets) - 1
	next.Collected = collected
	next.MaxTweets = maxTweets
	return c.Queue.Enqueue(ctx, TaskGetTweets, next, 0)
}

// HandleSearchTweets chạy một search query, merge tác giả vào graph
// và đẩy kết quả sang search index
func (c *Crawler) HandleSearchTweets(ctx context.Context, args json.RawMessage) error {
	var searchArgs SearchTweetsArgs
	if err := json.Unmarshal(args, &searchArgs); err != nil {
		return fmt.Errorf("invalid search_tweets args: %w", err)
	}

	if wait := c.Api.WaitTime(ctx, twitterapi.MethodSearchTweets); wait > 0 {
		return taskq.RetryAfter(wait)
	}

	tweets, err := c.Api.SearchTweets(ctx, searchArgs.Query)
	if err != nil {
		if twitterapi.IsRateLimited(err) {
			return taskq.RetryAfter(c.retryWait(ctx, twitterapi.MethodSearchTweets))
		}
		return err
	}

	var authors []twitterapi.UserResponse
	for _, tweet := range tweets {
		if tweet.User != nil {
			authors = append(authors, *tweet.User)
		}
	}
	if err := c.Graph.UpsertUsers(ctx, authors); err != nil {
		return err
	}

	if c.Search != nil {
		c.Search.IndexPosts(ctx, tweets)
	}
	c.Logger.Info(ctx, "Search %q returned %d tweets", searchArgs.Query, len(tweets))
	return nil
}

// HandleSeedUser phát chain crawl đầy đủ cho một seed: lookup, friends,
// followers, timeline, và tuỳ chọn mở tiếp một phiên user scrape quanh seed.
func (c *Crawler) HandleSeedUser(ctx context.Context, args json.RawMessage) error {
	var seedArgs SeedUserArgs
	if err := json.Unmarshal(args, &seedArgs); err != nil {
		return fmt.Errorf("invalid seed_user args: %w", err)
	}
	if seedArgs.Handle == "" {
		return fmt.Errorf("seed_user requires a handle")
	}

	var specs []taskq.TaskSpec
	for _, step := range []struct {
		task string
		args interface{}
	}{
		{TaskGetUsers, GetUsersArgs{Handles: []string{seedArgs.Handle}}},
		{TaskGetConnections, GetConnectionsArgs{Handle: seedArgs.Handle, Friends: true, Cursor: -1}},
		{TaskGetConnections, GetConnectionsArgs{Handle: seedArgs.Handle, Friends: false, Cursor: -1}},
		{TaskGetTweets, GetTweetsArgs{Handle: seedArgs.Handle, MaxTweets: c.Config.Crawler.SeedMaxTweets}},
	} {
		spec, err := taskq.NewSpec(step.task, step.args)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	if seedArgs.FollowUp {
		spec, err := taskq.NewSpec(TaskStartUserScrape, StartUserScrapeArgs{Seed: seedArgs.Handle})
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	c.Logger.Info(ctx, "Seeding crawl for %s", seedArgs.Handle)
	return c.Queue.Chain(ctx, specs...)
}

// handleCrawlError xử lý lỗi API chung cho các page task.
// NotFound: user đã biến mất, đánh dấu defunct và coi job là xong.
// RateLimited: chạy lại envelope sau khi quota reset.
// AuthFailure: lỗi credential, không tự phục hồi được.
// Còn lại: bỏ user này, hạ cờ để vòng crawl không bị kẹt.
func (c *Crawler) handleCrawlError(ctx context.Context, err error, method, handle, flag string) error {
	switch {
	case twitterapi.IsNotFound(err):
		if markErr := c.Graph.MarkDefunct(ctx, handle); markErr != nil {
			c.Logger.Error(ctx, "Cannot mark %s defunct: %v", handle, markErr)
		}
		c.finishJob(ctx, flag)
		return nil
	case twitterapi.IsRateLimited(err):
		return taskq.RetryAfter(c.retryWait(ctx, method))
	case twitterapi.IsAuthFailure(err):
		return err
	default:
		c.Logger.Error(ctx, "Crawl of %s failed, skipping: %v", handle, err)
		c.finishJob(ctx, flag)
		return nil
	}
}

// originalPosts gom các post gốc của mọi variant để đánh index
func originalPosts(dump *decompose.Dump) []twitterapi.TweetResponse {
	var posts []twitterapi.TweetResponse
	for _, variant := range decompose.Variants {
		for _, pair := range dump.Posts(variant) {
			posts = append(posts, pair.Original)
		}
	}
	return posts
}

// oldestID tìm id nhỏ nhất trong một trang timeline
func oldestID(tweets []twitterapi.TweetResponse) int64 {
	oldest := tweets[0].ID
	for _, tweet := range tweets[1:] {
		if tweet.ID < oldest {
			oldest = tweet.ID
		}
	}
	return oldest
}
