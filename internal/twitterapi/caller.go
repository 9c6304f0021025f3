// Caller chịu trách nhiệm thực hiện yêu cầu API và theo dõi quota.
// Trước mỗi call, WaitTime kiểm tra quota record trong cache; sau mỗi call,
// header x-rate-limit-* được ghi đè vào record (last-writer-wins giữa các worker).

package twitterapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/log"
)

// Tên các API method, dùng làm hậu tố của quota key
const (
	MethodLookupUser       = "lookup_user"
	MethodGetFriendsList   = "get_friends_list"
	MethodGetFollowersList = "get_followers_list"
	MethodGetUserTimeline  = "get_user_timeline"
	MethodSearchTweets     = "search_tweets"
)

// QuotaRecord lưu số call còn lại và thời điểm reset của một quota window
type QuotaRecord struct {
	Remaining int64     `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

type Caller struct {
	Logger log.Logger
	Config *cfg.Config
	Cache  cache.Store
	client *http.Client
}

func NewCaller(logger log.Logger, config *cfg.Config, cacheStore cache.Store) *Caller {
	return &Caller{
		Logger: logger,
		Config: config,
		Cache:  cacheStore,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Caller) quotaKey(method string) string {
	return c.Config.TwitterApi.CredentialHandle + method
}

// WaitTime trả về thời gian phải chờ trước khi được gọi method.
// Không có record hoặc còn quota thì không phải chờ.
func (c *Caller) WaitTime(ctx context.Context, method string) time.Duration {
	var record QuotaRecord
	err := c.Cache.GetJSON(ctx, c.quotaKey(method), &record)
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.Logger.Warn(ctx, "Cannot read quota record for %s: %v", method, err)
		}
		return 0
	}

	if record.Remaining > 0 {
		return 0
	}

	now := time.Now()
	if record.Reset.After(now) {
		// Cộng thêm margin để tránh lệch đồng hồ với Twitter
		margin := time.Duration(c.Config.TwitterApi.QuotaMarginSec) * time.Second
		return record.Reset.Sub(now) + margin
	}
	return 0
}

// updateQuota ghi đè quota record từ header của phản hồi
func (c *Caller) updateQuota(ctx context.Context, method string, resp *http.Response) {
	rateRemaining := resp.Header.Get("x-rate-limit-remaining")
	rateReset := resp.Header.Get("x-rate-limit-reset")
	if rateRemaining == "" || rateReset == "" {
		return
	}

	remaining, err := strconv.ParseInt(rateRemaining, 10, 64)
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(rateReset, 10, 64)
	if err != nil {
		return
	}

	record := QuotaRecord{
		Remaining: remaining,
		Reset:     time.Unix(resetUnix, 0),
	}
	if err := c.Cache.SetJSON(ctx, c.quotaKey(method), record); err != nil {
		c.Logger.Warn(ctx, "Cannot store quota record for %s: %v", method, err)
	}
}

func (c *Caller) call(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	fullUrl := fmt.Sprintf("%s/%s?%s", c.Config.TwitterApi.ApiUrl, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, nil)
	if err != nil {
		return fmt.Errorf("cannot build request for %s: %w", method, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.Config.TwitterApi.BearerToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Config.TwitterApi.BearerToken))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.Logger.Error(ctx, "Cannot send request for %s: %v", method, err)
		return &CallError{Method: method, Kind: KindUnknown}
	}
	defer resp.Body.Close()

	c.updateQuota(ctx, method, resp)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		c.Logger.Warn(ctx, "Twitter method 404: %s", method)
		return &CallError{Method: method, Kind: KindNotFound, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.Logger.Error(ctx, "Twitter method auth failure: %s (status %d)", method, resp.StatusCode)
		return &CallError{Method: method, Kind: KindAuthFailure, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.Logger.Warn(ctx, "Twitter method rate-limited: %s", method)
		return &CallError{Method: method, Kind: KindRateLimited, StatusCode: resp.StatusCode}
	default:
		c.Logger.Error(ctx, "Twitter method failed: %s (status %d)", method, resp.StatusCode)
		return &CallError{Method: method, Kind: KindUnknown, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.Logger.Error(ctx, "Cannot decode response for %s: %v", method, err)
		return &CallError{Method: method, Kind: KindUnknown, StatusCode: resp.StatusCode}
	}
	return nil
}

// LookupUsers tra cứu một nhóm user theo screen_name
func (c *Caller) LookupUsers(ctx context.Context, handles []string) ([]UserResponse, error) {
	params := url.Values{}
	params.Set("screen_name", strings.Join(handles, ","))

	var users []UserResponse
	if err := c.call(ctx, MethodLookupUser, "users/lookup.json", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FriendsPage lấy một trang danh sách friend của user theo cursor
func (c *Caller) FriendsPage(ctx context.Context, handle string, cursor int64) (*ConnectionPage, error) {
	return c.connectionPage(ctx, MethodGetFriendsList, "friends/list.json", handle, cursor)
}

// FollowersPage lấy một trang danh sách follower của user theo cursor
func (c *Caller) FollowersPage(ctx context.Context, handle string, cursor int64) (*ConnectionPage, error) {
	return c.connectionPage(ctx, MethodGetFollowersList, "followers/list.json", handle, cursor)
}

func (c *Caller) connectionPage(ctx context.Context, method, path, handle string, cursor int64) (*ConnectionPage, error) {
	params := url.Values{}
	params.Set("screen_name", handle)
	params.Set("cursor", strconv.FormatInt(cursor, 10))
	params.Set("count", strconv.Itoa(c.Config.TwitterApi.PageSize))

	page := &ConnectionPage{}
	if err := c.call(ctx, method, path, params, page); err != nil {
		return nil, err
	}
	return page, nil
}

// TimelinePage lấy một trang timeline của user, lùi dần theo maxID
func (c *Caller) TimelinePage(ctx context.Context, handle string, maxID int64) ([]TweetResponse, error) {
	params := url.Values{}
	params.Set("screen_name", handle)
	params.Set("count", strconv.Itoa(c.Config.TwitterApi.PageSize))
	params.Set("exclude_replies", "false")
	params.Set("include_rts", "true")
	params.Set("trim_user", "false")
	if maxID > 0 {
		params.Set("max_id", strconv.FormatInt(maxID, 10))
	}

	var tweets []TweetResponse
	if err := c.call(ctx, MethodGetUserTimeline, "statuses/user_timeline.json", params, &tweets); err != nil {
		return nil, err
	}
	return tweets, nil
}

// SearchTweets tìm tweet theo query string
func (c *Caller) SearchTweets(ctx context.Context, query string) ([]TweetResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(c.Config.TwitterApi.PageSize))

	var result struct {
		Statuses []TweetResponse `json:"statuses"`
	}
	if err := c.call(ctx, MethodSearchTweets, "search/tweets.json", params, &result); err != nil {
		return nil, err
	}
	return result.Statuses, nil
}
