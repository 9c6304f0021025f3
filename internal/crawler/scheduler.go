// Hai vòng scheduler của crawler: default scrape quét toàn graph,
// user scrape quét quanh một seed. Cả hai tự re-arm qua queue theo chu kỳ
// poll thay vì giữ goroutine sống, nên worker nào nhận cũng chạy tiếp được.

package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/augeas/BirdSpider/internal/model"
)

// UserScrapeArgs định danh một phiên user scrape.
// RootTask tách FIFO ứng viên của phiên này khỏi các phiên trước trên cùng seed.
type UserScrapeArgs struct {
	Seed     string `json:"seed"`
	RootTask string `json:"root_task"`
}

type StartUserScrapeArgs struct {
	Seed string `json:"seed"`
}

// ScrapeArgs điều chỉnh thứ tự chọn ứng viên của default scrape.
// Latest=true ưu tiên user được crawl gần đây nhất thay vì lâu nhất.
type ScrapeArgs struct {
	Latest bool `json:"latest,omitempty"`
}

// HandleStartScrape bật phiên default scrape và phát vòng poll đầu tiên
func (c *Crawler) HandleStartScrape(ctx context.Context, args json.RawMessage) error {
	var scrapeArgs ScrapeArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &scrapeArgs); err != nil {
			return fmt.Errorf("invalid start_scrape args: %w", err)
		}
	}

	c.setFlag(ctx, FlagDefaultScrape, FlagRunning)
	c.setFlag(ctx, FlagScrapeMode, "default")
	for _, job := range jobs {
		c.setFlag(ctx, jobFlag(job), FlagIdle)
	}
	c.Logger.Info(ctx, "Default scrape started")
	return c.Queue.Enqueue(ctx, TaskDoScrape, scrapeArgs, 0)
}

// HandleDoScrape là một vòng poll của default scrape: với mỗi job kind
// đang rảnh, chọn một ứng viên toàn cục và phát crawl cho nó.
// Vòng poll dừng hẳn khi cờ default_scrape bị hạ.
func (c *Crawler) HandleDoScrape(ctx context.Context, args json.RawMessage) error {
	var scrapeArgs ScrapeArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &scrapeArgs); err != nil {
			return fmt.Errorf("invalid do_scrape args: %w", err)
		}
	}

	if c.flag(ctx, FlagDefaultScrape) != FlagRunning {
		c.Logger.Info(ctx, "Default scrape stopped, not re-arming")
		return nil
	}

	for _, job := range jobs {
		flag := jobFlag(job)
		if c.flag(ctx, flag) == FlagRunning {
			continue
		}

		handle, found, err := c.Picker.NextGlobal(ctx, job, scrapeArgs.Latest)
		if err != nil {
			c.Logger.Error(ctx, "Cannot pick %s candidate: %v", job, err)
			continue
		}
		if !found {
			continue
		}

		if err := c.dispatchJob(ctx, job, handle, flag); err != nil {
			c.Logger.Error(ctx, "Cannot dispatch %s crawl for %s: %v", job, handle, err)
			continue
		}
		c.setFlag(ctx, flag, FlagRunning)
	}

	return c.Queue.Enqueue(ctx, TaskDoScrape, scrapeArgs, c.pollInterval())
}

// HandleStartUserScrape bật phiên user scrape quanh một seed
func (c *Crawler) HandleStartUserScrape(ctx context.Context, args json.RawMessage) error {
	var startArgs StartUserScrapeArgs
	if err := json.Unmarshal(args, &startArgs); err != nil {
		return fmt.Errorf("invalid start_user_scrape args: %w", err)
	}
	if startArgs.Seed == "" {
		return fmt.Errorf("start_user_scrape requires a seed")
	}

	c.setFlag(ctx, FlagUserScrape, FlagRunning)
	c.setFlag(ctx, FlagScrapeMode, "user")
	c.setFlag(ctx, FlagScrapeUser, startArgs.Seed)
	for _, job := range jobs {
		c.setFlag(ctx, jobFlag(job), FlagIdle)
	}

	session := UserScrapeArgs{
		Seed:     startArgs.Seed,
		RootTask: fmt.Sprintf("%x", time.Now().UnixNano()),
	}
	c.Logger.Info(ctx, "User scrape started around %s (session %s)", session.Seed, session.RootTask)
	return c.Queue.Enqueue(ctx, TaskDoUserScrape, session, 0)
}

// HandleDoUserScrape là một vòng poll của user scrape. Phiên kết thúc
// khi không job nào còn chạy và không job nào còn ứng viên quanh seed.
func (c *Crawler) HandleDoUserScrape(ctx context.Context, args json.RawMessage) error {
	var session UserScrapeArgs
	if err := json.Unmarshal(args, &session); err != nil {
		return fmt.Errorf("invalid do_user_scrape args: %w", err)
	}

	if c.flag(ctx, FlagUserScrape) != FlagRunning {
		c.Logger.Info(ctx, "User scrape stopped, not re-arming")
		return nil
	}

	active := false
	for _, job := range jobs {
		flag := jobFlag(job)
		if c.flag(ctx, flag) == FlagRunning {
			active = true
			continue
		}

		handle, found, err := c.Picker.NextNearest(ctx, session.Seed, job, session.RootTask)
		if err != nil {
			c.Logger.Error(ctx, "Cannot pick nearest %s candidate: %v", job, err)
			continue
		}
		if !found {
			continue
		}

		if err := c.dispatchJob(ctx, job, handle, flag); err != nil {
			c.Logger.Error(ctx, "Cannot dispatch %s crawl for %s: %v", job, handle, err)
			continue
		}
		c.setFlag(ctx, flag, FlagRunning)
		active = true
	}

	if !active {
		c.setFlag(ctx, FlagUserScrape, FlagIdle)
		c.setFlag(ctx, FlagScrapeMode, "")
		c.setFlag(ctx, FlagScrapeUser, "")
		c.Logger.Info(ctx, "User scrape around %s finished", session.Seed)
		return nil
	}

	return c.Queue.Enqueue(ctx, TaskDoUserScrape, session, c.pollInterval())
}

// dispatchJob phát page task đầu tiên của một job kind cho một user.
// Flag được truyền theo chain để trang cuối cùng báo lại cho scheduler.
func (c *Crawler) dispatchJob(ctx context.Context, job, handle, flag string) error {
	switch job {
	case model.JobFriends:
		return c.Queue.Enqueue(ctx, TaskGetConnections, GetConnectionsArgs{
			Handle: handle, Friends: true, Cursor: -1, Flag: flag,
		}, 0)
	case model.JobFollowers:
		return c.Queue.Enqueue(ctx, TaskGetConnections, GetConnectionsArgs{
			Handle: handle, Friends: false, Cursor: -1, Flag: flag,
		}, 0)
	default:
		return c.Queue.Enqueue(ctx, TaskGetTweets, GetTweetsArgs{
			Handle: handle, MaxTweets: c.Config.Crawler.MaxTweets, Flag: flag,
		}, 0)
	}
}
