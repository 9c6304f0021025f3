package crawler

// Các cờ trạng thái crawl trong cache, chia sẻ giữa mọi worker
const (
	FlagDefaultScrape = "default_scrape"
	FlagUserScrape    = "user_scrape"
	FlagScrapeMode    = "scrape_mode"
	FlagScrapeUser    = "scrape_user"
)

// Giá trị của một cờ job
const (
	FlagIdle    = ""
	FlagRunning = "running"
	FlagDone    = "done"
)

// jobFlag là cờ trạng thái của một job kind, ví dụ scrape_friends
func jobFlag(job string) string {
	return "scrape_" + job
}
