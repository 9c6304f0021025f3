// Gói selector chọn user tiếp theo cho mỗi job kind.
// Một user là ứng viên khi số liên kết đã biết trong graph còn thấp hơn
// đáng kể so với số liệu tự khai trên profile của họ.

package selector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/model"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

type Selector struct {
	Config *cfg.Config
	Logger log.Logger
	Mysql  *db.Mysql
	Cache  cache.Store
}

func NewSelector(config *cfg.Config, logger log.Logger, mysql *db.Mysql, store cache.Store) (*Selector, error) {
	return &Selector{
		Config: config,
		Logger: logger,
		Mysql:  mysql,
		Cache:  store,
	}, nil
}

// fifoKey là FIFO ứng viên của một session user scrape.
// Gắn với root task để hai session trên cùng seed không dùng chung queue.
func fifoKey(job, seed, rootTask string) string {
	return fmt.Sprintf("nextnearest_%s_%s_%s", job, seed, rootTask)
}

// knownCountSQL đếm số liên kết đã có trong graph của mỗi user cho một job kind
func knownCountSQL(job string) string {
	switch job {
	case model.JobFriends:
		return "SELECT source_handle AS handle, COUNT(*) AS known FROM follows GROUP BY source_handle"
	case model.JobFollowers:
		return "SELECT target_handle AS handle, COUNT(*) AS known FROM follows GROUP BY target_handle"
	default:
		return "SELECT actor_handle AS handle, COUNT(*) AS known FROM post_actions WHERE verb = 'tweeted' GROUP BY actor_handle"
	}
}

// claimedColumn là số liệu tự khai trên profile tương ứng với job kind
func claimedColumn(job string) string {
	switch job {
	case model.JobFriends:
		return "friends_count"
	case model.JobFollowers:
		return "followers_count"
	default:
		return "statuses_count"
	}
}

// globalCandidateSQL là truy vấn ứng viên toàn cục cho một job kind.
// Supernode bị loại theo cả hai chiều: hub friend lẫn hub follower đều
// vượt ngoài khả năng crawl hết, bất kể job đang chọn là gì.
func globalCandidateSQL(job string, latest bool) string {
	order := "ASC"
	if latest {
		order = "DESC"
	}
	return fmt.Sprintf(`
		SELECT u.handle
		FROM users u
		LEFT JOIN (%s) k ON k.handle = u.handle
		WHERE u.%s > 0
		  AND u.friends_count <= ?
		  AND u.followers_count <= ?
		  AND COALESCE(k.known, 0) * ? < u.%s
		  AND u.protected = FALSE
		  AND u.defunct = FALSE
		ORDER BY u.%s %s
		LIMIT ?`,
		knownCountSQL(job), claimedColumn(job), claimedColumn(job),
		model.StampColumn(job), order)
}

// underScrapedFilterSQL lọc một nhóm handle về các ứng viên còn crawl được,
// cùng điều kiện supernode và under-scraped với truy vấn toàn cục,
// và cũng chỉ lấy một trang ứng viên mỗi lần
func underScrapedFilterSQL(job string) string {
	return fmt.Sprintf(`
		SELECT u.handle
		FROM users u
		LEFT JOIN (%s) k ON k.handle = u.handle
		WHERE u.handle IN ?
		  AND u.%s > 0
		  AND u.friends_count <= ?
		  AND u.followers_count <= ?
		  AND COALESCE(k.known, 0) * ? < u.%s
		  AND u.protected = FALSE
		  AND u.defunct = FALSE
		ORDER BY u.%s ASC
		LIMIT ?`,
		knownCountSQL(job), claimedColumn(job), claimedColumn(job),
		model.StampColumn(job))
}

// NextGlobal chọn một user bất kỳ trong graph còn under-scraped cho job kind.
// latest=true ưu tiên user được crawl gần đây nhất thay vì lâu nhất.
// Trả về found=false khi không còn ứng viên nào.
func (s *Selector) NextGlobal(ctx context.Context, job string, latest bool) (string, bool, error) {
	gormDb, err := s.Mysql.Db()
	if err != nil {
		return "", false, fmt.Errorf("failed to get database connection: %w", err)
	}

	var handles []string
	result := gormDb.WithContext(ctx).Raw(globalCandidateSQL(job, latest),
		s.Config.Crawler.MaxFriends, s.Config.Crawler.MaxFollowers,
		s.Config.Crawler.UnderScrapedFactor, s.Config.Crawler.CandidateLimit,
	).Scan(&handles)
	if result.Error != nil {
		return "", false, fmt.Errorf("failed to query %s candidates: %w", job, result.Error)
	}
	if len(handles) == 0 {
		return "", false, nil
	}

	// Chọn ngẫu nhiên trong nhóm đầu để các worker ít giẫm chân nhau
	handle := handles[rand.Intn(len(handles))]
	s.Logger.Info(ctx, "Selected %s for %s scrape from %d candidates", handle, job, len(handles))
	return handle, true, nil
}

// NextNearest chọn một user under-scraped trong vòng hai bước quanh seed.
// Ứng viên được buffer trong FIFO, chỉ traverse lại graph khi FIFO rỗng.
// Lỗi truy vấn được coi như hết ứng viên để session có thể kết thúc.
func (s *Selector) NextNearest(ctx context.Context, seed, job, rootTask string) (string, bool, error) {
	key := fifoKey(job, seed, rootTask)

	handle, err := s.Cache.ListPop(ctx, key)
	if err == nil {
		return handle, true, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return "", false, fmt.Errorf("failed to pop candidate fifo %s: %w", key, err)
	}

	candidates, err := s.nearestCandidates(ctx, seed, job)
	if err != nil {
		s.Logger.Warn(ctx, "Candidate query for seed %s failed, treating as exhausted: %v", seed, err)
		return "", false, nil
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	if len(candidates) > 1 {
		if err := s.Cache.ListPush(ctx, key, candidates[1:]...); err != nil {
			return "", false, fmt.Errorf("failed to push candidate fifo %s: %w", key, err)
		}
	}
	s.Logger.Info(ctx, "Buffered %d nearest candidates for seed %s (%s)", len(candidates), seed, job)
	return candidates[0], true, nil
}

// nearestCandidates lấy các user under-scraped trong vòng hai bước
// quanh seed, coi cạnh follows là vô hướng
func (s *Selector) nearestCandidates(ctx context.Context, seed, job string) ([]string, error) {
	firstHop, err := s.neighbours(ctx, []string{seed})
	if err != nil {
		return nil, err
	}
	if len(firstHop) == 0 {
		return nil, nil
	}

	secondHop, err := s.neighbours(ctx, firstHop)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{seed: true}
	reachable := make([]string, 0, len(firstHop)+len(secondHop))
	for _, handle := range append(firstHop, secondHop...) {
		if !seen[handle] {
			seen[handle] = true
			reachable = append(reachable, handle)
		}
	}

	return s.filterUnderScraped(ctx, reachable, job)
}

// neighbours trả về các handle kề với bất kỳ handle nào trong sources
func (s *Selector) neighbours(ctx context.Context, sources []string) ([]string, error) {
	gormDb, err := s.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var handles []string
	result := gormDb.WithContext(ctx).Raw(`
		SELECT DISTINCT CASE
			WHEN source_handle IN ? THEN target_handle
			ELSE source_handle
		END AS handle
		FROM follows
		WHERE source_handle IN ? OR target_handle IN ?`,
		sources, sources, sources,
	).Scan(&handles)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query neighbours: %w", result.Error)
	}
	return handles, nil
}

// filterUnderScraped giữ lại một trang handle còn under-scraped cho job kind,
// xếp user chưa crawl bao giờ lên trước
func (s *Selector) filterUnderScraped(ctx context.Context, handles []string, job string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	gormDb, err := s.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	var candidates []string
	result := gormDb.WithContext(ctx).Raw(underScrapedFilterSQL(job),
		handles, s.Config.Crawler.MaxFriends, s.Config.Crawler.MaxFollowers,
		s.Config.Crawler.UnderScrapedFactor, s.Config.Crawler.CandidateLimit,
	).Scan(&candidates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to filter candidates: %w", result.Error)
	}
	return candidates, nil
}
