package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/pkg/cache"
	"github.com/augeas/BirdSpider/pkg/log"
)

func newTestSelector(t *testing.T) (*Selector, *cache.Memory) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	logger, err := log.NewNullLogger()
	require.NoError(t, err)

	store := cache.NewMemory()
	picker, err := NewSelector(config, logger, nil, store)
	require.NoError(t, err)
	return picker, store
}

func TestNextNearestDrainsFifoBeforeTraversing(t *testing.T) {
	ctx := context.Background()
	picker, store := newTestSelector(t)

	key := fifoKey("friends", "alice", "task1")
	require.NoError(t, store.ListPush(ctx, key, "bob", "carol"))

	handle, found, err := picker.NextNearest(ctx, "alice", "friends", "task1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", handle)

	handle, found, err = picker.NextNearest(ctx, "alice", "friends", "task1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "carol", handle)

	// FIFO đã cạn: hai ứng viên không được trả về lần nữa
	remaining, err := store.ListPop(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Empty(t, remaining)
}

func TestNextNearestFifoIsScopedPerSession(t *testing.T) {
	ctx := context.Background()
	picker, store := newTestSelector(t)

	require.NoError(t, store.ListPush(ctx, fifoKey("tweets", "alice", "task1"), "bob"))

	// Một session khác trên cùng seed không được dùng chung FIFO
	otherKey := fifoKey("tweets", "alice", "task2")
	_, err := store.ListPop(ctx, otherKey)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	handle, found, err := picker.NextNearest(ctx, "alice", "tweets", "task1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", handle)
}

func TestFifoKeySeparatesJobs(t *testing.T) {
	assert.Equal(t, "nextnearest_friends_alice_task1", fifoKey("friends", "alice", "task1"))
	assert.NotEqual(t, fifoKey("friends", "alice", "t"), fifoKey("followers", "alice", "t"))
}

func TestStampAndClaimedColumnsAgree(t *testing.T) {
	assert.Equal(t, "friends_count", claimedColumn("friends"))
	assert.Equal(t, "followers_count", claimedColumn("followers"))
	assert.Equal(t, "statuses_count", claimedColumn("tweets"))
}

func TestGlobalCandidateSQLAppliesBothSupernodeCeilings(t *testing.T) {
	for _, job := range []string{"friends", "followers", "tweets"} {
		query := globalCandidateSQL(job, false)
		assert.Contains(t, query, "u.friends_count <= ?", "job %s", job)
		assert.Contains(t, query, "u.followers_count <= ?", "job %s", job)
		assert.Contains(t, query, "LIMIT ?", "job %s", job)
	}

	assert.Contains(t, globalCandidateSQL("friends", false), "friends_last_scraped ASC")
	assert.Contains(t, globalCandidateSQL("friends", true), "friends_last_scraped DESC")
}

func TestUnderScrapedFilterSQLMatchesGlobalPredicates(t *testing.T) {
	// Đường nearest phải lọc giống đường toàn cục: trần supernode hai chiều,
	// hệ số under-scraped và giới hạn một trang ứng viên
	for _, job := range []string{"friends", "followers", "tweets"} {
		query := underScrapedFilterSQL(job)
		assert.Contains(t, query, "u.handle IN ?", "job %s", job)
		assert.Contains(t, query, "u.friends_count <= ?", "job %s", job)
		assert.Contains(t, query, "u.followers_count <= ?", "job %s", job)
		assert.Contains(t, query, "COALESCE(k.known, 0) * ?", "job %s", job)
		assert.Contains(t, query, "LIMIT ?", "job %s", job)
	}
}
