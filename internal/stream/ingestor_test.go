package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/decompose"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/log"
)

type fakeSink struct {
	users [][]twitterapi.UserResponse
	dumps map[string]*decompose.Dump
}

func (s *fakeSink) UpsertUsers(ctx context.Context, users []twitterapi.UserResponse) error {
	s.users = append(s.users, users)
	return nil
}

func (s *fakeSink) SavePosts(ctx context.Context, user string, dump *decompose.Dump) error {
	if s.dumps == nil {
		s.dumps = make(map[string]*decompose.Dump)
	}
	s.dumps[user] = dump
	return nil
}

type fakeIndexer struct {
	posts [][]twitterapi.TweetResponse
}

func (i *fakeIndexer) IndexPosts(ctx context.Context, posts []twitterapi.TweetResponse) {
	i.posts = append(i.posts, posts)
}

func newTestIngestor(t *testing.T) (*Ingestor, *fakeSink, *fakeIndexer) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	logger, err := log.NewNullLogger()
	require.NoError(t, err)

	sink := &fakeSink{}
	indexer := &fakeIndexer{}
	return NewIngestor(config, logger, sink, indexer), sink, indexer
}

func TestFlushSavesPerAuthorDumpsAndIndexesOriginals(t *testing.T) {
	ingestor, sink, indexer := newTestIngestor(t)
	ctx := context.Background()

	original := twitterapi.TweetResponse{
		ID: 1, IDStr: "1", Text: "original",
		User: &twitterapi.UserResponse{ID: 10, ScreenName: "alice"},
	}
	retweet := twitterapi.TweetResponse{
		ID: 2, IDStr: "2", Text: "RT @alice: original",
		User:            &twitterapi.UserResponse{ID: 11, ScreenName: "bob"},
		RetweetedStatus: &original,
	}
	plain := twitterapi.TweetResponse{
		ID: 3, IDStr: "3", Text: "hello",
		User: &twitterapi.UserResponse{ID: 12, ScreenName: "carol"},
	}

	ingestor.flush(ctx, []twitterapi.TweetResponse{retweet, plain})

	// Tác giả trong batch được merge trước khi dump của họ được lưu
	require.Len(t, sink.users, 1)
	handles := map[string]bool{}
	for _, user := range sink.users[0] {
		handles[user.ScreenName] = true
	}
	assert.True(t, handles["bob"])
	assert.True(t, handles["carol"])

	// Mỗi tác giả có một dump riêng, post và liên kết không bị bỏ rơi
	require.Contains(t, sink.dumps, "bob")
	require.Contains(t, sink.dumps, "carol")
	require.Len(t, sink.dumps["bob"].Retweets, 1)
	require.Len(t, sink.dumps["carol"].Tweets, 1)

	// Tác giả gốc đi theo dump của người retweet
	aliceUser, ok := sink.dumps["bob"].Users["1"]
	require.True(t, ok)
	assert.Equal(t, "alice", aliceUser.ScreenName)

	// Index nhận post gốc, không nhận wrapper
	require.Len(t, indexer.posts, 1)
	ids := map[string]bool{}
	for _, post := range indexer.posts[0] {
		ids[post.IDStr] = true
	}
	assert.True(t, ids["1"])
	assert.True(t, ids["3"])
	assert.False(t, ids["2"])
}

func TestFlushEmptyBatchIsNoop(t *testing.T) {
	ingestor, sink, indexer := newTestIngestor(t)

	ingestor.flush(context.Background(), nil)

	assert.Empty(t, sink.users)
	assert.Empty(t, indexer.posts)
	assert.Empty(t, sink.dumps)
}
