package model

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/internal/twitterapi"
)

func TestParseTwitterTime(t *testing.T) {
	assert.Equal(t, "2008-08-27T13:08:45Z", ParseTwitterTime("Wed Aug 27 13:08:45 +0000 2008"))
	assert.Empty(t, ParseTwitterTime(""))
	assert.Empty(t, ParseTwitterTime("not a timestamp"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 10))
	assert.Equal(t, "abcde", TruncateString("abcdefgh", 5))
	assert.Empty(t, TruncateString("", 5))
}

func TestTruncateStringKeepsRunesIntact(t *testing.T) {
	// Không được cắt đôi một rune UTF-8 ở giới hạn
	assert.Equal(t, "héllo", TruncateString("héllo world", 5))
	assert.Equal(t, "日本", TruncateString("日本語のツイート", 2))

	truncated := TruncateString(strings.Repeat("é", 300), 250)
	assert.True(t, utf8.ValidString(truncated))
	assert.Equal(t, 250, utf8.RuneCountInString(truncated))
}

func TestRenderUserTruncatesLongFields(t *testing.T) {
	now := time.Now()
	user := twitterapi.UserResponse{
		ID:         42,
		ScreenName: strings.Repeat("x", 300),
		Name:       strings.Repeat("y", 300),
		URL:        strings.Repeat("z", 600),
		CreatedAt:  "Wed Aug 27 13:08:45 +0000 2008",
		Verified:   true,
	}

	row := RenderUser(user, now)

	assert.Len(t, row.Handle, 250)
	assert.Len(t, row.Name, 250)
	assert.Len(t, row.Url, 500)
	assert.Equal(t, int64(42), row.TwitterID)
	assert.Equal(t, "2008-08-27T13:08:45Z", row.IsoTime)
	assert.True(t, row.Verified)
	require.NotNil(t, row.LastScraped)
	assert.Equal(t, now, *row.LastScraped)
}

func TestBareUserHasNoScrapeStamp(t *testing.T) {
	row := BareUser("alice", time.Now())
	assert.Equal(t, "alice", row.Handle)
	assert.Nil(t, row.LastScraped)
	assert.Nil(t, row.FriendsLastScraped)
}

func TestRenderPostCopiesCoordinates(t *testing.T) {
	now := time.Now()
	reply := int64(7)
	tweet := twitterapi.TweetResponse{
		ID:                1,
		IDStr:             "1",
		Text:              "here",
		CreatedAt:         "Wed Aug 27 13:08:45 +0000 2008",
		InReplyToStatusID: &reply,
		Coordinates: &twitterapi.Coordinates{
			Type:        "Point",
			Coordinates: []float64{-0.1276, 51.5074},
		},
	}

	row := RenderPost(tweet, "tweet", now)

	assert.Equal(t, "tweet", row.Kind)
	require.NotNil(t, row.Longitude)
	require.NotNil(t, row.Latitude)
	assert.Equal(t, -0.1276, *row.Longitude)
	assert.Equal(t, 51.5074, *row.Latitude)
	require.NotNil(t, row.InReplyToStatusID)
	assert.Equal(t, int64(7), *row.InReplyToStatusID)
}

func TestRenderPostWithoutCoordinates(t *testing.T) {
	row := RenderPost(twitterapi.TweetResponse{ID: 1, IDStr: "1"}, "tweet", time.Now())
	assert.Nil(t, row.Longitude)
	assert.Nil(t, row.Latitude)
}

func TestStampColumnCoversEveryJob(t *testing.T) {
	assert.Equal(t, "friends_last_scraped", StampColumn(JobFriends))
	assert.Equal(t, "followers_last_scraped", StampColumn(JobFollowers))
	assert.Equal(t, "tweets_last_scraped", StampColumn(JobTweets))
}
