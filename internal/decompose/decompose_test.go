package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augeas/BirdSpider/internal/twitterapi"
)

func plainTweet(id int64, idStr, text string) twitterapi.TweetResponse {
	return twitterapi.TweetResponse{
		ID:    id,
		IDStr: idStr,
		Text:  text,
	}
}

func TestDecomposePartitionsEveryTweet(t *testing.T) {
	original := plainTweet(1, "1", "original")
	original.User = &twitterapi.UserResponse{ID: 10, ScreenName: "alice"}

	retweet := plainTweet(2, "2", "RT @alice: original")
	retweet.RetweetedStatus = &original

	quoted := plainTweet(3, "3", "quoted")
	quoted.User = &twitterapi.UserResponse{ID: 11, ScreenName: "bob"}
	quote := plainTweet(4, "4", "check this out")
	quote.QuotedStatus = &quoted

	plain := plainTweet(5, "5", "just a tweet")

	dump := Decompose([]twitterapi.TweetResponse{retweet, quote, plain})

	assert.Len(t, dump.Tweets, 1)
	assert.Len(t, dump.Retweets, 1)
	assert.Len(t, dump.QuoteTweets, 1)

	assert.Equal(t, "5", dump.Tweets[0].Original.IDStr)
	assert.Nil(t, dump.Tweets[0].Wrapper)

	require.NotNil(t, dump.Retweets[0].Wrapper)
	assert.Equal(t, "1", dump.Retweets[0].Original.IDStr)
	assert.Equal(t, "2", dump.Retweets[0].Wrapper.IDStr)

	require.NotNil(t, dump.QuoteTweets[0].Wrapper)
	assert.Equal(t, "3", dump.QuoteTweets[0].Original.IDStr)
	assert.Equal(t, "4", dump.QuoteTweets[0].Wrapper.IDStr)
}

func TestDecomposeBothSetFallsBackToTweet(t *testing.T) {
	inner := plainTweet(1, "1", "inner")
	odd := plainTweet(2, "2", "both flags set")
	odd.RetweetedStatus = &inner
	odd.QuotedStatus = &inner

	dump := Decompose([]twitterapi.TweetResponse{odd})

	assert.Len(t, dump.Tweets, 1)
	assert.Empty(t, dump.Retweets)
	assert.Empty(t, dump.QuoteTweets)
}

func TestDecomposeCapturesOriginalAuthors(t *testing.T) {
	original := plainTweet(1, "1", "original")
	original.User = &twitterapi.UserResponse{ID: 10, ScreenName: "alice"}
	retweet := plainTweet(2, "2", "RT")
	retweet.RetweetedStatus = &original

	dump := Decompose([]twitterapi.TweetResponse{retweet})

	require.Contains(t, dump.Users, "1")
	assert.Equal(t, "alice", dump.Users["1"].ScreenName)
}

func TestDecomposeEntitiesComeFromOriginal(t *testing.T) {
	original := plainTweet(1, "1", "original #tag")
	original.Entities = &twitterapi.TweetEntities{
		Hashtags: []twitterapi.HashtagEntity{{Text: "tag"}},
		UserMentions: []twitterapi.MentionEntity{
			{ScreenName: "carol", IDStr: "12"},
		},
		Urls: []twitterapi.URLEntity{
			{URL: "https://t.co/x", ExpandedURL: "https://example.org/x"},
		},
	}

	wrapper := plainTweet(2, "2", "RT @alice: original #tag")
	wrapper.Entities = &twitterapi.TweetEntities{
		Hashtags: []twitterapi.HashtagEntity{{Text: "wrapperonly"}},
	}
	wrapper.RetweetedStatus = &original

	dump := Decompose([]twitterapi.TweetResponse{wrapper})

	store := dump.Entities[VariantRetweet]
	require.Len(t, store.Hashtags, 1)
	assert.Equal(t, "tag", store.Hashtags[0].Text)
	assert.Equal(t, "1", store.Hashtags[0].PostID)

	require.Len(t, store.Mentions, 1)
	assert.Equal(t, "carol", store.Mentions[0].ScreenName)

	require.Len(t, store.URLs, 1)
	assert.Equal(t, "https://example.org/x", store.URLs[0].ExpandedURL)

	assert.Empty(t, dump.Entities[VariantTweet].Hashtags)
}

func TestDecomposeCollectsReplies(t *testing.T) {
	inReplyTo := int64(99)
	reply := plainTweet(1, "1", "@dave sure")
	reply.InReplyToStatusID = &inReplyTo

	plain := plainTweet(2, "2", "not a reply")

	dump := Decompose([]twitterapi.TweetResponse{reply, plain})

	require.Len(t, dump.Replies[VariantTweet], 1)
	assert.Equal(t, "1", dump.Replies[VariantTweet][0].PostID)
	assert.Equal(t, int64(99), dump.Replies[VariantTweet][0].InReplyToID)
	assert.Empty(t, dump.Replies[VariantRetweet])
}

func TestDecomposeMediaFromExtendedEntities(t *testing.T) {
	tweet := plainTweet(1, "1", "photo")
	tweet.ExtendedEntities = &twitterapi.ExtendedEntities{
		Media: []twitterapi.MediaEntity{
			{MediaURLHttps: "https://pbs.twimg.com/p.jpg", Type: "photo"},
		},
	}

	dump := Decompose([]twitterapi.TweetResponse{tweet})

	store := dump.Entities[VariantTweet]
	require.Len(t, store.Media, 1)
	assert.Equal(t, "https://pbs.twimg.com/p.jpg", store.Media[0].MediaURL)
	assert.Equal(t, "photo", store.Media[0].Type)
}
