// Gói decompose tách một batch tweet thô thành tweet, retweet và quote tweet
// kèm theo mention, hashtag, URL, media và reply của chúng.
// Toàn bộ là pure function, không gọi network hay database.

package decompose

import (
	"github.com/augeas/BirdSpider/internal/twitterapi"
)

// Variant là loại node của một post trong graph
type Variant string

const (
	VariantTweet      Variant = "tweet"
	VariantRetweet    Variant = "retweet"
	VariantQuoteTweet Variant = "quotetweet"
)

// Variants liệt kê cả ba loại theo thứ tự cố định
var Variants = []Variant{VariantTweet, VariantRetweet, VariantQuoteTweet}

// PostPair ghép post gốc với post bọc ngoài nó.
// Với tweet thường, Wrapper là nil.
type PostPair struct {
	Original twitterapi.TweetResponse
	Wrapper  *twitterapi.TweetResponse
}

// MentionRef ghép một mention với id của post chứa nó
type MentionRef struct {
	PostID     string
	ScreenName string
	UserIDStr  string
}

type TagRef struct {
	PostID string
	Text   string
}

type URLRef struct {
	PostID      string
	URL         string
	ExpandedURL string
}

type MediaRef struct {
	PostID   string
	MediaURL string
	Type     string
}

// EntityStore gom các entity tìm thấy trên post của một variant
type EntityStore struct {
	Mentions []MentionRef
	Hashtags []TagRef
	URLs     []URLRef
	Media    []MediaRef
}

// ReplyPair ghép id của post với id của post mà nó reply
type ReplyPair struct {
	PostID      string
	InReplyToID int64
}

// Dump là kết quả đầy đủ của một lần decompose
type Dump struct {
	Tweets      []PostPair
	Retweets    []PostPair
	QuoteTweets []PostPair
	Entities    map[Variant]*EntityStore
	Replies     map[Variant][]ReplyPair
	// Tác giả của các post gốc bị retweet/quote, key là id_str của post gốc
	Users map[string]twitterapi.UserResponse
}

// Decompose phân loại từng tweet thô vào đúng một trong ba variant.
// Retweet và quote lấy entity từ post gốc được nhúng, không phải post bọc ngoài.
func Decompose(raw []twitterapi.TweetResponse) *Dump {
	dump := &Dump{
		Entities: map[Variant]*EntityStore{
			VariantTweet:      {},
			VariantRetweet:    {},
			VariantQuoteTweet: {},
		},
		Replies: map[Variant][]ReplyPair{},
		Users:   map[string]twitterapi.UserResponse{},
	}

	for i := range raw {
		tweet := raw[i]
		retweeted := tweet.RetweetedStatus != nil
		quoted := tweet.QuotedStatus != nil

		switch {
		case retweeted && !quoted:
			original := *tweet.RetweetedStatus
			wrapper := tweet
			dump.Retweets = append(dump.Retweets, PostPair{Original: original, Wrapper: &wrapper})
			pushEntities(original, dump.Entities[VariantRetweet])
			if original.User != nil {
				dump.Users[original.IDStr] = *original.User
			}

		case quoted && !retweeted:
			original := *tweet.QuotedStatus
			wrapper := tweet
			dump.QuoteTweets = append(dump.QuoteTweets, PostPair{Original: original, Wrapper: &wrapper})
			pushEntities(original, dump.Entities[VariantQuoteTweet])
			if original.User != nil {
				dump.Users[original.IDStr] = *original.User
			}

		default:
			dump.Tweets = append(dump.Tweets, PostPair{Original: tweet})
			pushEntities(tweet, dump.Entities[VariantTweet])
		}
	}

	dump.Replies[VariantTweet] = replies(dump.Tweets)
	dump.Replies[VariantRetweet] = replies(dump.Retweets)
	dump.Replies[VariantQuoteTweet] = replies(dump.QuoteTweets)

	return dump
}

// Posts trả về các post pair của một variant
func (d *Dump) Posts(variant Variant) []PostPair {
	switch variant {
	case VariantRetweet:
		return d.Retweets
	case VariantQuoteTweet:
		return d.QuoteTweets
	default:
		return d.Tweets
	}
}

func pushEntities(tweet twitterapi.TweetResponse, store *EntityStore) {
	postID := tweet.IDStr

	if tweet.Entities != nil {
		for _, mention := range tweet.Entities.UserMentions {
			store.Mentions = append(store.Mentions, MentionRef{
				PostID:     postID,
				ScreenName: mention.ScreenName,
				UserIDStr:  mention.IDStr,
			})
		}
		for _, tag := range tweet.Entities.Hashtags {
			store.Hashtags = append(store.Hashtags, TagRef{PostID: postID, Text: tag.Text})
		}
		for _, u := range tweet.Entities.Urls {
			store.URLs = append(store.URLs, URLRef{PostID: postID, URL: u.URL, ExpandedURL: u.ExpandedURL})
		}
	}

	if tweet.ExtendedEntities != nil {
		for _, media := range tweet.ExtendedEntities.Media {
			store.Media = append(store.Media, MediaRef{
				PostID:   postID,
				MediaURL: media.MediaURLHttps,
				Type:     media.Type,
			})
		}
	}
}

// replies lấy liên kết in-reply-to từ post gốc của mỗi pair
func replies(pairs []PostPair) []ReplyPair {
	var result []ReplyPair
	for _, pair := range pairs {
		if pair.Original.InReplyToStatusID != nil {
			result = append(result, ReplyPair{
				PostID:      pair.Original.IDStr,
				InReplyToID: *pair.Original.InReplyToStatusID,
			})
		}
	}
	return result
}
