// Graph gom các primitive ghi graph thành các thao tác mức crawl.
// Mọi thao tác đều merge-by-key: chạy lại với cùng input cho cùng kết quả,
// vì task substrate giao at-least-once và có thể replay bất kỳ bước nào.

package model

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/decompose"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/db"
	"github.com/augeas/BirdSpider/pkg/log"
)

// Các job kind được schedule độc lập với nhau
const (
	JobFriends   = "friends"
	JobFollowers = "followers"
	JobTweets    = "tweets"
)

// StampColumn trả về cột last-scraped của một job kind
func StampColumn(job string) string {
	switch job {
	case JobFriends:
		return "friends_last_scraped"
	case JobFollowers:
		return "followers_last_scraped"
	default:
		return "tweets_last_scraped"
	}
}

type Graph struct {
	Config       *cfg.Config
	Logger       log.Logger
	Mysql        *db.Mysql
	UserMd       *User
	FollowMd     *Follow
	PostMd       *Post
	RefMd        *Ref
	ClusteringMd *Clustering
}

func NewGraph(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Graph, error) {
	userMd, err := NewUser(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create user model: %w", err)
	}
	followMd, err := NewFollow(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create follow model: %w", err)
	}
	postMd, err := NewPost(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create post model: %w", err)
	}
	refMd, err := NewRef(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create ref model: %w", err)
	}
	clusteringMd, err := NewClustering(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create clustering model: %w", err)
	}

	return &Graph{
		Config:       config,
		Logger:       logger,
		Mysql:        mysql,
		UserMd:       userMd,
		FollowMd:     followMd,
		PostMd:       postMd,
		RefMd:        refMd,
		ClusteringMd: clusteringMd,
	}, nil
}

// Migrate tạo các bảng node và cạnh của graph
func (g *Graph) Migrate() error {
	return g.Mysql.Migrate(
		&User{}, &Follow{}, &Post{}, &PostAction{}, &PostLink{},
		&Ref{}, &PostRef{}, &Mention{},
		&Clustering{}, &Cluster{}, &ClusterMember{}, &ClusterSeed{},
	)
}

// UpsertUsers merge một batch user đầy đủ thuộc tính từ API
func (g *Graph) UpsertUsers(ctx context.Context, users []twitterapi.UserResponse) error {
	return g.UserMd.UpsertBatch(ctx, RenderUsers(users, time.Now()))
}

// UpsertConnections ghi các cạnh follows của source theo một hướng.
// Source phải tồn tại sẵn (match-only), target được upsert đầy đủ.
// friends=true: source follows target; friends=false: target follows source.
func (g *Graph) UpsertConnections(ctx context.Context, source string, users []twitterapi.UserResponse, friends bool) error {
	exists, err := g.UserMd.Exists(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to check user %s: %w", source, err)
	}
	if !exists {
		g.Logger.Warn(ctx, "Skipping connections for unknown user %s", source)
		return nil
	}

	now := time.Now()
	if err := g.UserMd.UpsertBatch(ctx, RenderUsers(users, now)); err != nil {
		return err
	}

	edges := make([]Follow, 0, len(users))
	for _, user := range users {
		target := TruncateString(user.ScreenName, 250)
		if friends {
			edges = append(edges, Follow{SourceHandle: source, TargetHandle: target})
		} else {
			edges = append(edges, Follow{SourceHandle: target, TargetHandle: source})
		}
	}
	if err := g.FollowMd.UpsertEdges(ctx, edges); err != nil {
		return err
	}

	job := JobFriends
	if !friends {
		job = JobFollowers
	}
	return g.UserMd.StampCrawled(ctx, source, StampColumn(job), now)
}

// MarkDefunct đặt cờ defunct cho một user đã tồn tại
func (g *Graph) MarkDefunct(ctx context.Context, handle string) error {
	return g.UserMd.MarkDefunct(ctx, handle)
}

// PushTweetDump lưu kết quả decompose của timeline một user vào graph
// và đóng dấu tweets_last_scraped, vì dump là một trang crawl của timeline.
func (g *Graph) PushTweetDump(ctx context.Context, user string, dump *decompose.Dump) error {
	saved, err := g.savePosts(ctx, user, dump)
	if err != nil || !saved {
		return err
	}
	return g.UserMd.StampCrawled(ctx, user, StampColumn(JobTweets), time.Now())
}

// SavePosts lưu một dump mà không đóng dấu đã crawl timeline.
// Dùng cho post rời rạc đến từ stream, không đại diện cho cả timeline.
func (g *Graph) SavePosts(ctx context.Context, user string, dump *decompose.Dump) error {
	_, err := g.savePosts(ctx, user, dump)
	return err
}

// savePosts merge post, entity và các cạnh của một dump, user phải tồn tại sẵn.
// Trả về saved=false khi user không có trong graph.
func (g *Graph) savePosts(ctx context.Context, user string, dump *decompose.Dump) (bool, error) {
	exists, err := g.UserMd.Exists(ctx, user)
	if err != nil {
		return false, fmt.Errorf("failed to check user %s: %w", user, err)
	}
	if !exists {
		g.Logger.Warn(ctx, "Skipping tweet dump for unknown user %s", user)
		return false, nil
	}

	now := time.Now()

	// Tác giả của các post gốc bị retweet/quote
	originalAuthors := make([]twitterapi.UserResponse, 0, len(dump.Users))
	for _, author := range dump.Users {
		originalAuthors = append(originalAuthors, author)
	}
	if err := g.UserMd.UpsertBatch(ctx, RenderUsers(originalAuthors, now)); err != nil {
		return false, err
	}

	for _, variant := range decompose.Variants {
		if err := g.pushVariant(ctx, user, variant, dump, now); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (g *Graph) pushVariant(ctx context.Context, user string, variant decompose.Variant, dump *decompose.Dump, now time.Time) error {
	pairs := dump.Posts(variant)
	kind := string(variant)

	var posts []Post
	var actions []PostAction
	var links []PostLink

	for _, pair := range pairs {
		// Post gốc luôn là node kind tweet do tác giả gốc tweeted
		posts = append(posts, RenderPost(pair.Original, string(decompose.VariantTweet), now))

		if pair.Wrapper == nil {
			actions = append(actions, PostAction{
				ActorHandle: user,
				PostKind:    string(decompose.VariantTweet),
				PostIDStr:   pair.Original.IDStr,
				Verb:        VerbTweeted,
			})
			continue
		}

		// Wrapper là node retweet/quotetweet của user đang crawl
		posts = append(posts, RenderPost(*pair.Wrapper, kind, now))

		verb := VerbRetweeted
		relation := RelationRetweetOf
		if variant == decompose.VariantQuoteTweet {
			verb = VerbQuoted
			relation = RelationQuoteOf
		}
		actions = append(actions, PostAction{
			ActorHandle: user,
			PostKind:    kind,
			PostIDStr:   pair.Wrapper.IDStr,
			Verb:        verb,
		})
		links = append(links, PostLink{
			SrcKind:  kind,
			SrcIDStr: pair.Wrapper.IDStr,
			DstKind:  string(decompose.VariantTweet),
			DstIDStr: pair.Original.IDStr,
			Relation: relation,
		})

		// Tác giả gốc tweeted post gốc
		if author, ok := dump.Users[pair.Original.IDStr]; ok {
			actions = append(actions, PostAction{
				ActorHandle: TruncateString(author.ScreenName, 250),
				PostKind:    string(decompose.VariantTweet),
				PostIDStr:   pair.Original.IDStr,
				Verb:        VerbTweeted,
			})
		}
	}

	// Reply target có thể chưa được crawl, tạo bare post rồi link
	var bareReplies []Post
	for _, reply := range dump.Replies[variant] {
		replyID := strconv.FormatInt(reply.InReplyToID, 10)
		bareReplies = append(bareReplies, BarePost(string(decompose.VariantTweet), replyID, now))
		links = append(links, PostLink{
			SrcKind:  string(decompose.VariantTweet),
			SrcIDStr: reply.PostID,
			DstKind:  string(decompose.VariantTweet),
			DstIDStr: replyID,
			Relation: RelationInReplyTo,
		})
	}

	if err := g.PostMd.UpsertBatch(ctx, posts); err != nil {
		return err
	}
	if err := g.PostMd.EnsureBatch(ctx, bareReplies); err != nil {
		return err
	}
	if err := g.PostMd.LinkActions(ctx, actions); err != nil {
		return err
	}
	if err := g.PostMd.LinkPosts(ctx, links); err != nil {
		return err
	}

	return g.pushEntities(ctx, variant, dump.Entities[variant], now)
}

// pushEntities ghi hashtag, URL, media và mention của một variant.
// Entity của retweet/quote được gắn vào post gốc (kind tweet).
func (g *Graph) pushEntities(ctx context.Context, variant decompose.Variant, store *decompose.EntityStore, now time.Time) error {
	if store == nil {
		return nil
	}

	// Entity luôn được trích từ post gốc
	postKind := string(decompose.VariantTweet)

	var refs []Ref
	var links []PostRef
	for _, tag := range store.Hashtags {
		refs = append(refs, Ref{Kind: RefHashtag, Value: TruncateString(tag.Text, 500), CreatedAt: now})
		links = append(links, PostRef{PostKind: postKind, PostIDStr: tag.PostID, RefKind: RefHashtag, RefValue: TruncateString(tag.Text, 500)})
	}
	for _, u := range store.URLs {
		refs = append(refs, Ref{Kind: RefURL, Value: TruncateString(u.URL, 500), Extra: TruncateString(u.ExpandedURL, 1000), CreatedAt: now})
		links = append(links, PostRef{PostKind: postKind, PostIDStr: u.PostID, RefKind: RefURL, RefValue: TruncateString(u.URL, 500)})
	}
	for _, media := range store.Media {
		refs = append(refs, Ref{Kind: RefMedia, Value: TruncateString(media.MediaURL, 500), Extra: media.Type, CreatedAt: now})
		links = append(links, PostRef{PostKind: postKind, PostIDStr: media.PostID, RefKind: RefMedia, RefValue: TruncateString(media.MediaURL, 500)})
	}

	if err := g.RefMd.UpsertBatch(ctx, refs); err != nil {
		return err
	}
	if err := g.RefMd.LinkBatch(ctx, links); err != nil {
		return err
	}

	var bareUsers []User
	var mentions []Mention
	for _, mention := range store.Mentions {
		bareUsers = append(bareUsers, BareUser(mention.ScreenName, now))
		mentions = append(mentions, Mention{
			PostKind:  postKind,
			PostIDStr: mention.PostID,
			Handle:    TruncateString(mention.ScreenName, 250),
		})
	}
	if err := g.UserMd.EnsureBatch(ctx, bareUsers); err != nil {
		return err
	}
	return g.RefMd.LinkMentions(ctx, mentions)
}
