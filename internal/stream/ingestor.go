// Gói stream nhận tweet thô từ một Kafka topic riêng (ví dụ từ một
// bridge streaming API) và ghi vào graph theo batch. Batch được chốt
// khi đủ kích thước hoặc hết thời gian chờ, tuỳ cái nào đến trước.

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/decompose"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/kafka"
	"github.com/augeas/BirdSpider/pkg/log"
)

// streamKey là message key của tweet thô trên stream topic
const streamKey = "tweet"

// GraphSink là phần persistence mà ingestor cần.
// SavePosts thay vì PushTweetDump: post stream không phải một trang
// timeline nên không được đóng dấu đã crawl.
type GraphSink interface {
	UpsertUsers(ctx context.Context, users []twitterapi.UserResponse) error
	SavePosts(ctx context.Context, user string, dump *decompose.Dump) error
}

// PostIndexer đẩy post sang search index, best-effort
type PostIndexer interface {
	IndexPosts(ctx context.Context, posts []twitterapi.TweetResponse)
}

type Ingestor struct {
	Config   *cfg.Config
	Logger   log.Logger
	Graph    GraphSink
	Search   PostIndexer
	consumer *kafka.Consumer
	messages chan twitterapi.TweetResponse
}

func NewIngestor(config *cfg.Config, logger log.Logger, graph GraphSink, search PostIndexer) *Ingestor {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.StreamTopic, config.Kafka.ConsumerGroup+"-stream")

	return &Ingestor{
		Config:   config,
		Logger:   logger,
		Graph:    graph,
		Search:   search,
		consumer: consumer,
		messages: make(chan twitterapi.TweetResponse, config.Crawler.StreamBatchSize*2),
	}
}

// Start chạy consumer và batch processor cho đến khi ctx bị huỷ
func (in *Ingestor) Start(ctx context.Context) error {
	in.consumer.RegisterHandler(streamKey, func(data []byte) error {
		var tweet twitterapi.TweetResponse
		if err := json.Unmarshal(data, &tweet); err != nil {
			return fmt.Errorf("failed to unmarshal stream tweet: %w", err)
		}
		select {
		case in.messages <- tweet:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	go in.processBatches(ctx)

	in.Logger.Info(ctx, "Stream ingestor started on topic %s", in.Config.Kafka.StreamTopic)
	return in.consumer.Start(ctx)
}

// processBatches gom tweet thành batch theo kích thước hoặc timeout
func (in *Ingestor) processBatches(ctx context.Context) {
	batchSize := in.Config.Crawler.StreamBatchSize
	batchTimeout := time.Duration(in.Config.Crawler.StreamBatchWaitSec) * time.Second

	var batch []twitterapi.TweetResponse
	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Chốt nốt phần còn lại trước khi thoát
			in.flush(ctx, batch)
			return

		case tweet := <-in.messages:
			batch = append(batch, tweet)
			if len(batch) >= batchSize {
				in.flush(ctx, batch)
				batch = nil
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				in.flush(ctx, batch)
				batch = nil
			}
			timer.Reset(batchTimeout)
		}
	}
}

// flush ghi một batch tweet stream vào graph và search index.
// Batch được gom theo tác giả rồi decompose và lưu như dump của từng người,
// nên post, entity và các cạnh đều vào graph chứ không chỉ tác giả.
func (in *Ingestor) flush(ctx context.Context, batch []twitterapi.TweetResponse) {
	if len(batch) == 0 {
		return
	}

	byAuthor := make(map[string][]twitterapi.TweetResponse)
	authors := make(map[string]twitterapi.UserResponse)
	for _, tweet := range batch {
		if tweet.User == nil {
			continue
		}
		byAuthor[tweet.User.ScreenName] = append(byAuthor[tweet.User.ScreenName], tweet)
		authors[tweet.User.ScreenName] = *tweet.User
	}
	if len(byAuthor) == 0 {
		return
	}

	// Tác giả phải tồn tại trước khi dump của họ được lưu (match-only)
	users := make([]twitterapi.UserResponse, 0, len(authors))
	for _, author := range authors {
		users = append(users, author)
	}
	if err := in.Graph.UpsertUsers(ctx, users); err != nil {
		in.Logger.Error(ctx, "Failed to save stream batch of %d tweets: %v", len(batch), err)
		return
	}

	var indexed []twitterapi.TweetResponse
	for author, tweets := range byAuthor {
		dump := decompose.Decompose(tweets)
		if err := in.Graph.SavePosts(ctx, author, dump); err != nil {
			in.Logger.Error(ctx, "Failed to save stream posts of %s: %v", author, err)
			continue
		}
		for _, variant := range decompose.Variants {
			for _, pair := range dump.Posts(variant) {
				indexed = append(indexed, pair.Original)
			}
		}
	}

	if in.Search != nil && len(indexed) > 0 {
		in.Search.IndexPosts(ctx, indexed)
	}

	in.Logger.Info(ctx, "Ingested stream batch of %d tweets from %d authors", len(batch), len(users))
}

func (in *Ingestor) Close() error {
	return in.consumer.Close()
}
