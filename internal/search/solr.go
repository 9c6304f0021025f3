// Gói search đẩy nội dung tweet sang Solr để full-text search.
// Index là dữ liệu dẫn xuất: ghi lỗi chỉ được log, không bao giờ
// chặn hay làm hỏng một vòng crawl.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/augeas/BirdSpider/cfg"
	"github.com/augeas/BirdSpider/internal/model"
	"github.com/augeas/BirdSpider/internal/twitterapi"
	"github.com/augeas/BirdSpider/pkg/log"
)

// solrDoc là một tweet đã được làm phẳng cho search index
type solrDoc struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Handle     string `json:"handle,omitempty"`
	IsoTime    string `json:"isotime,omitempty"`
	Lang       string `json:"lang,omitempty"`
	RetweetCnt int64  `json:"retweet_count"`
}

type Solr struct {
	Config *cfg.Config
	Logger log.Logger
	client *http.Client
}

func NewSolr(config *cfg.Config, logger log.Logger) *Solr {
	return &Solr{
		Config: config,
		Logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// IndexPosts đẩy một batch tweet sang Solr, best-effort
func (s *Solr) IndexPosts(ctx context.Context, posts []twitterapi.TweetResponse) {
	if len(posts) == 0 || s.Config.Solr.Url == "" {
		return
	}

	docs := make([]solrDoc, 0, len(posts))
	for _, post := range posts {
		doc := solrDoc{
			ID:         post.IDStr,
			Text:       post.Text,
			IsoTime:    model.ParseTwitterTime(post.CreatedAt),
			Lang:       post.Lang,
			RetweetCnt: post.RetweetCount,
		}
		if post.User != nil {
			doc.Handle = post.User.ScreenName
		}
		docs = append(docs, doc)
	}

	body, err := json.Marshal(docs)
	if err != nil {
		s.Logger.Error(ctx, "Cannot marshal solr docs: %v", err)
		return
	}

	updateUrl := fmt.Sprintf("%s/%s/update/json/docs?commitWithin=1000",
		s.Config.Solr.Url, s.Config.Solr.Core)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, updateUrl, bytes.NewReader(body))
	if err != nil {
		s.Logger.Error(ctx, "Cannot build solr request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.Logger.Warn(ctx, "Solr index failed for %d docs: %v", len(docs), err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.Logger.Warn(ctx, "Solr index returned status %d for %d docs", resp.StatusCode, len(docs))
		return
	}
	s.Logger.Info(ctx, "Indexed %d posts to solr", len(docs))
}
