package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
)

const (
	// articlesPerTopic 每个主题单次抓取的上限
	articlesPerTopic = 30
	crawlWindow      = 24 * time.Hour
	maxSnippetRunes  = 1000
)

// CrawlStore 抓取阶段需要的存储操作
type CrawlStore interface {
	ActiveTopics(ctx context.Context) ([]model.Topic, error)
	InsertArticles(ctx context.Context, articles []model.Article) (int, error)
}

// FetchFunc 抓取原文正文
type FetchFunc func(ctx context.Context, url string) (string, error)

// ReadabilityFetch 使用 readability 提取网页正文
func ReadabilityFetch(timeout time.Duration) FetchFunc {
	return func(_ context.Context, url string) (string, error) {
		article, err := readability.FromURL(url, timeout)
		if err != nil {
			return "", err
		}
		return article.TextContent, nil
	}
}

// Crawler L0 抓取阶段
type Crawler struct {
	store    CrawlStore
	searcher search.Searcher
	lang     string
	fetch    FetchFunc
	now      func() time.Time
}

// NewCrawler fetch 为 nil 时不抓取原文
func NewCrawler(store CrawlStore, searcher search.Searcher, lang string, fetch FetchFunc) *Crawler {
	return &Crawler{
		store:    store,
		searcher: searcher,
		lang:     lang,
		fetch:    fetch,
		now:      time.Now,
	}
}

// Run 抓取所有激活主题，Succeeded 为新写入的文章数，Failed 为失败的主题数
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	var st Stats

	topics, err := c.store.ActiveTopics(ctx)
	if err != nil {
		return st, fmt.Errorf("load active topics: %w", err)
	}
	if len(topics) == 0 {
		logger.Log.Info("没有激活的主题，跳过抓取")
		return st, nil
	}

	since := c.now().Add(-crawlWindow)
	for _, topic := range topics {
		n, err := c.crawlTopic(ctx, topic, since)
		if err != nil {
			logger.Log.WithField("topic", topic.Keyword).Errorf("抓取主题失败: %v", err)
			st.Failed++
			continue
		}
		logger.Log.WithFields(logrus.Fields{"topic": topic.Keyword, "new": n}).Info("主题抓取完成")
		st.Succeeded += n
	}
	return st, nil
}

func (c *Crawler) crawlTopic(ctx context.Context, topic model.Topic, since time.Time) (int, error) {
	resp, err := c.searcher.Search(ctx, &search.Request{
		Query:      topic.Keyword,
		Language:   c.lang,
		MaxResults: articlesPerTopic,
		Since:      since,
		SortBy:     "publishedAt",
	})
	if err != nil {
		return 0, err
	}

	crawled := c.now().UTC()
	articles := make([]model.Article, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		articles = append(articles, model.Article{
			TopicID:         topic.ID,
			URL:             strings.TrimSpace(r.URL),
			Title:           strings.TrimSpace(r.Title),
			Snippet:         c.snippet(ctx, r),
			SourceName:      r.SourceName,
			PublicationDate: parseDate(r.PublishedAt),
			CrawlDate:       crawled,
		})
	}
	if len(articles) == 0 {
		return 0, nil
	}
	return c.store.InsertArticles(ctx, articles)
}

// snippet 依次使用描述、正文、原文抓取结果
func (c *Crawler) snippet(ctx context.Context, r search.Result) string {
	if s := cleanText(r.Description); s != "" {
		return s
	}
	if s := cleanText(r.Content); s != "" {
		return s
	}
	if c.fetch == nil {
		return ""
	}
	text, err := c.fetch(ctx, r.URL)
	if err != nil {
		logger.Log.WithField("url", r.URL).Debugf("抓取原文失败: %v", err)
		return ""
	}
	return truncateRunes(strings.Join(strings.Fields(text), " "), maxSnippetRunes)
}

// cleanText 去掉 HTML 标签并压缩空白
func cleanText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func parseDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
