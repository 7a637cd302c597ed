package googlenews

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
)

const defaultBaseURL = "https://news.google.com"

// Client Google News RSS 检索，不需要 API key
type Client struct {
	baseURL string
	region  string
	parser  *gofeed.Parser
}

// NewClient 创建客户端，region 为国家代码，例如 "US"
func NewClient(baseURL, region string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if region == "" {
		region = "US"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		region:  strings.ToUpper(region),
		parser:  gofeed.NewParser(),
	}
}

var _ search.Searcher = (*Client)(nil)

func (c *Client) feedURL(req *search.Request) string {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	query := req.Query
	if !req.Since.IsZero() {
		query += " when:1d"
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("hl", lang+"-"+c.region)
	q.Set("gl", c.region)
	q.Set("ceid", c.region+":"+lang)
	return c.baseURL + "/rss/search?" + q.Encode()
}

// Search 解析 RSS，按 Since 在本地过滤
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	feed, err := c.parser.ParseURLWithContext(c.feedURL(req), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse google news rss: %w", err)
	}

	results := make([]search.Result, 0, len(feed.Items))
	for _, item := range feed.Items {
		if req.MaxResults > 0 && len(results) == req.MaxResults {
			break
		}
		if !req.Since.IsZero() && item.PublishedParsed != nil && item.PublishedParsed.Before(req.Since) {
			continue
		}

		title, source := splitSource(item.Title)
		results = append(results, search.Result{
			Title:       title,
			URL:         item.Link,
			Description: item.Description,
			SourceName:  source,
			PublishedAt: published(item),
		})
	}
	return &search.Response{Results: results}, nil
}

// splitSource Google News 的标题格式为 "标题 - 来源"
func splitSource(title string) (string, string) {
	i := strings.LastIndex(title, " - ")
	if i < 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}

func published(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}
