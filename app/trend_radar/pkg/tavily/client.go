package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
)

const (
	defaultBaseURL = "https://api.tavily.com/search"
	defaultTimeout = 30 * time.Second
)

// Client Tavily API 客户端
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient 创建一个新的 Tavily 客户端
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// WithBaseURL 替换接口地址
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

var _ search.Searcher = (*Client)(nil)

// searchRequest Tavily 搜索请求参数
type searchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	Topic       string `json:"topic,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
	Days        int    `json:"days,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Search 以 news 主题检索，Tavily 不区分语言
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	body := searchRequest{
		Query:       req.Query,
		SearchDepth: "basic",
		Topic:       "news",
		MaxResults:  req.MaxResults,
	}
	if body.MaxResults == 0 {
		body.MaxResults = 5
	}
	if !req.Since.IsZero() {
		body.Days = 1
		body.StartDate = req.Since.UTC().Format("2006-01-02")
	}

	resp, err := c.doSearch(ctx, body)
	if err != nil {
		return nil, err
	}

	results := make([]search.Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, search.Result{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Content,
			Content:     r.RawContent,
			SourceName:  hostOf(r.URL),
			PublishedAt: r.PublishedDate,
		})
	}
	return &search.Response{Results: results}, nil
}

func (c *Client) doSearch(ctx context.Context, req searchRequest) (*searchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Add("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Add("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily api error (status %d): %s", res.StatusCode, string(body))
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}
	return &out, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
