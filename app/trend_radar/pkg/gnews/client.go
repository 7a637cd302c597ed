package gnews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
)

const (
	defaultBaseURL = "https://gnews.io/api/v4"
	defaultTimeout = 30 * time.Second
)

// Client GNews v4 API 客户端
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient 创建 GNews 客户端，baseURL 为空时使用官方地址
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

var _ search.Searcher = (*Client)(nil)

type searchResponse struct {
	TotalArticles int       `json:"totalArticles"`
	Articles      []article `json:"articles"`
}

type article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

// Search 调用 /search 接口
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("q", req.Query)
	if req.Language != "" {
		q.Set("lang", req.Language)
	}
	if req.MaxResults > 0 {
		q.Set("max", strconv.Itoa(req.MaxResults))
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "publishedAt"
	}
	q.Set("sortby", sortBy)
	if !req.Since.IsZero() {
		q.Set("from", req.Since.UTC().Format(time.RFC3339))
	}
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

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
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && len(e.Errors) > 0 {
			return nil, fmt.Errorf("gnews api error (status %d): %s", res.StatusCode, e.Errors[0])
		}
		return nil, fmt.Errorf("gnews api error (status %d): %s", res.StatusCode, string(body))
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	results := make([]search.Result, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		results = append(results, search.Result{
			Title:       a.Title,
			URL:         a.URL,
			Description: a.Description,
			Content:     a.Content,
			SourceName:  a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return &search.Response{Results: results}, nil
}
