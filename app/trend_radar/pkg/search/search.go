package search

import (
	"context"
	"time"
)

// Searcher 文章来源的通用接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用新闻检索请求
type Request struct {
	Query      string
	Language   string    // ISO 639-1，例如 "en"
	MaxResults int
	Since      time.Time // 零值表示不限制
	SortBy     string    // "publishedAt" 或 "relevance"，由各来源自行映射
}

// Response 通用检索响应
type Response struct {
	Results []Result
}

// Result 单篇文章
type Result struct {
	Title       string
	URL         string
	Description string
	Content     string
	SourceName  string
	PublishedAt string // 来源返回的原始时间字符串
}
