package model

import (
	"strings"
	"time"
)

// Topic 追踪的关键词及其分类，keyword 是唯一键
type Topic struct {
	ID       int64
	Category string
	Keyword  string
	IsActive bool
}

// Article L0 原始文章，url 是去重键
type Article struct {
	ID              int64
	TopicID         int64 // 0 表示无关联主题
	URL             string
	Title           string
	Snippet         string
	SourceName      string
	PublicationDate *time.Time
	CrawlDate       time.Time
}

// PendingArticle 尚未进行 L1 分析的文章
type PendingArticle struct {
	ID      int64
	Title   string
	Snippet string
	Keyword string // 文章没有主题时为空
}

// SentimentLabel 情感标签
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNegative SentimentLabel = "Negative"
	SentimentNeutral  SentimentLabel = "Neutral"
)

// ParseSentimentLabel 忽略大小写解析情感标签
func ParseSentimentLabel(s string) (SentimentLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return SentimentPositive, true
	case "negative":
		return SentimentNegative, true
	case "neutral":
		return SentimentNeutral, true
	}
	return "", false
}

// EntityType 实体类型
type EntityType string

const (
	EntityCompany    EntityType = "COMPANY"
	EntityProduct    EntityType = "PRODUCT"
	EntityPerson     EntityType = "PERSON"
	EntityTechnology EntityType = "TECHNOLOGY"
	EntityOther      EntityType = "OTHER"
)

// ParseEntityType 忽略大小写解析实体类型
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case EntityCompany, EntityProduct, EntityPerson, EntityTechnology, EntityOther:
		return t, true
	}
	return "", false
}

// Analysis L1 情感分析记录，每篇文章至多一条
type Analysis struct {
	ID             int64
	ArticleID      int64
	Summary        string
	SentimentScore float64
	SentimentLabel SentimentLabel
	AnalyzedAt     time.Time
}

// Entity 规范化后的实体，名称唯一
type Entity struct {
	ID   int64
	Name string
	Type EntityType
}

// ExtractedEntity AI 抽取出的实体
type ExtractedEntity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// Extraction 单篇文章的 AI 结构化分析结果
type Extraction struct {
	Summary        string            `json:"ai_summary"`
	SentimentLabel SentimentLabel    `json:"sentiment_label"`
	SentimentScore float64           `json:"sentiment_score"`
	Entities       []ExtractedEntity `json:"entities"`
}

// ExtractInput 构造 L1 提示词所需的输入
type ExtractInput struct {
	Language     string
	TopicKeyword string
	Title        string
	Snippet      string
}

// ArticleDigest 报告阶段使用的单篇文章摘要
type ArticleDigest struct {
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	SentimentScore float64 `json:"sentiment_score"`
}

// CategorizedDigest 带分类的文章摘要
type CategorizedDigest struct {
	Category string
	ArticleDigest
}

// TrendingTopic 热门实体：提及次数与平均情感
type TrendingTopic struct {
	Topic            string  `json:"topic"`
	Count            int     `json:"count"`
	AverageSentiment float64 `json:"average_sentiment"`
}

// TrendingEntity 带分类的热门实体
type TrendingEntity struct {
	Category string
	TrendingTopic
}

// SummaryInput 构造 L2 提示词所需的输入
type SummaryInput struct {
	Language string
	Category string
	Articles []ArticleDigest
	Entities []TrendingTopic
}

// ReportDraft AI 返回的 L2 报告
type ReportDraft struct {
	ReportSummary         string          `json:"report_summary"`
	OverallSentimentScore float64         `json:"overall_sentiment_score"`
	TrendingTopics        []TrendingTopic `json:"trending_topics"`
}

// Report L2 每日报告，(Date, Category) 是复合键
type Report struct {
	Date                  time.Time       `json:"report_date"`
	Category              string          `json:"category"`
	Summary               string          `json:"report_summary"`
	OverallSentimentScore float64         `json:"overall_sentiment_score"`
	TrendingTopics        []TrendingTopic `json:"trending_topics"`
}

// SearchHit L1 摘要检索结果
type SearchHit struct {
	Summary         string         `json:"ai_summary"`
	SentimentLabel  SentimentLabel `json:"sentiment_label"`
	SentimentScore  float64        `json:"sentiment_score"`
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	PublicationDate *time.Time     `json:"publication_date,omitempty"`
}

// Day 返回 t 所在日期（UTC 零点）
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
