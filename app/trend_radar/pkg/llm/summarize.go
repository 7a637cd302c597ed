package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// Summarizer L2 分类日报生成
type Summarizer struct {
	c *Client
}

func NewSummarizer(c *Client) *Summarizer {
	return &Summarizer{c: c}
}

// Summarize 为一个分类生成报告草稿
func (s *Summarizer) Summarize(ctx context.Context, in model.SummaryInput) (*model.ReportDraft, error) {
	articles := in.Articles
	if articles == nil {
		articles = []model.ArticleDigest{}
	}
	entities := in.Entities
	if entities == nil {
		entities = []model.TrendingTopic{}
	}
	l1, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return nil, err
	}
	ents, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return nil, err
	}

	msgs, err := summarizeTemplate.Format(ctx, map[string]any{
		"language":            in.Language,
		"category":            in.Category,
		"l1_data_json":        string(l1),
		"entity_data_json":    string(ents),
		"format_instructions": summarizeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}

	var raw rawDraft
	if err := s.c.generateJSON(ctx, msgs, &raw); err != nil {
		return nil, err
	}
	return raw.validate()
}

type rawDraft struct {
	ReportSummary         string                `json:"report_summary"`
	OverallSentimentScore *float64              `json:"overall_sentiment_score"`
	TrendingTopics        []model.TrendingTopic `json:"trending_topics"`
}

func (r rawDraft) validate() (*model.ReportDraft, error) {
	summary := strings.TrimSpace(r.ReportSummary)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty report_summary", ErrValidation)
	}
	if r.OverallSentimentScore == nil {
		return nil, fmt.Errorf("%w: missing overall_sentiment_score", ErrValidation)
	}
	if err := checkScore(*r.OverallSentimentScore); err != nil {
		return nil, err
	}
	return &model.ReportDraft{
		ReportSummary:         summary,
		OverallSentimentScore: *r.OverallSentimentScore,
		TrendingTopics:        r.TrendingTopics,
	}, nil
}
