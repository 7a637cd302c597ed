package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// defaultKeyword 文章没有关联主题时使用
const defaultKeyword = "general"

// Extractor L1 单篇文章结构化分析
type Extractor struct {
	c *Client
}

func NewExtractor(c *Client) *Extractor {
	return &Extractor{c: c}
}

// Extract 分析一篇文章，输出不合法时返回 ErrValidation
func (e *Extractor) Extract(ctx context.Context, in model.ExtractInput) (*model.Extraction, error) {
	keyword := in.TopicKeyword
	if keyword == "" {
		keyword = defaultKeyword
	}
	msgs, err := extractTemplate.Format(ctx, map[string]any{
		"language":            in.Language,
		"topic_keyword":       keyword,
		"title":               in.Title,
		"snippet":             in.Snippet,
		"format_instructions": extractFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}

	var raw rawExtraction
	if err := e.c.generateJSON(ctx, msgs, &raw); err != nil {
		return nil, err
	}
	return raw.validate()
}

type rawExtraction struct {
	Summary        string   `json:"ai_summary"`
	SentimentLabel string   `json:"sentiment_label"`
	SentimentScore *float64 `json:"sentiment_score"`
	Entities       []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entities"`
}

func (r rawExtraction) validate() (*model.Extraction, error) {
	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty ai_summary", ErrValidation)
	}
	label, ok := model.ParseSentimentLabel(r.SentimentLabel)
	if !ok {
		return nil, fmt.Errorf("%w: invalid sentiment_label %q", ErrValidation, r.SentimentLabel)
	}
	if r.SentimentScore == nil {
		return nil, fmt.Errorf("%w: missing sentiment_score", ErrValidation)
	}
	if err := checkScore(*r.SentimentScore); err != nil {
		return nil, err
	}

	out := &model.Extraction{
		Summary:        summary,
		SentimentLabel: label,
		SentimentScore: *r.SentimentScore,
		Entities:       make([]model.ExtractedEntity, 0, len(r.Entities)),
	}
	for _, ent := range r.Entities {
		typ, ok := model.ParseEntityType(ent.Type)
		if !ok {
			return nil, fmt.Errorf("%w: invalid entity type %q for %q", ErrValidation, ent.Type, ent.Name)
		}
		out.Entities = append(out.Entities, model.ExtractedEntity{Name: ent.Name, Type: typ})
	}
	return out, nil
}

func checkScore(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -1 || v > 1 {
		return fmt.Errorf("%w: sentiment score %v out of [-1, 1]", ErrValidation, v)
	}
	return nil
}
