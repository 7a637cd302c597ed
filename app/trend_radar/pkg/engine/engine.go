package engine

import (
	"context"
	"errors"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// ErrStageInit 阶段依赖（文章来源、模型）初始化失败，该阶段被跳过
var ErrStageInit = errors.New("stage dependencies failed to initialize")

// Extractor L1 单篇分析
type Extractor interface {
	Extract(ctx context.Context, in model.ExtractInput) (*model.Extraction, error)
}

// Summarizer L2 分类报告
type Summarizer interface {
	Summarize(ctx context.Context, in model.SummaryInput) (*model.ReportDraft, error)
}

// Stats 单个阶段的处理计数
type Stats struct {
	Succeeded int
	Failed    int
}
