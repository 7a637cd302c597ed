package usecase

import (
	"context"
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
)

const (
	minQueryRunes = 2
	searchLimit   = 20
)

// ReportUseCase 报告查询业务逻辑
type ReportUseCase struct {
	repo storage.ReadStore
	log  *log.Helper
}

// NewReportUseCase 创建报告查询业务逻辑实例
func NewReportUseCase(repo storage.ReadStore, logger log.Logger) *ReportUseCase {
	return &ReportUseCase{repo: repo, log: log.NewHelper(logger)}
}

// Latest 最新一天的所有分类报告
func (uc *ReportUseCase) Latest(ctx context.Context) ([]model.Report, error) {
	reports, err := uc.repo.LatestReports(ctx)
	if err != nil {
		return nil, uc.wrap(err, "latest reports")
	}
	return reports, nil
}

// ByDate 按 YYYY-MM-DD 查询某天的报告
func (uc *ReportUseCase) ByDate(ctx context.Context, date string) ([]model.Report, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errors.BadRequest("INVALID_DATE", "date must be YYYY-MM-DD")
	}
	reports, err := uc.repo.ReportsByDate(ctx, day)
	if err != nil {
		return nil, uc.wrap(err, "reports on "+date)
	}
	return reports, nil
}

// Search 检索 L1 摘要，最多返回 20 条
func (uc *ReportUseCase) Search(ctx context.Context, query string) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryRunes {
		return nil, errors.BadRequest("QUERY_TOO_SHORT", "query must have at least 2 characters")
	}
	hits, err := uc.repo.SearchAnalyses(ctx, query, searchLimit)
	if err != nil {
		return nil, uc.wrap(err, "search")
	}
	if hits == nil {
		hits = []model.SearchHit{}
	}
	return hits, nil
}

func (uc *ReportUseCase) wrap(err error, what string) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound("REPORT_NOT_FOUND", "report not found")
	}
	uc.log.Errorf("查询失败 (%s): %v", what, err)
	return errors.InternalServer("STORE_ERROR", "query failed").WithCause(err)
}
