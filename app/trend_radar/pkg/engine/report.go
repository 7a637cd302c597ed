package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
)

const reportWindow = 24 * time.Hour

// Reporter L2 报告阶段
type Reporter struct {
	store      storage.ReportStore
	summarizer Summarizer
	language   string
	topN       int
	now        func() time.Time
}

func NewReporter(store storage.ReportStore, summarizer Summarizer, language string, topN int) *Reporter {
	return &Reporter{
		store:      store,
		summarizer: summarizer,
		language:   language,
		topN:       topN,
		now:        time.Now,
	}
}

// Run 为每个有数据的分类生成并写入当天报告，返回成功写入的分类数
func (r *Reporter) Run(ctx context.Context) (Stats, error) {
	var st Stats
	now := r.now()

	digests, err := r.store.AnalysesSince(ctx, now.Add(-reportWindow))
	if err != nil {
		return st, fmt.Errorf("load l1 data: %w", err)
	}
	if len(digests) == 0 {
		logger.Log.Info("过去 24 小时没有 L1 数据，跳过报告")
		return st, nil
	}

	// 热门实体读取失败时各分类仍生成报告，trending_topics 为空
	trending, err := r.store.TopTrendingEntities(ctx, r.topN)
	if err != nil {
		logger.Log.Errorf("读取热门实体失败，按无热门实体继续: %v", err)
		trending = nil
	}

	byCategory := make(map[string][]model.ArticleDigest)
	for _, d := range digests {
		byCategory[d.Category] = append(byCategory[d.Category], d.ArticleDigest)
	}
	entities := make(map[string][]model.TrendingTopic)
	for _, e := range trending {
		entities[e.Category] = append(entities[e.Category], e.TrendingTopic)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	day := model.Day(now.UTC())
	for _, category := range categories {
		log := logger.Log.WithField("category", category)
		topics := entities[category]
		if topics == nil {
			topics = []model.TrendingTopic{}
		}

		draft, err := r.summarizer.Summarize(ctx, model.SummaryInput{
			Language: r.language,
			Category: category,
			Articles: byCategory[category],
			Entities: topics,
		})
		if err != nil {
			log.Warnf("生成分类报告失败，跳过: %v", err)
			st.Failed++
			continue
		}

		// 热门话题以统计结果为准，不采用模型返回的列表
		report := model.Report{
			Date:                  day,
			Category:              category,
			Summary:               draft.ReportSummary,
			OverallSentimentScore: draft.OverallSentimentScore,
			TrendingTopics:        topics,
		}
		if err := r.store.UpsertReport(ctx, report); err != nil {
			log.Errorf("保存分类报告失败: %v", err)
			st.Failed++
			continue
		}
		log.Infof("分类报告已保存，文章 %d 篇", len(byCategory[category]))
		st.Succeeded++
	}
	return st, nil
}
