package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
)

// Analyzer L1 分析阶段：并发调用模型，再顺序落库
type Analyzer struct {
	store      storage.AnalysisStore
	extractor  Extractor
	language   string
	workers    int
	batchLimit int
	now        func() time.Time
}

// NewAnalyzer workers 为并发调用模型的协程数，batchLimit <= 0 表示处理全部待分析文章
func NewAnalyzer(store storage.AnalysisStore, extractor Extractor, language string, workers, batchLimit int) *Analyzer {
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{
		store:      store,
		extractor:  extractor,
		language:   language,
		workers:    workers,
		batchLimit: batchLimit,
		now:        time.Now,
	}
}

// Run 返回完整落库的文章数，失败的文章保持未分析状态，下次运行会被重新选中
func (a *Analyzer) Run(ctx context.Context) (Stats, error) {
	var st Stats

	pending, err := a.store.UnanalyzedArticles(ctx, a.batchLimit)
	if err != nil {
		return st, fmt.Errorf("select unanalyzed articles: %w", err)
	}
	if len(pending) == 0 {
		logger.Log.Info("没有待分析的文章")
		return st, nil
	}
	logger.Log.Infof("开始使用 %d 个并发分析 %d 篇文章", a.workers, len(pending))

	results := a.extractAll(ctx, pending)

	for i, art := range pending {
		if results[i] == nil {
			st.Failed++
			continue
		}
		if err := a.persist(ctx, art.ID, results[i]); err != nil {
			logger.Log.WithField("article_id", art.ID).Errorf("保存分析结果失败: %v", err)
			st.Failed++
			continue
		}
		st.Succeeded++
	}
	return st, nil
}

// extractAll 结果按下标写入，各协程互不共享状态
func (a *Analyzer) extractAll(ctx context.Context, pending []model.PendingArticle) []*model.Extraction {
	results := make([]*model.Extraction, len(pending))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, art := range pending {
		i, art := i, art
		g.Go(func() error {
			results[i] = a.extractOne(ctx, art)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Analyzer) extractOne(ctx context.Context, art model.PendingArticle) (out *model.Extraction) {
	log := logger.Log.WithFields(logrus.Fields{"article_id": art.ID, "topic": art.Keyword})
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("分析文章时发生 panic: %v", r)
			out = nil
		}
	}()

	res, err := a.extractor.Extract(ctx, model.ExtractInput{
		Language:     a.language,
		TopicKeyword: art.Keyword,
		Title:        art.Title,
		Snippet:      art.Snippet,
	})
	if err != nil {
		log.Warnf("AI 分析失败，跳过: %v", err)
		return nil
	}
	return res
}

// persist 写入 L1 记录、实体与关联；实体或关联写入失败时删除刚写入的 L1 记录
func (a *Analyzer) persist(ctx context.Context, articleID int64, res *model.Extraction) error {
	if _, err := a.store.InsertAnalysis(ctx, model.Analysis{
		ArticleID:      articleID,
		Summary:        res.Summary,
		SentimentScore: res.SentimentScore,
		SentimentLabel: res.SentimentLabel,
		AnalyzedAt:     a.now().UTC(),
	}); err != nil {
		return err
	}

	if len(res.Entities) == 0 {
		return nil
	}
	if err := a.linkEntities(ctx, articleID, res.Entities); err != nil {
		if derr := a.store.DeleteAnalysis(ctx, articleID); derr != nil {
			logger.Log.WithField("article_id", articleID).Errorf("回滚 L1 记录失败，数据可能不一致: %v", derr)
		}
		return err
	}
	return nil
}

func (a *Analyzer) linkEntities(ctx context.Context, articleID int64, extracted []model.ExtractedEntity) error {
	entities := make([]model.Entity, 0, len(extracted))
	for _, e := range extracted {
		entities = append(entities, model.Entity{Name: e.Name, Type: e.Type})
	}
	saved, err := a.store.UpsertEntities(ctx, entities)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(saved))
	for _, e := range saved {
		ids = append(ids, e.ID)
	}
	return a.store.LinkEntities(ctx, articleID, ids)
}
