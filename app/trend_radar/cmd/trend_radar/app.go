package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/engine"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/llm"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/lock"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/render"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search/factory"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/topics"
)

// errRunFailed 有阶段失败或被跳过，进程以非零状态退出
var errRunFailed = errors.New("pipeline run failed")

const fetchTimeout = 15 * time.Second

// app 一次命令执行所需的依赖
type app struct {
	cfg    *config.Config
	store  storage.Store
	rec    *metrics.Recorder
	locker lock.Locker

	llmClient *llm.Client
	llmErr    error
	llmReady  bool
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := storage.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}
	return &app{
		cfg:    cfg,
		store:  store,
		rec:    metrics.New(),
		locker: lock.New(cfg.Lock),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.locker.Close(), a.store.Close())
}

// chatClient 分析与报告阶段共享同一个客户端和限流器
func (a *app) chatClient(ctx context.Context) (*llm.Client, error) {
	if a.llmReady {
		return a.llmClient, a.llmErr
	}
	a.llmReady = true

	cm, err := llm.NewChatModel(ctx, a.cfg.LLM)
	if err != nil {
		a.llmErr = err
		return nil, err
	}
	limiter := llm.NewLimiter(a.cfg.Concurrency)
	logger.Log.Infof("限流器已配置: Limit=%.2f req/s, Burst=%d", float64(limiter.Limit()), limiter.Burst())
	a.llmClient = llm.NewClient(cm, limiter, a.cfg.LLM.MaxRetries)
	return a.llmClient, nil
}

func (a *app) syncStage() engine.Stage {
	registry := topics.NewRegistry(a.store)
	parsed := topics.Parse(a.cfg.TrackedTopics)
	return engine.Stage{
		Name: "sync",
		Run: func(ctx context.Context) (engine.Stats, error) {
			n, err := registry.Sync(ctx, parsed)
			return engine.Stats{Succeeded: n}, err
		},
	}
}

func (a *app) crawlStage() engine.Stage {
	stage := engine.Stage{Name: "crawl"}
	searcher, err := factory.NewSearcher(a.cfg.Source)
	if err != nil {
		stage.InitErr = err
		return stage
	}
	var fetch engine.FetchFunc
	if a.cfg.Crawl.ReadabilityFallback {
		fetch = engine.ReadabilityFetch(fetchTimeout)
	}
	stage.Run = engine.NewCrawler(a.store, searcher, a.cfg.Source.Lang, fetch).Run
	return stage
}

func (a *app) analysisStage(ctx context.Context) engine.Stage {
	stage := engine.Stage{Name: "analysis"}
	client, err := a.chatClient(ctx)
	if err != nil {
		stage.InitErr = err
		return stage
	}
	stage.Run = engine.NewAnalyzer(
		a.store,
		llm.NewExtractor(client),
		a.cfg.Language,
		a.cfg.AnalysisWorkers(),
		a.cfg.Analysis.BatchLimit,
	).Run
	return stage
}

func (a *app) reportStage(ctx context.Context) engine.Stage {
	stage := engine.Stage{Name: "report"}
	client, err := a.chatClient(ctx)
	if err != nil {
		stage.InitErr = err
		return stage
	}
	stage.Run = engine.NewReporter(a.store, llm.NewSummarizer(client), a.cfg.Language, a.cfg.Report.TopEntities).Run
	return stage
}

// renderStage 把最新报告写成静态 HTML
func (a *app) renderStage() engine.Stage {
	path := a.cfg.Report.HTMLPath
	return engine.Stage{
		Name: "render",
		Run: func(ctx context.Context) (engine.Stats, error) {
			reports, err := a.store.LatestReports(ctx)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return engine.Stats{}, err
			}
			if err := render.WriteFile(path, render.NewPage(reports, time.Now())); err != nil {
				return engine.Stats{}, fmt.Errorf("写入 HTML 失败: %w", err)
			}
			logger.Log.Infof("HTML 日报已生成: %s", path)
			return engine.Stats{Succeeded: len(reports)}, nil
		},
	}
}

// fullRun 完整流水线：同步主题 → 爬取 → L1 分析 → L2 报告 → 可选的 HTML
func (a *app) fullRun(ctx context.Context) []engine.Stage {
	stages := []engine.Stage{
		a.syncStage(),
		a.crawlStage(),
		a.analysisStage(ctx),
		a.reportStage(ctx),
	}
	if a.cfg.Report.HTMLPath != "" {
		stages = append(stages, a.renderStage())
	}
	return stages
}

// run 加锁执行阶段，写出指标，任一阶段失败时返回 errRunFailed
func (a *app) run(ctx context.Context, stages ...engine.Stage) error {
	release, err := a.locker.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("无法获取运行锁: %w", err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Log.Warnf("释放运行锁失败: %v", rerr)
		}
	}()

	summary := engine.NewPipeline(a.rec, stages...).Run(ctx)

	if path := a.cfg.Metrics.Textfile; path != "" {
		if werr := a.rec.WriteTextfile(path); werr != nil {
			logger.Log.Errorf("写入指标文件失败: %v", werr)
		}
	}

	for _, r := range summary.Stages {
		entry := logger.Log.WithField("stage", r.Name)
		if r.Err != nil {
			entry.Errorf("失败: %v", r.Err)
			continue
		}
		entry.Infof("成功 %d，失败 %d，耗时 %s", r.Succeeded, r.Failed, r.Duration.Round(time.Millisecond))
	}
	if summary.Failed() {
		return errRunFailed
	}
	return nil
}
