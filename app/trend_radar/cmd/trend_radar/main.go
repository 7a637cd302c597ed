package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2"
	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/trend_radar/app/trend_radar/internal/server"
	"github.com/iWorld-y/trend_radar/app/trend_radar/internal/usecase"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/engine"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name = "trend_radar"
	// Version 是服务的版本号
	Version string

	configPath string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Log.Error(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "trend_radar",
	Short:         "趋势雷达：抓取新闻、AI 分析并生成每日趋势报告",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		c, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("无法加载配置文件: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("配置错误: %w", err)
		}

		// 2. 初始化日志
		if err := logger.InitLogger(c.Log.Level, c.Log.File); err != nil {
			return fmt.Errorf("无法初始化日志: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "config path, eg: -c config.yaml")

	rootCmd.AddCommand(
		stageCmd("run", "运行完整流水线：同步主题、爬取、分析、生成报告", (*app).fullRun),
		stageCmd("sync", "同步追踪主题", func(a *app, _ context.Context) []engine.Stage {
			return []engine.Stage{a.syncStage()}
		}),
		stageCmd("crawl", "爬取活跃主题的最新文章", func(a *app, _ context.Context) []engine.Stage {
			return []engine.Stage{a.crawlStage()}
		}),
		stageCmd("analyze", "对未分析的文章进行 L1 分析", func(a *app, ctx context.Context) []engine.Stage {
			return []engine.Stage{a.analysisStage(ctx)}
		}),
		stageCmd("report", "生成各分类的 L2 每日报告", func(a *app, ctx context.Context) []engine.Stage {
			stages := []engine.Stage{a.reportStage(ctx)}
			if a.cfg.Report.HTMLPath != "" {
				stages = append(stages, a.renderStage())
			}
			return stages
		}),
		serveCmd,
	)
}

func stageCmd(use, short string, build func(*app, context.Context) []engine.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger.Log.Infof("启动趋势雷达: %s", use)

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.run(ctx, build(a, ctx)...)
		},
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动展示服务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		kl := logger.NewKratosLogger(logger.Log)
		uc := usecase.NewReportUseCase(a.store, kl)
		hs := server.NewHTTPServer(cfg.Server, uc, a.rec, kl)

		id, _ := os.Hostname()
		srv := kratos.New(
			kratos.ID(id),
			kratos.Name(Name),
			kratos.Version(Version),
			kratos.Context(cmd.Context()),
			kratos.Logger(klog.With(kl, "service.name", Name)),
			kratos.Server(hs),
		)
		return srv.Run()
	},
}
