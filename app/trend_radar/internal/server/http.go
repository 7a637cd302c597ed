package server

import (
	"bytes"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/trend_radar/app/trend_radar/internal/usecase"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/render"
)

// NewHTTPServer 展示服务：HTML 日报、JSON 接口、健康检查与指标
func NewHTTPServer(c config.ServerConfig, uc *usecase.ReportUseCase, rec *metrics.Recorder, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Timeout))
	}

	srv := http.NewServer(opts...)
	h := &handler{uc: uc, rec: rec, log: log.NewHelper(logger)}

	r := srv.Route("/")
	r.GET("/api/reports/latest", h.observe("latest", h.latest))
	r.GET("/api/reports/{date}", h.observe("by_date", h.byDate))
	r.GET("/api/search", h.observe("search", h.search))
	r.GET("/healthz", func(ctx http.Context) error {
		return ctx.String(nethttp.StatusOK, "ok")
	})

	srv.HandleFunc("/", h.index)
	if rec != nil {
		srv.Handle("/metrics", rec.Handler())
	}

	return srv
}

type handler struct {
	uc  *usecase.ReportUseCase
	rec *metrics.Recorder
	log *log.Helper
}

func (h *handler) observe(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(ctx http.Context) error {
		err := next(ctx)
		if h.rec != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			h.rec.ObserveRequest(route, status)
		}
		return err
	}
}

func (h *handler) latest(ctx http.Context) error {
	reports, err := h.uc.Latest(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, reports)
}

func (h *handler) byDate(ctx http.Context) error {
	reports, err := h.uc.ByDate(ctx, ctx.Vars().Get("date"))
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, reports)
}

func (h *handler) search(ctx http.Context) error {
	hits, err := h.uc.Search(ctx, ctx.Query().Get("q"))
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, hits)
}

// index 渲染最新一天的日报，没有报告时渲染空页面
func (h *handler) index(w nethttp.ResponseWriter, r *nethttp.Request) {
	reports, err := h.uc.Latest(r.Context())
	if err != nil && !errors.IsNotFound(err) {
		nethttp.Error(w, "failed to load reports", nethttp.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, render.NewPage(reports, time.Now())); err != nil {
		h.log.Errorf("渲染日报失败: %v", err)
		nethttp.Error(w, "failed to render reports", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
