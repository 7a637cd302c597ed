package server

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/trend_radar/app/trend_radar/internal/usecase"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/metrics"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
)

var day = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mem *storage.Memory) *http.Server {
	t.Helper()
	uc := usecase.NewReportUseCase(mem, log.DefaultLogger)
	return NewHTTPServer(config.ServerConfig{}, uc, metrics.New(), log.DefaultLogger)
}

func seeded(t *testing.T) *storage.Memory {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemory()

	_, err := mem.UpsertTopics(ctx, []model.Topic{{Category: "AI", Keyword: "NVIDIA"}})
	require.NoError(t, err)
	topics, err := mem.ActiveTopics(ctx)
	require.NoError(t, err)
	_, err = mem.InsertArticles(ctx, []model.Article{{TopicID: topics[0].ID, URL: "https://news.example/gpu", Title: "GPU shortage"}})
	require.NoError(t, err)
	_, err = mem.InsertAnalysis(ctx, model.Analysis{
		ArticleID:      mem.Articles()[0].ID,
		Summary:        "GPU 供应紧张",
		SentimentScore: -0.4,
		SentimentLabel: model.SentimentNegative,
	})
	require.NoError(t, err)

	require.NoError(t, mem.UpsertReport(ctx, model.Report{
		Date:                  day,
		Category:              "AI",
		Summary:               "算力需求持续增长",
		OverallSentimentScore: 0.3,
		TrendingTopics:        []model.TrendingTopic{{Topic: "NVIDIA", Count: 3, AverageSentiment: 0.5}},
	}))
	return mem
}

func get(srv *http.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, target, nil))
	return rec
}

func TestLatestReports(t *testing.T) {
	srv := newTestServer(t, seeded(t))

	rec := get(srv, "/api/reports/latest")
	require.Equal(t, nethttp.StatusOK, rec.Code)

	var reports []model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "AI", reports[0].Category)
	assert.True(t, reports[0].Date.Equal(day))
	assert.Equal(t, "NVIDIA", reports[0].TrendingTopics[0].Topic)
}

func TestReportsByDate(t *testing.T) {
	srv := newTestServer(t, seeded(t))

	assert.Equal(t, nethttp.StatusOK, get(srv, "/api/reports/2026-10-14").Code)

	rec := get(srv, "/api/reports/2026-10-01")
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "REPORT_NOT_FOUND")

	rec = get(srv, "/api/reports/yesterday")
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_DATE")
}

func TestLatestReportsEmptyStore(t *testing.T) {
	srv := newTestServer(t, storage.NewMemory())
	assert.Equal(t, nethttp.StatusNotFound, get(srv, "/api/reports/latest").Code)

	rec := get(srv, "/")
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "暂无报告")
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, seeded(t))

	rec := get(srv, "/api/search?q="+url.QueryEscape("供应"))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var hits []model.SearchHit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "https://news.example/gpu", hits[0].URL)

	rec = get(srv, "/api/search?q=x")
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	rec = get(srv, "/api/search?q=nothing")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestIndexHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, seeded(t))

	rec := get(srv, "/")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "算力需求持续增长")

	rec = get(srv, "/healthz")
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	get(srv, "/api/reports/latest")
	rec = get(srv, "/metrics")
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trend_radar_http_requests_total{route="latest",status="success"} 1`)
}
