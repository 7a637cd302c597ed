package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
)

var errStore = errors.New("store unavailable")

type fakeSearcher struct {
	mu       sync.Mutex
	results  map[string][]search.Result
	fail     map[string]error
	requests []search.Request
}

func (f *fakeSearcher) Search(_ context.Context, req *search.Request) (*search.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
	if err := f.fail[req.Query]; err != nil {
		return nil, err
	}
	return &search.Response{Results: f.results[req.Query]}, nil
}

// fakeExtractor 按标题返回结果，未配置的标题返回错误
type fakeExtractor struct {
	byTitle map[string]*model.Extraction

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	block    chan struct{}

	mu     sync.Mutex
	inputs []model.ExtractInput
}

func (f *fakeExtractor) Extract(_ context.Context, in model.ExtractInput) (*model.Extraction, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	res, ok := f.byTitle[in.Title]
	if !ok {
		return nil, errors.New("ai output failed validation")
	}
	cp := *res
	return &cp, nil
}

type fakeSummarizer struct {
	mu     sync.Mutex
	fail   map[string]bool
	inputs []model.SummaryInput
	prefix string
}

func (f *fakeSummarizer) Summarize(_ context.Context, in model.SummaryInput) (*model.ReportDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.fail[in.Category] {
		return nil, errors.New("summarizer timeout")
	}
	return &model.ReportDraft{
		ReportSummary:         f.prefix + in.Category + " summary",
		OverallSentimentScore: 0.5,
		TrendingTopics:        []model.TrendingTopic{{Topic: "Hallucinated", Count: 42, AverageSentiment: 1}},
	}, nil
}

// faultyStore 在指定操作上注入失败
type faultyStore struct {
	*storage.Memory
	failInsertAnalysis bool
	failUpsertEntities bool
	failLink           bool
	failDelete         bool
	failTrending       bool
	deletes            atomic.Int32
}

func (s *faultyStore) InsertAnalysis(ctx context.Context, a model.Analysis) (int64, error) {
	if s.failInsertAnalysis {
		return 0, errStore
	}
	return s.Memory.InsertAnalysis(ctx, a)
}

func (s *faultyStore) UpsertEntities(ctx context.Context, e []model.Entity) ([]model.Entity, error) {
	if s.failUpsertEntities {
		return nil, errStore
	}
	return s.Memory.UpsertEntities(ctx, e)
}

func (s *faultyStore) LinkEntities(ctx context.Context, articleID int64, ids []int64) error {
	if s.failLink {
		return errStore
	}
	return s.Memory.LinkEntities(ctx, articleID, ids)
}

func (s *faultyStore) DeleteAnalysis(ctx context.Context, articleID int64) error {
	s.deletes.Add(1)
	if s.failDelete {
		return errStore
	}
	return s.Memory.DeleteAnalysis(ctx, articleID)
}

func seed(t *testing.T, mem *storage.Memory, topics ...model.Topic) {
	t.Helper()
	_, err := mem.UpsertTopics(context.Background(), topics)
	require.NoError(t, err)
}

// seedArticles 为 keyword 对应的主题写入文章
func seedArticles(t *testing.T, mem *storage.Memory, keyword string, titles ...string) {
	t.Helper()
	ctx := context.Background()
	topics, err := mem.ActiveTopics(ctx)
	require.NoError(t, err)

	var topicID int64
	for _, tp := range topics {
		if tp.Keyword == keyword {
			topicID = tp.ID
		}
	}
	articles := make([]model.Article, 0, len(titles))
	for _, title := range titles {
		articles = append(articles, model.Article{TopicID: topicID, URL: "https://news.example/" + title, Title: title})
	}
	_, err = mem.InsertArticles(ctx, articles)
	require.NoError(t, err)
}

func extraction(score float64, entities ...model.ExtractedEntity) *model.Extraction {
	label := model.SentimentNeutral
	switch {
	case score > 0:
		label = model.SentimentPositive
	case score < 0:
		label = model.SentimentNegative
	}
	return &model.Extraction{
		Summary:        "summary",
		SentimentLabel: label,
		SentimentScore: score,
		Entities:       entities,
	}
}

func (s *faultyStore) TopTrendingEntities(ctx context.Context, n int) ([]model.TrendingEntity, error) {
	if s.failTrending {
		return nil, errStore
	}
	return s.Memory.TopTrendingEntities(ctx, n)
}
