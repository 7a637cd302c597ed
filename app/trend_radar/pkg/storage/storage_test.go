package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), config.DBConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
}

func seedTopics(t *testing.T, s Store, topics ...model.Topic) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertTopics(ctx, topics)
	require.NoError(t, err)

	active, err := s.ActiveTopics(ctx)
	require.NoError(t, err)
	ids := make(map[string]int64, len(active))
	for _, tp := range active {
		ids[tp.Keyword] = tp.ID
	}
	return ids
}

func TestUpsertTopics(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := seedTopics(t, s,
			model.Topic{Category: "AI", Keyword: "GPU"},
			model.Topic{Category: "Cloud", Keyword: "AWS"},
		)
		require.Len(t, ids, 2)

		n, err := s.UpsertTopics(ctx, []model.Topic{{Category: "Chips", Keyword: "GPU"}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		active, err := s.ActiveTopics(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		for _, tp := range active {
			assert.True(t, tp.IsActive)
			if tp.Keyword == "GPU" {
				assert.Equal(t, "Chips", tp.Category)
				assert.Equal(t, ids["GPU"], tp.ID)
			}
		}
	})
}

func TestInsertArticlesDedupByURL(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := seedTopics(t, s, model.Topic{Category: "AI", Keyword: "GPU"})

		n, err := s.InsertArticles(ctx, []model.Article{
			{TopicID: ids["GPU"], URL: "https://a.example/1", Title: "one"},
			{TopicID: ids["GPU"], URL: "https://a.example/2", Title: "two"},
			{TopicID: ids["GPU"], URL: "https://a.example/1", Title: "dup"},
			{TopicID: ids["GPU"], URL: "", Title: "no url"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.InsertArticles(ctx, []model.Article{
			{TopicID: ids["GPU"], URL: "https://a.example/2", Title: "again"},
			{URL: "https://a.example/3", Title: "three\x00"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.InsertArticles(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		pending, err := s.UnanalyzedArticles(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, "one", pending[0].Title)
		assert.Equal(t, "GPU", pending[0].Keyword)
		assert.Equal(t, "three", pending[2].Title)
		assert.Empty(t, pending[2].Keyword)
	})
}

func TestUnanalyzedAntiJoin(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := seedTopics(t, s, model.Topic{Category: "AI", Keyword: "GPU"})
		_, err := s.InsertArticles(ctx, []model.Article{
			{TopicID: ids["GPU"], URL: "u1", Title: "one"},
			{TopicID: ids["GPU"], URL: "u2", Title: "two"},
			{TopicID: ids["GPU"], URL: "u3", Title: "three"},
		})
		require.NoError(t, err)

		pending, err := s.UnanalyzedArticles(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 3)

		_, err = s.InsertAnalysis(ctx, model.Analysis{ArticleID: pending[0].ID, Summary: "s", SentimentLabel: model.SentimentNeutral})
		require.NoError(t, err)

		// 每篇文章至多一条 L1 记录
		_, err = s.InsertAnalysis(ctx, model.Analysis{ArticleID: pending[0].ID, Summary: "again", SentimentLabel: model.SentimentNeutral})
		assert.Error(t, err)

		left, err := s.UnanalyzedArticles(ctx, 0)
		require.NoError(t, err)
		require.Len(t, left, 2)
		assert.Equal(t, pending[1].ID, left[0].ID)

		limited, err := s.UnanalyzedArticles(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		require.NoError(t, s.DeleteAnalysis(ctx, pending[0].ID))
		left, err = s.UnanalyzedArticles(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, left, 3)
	})
}

func TestUpsertEntitiesTypePolicy(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		got, err := s.UpsertEntities(ctx, []model.Entity{
			{Name: "OpenAI", Type: model.EntityCompany},
			{Name: " OpenAI ", Type: model.EntityProduct},
			{Name: "  ", Type: model.EntityPerson},
			{Name: "Foo", Type: model.EntityOther},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, model.EntityCompany, got[0].Type)
		openAI, foo := got[0].ID, got[1].ID

		got, err = s.UpsertEntities(ctx, []model.Entity{
			{Name: "OpenAI", Type: model.EntityProduct},
			{Name: "Foo", Type: model.EntityCompany},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, openAI, got[0].ID)
		assert.Equal(t, model.EntityCompany, got[0].Type)
		assert.Equal(t, foo, got[1].ID)
		assert.Equal(t, model.EntityCompany, got[1].Type)

		got, err = s.UpsertEntities(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestTrendingAndReports(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ids := seedTopics(t, s,
			model.Topic{Category: "AI", Keyword: "GPU"},
			model.Topic{Category: "Cloud", Keyword: "AWS"},
		)
		_, err := s.InsertArticles(ctx, []model.Article{
			{TopicID: ids["GPU"], URL: "u1", Title: "NVIDIA earnings"},
			{TopicID: ids["GPU"], URL: "u2", Title: "Blackwell ships"},
			{TopicID: ids["AWS"], URL: "u3", Title: "AWS outage"},
			{URL: "u4", Title: "orphan"},
		})
		require.NoError(t, err)
		pending, err := s.UnanalyzedArticles(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 4)

		scores := []float64{0.8, 0.4, -0.6, 0.1}
		for i, p := range pending {
			_, err := s.InsertAnalysis(ctx, model.Analysis{
				ArticleID:      p.ID,
				Summary:        "Summary about " + p.Title + " with 100% growth",
				SentimentScore: scores[i],
				SentimentLabel: model.SentimentPositive,
				AnalyzedAt:     time.Now().UTC(),
			})
			require.NoError(t, err)
		}

		ents, err := s.UpsertEntities(ctx, []model.Entity{
			{Name: "NVIDIA", Type: model.EntityCompany},
			{Name: "Blackwell", Type: model.EntityProduct},
			{Name: "AWS", Type: model.EntityCompany},
		})
		require.NoError(t, err)
		nvidia, blackwell, aws := ents[0].ID, ents[1].ID, ents[2].ID

		require.NoError(t, s.LinkEntities(ctx, pending[0].ID, []int64{nvidia, nvidia}))
		require.NoError(t, s.LinkEntities(ctx, pending[1].ID, []int64{nvidia, blackwell}))
		require.NoError(t, s.LinkEntities(ctx, pending[1].ID, []int64{blackwell}))
		require.NoError(t, s.LinkEntities(ctx, pending[2].ID, []int64{aws}))
		require.NoError(t, s.LinkEntities(ctx, pending[3].ID, []int64{aws}))
		require.NoError(t, s.LinkEntities(ctx, pending[3].ID, nil))

		digests, err := s.AnalysesSince(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, digests, 3)
		assert.Equal(t, "AI", digests[0].Category)
		assert.Equal(t, "Cloud", digests[2].Category)

		trending, err := s.TopTrendingEntities(ctx, 1)
		require.NoError(t, err)
		require.Len(t, trending, 2)
		assert.Equal(t, "AI", trending[0].Category)
		assert.Equal(t, "NVIDIA", trending[0].Topic)
		assert.Equal(t, 2, trending[0].Count)
		assert.InDelta(t, 0.6, trending[0].AverageSentiment, 1e-9)
		assert.Equal(t, "Cloud", trending[1].Category)
		assert.Equal(t, "AWS", trending[1].Topic)
		assert.Equal(t, 1, trending[1].Count)

		all, err := s.TopTrendingEntities(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		_, err = s.LatestReports(ctx)
		assert.ErrorIs(t, err, ErrNotFound)

		yesterday := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
		today := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpsertReport(ctx, model.Report{Date: yesterday, Category: "AI", Summary: "old"}))
		require.NoError(t, s.UpsertReport(ctx, model.Report{Date: today, Category: "AI", Summary: "first"}))
		require.NoError(t, s.UpsertReport(ctx, model.Report{
			Date: today, Category: "AI", Summary: "second", OverallSentimentScore: 0.5,
			TrendingTopics: []model.TrendingTopic{{Topic: "NVIDIA", Count: 2, AverageSentiment: 0.6}},
		}))
		require.NoError(t, s.UpsertReport(ctx, model.Report{Date: today, Category: "Cloud", Summary: "cloud"}))

		latest, err := s.LatestReports(ctx)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, "AI", latest[0].Category)
		assert.Equal(t, "second", latest[0].Summary)
		assert.True(t, model.Day(today).Equal(latest[0].Date))
		assert.Equal(t, []model.TrendingTopic{{Topic: "NVIDIA", Count: 2, AverageSentiment: 0.6}}, latest[0].TrendingTopics)

		old, err := s.ReportsByDate(ctx, yesterday)
		require.NoError(t, err)
		require.Len(t, old, 1)
		assert.Equal(t, "old", old[0].Summary)

		_, err = s.ReportsByDate(ctx, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, ErrNotFound)

		hits, err := s.SearchAnalyses(ctx, "nvidia", 20)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "u1", hits[0].URL)

		hits, err = s.SearchAnalyses(ctx, "100%", 2)
		require.NoError(t, err)
		assert.Len(t, hits, 2)

		hits, err = s.SearchAnalyses(ctx, "10_%", 20)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DBConfig{Driver: "mysql"})
	assert.Error(t, err)

	s, err := Open(context.Background(), config.DBConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}

func TestNormalizeEntities(t *testing.T) {
	got := normalizeEntities([]model.Entity{
		{Name: " GPU ", Type: model.EntityTechnology},
		{Name: "GPU", Type: model.EntityProduct},
		{Name: "", Type: model.EntityPerson},
		{Name: "Bad\xffName"},
	})
	assert.Equal(t, []model.Entity{
		{Name: "GPU", Type: model.EntityTechnology},
		{Name: "BadName", Type: model.EntityOther},
	}, got)
}
