package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// trendingWindow 热门实体视图统计的时间窗口
const trendingWindow = 24 * time.Hour

type linkKey struct {
	articleID int64
	entityID  int64
}

// Memory 进程内存储，语义与 SQL 实现一致，用于本地试运行和测试
type Memory struct {
	mu sync.Mutex

	topics   []model.Topic
	articles []model.Article
	analyses []model.Analysis
	entities []model.Entity
	links    []linkKey
	reports  []model.Report

	linked map[linkKey]bool
	nextID int64

	now func() time.Time
}

// NewMemory 创建空的内存存储
func NewMemory() *Memory {
	return &Memory{
		linked: make(map[linkKey]bool),
		now:    time.Now,
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) Close() error { return nil }

func (m *Memory) UpsertTopics(_ context.Context, topics []model.Topic) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		seen[t.Keyword] = true
		found := false
		for i := range m.topics {
			if m.topics[i].Keyword == t.Keyword {
				m.topics[i].Category = t.Category
				m.topics[i].IsActive = true
				found = true
				break
			}
		}
		if !found {
			m.topics = append(m.topics, model.Topic{ID: m.id(), Category: t.Category, Keyword: t.Keyword, IsActive: true})
		}
	}
	return len(seen), nil
}

func (m *Memory) ActiveTopics(_ context.Context) ([]model.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Topic
	for _, t := range m.topics {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) topicByID(id int64) (model.Topic, bool) {
	for _, t := range m.topics {
		if t.ID == id {
			return t, true
		}
	}
	return model.Topic{}, false
}

func (m *Memory) articleByID(id int64) (model.Article, bool) {
	for _, a := range m.articles {
		if a.ID == id {
			return a, true
		}
	}
	return model.Article{}, false
}

func (m *Memory) InsertArticles(_ context.Context, articles []model.Article) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]bool, len(m.articles))
	for _, a := range m.articles {
		known[a.URL] = true
	}

	inserted := 0
	for _, a := range articles {
		url := sanitize(strings.TrimSpace(a.URL))
		if url == "" || known[url] {
			continue
		}
		if a.TopicID != 0 {
			if _, ok := m.topicByID(a.TopicID); !ok {
				return inserted, fmt.Errorf("insert articles: unknown topic %d", a.TopicID)
			}
		}
		known[url] = true
		a.ID = m.id()
		a.URL = url
		a.Title = sanitize(a.Title)
		a.Snippet = sanitize(a.Snippet)
		a.SourceName = sanitize(a.SourceName)
		if a.CrawlDate.IsZero() {
			a.CrawlDate = m.now()
		}
		a.CrawlDate = a.CrawlDate.UTC()
		m.articles = append(m.articles, a)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) UnanalyzedArticles(_ context.Context, limit int) ([]model.PendingArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	analyzed := make(map[int64]bool, len(m.analyses))
	for _, a := range m.analyses {
		analyzed[a.ArticleID] = true
	}

	var out []model.PendingArticle
	for _, a := range m.articles {
		if analyzed[a.ID] {
			continue
		}
		p := model.PendingArticle{ID: a.ID, Title: a.Title, Snippet: a.Snippet}
		if t, ok := m.topicByID(a.TopicID); ok {
			p.Keyword = t.Keyword
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) InsertAnalysis(_ context.Context, a model.Analysis) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articleByID(a.ArticleID); !ok {
		return 0, fmt.Errorf("insert analysis: unknown article %d", a.ArticleID)
	}
	for _, existing := range m.analyses {
		if existing.ArticleID == a.ArticleID {
			return 0, fmt.Errorf("insert analysis: article %d already analyzed", a.ArticleID)
		}
	}
	if a.SentimentScore < -1 || a.SentimentScore > 1 {
		return 0, fmt.Errorf("insert analysis: sentiment score %v out of range", a.SentimentScore)
	}

	a.ID = m.id()
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = m.now()
	}
	a.AnalyzedAt = a.AnalyzedAt.UTC()
	a.Summary = sanitize(a.Summary)
	m.analyses = append(m.analyses, a)
	return a.ID, nil
}

func (m *Memory) DeleteAnalysis(_ context.Context, articleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.analyses[:0]
	for _, a := range m.analyses {
		if a.ArticleID != articleID {
			kept = append(kept, a)
		}
	}
	m.analyses = kept
	return nil
}

func (m *Memory) UpsertEntities(_ context.Context, entities []model.Entity) ([]model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entities = normalizeEntities(entities)
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		idx := -1
		for i := range m.entities {
			if m.entities[i].Name == e.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			e.ID = m.id()
			m.entities = append(m.entities, e)
			out = append(out, e)
			continue
		}
		m.entities[idx].Type = mergeEntityType(m.entities[idx].Type, e.Type)
		out = append(out, m.entities[idx])
	}
	return out, nil
}

func (m *Memory) LinkEntities(_ context.Context, articleID int64, entityIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articleByID(articleID); !ok {
		return fmt.Errorf("link entities: unknown article %d", articleID)
	}
	for _, id := range entityIDs {
		k := linkKey{articleID: articleID, entityID: id}
		if m.linked[k] {
			continue
		}
		m.linked[k] = true
		m.links = append(m.links, k)
	}
	return nil
}

func (m *Memory) AnalysesSince(_ context.Context, since time.Time) ([]model.CategorizedDigest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.CategorizedDigest
	for _, an := range m.analyses {
		if an.AnalyzedAt.Before(since) {
			continue
		}
		art, ok := m.articleByID(an.ArticleID)
		if !ok {
			continue
		}
		topic, ok := m.topicByID(art.TopicID)
		if !ok {
			continue
		}
		out = append(out, model.CategorizedDigest{
			Category: topic.Category,
			ArticleDigest: model.ArticleDigest{
				Title:          art.Title,
				Summary:        an.Summary,
				SentimentScore: an.SentimentScore,
			},
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// TopTrendingEntities 与 daily_trending_entities 视图的统计口径一致
func (m *Memory) TopTrendingEntities(_ context.Context, n int) ([]model.TrendingEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 {
		return nil, nil
	}

	type key struct{ category, topic string }
	type agg struct {
		articles map[int64]bool
		sum      float64
		count    int
	}
	since := m.now().Add(-trendingWindow)
	stats := make(map[key]*agg)
	for _, l := range m.links {
		var an *model.Analysis
		for i := range m.analyses {
			if m.analyses[i].ArticleID == l.articleID {
				an = &m.analyses[i]
				break
			}
		}
		if an == nil || an.AnalyzedAt.Before(since) {
			continue
		}
		art, ok := m.articleByID(l.articleID)
		if !ok {
			continue
		}
		topic, ok := m.topicByID(art.TopicID)
		if !ok {
			continue
		}
		var name string
		for _, e := range m.entities {
			if e.ID == l.entityID {
				name = e.Name
				break
			}
		}
		if name == "" {
			continue
		}

		k := key{topic.Category, name}
		a := stats[k]
		if a == nil {
			a = &agg{articles: make(map[int64]bool)}
			stats[k] = a
		}
		a.articles[l.articleID] = true
		a.sum += an.SentimentScore
		a.count++
	}

	all := make([]model.TrendingEntity, 0, len(stats))
	for k, a := range stats {
		all = append(all, model.TrendingEntity{
			Category: k.category,
			TrendingTopic: model.TrendingTopic{
				Topic:            k.topic,
				Count:            len(a.articles),
				AverageSentiment: a.sum / float64(a.count),
			},
		})
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.AverageSentiment != b.AverageSentiment {
			return a.AverageSentiment > b.AverageSentiment
		}
		return a.Topic < b.Topic
	})

	var out []model.TrendingEntity
	perCategory := make(map[string]int)
	for _, e := range all {
		if perCategory[e.Category] >= n {
			continue
		}
		perCategory[e.Category]++
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) UpsertReport(_ context.Context, r model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.Date = model.Day(r.Date)
	r.TrendingTopics = append([]model.TrendingTopic(nil), r.TrendingTopics...)
	for i := range m.reports {
		if m.reports[i].Date.Equal(r.Date) && m.reports[i].Category == r.Category {
			m.reports[i] = r
			return nil
		}
	}
	m.reports = append(m.reports, r)
	return nil
}

func (m *Memory) reportsOn(day time.Time) []model.Report {
	var out []model.Report
	for _, r := range m.reports {
		if r.Date.Equal(day) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func (m *Memory) LatestReports(_ context.Context) ([]model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.reports) == 0 {
		return nil, ErrNotFound
	}
	latest := m.reports[0].Date
	for _, r := range m.reports[1:] {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return m.reportsOn(latest), nil
}

func (m *Memory) ReportsByDate(_ context.Context, day time.Time) ([]model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.reportsOn(model.Day(day))
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (m *Memory) SearchAnalyses(_ context.Context, query string, limit int) ([]model.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var out []model.SearchHit
	for i := len(m.analyses) - 1; i >= 0; i-- {
		an := m.analyses[i]
		if !strings.Contains(strings.ToLower(an.Summary), q) {
			continue
		}
		art, _ := m.articleByID(an.ArticleID)
		out = append(out, model.SearchHit{
			Summary:         an.Summary,
			SentimentLabel:  an.SentimentLabel,
			SentimentScore:  an.SentimentScore,
			Title:           art.Title,
			URL:             art.URL,
			PublicationDate: art.PublicationDate,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Articles 返回文章快照
func (m *Memory) Articles() []model.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Article(nil), m.articles...)
}

// Analyses 返回 L1 记录快照
func (m *Memory) Analyses() []model.Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Analysis(nil), m.analyses...)
}

// Entities 返回实体快照
func (m *Memory) Entities() []model.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Entity(nil), m.entities...)
}

// LinkCount 返回文章与实体的关联数
func (m *Memory) LinkCount(articleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, l := range m.links {
		if l.articleID == articleID {
			n++
		}
	}
	return n
}

// Reports 返回报告快照
func (m *Memory) Reports() []model.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Report(nil), m.reports...)
}
