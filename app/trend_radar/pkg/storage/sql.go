package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

const dateLayout = "2006-01-02"

// SQLStore 基于 database/sql 的存储实现，支持 PostgreSQL 和 SQLite
type SQLStore struct {
	db *sql.DB
	d  *dialect
	sb sq.StatementBuilderType
}

// NewSQLStore 使用已建立的连接创建存储
func NewSQLStore(db *sql.DB, d *dialect) *SQLStore {
	return &SQLStore{
		db: db,
		d:  d,
		sb: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}
}

// InitSchema 创建表和视图（幂等）
func (s *SQLStore) InitSchema(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLStore) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *SQLStore) UpsertTopics(ctx context.Context, topics []model.Topic) (int, error) {
	if len(topics) == 0 {
		return 0, nil
	}
	// 同一条语句中不能重复更新同一行
	last := make(map[string]int, len(topics))
	for i, t := range topics {
		last[t.Keyword] = i
	}

	b := s.sb.Insert("tracked_topics").Columns("category", "keyword", "is_active")
	for i, t := range topics {
		if last[t.Keyword] != i {
			continue
		}
		b = b.Values(sanitize(t.Category), sanitize(t.Keyword), true)
	}
	b = b.Suffix("ON CONFLICT (keyword) DO UPDATE SET category = excluded.category, is_active = excluded.is_active")

	if _, err := s.exec(ctx, b); err != nil {
		return 0, fmt.Errorf("upsert topics: %w", err)
	}
	return len(last), nil
}

func (s *SQLStore) ActiveTopics(ctx context.Context) ([]model.Topic, error) {
	rows, err := s.query(ctx, s.sb.
		Select("topic_id", "category", "keyword", "is_active").
		From("tracked_topics").
		Where(sq.Eq{"is_active": true}).
		OrderBy("topic_id"))
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Category, &t.Keyword, &t.IsActive); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *SQLStore) InsertArticles(ctx context.Context, articles []model.Article) (int, error) {
	seen := make(map[string]bool, len(articles))
	b := s.sb.Insert("raw_articles").
		Columns("topic_id", "url", "title", "snippet", "source_name", "publication_date", "crawl_date")
	n := 0
	for _, a := range articles {
		url := sanitize(strings.TrimSpace(a.URL))
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		n++

		crawled := a.CrawlDate
		if crawled.IsZero() {
			crawled = time.Now()
		}
		b = b.Values(
			nullInt(a.TopicID),
			url,
			nullString(sanitize(a.Title)),
			nullString(sanitize(a.Snippet)),
			nullString(sanitize(a.SourceName)),
			nullTime(a.PublicationDate),
			crawled.UTC(),
		)
	}
	if n == 0 {
		return 0, nil
	}
	b = b.Suffix("ON CONFLICT (url) DO NOTHING")

	res, err := s.exec(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("insert articles: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(inserted), nil
}

func (s *SQLStore) UnanalyzedArticles(ctx context.Context, limit int) ([]model.PendingArticle, error) {
	b := s.sb.
		Select("a.article_id", "COALESCE(a.title, '')", "COALESCE(a.snippet, '')", "COALESCE(t.keyword, '')").
		From("raw_articles a").
		LeftJoin("tracked_topics t ON t.topic_id = a.topic_id").
		LeftJoin("l1_analysis_sentiment s ON s.article_id = a.article_id").
		Where(sq.Eq{"s.analysis_id": nil}).
		OrderBy("a.article_id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query unanalyzed articles: %w", err)
	}
	defer rows.Close()

	var out []model.PendingArticle
	for rows.Next() {
		var p model.PendingArticle
		if err := rows.Scan(&p.ID, &p.Title, &p.Snippet, &p.Keyword); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertAnalysis(ctx context.Context, a model.Analysis) (int64, error) {
	analyzed := a.AnalyzedAt
	if analyzed.IsZero() {
		analyzed = time.Now()
	}
	query, args, err := s.sb.Insert("l1_analysis_sentiment").
		Columns("article_id", "ai_summary", "sentiment_score", "sentiment_label", "analyzed_at").
		Values(a.ArticleID, sanitize(a.Summary), a.SentimentScore, string(a.SentimentLabel), analyzed.UTC()).
		Suffix("RETURNING analysis_id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert analysis for article %d: %w", a.ArticleID, err)
	}
	return id, nil
}

func (s *SQLStore) DeleteAnalysis(ctx context.Context, articleID int64) error {
	if _, err := s.exec(ctx, s.sb.Delete("l1_analysis_sentiment").Where(sq.Eq{"article_id": articleID})); err != nil {
		return fmt.Errorf("delete analysis for article %d: %w", articleID, err)
	}
	return nil
}

func (s *SQLStore) UpsertEntities(ctx context.Context, entities []model.Entity) ([]model.Entity, error) {
	entities = normalizeEntities(entities)
	if len(entities) == 0 {
		return nil, nil
	}

	b := s.sb.Insert("l1_analysis_entities").Columns("entity_name", "entity_type")
	for _, e := range entities {
		b = b.Values(e.Name, string(e.Type))
	}
	// 冲突时也执行一次 UPDATE，保证 RETURNING 返回已存在的行
	b = b.Suffix(`ON CONFLICT (entity_name) DO UPDATE SET entity_type = CASE
		WHEN l1_analysis_entities.entity_type = 'OTHER' THEN excluded.entity_type
		ELSE l1_analysis_entities.entity_type END
		RETURNING entity_id, entity_name, entity_type`)

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("upsert entities: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]model.Entity, len(entities))
	for rows.Next() {
		var (
			e   model.Entity
			typ string
		)
		if err := rows.Scan(&e.ID, &e.Name, &typ); err != nil {
			return nil, err
		}
		e.Type = model.EntityType(typ)
		byName[e.Name] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		got, ok := byName[e.Name]
		if !ok {
			return nil, fmt.Errorf("upsert entities: no id returned for %q", e.Name)
		}
		out = append(out, got)
	}
	return out, nil
}

func (s *SQLStore) LinkEntities(ctx context.Context, articleID int64, entityIDs []int64) error {
	seen := make(map[int64]bool, len(entityIDs))
	b := s.sb.Insert("article_entity_map").Columns("article_id", "entity_id")
	n := 0
	for _, id := range entityIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		b = b.Values(articleID, id)
		n++
	}
	if n == 0 {
		return nil
	}
	b = b.Suffix("ON CONFLICT (article_id, entity_id) DO NOTHING")

	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("link entities for article %d: %w", articleID, err)
	}
	return nil
}

func (s *SQLStore) AnalysesSince(ctx context.Context, since time.Time) ([]model.CategorizedDigest, error) {
	rows, err := s.query(ctx, s.sb.
		Select("t.category", "COALESCE(a.title, '')", "COALESCE(s.ai_summary, '')", "COALESCE(s.sentiment_score, 0)").
		From("l1_analysis_sentiment s").
		Join("raw_articles a ON a.article_id = s.article_id").
		Join("tracked_topics t ON t.topic_id = a.topic_id").
		Where(sq.GtOrEq{"s.analyzed_at": since.UTC()}).
		OrderBy("t.category", "s.analysis_id"))
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []model.CategorizedDigest
	for rows.Next() {
		var c model.CategorizedDigest
		if err := rows.Scan(&c.Category, &c.Title, &c.Summary, &c.SentimentScore); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const trendingQuery = `SELECT category, topic, mention_count, average_sentiment FROM (
	SELECT category, topic, mention_count, average_sentiment,
		ROW_NUMBER() OVER (PARTITION BY category ORDER BY mention_count DESC, average_sentiment DESC, topic) AS rn
	FROM daily_trending_entities
) ranked WHERE rn <= ? ORDER BY category, rn`

func (s *SQLStore) TopTrendingEntities(ctx context.Context, n int) ([]model.TrendingEntity, error) {
	if n <= 0 {
		return nil, nil
	}
	query, err := s.d.placeholder.ReplacePlaceholders(trendingQuery)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query trending entities: %w", err)
	}
	defer rows.Close()

	var out []model.TrendingEntity
	for rows.Next() {
		var (
			e   model.TrendingEntity
			avg sql.NullFloat64
		)
		if err := rows.Scan(&e.Category, &e.Topic, &e.Count, &avg); err != nil {
			return nil, err
		}
		e.AverageSentiment = avg.Float64
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertReport(ctx context.Context, r model.Report) error {
	topics := r.TrendingTopics
	if topics == nil {
		topics = []model.TrendingTopic{}
	}
	data, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("marshal trending topics: %w", err)
	}

	b := s.sb.Insert("daily_reports").
		Columns("report_date", "category", "report_summary", "overall_sentiment_score", "trending_topics", "updated_at").
		Values(model.Day(r.Date).Format(dateLayout), sanitize(r.Category), sanitize(r.Summary), r.OverallSentimentScore, string(data), time.Now().UTC()).
		Suffix(`ON CONFLICT (report_date, category) DO UPDATE SET
			report_summary = excluded.report_summary,
			overall_sentiment_score = excluded.overall_sentiment_score,
			trending_topics = excluded.trending_topics,
			updated_at = excluded.updated_at`)

	if _, err := s.exec(ctx, b); err != nil {
		return fmt.Errorf("upsert report %s/%s: %w", r.Category, model.Day(r.Date).Format(dateLayout), err)
	}
	return nil
}

func (s *SQLStore) reports(ctx context.Context, where sq.Sqlizer) ([]model.Report, error) {
	rows, err := s.query(ctx, s.sb.
		Select("report_date", "category", "COALESCE(report_summary, '')", "COALESCE(overall_sentiment_score, 0)", "trending_topics").
		From("daily_reports").
		Where(where).
		OrderBy("category"))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		var (
			r      model.Report
			topics []byte
		)
		if err := rows.Scan(&r.Date, &r.Category, &r.Summary, &r.OverallSentimentScore, &topics); err != nil {
			return nil, err
		}
		r.Date = model.Day(r.Date)
		if len(topics) > 0 {
			if err := json.Unmarshal(topics, &r.TrendingTopics); err != nil {
				return nil, fmt.Errorf("decode trending topics of %s: %w", r.Category, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLStore) LatestReports(ctx context.Context) ([]model.Report, error) {
	return s.reports(ctx, sq.Expr("report_date = (SELECT MAX(report_date) FROM daily_reports)"))
}

func (s *SQLStore) ReportsByDate(ctx context.Context, day time.Time) ([]model.Report, error) {
	return s.reports(ctx, sq.Eq{"report_date": model.Day(day).Format(dateLayout)})
}

func (s *SQLStore) SearchAnalyses(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	b := s.sb.
		Select("COALESCE(s.ai_summary, '')", "COALESCE(s.sentiment_label, '')", "COALESCE(s.sentiment_score, 0)",
			"COALESCE(a.title, '')", "a.url", "a.publication_date").
		From("l1_analysis_sentiment s").
		Join("raw_articles a ON a.article_id = s.article_id").
		Where(s.d.like("s.ai_summary", "%"+escapeLike(query)+"%")).
		OrderBy("s.analyzed_at DESC", "s.analysis_id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("search analyses: %w", err)
	}
	defer rows.Close()

	var out []model.SearchHit
	for rows.Next() {
		var (
			h     model.SearchHit
			label string
			pub   sql.NullTime
		)
		if err := rows.Scan(&h.Summary, &label, &h.SentimentScore, &h.Title, &h.URL, &pub); err != nil {
			return nil, err
		}
		h.SentimentLabel = model.SentimentLabel(label)
		if pub.Valid {
			t := pub.Time.UTC()
			h.PublicationDate = &t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
