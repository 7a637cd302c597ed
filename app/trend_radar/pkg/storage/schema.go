package storage

import (
	sq "github.com/Masterminds/squirrel"
)

// dialect 屏蔽 PostgreSQL 与 SQLite 之间的差异
type dialect struct {
	driver      string
	placeholder sq.PlaceholderFormat
	schema      []string
	like        func(col, pattern string) sq.Sqlizer
}

var postgresDialect = &dialect{
	driver:      "postgres",
	placeholder: sq.Dollar,
	like: func(col, pattern string) sq.Sqlizer {
		return sq.Expr(col+` ILIKE ? ESCAPE '\'`, pattern)
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tracked_topics (
			topic_id BIGSERIAL PRIMARY KEY,
			category TEXT NOT NULL,
			keyword TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS raw_articles (
			article_id BIGSERIAL PRIMARY KEY,
			topic_id BIGINT REFERENCES tracked_topics(topic_id),
			url TEXT NOT NULL UNIQUE,
			title TEXT,
			snippet TEXT,
			source_name TEXT,
			publication_date TIMESTAMPTZ,
			crawl_date TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS l1_analysis_sentiment (
			analysis_id BIGSERIAL PRIMARY KEY,
			article_id BIGINT NOT NULL UNIQUE REFERENCES raw_articles(article_id) ON DELETE CASCADE,
			ai_summary TEXT,
			sentiment_score DOUBLE PRECISION CHECK (sentiment_score BETWEEN -1 AND 1),
			sentiment_label TEXT CHECK (sentiment_label IN ('Positive', 'Negative', 'Neutral')),
			analyzed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_l1_analysis_sentiment_analyzed_at ON l1_analysis_sentiment (analyzed_at)`,
		`CREATE TABLE IF NOT EXISTS l1_analysis_entities (
			entity_id BIGSERIAL PRIMARY KEY,
			entity_name TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS article_entity_map (
			article_id BIGINT NOT NULL REFERENCES raw_articles(article_id) ON DELETE CASCADE,
			entity_id BIGINT NOT NULL REFERENCES l1_analysis_entities(entity_id) ON DELETE CASCADE,
			PRIMARY KEY (article_id, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_reports (
			report_date DATE NOT NULL,
			category TEXT NOT NULL,
			report_summary TEXT,
			overall_sentiment_score DOUBLE PRECISION,
			trending_topics JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (report_date, category)
		)`,
		`CREATE OR REPLACE VIEW daily_trending_entities AS
			SELECT t.category AS category,
				e.entity_name AS topic,
				COUNT(DISTINCT m.article_id) AS mention_count,
				AVG(s.sentiment_score) AS average_sentiment
			FROM article_entity_map m
			JOIN l1_analysis_entities e ON e.entity_id = m.entity_id
			JOIN l1_analysis_sentiment s ON s.article_id = m.article_id
			JOIN raw_articles a ON a.article_id = m.article_id
			JOIN tracked_topics t ON t.topic_id = a.topic_id
			WHERE s.analyzed_at >= now() - INTERVAL '24 hours'
			GROUP BY t.category, e.entity_name`,
	},
}

var sqliteDialect = &dialect{
	driver:      "sqlite3",
	placeholder: sq.Question,
	// SQLite 的 LIKE 对 ASCII 不区分大小写，且没有默认的转义字符
	like: func(col, pattern string) sq.Sqlizer {
		return sq.Expr(col+` LIKE ? ESCAPE '\'`, pattern)
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tracked_topics (
			topic_id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			keyword TEXT NOT NULL UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS raw_articles (
			article_id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic_id INTEGER REFERENCES tracked_topics(topic_id),
			url TEXT NOT NULL UNIQUE,
			title TEXT,
			snippet TEXT,
			source_name TEXT,
			publication_date DATETIME,
			crawl_date DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS l1_analysis_sentiment (
			analysis_id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL UNIQUE REFERENCES raw_articles(article_id) ON DELETE CASCADE,
			ai_summary TEXT,
			sentiment_score REAL CHECK (sentiment_score BETWEEN -1 AND 1),
			sentiment_label TEXT CHECK (sentiment_label IN ('Positive', 'Negative', 'Neutral')),
			analyzed_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_l1_analysis_sentiment_analyzed_at ON l1_analysis_sentiment (analyzed_at)`,
		`CREATE TABLE IF NOT EXISTS l1_analysis_entities (
			entity_id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_name TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS article_entity_map (
			article_id INTEGER NOT NULL REFERENCES raw_articles(article_id) ON DELETE CASCADE,
			entity_id INTEGER NOT NULL REFERENCES l1_analysis_entities(entity_id) ON DELETE CASCADE,
			PRIMARY KEY (article_id, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_reports (
			report_date DATE NOT NULL,
			category TEXT NOT NULL,
			report_summary TEXT,
			overall_sentiment_score REAL,
			trending_topics TEXT,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (report_date, category)
		)`,
		// 时间统一以 UTC 写入，字符串比较即可
		`CREATE VIEW IF NOT EXISTS daily_trending_entities AS
			SELECT t.category AS category,
				e.entity_name AS topic,
				COUNT(DISTINCT m.article_id) AS mention_count,
				AVG(s.sentiment_score) AS average_sentiment
			FROM article_entity_map m
			JOIN l1_analysis_entities e ON e.entity_id = m.entity_id
			JOIN l1_analysis_sentiment s ON s.article_id = m.article_id
			JOIN raw_articles a ON a.article_id = m.article_id
			JOIN tracked_topics t ON t.topic_id = a.topic_id
			WHERE s.analyzed_at >= datetime('now', '-1 day')
			GROUP BY t.category, e.entity_name`,
	},
}
