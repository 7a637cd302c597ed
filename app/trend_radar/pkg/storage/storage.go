package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// ErrNotFound 查询结果为空
var ErrNotFound = errors.New("not found")

// TopicStore 主题表
type TopicStore interface {
	// UpsertTopics 以 keyword 为冲突键写入主题并设为激活，返回处理的行数
	UpsertTopics(ctx context.Context, topics []model.Topic) (int, error)
	ActiveTopics(ctx context.Context) ([]model.Topic, error)
}

// ArticleStore 原始文章表
type ArticleStore interface {
	// InsertArticles 以 url 为冲突键插入，重复的行被忽略，返回新插入的行数
	InsertArticles(ctx context.Context, articles []model.Article) (int, error)
}

// AnalysisStore L1 分析相关的表
type AnalysisStore interface {
	// UnanalyzedArticles 返回没有 L1 记录的文章，limit <= 0 表示不限制
	UnanalyzedArticles(ctx context.Context, limit int) ([]model.PendingArticle, error)
	InsertAnalysis(ctx context.Context, a model.Analysis) (int64, error)
	DeleteAnalysis(ctx context.Context, articleID int64) error
	// UpsertEntities 以 entity_name 为冲突键写入实体，返回带 ID 的实体（包括已存在的）
	UpsertEntities(ctx context.Context, entities []model.Entity) ([]model.Entity, error)
	// LinkEntities 写入文章与实体的关联，重复的关联被忽略
	LinkEntities(ctx context.Context, articleID int64, entityIDs []int64) error
}

// ReportStore L2 报告相关的表
type ReportStore interface {
	// AnalysesSince 返回 since 之后的 L1 摘要，无法关联到分类的记录被丢弃
	AnalysesSince(ctx context.Context, since time.Time) ([]model.CategorizedDigest, error)
	// TopTrendingEntities 读取热门实体视图，每个分类最多 n 条
	TopTrendingEntities(ctx context.Context, n int) ([]model.TrendingEntity, error)
	// UpsertReport 以 (report_date, category) 为冲突键写入报告
	UpsertReport(ctx context.Context, r model.Report) error
}

// ReadStore 展示服务使用的只读查询
type ReadStore interface {
	LatestReports(ctx context.Context) ([]model.Report, error)
	ReportsByDate(ctx context.Context, day time.Time) ([]model.Report, error)
	SearchAnalyses(ctx context.Context, query string, limit int) ([]model.SearchHit, error)
}

// Store 完整的存储网关
type Store interface {
	TopicStore
	ArticleStore
	AnalysisStore
	ReportStore
	ReadStore
	Close() error
}

// Open 根据配置打开存储并初始化表结构
func Open(ctx context.Context, cfg config.DBConfig) (Store, error) {
	var d *dialect
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverPostgres:
		d = postgresDialect
	case config.DriverSQLite:
		d = sqliteDialect
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.Driver)
	}

	db, err := sql.Open(d.driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if d == sqliteDialect {
		// :memory: 数据库每个连接各自独立
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewSQLStore(db, d)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// sanitize 移除无效的 UTF-8 字符和 NULL 字节，PostgreSQL 文本字段不支持 NULL 字节
func sanitize(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}

// normalizeEntities 去掉空名称并合并同名实体（保留首次出现）
func normalizeEntities(entities []model.Entity) []model.Entity {
	seen := make(map[string]bool, len(entities))
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		name := sanitize(strings.TrimSpace(e.Name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		typ := e.Type
		if typ == "" {
			typ = model.EntityOther
		}
		out = append(out, model.Entity{Name: name, Type: typ})
	}
	return out
}

// mergeEntityType 同名实体已存在时的类型策略：只有 OTHER 会被新类型覆盖
func mergeEntityType(existing, incoming model.EntityType) model.EntityType {
	if existing == model.EntityOther {
		return incoming
	}
	return existing
}
