package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingStore 未配置数据库连接信息，所有命令都无法运行
var ErrMissingStore = errors.New("store credentials are not configured")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMemory   = "memory"

	maxAnalysisWorkers = 8
)

// Config 项目配置结构体
type Config struct {
	LLM           LLMConfig         `yaml:"llm"`
	Language      string            `yaml:"language" env:"LANGUAGE" env-default:"Chinese"`
	TrackedTopics string            `yaml:"tracked_topics" env:"TRACKED_TOPICS"`
	Source        SourceConfig      `yaml:"source"`
	Crawl         CrawlConfig       `yaml:"crawl"`
	Analysis      AnalysisConfig    `yaml:"analysis"`
	Report        ReportConfig      `yaml:"report"`
	Log           LogConfig         `yaml:"log"`
	Concurrency   ConcurrencyConfig `yaml:"concurrency"`
	DB            DBConfig          `yaml:"db"`
	Lock          LockConfig        `yaml:"lock"`
	Metrics       MetricsConfig     `yaml:"metrics"`
	Server        ServerConfig      `yaml:"server"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL    string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	APIKey     string `yaml:"api_key" env:"OPENAI_API_KEY"`
	Model      string `yaml:"model" env:"MODEL_NAME" env-default:"deepseek-chat"`
	MaxRetries int    `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"3"`
}

// SourceConfig 文章来源配置
type SourceConfig struct {
	Provider   string           `yaml:"provider" env:"NEWS_SOURCE" env-default:"gnews"`
	Lang       string           `yaml:"lang" env:"NEWS_LANG" env-default:"en"`
	GNews      GNewsConfig      `yaml:"gnews"`
	GoogleNews GoogleNewsConfig `yaml:"googlenews"`
	Tavily     TavilyConfig     `yaml:"tavily"`
	SearXNG    SearXNGConfig    `yaml:"searxng"`
}

// GNewsConfig GNews 配置
type GNewsConfig struct {
	APIKey  string `yaml:"api_key" env:"NEWS_API_KEY"`
	BaseURL string `yaml:"base_url" env:"GNEWS_BASE_URL"`
}

// GoogleNewsConfig Google News RSS 配置
type GoogleNewsConfig struct {
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region" env-default:"US"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key" env:"TAVILY_API_KEY"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url" env:"SEARXNG_BASE_URL"`
	Timeout int    `yaml:"timeout"`
}

// CrawlConfig 爬取阶段配置
type CrawlConfig struct {
	// ReadabilityFallback 来源没有描述和正文时抓取原文
	ReadabilityFallback bool `yaml:"readability_fallback" env:"CRAWL_READABILITY_FALLBACK"`
}

// AnalysisConfig L1 分析阶段配置
type AnalysisConfig struct {
	Workers    int `yaml:"workers" env:"ANALYSIS_WORKERS" env-default:"2"`
	BatchLimit int `yaml:"batch_limit" env:"ANALYSIS_BATCH_LIMIT"`
}

// ReportConfig L2 报告阶段配置
type ReportConfig struct {
	TopEntities int    `yaml:"top_entities" env:"REPORT_TOP_ENTITIES" env-default:"5"`
	HTMLPath    string `yaml:"html_path" env:"REPORT_HTML_PATH"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

// ConcurrencyConfig 并发控制配置，RPM 为 0 表示不限流
type ConcurrencyConfig struct {
	QPS int `yaml:"qps" env:"LLM_QPS" env-default:"2"`
	RPM int `yaml:"rpm" env:"LLM_RPM"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Host     string `yaml:"host" env:"PGHOST"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER"`
	Password string `yaml:"password" env:"PGPASSWORD"`
	Name     string `yaml:"name" env:"PGDATABASE"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	Path     string `yaml:"path" env:"SQLITE_PATH"`
}

// LockConfig 运行锁配置，未配置 RedisAddr 时不加锁
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
	Key           string        `yaml:"key" env-default:"trend_radar:pipeline"`
	TTL           time.Duration `yaml:"ttl" env-default:"2h"`
}

// MetricsConfig 指标导出配置
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"METRICS_TEXTFILE"`
}

// ServerConfig 展示服务配置
type ServerConfig struct {
	Addr    string        `yaml:"addr" env:"SERVER_ADDR" env-default:":8000"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

// LoadConfig 从指定路径加载配置，文件不存在时只读取环境变量
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	return &cfg, nil
}

// Validate 检查致命的配置缺失
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.URL == "" && c.DB.Host == "" {
			return ErrMissingStore
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return ErrMissingStore
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown db driver: %s", c.DB.Driver)
	}
	return nil
}

// DSN 返回数据库连接串
func (c DBConfig) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		return c.Path
	case DriverPostgres:
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return ""
}

// AnalysisWorkers 返回限定在 [1, 8] 范围内的工作协程数
func (c *Config) AnalysisWorkers() int {
	switch {
	case c.Analysis.Workers < 1:
		return 1
	case c.Analysis.Workers > maxAnalysisWorkers:
		return maxAnalysisWorkers
	}
	return c.Analysis.Workers
}
