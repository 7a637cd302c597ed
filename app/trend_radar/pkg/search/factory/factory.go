package factory

import (
	"fmt"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/gnews"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/googlenews"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/search"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/searxng"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/tavily"
)

// NewSearcher 根据配置创建文章来源
func NewSearcher(cfg config.SourceConfig) (search.Searcher, error) {
	switch cfg.Provider {
	case "", "gnews":
		if cfg.GNews.APIKey == "" {
			return nil, fmt.Errorf("gnews api key is missing")
		}
		return gnews.NewClient(cfg.GNews.APIKey, cfg.GNews.BaseURL), nil

	case "googlenews":
		return googlenews.NewClient(cfg.GoogleNews.BaseURL, cfg.GoogleNews.Region), nil

	case "tavily":
		if cfg.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Tavily.APIKey), nil

	case "searxng":
		if cfg.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(cfg.SearXNG.BaseURL, cfg.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown news source: %s", cfg.Provider)
	}
}
