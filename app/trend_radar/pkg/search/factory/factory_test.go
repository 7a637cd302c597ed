package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/gnews"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/googlenews"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/searxng"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/tavily"
)

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		want    any
		wantErr bool
	}{
		{name: "gnews", cfg: config.SourceConfig{Provider: "gnews", GNews: config.GNewsConfig{APIKey: "k"}}, want: &gnews.Client{}},
		{name: "gnews missing key", cfg: config.SourceConfig{Provider: "gnews"}, wantErr: true},
		{name: "googlenews", cfg: config.SourceConfig{Provider: "googlenews"}, want: &googlenews.Client{}},
		{name: "tavily", cfg: config.SourceConfig{Provider: "tavily", Tavily: config.TavilyConfig{APIKey: "k"}}, want: &tavily.Client{}},
		{name: "searxng missing url", cfg: config.SourceConfig{Provider: "searxng"}, wantErr: true},
		{name: "searxng", cfg: config.SourceConfig{Provider: "searxng", SearXNG: config.SearXNGConfig{BaseURL: "http://localhost:8080"}}, want: &searxng.Client{}},
		{name: "unknown", cfg: config.SourceConfig{Provider: "bing"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSearcher(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}
