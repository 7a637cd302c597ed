package topics

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/storage"
)

// Parse 解析逗号分隔的 "category:keyword" 列表
// 只在第一个冒号处切分，缺少冒号或任一部分为空的条目会被跳过
func Parse(raw string) []model.Topic {
	var out []model.Topic
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		category, keyword, ok := strings.Cut(item, ":")
		category, keyword = strings.TrimSpace(category), strings.TrimSpace(keyword)
		if !ok || category == "" || keyword == "" {
			logger.Log.WithField("entry", item).Warn("跳过格式错误的主题")
			continue
		}
		out = append(out, model.Topic{Category: category, Keyword: keyword, IsActive: true})
	}
	return out
}

// Registry 负责把配置中的主题同步到存储
type Registry struct {
	store storage.TopicStore
}

func NewRegistry(store storage.TopicStore) *Registry {
	return &Registry{store: store}
}

// Sync 写入主题，返回处理的数量。存储失败时返回错误，调用方应中止本次运行
func (r *Registry) Sync(ctx context.Context, topics []model.Topic) (int, error) {
	if len(topics) == 0 {
		logger.Log.Warn("没有配置任何追踪主题")
		return 0, nil
	}
	n, err := r.store.UpsertTopics(ctx, topics)
	if err != nil {
		return 0, fmt.Errorf("sync topics: %w", err)
	}
	logger.Log.WithField("count", n).Info("主题同步完成")
	return n, nil
}
