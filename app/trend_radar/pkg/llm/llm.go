package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
)

// ErrValidation 模型输出无法解析或不符合约束，不会重试
var ErrValidation = errors.New("ai output failed validation")

const defaultBaseDelay = 2 * time.Second

// NewChatModel 创建 OpenAI 兼容的聊天模型（DeepSeek、通义等）
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is missing")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return cm, nil
}

// NewLimiter 所有模型调用共享的限流器，RPM 为 0 时不限流
func NewLimiter(cfg config.ConcurrencyConfig) *rate.Limiter {
	burst := cfg.QPS
	if burst < 1 {
		burst = 1
	}
	if cfg.RPM <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), burst)
}

// Client 包装聊天模型：限流、429 退避重试、清理输出
type Client struct {
	cm         model.BaseChatModel
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// NewClient limiter 为 nil 时不限流
func NewClient(cm model.BaseChatModel, limiter *rate.Limiter, maxRetries int) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		cm:         cm,
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  defaultBaseDelay,
	}
}

// generate 调用模型并返回去掉 markdown 代码块的文本
func (c *Client) generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.cm.Generate(ctx, msgs)
		if err == nil {
			return cleanJSON(resp.Content), nil
		}
		if !isRateLimited(err) {
			return "", err
		}

		lastErr = err
		if i == c.maxRetries {
			break
		}
		delay := c.baseDelay * time.Duration(1<<i)
		logger.Log.WithField("attempt", i+1).Warnf("模型限流，%s 后重试", delay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// generateJSON 调用模型并把输出解析到 out
func (c *Client) generateJSON(ctx context.Context, msgs []*schema.Message, out any) error {
	content, err := c.generate(ctx, msgs)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: json unmarshal: %v", ErrValidation, err)
	}
	return nil
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
