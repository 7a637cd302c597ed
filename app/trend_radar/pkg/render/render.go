package render

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/model"
)

// Page 日报页面数据
type Page struct {
	Date        string
	GeneratedAt string
	Reports     []model.Report
}

// NewPage 以报告日期作为页面日期
func NewPage(reports []model.Report, generatedAt time.Time) Page {
	p := Page{
		Reports:     reports,
		GeneratedAt: generatedAt.Format("2006-01-02 15:04"),
	}
	if len(reports) > 0 {
		p.Date = reports[0].Date.Format("2006-01-02")
	}
	return p
}

var funcs = template.FuncMap{
	"sentimentClass": func(score float64) string {
		switch {
		case score >= 0.2:
			return "positive"
		case score <= -0.2:
			return "negative"
		}
		return "neutral"
	},
	"score": func(v float64) string { return fmt.Sprintf("%+.2f", v) },
}

var tpl = template.Must(template.New("briefing").Funcs(funcs).Parse(htmlTpl))

// Render 渲染日报 HTML
func Render(w io.Writer, page Page) error {
	return tpl.Execute(w, page)
}

// WriteFile 渲染到文件，目录不存在时自动创建
func WriteFile(path string, page Page) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return Render(f, page)
}

const htmlTpl = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>趋势雷达 | 每日简报</title>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 40px; padding: 20px 0; }
        h1 { font-size: 2.5rem; margin: 0 0 10px 0; }
        .date-info { color: var(--text-secondary); }
        .category-card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 30px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
            border: 1px solid var(--border-color);
        }
        .category-header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 20px;
            border-bottom: 1px solid #f1f5f9;
            padding-bottom: 15px;
        }
        .category-title { font-size: 1.8rem; font-weight: 800; color: #0f172a; }
        .sentiment { padding: 4px 12px; border-radius: 20px; font-weight: bold; }
        .positive { background: #dcfce7; color: #166534; }
        .negative { background: #fee2e2; color: #991b1b; }
        .neutral { background: #f1f5f9; color: #334155; }
        .summary { white-space: pre-wrap; }
        table { width: 100%; border-collapse: collapse; margin-top: 16px; font-size: 0.95rem; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 600; }
        .empty { text-align: center; color: var(--text-secondary); }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>📡 趋势雷达日报</h1>
            <div class="date-info">{{if .Date}}{{.Date}} • {{end}}覆盖 {{len .Reports}} 个分类 • 生成于 {{.GeneratedAt}}</div>
        </header>

        {{range .Reports}}
        <div class="category-card">
            <div class="category-header">
                <div class="category-title">{{.Category}}</div>
                <div class="sentiment {{sentimentClass .OverallSentimentScore}}">情绪: {{score .OverallSentimentScore}}</div>
            </div>
            <div class="summary">{{.Summary}}</div>
            {{if .TrendingTopics}}
            <table>
                <thead><tr><th>🔥 热门实体</th><th>提及</th><th>平均情绪</th></tr></thead>
                <tbody>
                {{range .TrendingTopics}}
                    <tr><td>{{.Topic}}</td><td>{{.Count}}</td><td class="{{sentimentClass .AverageSentiment}}">{{score .AverageSentiment}}</td></tr>
                {{end}}
                </tbody>
            </table>
            {{end}}
        </div>
        {{else}}
        <div class="empty">暂无报告</div>
        {{end}}
    </div>
</body>
</html>
`
