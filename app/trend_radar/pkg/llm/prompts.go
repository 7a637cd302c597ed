package llm

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const extractFormat = `请严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{
  "ai_summary": "简洁、中立的文章摘要（50 词以内）",
  "sentiment_label": "Positive | Negative | Neutral",
  "sentiment_score": 0.0,
  "entities": [{"name": "实体名称，例如 NVIDIA 或 Blackwell GPU", "type": "COMPANY | PRODUCT | PERSON | TECHNOLOGY | OTHER"}]
}
sentiment_score 取值范围为 -1.0 到 1.0。`

const summarizeFormat = `请严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{
  "report_summary": "约 150 词的执行摘要，解释今日动态背后的原因",
  "overall_sentiment_score": 0.0,
  "trending_topics": [{"topic": "话题名称", "count": 0, "average_sentiment": 0.0}]
}
overall_sentiment_score 取值范围为 -1.0 到 1.0。`

// 变量使用 FString 语法；JSON 示例作为变量传入，避免花括号被解析
var extractTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage("你是一个严谨的新闻分析师，只输出 JSON。"),
	schema.UserMessage(`请分析下面这篇关于「{topic_keyword}」的新闻，使用 {language} 撰写摘要。

标题: {title}
摘要: {snippet}

任务：
1. 用 {language} 写一段简洁、中立的摘要。
2. 给出最准确的情感标签和 -1.0 到 1.0 之间的情感分数。
3. 抽取文中的关键实体（公司、产品、人物、技术等）。

{format_instructions}`),
)

var summarizeTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage("你是一位资深行业分析师，为管理层撰写每日简报，只输出 JSON。"),
	schema.UserMessage(`以下是「{category}」分类过去 24 小时的单篇文章分析结果：
{l1_data_json}

以下是该分类的热门实体统计（提及次数与平均情感）：
{entity_data_json}

请使用 {language} 撰写今日的执行简报，说明主要动态及其原因，并计算整体情感分数。

{format_instructions}`),
)
