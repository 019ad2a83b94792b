package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/model"
)

const promptCN = `你是一个资深产品分析师。请根据提供的产品信息撰写一份深度分析报告。
请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{
	"overview": "产品综述（200字左右），说明产品解决什么问题、目标用户是谁、商业模式。",
	"analysis": "产品分析框架问答：获客方式、留存手段、变现路径。",
	"swot": "SWOT 分析，分别给出优势、劣势、机会、威胁。",
	"rating": 8,
	"key_insights": ["可执行洞察", "经验教训", "市场差异化建议"]
}
评分说明：rating 为 1-10 的整数，代表该产品的综合竞争力。`

const promptEN = `You are a senior product analyst. Write an in-depth analysis report based on the product information provided.
Return strictly the following JSON, without any markdown markup:
{
	"overview": "Product overview (about 200 words): the problem it solves, target users, business model.",
	"analysis": "Framework Q&A: user acquisition, retention, monetization.",
	"swot": "SWOT analysis with strengths, weaknesses, opportunities and threats.",
	"rating": 8,
	"key_insights": ["actionable insight", "lesson learned", "market differentiation suggestion"]
}
rating is an integer from 1 to 10 representing overall competitiveness.`

// systemPrompt 按语言返回系统提示
func systemPrompt(lang model.Language) string {
	if lang == model.LanguageEN {
		return "You are a JSON generator. Output only a JSON string."
	}
	return "你是一个 JSON 生成器。请只输出 JSON 字符串。"
}

// userPrompt 拼装产品信息与分析要求
func userPrompt(p model.ProductRecord) string {
	var sb strings.Builder
	if p.Language == model.LanguageEN {
		fmt.Fprintf(&sb, "Product: %s (rank %d)\n", p.Name, p.Rank)
		fmt.Fprintf(&sb, "Revenue: %s\n", p.Revenue)
		fmt.Fprintf(&sb, "Monthly visits: %s\n", p.MonthlyVisits)
		fmt.Fprintf(&sb, "Website: %s\n", p.URL)
		fmt.Fprintf(&sb, "Description: %s\n\n", enrichedDescription(p))
		sb.WriteString(promptEN)
	} else {
		fmt.Fprintf(&sb, "产品名称: %s（排名 %d）\n", p.Name, p.Rank)
		fmt.Fprintf(&sb, "收入: %s\n", p.Revenue)
		fmt.Fprintf(&sb, "月访问量: %s\n", p.MonthlyVisits)
		fmt.Fprintf(&sb, "产品链接: %s\n", p.URL)
		fmt.Fprintf(&sb, "产品描述: %s\n\n", enrichedDescription(p))
		sb.WriteString(promptCN)
	}
	return sb.String()
}

// enrichedDescription 描述过短时抓取产品页正文补充上下文
func enrichedDescription(p model.ProductRecord) string {
	desc := p.Description
	if len(desc) >= 200 || p.URL == "" {
		return desc
	}

	fetched, err := fetchAndCleanContent(p.URL)
	if err != nil {
		logger.Log.Debugf("抓取产品页失败 [%s]: %v", p.Name, err)
		return desc
	}
	if len(fetched) > 5000 {
		fetched = fetched[:5000]
	}
	if len(fetched) > len(desc) {
		return fetched
	}
	return desc
}

// fetchAndCleanContent 抓取 URL 并提取核心文本
func fetchAndCleanContent(url string) (string, error) {
	article, err := readability.FromURL(url, 30*time.Second)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}
