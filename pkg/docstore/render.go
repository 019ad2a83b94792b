package docstore

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/product_radar/pkg/model"
)

// 页脚标记，Merger 依赖该行还原分析工具信息
const (
	toolLineCN = "🤖 分析工具: "
	toolLineEN = "🤖 Analysis Tool: "
)

// Render 将分析结果渲染为叙事文档（Markdown）
func Render(product model.ProductRecord, result model.AnalysisResult) string {
	if product.Language == model.LanguageEN {
		return renderEN(product, result)
	}
	return renderCN(product, result)
}

func renderCN(p model.ProductRecord, r model.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", p.Name)

	sb.WriteString("## 产品信息\n\n")
	fmt.Fprintf(&sb, "📊 排名: %d\n", p.Rank)
	fmt.Fprintf(&sb, "💰 收入: %s\n", p.Revenue)
	fmt.Fprintf(&sb, "👀 月访问量: %s\n", p.MonthlyVisits)
	fmt.Fprintf(&sb, "🔗 链接: %s\n\n", p.URL)

	fmt.Fprintf(&sb, "## 产品综述\n\n%s\n\n", r.Report.Overview)
	fmt.Fprintf(&sb, "## 产品分析框架\n\n%s\n\n", r.Report.Analysis)
	fmt.Fprintf(&sb, "## SWOT 分析\n\n%s\n\n", r.Report.SWOT)
	fmt.Fprintf(&sb, "## 评分\n\n%d/10\n\n", r.Report.Rating)

	sb.WriteString("## 关键洞察与建议\n\n")
	for _, insight := range r.Report.KeyInsights {
		fmt.Fprintf(&sb, "- %s\n", insight)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "⏱️ 分析时间: %s\n", r.ProducedAt.Format("2006年01月02日"))
	fmt.Fprintf(&sb, "%s%s\n", toolLineCN, r.Backend)
	return sb.String()
}

func renderEN(p model.ProductRecord, r model.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", p.Name)

	sb.WriteString("## Product Information\n\n")
	fmt.Fprintf(&sb, "📊 Rank: %d\n", p.Rank)
	fmt.Fprintf(&sb, "💰 Revenue: %s\n", p.Revenue)
	fmt.Fprintf(&sb, "👀 Monthly Visits: %s\n", p.MonthlyVisits)
	fmt.Fprintf(&sb, "🔗 Website: %s\n\n", p.URL)

	fmt.Fprintf(&sb, "## Overview\n\n%s\n\n", r.Report.Overview)
	fmt.Fprintf(&sb, "## Analysis Framework\n\n%s\n\n", r.Report.Analysis)
	fmt.Fprintf(&sb, "## SWOT Analysis\n\n%s\n\n", r.Report.SWOT)
	fmt.Fprintf(&sb, "## Rating\n\n%d/10\n\n", r.Report.Rating)

	sb.WriteString("## Key Insights and Recommendations\n\n")
	for _, insight := range r.Report.KeyInsights {
		fmt.Fprintf(&sb, "- %s\n", insight)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "⏱️ Analysis Time: %s\n", r.ProducedAt.Format("January 02, 2006"))
	fmt.Fprintf(&sb, "%s%s\n", toolLineEN, r.Backend)
	return sb.String()
}

// ExtractBackend 从文档页脚提取分析工具标识，找不到时返回空串
func ExtractBackend(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, toolLineCN) {
			return strings.TrimSpace(strings.TrimPrefix(line, toolLineCN))
		}
		if strings.HasPrefix(line, toolLineEN) {
			return strings.TrimSpace(strings.TrimPrefix(line, toolLineEN))
		}
	}
	return ""
}
