package merge

import (
	"regexp"
	"strings"
)

var (
	codeBlockRe = regexp.MustCompile("```[\\s\\S]*?```")
	imageRe     = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	linkRe      = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	boldRe      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe    = regexp.MustCompile(`\*(.*?)\*`)
	inlineRe    = regexp.MustCompile("`([^`]*)`")
	listRe      = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	blankRe     = regexp.MustCompile(`\n{3,}`)
)

// MarkdownToPlaintext 把叙事文档转成适合写入表格单元的纯文本
func MarkdownToPlaintext(md string) string {
	text := codeBlockRe.ReplaceAllString(md, "")
	text = imageRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = inlineRe.ReplaceAllString(text, "$1")
	text = listRe.ReplaceAllString(text, "• ")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
