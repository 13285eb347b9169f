package utils

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	// 摘要只要纯文本，所有标签都去掉
	stripPolicy = bluemonday.StrictPolicy()
)

// PlainText 把 markdown 正文渲染后去掉全部 HTML，合并空白
func PlainText(source string) string {
	var buf bytes.Buffer
	text := source
	if err := mdParser.Convert([]byte(source), &buf); err == nil {
		// 块级元素之间补空格，避免段落粘连
		withBreaks := strings.NewReplacer("</p>", " </p>", "<br>", " ", "<br />", " ", "</li>", " </li>", "</h1>", " </h1>", "</h2>", " </h2>", "</h3>", " </h3>").Replace(buf.String())
		text = stripPolicy.Sanitize(withBreaks)
	}
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

// Excerpt 返回不超过 max 个字符的纯文本摘要，截断时末尾加省略号
func Excerpt(source string, max int) string {
	text := PlainText(source)
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := strings.TrimSpace(string(runes[:max-1]))
	return cut + "…"
}
