package blog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// PreviewLength 列表预览最大字符数
const PreviewLength = 300

// Preview 从富文本正文提取纯文本预览，截断到 PreviewLength 个字符
func Preview(content string) string {
	return truncate(PlainText(content), PreviewLength)
}

// SearchText 搜索用的全文：标题、完整正文纯文本与标签，统一转为小写
//
// 存储层对该字段做子串匹配，大小写折叠在这里完成，不依赖数据库的 LOWER。
func SearchText(title, content string, tags []string) string {
	parts := make([]string, 0, len(tags)+2)
	parts = append(parts, title, PlainText(content))
	parts = append(parts, tags...)
	return strings.ToLower(strings.Join(parts, "\n"))
}

// PlainText 从富文本正文提取全部纯文本
//
// 丢弃标签、图片及 script/style 内容，合并空白。
func PlainText(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace)
}
