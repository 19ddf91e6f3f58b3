// Package normalize 把各上游的原始载荷转换为 domain 中的标准形状。
//
// 约束：所有函数都是纯函数；字段缺失或格式异常时返回“缺失”，从不返回错误。
package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// bbcodeRE 匹配目录描述里的 BBCode 风格标签：[tag]、[tag=...]、[tag attr]、[/tag]、[tag/]。
// 只认已知标签名，避免误删正文里的 "[1]" 之类内容。
var bbcodeRE = regexp.MustCompile(`(?i)\[/?(?:anime|manga|ranobe|character|person|comment|club|style|entry|url|img|image|poster|video|b|i|u|s|size|span|color|quote|code|list|item|br|hr|spoiler|spoiler_block|center|left|right|div|p|h[1-6]|replies|contest|collection|topic|user)(?:[=\s/][^\]]*)?\]`)

var (
	htmlTagRE = regexp.MustCompile(`<[a-zA-Z/!]`)
	htmlBrRE  = regexp.MustCompile(`(?i)<br\s*/?>`)
	spacesRE  = regexp.MustCompile(`[ \t\f\v]+`)
	blankRE   = regexp.MustCompile(`\n{3,}`)
)

// StripMarkup 去掉 BBCode 标签与残留 HTML，保留标签内的文本。
func StripMarkup(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = bbcodeRE.ReplaceAllString(s, "")
	if htmlTagRE.MatchString(s) {
		s = htmlBrRE.ReplaceAllString(s, "\n")
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spacesRE.ReplaceAllString(l, " "))
	}
	s = blankRE.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return norm.NFC.String(strings.TrimSpace(s))
}

// CleanText 规范化单行文本（标题、名称）：NFC + 合并空白。
func CleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

// UniqueStrings 去重并去掉空串，保持首次出现顺序。
func UniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = CleanText(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
