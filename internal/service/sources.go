package service

import (
	"net/url"
	"strings"

	"fatwa-rag-go/internal/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatSources 把来源链接渲染成追加在回答末尾的 markdown 列表。
func FormatSources(urls []string, lang model.Language, label string) string {
	if len(urls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n ##### ")
	b.WriteString(label)
	b.WriteString(":")
	for _, u := range urls {
		b.WriteString("\n- [")
		b.WriteString(TitleFromURL(u, lang))
		b.WriteString("](")
		b.WriteString(u)
		b.WriteString(")")
	}
	return b.String()
}

// TitleFromURL 从链接最后一段路径生成可读标题。
func TitleFromURL(rawURL string, lang model.Language) string {
	trimmed := strings.TrimRight(rawURL, "/")
	segment := trimmed[strings.LastIndex(trimmed, "/")+1:]

	if lang == model.LanguageSecondary || strings.Contains(rawURL, "ar/") {
		if decoded, err := url.PathUnescape(segment); err == nil {
			segment = decoded
		}
		return strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(segment))
	}

	if i := strings.Index(segment, "."); i >= 0 {
		segment = segment[:i]
	}
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	return cases.Title(language.English).String(segment)
}
