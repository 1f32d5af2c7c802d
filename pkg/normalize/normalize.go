// Package normalize 提供入库与查询共用的文本规范化。
// 同一语言的分块文本和查询必须经过同一个规范化函数，否则向量空间不一致。
package normalize

import (
	"strings"
	"unicode"

	"fatwa-rag-go/internal/model"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Normalize 按语言规范化文本。主语言原样返回。
func Normalize(text string, lang model.Language) string {
	switch lang {
	case model.LanguageSecondary:
		return Arabic(text)
	default:
		return text
	}
}

// Arabic 做检索用的阿拉伯语规范化：
// 去掉变音符号和 tatweel，统一 hamza 载体与 alef 变体，ة→ه，ى→ي，并折叠空白。
func Arabic(text string) string {
	t := transform.Chain(
		// NFKD 会把 أ إ آ ؤ ئ 拆成基础字母加组合符号，并展开 lam-alef 连字。
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) || r == tatweel
		})),
		runes.Map(func(r rune) rune {
			switch r {
			case 'ة':
				return 'ه'
			case 'ى':
				return 'ي'
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.Join(strings.Fields(out), " ")
}
