package model

import (
	"fmt"
	"strings"
)

// Language 标识一个语料语言，每种语言对应一个独立的索引命名空间。
type Language string

const (
	LanguagePrimary   Language = "en"
	LanguageSecondary Language = "ar"
)

// Languages 返回所有受支持的语言。
func Languages() []Language {
	return []Language{LanguagePrimary, LanguageSecondary}
}

// ParseLanguage 解析请求中的语言标签。
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english", "primary":
		return LanguagePrimary, nil
	case "ar", "arabic", "secondary":
		return LanguageSecondary, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

func (l Language) String() string {
	return string(l)
}
