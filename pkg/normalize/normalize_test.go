package normalize

import (
	"testing"

	"fatwa-rag-go/internal/model"
)

func TestArabic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips tashkeel", "الصَّلَاةُ", "الصلاه"},
		{"hamza on alef", "أحمد إبراهيم آمن", "احمد ابراهيم امن"},
		{"hamza carriers", "مسؤول قائم", "مسوول قايم"},
		{"alef maksura", "على", "علي"},
		{"teh marbuta", "زكاة", "زكاه"},
		{"tatweel", "الـــحـج", "الحج"},
		{"collapses whitespace", "  ما   حكم\tالصيام \n ", "ما حكم الصيام"},
		{"lam alef ligature", "ﻻ", "لا"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Arabic(tt.input); got != tt.want {
				t.Errorf("Arabic(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePrimaryUnchanged(t *testing.T) {
	in := "  What is the ruling on   Zakat?  "
	if got := Normalize(in, model.LanguagePrimary); got != in {
		t.Errorf("Normalize(en) = %q, want input unchanged", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "هَلْ يَجُوزُ الصَّلَاةُ فِي الطَّائِرَةِ؟"
	once := Normalize(in, model.LanguageSecondary)
	if twice := Normalize(once, model.LanguageSecondary); twice != once {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
}
