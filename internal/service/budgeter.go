package service

import (
	"strings"

	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"

	"github.com/pmezard/go-difflib/difflib"
)

// Summarizer 在单个文档本身超出预算时被调用。默认实现原样返回。
type Summarizer interface {
	Summarize(doc model.ReassembledDocument, maxTokens int) model.ReassembledDocument
}

type identitySummarizer struct{}

func (identitySummarizer) Summarize(doc model.ReassembledDocument, _ int) model.ReassembledDocument {
	return doc
}

// ContextBudgeter 对已排序的文档做去重和 token 预算裁剪。
type ContextBudgeter struct {
	summarizer   Summarizer
	maxDocuments int
}

// NewContextBudgeter 创建预算器，maxDocuments 为 0 表示不限制文档数。
func NewContextBudgeter(summarizer Summarizer, maxDocuments int) *ContextBudgeter {
	if summarizer == nil {
		summarizer = identitySummarizer{}
	}
	return &ContextBudgeter{summarizer: summarizer, maxDocuments: maxDocuments}
}

// Select 单遍贪心选择：
// 空文本丢弃；与已选文档相似度达到阈值的跳过且不占预算；
// 已有选中文档时，超出预算即停止；第一个文档单独超出预算时仍整篇接受。
// 输出保持输入顺序。
func (b *ContextBudgeter) Select(docs []model.ReassembledDocument, maxTokens int, similarityThreshold float64) []model.ReassembledDocument {
	selected := make([]model.ReassembledDocument, 0, len(docs))
	used := 0

	for _, doc := range docs {
		if b.maxDocuments > 0 && len(selected) >= b.maxDocuments {
			break
		}
		if strings.TrimSpace(doc.Text) == "" {
			log.Debugf("[ContextBudgeter] 丢弃空文档 %s", doc.DocumentID)
			continue
		}
		if dup, ratio := isNearDuplicate(doc.Text, selected, similarityThreshold); dup {
			log.Debugf("[ContextBudgeter] 文档 %s 与已选文档相似度 %.2f, 跳过", doc.DocumentID, ratio)
			continue
		}

		tokens := CountTokens(doc.Text)
		if used+tokens > maxTokens {
			if len(selected) > 0 {
				break
			}
			doc = b.summarizer.Summarize(doc, maxTokens)
			tokens = CountTokens(doc.Text)
		}
		selected = append(selected, doc)
		used += tokens
	}
	return selected
}

// CountTokens 以空白分隔的单词数近似 token 数。
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

func isNearDuplicate(text string, selected []model.ReassembledDocument, threshold float64) (bool, float64) {
	for _, s := range selected {
		if ratio := Similarity(text, s.Text); ratio >= threshold {
			return true, ratio
		}
	}
	return false, 0
}

// Similarity 返回两段文本在忽略大小写后按字符计算的序列匹配比例，范围 [0, 1]。
// 关闭 autojunk：长文本里的高频字符(空格、常见字母)不能被当作噪声剔除。
func Similarity(a, b string) float64 {
	m := difflib.NewMatcherWithJunk(splitRunes(strings.ToLower(a)), splitRunes(strings.ToLower(b)), false, nil)
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
