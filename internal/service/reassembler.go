package service

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/repository"
	"fatwa-rag-go/pkg/log"
)

// DocumentReassembler 把分散的命中分块还原为完整文档，并按最佳命中分数排序。
type DocumentReassembler struct {
	store          repository.ChunkStore
	markers        map[model.Language][]string
	maxFetchChunks int
}

// NewDocumentReassembler 创建文档重组器，答案标记和分块上限取自检索配置。
func NewDocumentReassembler(store repository.ChunkStore, retrievalCfg config.RetrievalConfig) *DocumentReassembler {
	markers := make(map[model.Language][]string)
	for _, lang := range model.Languages() {
		markers[lang] = retrievalCfg.ForLanguage(lang.String()).AnswerMarkers
	}
	return &DocumentReassembler{
		store:          store,
		markers:        markers,
		maxFetchChunks: retrievalCfg.MaxFetchChunks,
	}
}

// docAccumulator 是单次调用内对一个文档的累积状态。
type docAccumulator struct {
	docID       string
	totalChunks int
	known       map[int]string
	sourceURL   string
	bestScore   float64
}

// Reassemble 执行：按命中顺序累积文档 → 一次批量补取缺失分块 → 按序拼接 → 清理文本 → 按分数降序稳定排序。
// 补取失败时只使用已有分块，不向调用方返回错误。
func (r *DocumentReassembler) Reassemble(ctx context.Context, namespace string, lang model.Language, hits []model.ScoredHit) []model.ReassembledDocument {
	docs := make(map[string]*docAccumulator)
	var order []*docAccumulator
	admittedChunks := 0

	for _, hit := range hits {
		c := hit.Chunk
		acc, ok := docs[c.Key.DocumentID]
		if !ok {
			total := c.TotalChunks
			if total <= c.Key.ChunkIndex {
				total = c.Key.ChunkIndex + 1
			}
			// 已累计的分块数达到上限后不再接纳新文档，越过上限的那个文档仍被接纳
			if r.maxFetchChunks > 0 && admittedChunks >= r.maxFetchChunks {
				log.Debugf("[Reassembler] 分块总数达到上限 %d, 忽略文档 %s", r.maxFetchChunks, c.Key.DocumentID)
				continue
			}
			admittedChunks += total
			acc = &docAccumulator{
				docID:       c.Key.DocumentID,
				totalChunks: total,
				known:       make(map[int]string, total),
				sourceURL:   c.SourceURL,
				bestScore:   hit.Score,
			}
			docs[c.Key.DocumentID] = acc
			order = append(order, acc)
		} else if hit.Score > acc.bestScore {
			acc.bestScore = hit.Score
		}
		if c.Key.ChunkIndex < acc.totalChunks {
			acc.known[c.Key.ChunkIndex] = c.Text
		}
		if acc.sourceURL == "" {
			acc.sourceURL = c.SourceURL
		}
	}
	if len(order) == 0 {
		return []model.ReassembledDocument{}
	}

	var missing []model.ChunkKey
	for _, acc := range order {
		for i := 0; i < acc.totalChunks; i++ {
			if _, ok := acc.known[i]; !ok {
				missing = append(missing, model.ChunkKey{DocumentID: acc.docID, ChunkIndex: i})
			}
		}
	}

	if len(missing) > 0 {
		fetched, err := r.store.FetchMany(ctx, namespace, missing)
		if err != nil {
			log.Warnf("[Reassembler] 批量补取分块失败, namespace: %s, 缺失 %d 个, 使用已有分块继续: %v", namespace, len(missing), err)
		}
		for key, c := range fetched {
			acc, ok := docs[key.DocumentID]
			if !ok || key.ChunkIndex < 0 || key.ChunkIndex >= acc.totalChunks {
				continue
			}
			if _, seen := acc.known[key.ChunkIndex]; !seen {
				acc.known[key.ChunkIndex] = c.Text
			}
			if acc.sourceURL == "" {
				acc.sourceURL = c.SourceURL
			}
		}
	}

	markers := r.markers[lang]
	result := make([]model.ReassembledDocument, 0, len(order))
	for _, acc := range order {
		parts := make([]string, 0, acc.totalChunks)
		for i := 0; i < acc.totalChunks; i++ {
			if text, ok := acc.known[i]; ok {
				parts = append(parts, text)
			}
		}
		if len(parts) < acc.totalChunks {
			log.Debugf("[Reassembler] 文档 %s 不完整: %d/%d 个分块", acc.docID, len(parts), acc.totalChunks)
		}
		result = append(result, model.ReassembledDocument{
			DocumentID: acc.docID,
			Text:       cleanDocumentText(strings.Join(parts, " "), markers),
			SourceURL:  acc.sourceURL,
			Score:      acc.bestScore,
		})
	}

	// order 已按首次出现排列，稳定排序保证同分时维持首次出现顺序
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}

// cleanDocumentText 去掉第一个答案标记及其之前的问题部分，并把不间断空格替换为普通空格。
// 多个标记按顺序尝试，使用第一个出现的。
func cleanDocumentText(text string, markers []string) string {
	for _, m := range markers {
		if m == "" {
			continue
		}
		if end := indexAfterFold(text, m); end >= 0 {
			text = text[end:]
			break
		}
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(text)
}

// indexAfterFold 不区分大小写地查找 substr，返回匹配结束位置，未找到返回 -1。
func indexAfterFold(s, substr string) int {
	for i := range s {
		if end, ok := hasPrefixFold(s[i:], substr); ok {
			return i + end
		}
	}
	return -1
}

func hasPrefixFold(s, prefix string) (int, bool) {
	pos := 0
	for _, pr := range prefix {
		if pos >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[pos:])
		if sr != pr && !strings.EqualFold(string(sr), string(pr)) {
			return 0, false
		}
		pos += size
	}
	return pos, true
}
