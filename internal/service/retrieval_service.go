package service

import (
	"context"
	"sort"
	"strings"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/log"
)

// RetrievalService 是检索引擎对外的唯一入口。
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, lang model.Language) (model.RetrievalResult, error)
}

type retrievalService struct {
	index        VectorIndex
	reassembler  *DocumentReassembler
	budgeter     *ContextBudgeter
	retrievalCfg config.RetrievalConfig
}

// NewRetrievalService 组装检索网关，retrievalCfg 即检索策略。
func NewRetrievalService(index VectorIndex, reassembler *DocumentReassembler, budgeter *ContextBudgeter, retrievalCfg config.RetrievalConfig) RetrievalService {
	return &retrievalService{
		index:        index,
		reassembler:  reassembler,
		budgeter:     budgeter,
		retrievalCfg: retrievalCfg,
	}
}

// Retrieve 执行 检索 → 过滤低分命中 → 重组 → 预算裁剪 → 拼接上下文。
// 来源列表覆盖过滤后全部命中的文档，不受分块上限和预算影响。后端不可用的错误原样向上传递。
func (s *retrievalService) Retrieve(ctx context.Context, query string, lang model.Language) (model.RetrievalResult, error) {
	policy := s.retrievalCfg
	namespace := policy.ForLanguage(lang.String()).IndexName

	hits, err := s.index.Search(ctx, query, lang, policy.TopK)
	if err != nil {
		return model.RetrievalResult{}, err
	}

	if policy.HitScoreFloor > 0 {
		kept := hits[:0:0]
		for _, h := range hits {
			if h.Score >= policy.HitScoreFloor {
				kept = append(kept, h)
			}
		}
		if dropped := len(hits) - len(kept); dropped > 0 {
			log.Debugf("[RetrievalService] 过滤掉 %d 条低于 %.2f 的命中", dropped, policy.HitScoreFloor)
		}
		hits = kept
	}
	if len(hits) == 0 {
		log.Infof("[RetrievalService] 无相关文档, lang: %s", lang)
		return model.RetrievalResult{SourceURLs: []string{}}, nil
	}

	docs := s.reassembler.Reassemble(ctx, namespace, lang, hits)
	selected := s.budgeter.Select(docs, policy.MaxContextTokens, policy.SimilarityThreshold)

	texts := make([]string, 0, len(selected))
	for _, d := range selected {
		texts = append(texts, d.Text)
	}

	var sources []string
	if policy.SourceOrder == "hit" {
		sources = sourcesFromHits(hits)
	} else {
		sources = sourcesByScore(hits, docs)
	}

	log.Infof("[RetrievalService] 检索完成, lang: %s, 命中 %d, 文档 %d, 进入上下文 %d, 来源 %d",
		lang, len(hits), len(docs), len(selected), len(sources))
	return model.RetrievalResult{
		ContextText: strings.Join(texts, "\n\n"),
		SourceURLs:  sources,
	}, nil
}

// sourcesByScore 按文档最佳命中分数降序排列来源，同分保持首次出现顺序。
// 命中分块没有来源时使用重组文档中补取到的来源。
func sourcesByScore(hits []model.ScoredHit, docs []model.ReassembledDocument) []string {
	fetched := make(map[string]string, len(docs))
	for _, d := range docs {
		fetched[d.DocumentID] = d.SourceURL
	}

	type docSource struct {
		url   string
		score float64
	}
	byDoc := make(map[string]*docSource, len(hits))
	order := make([]*docSource, 0, len(hits))
	for _, h := range hits {
		id := h.Chunk.Key.DocumentID
		ds, ok := byDoc[id]
		if !ok {
			ds = &docSource{url: h.Chunk.SourceURL, score: h.Score}
			byDoc[id] = ds
			order = append(order, ds)
			continue
		}
		if h.Score > ds.score {
			ds.score = h.Score
		}
		if ds.url == "" {
			ds.url = h.Chunk.SourceURL
		}
	}
	for id, ds := range byDoc {
		if ds.url == "" {
			ds.url = fetched[id]
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].score > order[j].score
	})

	seen := make(map[string]struct{}, len(order))
	sources := make([]string, 0, len(order))
	for _, ds := range order {
		if ds.url == "" {
			continue
		}
		if _, ok := seen[ds.url]; ok {
			continue
		}
		seen[ds.url] = struct{}{}
		sources = append(sources, ds.url)
	}
	return sources
}

func sourcesFromHits(hits []model.ScoredHit) []string {
	seen := make(map[string]struct{}, len(hits))
	sources := make([]string, 0, len(hits))
	for _, h := range hits {
		u := h.Chunk.SourceURL
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		sources = append(sources, u)
	}
	return sources
}
