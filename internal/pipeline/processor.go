// Package pipeline 定义了问答数据的导入流程。
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/internal/repository"
	"fatwa-rag-go/pkg/embedding"
	"fatwa-rag-go/pkg/log"
	"fatwa-rag-go/pkg/normalize"
	"fatwa-rag-go/pkg/tasks"

	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"
)

// ObjectSource 打开对象存储中的导出文件。
type ObjectSource interface {
	Open(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// VectorWriter 维护向量索引中的分块。
type VectorWriter interface {
	DeleteDocument(ctx context.Context, indexName, docID string) error
	IndexChunks(ctx context.Context, indexName string, docs []model.EsChunkDocument) error
}

// Stats 汇总一次导入的结果。
type Stats struct {
	Documents int
	Skipped   int
	Chunks    int
}

// Processor 封装了导入流程的所有依赖。
type Processor struct {
	embedders    map[model.Language]embedding.Client
	chunks       repository.ChunkWriter
	vectors      VectorWriter
	objects      ObjectSource
	retrievalCfg config.RetrievalConfig
	ingestionCfg config.IngestionConfig
	batchSize    int
}

// NewProcessor 创建一个新的 Processor 实例。objects 为 nil 时只能通过 Ingest 导入本地数据。
func NewProcessor(
	embedders map[model.Language]embedding.Client,
	chunks repository.ChunkWriter,
	vectors VectorWriter,
	objects ObjectSource,
	retrievalCfg config.RetrievalConfig,
	ingestionCfg config.IngestionConfig,
	embeddingCfg config.EmbeddingConfig,
) *Processor {
	batch := embeddingCfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	return &Processor{
		embedders:    embedders,
		chunks:       chunks,
		vectors:      vectors,
		objects:      objects,
		retrievalCfg: retrievalCfg,
		ingestionCfg: ingestionCfg,
		batchSize:    batch,
	}
}

// Process 处理一个 Kafka 导入任务：下载导出文件并导入其中的全部问答。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	lang, err := model.ParseLanguage(task.Language)
	if err != nil {
		return err
	}
	if p.objects == nil {
		return errors.New("object source is not configured")
	}

	log.Infof("[Processor] 开始处理导入任务, object: %s, lang: %s", task.ObjectName, lang)
	rc, err := p.objects.Open(ctx, task.ObjectName)
	if err != nil {
		return err
	}
	defer rc.Close()

	dump, err := DecodeDump(rc)
	if err != nil {
		return fmt.Errorf("解析导出文件 %s 失败: %w", task.ObjectName, err)
	}
	stats, err := p.Ingest(ctx, lang, dump.Data, nil)
	if err != nil {
		return err
	}
	log.Infof("[Processor] 导入任务完成, object: %s, 文档 %d, 跳过 %d, 分块 %d",
		task.ObjectName, stats.Documents, stats.Skipped, stats.Chunks)
	return nil
}

// DecodeDump 解析问答导出文件。同时接受 {"data": [...]} 和裸数组两种格式。
func DecodeDump(r io.Reader) (model.QADump, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return model.QADump{}, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return model.QADump{}, errors.New("导出文件内容为空")
	}
	var dump model.QADump
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &dump.Data)
	} else {
		err = json.Unmarshal(raw, &dump)
	}
	if err != nil {
		return model.QADump{}, err
	}
	return dump, nil
}

// Ingest 并发导入问答。没有答案或没有 ID 的条目被跳过；同一 ID 只保留最后一条。
// onProgress 在每处理完一条问答后被调用，可以为 nil。
func (p *Processor) Ingest(ctx context.Context, lang model.Language, items []model.QAItem, onProgress func()) (Stats, error) {
	embedder, ok := p.embedders[lang]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", model.ErrUnsupportedLanguage, lang)
	}
	lc := p.retrievalCfg.ForLanguage(lang.String())

	var stats Stats
	latest := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" || strings.TrimSpace(item.Answer) == "" {
			stats.Skipped++
			if onProgress != nil {
				onProgress()
			}
			continue
		}
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		} else {
			stats.Skipped++
			if onProgress != nil {
				onProgress()
			}
		}
		latest[id] = i
	}

	concurrency := p.ingestionCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var chunkCount atomic.Int64
	for _, id := range order {
		item := items[latest[id]]
		item.ID = id
		g.Go(func() error {
			n, err := p.ingestItem(gctx, lang, lc, embedder, item)
			if err != nil {
				return fmt.Errorf("导入文档 %s 失败: %w", item.ID, err)
			}
			chunkCount.Add(int64(n))
			if onProgress != nil {
				onProgress()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Documents = len(order)
	stats.Chunks = int(chunkCount.Load())
	return stats, nil
}

func (p *Processor) ingestItem(ctx context.Context, lang model.Language, lc config.LanguageConfig, embedder embedding.Client, item model.QAItem) (int, error) {
	content := fmt.Sprintf("%s: %s\n%s: %s", lc.QuestionLabel, strings.TrimSpace(item.Question), lc.AnswerLabel, strings.TrimSpace(item.Answer))
	pieces, err := splitText(content, p.ingestionCfg.ChunkSize, p.ingestionCfg.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("切分文档 %s 失败: %w", item.ID, err)
	}
	for i := range pieces {
		pieces[i] = normalize.Normalize(pieces[i], lang)
	}

	vectors := make([][]float32, 0, len(pieces))
	for start := 0; start < len(pieces); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch, err := embedder.CreateEmbeddings(ctx, pieces[start:end])
		if err != nil {
			return 0, fmt.Errorf("向量化失败: %w", err)
		}
		vectors = append(vectors, batch...)
	}

	chunks := make([]model.Chunk, len(pieces))
	docs := make([]model.EsChunkDocument, len(pieces))
	for i, text := range pieces {
		chunks[i] = model.Chunk{
			Key:         model.ChunkKey{DocumentID: item.ID, ChunkIndex: i},
			Text:        text,
			TotalChunks: len(pieces),
			SourceURL:   item.Source,
		}
		docs[i] = model.EsChunkDocument{
			DocID:        item.ID,
			ChunkIndex:   i,
			Text:         text,
			TotalChunks:  len(pieces),
			SourceURL:    item.Source,
			Language:     lang.String(),
			Vector:       vectors[i],
			ModelVersion: embedder.Model(),
		}
	}

	// 先删后写，重复导入同一文档不会留下多余的分块
	if err := p.chunks.DeleteDocument(ctx, lc.IndexName, item.ID); err != nil {
		return 0, err
	}
	if err := p.chunks.PutChunks(ctx, lc.IndexName, chunks); err != nil {
		return 0, err
	}
	if err := p.vectors.DeleteDocument(ctx, lc.IndexName, item.ID); err != nil {
		return 0, err
	}
	if err := p.vectors.IndexChunks(ctx, lc.IndexName, docs); err != nil {
		return 0, err
	}
	log.Debugf("[Processor] 文档 %s 已导入 %d 个分块", item.ID, len(pieces))
	return len(pieces), nil
}

// splitText 依次按段落、换行、空格切分文本，分块长度按 rune 计算，相邻分块重叠 chunkOverlap 个字符。
// 只有单个词超过 chunkSize 时才会在词内切开。
func splitText(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if chunkSize <= 0 {
		return []string{text}, nil
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return splitter.SplitText(text)
}
