package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
)

func newTestRetrieval(index *fakeVectorIndex, store *fakeChunkStore, mutate func(*config.RetrievalConfig)) RetrievalService {
	cfg := config.RetrievalConfig{
		TopK:                5,
		MaxContextTokens:    500,
		SimilarityThreshold: 0.7,
		SourceOrder:         "score",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRetrievalService(index, NewDocumentReassembler(store, cfg), NewContextBudgeter(nil, cfg.MaxDocuments), cfg)
}

func TestRetrieveReassemblesDocument(t *testing.T) {
	store := newFakeChunkStore()
	store.add(ns,
		chunk("D1", 0, 3, "Question: is it allowed? Answer: alpha", "https://x/d1"),
		chunk("D1", 2, 3, "gamma", "https://x/d1"),
	)
	index := &fakeVectorIndex{hits: []model.ScoredHit{hit(chunk("D1", 1, 3, "beta", "https://x/d1"), 0.9)}}

	res, err := newTestRetrieval(index, store, nil).Retrieve(context.Background(), "is it allowed", model.LanguagePrimary)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if res.ContextText != "alpha beta gamma" {
		t.Errorf("ContextText = %q", res.ContextText)
	}
	if !reflect.DeepEqual(res.SourceURLs, []string{"https://x/d1"}) {
		t.Errorf("SourceURLs = %v", res.SourceURLs)
	}
	if index.lastK != 5 {
		t.Errorf("k = %d, want 5", index.lastK)
	}
}

func TestRetrieveNearDuplicateKeptInSources(t *testing.T) {
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("D2", 0, 1, "Smoking is prohibited because it harms the body", "https://x/d2"), 0.8),
		hit(chunk("D3", 0, 1, "Smoking is prohibited because it harms the body.", "https://x/d3"), 0.3),
	}}

	res, err := newTestRetrieval(index, newFakeChunkStore(), nil).Retrieve(context.Background(), "smoking", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextText != "Smoking is prohibited because it harms the body" {
		t.Errorf("ContextText = %q", res.ContextText)
	}
	if !reflect.DeepEqual(res.SourceURLs, []string{"https://x/d2", "https://x/d3"}) {
		t.Errorf("SourceURLs = %v", res.SourceURLs)
	}
}

func TestRetrieveBudgetTruncatesContextNotSources(t *testing.T) {
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("A", 0, 1, words(300, "alpha"), "https://x/a"), 0.9),
		hit(chunk("B", 0, 1, words(300, "bravo"), "https://x/b"), 0.8),
	}}

	res, err := newTestRetrieval(index, newFakeChunkStore(), nil).Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if CountTokens(res.ContextText) != 300 {
		t.Errorf("context tokens = %d, want 300", CountTokens(res.ContextText))
	}
	if len(res.SourceURLs) != 2 {
		t.Errorf("SourceURLs = %v, want both", res.SourceURLs)
	}
}

func TestRetrieveJoinsDocumentsInScoreOrder(t *testing.T) {
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("Low", 0, 1, "zakat is due", "https://x/low"), 0.5),
		hit(chunk("High", 0, 1, "fasting is obligatory", "https://x/high"), 0.9),
	}}

	res, err := newTestRetrieval(index, newFakeChunkStore(), nil).Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextText != "fasting is obligatory\n\nzakat is due" {
		t.Errorf("ContextText = %q", res.ContextText)
	}
	if !reflect.DeepEqual(res.SourceURLs, []string{"https://x/high", "https://x/low"}) {
		t.Errorf("SourceURLs = %v", res.SourceURLs)
	}
}

func TestRetrieveSourceOrderHit(t *testing.T) {
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("Low", 0, 1, "zakat is due", "https://x/low"), 0.5),
		hit(chunk("High", 0, 1, "fasting is obligatory", "https://x/high"), 0.9),
	}}
	svc := newTestRetrieval(index, newFakeChunkStore(), func(c *config.RetrievalConfig) { c.SourceOrder = "hit" })

	res, err := svc.Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.SourceURLs, []string{"https://x/low", "https://x/high"}) {
		t.Errorf("SourceURLs = %v", res.SourceURLs)
	}
}

func TestRetrieveHitScoreFloor(t *testing.T) {
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("A", 0, 1, "fasting is obligatory", "https://x/a"), 0.9),
		hit(chunk("B", 0, 1, "zakat is due", "https://x/b"), 0.2),
	}}
	svc := newTestRetrieval(index, newFakeChunkStore(), func(c *config.RetrievalConfig) { c.HitScoreFloor = 0.5 })

	res, err := svc.Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.SourceURLs, []string{"https://x/a"}) {
		t.Errorf("SourceURLs = %v", res.SourceURLs)
	}
}

func TestRetrieveNoHits(t *testing.T) {
	store := newFakeChunkStore()
	res, err := newTestRetrieval(&fakeVectorIndex{}, store, nil).Retrieve(context.Background(), "q", model.LanguageSecondary)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextText != "" || res.SourceURLs == nil || len(res.SourceURLs) != 0 {
		t.Errorf("result = %+v, want empty context and empty non-nil sources", res)
	}
	if len(store.calls) != 0 {
		t.Errorf("FetchMany called %d times", len(store.calls))
	}
}

func TestRetrievePropagatesUnavailable(t *testing.T) {
	index := &fakeVectorIndex{err: fmt.Errorf("%w: elasticsearch search: %v", model.ErrRetrievalUnavailable, errBackendDown)}
	_, err := newTestRetrieval(index, newFakeChunkStore(), nil).Retrieve(context.Background(), "q", model.LanguagePrimary)
	if !errors.Is(err, model.ErrRetrievalUnavailable) {
		t.Errorf("err = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestRetrieveMaxDocuments(t *testing.T) {
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("A", 0, 1, "fasting is obligatory", "https://x/a"), 0.9),
		hit(chunk("B", 0, 1, "zakat is due", "https://x/b"), 0.8),
	}}
	svc := newTestRetrieval(index, newFakeChunkStore(), func(c *config.RetrievalConfig) { c.MaxDocuments = 1 })

	res, err := svc.Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if res.ContextText != "fasting is obligatory" || len(res.SourceURLs) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestRetrieveIdempotent(t *testing.T) {
	store := newFakeChunkStore()
	store.add(ns, chunk("D1", 0, 2, "x", "https://x/d1"))
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("D1", 1, 2, "y", "https://x/d1"), 0.7),
		hit(chunk("D2", 0, 1, "w", "https://x/d2"), 0.6),
	}}
	svc := newTestRetrieval(index, store, nil)

	first, err := svc.Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestRetrieveFetchCapKeepsAllSources(t *testing.T) {
	store := newFakeChunkStore()
	index := &fakeVectorIndex{hits: []model.ScoredHit{
		hit(chunk("Big", 0, 15, "big answer", "https://x/big"), 0.9),
		hit(chunk("Next", 0, 10, "next answer", "https://x/next"), 0.8),
		hit(chunk("Third", 0, 2, "third answer", "https://x/third"), 0.7),
	}}
	svc := newTestRetrieval(index, store, func(c *config.RetrievalConfig) {
		c.MaxFetchChunks = 20
	})

	res, err := svc.Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://x/big", "https://x/next", "https://x/third"}
	if !reflect.DeepEqual(res.SourceURLs, want) {
		t.Errorf("SourceURLs = %v, want %v", res.SourceURLs, want)
	}
	for _, k := range store.calls[0] {
		if k.DocumentID == "Third" {
			t.Errorf("fetched chunks of a document past the cap: %v", k)
		}
	}
}

func TestRetrieveSourcesFallBackToFetchedChunk(t *testing.T) {
	store := newFakeChunkStore()
	store.add(ns, chunk("D", 0, 2, "Answer: first", "https://x/d"))
	index := &fakeVectorIndex{hits: []model.ScoredHit{hit(chunk("D", 1, 2, "second", ""), 0.8)}}

	res, err := newTestRetrieval(index, store, nil).Retrieve(context.Background(), "q", model.LanguagePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.SourceURLs, []string{"https://x/d"}) {
		t.Errorf("SourceURLs = %v", res.SourceURLs)
	}
}
