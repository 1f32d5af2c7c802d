package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/embedding"
	"fatwa-rag-go/pkg/normalize"

	"github.com/elastic/go-elasticsearch/v8"
)

type fakeEmbedder struct {
	texts []string
	err   error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake" }

func newESServer(t *testing.T, h http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

const searchResponse = `{"hits":{"hits":[
	{"_id":"D1-1","_score":0.91,"_source":{"doc_id":"D1","chunk_index":1,"text":"beta","total_chunks":3,"source_url":"https://x/d1"}},
	{"_id":"broken","_score":0.5,"_source":{"text":"?"}},
	{"_id":"fatwa-2024-0","_score":0.42,"_source":{"doc_id":"fatwa-2024","chunk_index":0,"text":"solo","total_chunks":1,"source_url":"https://x/f"}}
]}}`

func TestVectorIndexSearch(t *testing.T) {
	var path string
	var body map[string]interface{}
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse))
	})
	emb := &fakeEmbedder{}
	idx := NewVectorIndex(map[model.Language]embedding.Client{model.LanguagePrimary: emb}, client, config.RetrievalConfig{})

	hits, err := idx.Search(context.Background(), "Is fasting obligatory?", model.LanguagePrimary, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if path != "/fatawa-in-english/_search" {
		t.Errorf("path = %s", path)
	}
	knn, _ := body["knn"].(map[string]interface{})
	if knn["k"] != float64(5) || knn["num_candidates"] != float64(100) {
		t.Errorf("knn = %v", knn)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (malformed id skipped)", len(hits))
	}
	if hits[0].Chunk.Key != (model.ChunkKey{DocumentID: "D1", ChunkIndex: 1}) || hits[0].Score != 0.91 || hits[0].Chunk.TotalChunks != 3 {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if hits[0].Chunk.Score == nil || *hits[0].Chunk.Score != 0.91 {
		t.Errorf("chunk score not set")
	}
	if hits[1].Chunk.Key.DocumentID != "fatwa-2024" {
		t.Errorf("hyphenated document id parsed as %q", hits[1].Chunk.Key.DocumentID)
	}
}

func TestVectorIndexNormalizesArabicQuery(t *testing.T) {
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	})
	emb := &fakeEmbedder{}
	idx := NewVectorIndex(map[model.Language]embedding.Client{model.LanguageSecondary: emb}, client, config.RetrievalConfig{})

	query := "ما حُكْمُ الصَّلاةِ؟"
	if _, err := idx.Search(context.Background(), query, model.LanguageSecondary, 3); err != nil {
		t.Fatal(err)
	}
	if len(emb.texts) != 1 || emb.texts[0] != normalize.Normalize(query, model.LanguageSecondary) || emb.texts[0] == query {
		t.Errorf("embedded text = %q", emb.texts)
	}
}

func TestVectorIndexUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		embErr error
	}{
		{"elasticsearch error", http.StatusInternalServerError, nil},
		{"embedding error", http.StatusOK, errBackendDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
			})
			idx := NewVectorIndex(map[model.Language]embedding.Client{model.LanguagePrimary: &fakeEmbedder{err: tt.embErr}}, client, config.RetrievalConfig{})

			hits, err := idx.Search(context.Background(), "q", model.LanguagePrimary, 5)
			if !errors.Is(err, model.ErrRetrievalUnavailable) {
				t.Errorf("err = %v, want ErrRetrievalUnavailable", err)
			}
			if hits != nil {
				t.Errorf("hits = %v, want nil", hits)
			}
		})
	}
}

func TestVectorIndexUnsupportedLanguage(t *testing.T) {
	client := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected elasticsearch request")
	})
	idx := NewVectorIndex(map[model.Language]embedding.Client{model.LanguagePrimary: &fakeEmbedder{}}, client, config.RetrievalConfig{})
	_, err := idx.Search(context.Background(), "q", model.LanguageSecondary, 5)
	if !errors.Is(err, model.ErrUnsupportedLanguage) || !strings.Contains(err.Error(), "ar") {
		t.Errorf("err = %v", err)
	}
}
