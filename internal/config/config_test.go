package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9000\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %q, want 9000", cfg.Server.Port)
	}
	r := cfg.Retrieval
	if r.TopK != 5 {
		t.Errorf("TopK = %d, want 5", r.TopK)
	}
	if r.MaxContextTokens != 500 {
		t.Errorf("MaxContextTokens = %d, want 500", r.MaxContextTokens)
	}
	if r.SimilarityThreshold != 0.7 {
		t.Errorf("SimilarityThreshold = %v, want 0.7", r.SimilarityThreshold)
	}
	if r.HitScoreFloor != 0 {
		t.Errorf("HitScoreFloor = %v, want 0", r.HitScoreFloor)
	}
	if r.SourceOrder != "score" || r.ChunkStore != "tiered" {
		t.Errorf("SourceOrder/ChunkStore = %q/%q", r.SourceOrder, r.ChunkStore)
	}
	if cfg.Ingestion.ChunkSize != 1000 || cfg.Ingestion.ChunkOverlap != 200 {
		t.Errorf("Ingestion = %+v", cfg.Ingestion)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  top_k: 8
  max_documents: 3
  source_order: hit
  chunk_store: redis
  languages:
    en:
      index_name: custom-en
      embedding_model: en-model
embedding:
  model: base-model
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retrieval.TopK != 8 || cfg.Retrieval.MaxDocuments != 3 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}

	en := cfg.Retrieval.ForLanguage("en")
	if en.IndexName != "custom-en" {
		t.Errorf("en.IndexName = %q", en.IndexName)
	}
	if len(en.AnswerMarkers) != 1 || en.AnswerMarkers[0] != "answer:" {
		t.Errorf("en.AnswerMarkers = %v, want default", en.AnswerMarkers)
	}
	if got := cfg.EmbeddingFor("en").Model; got != "en-model" {
		t.Errorf("EmbeddingFor(en).Model = %q", got)
	}
	if got := cfg.EmbeddingFor("ar").Model; got != "base-model" {
		t.Errorf("EmbeddingFor(ar).Model = %q", got)
	}

	ar := cfg.Retrieval.ForLanguage("ar")
	if ar.IndexName != "fatawa-in-arabic" {
		t.Errorf("ar.IndexName = %q", ar.IndexName)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  top_k: 4\n")
	t.Setenv("FATWA_RETRIEVAL_TOP_K", "11")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retrieval.TopK != 11 {
		t.Errorf("TopK = %d, want 11", cfg.Retrieval.TopK)
	}
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero top_k", "retrieval:\n  top_k: 0\n"},
		{"bad threshold", "retrieval:\n  similarity_threshold: 1.5\n"},
		{"bad source order", "retrieval:\n  source_order: random\n"},
		{"bad chunk store", "retrieval:\n  chunk_store: pinecone\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
