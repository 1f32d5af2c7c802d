package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fatwa-rag-go/internal/model"
)

func TestConversationRepository(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	repo := NewConversationRepository(client, 4, time.Hour)

	id1, err := repo.GetOrCreateConversationID(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := repo.GetOrCreateConversationID(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if id1 == "" || id1 != id2 {
		t.Errorf("conversation id not stable: %q vs %q", id1, id2)
	}
	other, _ := repo.GetOrCreateConversationID(ctx, "s2")
	if other == id1 {
		t.Error("different sessions share a conversation id")
	}

	history, err := repo.GetConversationHistory(ctx, id1)
	if err != nil || len(history) != 0 {
		t.Fatalf("empty history = %v, %v", history, err)
	}

	var msgs []model.ChatMessage
	for i := 0; i < 6; i++ {
		msgs = append(msgs, model.ChatMessage{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}
	if err := repo.UpdateConversationHistory(ctx, id1, msgs); err != nil {
		t.Fatal(err)
	}
	history, err = repo.GetConversationHistory(ctx, id1)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 4 || history[0].Content != "m2" || history[3].Content != "m5" {
		t.Errorf("history not trimmed to last 4: %+v", history)
	}
}
