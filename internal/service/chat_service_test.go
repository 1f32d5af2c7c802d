package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/internal/model"
	"fatwa-rag-go/pkg/llm"

	"github.com/gorilla/websocket"
)

type stubRetrieval struct {
	result model.RetrievalResult
	err    error
}

func (s stubRetrieval) Retrieve(ctx context.Context, query string, lang model.Language) (model.RetrievalResult, error) {
	return s.result, s.err
}

type stubLLM struct {
	chunks   []string
	messages []llm.Message
}

func (s *stubLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, w llm.MessageWriter) error {
	s.messages = messages
	for _, c := range s.chunks {
		if err := w.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

type memoryConversations struct {
	history map[string][]model.ChatMessage
}

func (m *memoryConversations) GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return m.history[sessionID], nil
}

func (m *memoryConversations) AddExchange(ctx context.Context, sessionID, question, answer string) error {
	m.history[sessionID] = append(m.history[sessionID],
		model.ChatMessage{Role: "user", Content: question},
		model.ChatMessage{Role: "assistant", Content: answer},
	)
	return nil
}

type frameRecorder struct {
	frames []map[string]interface{}
}

func (r *frameRecorder) WriteMessage(_ int, data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.frames = append(r.frames, m)
	return nil
}

func TestStreamResponse(t *testing.T) {
	retrieval := stubRetrieval{result: model.RetrievalResult{
		ContextText: "Fasting is obligatory.",
		SourceURLs:  []string{"https://example.org/fatwa/fasting-in-ramadan.html"},
	}}
	llmStub := &stubLLM{chunks: []string{"<think>hmm</think>", "Yes, ", "it is."}}
	convs := &memoryConversations{history: map[string][]model.ChatMessage{
		"s1": {{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}},
	}}
	svc := NewChatService(retrieval, llmStub, convs, config.LLMConfig{Prompt: config.LLMPromptConfig{Rules: "Answer from the references."}}, config.RetrievalConfig{})

	rec := &frameRecorder{}
	if err := svc.StreamResponse(context.Background(), "Is fasting obligatory?", model.LanguagePrimary, "s1", rec, nil); err != nil {
		t.Fatalf("StreamResponse failed: %v", err)
	}

	if len(llmStub.messages) != 4 || llmStub.messages[0].Role != "system" || llmStub.messages[3].Content != "Is fasting obligatory?" {
		t.Fatalf("messages = %+v", llmStub.messages)
	}
	sys := llmStub.messages[0].Content
	if !strings.HasPrefix(sys, "Answer from the references.\n\n<<REF>>\nFasting is obligatory.\n<<END>>") {
		t.Errorf("system message = %q", sys)
	}

	last := rec.frames[len(rec.frames)-1]
	if last["type"] != "completion" {
		t.Errorf("last frame = %v, want completion", last)
	}
	sources := rec.frames[len(rec.frames)-2]["chunk"].(string)
	if sources != "\n\n ##### Sources:\n- [Fasting In Ramadan](https://example.org/fatwa/fasting-in-ramadan.html)" {
		t.Errorf("sources frame = %q", sources)
	}

	saved := convs.history["s1"]
	if len(saved) != 4 {
		t.Fatalf("saved history = %+v", saved)
	}
	if answer := saved[3].Content; answer != "Yes, it is." {
		t.Errorf("saved answer = %q, want the model output without sources", answer)
	}
}

func TestStreamResponseNoResult(t *testing.T) {
	llmStub := &stubLLM{chunks: []string{"لا أعلم"}}
	convs := &memoryConversations{history: map[string][]model.ChatMessage{}}
	svc := NewChatService(stubRetrieval{result: model.RetrievalResult{SourceURLs: []string{}}}, llmStub, convs, config.LLMConfig{}, config.RetrievalConfig{})

	rec := &frameRecorder{}
	if err := svc.StreamResponse(context.Background(), "سؤال", model.LanguageSecondary, "s2", rec, nil); err != nil {
		t.Fatal(err)
	}
	want := config.RetrievalConfig{}.ForLanguage("ar").NoResultText
	if !strings.Contains(llmStub.messages[0].Content, want) {
		t.Errorf("system message = %q, want no-result text", llmStub.messages[0].Content)
	}
	if len(rec.frames) != 2 {
		t.Errorf("frames = %v, want answer and completion only", rec.frames)
	}
}

func TestStreamResponseRetrievalUnavailable(t *testing.T) {
	llmStub := &stubLLM{}
	svc := NewChatService(stubRetrieval{err: model.ErrRetrievalUnavailable}, llmStub, &memoryConversations{history: map[string][]model.ChatMessage{}}, config.LLMConfig{}, config.RetrievalConfig{})

	err := svc.StreamResponse(context.Background(), "q", model.LanguagePrimary, "s", &frameRecorder{}, nil)
	if !errors.Is(err, model.ErrRetrievalUnavailable) {
		t.Errorf("err = %v", err)
	}
	if llmStub.messages != nil {
		t.Error("LLM called despite retrieval failure")
	}
}

func TestStreamResponseStopFlag(t *testing.T) {
	llmStub := &stubLLM{chunks: []string{"a", "b"}}
	convs := &memoryConversations{history: map[string][]model.ChatMessage{}}
	svc := NewChatService(stubRetrieval{}, llmStub, convs, config.LLMConfig{}, config.RetrievalConfig{})

	rec := &frameRecorder{}
	if err := svc.StreamResponse(context.Background(), "q", model.LanguagePrimary, "s", rec, func() bool { return true }); err != nil {
		t.Fatal(err)
	}
	if len(rec.frames) != 1 || len(convs.history["s"]) != 0 {
		t.Errorf("frames = %v, history = %v", rec.frames, convs.history["s"])
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		url  string
		lang model.Language
		want string
	}{
		{"https://example.org/en/fatwa/ruling-on_smoking.html", model.LanguagePrimary, "Ruling On Smoking"},
		{"https://example.org/fatwa/ZAKAT-ON-GOLD/", model.LanguagePrimary, "Zakat On Gold"},
		{"https://example.org/ar/fatwa/حكم-الصيام", model.LanguagePrimary, "حكم الصيام"},
		{"https://example.org/fatwa/%D8%AD%D9%83%D9%85_%D8%A7%D9%84%D8%B2%D9%83%D8%A7%D8%A9", model.LanguageSecondary, "حكم الزكاة"},
	}
	for _, tt := range tests {
		if got := TitleFromURL(tt.url, tt.lang); got != tt.want {
			t.Errorf("TitleFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
