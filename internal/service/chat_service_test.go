package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/config"
	"github.com/xxxsen/notebook/internal/model"
)

func newTestChatService(notes *fakeNoteStore, chat *fakeChat, cfg config.LLMConfig, ollama *fakeOllama) *ChatService {
	contexts := NewContextService(notes, newFakeSourceStore(), &fakeEmbedder{})
	return NewChatService(contexts, chat, NewLLMStatusService(cfg, chat, ollama))
}

func configured() config.LLMConfig {
	return config.LLMConfig{Provider: "openai", OpenAI: config.ProviderConfig{APIKey: "sk"}}
}

func TestAsk_BuildsContextAndSources(t *testing.T) {
	notes := newFakeNoteStore()
	notes.matches = []model.NoteMatch{
		{Note: model.Note{ID: "a", Title: "Alpha", Content: strings.Repeat("x", 2500)}, Similarity: 0.912345},
		{Note: model.Note{ID: "b", Title: "Beta", Content: "short"}, Similarity: 0.5},
	}
	chat := &fakeChat{reply: "answer"}
	svc := newTestChatService(notes, chat, configured(), &fakeOllama{})

	out, err := svc.Ask(context.Background(), "u1", Question{Text: "what?"})
	require.NoError(t, err)
	require.Equal(t, "answer", out.Answer)
	require.Equal(t, []SourceRef{{ID: "a", Title: "Alpha", Similarity: 0.9123}, {ID: "b", Title: "Beta", Similarity: 0.5}}, out.Sources)

	req := chat.last()
	require.Equal(t, qaSystemPrompt, req.SystemPrompt)
	require.Equal(t, 1000, req.MaxTokens)
	require.InDelta(t, 0.7, *req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	expected := "Context from user's notes:\n\nNote 1: Alpha\n" + strings.Repeat("x", 2000) + "\n\n---\n\nNote 2: Beta\nshort"
	require.Equal(t, ai.Message{Role: ai.RoleSystem, Content: expected}, req.Messages[0])
	require.Equal(t, ai.Message{Role: ai.RoleUser, Content: "what?"}, req.Messages[1])
	require.Equal(t, DefaultContextThreshold, notes.lastQuery.Threshold)
	require.Equal(t, DefaultContextLimit, notes.lastQuery.Limit)
}

func TestAsk_NoNotesAndHistoryWindow(t *testing.T) {
	chat := &fakeChat{reply: "ok"}
	svc := newTestChatService(newFakeNoteStore(), chat, configured(), &fakeOllama{})
	history := make([]ai.Message, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, ai.Message{Role: ai.RoleUser, Content: fmt.Sprintf("h%d", i)})
	}
	out, err := svc.Ask(context.Background(), "u1", Question{Text: "q", History: history})
	require.NoError(t, err)
	require.Empty(t, out.Sources)

	msgs := chat.last().Messages
	require.Len(t, msgs, 12)
	require.Equal(t, "Context from user's notes:\n\nNo relevant notes found.", msgs[0].Content)
	require.Equal(t, "h4", msgs[1].Content)
	require.Equal(t, "h13", msgs[10].Content)
	require.Equal(t, "q", msgs[11].Content)
}

func TestAsk_ProviderUnavailable(t *testing.T) {
	chat := &fakeChat{provider: "ollama"}
	svc := newTestChatService(newFakeNoteStore(), chat, config.LLMConfig{Provider: "ollama"}, &fakeOllama{up: false})
	_, err := svc.Ask(context.Background(), "u1", Question{Text: "q"})
	require.ErrorIs(t, err, ai.ErrUnavailable)
	require.Equal(t, "Ollama not available at http://ollama:11434. Ensure Ollama is running.", err.Error())
	require.Empty(t, chat.requests)

	chat = &fakeChat{}
	svc = newTestChatService(newFakeNoteStore(), chat, config.LLMConfig{Provider: "openai"}, &fakeOllama{})
	_, err = svc.Ask(context.Background(), "u1", Question{Text: "q"})
	require.ErrorIs(t, err, ai.ErrUnavailable)
	require.Equal(t, "OpenAI API key not configured", err.Error())
}

func TestAskStream_ReturnsSourcesFirst(t *testing.T) {
	notes := newFakeNoteStore()
	notes.matches = []model.NoteMatch{{Note: model.Note{ID: "a", Title: "Alpha"}, Similarity: 0.8}}
	chat := &fakeChat{reply: "tok"}
	svc := newTestChatService(notes, chat, configured(), &fakeOllama{})

	refs, stream, err := svc.AskStream(context.Background(), "u1", Question{Text: "q"})
	require.NoError(t, err)
	defer stream.Close()
	require.Len(t, refs, 1)
	text, err := ai.Collect(stream)
	require.NoError(t, err)
	require.Equal(t, "tok", text)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newTestChatService(newFakeNoteStore(), &fakeChat{}, configured(), &fakeOllama{})
	_, err := svc.Ask(context.Background(), "u1", Question{Text: "  "})
	require.Error(t, err)
}
