package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/model"
)

const qaSystemPrompt = `You are a helpful AI assistant that answers questions based on the user's notes.
Use the provided notes as context to answer the question. If the notes don't contain relevant information,
let the user know and provide what help you can based on general knowledge.

Be concise but thorough. Reference specific notes when relevant.
If you're not sure about something, say so.`

const (
	noteContextChars = 2000
	historyWindow    = 10
	contextSeparator = "\n\n---\n\n"
)

type Question struct {
	Text     string
	History  []ai.Message
	Provider string
}

type SourceRef struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

type ChatService struct {
	contexts *ContextService
	chat     ChatClient
	status   *LLMStatusService
}

func NewChatService(contexts *ContextService, chat ChatClient, status *LLMStatusService) *ChatService {
	return &ChatService{contexts: contexts, chat: chat, status: status}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func buildNoteContext(notes []model.NoteMatch) string {
	if len(notes) == 0 {
		return "No relevant notes found."
	}
	parts := make([]string, 0, len(notes))
	for i, n := range notes {
		parts = append(parts, fmt.Sprintf("Note %d: %s\n%s", i+1, n.Title, truncateRunes(n.Content, noteContextChars)))
	}
	return strings.Join(parts, contextSeparator)
}

func buildQAMessages(question, context string, history []ai.Message) []ai.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: "Context from user's notes:\n\n" + context})
	msgs = append(msgs, history...)
	return append(msgs, ai.Message{Role: ai.RoleUser, Content: question})
}

func sourceRefs(notes []model.NoteMatch) []SourceRef {
	refs := make([]SourceRef, 0, len(notes))
	for _, n := range notes {
		refs = append(refs, SourceRef{ID: n.ID, Title: n.Title, Similarity: math.Round(n.Similarity*10000) / 10000})
	}
	return refs
}

func (s *ChatService) prepare(ctx context.Context, ownerID string, q Question) (ai.ChatRequest, []SourceRef, error) {
	if strings.TrimSpace(q.Text) == "" {
		return ai.ChatRequest{}, nil, invalid("question is required")
	}
	if s.status != nil {
		if err := s.status.CheckAvailable(ctx); err != nil {
			return ai.ChatRequest{}, nil, err
		}
	}
	notes, err := s.contexts.FindRelevantContext(ctx, ownerID, q.Text, DefaultContextLimit, DefaultContextThreshold)
	if err != nil {
		return ai.ChatRequest{}, nil, err
	}
	req := ai.ChatRequest{
		Messages:     buildQAMessages(q.Text, buildNoteContext(notes), q.History),
		SystemPrompt: qaSystemPrompt,
		Temperature:  ai.Temp(0.7),
		MaxTokens:    1000,
		Provider:     q.Provider,
	}
	return req, sourceRefs(notes), nil
}

// Ask answers a question from the owner's most relevant notes.
func (s *ChatService) Ask(ctx context.Context, ownerID string, q Question) (*Answer, error) {
	req, refs, err := s.prepare(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}
	text, err := s.chat.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: text, Sources: refs}, nil
}

// AskStream is Ask with a token stream. The sources are known before the
// first token and are returned alongside the stream.
func (s *ChatService) AskStream(ctx context.Context, ownerID string, q Question) ([]SourceRef, ai.ChatStream, error) {
	req, refs, err := s.prepare(ctx, ownerID, q)
	if err != nil {
		return nil, nil, err
	}
	stream, err := s.chat.CompleteStream(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return refs, stream, nil
}
