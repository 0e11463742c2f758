package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/audio"
	"github.com/xxxsen/notebook/internal/model"
)

const podcastSystemPrompt = `You are an expert podcast script writer. Create an engaging, conversational podcast dialogue between two hosts discussing the provided content.

The hosts are:
- HOST_A: The main narrator who introduces topics and provides context
- HOST_B: The curious co-host who asks insightful questions and adds interesting perspectives

Guidelines:
1. Make the conversation natural and engaging, not just a dry summary
2. Include moments of genuine curiosity and discovery
3. Break down complex topics into digestible explanations
4. Add brief moments of personality (but keep it professional)
5. Each speaker turn should be 1-3 sentences (suitable for audio)
6. Total dialogue should be 10-15 exchanges

IMPORTANT: Return ONLY valid JSON in this exact format:
{
  "title": "Episode title",
  "dialogue": [
    {"speaker": "HOST_A", "text": "Welcome to today's episode..."},
    {"speaker": "HOST_B", "text": "I'm excited to dive into this topic..."},
    {"speaker": "HOST_A", "text": "Let's start with..."}
  ]
}`

const podcastPromptTemplate = `Create an engaging podcast dialogue discussing these sources:

%s

Generate a natural conversation between HOST_A and HOST_B that covers the key points while being entertaining and informative.`

const (
	podcastSourceChars = 4000
	podcastTurnGap     = 300 * time.Millisecond
	podcastTTSWorkers  = 4
)

type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type Script struct {
	Title    string `json:"title"`
	Dialogue []Turn `json:"dialogue"`
}

func fallbackScript() Script {
	return Script{
		Title: "Discussion of Your Sources",
		Dialogue: []Turn{
			{Speaker: ai.SpeakerHostA, Text: "Welcome! Today we're exploring some interesting content."},
			{Speaker: ai.SpeakerHostB, Text: "I'm excited to discuss what we've found."},
			{Speaker: ai.SpeakerHostA, Text: "Let's dive in. Our sources cover some fascinating topics."},
			{Speaker: ai.SpeakerHostB, Text: "What stood out to you the most?"},
			{Speaker: ai.SpeakerHostA, Text: "There's so much to unpack here. Thanks for listening!"},
		},
	}
}

type PodcastService struct {
	chat   ChatClient
	speech Synthesizer
}

func NewPodcastService(chat ChatClient, speech Synthesizer) *PodcastService {
	return &PodcastService{chat: chat, speech: speech}
}

func (s *PodcastService) request(sources []model.Source) (ai.ChatRequest, error) {
	if len(sources) == 0 {
		return ai.ChatRequest{}, ErrNoSources
	}
	return ai.ChatRequest{
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: fmt.Sprintf(podcastPromptTemplate, titledSources(sources, podcastSourceChars))}},
		SystemPrompt: podcastSystemPrompt,
		Temperature:  ai.Temp(0.8),
		MaxTokens:    4000,
	}, nil
}

func (s *PodcastService) Script(ctx context.Context, sources []model.Source) (Result[Script], error) {
	req, err := s.request(sources)
	if err != nil {
		return Result[Script]{}, err
	}
	raw, err := s.chat.Complete(ctx, req)
	if err != nil {
		return Result[Script]{}, err
	}
	var script Script
	if err := decodeStructured(raw, &script); err != nil {
		logutil.GetLogger(ctx).Error("parse podcast script failed", zap.Error(err))
		return FallbackOf(fallbackScript()), nil
	}
	return Parsed(script), nil
}

func (s *PodcastService) ScriptStream(ctx context.Context, sources []model.Source) (ai.ChatStream, error) {
	req, err := s.request(sources)
	if err != nil {
		return nil, err
	}
	return s.chat.CompleteStream(ctx, req)
}

// Audio writes a script and voices it. Turns are synthesized concurrently
// and joined in dialogue order with a short pause between speakers.
func (s *PodcastService) Audio(ctx context.Context, sources []model.Source, provider string) ([]byte, error) {
	res, err := s.Script(ctx, sources)
	if err != nil {
		return nil, err
	}
	return s.Voice(ctx, res.Payload, provider)
}

func (s *PodcastService) Voice(ctx context.Context, script Script, provider string) ([]byte, error) {
	if len(script.Dialogue) == 0 {
		return nil, ErrEmptyScript
	}
	backend := s.speech.Backend(provider)
	if backend == nil {
		return nil, ai.ErrNotConfigured
	}
	turns := make([]Turn, 0, len(script.Dialogue))
	for _, t := range script.Dialogue {
		if t.Text != "" {
			turns = append(turns, t)
		}
	}
	if len(turns) == 0 {
		return nil, ErrEmptyScript
	}
	segments := make([][]byte, len(turns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(podcastTTSWorkers)
	for i, t := range turns {
		g.Go(func() error {
			pcm, err := s.speech.Synthesize(gctx, ai.SpeechRequest{
				Text:     t.Text,
				Voice:    backend.SpeakerVoice(t.Speaker),
				Provider: backend.Name(),
			})
			if err != nil {
				return fmt.Errorf("synthesize turn %d: %w", i, err)
			}
			segments[i] = pcm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("podcast audio assembled",
		zap.String("provider", backend.Name()), zap.Int("turns", len(segments)))
	return audio.AssembleWAV(audio.PCM16Mono24k, segments, podcastTurnGap), nil
}
