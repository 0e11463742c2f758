package service

import (
	"context"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/audio"
	"github.com/xxxsen/notebook/internal/model"
)

// AudioService reads a brief summary of the sources aloud.
type AudioService struct {
	summaries *SummaryService
	speech    Synthesizer
}

func NewAudioService(summaries *SummaryService, speech Synthesizer) *AudioService {
	return &AudioService{summaries: summaries, speech: speech}
}

func (s *AudioService) Overview(ctx context.Context, sources []model.Source, provider string) ([]byte, error) {
	sum, err := s.summaries.Summarize(ctx, sources, SummaryBrief)
	if err != nil {
		return nil, err
	}
	pcm, err := s.speech.Synthesize(ctx, ai.SpeechRequest{Text: sum.Summary, Provider: provider})
	if err != nil {
		return nil, err
	}
	return audio.AssembleWAV(audio.PCM16Mono24k, [][]byte{pcm}, 0), nil
}
