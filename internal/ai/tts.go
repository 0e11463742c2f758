package ai

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/config"
)

// PCM parameters of every synthesized segment: signed 16-bit little endian,
// mono, 24kHz.
const (
	PCMSampleRate     = 24000
	PCMChannels       = 1
	PCMBytesPerSample = 2
)

const (
	SpeakerHostA = "HOST_A"
	SpeakerHostB = "HOST_B"
)

// TTSBackend synthesizes raw PCM audio.
type TTSBackend interface {
	Name() string
	DefaultVoice() string
	// SpeakerVoice maps a podcast speaker label onto a voice.
	SpeakerVoice(speaker string) string
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

type SpeechRequest struct {
	Text     string
	Voice    string
	Provider string
}

// Speech routes synthesis to the configured TTS backend or a per request
// override.
type Speech struct {
	defaultName string
	backends    map[string]TTSBackend
}

func NewSpeech(defaultName string, backends ...TTSBackend) *Speech {
	s := &Speech{defaultName: normalizeName(defaultName), backends: make(map[string]TTSBackend, len(backends))}
	for _, b := range backends {
		s.backends[b.Name()] = b
	}
	if _, ok := s.backends[s.defaultName]; !ok {
		s.defaultName = "openai"
	}
	return s
}

func NewSpeechFromConfig(tts config.TTSConfig, openAI config.ProviderConfig, timeout time.Duration) *Speech {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewSpeech(tts.Provider,
		NewOpenAITTS(openAI.APIKey, openAI.BaseURL, tts.OpenAIModel, tts.OpenAIVoice, timeout),
		NewElevenLabsTTS(tts.ElevenLabsAPIKey, tts.ElevenLabsBaseURL, tts.ElevenLabsVoiceID, timeout),
	)
}

// Backend resolves the provider name; unknown names use the default.
func (s *Speech) Backend(name string) TTSBackend {
	if b, ok := s.backends[normalizeName(name)]; ok {
		return b
	}
	return s.backends[s.defaultName]
}

func (s *Speech) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	b := s.Backend(req.Provider)
	if b == nil {
		return nil, ErrNotConfigured
	}
	voice := req.Voice
	if voice == "" {
		voice = b.DefaultVoice()
	}
	start := time.Now()
	pcm, err := b.Synthesize(ctx, req.Text, voice)
	observe(b.Name(), "tts", start, err)
	if err != nil {
		logutil.GetLogger(ctx).Error("speech synthesis failed", zap.String("provider", b.Name()), zap.Error(err))
		return nil, err
	}
	return pcm, nil
}
