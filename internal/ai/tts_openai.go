package ai

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var openAIHostVoices = map[string]string{
	SpeakerHostA: "onyx",
	SpeakerHostB: "nova",
}

type openAITTS struct {
	apiKey string
	model  string
	voice  string
	client *openai.Client
}

func NewOpenAITTS(apiKey, baseURL, model, voice string, timeout time.Duration) TTSBackend {
	apiKey = strings.TrimSpace(apiKey)
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &openAITTS{
		apiKey: apiKey,
		model:  model,
		voice:  voice,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (t *openAITTS) Name() string {
	return "openai"
}

func (t *openAITTS) DefaultVoice() string {
	return t.voice
}

func (t *openAITTS) SpeakerVoice(speaker string) string {
	if v, ok := openAIHostVoices[speaker]; ok {
		return v
	}
	return openAIHostVoices[SpeakerHostA]
}

func (t *openAITTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if t.apiKey == "" {
		return nil, notConfigured("openai")
	}
	resp, err := t.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(t.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, mapOpenAIError("openai", err)
	}
	defer resp.Close()
	return io.ReadAll(resp)
}
