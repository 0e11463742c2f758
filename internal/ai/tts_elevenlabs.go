package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsModel          = "eleven_monolingual_v1"
)

var elevenLabsHostVoices = map[string]string{
	SpeakerHostA: "21m00Tcm4TlvDq8ikWAM",
	SpeakerHostB: "EXAVITQu4vr4xnSDxMaL",
}

type elevenLabsTTS struct {
	apiKey     string
	baseURL    string
	voice      string
	httpClient *http.Client
}

type elevenLabsRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	} `json:"voice_settings"`
}

func NewElevenLabsTTS(apiKey, baseURL, voice string, timeout time.Duration) TTSBackend {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	return &elevenLabsTTS{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		voice:      voice,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *elevenLabsTTS) Name() string {
	return "elevenlabs"
}

func (t *elevenLabsTTS) DefaultVoice() string {
	return t.voice
}

func (t *elevenLabsTTS) SpeakerVoice(speaker string) string {
	if v, ok := elevenLabsHostVoices[speaker]; ok {
		return v
	}
	return elevenLabsHostVoices[SpeakerHostA]
}

func (t *elevenLabsTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if t.apiKey == "" {
		return nil, notConfigured("elevenlabs")
	}
	body := elevenLabsRequest{Text: text, ModelID: elevenLabsModel}
	body.VoiceSettings.Stability = 0.5
	body.VoiceSettings.SimilarityBoost = 0.5
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=pcm_24000", t.baseURL, url.PathEscape(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, readErrorBody("elevenlabs", resp)
	}
	return io.ReadAll(resp.Body)
}
