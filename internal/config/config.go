package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	Database    DatabaseConfig   `json:"database"`
	LogConfig   logger.LogConfig `json:"log_config"`
	CORSOrigins []string         `json:"cors_origins"`
	FileStore   FileStoreConfig  `json:"file_store"`
	RedisURL    string           `json:"redis_url"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	LLM         LLMConfig        `json:"llm"`
	Embedding   EmbeddingConfig  `json:"embedding"`
	TTS         TTSConfig        `json:"tts"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RateLimitConfig struct {
	WindowSeconds int `json:"window_seconds"`
}

type LLMConfig struct {
	Provider  string         `json:"provider"`
	OpenAI    ProviderConfig `json:"openai"`
	Anthropic ProviderConfig `json:"anthropic"`
	Google    ProviderConfig `json:"google"`
	Ollama    OllamaConfig   `json:"ollama"`
	Timeout   int            `json:"timeout"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

type OllamaConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model"`
}

type EmbeddingConfig struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
}

type TTSConfig struct {
	Provider          string `json:"provider"`
	OpenAIModel       string `json:"openai_model"`
	OpenAIVoice       string `json:"openai_voice"`
	ElevenLabsAPIKey  string `json:"elevenlabs_api_key"`
	ElevenLabsVoiceID string `json:"elevenlabs_voice_id"`
	ElevenLabsBaseURL string `json:"elevenlabs_base_url"`
}

type JobsConfig struct {
	EmbeddingResync string `json:"embedding_resync"`
	SourceRecovery  string `json:"source_recovery"`
	// StaleSourceMinutes is how long a source may stay in loading.
	StaleSourceMinutes int `json:"stale_source_minutes"`
}

// EmbeddingColumnDimension is the size of the vector columns created by the
// migrations.
const EmbeddingColumnDimension = 1536

// Load reads the json config at path, overlays credentials from the
// environment (and a .env file next to the working directory if present),
// then validates and fills defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	_ = godotenv.Load()
	ApplyEnv(&cfg, os.LookupEnv)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides provider settings with the environment variables used
// by the deployment scripts.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.JWTSecret, "SECRET_KEY")
	set(&cfg.RedisURL, "REDIS_URL")
	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&cfg.LLM.OpenAI.Model, "OPENAI_MODEL")
	set(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	set(&cfg.LLM.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	set(&cfg.LLM.Anthropic.Model, "ANTHROPIC_MODEL")
	set(&cfg.LLM.Google.APIKey, "GOOGLE_API_KEY")
	set(&cfg.LLM.Google.Model, "GOOGLE_MODEL")
	set(&cfg.LLM.Ollama.BaseURL, "OLLAMA_BASE_URL")
	set(&cfg.LLM.Ollama.Model, "OLLAMA_MODEL")
	set(&cfg.LLM.Ollama.EmbeddingModel, "OLLAMA_EMBEDDING_MODEL")
	set(&cfg.TTS.Provider, "TTS_PROVIDER")
	set(&cfg.TTS.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	set(&cfg.TTS.ElevenLabsVoiceID, "ELEVENLABS_VOICE_ID")
	set(&cfg.TTS.OpenAIModel, "OPENAI_TTS_MODEL")
	set(&cfg.TTS.OpenAIVoice, "OPENAI_TTS_VOICE")
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.host or database.dsn is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 24 * 7
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Type == "local" && cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": "./data/uploads"}
	}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimension != EmbeddingColumnDimension {
		return fmt.Errorf("embedding.dimension must be %d to match the vector columns, got %d",
			EmbeddingColumnDimension, cfg.Embedding.Dimension)
	}
	return nil
}

// ApplyDefaults fills provider defaults. It never fails so tests and the
// reindex command can share it.
func ApplyDefaults(cfg *Config) {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "gpt-4-turbo-preview"
	}
	if cfg.LLM.Anthropic.Model == "" {
		cfg.LLM.Anthropic.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.LLM.Google.Model == "" {
		cfg.LLM.Google.Model = "gemini-1.5-pro"
	}
	if cfg.LLM.Ollama.BaseURL == "" {
		cfg.LLM.Ollama.BaseURL = "http://localhost:11434"
	}
	cfg.LLM.Ollama.BaseURL = strings.TrimRight(cfg.LLM.Ollama.BaseURL, "/")
	if cfg.LLM.Ollama.Model == "" {
		cfg.LLM.Ollama.Model = "llama3.2"
	}
	if cfg.LLM.Ollama.EmbeddingModel == "" {
		cfg.LLM.Ollama.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 120
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = EmbeddingColumnDimension
	}
	if cfg.Embedding.Workers <= 0 {
		cfg.Embedding.Workers = 2
	}
	if cfg.Embedding.QueueSize <= 0 {
		cfg.Embedding.QueueSize = 256
	}
	cfg.TTS.Provider = strings.ToLower(strings.TrimSpace(cfg.TTS.Provider))
	if cfg.TTS.Provider == "" {
		cfg.TTS.Provider = "openai"
	}
	if cfg.TTS.OpenAIModel == "" {
		cfg.TTS.OpenAIModel = "tts-1"
	}
	if cfg.TTS.OpenAIVoice == "" {
		cfg.TTS.OpenAIVoice = "alloy"
	}
	if cfg.TTS.ElevenLabsVoiceID == "" {
		cfg.TTS.ElevenLabsVoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if cfg.Jobs.EmbeddingResync == "" {
		cfg.Jobs.EmbeddingResync = "*/10 * * * *"
	}
	if cfg.Jobs.SourceRecovery == "" {
		cfg.Jobs.SourceRecovery = "*/15 * * * *"
	}
	if cfg.Jobs.StaleSourceMinutes <= 0 {
		cfg.Jobs.StaleSourceMinutes = 30
	}
}

// EmbeddingProvider follows the chat provider: a local chat backend also
// means local embeddings.
func (c LLMConfig) EmbeddingProvider() string {
	if strings.EqualFold(c.Provider, "ollama") {
		return "ollama"
	}
	return "openai"
}
