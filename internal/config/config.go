package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Completion CompletionConfig
	Gemini     GeminiConfig
	Qdrant     QdrantConfig
	Services   ServicesConfig
	OAuth      OAuthConfig
	Storage    StorageConfig
	Worker     WorkerConfig
	Telegram   TelegramConfig
	Pipeline   PipelineConfig
	Ledger     LedgerConfig
}

type ServerConfig struct {
	Port             string
	Env              string
	AutomationSecret string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// CompletionConfig selects the LLM backend. Provider is "openai" for any
// OpenAI-compatible chat-completions server (Ollama included) or "gemini".
type CompletionConfig struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
	Temperatures map[string]float32
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

type QdrantConfig struct {
	URL            string
	APIKey         string
	Collection     string
	MatchThreshold float32
}

type ServicesConfig struct {
	ExtractionURL string
	ScraperURL    string
	Timeout       time.Duration
}

type OAuthConfig struct {
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenant       string
	Timeout               time.Duration
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
}

type WorkerConfig struct {
	Enabled      bool
	Concurrency  int
	PollSchedule string
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type PipelineConfig struct {
	RequestTimeout time.Duration
	ConfigPath     string
}

// LedgerConfig controls the reaper for orphaned dispatch reservations. A zero
// StaleAfter leaves it off.
type LedgerConfig struct {
	StaleAfter   time.Duration
	ReapSchedule string
}

// pipelineOverlay is the optional YAML file that tunes the completion stages
// without touching the environment.
type pipelineOverlay struct {
	Model        string             `yaml:"model"`
	MaxTokens    int                `yaml:"max_tokens"`
	Temperatures map[string]float32 `yaml:"temperatures"`
}

// DefaultTemperatures holds the sampling temperature of each completion stage.
var DefaultTemperatures = map[string]float32{
	"structure_resume":   0.1,
	"normalize_job":      0.1,
	"fit_analysis":       0.2,
	"tailor_resume":      0.3,
	"humanize_resume":    0.7,
	"draft_email":        0.6,
	"humanize_email":     0.8,
	"classify_reply":     0.1,
	"draft_reply":        0.6,
	"acknowledge":        0.5,
	"extract_interview":  0.1,
	"draft_confirmation": 0.5,
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "3000"),
			Env:              getEnv("ENV", "development"),
			AutomationSecret: getEnv("AUTOMATION_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "job_automation"),
		},
		Completion: CompletionConfig{
			Provider:     getEnv("COMPLETION_PROVIDER", "openai"),
			BaseURL:      getEnv("OLLAMA_API_URL", "http://localhost:11434/v1"),
			APIKey:       getEnv("OLLAMA_API_KEY", "ollama"),
			Model:        getEnv("OLLAMA_MODEL", "llama3.1:8b"),
			MaxTokens:    getEnvAsInt("OLLAMA_MAX_TOKENS", 2048),
			Timeout:      getEnvAsMillis("OLLAMA_TIMEOUT_MS", 120000),
			Temperatures: copyTemperatures(DefaultTemperatures),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			Model:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		},
		Qdrant: QdrantConfig{
			URL:            getEnv("QDRANT_URL", ""),
			APIKey:         getEnv("QDRANT_API_KEY", ""),
			Collection:     getEnv("QDRANT_COLLECTION", "dispatched_emails"),
			MatchThreshold: getEnvAsFloat32("QDRANT_MATCH_THRESHOLD", 0.80),
		},
		Services: ServicesConfig{
			ExtractionURL: getEnv("EXTRACTION_SERVICE_URL", ""),
			ScraperURL:    getEnv("SCRAPER_SERVICE_URL", ""),
			Timeout:       getEnvAsDuration("SERVICE_TIMEOUT", "60s"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
			MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
			MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
			MicrosoftTenant:       getEnv("MICROSOFT_TENANT", "common"),
			Timeout:               getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
		},
		Storage: StorageConfig{
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		Worker: WorkerConfig{
			Enabled:      getEnvAsBool("INBOUND_POLL_ENABLED", true),
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 3),
			PollSchedule: getEnv("INBOUND_POLL_SCHEDULE", "@every 5m"),
		},
		Telegram: TelegramConfig{
			Token:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID: getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
		Pipeline: PipelineConfig{
			RequestTimeout: getEnvAsDuration("PIPELINE_TIMEOUT", "10m"),
			ConfigPath:     getEnv("PIPELINE_CONFIG", "configs/pipeline.yaml"),
		},
		Ledger: LedgerConfig{
			StaleAfter:   getEnvAsDuration("DISPATCH_STALE_AFTER", "0s"),
			ReapSchedule: getEnv("DISPATCH_REAP_SCHEDULE", "@every 15m"),
		},
	}

	if err := cfg.applyPipelineOverlay(cfg.Pipeline.ConfigPath); err != nil {
		log.Printf("⚠️ Ignoring pipeline config: %v", err)
	}

	return cfg
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// applyPipelineOverlay merges the YAML overlay at path into the completion
// settings. A missing file is not an error.
func (c *Config) applyPipelineOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var overlay pipelineOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if overlay.Model != "" {
		c.Completion.Model = overlay.Model
	}
	if overlay.MaxTokens > 0 {
		c.Completion.MaxTokens = overlay.MaxTokens
	}
	for stage, temperature := range overlay.Temperatures {
		c.Completion.Temperatures[stage] = temperature
	}

	log.Printf("✅ Pipeline config loaded from %s", path)
	return nil
}

func copyTemperatures(src map[string]float32) map[string]float32 {
	dst := make(map[string]float32, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsMillis(key string, defaultValue int64) time.Duration {
	return time.Duration(getEnvAsInt64(key, defaultValue)) * time.Millisecond
}
