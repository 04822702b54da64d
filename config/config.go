package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIKey          string `json:"api_key"`
	BaseURL         string `json:"base_url"`
	EmbeddingModel  string `json:"embedding_model"`
	ChatModel       string `json:"chat_model"`
	TranscribeModel string `json:"transcribe_model"`
	PostgresURL     string `json:"postgres_url"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
}

var globalConfig *Config

// LoadConfig reads config.json once and lets environment variables override
// individual fields. Without a config file it falls back to env-only defaults.
func LoadConfig() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if data, err := os.ReadFile("config.json"); err == nil {
		var config Config
		if err := json.Unmarshal(data, &config); err == nil {
			applyEnvOverrides(&config)
			fillDefaults(&config)
			globalConfig = &config
			return globalConfig, nil
		}
	}

	config := &Config{
		APIKey:          os.Getenv("API_KEY"),
		BaseURL:         getEnvOrDefault("BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel:  getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatModel:       getEnvOrDefault("CHAT_MODEL", "gpt-4o-mini"),
		TranscribeModel: getEnvOrDefault("TRANSCRIBE_MODEL", "whisper-1"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
	}
	fillDefaults(config)
	globalConfig = config
	return globalConfig, nil
}

func applyEnvOverrides(config *Config) {
	if key := os.Getenv("API_KEY"); key != "" {
		config.APIKey = key
	}
	if url := os.Getenv("BASE_URL"); url != "" {
		config.BaseURL = url
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.EmbeddingModel = model
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		config.ChatModel = model
	}
	if model := os.Getenv("TRANSCRIBE_MODEL"); model != "" {
		config.TranscribeModel = model
	}
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		config.PostgresURL = url
	}
	if w := os.Getenv("WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			config.Workers = n
		}
	}
	if q := os.Getenv("QUEUE_SIZE"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			config.QueueSize = n
		}
	}
}

func fillDefaults(config *Config) {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 32
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.APIKey) == "" {
		errors = append(errors, "API Key is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		errors = append(errors, "Base URL is required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		errors = append(errors, "Embedding model is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// HasValidAPI reports whether inference can use the remote API. Without it
// the pipeline degrades to the local providers.
func (c *Config) HasValidAPI() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseURL) != ""
}

func PrintConfigInstructions() {
	fmt.Println("\n=== Configuration ===")
	fmt.Println("Fill in config.json (or set the matching environment variables):")
	fmt.Println("1. api_key: API key for the inference endpoint")
	fmt.Println("2. base_url: API base URL (default: https://api.openai.com/v1)")
	fmt.Println("3. embedding_model: embedding model (default: text-embedding-3-small)")
	fmt.Println("4. chat_model: captioning/detection model (default: gpt-4o-mini)")
	fmt.Println("5. transcribe_model: transcription model (default: whisper-1)")
	fmt.Println("6. postgres_url: PostgreSQL connection URL (empty = in-memory store)")
	fmt.Println("7. workers / queue_size: background pipeline sizing")
	fmt.Println("\nWithout api_key the service still runs, using local deterministic")
	fmt.Println("embeddings and empty annotations.")
	fmt.Println("====================")
}
