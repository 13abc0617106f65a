package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultRoomIdleTimeout   = 24 * time.Hour
	DefaultCleanupInterval   = time.Hour
	DefaultSuggestionTimeout = 20 * time.Second
)

type Config struct {
	DatabaseDSN     string
	ServerAddr      string
	SigningKey      []byte
	AllowedOrigins  []string
	RoomIdleTimeout time.Duration
	CleanupInterval time.Duration
	Suggestions     SuggestionConfig
}

// SuggestionConfig selects the language model used to enrich analyses.
type SuggestionConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty signing secret")
	}
	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:     databaseDSN,
		ServerAddr:      serverAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		RoomIdleTimeout: DefaultRoomIdleTimeout,
		CleanupInterval: DefaultCleanupInterval,
		Suggestions: SuggestionConfig{
			Provider: "none",
			Timeout:  DefaultSuggestionTimeout,
		},
	}, nil
}

// WithRoomTimeouts sets how long an empty room survives and how often
// the store sweeps for idle rooms.
func (c *Config) WithRoomTimeouts(idle, cleanup time.Duration) error {
	if idle <= 0 {
		return fmt.Errorf("room idle timeout must be positive")
	}
	if cleanup <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	c.RoomIdleTimeout = idle
	c.CleanupInterval = cleanup
	return nil
}

func (c *Config) WithSuggestions(sc SuggestionConfig) error {
	switch sc.Provider {
	case "", "none":
		sc.Provider = "none"
	case "openai", "groq":
		if sc.APIKey == "" {
			return fmt.Errorf("suggestion provider %q requires an API key", sc.Provider)
		}
	default:
		return fmt.Errorf("unknown suggestion provider %q", sc.Provider)
	}

	if sc.Timeout <= 0 {
		sc.Timeout = DefaultSuggestionTimeout
	}

	c.Suggestions = sc
	return nil
}
