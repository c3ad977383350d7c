package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	DatabaseDriver     string
	RedisURL           string
	NATSURL            string
	NATSSubject        string
	JWTSecret          string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ChatModel          string
	JudgeModel         string
	AIMaxTokens        int
	AssignmentCacheTTL time.Duration
	DefaultMaxAttempts int
	TurnRateLimit      int
	CORSAllowedOrigins string
	TracingEnabled     bool
	OTLPEndpoint       string
	TraceSampleRate    float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASSESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Assessment API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("nats.subject", "assess.attempts")
	v.SetDefault("ai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.judge_model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("assignment.cache_ttl", "5m")
	v.SetDefault("assessment.default_max_attempts", 0)
	v.SetDefault("turn.rate_limit", 30)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.sample_rate", 1.0)

	ttlString := v.GetString("assignment.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid assignment cache ttl: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		DatabaseDriver:     strings.ToLower(v.GetString("database.driver")),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		NATSSubject:        v.GetString("nats.subject"),
		JWTSecret:          v.GetString("jwt.secret"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIBaseURL:      v.GetString("openai_base_url"),
		ChatModel:          v.GetString("ai.chat_model"),
		JudgeModel:         v.GetString("ai.judge_model"),
		AIMaxTokens:        v.GetInt("ai.max_tokens"),
		AssignmentCacheTTL: ttl,
		DefaultMaxAttempts: v.GetInt("assessment.default_max_attempts"),
		TurnRateLimit:      v.GetInt("turn.rate_limit"),
		CORSAllowedOrigins: v.GetString("cors.allowed_origins"),
		TracingEnabled:     v.GetBool("otel.enabled"),
		OTLPEndpoint:       v.GetString("otel.endpoint"),
		TraceSampleRate:    v.GetFloat64("otel.sample_rate"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.DefaultMaxAttempts < 0 {
		cfg.DefaultMaxAttempts = 0
	}
	if cfg.TurnRateLimit <= 0 {
		cfg.TurnRateLimit = 30
	}

	return cfg, nil
}
