// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/ellielabs/ellie/backend/internal/service/ai"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Log     LogConfig
	AI      AIConfig
	Admin   AdminConfig
	Session SessionConfig
}

// Load reads all sections from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	aiCfg, err := loadAIConfig()
	if err != nil {
		return nil, err
	}
	admin, err := loadAdminConfig()
	if err != nil {
		return nil, err
	}
	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		Server:  server,
		Store:   StoreConfig{Path: getEnvOrDefault("DB_PATH", "journal_entries.db")},
		Log:     loadLogConfig(),
		AI:      aiCfg,
		Admin:   admin,
		Session: session,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig describes the sqlite database location.
type StoreConfig struct {
	Path string
}

// AdminConfig describes the admin identity and API credential.
type AdminConfig struct {
	UserID   int64
	APIToken string
}

func loadAdminConfig() (AdminConfig, error) {
	var userID int64
	if raw := strings.TrimSpace(os.Getenv("ADMIN_USER_ID")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return AdminConfig{}, fmt.Errorf("invalid ADMIN_USER_ID value %q: %w", raw, err)
		}
		userID = parsed
	}
	return AdminConfig{
		UserID:   userID,
		APIToken: strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
	}, nil
}

// SessionConfig bounds in-memory session lifetime.
type SessionConfig struct {
	IdleTimeout time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	raw := strings.TrimSpace(os.Getenv("SESSION_IDLE_TIMEOUT"))
	if raw == "" {
		return SessionConfig{IdleTimeout: 2 * time.Hour}, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT value %q: %w", raw, err)
	}
	return SessionConfig{IdleTimeout: d}, nil
}

// AIConfig describes the generation backend and its parameters.
type AIConfig struct {
	// Backend selects the gateway implementation: "ark" (stateless chat
	// completion) or "gemini" (stateful dialogue).
	Backend string

	// Ark credentials and model.
	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string

	// Gemini credentials and model.
	GeminiAPIKey string
	GeminiModel  string

	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	SafetyRelaxed bool

	// PersonaFeedback regenerates the persona system prompt from recent
	// reflections on session start.
	PersonaFeedback bool
	// ReflectionUseTopic embeds only the persona topic in the reflection
	// prompt instead of the full backstory.
	ReflectionUseTopic bool
	// HistoryLimit bounds journal history folded into session context.
	HistoryLimit int
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}
	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	safetyRelaxed, err := parseBoolEnv("AI_SAFETY_RELAXED", false)
	if err != nil {
		return AIConfig{}, err
	}
	personaFeedback, err := parseBoolEnv("PERSONA_FEEDBACK", false)
	if err != nil {
		return AIConfig{}, err
	}
	reflectionUseTopic, err := parseBoolEnv("REFLECTION_USE_TOPIC", false)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit := 5
	if override, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	backend := strings.ToLower(getEnvOrDefault("AI_BACKEND", "ark"))
	switch backend {
	case "ark", "gemini":
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_BACKEND value %q (valid: ark, gemini)", backend)
	}

	return AIConfig{
		Backend:            backend,
		ArkAPIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkModel:           strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:        strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		Temperature:        temperature,
		TopP:               topP,
		MaxTokens:          maxTokens,
		SafetyRelaxed:      safetyRelaxed,
		PersonaFeedback:    personaFeedback,
		ReflectionUseTopic: reflectionUseTopic,
		HistoryLimit:       historyLimit,
	}, nil
}

// ArkEnabled reports whether the Ark credentials are present.
func (c AIConfig) ArkEnabled() bool {
	return c.ArkModel != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
}

// NewArkChatModel builds the eino chat model from the Ark section.
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.ArkEnabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}
	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.ArkAPIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.ArkModel,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	return ark.NewChatModel(ctx, cfg)
}

// Generation converts the section into per-request gateway parameters.
func (c AIConfig) Generation() ai.Config {
	return ai.Config{
		Temperature:   c.Temperature,
		TopP:          c.TopP,
		MaxTokens:     c.MaxTokens,
		SafetyRelaxed: c.SafetyRelaxed,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
