// Package config provides configuration management for the quiz API server.
// It covers the HTTP server, the generation providers and their sampling
// parameters, prompt/parse behaviour per question category, and runtime
// concerns such as logging, tracing and admission control.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server             ServerConfig              `yaml:"server"`
	LLM                LLMConfig                 `yaml:"llm"`
	Providers          map[string]ProviderConfig `yaml:"providers"`
	ProviderPreference []string                  `yaml:"provider_preference"` // Order of provider preference
	CircuitBreaker     CircuitBreakerConfig      `yaml:"circuit_breaker"`
	Processing         ProcessingConfig          `yaml:"processing"`
	Queue              QueueConfig               `yaml:"queue"`
	Logging            LoggingConfig             `yaml:"logging"`
	Tracing            TracingConfig             `yaml:"tracing"`
	Routes             []RouteConfig             `yaml:"routes"`
	TestMode           bool                      `yaml:"-"` // Skip provider initialization in tests
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 3000)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must exceed the generation timeout (default: 90s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes caps the size of a generation request body (default: 64KB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// during graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the whole handling of a generation request,
	// including the provider call (default: 75s)
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LLMConfig holds the primary generation provider and the sampling
// parameters shared by every provider.
type LLMConfig struct {
	// Provider is the type of the primary provider: gemini, openai,
	// openrouter, or any provider name understood by gollm (anthropic, ollama, ...)
	Provider string `yaml:"provider"`

	// Model is the model name passed to the provider
	Model string `yaml:"model"`

	// APIKey authenticates against the provider.
	// Use environment variables (e.g., ${GEMINI_API_KEY}) for secure configuration
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the provider base URL (optional)
	Endpoint string `yaml:"endpoint"`

	// SystemPrompt is sent as a system instruction when non-empty
	SystemPrompt string `yaml:"system_prompt"`

	// MaxContextTokens is the model context window. Prompts whose estimated
	// token count plus MaxOutputTokens exceed it are rejected. 0 disables the check.
	MaxContextTokens int `yaml:"max_context_tokens"`

	// TokenizerModel selects the tiktoken encoding used to estimate prompt
	// tokens. Empty disables token counting.
	TokenizerModel string `yaml:"tokenizer_model"`

	// Timeout bounds a single provider call (default: 60s)
	Timeout time.Duration `yaml:"timeout"`

	// DedupeInFlight shares one provider call between concurrent requests
	// that render the exact same prompt
	DedupeInFlight bool `yaml:"dedupe_in_flight"`

	// Generation holds the sampling parameters
	Generation GenerationConfig `yaml:"generation"`

	// SafetySettings maps harm categories to block thresholds
	SafetySettings []SafetySetting `yaml:"safety_settings"`
}

// GenerationConfig holds sampling parameters for a generation call.
type GenerationConfig struct {
	Temperature     float32 `yaml:"temperature"`
	TopK            int     `yaml:"top_k"`
	TopP            float32 `yaml:"top_p"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// SafetySetting is a content-safety threshold for one harm category.
// Values use the provider's enum names, e.g. HARM_CATEGORY_HARASSMENT and
// BLOCK_MEDIUM_AND_ABOVE.
type SafetySetting struct {
	Category  string `yaml:"category"`
	Threshold string `yaml:"threshold"`
}

// ProviderConfig describes an additional provider that can serve requests
// when it appears in ProviderPreference.
type ProviderConfig struct {
	Type     string `yaml:"type"`     // Provider type (e.g., gemini, openai, openrouter, anthropic)
	Model    string `yaml:"model"`    // Model name
	APIKey   string `yaml:"api_key"`  // API key for authentication
	Endpoint string `yaml:"endpoint"` // Optional base URL override
}

// CircuitBreakerConfig configures the breaker placed in front of every provider.
type CircuitBreakerConfig struct {
	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// TestMode skips Prometheus metric registration
	TestMode bool `yaml:"test_mode"`
}

// QueueConfig bounds concurrent generation work.
type QueueConfig struct {
	// Enabled determines if the admission queue is active
	Enabled bool `yaml:"enabled"`

	// MaxConcurrent is the number of generation requests processed at once
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxSize is the number of requests allowed to wait. Requests beyond it
	// are rejected with 503.
	MaxSize int64 `yaml:"max_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC collector, host:port
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// RouteConfig binds a URL path to a named handler.
type RouteConfig struct {
	// Path is the URL path to match
	Path string `yaml:"path"`

	// Handler names the handler: programming, logical, quantitative, home,
	// health or metrics
	Handler string `yaml:"handler"`

	// Version is an optional path prefix (e.g., "v1")
	Version string `yaml:"version,omitempty"`

	// Methods specifies the allowed HTTP methods for this route
	Methods []string `yaml:"methods"`
}

// DefaultConfig returns the configuration used when no file is given:
// Gemini on port 3000 with the sampling and safety settings of the public quiz endpoints.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    64 << 10,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  75 * time.Second,
		},

		LLM: LLMConfig{
			Provider:         "gemini",
			Model:            "gemini-1.0-pro",
			APIKey:           "${GEMINI_API_KEY}",
			MaxContextTokens: 30720,
			Timeout:          60 * time.Second,
			Generation: GenerationConfig{
				Temperature:     0.9,
				TopK:            1,
				TopP:            1,
				MaxOutputTokens: 2048,
			},
			SafetySettings: DefaultSafetySettings(),
		},

		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},

		Processing: DefaultProcessingConfig(),

		Queue: QueueConfig{
			Enabled:       false,
			MaxConcurrent: 16,
			MaxSize:       256,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "quiz-api",
			Environment: "development",
			SampleRatio: 1.0,
		},

		Routes: DefaultRoutes(),
	}
}

// DefaultSafetySettings blocks medium-and-above content for harassment,
// hate speech, sexually explicit and dangerous content.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, SafetySetting{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"})
	}
	return settings
}

// DefaultRoutes returns the public HTTP surface.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Path: "/", Handler: "home", Methods: []string{"GET"}},
		{Path: "/generate-programming-questions", Handler: "programming", Methods: []string{"POST"}},
		{Path: "/generate-logical-questions", Handler: "logical", Methods: []string{"POST"}},
		{Path: "/generate-quantative-questions", Handler: "quantitative", Methods: []string{"POST"}},
		{Path: "/health", Handler: "health", Methods: []string{"GET"}},
		{Path: "/metrics", Handler: "metrics", Methods: []string{"GET"}},
	}
}

// ProviderConfigs returns every configured provider keyed by name. The
// primary LLM provider is registered under its type name unless an entry
// with that name already exists in Providers.
func (c *Config) ProviderConfigs() map[string]ProviderConfig {
	configs := make(map[string]ProviderConfig, len(c.Providers)+1)
	for name, p := range c.Providers {
		if p.Type == "" {
			p.Type = name
		}
		configs[name] = p
	}
	if _, ok := configs[c.LLM.Provider]; !ok && c.LLM.Provider != "" {
		configs[c.LLM.Provider] = ProviderConfig{
			Type:     c.LLM.Provider,
			Model:    c.LLM.Model,
			APIKey:   c.LLM.APIKey,
			Endpoint: c.LLM.Endpoint,
		}
	}
	return configs
}

// Preference returns the provider names in the order they are tried. An
// empty ProviderPreference means the primary provider only.
func (c *Config) Preference() []string {
	if len(c.ProviderPreference) > 0 {
		return c.ProviderPreference
	}
	if c.LLM.Provider == "" {
		return nil
	}
	return []string{c.LLM.Provider}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

var envRef = regexp.MustCompile(`\$\{([^}]*)\}`)

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. Bare $VAR
// forms are left untouched so prompt templates may contain dollar amounts.
// An empty reference "${}" is a syntax error.
func expandEnvVars(s string) (string, error) {
	var expandErr error
	result := envRef.ReplaceAllStringFunc(s, func(ref string) string {
		key := envRef.FindStringSubmatch(ref)[1]
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		if strings.TrimSpace(key) == "" {
			expandErr = fmt.Errorf("empty variable reference")
			return ref
		}
		return os.Getenv(key)
	})
	if expandErr != nil {
		return "", expandErr
	}
	if strings.Contains(result, "${") {
		return "", fmt.Errorf("unterminated variable reference")
	}
	return result, nil
}

// Load loads configuration from an io.Reader. The YAML is decoded on top of
// DefaultConfig, so a file only needs to contain overrides.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	config := DefaultConfig()
	config.LLM.APIKey, _ = expandEnvVars(config.LLM.APIKey)

	if strings.TrimSpace(expandedData) != "" {
		dec := yaml.NewDecoder(strings.NewReader(expandedData))
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// LoadDefault returns DefaultConfig with environment references resolved
// and validated. It is used when no config file is present.
func LoadDefault() (*Config, error) {
	return Load(strings.NewReader(""))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("negative max body bytes: %d", c.Server.MaxBodyBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout: %v", c.Server.RequestTimeout)
	}

	// LLM validation
	if c.LLM.Provider == "" {
		return fmt.Errorf("empty LLM provider")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.MaxContextTokens < 0 {
		return fmt.Errorf("negative max context tokens: %d", c.LLM.MaxContextTokens)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("negative LLM timeout: %v", c.LLM.Timeout)
	}
	g := c.LLM.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2: %v", g.Temperature)
	}
	if g.TopP < 0 || g.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1: %v", g.TopP)
	}
	if g.TopK < 0 {
		return fmt.Errorf("negative top_k: %d", g.TopK)
	}
	if g.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be positive: %d", g.MaxOutputTokens)
	}
	for i, s := range c.LLM.SafetySettings {
		if s.Category == "" || s.Threshold == "" {
			return fmt.Errorf("safety setting %d needs both category and threshold", i)
		}
	}

	// Provider validation
	configs := c.ProviderConfigs()
	for _, name := range c.Preference() {
		pc, ok := configs[name]
		if !ok {
			return fmt.Errorf("provider %q in preference list is not configured", name)
		}
		if pc.Model == "" {
			return fmt.Errorf("provider %q has no model", name)
		}
	}

	// Processing validation
	if err := c.Processing.Validate(); err != nil {
		return err
	}

	// Queue validation
	if c.Queue.Enabled {
		if c.Queue.MaxConcurrent <= 0 {
			return fmt.Errorf("queue max_concurrent must be positive: %d", c.Queue.MaxConcurrent)
		}
		if c.Queue.MaxSize < 0 {
			return fmt.Errorf("negative queue max_size: %d", c.Queue.MaxSize)
		}
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Tracing validation
	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing enabled but endpoint not specified")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing sample_ratio must be between 0 and 1: %v", c.Tracing.SampleRatio)
		}
	}

	// Route validation
	for i, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("empty path in route %d", i)
		}
		if route.Handler == "" {
			return fmt.Errorf("empty handler in route %d", i)
		}
	}

	return nil
}
