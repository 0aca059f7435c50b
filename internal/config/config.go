package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/wastewise/internal/common"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	LogLevel    string      `yaml:"logLevel"`    // debug|info|warn|error
	LogFormat   string      `yaml:"logFormat"`   // auto|text|json
	FailOnError bool        `yaml:"failOnError"` // exit non-zero when classification fails
	Image       ImageConfig `yaml:"image"`
	LLM         LLMConfig   `yaml:"llm"`
}

// ImageConfig holds the input image location and optional quality gates.
type ImageConfig struct {
	Path        string   `yaml:"path"`        // used when no positional argument is given
	MaxFileSize ByteSize `yaml:"maxFileSize"` // 0 disables the check
	MinWidth    int      `yaml:"minWidth"`    // 0 disables the check
	MinHeight   int      `yaml:"minHeight"`   // 0 disables the check
}

// LLMConfig selects provider and provider-specific options.
type LLMConfig struct {
	Provider string          `yaml:"provider"` // "gemini", "aiproxy" or "mock"
	Gemini   GeminiSettings  `yaml:"gemini"`
	AIProxy  AIProxySettings `yaml:"aiproxy"`
	Mock     MockSettings    `yaml:"mock"`
}

// GeminiSettings config for the hosted Gemini model.
// A credentials file selects the Vertex AI backend, otherwise the API key is used.
type GeminiSettings struct {
	Model           string        `yaml:"model"`           // e.g. gemini-2.0-flash
	APIKey          string        `yaml:"apiKey"`          // Gemini API key
	CredentialsFile string        `yaml:"credentialsFile"` // service account JSON
	Project         string        `yaml:"project"`         // optional, read from credentials file if empty
	Location        string        `yaml:"location"`        // Vertex AI region
	BaseURL         string        `yaml:"baseUrl"`         // optional endpoint override
	Timeout         time.Duration `yaml:"timeout"`         // optional, 0 keeps the library default
}

// AIProxySettings config for the AI Proxy (OpenAI-compatible) LLM.
type AIProxySettings struct {
	BaseURL      string  `yaml:"baseUrl"`      // e.g. http://localhost:8900
	APIKey       string  `yaml:"apiKey"`       // optional
	Model        string  `yaml:"model"`        // e.g. gpt-5
	SystemPrompt string  `yaml:"systemPrompt"` // optional system message
	Temperature  float32 `yaml:"temperature"`  // optional
	MaxTokens    int     `yaml:"maxTokens"`    // optional
}

// MockSettings config for the mock LLM.
type MockSettings struct {
	Delay    time.Duration `yaml:"delay"`
	Response string        `yaml:"response"`
}

// ByteSize represents a size in bytes that unmarshals from strings like "10Mi", "20MB", "512KiB", "1024".
type ByteSize uint64

// UnmarshalYAML implements yaml unmarshalling for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		str := strings.TrimSpace(value.Value)
		parsed, err := ParseByteSize(str)
		if err != nil {
			return err
		}
		*b = ByteSize(parsed)
		return nil
	}
	return fmt.Errorf("invalid bytesize node kind: %v", value.Kind)
}

var reNumeric = regexp.MustCompile(`^\d+$`)

// ParseByteSize parses a string like "10Mi", "20MB", "512KiB", "1024" into bytes.
// Supports Kubernetes-style quantities for binary units: Ki, Mi, Gi (case-insensitive).
// Also accepts KiB/MiB/GiB and decimal KB/MB/GB, and bare bytes.
func ParseByteSize(s string) (uint64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	if reNumeric.MatchString(s) {
		val, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size number: %w", err)
		}
		return val, nil
	}

	up := strings.ToUpper(s)

	type unit struct {
		suffix string
		value  uint64
	}
	// Longer suffixes first so "KIB" is not matched as "B".
	units := []unit{
		{"KIB", 1024},
		{"MIB", 1024 * 1024},
		{"GIB", 1024 * 1024 * 1024},
		{"KI", 1024},
		{"MI", 1024 * 1024},
		{"GI", 1024 * 1024 * 1024},
		{"KB", 1000},
		{"MB", 1000 * 1000},
		{"GB", 1000 * 1000 * 1000},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(up, u.suffix) {
			num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			val, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size number in %q: %w", orig, err)
			}
			if val < 0 {
				return 0, fmt.Errorf("negative size in %q", orig)
			}
			return uint64(val * float64(u.value)), nil
		}
	}
	return 0, fmt.Errorf("unknown size suffix in %q", orig)
}

// Load reads YAML config from path, expands environment variables, and validates it.
// If path is empty, it will attempt to read from env var WASTEWISE_CONFIG, then from "config.yaml".
// A missing default file is not an error: defaults and environment fallbacks are used instead.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if env := os.Getenv(common.EnvConfigPath); env != "" {
			path = env
			explicit = true
		} else {
			path = common.DefaultConfigFile
		}
	}

	var cfg Config
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
		// no config file, run on defaults
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.LogFormat) == "" {
		cfg.LogFormat = "auto"
	}
	if strings.TrimSpace(cfg.Image.Path) == "" {
		cfg.Image.Path = common.DefaultImagePath
	}

	// LLM defaults
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = common.ProviderGemini
	}

	g := &cfg.LLM.Gemini
	if strings.TrimSpace(g.Model) == "" {
		g.Model = common.DefaultGeminiModel
	}
	if strings.TrimSpace(g.CredentialsFile) == "" {
		g.CredentialsFile = os.Getenv(common.EnvCredentialsFile)
	}
	if strings.TrimSpace(g.APIKey) == "" {
		g.APIKey = firstEnv(common.EnvGoogleAPIKey, common.EnvGeminiAPIKey)
	}
	if strings.TrimSpace(g.Project) == "" {
		g.Project = os.Getenv(common.EnvCloudProject)
	}
	if strings.TrimSpace(g.Location) == "" {
		g.Location = firstNonEmpty(os.Getenv(common.EnvCloudLocation), common.DefaultCloudLocation)
	}

	if cfg.LLM.Provider == common.ProviderAIProxy {
		if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
			cfg.LLM.AIProxy.BaseURL = "http://localhost:8900"
		}
		if strings.TrimSpace(cfg.LLM.AIProxy.Model) == "" {
			cfg.LLM.AIProxy.Model = "gpt-5"
		}
	}

	if cfg.LLM.Mock.Response == "" {
		cfg.LLM.Mock.Response = "Category: recyclable. Explanation: mock response."
	}
}

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel %q is not one of debug|info|warn|error", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logFormat %q is not one of auto|text|json", cfg.LogFormat)
	}
	if cfg.Image.MinWidth < 0 || cfg.Image.MinHeight < 0 {
		return errors.New("image.minWidth and image.minHeight must not be negative")
	}

	switch cfg.LLM.Provider {
	case common.ProviderGemini:
		if cfg.LLM.Gemini.Timeout < 0 {
			return errors.New("llm.gemini.timeout must not be negative")
		}
	case common.ProviderAIProxy:
		if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
			return errors.New("llm.aiproxy.baseUrl is required")
		}
	case common.ProviderMock:
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
