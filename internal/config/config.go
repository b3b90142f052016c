package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clientcomms/internal/llm"
)

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Dev struct {
		Mode bool `yaml:"mode"`
	} `yaml:"dev"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	LLM    LLM `yaml:"llm"`
	Policy struct {
		Path string `yaml:"path"`
	} `yaml:"policy"`
	MCP struct {
		ProtocolVersion string   `yaml:"protocol_version"`
		AllowOrigins    []string `yaml:"allow_origins"`
	} `yaml:"mcp"`
	Security struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"security"`
	CORS struct {
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"cors"`
	Upload struct {
		MaxBytes int64 `yaml:"max_bytes"`
	} `yaml:"upload"`
	RateLimit struct {
		RPM int `yaml:"rpm"`
	} `yaml:"rate_limit"`
	Worker struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"worker"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LLM is read-only process-wide model configuration. The agent keeps a copy
// and resolves llm.Settings from it on every invocation.
type LLM struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	RepairJSON       bool          `yaml:"repair_json"`
	OpenAIKey        string        `yaml:"openai_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url"`
	AnthropicKey     string        `yaml:"anthropic_key"`
	AnthropicBaseURL string        `yaml:"anthropic_base_url"`
	OllamaURL        string        `yaml:"ollama_url"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8000"
	cfg.Dev.Mode = true
	cfg.LLM.Provider = string(llm.OpenAIProvider)
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxTokens = 4096
	cfg.LLM.Timeout = 60 * time.Second
	cfg.MCP.ProtocolVersion = "2025-11-25"
	cfg.CORS.AllowOrigins = []string{"*"}
	cfg.Upload.MaxBytes = 1 << 20
	cfg.Worker.Concurrency = 4
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := llm.ParseProviderID(c.LLM.Provider); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2], got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}

// Settings resolves the generation parameters for one invocation.
func (l LLM) Settings() (llm.Settings, error) {
	id, err := llm.ParseProviderID(l.Provider)
	if err != nil {
		return llm.Settings{}, err
	}
	model := strings.TrimSpace(l.Model)
	if model == "" {
		model = llm.DefaultModel(id)
	}
	return llm.Settings{
		Provider:    id,
		Model:       model,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
	}, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CC_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("CC_DEV_MODE"); v != "" {
		cfg.Dev.Mode = parseBool(v, cfg.Dev.Mode)
	}
	if v := os.Getenv("CC_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CC_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := env("CC_LLM_PROVIDER", "DEFAULT_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := env("CC_LLM_MODEL", "DEFAULT_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := env("CC_LLM_TEMPERATURE", "TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.Temperature = f
		}
	}
	if v := env("CC_LLM_MAX_TOKENS", "MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxTokens = n
		}
	}
	if v := os.Getenv("CC_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}
	if v := os.Getenv("CC_LLM_REPAIR_JSON"); v != "" {
		cfg.LLM.RepairJSON = parseBool(v, cfg.LLM.RepairJSON)
	}
	if v := env("CC_OPENAI_API_KEY", "OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIKey = v
	}
	if v := os.Getenv("CC_OPENAI_BASE_URL"); v != "" {
		cfg.LLM.OpenAIBaseURL = v
	}
	if v := env("CC_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicKey = v
	}
	if v := os.Getenv("CC_ANTHROPIC_BASE_URL"); v != "" {
		cfg.LLM.AnthropicBaseURL = v
	}
	if v := os.Getenv("CC_OLLAMA_URL"); v != "" {
		cfg.LLM.OllamaURL = v
	}
	if v := os.Getenv("CC_POLICY_PATH"); v != "" {
		cfg.Policy.Path = v
	}
	if v := os.Getenv("CC_MCP_PROTOCOL_VERSION"); v != "" {
		cfg.MCP.ProtocolVersion = v
	}
	if v := os.Getenv("CC_MCP_ALLOW_ORIGINS"); v != "" {
		cfg.MCP.AllowOrigins = splitCSV(v)
	}
	if v := os.Getenv("CC_API_KEY"); v != "" {
		cfg.Security.APIKey = v
	}
	if v := os.Getenv("CC_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = splitCSV(v)
	}
	if v := os.Getenv("CC_UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Upload.MaxBytes = n
		}
	}
	if v := os.Getenv("CC_RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RPM = n
		}
	}
	if v := os.Getenv("CC_WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.Concurrency = n
		}
	}
	if v := os.Getenv("CC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// env returns the first non-empty variable; the CC_ name wins over the legacy one.
func env(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}
