// Package config loads gateway configuration. Source priority (highest to
// lowest): environment variables, then the yaml config file, then built-in
// defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(err, "parse duration")
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Engine holds the model provider settings.
type Engine struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// SystemPrompt is prepended to every completion request.
	SystemPrompt string `yaml:"system_prompt"`
	// Timeout bounds each completion call.
	Timeout Duration `yaml:"timeout"`
}

// OAuth holds the client-credentials issuer settings.
type OAuth struct {
	// ClientSecret is the expected client_secret for token issuance.
	ClientSecret string `yaml:"client_secret"`
	// SigningSecret is the HMAC secret for issued tokens.
	SigningSecret string `yaml:"signing_secret"`
	// Issuer is the public base URL advertised in discovery metadata.
	Issuer string `yaml:"issuer"`
}

// Config is the full gateway configuration.
type Config struct {
	Addr string `yaml:"addr"`
	// APIKeys is the static bearer allowlist.
	APIKeys []string `yaml:"api_keys"`
	OAuth   OAuth    `yaml:"oauth"`
	Engine  Engine   `yaml:"engine"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr: ":8090",
		Engine: Engine{
			// LLM requests can be slow; keep the bound generous.
			Timeout: Duration(2 * time.Minute),
		},
	}
}

// Load reads the optional yaml file at path and applies environment
// overrides. An empty path skips the file; a missing file at an explicit
// path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config file")
		}
	}

	cfg.applyEnv()

	if cfg.Engine.Timeout <= 0 {
		cfg.Engine.Timeout = Default().Engine.Timeout
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GATEWAY_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("API_KEYS"); v != "" {
		c.APIKeys = splitKeys(v)
	}
	if v := os.Getenv("OAUTH_CLIENT_SECRET"); v != "" {
		c.OAuth.ClientSecret = v
	}
	if v := os.Getenv("TOKEN_SIGNING_SECRET"); v != "" {
		c.OAuth.SigningSecret = v
	}
	if v := os.Getenv("OAUTH_ISSUER"); v != "" {
		c.OAuth.Issuer = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Engine.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.Engine.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Engine.Model = v
	}
	if v := os.Getenv("LLM_SYSTEM_PROMPT"); v != "" {
		c.Engine.SystemPrompt = v
	}
}

// splitKeys parses the comma-separated API_KEYS value, dropping empty
// entries so a trailing comma cannot open an empty-key hole.
func splitKeys(s string) []string {
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
