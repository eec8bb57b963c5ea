package openaicompat

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/flemzord/aura/internal/provider"
)

const (
	defaultTimeout    = 2 * time.Minute
	defaultHealthPath = "/models"
	healthPathNone    = "none"
)

// Config is the "provider.openai_compatible" module section.
type Config struct {
	// BaseURL is the API root including the version, e.g.
	// https://api.openai.com/v1.
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// APIKey is used as is; APIKeyEnv names a variable read at startup
	// when APIKey is empty.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`

	// Organization is sent as OpenAI-Organization when set.
	Organization string            `yaml:"organization"`
	Headers      map[string]string `yaml:"headers"`

	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	// HealthPath is probed with GET while the provider is unavailable.
	// "none" skips probing for servers without a model listing.
	HealthPath string `yaml:"health_path"`

	provider.MemberConfig `yaml:",inline"`
}

func (c *Config) defaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.HealthPath == "" {
		c.HealthPath = defaultHealthPath
	}
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("base_url scheme must be http or https, got %q", u.Scheme))
	}

	switch {
	case c.APIKey != "":
	case c.APIKeyEnv != "":
		errs = append(errs, fmt.Errorf("environment variable %s is empty", c.APIKeyEnv))
	default:
		errs = append(errs, errors.New("one of api_key or api_key_env is required"))
	}

	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("max_tokens must not be negative"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.HealthPath != "" && c.HealthPath != healthPathNone && !strings.HasPrefix(c.HealthPath, "/") {
		errs = append(errs, fmt.Errorf("health_path must start with / or be %q", healthPathNone))
	}
	if _, err := c.Entry("openai_compatible", nil); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", moduleID, err)
	}
	return nil
}
