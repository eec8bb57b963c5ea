package ollama

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/flemzord/aura/internal/provider"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 5 * time.Minute
)

// Config holds the configuration for an Ollama provider.
type Config struct {
	// BaseURL is the Ollama server root. Defaults to http://localhost:11434.
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Temperature and NumCtx map to Ollama's request options. Nil and zero
	// leave the model defaults in place.
	Temperature *float64 `yaml:"temperature"`
	NumCtx      int      `yaml:"num_ctx"`

	// KeepAlive controls how long the model stays loaded after a request,
	// in Ollama duration syntax ("5m", "-1").
	KeepAlive string        `yaml:"keep_alive"`
	Timeout   time.Duration `yaml:"timeout"`

	// Headers are sent with every request, for servers behind a proxy.
	Headers map[string]string `yaml:"headers"`

	// SkipModelCheck makes the health probe accept any reachable server
	// instead of requiring the model in /api/tags.
	SkipModelCheck bool `yaml:"skip_model_check"`

	provider.MemberConfig `yaml:",inline"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs []error
	if u, err := url.Parse(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("base_url is not a valid URL: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("base_url scheme must be http or https, got %q", u.Scheme))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.NumCtx < 0 {
		errs = append(errs, errors.New("num_ctx must not be negative"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if _, err := c.Entry("ollama", nil); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", moduleID, err)
	}
	return nil
}
