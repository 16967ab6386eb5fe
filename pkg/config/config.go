// Package config holds the remote endpoint settings persisted next to the
// conversations.
package config

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultURL   = "https://openrouter.ai/api/v1"
	DefaultModel = "gpt-3.5-turbo"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	URL   string `json:"url" yaml:"url"`
	Key   string `json:"key" yaml:"key"`
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

func Default() Config {
	return Config{
		URL:   DefaultURL,
		Model: DefaultModel,
	}
}

// LoadOrInit returns the persisted config. If there is none, or it cannot be
// decoded, defaults is saved and returned.
func LoadOrInit(ctx context.Context, s store.Store, defaults Config) (Config, error) {
	cfg, ok := store.Load[Config](ctx, s, store.KeyConfig)
	if ok {
		if cfg.Model == "" {
			cfg.Model = defaults.Model
		}
		return cfg, nil
	}

	log.Debug().Str("url", defaults.URL).Msg("initializing config with defaults")
	if err := Save(ctx, s, defaults); err != nil {
		return defaults, err
	}
	return defaults, nil
}

// Save overwrites the persisted config wholesale.
func Save(ctx context.Context, s store.Store, cfg Config) error {
	return store.Save(ctx, s, store.KeyConfig, cfg)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.Wrap(ErrInvalidConfig, "url is empty")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "url %q: %v", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Wrapf(ErrInvalidConfig, "url %q must be http or https", c.URL)
	}
	if u.Host == "" {
		return errors.Wrapf(ErrInvalidConfig, "url %q has no host", c.URL)
	}
	return nil
}

// WithOverrides returns a copy where every non-empty argument replaces the
// corresponding field.
func (c Config) WithOverrides(url, key, model string) Config {
	if url != "" {
		c.URL = url
	}
	if key != "" {
		c.Key = key
	}
	if model != "" {
		c.Model = model
	}
	return c
}

// MaskedKey shows only the last four characters of the key.
func (c Config) MaskedKey() string {
	if c.Key == "" {
		return ""
	}
	if len(c.Key) <= 4 {
		return strings.Repeat("*", len(c.Key))
	}
	return strings.Repeat("*", 8) + c.Key[len(c.Key)-4:]
}
