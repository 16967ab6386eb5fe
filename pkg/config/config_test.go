package config

import (
	"context"
	"testing"

	"github.com/go-go-golems/chatterbox/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrInit_FirstRunSavesDefaults(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	cfg, err := LoadOrInit(ctx, s, Default())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1, s.PutCount(store.KeyConfig))

	b, ok, err := s.Get(ctx, store.KeyConfig)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"url":"https://openrouter.ai/api/v1","key":"","model":"gpt-3.5-turbo"}`, string(b))
}

func TestLoadOrInit_ReadsExisting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyConfig, []byte(`{"url":"http://localhost:8080/v1","key":"sk-1234"}`)))

	cfg, err := LoadOrInit(ctx, s, Default())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", cfg.URL)
	assert.Equal(t, "sk-1234", cfg.Key)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, 1, s.PutCount(store.KeyConfig))
}

func TestLoadOrInit_MalformedFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyConfig, []byte(`{"url":`)))

	cfg, err := LoadOrInit(ctx, s, Default())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	reloaded, ok := store.Load[Config](ctx, s, store.KeyConfig)
	require.True(t, ok)
	assert.Equal(t, Default(), reloaded)
}

func TestSave_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, Save(ctx, s, Config{URL: "http://a", Key: "k1"}))
	require.NoError(t, Save(ctx, s, Config{URL: "http://b"}))

	cfg, ok := store.Load[Config](ctx, s, store.KeyConfig)
	require.True(t, ok)
	assert.Equal(t, Config{URL: "http://b"}, cfg)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.ErrorIs(t, Config{}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{URL: "ftp://example.com"}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{URL: "https://"}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{URL: "://bad"}.Validate(), ErrInvalidConfig)
}

func TestWithOverridesAndMaskedKey(t *testing.T) {
	cfg := Default().WithOverrides("", "sk-abcdef", "")
	assert.Equal(t, DefaultURL, cfg.URL)
	assert.Equal(t, "sk-abcdef", cfg.Key)
	assert.Equal(t, "********cdef", cfg.MaskedKey())
	assert.Equal(t, "***", Config{Key: "abc"}.MaskedKey())
	assert.Equal(t, "", Config{}.MaskedKey())
}
