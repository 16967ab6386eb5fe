// Package store provides the durable key-value persistence used for
// conversation history and configuration.
//
// A Store holds one opaque value per key. Values are whole snapshots: every
// Put replaces the previous value for the key, so saving on every mutation
// never grows the store. The typed helpers Load and Save encode values as
// JSON and treat missing or malformed data as absent.
package store

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Fixed namespaces, one per data kind.
const (
	KeyConversations = "conversations"
	KeyConfig        = "config"
)

var (
	ErrStoreClosed            = errors.New("store closed")
	ErrInvalidKey             = errors.New("invalid store key")
	ErrMalformedPersistedData = errors.New("malformed persisted data")
)

// Store is a namespaced, string-keyed durable storage medium.
type Store interface {
	// Get returns the value stored under key. ok is false if nothing is stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put atomically replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var keyRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

func ValidateKey(key string) error {
	if !keyRegexp.MatchString(key) {
		return errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return nil
}

// Load reads and decodes the value stored under key.
//
// Load never fails the caller: a missing key, a read error or a value that
// does not decode are all reported as absent. Malformed data is logged.
func Load[T any](ctx context.Context, s Store, key string) (T, bool) {
	var ret T

	b, ok, err := s.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("could not read persisted value, treating as absent")
		return ret, false
	}
	if !ok {
		log.Debug().Str("key", key).Msg("no persisted value")
		return ret, false
	}

	if err := json.Unmarshal(b, &ret); err != nil {
		err = errors.Wrapf(ErrMalformedPersistedData, "key %s: %v", key, err)
		log.Warn().Err(err).Str("key", key).Int("size", len(b)).Msg("discarding malformed persisted value")
		var zero T
		return zero, false
	}

	return ret, true
}

// Save encodes v and overwrites the value stored under key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "could not encode value for %s", key)
	}
	if err := s.Put(ctx, key, b); err != nil {
		return errors.Wrapf(err, "could not persist %s", key)
	}
	log.Trace().Str("key", key).Int("size", len(b)).Msg("persisted value")
	return nil
}
