package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON document per key in a directory.
//
// Writes go to a temp file in the same directory which is synced and then
// renamed over the target, so a crash leaves either the previous or the new
// snapshot on disk, never a torn one.
type FileStore struct {
	mu     sync.RWMutex
	dir    string
	closed bool
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "file store: could not create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, false, ErrStoreClosed
	}

	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (f *FileStore) Put(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrStoreClosed
	}
	return atomicWriteFile(f.path(key), value, 0o644)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrStoreClosed
	}
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return errors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", tmpPath).Msg("could not remove temp file")
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, "could not write temp file")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "could not sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close temp file")
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return errors.Wrap(err, "could not set permissions")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "could not rename temp file")
	}

	success = true
	return nil
}
