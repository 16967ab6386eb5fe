package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Open creates the store for backend rooted at dataDir.
func Open(backend Backend, dataDir string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(dataDir)
	case BackendSQLite:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create %s", dataDir)
		}
		dsn, err := SQLiteDSNForFile(filepath.Join(dataDir, "chatterbox.db"))
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn)
	default:
		return nil, errors.Errorf("unknown store backend %q", backend)
	}
}
