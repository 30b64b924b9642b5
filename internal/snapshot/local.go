package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalStore writes snapshots into a directory on disk.
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory %q: %w", dir, err)
	}
	return &LocalStore{dir: dir, logger: logger.Named("snapshot-local")}, nil
}

func (s *LocalStore) Save(_ context.Context, name string, jpeg []byte) error {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return fmt.Errorf("write snapshot %q: %w", name, err)
	}
	s.logger.Debug("snapshot written",
		zap.String("name", name), zap.Int("bytes", len(jpeg)))
	return nil
}
