package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore сохраняет объекты в файловую систему.
// Используется для локальных запусков и тестов.
type LocalStore struct {
	dir string
}

// NewLocalStore создаёт LocalStore с корнем dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Backend реализует Store.
func (s *LocalStore) Backend() string {
	return SchemeLocal
}

// Put реализует Store. Возвращает абсолютный путь к файлу.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir: %v", ErrPut, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPut, err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		return abs, nil
	}
	return path, nil
}
