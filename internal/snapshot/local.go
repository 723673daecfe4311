package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// LocalBackend stores snapshot blobs under a directory on the local
// filesystem, writing atomically via a temp file and rename.
//
// Grounded on the teacher's storage.LocalBackend (internal/storage/local.go).
type LocalBackend struct {
	baseDir string
}

// NewLocalBackend creates baseDir if needed and returns a backend rooted there.
func NewLocalBackend(baseDir string) (*LocalBackend, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "create snapshot dir", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "resolve snapshot dir", err)
	}
	return &LocalBackend{baseDir: abs}, nil
}

func (l *LocalBackend) Type() string { return "local" }

func (l *LocalBackend) path(key string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(key))
}

func (l *LocalBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeDataCorruption, "read snapshot blob", err)
	}
	return data, nil
}

func (l *LocalBackend) Put(ctx context.Context, key string, data []byte) error {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "create snapshot dir", err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "write snapshot blob", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "commit snapshot blob", err)
	}
	return nil
}

func (l *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CodeDataCorruption, "stat snapshot blob", err)
}

func (l *LocalBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.path(key))
	if err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.CodeResourceExhausted, "delete snapshot blob", err)
	}
	return nil
}

func (l *LocalBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	root := l.baseDir
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDataCorruption, "list snapshot blobs", err)
	}
	return keys, nil
}
