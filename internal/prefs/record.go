package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const appDir = "jasktasks"

// FileRecord keeps one serialized record in a file. It satisfies
// service.Persistence.
type FileRecord struct {
	Path string
}

// DefaultPath returns <UserConfigDir>/jasktasks/<key>.json.
func DefaultPath(key string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, key+".json"), nil
}

// NewFileRecord uses path when set, otherwise DefaultPath(key).
func NewFileRecord(path, key string) (*FileRecord, error) {
	if path == "" {
		p, err := DefaultPath(key)
		if err != nil {
			return nil, fmt.Errorf("record path: %w", err)
		}
		path = p
	}
	return &FileRecord{Path: path}, nil
}

func (r *FileRecord) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save writes via a temp file and rename so a crash never leaves a partial record.
func (r *FileRecord) Save(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
		return err
	}
	tmp := r.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.Path)
}

func (r *FileRecord) Delete(ctx context.Context) error {
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
