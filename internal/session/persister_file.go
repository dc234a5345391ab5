package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FilePersister stores each slot as a file under dir.
type FilePersister struct {
	dir string
}

// NewFilePersister creates dir if needed. Files are readable by the owner only.
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FilePersister{dir: dir}, nil
}

func (f *FilePersister) path(key Key) string {
	return filepath.Join(f.dir, string(key)+".json")
}

func (f *FilePersister) Get(_ context.Context, key Key) ([]byte, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotPersisted
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return b, nil
}

// Put writes through a temp file and rename so readers never see a torn slot.
func (f *FilePersister) Put(_ context.Context, key Key, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, string(key)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (f *FilePersister) Delete(_ context.Context, keys ...Key) error {
	var errs []error
	for _, k := range keys {
		if err := os.Remove(f.path(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
