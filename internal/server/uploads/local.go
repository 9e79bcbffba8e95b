package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/dmitrijs2005/indiec/internal/filex"
)

// LocalStore keeps uploads under a directory that the HTTP layer serves at
// urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs, urlPrefix: urlPrefix}, nil
}

// Dir is the absolute upload directory.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, key, _ string, body io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := filex.SafeJoin(s.dir, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o770); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(tmp, p)
}

func (s *LocalStore) URL(_ context.Context, key string) (string, error) {
	if _, err := filex.SafeJoin(s.dir, key); err != nil {
		return "", err
	}
	return path.Join(s.urlPrefix, key), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := filex.SafeJoin(s.dir, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
