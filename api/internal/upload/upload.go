package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type: use jpg, jpeg or png")
	ErrTooLarge        = errors.New("file is too large")
	ErrEmpty           = errors.New("file is empty")
)

var allowedExt = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// Store keeps uploaded images as temp files until the analysis consumes them.
type Store struct {
	dir      string
	maxBytes int64
}

func New(dir string, maxBytes int64) *Store {
	return &Store{dir: dir, maxBytes: maxBytes}
}

// AllowedExt reports whether the file name has a jpg/jpeg/png suffix.
func AllowedExt(name string) bool {
	_, ok := allowedExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Save writes r to a new temp file keeping the original suffix and returns its path.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if _, ok := allowedExt[ext]; !ok {
		return "", ErrUnsupportedType
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o700); err != nil {
			return "", fmt.Errorf("mkdir: %w", err)
		}
	}
	f, err := os.CreateTemp(s.dir, "medvision-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	path := f.Name()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		_ = Discard(path)
		return "", fmt.Errorf("write temp: %w", err)
	case n == 0:
		_ = Discard(path)
		return "", ErrEmpty
	case s.maxBytes > 0 && n > s.maxBytes:
		_ = Discard(path)
		return "", ErrTooLarge
	}
	return path, nil
}

func (s *Store) SaveBytes(name string, data []byte) (string, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Discard removes the temp file. A missing file is not an error.
func Discard(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func Exists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
