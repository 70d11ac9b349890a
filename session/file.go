package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk shape of a [FileKV].
type fileDocument struct {
	Entries map[string]string `yaml:"entries"`
}

// FileKV keeps entries in a single YAML document. Every mutation rewrites the
// file through a temp file + rename, so a crash leaves either the old or the
// new document.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV returns a [FileKV] backed by path. The file and its parent
// directory are created on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path returns the backing file location.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Entries[key]
	return v, ok, nil
}

func (f *FileKV) Set(ctx context.Context, key, value string) error {
	return f.SetMany(ctx, map[string]string{key: value})
}

func (f *FileKV) SetMany(_ context.Context, entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	for k, v := range entries {
		doc.Entries[k] = v
	}
	return f.write(doc)
}

func (f *FileKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc.Entries[k]; ok {
			delete(doc.Entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(doc)
}

func (f *FileKV) read() (fileDocument, error) {
	doc := fileDocument{Entries: map[string]string{}}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: decode %s: %v", ErrStorageUnavailable, f.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc, nil
}

func (f *FileKV) write(doc fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".gogate-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
