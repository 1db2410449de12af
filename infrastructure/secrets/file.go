package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileBackend serves secrets from a YAML document mapping paths to key/value
// tables:
//
//	db:
//	  host: localhost
//	  password: hunter2
//
// The file is read on first use and cached.
type FileBackend struct {
	err     error
	secrets map[string]map[string]string
	path    string
	once    sync.Once
}

// NewFileBackend creates a FileBackend for the YAML file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Secrets implements Backend.
func (b *FileBackend) Secrets(_ context.Context, path string) (map[string]string, error) {
	b.once.Do(b.load)
	if b.err != nil {
		return nil, b.err
	}
	all, ok := b.secrets[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in %s", ErrNotFound, path, b.path)
	}
	return all, nil
}

func (b *FileBackend) load() {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		b.err = fmt.Errorf("read secrets file: %w", err)
		return
	}
	var doc map[string]map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		b.err = fmt.Errorf("decode secrets file %s: %w", b.path, err)
		return
	}
	b.secrets = doc
}
