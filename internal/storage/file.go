package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/juju/errors"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore keeps one file per key under Dir. Writes land in a temp file
// that is renamed over the target, so readers see either the old or the new
// blob.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NotValidf("empty storage dir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Annotatef(err, "storage: create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultDir returns <user config dir>/camera-viewer.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "camera-viewer")
}

// Dir returns the directory holding the blobs.
func (fs *FileStore) Dir() string { return fs.dir }

func (fs *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.NotValidf("storage key %q", key)
	}
	return filepath.Join(fs.dir, key+".json"), nil
}

func (fs *FileStore) Get(key string) ([]byte, error) {
	p, err := fs.path(key)
	if err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "storage: read %s", key)
	}
	return data, nil
}

func (fs *FileStore) Set(key string, value []byte) error {
	p, err := fs.path(key)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.dir, "."+key+".*.tmp")
	if err != nil {
		return errors.Annotatef(err, "storage: write %s", key)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		cleanup()
		return errors.Annotatef(err, "storage: write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Annotatef(err, "storage: sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Annotatef(err, "storage: close %s", key)
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return errors.Annotatef(err, "storage: replace %s", key)
	}
	return nil
}

func (fs *FileStore) Delete(key string) error {
	p, err := fs.path(key)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Annotatef(err, "storage: delete %s", key)
	}
	return nil
}
