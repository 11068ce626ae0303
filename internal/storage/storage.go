// Package storage provides the key/value blob stores the camera registry
// persists into.
package storage

import (
	"strings"

	"fyne.io/fyne/v2"
	"github.com/juju/errors"
)

// Store is a minimal key/value blob store. Get returns an error satisfying
// errors.Is(err, errors.NotFound) when the key is absent.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Backend names accepted by Open.
const (
	BackendFile        = "file"
	BackendPreferences = "preferences"
	BackendMemory      = "memory"
)

func notFound(key string) error {
	return errors.NotFoundf("storage key %q", key)
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, errors.NotFound)
}

// Open returns the store for backend. prefs is only consulted for the
// preferences backend, which needs a running fyne app.
func Open(backend, dir string, prefs fyne.Preferences) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		if dir == "" {
			dir = DefaultDir()
		}
		return NewFileStore(dir)
	case BackendPreferences:
		if prefs == nil {
			return nil, errors.NotValidf("preferences backend without an app")
		}
		return NewPreferencesStore(prefs), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, errors.NotSupportedf("storage backend %q", backend)
}
