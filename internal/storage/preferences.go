package storage

import (
	"fyne.io/fyne/v2"
)

// PreferencesStore keeps blobs in the fyne application preferences, the
// per-app key/value store the toolkit persists on every platform.
type PreferencesStore struct {
	prefs fyne.Preferences
}

func NewPreferencesStore(prefs fyne.Preferences) *PreferencesStore {
	return &PreferencesStore{prefs: prefs}
}

func (p *PreferencesStore) Get(key string) ([]byte, error) {
	v := p.prefs.String(key)
	if v == "" {
		return nil, notFound(key)
	}
	return []byte(v), nil
}

func (p *PreferencesStore) Set(key string, value []byte) error {
	p.prefs.SetString(key, string(value))
	return nil
}

func (p *PreferencesStore) Delete(key string) error {
	p.prefs.RemoveValue(key)
	return nil
}
