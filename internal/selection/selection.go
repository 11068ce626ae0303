// Package selection tracks which cameras the user picked for the multi view
// and freezes that pick into an immutable session.
package selection

import (
	"sync"

	"github.com/google/uuid"

	"camera-viewer-go/internal/camera"
)

// Selection is the mutable, ordered set of picked records, keyed by device
// name. Entries keep the order in which they were toggled on.
type Selection struct {
	mu      sync.Mutex
	records []camera.Record
}

// New returns an empty selection.
func New() *Selection {
	return &Selection{}
}

// Toggle removes the record with rec's key if present, otherwise appends
// rec. It reports whether rec is selected afterwards.
func (s *Selection) Toggle(rec camera.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := camera.IndexOf(s.records, rec.Key()); idx >= 0 {
		s.records = append(s.records[:idx], s.records[idx+1:]...)
		return false
	}
	s.records = append(s.records, rec)
	return true
}

// Contains reports whether key is selected.
func (s *Selection) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return camera.IndexOf(s.records, key) >= 0
}

// Len returns the number of selected records.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Keys returns the selected device names in toggle order.
func (s *Selection) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.records))
	for i, r := range s.records {
		keys[i] = r.DeviceName
	}
	return keys
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

// Sync reconciles the selection with the current registry list: entries
// whose key vanished are dropped and the rest take the registry's values.
// Order is unchanged.
func (s *Selection) Sync(registry []camera.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, sel := range s.records {
		if idx := camera.IndexOf(registry, sel.DeviceName); idx >= 0 {
			kept = append(kept, registry[idx])
		}
	}
	s.records = kept
}

// Rename moves a selected entry from oldKey to rec after an edit that
// changed the device name. It is a no-op when oldKey is not selected.
func (s *Selection) Rename(oldKey string, rec camera.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := camera.IndexOf(s.records, oldKey); idx >= 0 {
		s.records[idx] = rec
	}
}

// Build freezes the current selection into a Session.
func (s *Selection) Build() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewSession(s.records)
}

// Session is an immutable snapshot of records chosen for simultaneous
// viewing. Its ID only correlates log lines.
type Session struct {
	id      string
	cameras []camera.Record
}

// NewSession copies records into a new session.
func NewSession(records []camera.Record) Session {
	return Session{
		id:      uuid.NewString(),
		cameras: camera.Clone(records),
	}
}

// ID returns the session identifier.
func (s Session) ID() string { return s.id }

// Cameras returns a copy of the session's records in selection order.
func (s Session) Cameras() []camera.Record { return camera.Clone(s.cameras) }

// Len returns the number of records in the session.
func (s Session) Len() int { return len(s.cameras) }

// Empty reports whether the session holds no records.
func (s Session) Empty() bool { return len(s.cameras) == 0 }
