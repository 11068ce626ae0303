// Package registry is the durable list of camera records.
//
// The whole list lives in one blob under a single storage key. Every
// mutation is a read-modify-write of that blob performed under one lock, so
// at most one mutation is in flight and callers are served in lock order.
package registry

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/storage"
)

// Storage keys.
const (
	DefaultKey = "cameraList"
	LegacyKey  = "cameras"
)

// Mutation names reported to the Observer.
const (
	OpSave    = "save"
	OpAdd     = "add"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpSeed    = "seed"
	OpMigrate = "migrate"
	OpImport  = "import"
)

// Observer is told about the outcome of every mutation.
type Observer interface {
	ObserveMutation(op string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveMutation(string, error) {}

// Options configures a Registry. Zero values select DefaultKey, a no-op
// logger and a no-op observer. Without a Default record EnsureDefault
// leaves an empty registry alone.
type Options struct {
	Key      string
	Default  *camera.Record
	Logger   zerolog.Logger
	Observer Observer
}

// Registry provides CRUD over the persisted camera list.
type Registry struct {
	store storage.Store
	key   string
	def   *camera.Record
	log   zerolog.Logger
	obs   Observer

	mu sync.Mutex
}

// New returns a registry persisting into store.
func New(store storage.Store, opts Options) *Registry {
	r := &Registry{
		store: store,
		key:   opts.Key,
		def:   opts.Default,
		log:   opts.Logger.With().Str("component", "registry").Logger(),
		obs:   opts.Observer,
	}
	if r.key == "" {
		r.key = DefaultKey
	}
	if r.obs == nil {
		r.obs = nopObserver{}
	}
	return r
}

// Key returns the storage key the list is persisted under.
func (r *Registry) Key() string { return r.key }

// Load returns the persisted list. Any failure yields an empty list; the
// reason is logged and never returned.
func (r *Registry) Load(ctx context.Context) []camera.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return []camera.Record{}
	}
	records, err := r.read()
	if err != nil {
		r.log.Warn().Err(err).Str("key", r.key).Msg("load failed, treating registry as empty")
		return []camera.Record{}
	}
	return records
}

// Save overwrites the persisted list with records, normalized the way Add
// normalizes a single record.
func (r *Registry) Save(ctx context.Context, records []camera.Record) error {
	normalized := normalizeList(records)
	if err := checkList(normalized); err != nil {
		r.obs.ObserveMutation(OpSave, err)
		return err
	}
	_, err := r.mutate(ctx, OpSave, func([]camera.Record) ([]camera.Record, error) {
		return normalized, nil
	})
	return err
}

// Add appends rec unless its device name is already registered.
func (r *Registry) Add(ctx context.Context, rec camera.Record) ([]camera.Record, error) {
	rec = rec.Normalized()
	return r.mutate(ctx, OpAdd, func(current []camera.Record) ([]camera.Record, error) {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if camera.IndexOf(current, rec.DeviceName) >= 0 {
			return nil, errors.AlreadyExistsf("camera %q", rec.DeviceName)
		}
		return append(current, rec), nil
	})
}

// Update replaces the record keyed by key, keeping its position. rec may
// carry a new device name as long as no other record uses it.
func (r *Registry) Update(ctx context.Context, key string, rec camera.Record) ([]camera.Record, error) {
	rec = rec.Normalized()
	return r.mutate(ctx, OpUpdate, func(current []camera.Record) ([]camera.Record, error) {
		idx := camera.IndexOf(current, key)
		if idx < 0 {
			return nil, errors.NotFoundf("camera %q", key)
		}
		return replaceAt(current, idx, rec)
	})
}

// UpdateAt replaces the record at index.
func (r *Registry) UpdateAt(ctx context.Context, index int, rec camera.Record) ([]camera.Record, error) {
	rec = rec.Normalized()
	return r.mutate(ctx, OpUpdate, func(current []camera.Record) ([]camera.Record, error) {
		if index < 0 || index >= len(current) {
			return nil, errors.NotFoundf("camera at index %d", index)
		}
		return replaceAt(current, index, rec)
	})
}

func replaceAt(current []camera.Record, idx int, rec camera.Record) ([]camera.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	for i, c := range current {
		if i != idx && c.DeviceName == rec.DeviceName {
			return nil, errors.AlreadyExistsf("camera %q", rec.DeviceName)
		}
	}
	current[idx] = rec
	return current, nil
}

// Delete removes the record keyed by key.
func (r *Registry) Delete(ctx context.Context, key string) ([]camera.Record, error) {
	return r.mutate(ctx, OpDelete, func(current []camera.Record) ([]camera.Record, error) {
		idx := camera.IndexOf(current, key)
		if idx < 0 {
			return nil, errors.NotFoundf("camera %q", key)
		}
		return append(current[:idx], current[idx+1:]...), nil
	})
}

// Get returns the record keyed by key.
func (r *Registry) Get(ctx context.Context, key string) (camera.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return camera.Record{}, err
	}
	current, err := r.read()
	if err != nil {
		return camera.Record{}, err
	}
	idx := camera.IndexOf(current, key)
	if idx < 0 {
		return camera.Record{}, errors.NotFoundf("camera %q", key)
	}
	return current[idx], nil
}

// List returns the persisted list, reporting read failures instead of
// hiding them the way Load does.
func (r *Registry) List(ctx context.Context) ([]camera.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.read()
}

// Export returns a strict read of the list for bulk transfer. redact blanks
// every password.
func (r *Registry) Export(ctx context.Context, redact bool) ([]camera.Record, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := camera.Clone(records)
	if redact {
		for i := range out {
			out[i].Password = ""
		}
	}
	return out, nil
}

// EnsureDefault seeds the configured default record when the registry is
// empty and returns the resulting list.
func (r *Registry) EnsureDefault(ctx context.Context) ([]camera.Record, error) {
	return r.mutate(ctx, OpSeed, func(current []camera.Record) ([]camera.Record, error) {
		if len(current) > 0 || r.def == nil {
			return current, nil
		}
		def := r.def.Normalized()
		if err := def.Validate(); err != nil {
			return nil, errors.Annotate(err, "default camera")
		}
		r.log.Info().Str("camera", def.DeviceName).Str("endpoint", def.Endpoint()).Msg("seeding default camera")
		return []camera.Record{def}, nil
	})
}

// Import adds records in bulk. With replace the list becomes exactly
// records; otherwise records with a known device name overwrite the
// existing entry in place and the rest are appended.
func (r *Registry) Import(ctx context.Context, records []camera.Record, replace bool) ([]camera.Record, error) {
	normalized := normalizeList(records)
	if err := checkList(normalized); err != nil {
		r.obs.ObserveMutation(OpImport, err)
		return nil, err
	}
	return r.mutate(ctx, OpImport, func(current []camera.Record) ([]camera.Record, error) {
		if replace {
			return normalized, nil
		}
		for _, rec := range normalized {
			if idx := camera.IndexOf(current, rec.DeviceName); idx >= 0 {
				current[idx] = rec
				continue
			}
			current = append(current, rec)
		}
		return current, nil
	})
}

// mutate runs fn against a strict read of the current list and persists
// its result. Storage failures on either side abort with a RetryableError.
func (r *Registry) mutate(ctx context.Context, op string, fn func([]camera.Record) ([]camera.Record, error)) ([]camera.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := r.read()
	if err != nil {
		r.obs.ObserveMutation(op, err)
		r.log.Error().Err(err).Str("op", op).Msg("mutation aborted, list unreadable")
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		r.obs.ObserveMutation(op, err)
		r.log.Debug().Err(err).Str("op", op).Msg("mutation rejected")
		return nil, err
	}

	if err := r.write(next); err != nil {
		r.obs.ObserveMutation(op, err)
		r.log.Error().Err(err).Str("op", op).Msg("mutation not persisted")
		return nil, err
	}

	r.obs.ObserveMutation(op, nil)
	r.log.Info().Str("op", op).Int("count", len(next)).Msg("registry updated")
	return camera.Clone(next), nil
}

// normalizeList returns a normalized copy of records.
func normalizeList(records []camera.Record) []camera.Record {
	out := make([]camera.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Normalized()
	}
	return out
}

// checkList validates every record and the uniqueness of device names.
func checkList(records []camera.Record) error {
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return errors.Annotatef(err, "record %d", i)
		}
		if _, dup := seen[rec.DeviceName]; dup {
			return errors.AlreadyExistsf("camera %q", rec.DeviceName)
		}
		seen[rec.DeviceName] = struct{}{}
	}
	return nil
}
