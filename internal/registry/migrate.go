package registry

import (
	"context"
	"encoding/json"

	"github.com/juju/errors"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/storage"
)

// SkippedEntry is a legacy entry that could not be migrated.
type SkippedEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// MigrationReport summarizes a MigrateLegacy run.
type MigrationReport struct {
	Migrated []string       `json:"migrated"`
	Skipped  []SkippedEntry `json:"skipped"`
}

// MigrateLegacy converts the {name, url} list stored under legacyKey into
// canonical records, appends the ones whose names are free and removes the
// legacy key once the merged list is saved. A missing legacy key is a
// no-op.
func (r *Registry) MigrateLegacy(ctx context.Context, legacyKey string) (MigrationReport, error) {
	var report MigrationReport
	if legacyKey == "" {
		legacyKey = LegacyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	data, err := r.store.Get(legacyKey)
	if storage.IsNotFound(err) {
		return report, nil
	}
	if err != nil {
		return report, &RetryableError{Op: "read " + legacyKey, Err: err}
	}

	var entries []camera.LegacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		err = errors.NotValidf("legacy camera list: %v", err)
		r.obs.ObserveMutation(OpMigrate, err)
		return report, err
	}

	current, err := r.read()
	if err != nil {
		r.obs.ObserveMutation(OpMigrate, err)
		return report, err
	}

	for _, e := range entries {
		rec, err := camera.FromLegacy(e)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedEntry{Name: e.Name, Reason: err.Error()})
			continue
		}
		if camera.IndexOf(current, rec.DeviceName) >= 0 {
			report.Skipped = append(report.Skipped, SkippedEntry{Name: e.Name, Reason: "name already registered"})
			continue
		}
		current = append(current, rec)
		report.Migrated = append(report.Migrated, rec.DeviceName)
	}

	if err := r.write(current); err != nil {
		r.obs.ObserveMutation(OpMigrate, err)
		return report, err
	}
	r.obs.ObserveMutation(OpMigrate, nil)

	if err := r.store.Delete(legacyKey); err != nil {
		return report, errors.Annotatef(err, "remove legacy key %q", legacyKey)
	}

	r.log.Info().
		Int("migrated", len(report.Migrated)).
		Int("skipped", len(report.Skipped)).
		Msg("legacy camera list migrated")
	return report, nil
}
