package registry

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	"github.com/juju/errors"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/storage"
)

// blobVersion is the envelope version written by this package. Version 0
// is the bare JSON array layout, still accepted on read.
const blobVersion = 1

type envelope struct {
	Version int             `json:"version"`
	Cameras []camera.Record `json:"cameras"`
}

// RetryableError marks a storage failure: nothing was changed and the same
// call may succeed later.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return "registry: " + e.Op + ": storage unavailable: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err came from storage I/O.
func IsRetryable(err error) bool {
	var re *RetryableError
	return stderrors.As(err, &re)
}

// read fetches and decodes the list. A missing key or a malformed blob is an
// empty list; storage failures and blobs from a newer version are errors.
func (r *Registry) read() ([]camera.Record, error) {
	data, err := r.store.Get(r.key)
	if storage.IsNotFound(err) {
		return []camera.Record{}, nil
	}
	if err != nil {
		return nil, &RetryableError{Op: "read " + r.key, Err: err}
	}

	records, version, err := decode(data)
	switch {
	case errors.Is(err, errors.NotSupported):
		return nil, err
	case err != nil:
		r.log.Warn().Err(err).Str("key", r.key).Int("bytes", len(data)).Msg("malformed camera list, treating as empty")
		return []camera.Record{}, nil
	case version < blobVersion:
		r.log.Debug().Int("version", version).Msg("bare array layout, will upgrade on next save")
	}
	return records, nil
}

func (r *Registry) write(records []camera.Record) error {
	data, err := encode(records)
	if err != nil {
		return errors.Trace(err)
	}
	if err := r.store.Set(r.key, data); err != nil {
		return &RetryableError{Op: "write " + r.key, Err: err}
	}
	return nil
}

func encode(records []camera.Record) ([]byte, error) {
	if records == nil {
		records = []camera.Record{}
	}
	return json.Marshal(envelope{Version: blobVersion, Cameras: records})
}

func decode(data []byte) ([]camera.Record, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []camera.Record{}, blobVersion, nil
	}

	if data[0] == '[' {
		var records []camera.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, 0, errors.NotValidf("camera list array: %v", err)
		}
		return nonNil(records), 0, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, errors.NotValidf("camera list envelope: %v", err)
	}
	if env.Version > blobVersion {
		return nil, env.Version, errors.NotSupportedf("camera list version %d", env.Version)
	}
	return nonNil(env.Cameras), env.Version, nil
}

func nonNil(records []camera.Record) []camera.Record {
	if records == nil {
		return []camera.Record{}
	}
	return records
}
