// Package camera defines the camera record stored in the registry and the
// connection URI derived from it.
package camera

import (
	"net"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Port bounds accepted for a camera endpoint.
const (
	MinPort = 1
	MaxPort = 65535
)

// Record describes one network camera endpoint. DeviceName is the unique key
// within a registry.
type Record struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	DeviceName string `json:"deviceName" yaml:"deviceName"`
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password" yaml:"password,omitempty"`

	// Path overrides the configured stream path. Empty means default.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Key returns the registry key of the record.
func (r Record) Key() string {
	return r.DeviceName
}

// Equal reports whether every field of r and other matches.
func (r Record) Equal(other Record) bool {
	return r == other
}

// Endpoint returns host:port, suitable for logs.
func (r Record) Endpoint() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Normalized returns a copy with surrounding whitespace removed from the
// identifying fields and IPv6 brackets dropped from the host. Credentials
// are kept as typed.
func (r Record) Normalized() Record {
	r.Host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(r.Host), "["), "]")
	r.DeviceName = strings.TrimSpace(r.DeviceName)
	r.Username = strings.TrimSpace(r.Username)
	r.Path = strings.TrimSpace(r.Path)
	return r
}

// Validate reports the first field that makes the record unusable.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.Host) == "":
		return errors.NotValidf("camera host")
	case strings.ContainsAny(r.Host, "/@?# "):
		return errors.NotValidf("camera host %q", r.Host)
	case r.Port < MinPort || r.Port > MaxPort:
		return errors.NotValidf("camera port %d", r.Port)
	case strings.TrimSpace(r.DeviceName) == "":
		return errors.NotValidf("camera device name")
	}
	return nil
}

// ParsePort converts user-entered port text into a port number.
func ParsePort(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errors.NotValidf("empty port")
	}
	port, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.NotValidf("port %q", text)
	}
	if port < MinPort || port > MaxPort {
		return 0, errors.NotValidf("port %d (want %d-%d)", port, MinPort, MaxPort)
	}
	return port, nil
}

// Clone returns a copy of records that shares no backing array with the input.
func Clone(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// IndexOf returns the position of the record with the given key, or -1.
func IndexOf(records []Record, key string) int {
	for i, r := range records {
		if r.DeviceName == key {
			return i
		}
	}
	return -1
}
