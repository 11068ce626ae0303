package camera

import (
	"net/url"
	"strings"

	"github.com/juju/errors"
)

// LegacyEntry is the older {name, url} record layout.
type LegacyEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

var defaultPorts = map[string]int{
	"rtsp":  554,
	"rtsps": 322,
	"http":  80,
	"https": 443,
}

// FromLegacy converts a legacy entry into a canonical record. The query
// string of the legacy URL has no canonical home and is dropped.
func FromLegacy(e LegacyEntry) (Record, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return Record{}, errors.NotValidf("legacy entry without name")
	}

	u, err := url.Parse(strings.TrimSpace(e.URL))
	if err != nil {
		return Record{}, errors.NotValidf("legacy url for %q", name)
	}
	if u.Hostname() == "" {
		return Record{}, errors.NotValidf("legacy url for %q has no host", name)
	}

	port, ok := defaultPorts[strings.ToLower(u.Scheme)]
	if p := u.Port(); p != "" {
		port, err = ParsePort(p)
		if err != nil {
			return Record{}, errors.Annotatef(err, "legacy url for %q", name)
		}
	} else if !ok {
		return Record{}, errors.NotValidf("legacy url for %q has no port", name)
	}

	rec := Record{
		Host:       u.Hostname(),
		Port:       port,
		DeviceName: name,
	}
	if u.User != nil {
		rec.Username = u.User.Username()
		rec.Password, _ = u.User.Password()
	}
	if u.Path != "" && u.Path != DefaultPath && u.Path != "/" {
		rec.Path = u.Path
	}
	return rec, rec.Validate()
}

// ToLegacy renders the record in the legacy layout.
func ToLegacy(r Record, opts URIOptions) LegacyEntry {
	return LegacyEntry{Name: r.DeviceName, URL: StreamURI(r, opts)}
}
