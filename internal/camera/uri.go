package camera

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Stream URI defaults.
const (
	DefaultScheme = "rtsp"
	DefaultPath   = "/live"
)

// URIOptions controls the parts of the stream URI that are not stored on
// the record. Zero values fall back to DefaultScheme and DefaultPath.
type URIOptions struct {
	Scheme string
	Path   string
}

// StreamURI builds scheme://[user[:pass]@]host:port/path for the record.
// Userinfo is omitted when the username is empty and the password separator
// is omitted when the password is empty.
func StreamURI(r Record, opts URIOptions) string {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}

	path := r.Path
	if path == "" {
		path = opts.Path
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(r.Host, strconv.Itoa(r.Port)),
		Path:   path,
	}
	switch {
	case r.Username != "" && r.Password != "":
		u.User = url.UserPassword(r.Username, r.Password)
	case r.Username != "":
		u.User = url.User(r.Username)
	}
	return u.String()
}

// RedactURI strips userinfo from raw. Unparseable input is replaced entirely.
func RedactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid uri>"
	}
	u.User = nil
	return u.String()
}
