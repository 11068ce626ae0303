// Package probe checks whether a camera endpoint answers RTSP by issuing a
// DESCRIBE and reporting the advertised media. No media is read.
package probe

import (
	"context"
	"strings"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/juju/errors"

	"camera-viewer-go/internal/camera"
)

// DefaultTimeout bounds a probe when the caller passes zero.
const DefaultTimeout = 5 * time.Second

// Media is one media section of the session description.
type Media struct {
	Type   string   `json:"type"`
	Codecs []string `json:"codecs"`
}

// Result is what the camera advertised.
type Result struct {
	// Endpoint is the redacted URI that was probed.
	Endpoint string        `json:"endpoint"`
	Medias   []Media       `json:"medias"`
	Elapsed  time.Duration `json:"elapsed"`
}

// HasVideo reports whether any media is video.
func (r Result) HasVideo() bool {
	for _, m := range r.Medias {
		if m.Type == string(description.MediaTypeVideo) {
			return true
		}
	}
	return false
}

// Summary renders the result on one line, e.g. "video H264; audio G711".
func (r Result) Summary() string {
	if len(r.Medias) == 0 {
		return "no media advertised"
	}
	parts := make([]string, len(r.Medias))
	for i, m := range r.Medias {
		parts[i] = m.Type + " " + strings.Join(m.Codecs, ",")
	}
	return strings.Join(parts, "; ")
}

// FromSession converts a session description into media entries.
func FromSession(desc *description.Session) []Media {
	if desc == nil {
		return nil
	}
	out := make([]Media, 0, len(desc.Medias))
	for _, m := range desc.Medias {
		entry := Media{Type: string(m.Type)}
		for _, f := range m.Formats {
			entry.Codecs = append(entry.Codecs, f.Codec())
		}
		out = append(out, entry)
	}
	return out
}

// Probe connects to uri, sends DESCRIBE and closes the connection. Errors
// never carry the credentials embedded in uri.
func Probe(ctx context.Context, uri string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	redacted := camera.RedactURI(uri)
	res := Result{Endpoint: redacted}

	u, err := base.ParseURL(uri)
	if err != nil {
		return res, errors.NotValidf("stream uri %s", redacted)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := gortsplib.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	if err := c.Start(u.Scheme, u.Host); err != nil {
		return res, errors.Annotatef(scrub(err), "connect %s", redacted)
	}

	type outcome struct {
		desc *description.Session
		err  error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		desc, _, err := c.Describe(u)
		done <- outcome{desc: desc, err: err}
	}()

	select {
	case o := <-done:
		c.Close()
		res.Elapsed = time.Since(start)
		if o.err != nil {
			return res, errors.Annotatef(scrub(o.err), "describe %s", redacted)
		}
		res.Medias = FromSession(o.desc)
		return res, nil
	case <-ctx.Done():
		// Close unblocks the pending DESCRIBE.
		c.Close()
		<-done
		return res, errors.Timeoutf("describe %s", redacted)
	}
}

// scrub drops userinfo from URLs gortsplib may echo in its errors.
func scrub(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "@") {
		return err
	}
	return errors.New(redactAll(msg))
}

func redactAll(s string) string {
	var b strings.Builder
	for _, field := range strings.Fields(s) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if strings.Contains(field, "://") && strings.Contains(field, "@") {
			field = camera.RedactURI(strings.Trim(field, `"'`))
		}
		b.WriteString(field)
	}
	return b.String()
}
