package player

import (
	"bytes"
	"io"

	"github.com/juju/errors"
)

const (
	readChunk     = 8192
	maxFrameBytes = 4 << 20
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}

	errFrameTooLarge = errors.New("mjpeg frame exceeds size limit")
)

// mjpegReader splits a concatenated JPEG byte stream (ffmpeg image2pipe
// output) into individual frames on SOI/EOI markers.
type mjpegReader struct {
	r       io.Reader
	chunk   []byte
	pending []byte
	eof     bool
}

func newMJPEGReader(r io.Reader) *mjpegReader {
	return &mjpegReader{
		r:       r,
		chunk:   make([]byte, readChunk),
		pending: make([]byte, 0, 256<<10),
	}
}

// Next returns the next complete JPEG. The returned slice is owned by the
// caller. errFrameTooLarge means bytes were discarded to resync; the stream
// can still be read.
func (m *mjpegReader) Next() ([]byte, error) {
	for {
		if start := bytes.Index(m.pending, jpegSOI); start >= 0 {
			if start > 0 {
				m.pending = append(m.pending[:0], m.pending[start:]...)
			}
			if end := bytes.Index(m.pending[len(jpegSOI):], jpegEOI); end >= 0 {
				n := len(jpegSOI) + end + len(jpegEOI)
				frame := make([]byte, n)
				copy(frame, m.pending[:n])
				m.pending = append(m.pending[:0], m.pending[n:]...)
				return frame, nil
			}
			if len(m.pending) > maxFrameBytes {
				m.pending = m.pending[:0]
				return nil, errFrameTooLarge
			}
		} else if len(m.pending) > 1 {
			// keep a trailing 0xFF in case the marker straddles reads
			last := m.pending[len(m.pending)-1]
			m.pending = m.pending[:0]
			if last == 0xFF {
				m.pending = append(m.pending, last)
			}
		}

		if m.eof {
			return nil, io.EOF
		}
		n, err := m.r.Read(m.chunk)
		m.pending = append(m.pending, m.chunk[:n]...)
		if err == io.EOF {
			m.eof = true
		} else if err != nil {
			return nil, err
		}
	}
}
