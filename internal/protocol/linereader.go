package protocol

import (
	"bytes"
	"strings"
)

// Source yields raw chunks of a byte stream. Chunk boundaries carry no meaning.
type Source interface {
	Receive() ([]byte, error)
}

// LineReader splits a chunked stream into protocol lines. Lines may arrive
// split across chunks or several to a chunk.
type LineReader struct {
	src        Source
	maxLine    int
	buf        []byte
	pending    []string
	discarding bool
}

// NewLineReader returns a reader over src. Lines longer than maxLine bytes,
// terminated or not, are discarded; 0 means unbounded.
func NewLineReader(src Source, maxLine int) *LineReader {
	return &LineReader{src: src, maxLine: maxLine}
}

// Next returns the next non-empty line without its terminator. A partial
// line left when the source fails is dropped and the source error returned.
func (r *LineReader) Next() (string, error) {
	for len(r.pending) == 0 {
		chunk, err := r.src.Receive()
		if err != nil {
			r.buf = nil
			return "", err
		}
		r.feed(chunk)
	}
	line := r.pending[0]
	r.pending = r.pending[1:]
	return line, nil
}

func (r *LineReader) feed(chunk []byte) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			if !r.discarding {
				r.buf = append(r.buf, chunk...)
				if r.maxLine > 0 && len(r.buf) > r.maxLine {
					r.buf = nil
					r.discarding = true
				}
			}
			return
		}

		if r.discarding {
			r.discarding = false
		} else {
			r.buf = append(r.buf, chunk[:i]...)
			line := strings.TrimRight(string(r.buf), "\r")
			if r.maxLine > 0 && len(line) > r.maxLine {
				line = ""
			}
			if strings.TrimSpace(line) != "" {
				r.pending = append(r.pending, line)
			}
		}
		r.buf = r.buf[:0]
		chunk = chunk[i+1:]
	}
}
