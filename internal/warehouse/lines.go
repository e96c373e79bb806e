package warehouse

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"
)

// lineSource streams a staged file into COPY one line per row. Lines are
// stored verbatim; parsing into records is deferred to BulkIngest so that a
// malformed file fails the ingest rather than the upload.
type lineSource struct {
	r        *bufio.Reader
	location string
	key      string
	stagedAt time.Time

	lineNo int64
	line   string
	err    error
	done   bool
}

func newLineSource(r io.Reader, location, key string, stagedAt time.Time) *lineSource {
	return &lineSource{
		r:        bufio.NewReader(r),
		location: location,
		key:      key,
		stagedAt: stagedAt,
	}
}

func (s *lineSource) Next() bool {
	if s.done {
		return false
	}
	line, err := s.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
		s.done = true
		return false
	}
	if errors.Is(err, io.EOF) {
		s.done = true
		if line == "" {
			return false
		}
	}
	s.lineNo++
	s.line = strings.TrimRight(line, "\r\n")
	return true
}

func (s *lineSource) Values() ([]any, error) {
	return []any{s.location, s.key, s.lineNo, s.line, s.stagedAt}, nil
}

func (s *lineSource) Err() error {
	return s.err
}
