package tsv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// DefaultDelimiter separates fields in IMDb extracts
	DefaultDelimiter = "\t"

	// DefaultMaxLineBytes bounds a single line (title_basics genres/titles can be long)
	DefaultMaxLineBytes = 1 << 20
)

// Source is a lazy, ordered sequence of delimited records.
// Next returns io.EOF once the input is exhausted.
type Source interface {
	Next() ([]string, error)
	Line() int
}

// Options configures how lines are split into records.
type Options struct {
	// Delimiter between fields (default tab)
	Delimiter string

	// SkipHeader drops the first line of the input
	SkipHeader bool

	// MaxLineBytes is the longest line accepted (0 = DefaultMaxLineBytes)
	MaxLineBytes int

	// TrimSpace strips leading and trailing whitespace, tabs included,
	// before splitting. "a\tb\t" then yields two fields, not three.
	TrimSpace bool
}

// Reader splits lines from an io.Reader into records.
type Reader struct {
	scanner   *bufio.Scanner
	delimiter string
	skip      bool
	trim      bool
	line      int
}

// NewReader creates a record reader over r
func NewReader(r io.Reader, opts Options) *Reader {
	delim := opts.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	initial := 64 * 1024
	if initial > maxLine {
		initial = maxLine
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	return &Reader{
		scanner:   scanner,
		delimiter: delim,
		skip:      opts.SkipHeader,
		trim:      opts.TrimSpace,
	}
}

// Next returns the fields of the next line.
// The line terminator is removed. Unless TrimSpace is set nothing else is
// trimmed, so trailing empty fields survive.
func (r *Reader) Next() ([]string, error) {
	for r.scanner.Scan() {
		r.line++
		if r.skip {
			r.skip = false
			continue
		}
		text := strings.TrimSuffix(r.scanner.Text(), "\r")
		if r.trim {
			text = strings.TrimSpace(text)
		}
		return strings.Split(text, r.delimiter), nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d exceeds max line length: %w", r.line+1, err)
		}
		return nil, err
	}
	return nil, io.EOF
}

// Line returns the 1-based line number of the last record returned
func (r *Reader) Line() int {
	return r.line
}

// File is a Reader bound to an open file. Close must be called on every path.
type File struct {
	*Reader
	name   string
	closer io.Closer
}

// Open opens path for reading records. "-" reads stdin.
func Open(path string, opts Options) (*File, error) {
	if path == "-" {
		return &File{Reader: NewReader(os.Stdin, opts), name: "stdin"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &File{Reader: NewReader(f, opts), name: path, closer: f}, nil
}

// Name returns the path the file was opened from
func (f *File) Name() string {
	return f.name
}

// Close releases the underlying file handle
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}
