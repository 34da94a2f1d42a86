package bench

import (
	"bufio"
	"io"
	"strings"
)

// LineReader streams lines from an input without loading it whole
type LineReader struct {
	r    *bufio.Reader
	line int
}

// NewLineReader creates a LineReader over r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

// Next returns the next line with its trailing "\n" removed. Nothing else is
// stripped, so a "\r" before the newline stays. A final line without a
// newline is still returned. At the end of input it returns io.EOF.
func (lr *LineReader) Next() (string, error) {
	s, err := lr.r.ReadString('\n')
	if err == io.EOF {
		if s == "" {
			return "", io.EOF
		}
		lr.line++
		return s, nil
	}
	if err != nil {
		return "", err
	}
	lr.line++
	return strings.TrimSuffix(s, "\n"), nil
}

// Line returns how many lines have been returned so far
func (lr *LineReader) Line() int {
	return lr.line
}
