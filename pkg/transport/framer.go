package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// LineTooLongError is returned by LineReader for a line above the limit.
// The line has been consumed; the next call continues with the following line.
type LineTooLongError struct {
	Size int
	Max  int
}

// Error implements the error interface
func (e *LineTooLongError) Error() string {
	return fmt.Sprintf("line of at least %d bytes exceeds limit of %d", e.Size, e.Max)
}

// LineReader splits a byte stream into newline-terminated messages
type LineReader struct {
	r            *bufio.Reader
	maxLineBytes int
}

// NewLineReader returns a reader of lines from r. A maxLineBytes of zero
// means lines are unbounded.
func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	return &LineReader{r: bufio.NewReader(r), maxLineBytes: maxLineBytes}
}

// ReadLine returns the next non-blank line with surrounding whitespace
// removed. At end of stream a trailing fragment that was never terminated
// by a newline is discarded and io.EOF is returned.
func (lr *LineReader) ReadLine() ([]byte, error) {
	for {
		line, err := lr.readRaw()
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

func (lr *LineReader) readRaw() ([]byte, error) {
	var (
		buf     []byte
		total   int
		tooLong bool
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		total += len(chunk)
		if lr.maxLineBytes > 0 && total > lr.maxLineBytes+1 {
			tooLong, buf = true, nil
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}

		switch {
		case err == nil:
			if tooLong {
				return nil, &LineTooLongError{Size: total - 1, Max: lr.maxLineBytes}
			}
			return buf, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, err
		}
	}
}
