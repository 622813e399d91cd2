package services

import (
	"bufio"
	"errors"
	"io"
)

// maxLineBytes bounds one input line. Longer lines are skipped as malformed.
const maxLineBytes = 64 * 1024

var errLineTooLong = errors.New("line exceeds maximum length")

// lineReader walks a file line by line. Unlike bufio.Scanner it keeps going
// after an oversized line, reporting it through LineErr.
type lineReader struct {
	r       *bufio.Reader
	lineNo  int
	text    string
	lineErr error
	err     error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, maxLineBytes)}
}

// Next advances to the next line. It returns false at end of input or on a
// read error, which Err then reports.
func (lr *lineReader) Next() bool {
	lr.text, lr.lineErr = "", nil

	buf, isPrefix, err := lr.r.ReadLine()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			lr.err = err
		}
		return false
	}
	lr.lineNo++

	if !isPrefix {
		lr.text = string(buf)
		return true
	}

	// discard the rest of the oversized line
	for isPrefix {
		_, isPrefix, err = lr.r.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				lr.err = err
				return false
			}
			break
		}
	}
	lr.lineErr = errLineTooLong
	return true
}

// Text is the current line without its terminator
func (lr *lineReader) Text() string { return lr.text }

// LineNo is the 1-based number of the current line
func (lr *lineReader) LineNo() int { return lr.lineNo }

// LineErr is non-nil when the current line could not be read in full
func (lr *lineReader) LineErr() error { return lr.lineErr }

func (lr *lineReader) Err() error { return lr.err }
