package xlsx

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the input file does not exist.
var ErrNotFound = errors.New("file not found")

// ErrInvalidArchive indicates the input is not a readable ZIP container.
var ErrInvalidArchive = errors.New("invalid archive")

// OpenError reports a failure to open a container: the file is missing,
// unreadable, or not a valid ZIP archive. An OpenError on the bootstrap
// parts fails the whole workbook open.
type OpenError struct {
	Path string
	Msg  string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("xlsx: %s", e.Msg)
	}
	return fmt.Sprintf("xlsx: %s: %s", e.Path, e.Msg)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// NewOpenError creates a new OpenError with a printf-style message.
func NewOpenError(path string, err error, format string, args ...interface{}) *OpenError {
	return &OpenError{Path: path, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// ParseError reports malformed content in one part: bad XML, a missing
// mandatory part, or an out-of-range shared-string index. It is scoped to
// the part named in Part; other parts of the container stay usable.
type ParseError struct {
	// Part is the archive entry the error was detected in.
	Part string

	// Offset is the byte offset into the part at which the error was
	// detected, when known.
	Offset int64

	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("xlsx: %s: offset %d: %s", e.Part, e.Offset, e.Msg)
	}
	if e.Part == "" {
		return fmt.Sprintf("xlsx: %s", e.Msg)
	}
	return fmt.Sprintf("xlsx: %s: %s", e.Part, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError with a printf-style message.
func NewParseError(part string, offset int64, format string, args ...interface{}) *ParseError {
	return &ParseError{Part: part, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// WriteError reports misuse of the streaming writer: an element-stack
// mismatch, an attribute added outside its legal window, or finishing with
// open elements. Once raised it is sticky; the writer appends no further
// output.
type WriteError struct {
	Op  string
	Msg string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("xlsx: %s: %s", e.Op, e.Msg)
}

// NewWriteError creates a new WriteError with a printf-style message.
func NewWriteError(op, format string, args ...interface{}) *WriteError {
	return &WriteError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
