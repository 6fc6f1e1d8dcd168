package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("invalid file")
	ErrNotFound          = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("could not decode text")
	ErrExtraction        = errors.New("extraction failed")
)

// ValidationError is returned before any format logic runs when a path is
// missing, not a regular file, or over the size ceiling.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid file: %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned by the dispatcher for a path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return "file not found: " + e.Path }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UnsupportedFormatError means no registered parser matched, or every
// matching parser failed. Attempts holds the per-parser failures.
type UnsupportedFormatError struct {
	Ext       string
	Supported []string
	Attempts  []error
}

func (e *UnsupportedFormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	msg := fmt.Sprintf("no parser available for file type: %s (supported formats: %s)", ext, strings.Join(e.Supported, ", "))
	if len(e.Attempts) > 0 {
		msgs := make([]string, 0, len(e.Attempts))
		for _, a := range e.Attempts {
			msgs = append(msgs, a.Error())
		}
		msg += "; attempts: " + strings.Join(msgs, "; ")
	}
	return msg
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

func (e *UnsupportedFormatError) Unwrap() []error { return e.Attempts }

// DecodeError means every candidate character encoding failed.
type DecodeError struct {
	Path  string
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode text file: %s (tried %s)", e.Path, strings.Join(e.Tried, ", "))
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ExtractionError wraps a failure raised by an underlying format library.
type ExtractionError struct {
	Path   string
	Method string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Method, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

func (e *ExtractionError) Unwrap() error { return e.Err }
