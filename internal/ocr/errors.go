package ocr

import (
	"errors"
	"fmt"
)

// Common OCR errors.
var (
	// ErrEmptyDocument is returned when the provider found no pages.
	ErrEmptyDocument = errors.New("document contains no readable pages")

	// ErrUnsupportedMIME is returned for inputs the provider cannot read.
	ErrUnsupportedMIME = errors.New("unsupported document type")

	// ErrTooManyPages is returned when a PDF exceeds the synchronous page limit.
	ErrTooManyPages = errors.New("document has too many pages for synchronous OCR")

	// ErrDisabled is returned by the recognizer used when OCR is switched off.
	ErrDisabled = errors.New("ocr disabled")
)

// OCRError wraps a failure with the operation that produced it.
type OCRError struct {
	Op      string
	Err     error
	Details string
}

func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so retry classifications survive.
func (e *OCRError) Unwrap() error { return e.Err }

// wrap returns err as an *OCRError unless it already is one.
func wrap(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var oe *OCRError
	if errors.As(err, &oe) {
		return err
	}
	return &OCRError{Op: op, Err: err, Details: details}
}
