package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound          = errors.New("ocr run not found")
	ErrFileNotFound         = errors.New("file not found")
	ErrArtifactNotFound     = errors.New("artifact not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotPDF               = errors.New("not a pdf")
	ErrStateConflict        = errors.New("invalid state transition")
	ErrConverterUnavailable = errors.New("conversion engine unavailable")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
