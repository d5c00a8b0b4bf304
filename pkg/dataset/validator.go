package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datapilot-io/platform/pkg/pipeline"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	errMissingFileName     = errors.New("file name required")
)

// ValidationError marks upload rejections that surface synchronously to the
// caller without creating any record.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validator screens uploads before anything is written: extension against
// the allow-list, declared size against the ceiling.
type Validator struct {
	allowedExtensions map[string]struct{}
	maxBytes          int64
}

func NewValidator(extensions []string, maxBytes int64) *Validator {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if trimmed := strings.TrimSpace(strings.ToLower(strings.TrimPrefix(ext, "."))); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	return &Validator{allowedExtensions: allowed, maxBytes: maxBytes}
}

func (v *Validator) ValidateUpload(fileName string, sizeBytes int64) error {
	if strings.TrimSpace(fileName) == "" {
		return ValidationError{reason: errMissingFileName}
	}

	ext := pipeline.ExtensionOf(fileName)
	if ext == "" {
		return ValidationError{reason: fmt.Errorf("file %q has no extension: %w", fileName, ErrUnsupportedFileType)}
	}
	if _, ok := v.allowedExtensions[ext]; !ok {
		return ValidationError{reason: fmt.Errorf("extension %q not allowed: %w", ext, ErrUnsupportedFileType)}
	}

	if v.maxBytes > 0 && sizeBytes > v.maxBytes {
		return ValidationError{reason: fmt.Errorf("file is %d bytes, limit is %d: %w", sizeBytes, v.maxBytes, ErrFileTooLarge)}
	}

	return nil
}
