package rules

import (
	"errors"
	"fmt"
)

// LoadErrorCode categorizes rule loading failures.
type LoadErrorCode string

const (
	// ErrCodeUnreadable indicates the rule file could not be read.
	ErrCodeUnreadable LoadErrorCode = "RULES_UNREADABLE"

	// ErrCodeTooLarge indicates the rule file exceeds the size cap.
	ErrCodeTooLarge LoadErrorCode = "RULES_TOO_LARGE"

	// ErrCodeInvalid indicates the rule file could not be parsed.
	ErrCodeInvalid LoadErrorCode = "RULES_INVALID"

	// ErrCodeNoRoot indicates the freeze root element is missing.
	ErrCodeNoRoot LoadErrorCode = "RULES_NO_ROOT"

	// ErrCodeEmpty indicates the file parsed but defines no usable rule.
	ErrCodeEmpty LoadErrorCode = "RULES_EMPTY"
)

// LoadError describes why a rule file produced an empty table.
type LoadError struct {
	Code    LoadErrorCode
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is a LoadError with the given code.
// Uses errors.As to handle wrapped errors.
func IsLoadError(err error, code LoadErrorCode) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
