package service

import (
	"errors"
	"sort"
	"strings"
)

// Domain errors shared by the services.
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrNotExamOwner      = errors.New("not the owner of this exam")
	ErrNotAssigned       = errors.New("you are not assigned to this exam, please contact your administrator")
	ErrCodeExhausted     = errors.New("could not allocate a unique exam code")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAlreadySubmitted  = errors.New("you have already submitted this exam")
	ErrStudentMismatch   = errors.New("student id does not match the authenticated student")
	ErrSubmissionFailed  = errors.New("failed to submit exam, please try again")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotFound          = errors.New("not found")
	ErrAccountInactive   = errors.New("account is inactive")
)

// ValidationError carries per-field messages for a rejected request. It is
// returned before any write happens.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err is a *ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
