package application

import "errors"

var (
	// ErrNotFound is returned when the referenced room, booking, event or
	// reminder does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a booking would overlap an existing one
	// for the same room and date.
	ErrConflict = errors.New("application: booking conflict")
	// ErrAlreadyExists is returned when a record with the same identity is
	// already present.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func validationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
