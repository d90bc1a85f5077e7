package phrase

import "errors"

// Error kinds. Wrapped errors keep their kind, so callers classify with errors.Is.
var (
	// ErrValidation rejects input before any embedding call or storage access.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means no phrase has the requested id.
	ErrNotFound = errors.New("phrase not found")
	// ErrConflict means the phrase changed between read and write.
	ErrConflict = errors.New("phrase was modified concurrently")
	// ErrStorage covers connection loss, constraint violations and rolled back transactions.
	ErrStorage = errors.New("storage failure")
)
