package errs

import "errors"

// Sentinels matched across layer boundaries. Errors that only one
// package matches live in that package instead.
var (
	ErrQuizNotFound   = errors.New("quiz not found")
	ErrSlotsExhausted = errors.New("no winner slots remaining")
	ErrLockTimeout    = errors.New("lock acquisition timed out")
)
