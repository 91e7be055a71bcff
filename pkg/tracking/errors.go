package tracking

import "errors"

var (
	// ErrStopped is returned when running a tracker that was torn down.
	ErrStopped = errors.New("tracking: tracker stopped")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("tracking: tracker already running")

	// ErrDetectorPanic wraps a panic recovered from a detection attempt.
	ErrDetectorPanic = errors.New("tracking: detector panicked")

	// ErrMissingDependency is returned by New when a collaborator is nil.
	ErrMissingDependency = errors.New("tracking: missing dependency")
)
