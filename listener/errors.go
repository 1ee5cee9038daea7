package listener

import "fmt"

// ClassificationError reports a failure to normalize or classify an event path.
type ClassificationError struct {
	Path string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifying %q: %v", e.Path, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// CollaboratorIOError reports a failed filesystem-cache or rebuild call.
type CollaboratorIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CollaboratorIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *CollaboratorIOError) Unwrap() error { return e.Err }
