package connectors

// SourceError wraps errors from the table service and records whether the
// call may succeed if repeated.
type SourceError struct {
	Err       error
	Retryable bool
}

func (e *SourceError) Error() string {
	return e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps an error as retryable
func NewRetryableError(err error) *SourceError {
	return &SourceError{
		Err:       err,
		Retryable: true,
	}
}

// NewTerminalError wraps an error as non-retryable
func NewTerminalError(err error) *SourceError {
	return &SourceError{
		Err:       err,
		Retryable: false,
	}
}

// IsRetryable reports false if any error in the tree, including every branch
// of a joined error, is a terminal SourceError. Errors that aren't marked are
// retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return true
	}

	if sourceErr, ok := err.(*SourceError); ok && !sourceErr.Retryable {
		return false
	}

	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return IsRetryable(x.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if !IsRetryable(e) {
				return false
			}
		}
	}
	return true
}
