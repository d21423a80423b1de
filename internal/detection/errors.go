package detection

import (
	"errors"
	"fmt"
)

// ErrPrecondition is wrapped by every input validation failure. Callers test
// for it with errors.Is.
var ErrPrecondition = errors.New("precondition violated")

// ErrTemplateNotSet is returned by Detect when no template has been set since
// construction or the last Release.
var ErrTemplateNotSet = fmt.Errorf("%w: template not set", ErrPrecondition)

// ErrUnsupportedMethod is returned for a capability set with no detector.
var ErrUnsupportedMethod = fmt.Errorf("%w: unsupported generalized hough method", ErrPrecondition)

func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
