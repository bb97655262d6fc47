package dessim

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMessages is returned by System.StepUntilLocalMessage when the
	// queue empties or the step budget is exhausted before the target
	// node's mailbox receives anything.
	ErrNoMessages = errors.New(`dessim: no local messages`)
)

// errInvalidDelay is a programmer error: delays must be finite and
// non-negative, and NaN is forbidden anywhere time is involved.
func errInvalidDelay(delay float64) error {
	return fmt.Errorf(`dessim: invalid delay: %v`, delay)
}

// errUnknownNode is a programmer error: facade methods must only be passed
// registered node ids.
func errUnknownNode(id string) error {
	return fmt.Errorf(`dessim: unknown node: %q`, id)
}
