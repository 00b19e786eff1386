package command

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalCompositionUse is returned when a composed command is scheduled,
	// canceled or composed again, or when a parallel composition is built from
	// children that share a requirement.
	ErrIllegalCompositionUse = errors.New("illegal composition use")

	// ErrCallbackFault marks a panic raised from a command or subsystem callback
	// while the scheduler was running. It is never returned by this package; the
	// robot loop uses it to classify faults recovered around Run.
	ErrCallbackFault = errors.New("command callback fault")
)

// UsageError describes a misuse of the command API.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%s: %s", ErrIllegalCompositionUse, e.Reason)
	}
	return fmt.Sprintf("%s: command %q: %s", ErrIllegalCompositionUse, e.Command, e.Reason)
}

// Unwrap lets errors.Is match ErrIllegalCompositionUse.
func (e *UsageError) Unwrap() error {
	return ErrIllegalCompositionUse
}

func usageError(c Command, format string, args ...any) error {
	name := ""
	if c != nil {
		name = c.Name()
	}
	return &UsageError{Command: name, Reason: fmt.Sprintf(format, args...)}
}
