package compiler

import (
	"errors"
	"fmt"
)

// CompileError reports a template the compiler refuses to compile. Slot is
// the expression index, or -1 when the error concerns the whole template.
type CompileError struct {
	Slot    int
	Name    string
	Message string
}

func (e *CompileError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("slot %d (%s): %s", e.Slot, e.Name, e.Message)
	case e.Slot >= 0:
		return fmt.Sprintf("slot %d: %s", e.Slot, e.Message)
	default:
		return e.Message
	}
}

// IsCompileError reports whether err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
