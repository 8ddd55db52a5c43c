package callbacks

import (
	"fmt"

	"github.com/google/uuid"
)

// DuplicateRunError is returned when a run id is registered while an earlier
// run with the same id is still live. It indicates the execution engine
// invoked a start call twice for the same id.
type DuplicateRunError struct {
	RunID uuid.UUID
}

func (e *DuplicateRunError) Error() string {
	return fmt.Sprintf("run %s is already registered", e.RunID)
}

// UnknownRunError is returned when a lookup or removal references a run id
// that is not live. It indicates an end, error or token event arrived without
// a matching start, or arrived twice.
type UnknownRunError struct {
	RunID uuid.UUID
}

func (e *UnknownRunError) Error() string {
	return fmt.Sprintf("run %s is not registered", e.RunID)
}
