package statestore

import (
	"fmt"

	"github.com/armadaproject/podscheduler/internal/model"
)

// ErrInconsistentState is returned when a status update names a different launch of a task than the one on record.
// Nothing is written when it's returned.
type ErrInconsistentState struct {
	TaskName     string
	StatusTaskID model.TaskID
	StoredTaskID model.TaskID
}

func (err *ErrInconsistentState) Error() string {
	return fmt.Sprintf(
		"status for task %q has task id %q but the stored task has id %q",
		err.TaskName, err.StatusTaskID, err.StoredTaskID,
	)
}
