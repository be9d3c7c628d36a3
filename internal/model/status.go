package model

import (
	"fmt"
	"strings"
	"time"
)

type TaskState int

const (
	TaskStateUnknown TaskState = iota
	TaskStateStaging
	TaskStateStarting
	TaskStateRunning
	TaskStateKilling
	TaskStateFinished
	TaskStateFailed
	TaskStateKilled
	TaskStateLost
	TaskStateError
	TaskStateUnreachable
)

var taskStateNames = map[TaskState]string{
	TaskStateUnknown:     "TASK_UNKNOWN",
	TaskStateStaging:     "TASK_STAGING",
	TaskStateStarting:    "TASK_STARTING",
	TaskStateRunning:     "TASK_RUNNING",
	TaskStateKilling:     "TASK_KILLING",
	TaskStateFinished:    "TASK_FINISHED",
	TaskStateFailed:      "TASK_FAILED",
	TaskStateKilled:      "TASK_KILLED",
	TaskStateLost:        "TASK_LOST",
	TaskStateError:       "TASK_ERROR",
	TaskStateUnreachable: "TASK_UNREACHABLE",
}

func (s TaskState) String() string {
	if name, ok := taskStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// IsTerminal returns true if a task in this state will never run again.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateFinished, TaskStateFailed, TaskStateKilled, TaskStateError, TaskStateLost:
		return true
	default:
		return false
	}
}

func (s TaskState) MarshalText() ([]byte, error) {
	name, ok := taskStateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown task state %d", int(s))
	}
	return []byte(name), nil
}

func (s *TaskState) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseTaskState accepts both TASK_RUNNING and RUNNING forms, case-insensitively.
func ParseTaskState(s string) (TaskState, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(name, "TASK_") {
		name = "TASK_" + name
	}
	for state, stateName := range taskStateNames {
		if stateName == name {
			return state, nil
		}
	}
	return TaskStateUnknown, fmt.Errorf("unknown task state %q", s)
}

// TaskStatus is the last reported execution status of a task.
type TaskStatus struct {
	TaskID    TaskID    `json:"taskId"`
	State     TaskState `json:"state"`
	Message   string    `json:"message,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Equal compares every field of s and other. Timestamps are compared as instants.
func (s *TaskStatus) Equal(other *TaskStatus) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.TaskID == other.TaskID &&
		s.State == other.State &&
		s.Message == other.Message &&
		s.AgentID == other.AgentID &&
		s.Timestamp.Equal(other.Timestamp)
}
