package statestore

import (
	"github.com/pkg/errors"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

// Override is the goal state an operator has asked a task to take on in place of the one in its spec.
type Override string

const (
	OverrideNone   Override = "NONE"
	OverridePaused Override = "PAUSED"
)

// Progress tracks how far the scheduler has got in applying an Override.
type Progress string

const (
	ProgressPending    Progress = "PENDING"
	ProgressInProgress Progress = "IN_PROGRESS"
	ProgressComplete   Progress = "COMPLETE"
)

// GoalOverrideStatus is the override ledger entry of one task.
// The store records whatever it's given; it doesn't check that one status may follow another.
type GoalOverrideStatus struct {
	Override Override
	Progress Progress
}

// Inactive is returned for tasks that have never had an override: nothing is requested and nothing is outstanding.
var Inactive = GoalOverrideStatus{Override: OverrideNone, Progress: ProgressComplete}

func (s GoalOverrideStatus) IsInactive() bool {
	return s == Inactive
}

func (s GoalOverrideStatus) String() string {
	if s.IsInactive() {
		return "INACTIVE"
	}
	return string(s.Override) + "/" + string(s.Progress)
}

func parseOverride(s string) (Override, error) {
	switch o := Override(s); o {
	case OverrideNone, OverridePaused:
		return o, nil
	}
	return "", errors.Errorf("unknown goal state override %q", s)
}

func parseProgress(s string) (Progress, error) {
	switch p := Progress(s); p {
	case ProgressPending, ProgressInProgress, ProgressComplete:
		return p, nil
	}
	return "", errors.Errorf("unknown goal state override progress %q", s)
}

func validateGoalOverrideStatus(status GoalOverrideStatus) error {
	if _, err := parseOverride(string(status.Override)); err != nil {
		return schedulererrors.NewInvalidArgument("override", status.Override, "%s", err)
	}
	if _, err := parseProgress(string(status.Progress)); err != nil {
		return schedulererrors.NewInvalidArgument("progress", status.Progress, "%s", err)
	}
	return nil
}
