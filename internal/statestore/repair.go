package statestore

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
	"github.com/armadaproject/podscheduler/internal/model"
)

// RepairPolicy controls which tasks are marked as failed when a StateStore is loaded.
//
// A stored status whose task id differs from the stored spec is taken to mean that the task was redeployed
// and the status describes a launch that no longer exists. That's a heuristic: it can equally hide a status
// update that was lost upstream. It is applied as configured rather than assumed.
type RepairPolicy string

const (
	// RepairMismatched fails tasks whose stored status has a different task id than their stored spec.
	RepairMismatched RepairPolicy = "FailMismatched"
	// RepairMismatchedAndMissing also fails tasks that have a stored spec but no status at all,
	// e.g. because the scheduler stopped between launching a task and hearing back about it.
	RepairMismatchedAndMissing RepairPolicy = "FailMismatchedAndMissing"
)

// DefaultRepairPolicy is used when no policy is configured.
const DefaultRepairPolicy = RepairMismatchedAndMissing

func (p RepairPolicy) validate() error {
	switch p {
	case RepairMismatched, RepairMismatchedAndMissing:
		return nil
	}
	return schedulererrors.NewInvalidArgument(
		"repairPolicy", p, "must be one of %s or %s", RepairMismatched, RepairMismatchedAndMissing,
	)
}

// repairOnLoad persists a failed status for every task selected by the repair policy.
func (s *StateStore) repairOnLoad() error {
	records, err := s.fetchStoredRecords()
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.Info == nil {
			continue
		}
		var reason string
		if record.Status == nil {
			if s.repairPolicy != RepairMismatchedAndMissing {
				continue
			}
			reason = "no status was recorded for the task"
		} else if record.Status.TaskID != record.Info.ID {
			reason = fmt.Sprintf("stored status belongs to task id %q", record.Status.TaskID)
		} else {
			continue
		}
		status := s.failedStatus(record.Info, "Task state repaired on load: "+reason)
		log.Warnf(
			"marking task %s (id %s) as %s in namespace %q: %s",
			record.Name, record.Info.ID, status.State, s.namespace, reason,
		)
		if err := s.writeStatus(record.Name, status); err != nil {
			return errors.WithMessagef(err, "failed to repair status of task %s", record.Name)
		}
	}
	return nil
}

// reconcile returns the status to report for a task given what's stored for it.
// A status belonging to another launch than the stored spec is replaced by a failed status for the spec's launch.
func (s *StateStore) reconcile(info *model.TaskInfo, status *model.TaskStatus) *model.TaskStatus {
	if info == nil || status == nil || status.TaskID == info.ID {
		return status
	}
	return s.failedStatus(info, fmt.Sprintf("Reported as failed: stored status belongs to task id %q", status.TaskID))
}

func (s *StateStore) failedStatus(info *model.TaskInfo, message string) *model.TaskStatus {
	return &model.TaskStatus{
		TaskID:    info.ID,
		State:     model.TaskStateFailed,
		Message:   message,
		AgentID:   info.AgentID,
		Timestamp: s.clock.Now(),
	}
}
