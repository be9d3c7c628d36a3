// Package statestore persists what the scheduler has launched: the spec and last known status of every task,
// the goal state overrides requested for them and arbitrary named properties.
//
// All records are stored through a storage.Persister. A StateStore constructed with a namespace keeps its
// records under Services/<namespace>/ and never reads or writes anything outside of it, so any number of
// namespaced stores, plus one unnamespaced store, can share a persister.
//
// A StateStore does no locking. Only one StateStore may write to a namespace at a time.
package statestore

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
	"github.com/armadaproject/podscheduler/internal/model"
	"github.com/armadaproject/podscheduler/internal/storage"
)

type Config struct {
	// If non-empty, all records are stored under Services/<Namespace>.
	Namespace string
	// Defaults to DefaultRepairPolicy.
	RepairPolicy RepairPolicy
	// If true, loading the store doesn't persist repaired statuses. Reads still report mismatched
	// statuses as failed, but tasks with no status at all are reported without one.
	ReadOnly bool
}

// TaskRecord is everything stored about one task. Info or Status may be nil.
type TaskRecord struct {
	Name   string
	Info   *model.TaskInfo
	Status *model.TaskStatus
}

type StateStore struct {
	persister    storage.Persister
	namespace    string
	schema       schema
	repairPolicy RepairPolicy
	// Used to timestamp statuses created by the store itself.
	clock clock.Clock
}

// New loads the StateStore in persister for config.Namespace, repairing task statuses according to
// config.RepairPolicy before returning unless config.ReadOnly is set.
func New(persister storage.Persister, config Config) (*StateStore, error) {
	return NewWithClock(persister, config, clock.RealClock{})
}

func NewWithClock(persister storage.Persister, config Config, clock clock.Clock) (*StateStore, error) {
	if persister == nil {
		return nil, schedulererrors.NewInvalidArgument("persister", persister, "persister must be non-nil")
	}
	if config.Namespace != "" {
		if err := validateName("namespace", config.Namespace); err != nil {
			return nil, err
		}
	}
	if config.RepairPolicy == "" {
		config.RepairPolicy = DefaultRepairPolicy
	}
	if err := config.RepairPolicy.validate(); err != nil {
		return nil, err
	}
	s := &StateStore{
		persister:    persister,
		namespace:    config.Namespace,
		schema:       newSchema(config.Namespace),
		repairPolicy: config.RepairPolicy,
		clock:        clock,
	}
	if config.ReadOnly {
		return s, nil
	}
	if err := s.repairOnLoad(); err != nil {
		return nil, errors.WithMessagef(err, "failed to load state store for namespace %q", config.Namespace)
	}
	return s, nil
}

// Namespace returns the namespace of the store, or the empty string if it isn't namespaced.
func (s *StateStore) Namespace() string {
	return s.namespace
}

// StoreTasks writes the spec of each task, replacing any spec previously stored under the same name.
// Statuses are left as they are.
func (s *StateStore) StoreTasks(tasks []*model.TaskInfo) error {
	seen := make(map[string]bool, len(tasks))
	for i, task := range tasks {
		if task == nil {
			return schedulererrors.NewInvalidArgument("tasks", i, "task at index %d is nil", i)
		}
		if err := validateName("name", task.Name); err != nil {
			return err
		}
		if seen[task.Name] {
			return schedulererrors.NewInvalidArgument("name", task.Name, "task names must be unique")
		}
		seen[task.Name] = true
		if task.ID == "" {
			return schedulererrors.NewInvalidArgument("id", task.ID, "task %s has no task id", task.Name)
		}
	}
	for _, task := range tasks {
		path := s.schema.taskInfo(task.Name)
		data, err := encode(path, task)
		if err != nil {
			return err
		}
		if err := s.persister.Set(path, data); err != nil {
			return errors.WithMessagef(err, "failed to store task %s", task.Name)
		}
	}
	return nil
}

// FetchTask returns the spec of the named task, or nil if there isn't one.
func (s *StateStore) FetchTask(name string) (*model.TaskInfo, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	return s.fetchTaskInfo(name)
}

// FetchTaskNames returns the names of all tasks with a stored spec, in the persister's key order.
func (s *StateStore) FetchTaskNames() ([]string, error) {
	records, err := s.fetchStoredRecords()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, record := range records {
		if record.Info != nil {
			names = append(names, record.Name)
		}
	}
	return names, nil
}

// FetchTasks returns the spec of every task, ordered by name.
func (s *StateStore) FetchTasks() ([]*model.TaskInfo, error) {
	records, err := s.fetchStoredRecords()
	if err != nil {
		return nil, err
	}
	tasks := make([]*model.TaskInfo, 0, len(records))
	for _, record := range records {
		if record.Info != nil {
			tasks = append(tasks, record.Info)
		}
	}
	return tasks, nil
}

// StoreStatus records the latest status of the named task.
//
// The status must be for the task id of the stored spec. If no spec is stored, which happens while recovering
// tasks the store doesn't yet know about, the status is accepted as is. Otherwise an *ErrInconsistentState is
// returned and nothing is written.
func (s *StateStore) StoreStatus(name string, status *model.TaskStatus) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	if status == nil {
		return schedulererrors.NewInvalidArgument("status", status, "status must be non-nil")
	}
	info, err := s.fetchTaskInfo(name)
	if err != nil {
		return err
	}
	if info != nil && info.ID != status.TaskID {
		return errors.WithStack(&ErrInconsistentState{
			TaskName:     name,
			StatusTaskID: status.TaskID,
			StoredTaskID: info.ID,
		})
	}
	return s.writeStatus(name, status)
}

func (s *StateStore) writeStatus(name string, status *model.TaskStatus) error {
	path := s.schema.taskStatus(name)
	data, err := encode(path, status)
	if err != nil {
		return err
	}
	if err := s.persister.Set(path, data); err != nil {
		return errors.WithMessagef(err, "failed to store status of task %s", name)
	}
	return nil
}

// FetchStatus returns the status of the named task, or nil if there isn't one.
// If the stored status is for another task id than the stored spec, a failed status for the spec's task id
// is returned in its place.
func (s *StateStore) FetchStatus(name string) (*model.TaskStatus, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	record, err := s.fetchStoredRecord(name)
	if err != nil {
		return nil, err
	}
	return s.reconcile(record.Info, record.Status), nil
}

// FetchStatuses returns the status of every task that has one, ordered by task name.
// Statuses are reconciled against specs in the same way as by FetchStatus.
func (s *StateStore) FetchStatuses() ([]*model.TaskStatus, error) {
	records, err := s.FetchRecords()
	if err != nil {
		return nil, err
	}
	statuses := make([]*model.TaskStatus, 0, len(records))
	for _, record := range records {
		if record.Status != nil {
			statuses = append(statuses, record.Status)
		}
	}
	return statuses, nil
}

// FetchRecords returns the spec and reconciled status of every known task, ordered by task name.
func (s *StateStore) FetchRecords() ([]*TaskRecord, error) {
	records, err := s.fetchStoredRecords()
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		record.Status = s.reconcile(record.Info, record.Status)
	}
	return records, nil
}

// ClearTask removes the spec, status and goal state override of the named task.
// Clearing a task that isn't stored is a no-op.
//
// The records are deleted one at a time. If the store stops part way through, what's left behind is at most a
// status without a spec, which is read back like any other status.
func (s *StateStore) ClearTask(name string) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	var result *multierror.Error
	for _, path := range []string{s.schema.taskInfo(name), s.schema.taskStatus(name)} {
		if err := s.persister.Delete(path); err != nil && !storage.IsNotFound(err) {
			result = multierror.Append(result, err)
		}
	}
	if err := s.persister.RecursiveDelete(s.schema.taskMetadata(name)); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.WithMessagef(err, "failed to clear task %s", name)
	}
	return nil
}

// StoreProperty writes value under key, replacing any previous value.
func (s *StateStore) StoreProperty(key string, value []byte) error {
	if err := validateName("key", key); err != nil {
		return err
	}
	if value == nil {
		return schedulererrors.NewInvalidArgument("value", value, "property %s must have a non-nil value", key)
	}
	if err := s.persister.Set(s.schema.property(key), value); err != nil {
		return errors.WithMessagef(err, "failed to store property %s", key)
	}
	return nil
}

// FetchProperty returns the value stored under key, or nil if there isn't one.
func (s *StateStore) FetchProperty(key string) ([]byte, error) {
	if err := validateName("key", key); err != nil {
		return nil, err
	}
	value, err := s.get(s.schema.property(key))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return value.bytes(), nil
}

// FetchPropertyKeys returns the keys of all stored properties, in the persister's key order.
func (s *StateStore) FetchPropertyKeys() ([]string, error) {
	return s.children(s.schema.properties())
}

// ClearProperty removes the value stored under key. Clearing a key with no value is a no-op.
func (s *StateStore) ClearProperty(key string) error {
	if err := validateName("key", key); err != nil {
		return err
	}
	if err := s.persister.Delete(s.schema.property(key)); err != nil && !storage.IsNotFound(err) {
		return errors.WithMessagef(err, "failed to clear property %s", key)
	}
	return nil
}

// StoreGoalOverrideStatus records the goal state override of the named task, replacing any previous one.
func (s *StateStore) StoreGoalOverrideStatus(name string, status GoalOverrideStatus) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	if err := validateGoalOverrideStatus(status); err != nil {
		return err
	}
	if err := s.persister.Set(s.schema.goalOverride(name), []byte(status.Override)); err != nil {
		return errors.WithMessagef(err, "failed to store goal state override of task %s", name)
	}
	if err := s.persister.Set(s.schema.goalOverrideProgress(name), []byte(status.Progress)); err != nil {
		return errors.WithMessagef(err, "failed to store goal state override progress of task %s", name)
	}
	return nil
}

// FetchGoalOverrideStatus returns the goal state override of the named task, or Inactive if none was stored.
func (s *StateStore) FetchGoalOverrideStatus(name string) (GoalOverrideStatus, error) {
	if err := validateName("name", name); err != nil {
		return Inactive, err
	}
	overridePath := s.schema.goalOverride(name)
	progressPath := s.schema.goalOverrideProgress(name)
	overrideValue, err := s.get(overridePath)
	if err != nil {
		return Inactive, err
	}
	progressValue, err := s.get(progressPath)
	if err != nil {
		return Inactive, err
	}
	if overrideValue == nil && progressValue == nil {
		return Inactive, nil
	}
	if overrideValue == nil || progressValue == nil {
		log.Warnf("goal state override of task %s is only partially stored; treating it as inactive", name)
		return Inactive, nil
	}
	override, err := parseOverride(overrideValue.string())
	if err != nil {
		return Inactive, storage.NewSerializationError(overridePath, err)
	}
	progress, err := parseProgress(progressValue.string())
	if err != nil {
		return Inactive, storage.NewSerializationError(progressPath, err)
	}
	return GoalOverrideStatus{Override: override, Progress: progress}, nil
}

// DeleteAllDataIfNamespaced removes everything stored in the store's namespace.
// It does nothing if the store isn't namespaced, as the unnamespaced store shares its root with every namespace.
func (s *StateStore) DeleteAllDataIfNamespaced() error {
	if s.namespace == "" {
		log.Infof("not deleting data of the unnamespaced state store")
		return nil
	}
	log.Infof("deleting all data in namespace %q", s.namespace)
	if err := s.persister.RecursiveDelete(s.schema.root); err != nil {
		return errors.WithMessagef(err, "failed to delete data in namespace %q", s.namespace)
	}
	return nil
}

// fetchStoredRecords returns the stored spec and status of every task, without reconciling them.
func (s *StateStore) fetchStoredRecords() ([]*TaskRecord, error) {
	names, err := s.children(s.schema.tasks())
	if err != nil {
		return nil, err
	}
	records := make([]*TaskRecord, 0, len(names))
	for _, name := range names {
		record, err := s.fetchStoredRecord(name)
		if err != nil {
			return nil, err
		}
		if record.Info == nil && record.Status == nil {
			// Only a goal state override is stored.
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *StateStore) fetchStoredRecord(name string) (*TaskRecord, error) {
	info, err := s.fetchTaskInfo(name)
	if err != nil {
		return nil, err
	}
	status, err := s.fetchTaskStatus(name)
	if err != nil {
		return nil, err
	}
	return &TaskRecord{Name: name, Info: info, Status: status}, nil
}

func (s *StateStore) fetchTaskInfo(name string) (*model.TaskInfo, error) {
	path := s.schema.taskInfo(name)
	value, err := s.get(path)
	if err != nil || value == nil {
		return nil, err
	}
	return decodeTaskInfo(path, value.bytes())
}

func (s *StateStore) fetchTaskStatus(name string) (*model.TaskStatus, error) {
	path := s.schema.taskStatus(name)
	value, err := s.get(path)
	if err != nil || value == nil {
		return nil, err
	}
	return decodeTaskStatus(path, value.bytes())
}

// storedValue distinguishes an empty stored value from an absent one.
type storedValue []byte

func (v *storedValue) bytes() []byte {
	if *v == nil {
		return []byte{}
	}
	return *v
}

func (v *storedValue) string() string {
	return string(*v)
}

// get returns nil if nothing is stored at path.
func (s *StateStore) get(path string) (*storedValue, error) {
	data, err := s.persister.Get(path)
	if storage.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	value := storedValue(data)
	return &value, nil
}

// children returns the names of the children of path, or an empty slice if path doesn't exist.
func (s *StateStore) children(path string) ([]string, error) {
	children, err := s.persister.GetChildren(path)
	if storage.IsNotFound(err) {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	return children, nil
}

// validateName checks that name can be used as a single path element.
func validateName(field string, name string) error {
	if strings.TrimSpace(name) == "" {
		return schedulererrors.NewInvalidArgument(field, name, "must not be blank")
	}
	if strings.Contains(name, storage.PathSeparator) {
		return schedulererrors.NewInvalidArgument(field, name, "must not contain %q", storage.PathSeparator)
	}
	return nil
}
