// Package specification holds the declared shape of a service: its pods, their tasks and placement constraints.
// Specs are built by validating constructors and aren't modified afterwards.
package specification

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
	"github.com/armadaproject/podscheduler/internal/placement"
)

// GoalState is the state the scheduler should keep a task in.
type GoalState string

const (
	GoalStateRunning GoalState = "RUNNING"
	// GoalStateFinish tasks run until they exit successfully, and are run again when their pod is replaced.
	GoalStateFinish GoalState = "FINISH"
	// GoalStateOnce tasks run until they exit successfully, once over the lifetime of the service.
	GoalStateOnce GoalState = "ONCE"
)

type TaskSpecConfig struct {
	Name string `validate:"required"`
	// Defaults to GoalStateRunning.
	GoalState GoalState `validate:"omitempty,oneof=RUNNING FINISH ONCE"`
	Cmd       string
	CPUs      float64 `validate:"gte=0"`
	MemoryMB  int     `validate:"gte=0"`
}

type TaskSpec struct {
	name      string
	goalState GoalState
	cmd       string
	cpus      float64
	memoryMB  int
}

func (t *TaskSpec) GetName() string         { return t.name }
func (t *TaskSpec) GetGoalState() GoalState { return t.goalState }
func (t *TaskSpec) GetCmd() string          { return t.cmd }
func (t *TaskSpec) GetCPUs() float64        { return t.cpus }
func (t *TaskSpec) GetMemoryMB() int        { return t.memoryMB }

type PodSpecConfig struct {
	Type              string `validate:"required"`
	User              string
	Count             int `validate:"gte=0"`
	Image             string
	AllowDecommission bool
	SharePidNamespace bool
	Tasks             []TaskSpecConfig `validate:"required,min=1,dive"`
	// Nil for pods that may be placed anywhere.
	PlacementRule placement.Rule
}

type PodSpec struct {
	podType           string
	user              string
	count             int
	image             string
	allowDecommission bool
	sharePidNamespace bool
	tasks             []*TaskSpec
	placementRule     placement.Rule
}

var validate = validator.New()

// NewPodSpec returns a PodSpec for config, or an *schedulererrors.ErrInvalidArgument describing the first
// problem with it.
func NewPodSpec(config PodSpecConfig) (*PodSpec, error) {
	if err := validate.Struct(config); err != nil {
		return nil, invalidArgumentFromValidation(config.Type, err)
	}
	if strings.TrimSpace(config.Type) == "" {
		return nil, schedulererrors.NewInvalidArgument("type", config.Type, "pod type must not be blank")
	}
	if strings.Contains(config.Type, "/") {
		return nil, schedulererrors.NewInvalidArgument("type", config.Type, "pod type must not contain '/'")
	}
	spec := &PodSpec{
		podType:           config.Type,
		user:              config.User,
		count:             config.Count,
		image:             config.Image,
		allowDecommission: config.AllowDecommission,
		sharePidNamespace: config.SharePidNamespace,
		tasks:             make([]*TaskSpec, 0, len(config.Tasks)),
		placementRule:     config.PlacementRule,
	}
	names := make(map[string]bool, len(config.Tasks))
	for _, task := range config.Tasks {
		if strings.TrimSpace(task.Name) == "" {
			return nil, schedulererrors.NewInvalidArgument("name", task.Name, "empty task name in pod %s", config.Type)
		}
		if strings.Contains(task.Name, "/") {
			return nil, schedulererrors.NewInvalidArgument("name", task.Name, "task name in pod %s must not contain '/'", config.Type)
		}
		if names[task.Name] {
			return nil, schedulererrors.NewInvalidArgument("name", task.Name, "duplicate task name in pod %s", config.Type)
		}
		names[task.Name] = true
		goalState := task.GoalState
		if goalState == "" {
			goalState = GoalStateRunning
		}
		spec.tasks = append(spec.tasks, &TaskSpec{
			name:      task.Name,
			goalState: goalState,
			cmd:       task.Cmd,
			cpus:      task.CPUs,
			memoryMB:  task.MemoryMB,
		})
	}
	return spec, nil
}

func invalidArgumentFromValidation(podType string, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fieldErr := validationErrors[0]
		return schedulererrors.NewInvalidArgument(
			fieldErr.Namespace(), fieldErr.Value(), "failed %s validation in pod %q", fieldErr.Tag(), podType,
		)
	}
	return schedulererrors.NewInvalidArgument("pod", podType, "%s", err)
}

func (p *PodSpec) GetType() string                  { return p.podType }
func (p *PodSpec) GetUser() string                  { return p.user }
func (p *PodSpec) GetCount() int                    { return p.count }
func (p *PodSpec) GetImage() string                 { return p.image }
func (p *PodSpec) GetAllowDecommission() bool       { return p.allowDecommission }
func (p *PodSpec) GetSharePidNamespace() bool       { return p.sharePidNamespace }
func (p *PodSpec) GetPlacementRule() placement.Rule { return p.placementRule }

// GetTasks returns the tasks of the pod in declaration order.
func (p *PodSpec) GetTasks() []*TaskSpec {
	tasks := make([]*TaskSpec, len(p.tasks))
	copy(tasks, p.tasks)
	return tasks
}

func (p *PodSpec) GetTask(name string) (*TaskSpec, error) {
	for _, task := range p.tasks {
		if task.name == name {
			return task, nil
		}
	}
	return nil, errors.WithStack(&schedulererrors.ErrNotFound{
		Type:    "task",
		Value:   name,
		Message: fmt.Sprintf("pod %s has no such task", p.podType),
	})
}

// Instances returns one PodInstance per index in [0, count).
func (p *PodSpec) Instances() []*PodInstance {
	instances := make([]*PodInstance, p.count)
	for i := range instances {
		instances[i] = &PodInstance{Pod: p, Index: i}
	}
	return instances
}
