package specification

import (
	"fmt"

	"github.com/armadaproject/podscheduler/internal/placement"
)

// PodInstance is one of the Count copies of a pod.
type PodInstance struct {
	Pod   *PodSpec
	Index int
}

func (p *PodInstance) GetType() string {
	return p.Pod.GetType()
}

func (p *PodInstance) GetIndex() int {
	return p.Index
}

// GetName returns <type>-<index>, e.g. "web-0".
func (p *PodInstance) GetName() string {
	return fmt.Sprintf("%s-%d", p.Pod.GetType(), p.Index)
}

func (p *PodInstance) GetPlacementRule() placement.Rule {
	return p.Pod.GetPlacementRule()
}

// TaskName returns the name of the instance's copy of a task, e.g. "web-0-server".
func (p *PodInstance) TaskName(task *TaskSpec) string {
	return p.GetName() + "-" + task.GetName()
}

// TaskNames returns the names of all tasks of the instance, in declaration order.
func (p *PodInstance) TaskNames() []string {
	tasks := p.Pod.GetTasks()
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = p.TaskName(task)
	}
	return names
}
