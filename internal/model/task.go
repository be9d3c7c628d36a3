package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TaskID identifies one launch of a task. A task that is relaunched after being redeployed gets a new TaskID.
type TaskID string

const taskIDSeparator = "__"

// NewTaskID returns a fresh id of the form <service>__<task>__<uuid>.
// The service name is rewritten so that it contains no separator and doesn't end in '_' (e.g. the '/' of
// folder-style service names is replaced), so the first separator always ends the service name and the last one
// always starts the uuid. Task names may themselves contain separators.
func NewTaskID(serviceName string, taskName string) TaskID {
	return TaskID(strings.Join([]string{sanitizeServiceName(serviceName), taskName, uuid.NewString()}, taskIDSeparator))
}

func sanitizeServiceName(serviceName string) string {
	serviceName = strings.TrimPrefix(serviceName, "/")
	serviceName = strings.ReplaceAll(serviceName, "/", ".")
	serviceName = strings.ReplaceAll(serviceName, taskIDSeparator, "_")
	return strings.TrimRight(serviceName, "_")
}

// TaskNameFromID returns the task name encoded in id: everything between the first and the last separator.
func TaskNameFromID(id TaskID) (string, error) {
	s := string(id)
	first := strings.Index(s, taskIDSeparator)
	last := strings.LastIndex(s, taskIDSeparator)
	if first < 0 || last <= first+len(taskIDSeparator) || last+len(taskIDSeparator) == len(s) {
		return "", errors.Errorf("task id %q is not of the form <service>__<task>__<uuid>", id)
	}
	return s[first+len(taskIDSeparator) : last], nil
}

// TaskInfo is the declared specification of one task as launched onto an agent.
type TaskInfo struct {
	Name       string            `json:"name"`
	ID         TaskID            `json:"id"`
	AgentID    string            `json:"agentId,omitempty"`
	Hostname   string            `json:"hostname,omitempty"`
	Attributes []Attribute       `json:"attributes,omitempty"`
	Domain     *FaultDomain      `json:"domain,omitempty"`
	PodType    string            `json:"podType,omitempty"`
	PodIndex   int               `json:"podIndex"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Equal compares every field of t and other.
func (t *TaskInfo) Equal(other *TaskInfo) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Name != other.Name ||
		t.ID != other.ID ||
		t.AgentID != other.AgentID ||
		t.Hostname != other.Hostname ||
		t.PodType != other.PodType ||
		t.PodIndex != other.PodIndex {
		return false
	}
	if !attributesEqual(t.Attributes, other.Attributes) || !t.Domain.Equal(other.Domain) {
		return false
	}
	if len(t.Labels) != len(other.Labels) {
		return false
	}
	for k, v := range t.Labels {
		if ov, ok := other.Labels[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// PodInstanceName returns the name of the pod instance this task belongs to, e.g. "web-0".
func (t *TaskInfo) PodInstanceName() string {
	return fmt.Sprintf("%s-%d", t.PodType, t.PodIndex)
}
