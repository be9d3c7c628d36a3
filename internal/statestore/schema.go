package statestore

import (
	"github.com/armadaproject/podscheduler/internal/storage"
)

const (
	namespacesRoot       = "Services"
	tasksRoot            = "Tasks"
	taskInfoNode         = "TaskInfo"
	taskStatusNode       = "TaskStatus"
	taskMetadataNode     = "Metadata"
	goalOverrideNode     = "goal-state-override"
	goalOverrideProgNode = "override-status"
	propertiesRoot       = "Properties"
)

// schema maps logical records onto persister paths.
// Every path a StateStore touches is built here, so that a store only ever reads or writes beneath its own root.
type schema struct {
	// Empty for the unnamespaced store, otherwise "Services/<namespace>".
	root string
}

func newSchema(namespace string) schema {
	if namespace == "" {
		return schema{}
	}
	return schema{root: storage.Join(namespacesRoot, namespace)}
}

func (s schema) path(elems ...string) string {
	return storage.Join(append([]string{s.root}, elems...)...)
}

func (s schema) tasks() string {
	return s.path(tasksRoot)
}

func (s schema) task(name string) string {
	return s.path(tasksRoot, name)
}

func (s schema) taskInfo(name string) string {
	return s.path(tasksRoot, name, taskInfoNode)
}

func (s schema) taskStatus(name string) string {
	return s.path(tasksRoot, name, taskStatusNode)
}

func (s schema) taskMetadata(name string) string {
	return s.path(tasksRoot, name, taskMetadataNode)
}

func (s schema) goalOverride(name string) string {
	return s.path(tasksRoot, name, taskMetadataNode, goalOverrideNode)
}

func (s schema) goalOverrideProgress(name string) string {
	return s.path(tasksRoot, name, taskMetadataNode, goalOverrideProgNode)
}

func (s schema) properties() string {
	return s.path(propertiesRoot)
}

func (s schema) property(key string) string {
	return s.path(propertiesRoot, key)
}
