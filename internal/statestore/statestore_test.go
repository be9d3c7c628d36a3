package statestore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
	"github.com/armadaproject/podscheduler/internal/model"
	"github.com/armadaproject/podscheduler/internal/storage"
)

const (
	testServiceName   = "test-service"
	testTaskName      = "test-task-name"
	testNamespace     = "test-namespace"
	testNamespacePath = "Services/" + testNamespace
	propertyValue     = "hello/world"
	goodPropertyKey   = "hey"
	blankPropertyKey  = "            "
	slashPropertyKey  = "hey/hi"
)

var testTime = time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)

func newPersister(t *testing.T) storage.Persister {
	persister, err := storage.NewMemPersister()
	require.NoError(t, err)
	return persister
}

func newStore(t *testing.T, persister storage.Persister, namespace string) *StateStore {
	store, err := NewWithClock(persister, Config{Namespace: namespace}, clock.NewFakeClock(testTime))
	require.NoError(t, err)
	return store
}

func newTaskInfo(name string) *model.TaskInfo {
	return &model.TaskInfo{
		Name:       name,
		ID:         model.NewTaskID(testServiceName, name),
		AgentID:    "agent-1",
		Hostname:   "host-1",
		Attributes: []model.Attribute{{Name: "rack", Value: "rack-1"}},
		Domain:     &model.FaultDomain{Region: "us-east-1", Zone: "us-east-1a"},
		PodType:    "test",
		PodIndex:   0,
		Labels:     map[string]string{"target_configuration": "abc"},
	}
}

func newStatus(id model.TaskID, state model.TaskState) *model.TaskStatus {
	return &model.TaskStatus{
		TaskID:    id,
		State:     state,
		Message:   "reported by agent",
		AgentID:   "agent-1",
		Timestamp: testTime.Add(-time.Minute),
	}
}

func assertNotFound(t *testing.T, persister storage.Persister, path string) {
	_, err := persister.Get(path)
	assert.True(t, storage.IsNotFound(err), "expected nothing at %s", path)
}

func TestPathMapping(t *testing.T) {
	tests := map[string]struct {
		namespace  string
		prefix     string
		otherRoots []string
	}{
		"unnamespaced": {
			namespace:  "",
			prefix:     "",
			otherRoots: []string{testNamespacePath},
		},
		"namespaced": {
			namespace:  testNamespace,
			prefix:     testNamespacePath + "/",
			otherRoots: []string{"", "Services/other-namespace"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			persister := newPersister(t)
			store := newStore(t, persister, tc.namespace)

			task := newTaskInfo(testTaskName)
			status := newStatus(task.ID, model.TaskStateRunning)
			override := GoalOverrideStatus{Override: OverridePaused, Progress: ProgressPending}
			require.NoError(t, store.StoreTasks([]*model.TaskInfo{task}))
			require.NoError(t, store.StoreStatus(testTaskName, status))
			require.NoError(t, store.StoreGoalOverrideStatus(testTaskName, override))
			require.NoError(t, store.StoreProperty(goodPropertyKey, []byte(propertyValue)))

			taskPath := tc.prefix + "Tasks/" + testTaskName
			value, err := persister.Get(taskPath + "/TaskInfo")
			require.NoError(t, err)
			assert.NotEmpty(t, value)
			value, err = persister.Get(taskPath + "/TaskStatus")
			require.NoError(t, err)
			assert.NotEmpty(t, value)
			value, err = persister.Get(taskPath + "/Metadata/goal-state-override")
			require.NoError(t, err)
			assert.Equal(t, "PAUSED", string(value))
			value, err = persister.Get(taskPath + "/Metadata/override-status")
			require.NoError(t, err)
			assert.Equal(t, "PENDING", string(value))
			value, err = persister.Get(tc.prefix + "Properties/" + goodPropertyKey)
			require.NoError(t, err)
			assert.Equal(t, propertyValue, string(value))

			for _, root := range tc.otherRoots {
				otherTaskPath := storage.Join(root, "Tasks", testTaskName)
				assertNotFound(t, persister, otherTaskPath+"/TaskInfo")
				assertNotFound(t, persister, otherTaskPath+"/TaskStatus")
				assertNotFound(t, persister, otherTaskPath+"/Metadata/goal-state-override")
				assertNotFound(t, persister, otherTaskPath+"/Metadata/override-status")
				assertNotFound(t, persister, storage.Join(root, "Properties", goodPropertyKey))
			}

			fetchedTask, err := store.FetchTask(testTaskName)
			require.NoError(t, err)
			assert.Equal(t, task, fetchedTask)
			fetchedStatus, err := store.FetchStatus(testTaskName)
			require.NoError(t, err)
			assert.Equal(t, status, fetchedStatus)
			fetchedOverride, err := store.FetchGoalOverrideStatus(testTaskName)
			require.NoError(t, err)
			assert.Equal(t, override, fetchedOverride)
			fetchedProperty, err := store.FetchProperty(goodPropertyKey)
			require.NoError(t, err)
			assert.Equal(t, propertyValue, string(fetchedProperty))
			assert.Equal(t, tc.namespace, store.Namespace())
		})
	}
}

func TestNamespaceIsolation(t *testing.T) {
	backends := map[string]func(t *testing.T, action func(persister storage.Persister)){
		"memory": func(t *testing.T, action func(persister storage.Persister)) {
			action(newPersister(t))
		},
		"redis": func(t *testing.T, action func(persister storage.Persister)) {
			db, err := miniredis.Run()
			require.NoError(t, err)
			defer db.Close()
			client := redis.NewClient(&redis.Options{Addr: db.Addr()})
			defer client.Close()
			action(storage.NewRedisPersister(client, ""))
		},
	}
	for name, withPersister := range backends {
		t.Run(name, func(t *testing.T) {
			withPersister(t, func(persister storage.Persister) {
				namespaces := []string{"", "ns-1", "ns-2"}
				stores := make(map[string]*StateStore)
				for _, namespace := range namespaces {
					stores[namespace] = newStore(t, persister, namespace)
				}
				for _, namespace := range namespaces {
					store := stores[namespace]
					task := newTaskInfo("task-of-" + namespace)
					require.NoError(t, store.StoreTasks([]*model.TaskInfo{task}))
					require.NoError(t, store.StoreStatus(task.Name, newStatus(task.ID, model.TaskStateRunning)))
					require.NoError(t, store.StoreGoalOverrideStatus(task.Name, GoalOverrideStatus{OverridePaused, ProgressComplete}))
					require.NoError(t, store.StoreProperty("property-of-"+namespace, []byte(namespace)))
				}
				for _, namespace := range namespaces {
					store := stores[namespace]
					names, err := store.FetchTaskNames()
					require.NoError(t, err)
					assert.Equal(t, []string{"task-of-" + namespace}, names)

					statuses, err := store.FetchStatuses()
					require.NoError(t, err)
					assert.Len(t, statuses, 1)

					keys, err := store.FetchPropertyKeys()
					require.NoError(t, err)
					assert.Equal(t, []string{"property-of-" + namespace}, keys)

					for _, other := range namespaces {
						if other == namespace {
							continue
						}
						task, err := store.FetchTask("task-of-" + other)
						require.NoError(t, err)
						assert.Nil(t, task)
						status, err := store.FetchStatus("task-of-" + other)
						require.NoError(t, err)
						assert.Nil(t, status)
						override, err := store.FetchGoalOverrideStatus("task-of-" + other)
						require.NoError(t, err)
						assert.Equal(t, Inactive, override)
						property, err := store.FetchProperty("property-of-" + other)
						require.NoError(t, err)
						assert.Nil(t, property)
					}
				}
			})
		})
	}
}

func TestStoreFetchTask(t *testing.T) {
	store := newStore(t, newPersister(t), "")

	task, err := store.FetchTask(testTaskName)
	require.NoError(t, err)
	assert.Nil(t, task)
	tasks, err := store.FetchTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
	names, err := store.FetchTaskNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	expected := newTaskInfo(testTaskName)
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{expected}))

	task, err = store.FetchTask(testTaskName)
	require.NoError(t, err)
	assert.True(t, expected.Equal(task))
	tasks, err = store.FetchTasks()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskInfo{expected}, tasks)
}

func TestRepeatedStoreTask(t *testing.T) {
	store := newStore(t, newPersister(t), "")

	require.NoError(t, store.StoreTasks([]*model.TaskInfo{newTaskInfo(testTaskName)}))
	replacement := newTaskInfo(testTaskName)
	replacement.Hostname = "host-2"
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{replacement}))

	task, err := store.FetchTask(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, replacement, task)
	names, err := store.FetchTaskNames()
	require.NoError(t, err)
	assert.Equal(t, []string{testTaskName}, names)
	tasks, err := store.FetchTasks()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskInfo{replacement}, tasks)
}

func TestFetchTaskNames_Ordering(t *testing.T) {
	store := newStore(t, newPersister(t), "")

	require.NoError(t, store.StoreTasks([]*model.TaskInfo{newTaskInfo("test-executor-1"), newTaskInfo("test-executor-0")}))
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{newTaskInfo("a")}))
	// A goal state override on its own doesn't make a task.
	require.NoError(t, store.StoreGoalOverrideStatus("b", GoalOverrideStatus{OverridePaused, ProgressPending}))

	names, err := store.FetchTaskNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "test-executor-0", "test-executor-1"}, names)
}

func TestStoreTasks_Validation(t *testing.T) {
	blank := newTaskInfo(" ")
	slash := newTaskInfo("a/b")
	noID := newTaskInfo("no-id")
	noID.ID = ""
	tests := map[string]struct {
		tasks []*model.TaskInfo
	}{
		"blank name":      {tasks: []*model.TaskInfo{newTaskInfo("ok"), blank}},
		"empty name":      {tasks: []*model.TaskInfo{newTaskInfo("")}},
		"slash in name":   {tasks: []*model.TaskInfo{slash}},
		"duplicate names": {tasks: []*model.TaskInfo{newTaskInfo("ok"), newTaskInfo("ok")}},
		"nil task":        {tasks: []*model.TaskInfo{newTaskInfo("ok"), nil}},
		"no task id":      {tasks: []*model.TaskInfo{noID}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			persister := newPersister(t)
			store := newStore(t, persister, "")

			err := store.StoreTasks(tc.tasks)
			assert.True(t, schedulererrors.IsInvalidArgument(err), "unexpected error %v", err)

			keys, err := storage.GetAllKeys(persister)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestMultipleTasks(t *testing.T) {
	store := newStore(t, newPersister(t), "")
	a := newTaskInfo("a")
	b := newTaskInfo("b")

	require.NoError(t, store.StoreTasks([]*model.TaskInfo{a}))
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{b}))
	require.NoError(t, store.StoreStatus("a", newStatus(a.ID, model.TaskStateRunning)))
	require.NoError(t, store.StoreStatus("b", newStatus(b.ID, model.TaskStateRunning)))

	names, err := store.FetchTaskNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	statuses, err := store.FetchStatuses()
	require.NoError(t, err)
	assert.Len(t, statuses, 2)

	require.NoError(t, store.ClearTask("a"))
	names, err = store.FetchTaskNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
	statuses, err = store.FetchStatuses()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskStatus{newStatus(b.ID, model.TaskStateRunning)}, statuses)

	require.NoError(t, store.ClearTask("b"))
	names, err = store.FetchTaskNames()
	require.NoError(t, err)
	assert.Empty(t, names)
	statuses, err = store.FetchStatuses()
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestClearTask(t *testing.T) {
	persister := newPersister(t)
	store := newStore(t, persister, "")
	task := newTaskInfo(testTaskName)
	other := newTaskInfo(testTaskName + "-1")

	require.NoError(t, store.StoreTasks([]*model.TaskInfo{task, other}))
	require.NoError(t, store.StoreStatus(testTaskName, newStatus(task.ID, model.TaskStateRunning)))
	require.NoError(t, store.StoreGoalOverrideStatus(testTaskName, GoalOverrideStatus{OverridePaused, ProgressComplete}))

	require.NoError(t, store.ClearTask(testTaskName))

	fetchedTask, err := store.FetchTask(testTaskName)
	require.NoError(t, err)
	assert.Nil(t, fetchedTask)
	status, err := store.FetchStatus(testTaskName)
	require.NoError(t, err)
	assert.Nil(t, status)
	override, err := store.FetchGoalOverrideStatus(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, Inactive, override)

	keys, err := storage.GetAllKeys(persister)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tasks/" + other.Name + "/TaskInfo"}, keys)

	// Clearing again, or clearing a task that was never stored, is a no-op.
	require.NoError(t, store.ClearTask(testTaskName))
	require.NoError(t, store.ClearTask("never-stored"))
}

// failingDeletePersister fails every Delete that isn't for a missing path.
type failingDeletePersister struct {
	storage.Persister
	recursiveDeletes []string
}

func (p *failingDeletePersister) Delete(path string) error {
	if _, err := p.Persister.Get(path); err != nil {
		return err
	}
	return storage.NewStorageError(path, errors.New("disk on fire"))
}

func (p *failingDeletePersister) RecursiveDelete(path string) error {
	p.recursiveDeletes = append(p.recursiveDeletes, path)
	return p.Persister.RecursiveDelete(path)
}

func TestClearTask_AggregatesErrors(t *testing.T) {
	persister := &failingDeletePersister{Persister: newPersister(t)}
	store := newStore(t, persister, "")
	task := newTaskInfo(testTaskName)
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{task}))
	require.NoError(t, store.StoreStatus(testTaskName, newStatus(task.ID, model.TaskStateRunning)))

	err := store.ClearTask(testTaskName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tasks/"+testTaskName+"/TaskInfo")
	assert.Contains(t, err.Error(), "Tasks/"+testTaskName+"/TaskStatus")
	assert.Equal(t, storage.StorageError, storage.ReasonOf(err))
	// Metadata is still removed when the earlier deletes fail.
	assert.Equal(t, []string{"Tasks/" + testTaskName + "/Metadata"}, persister.recursiveDeletes)
}

func TestStoreStatus(t *testing.T) {
	store := newStore(t, newPersister(t), "")
	task := newTaskInfo(testTaskName)
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{task}))

	status, err := store.FetchStatus(testTaskName)
	require.NoError(t, err)
	assert.Nil(t, status)

	running := newStatus(task.ID, model.TaskStateRunning)
	require.NoError(t, store.StoreStatus(testTaskName, running))
	require.NoError(t, store.StoreStatus(testTaskName, running))

	status, err = store.FetchStatus(testTaskName)
	require.NoError(t, err)
	assert.True(t, running.Equal(status))
	statuses, err := store.FetchStatuses()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskStatus{running}, statuses)

	finished := newStatus(task.ID, model.TaskStateFinished)
	require.NoError(t, store.StoreStatus(testTaskName, finished))
	status, err = store.FetchStatus(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, finished, status)
}

func TestStoreStatus_MismatchedTaskID(t *testing.T) {
	persister := newPersister(t)
	store := newStore(t, persister, "")
	task := newTaskInfo(testTaskName)
	running := newStatus(task.ID, model.TaskStateRunning)
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{task}))
	require.NoError(t, store.StoreStatus(testTaskName, running))
	before, err := persister.Get("Tasks/" + testTaskName + "/TaskStatus")
	require.NoError(t, err)

	staleID := model.NewTaskID(testServiceName, testTaskName)
	for _, state := range []model.TaskState{model.TaskStateRunning, model.TaskStateStaging, model.TaskStateFailed} {
		err = store.StoreStatus(testTaskName, newStatus(staleID, state))
		var inconsistent *ErrInconsistentState
		require.True(t, errors.As(err, &inconsistent), "unexpected error %v", err)
		assert.Equal(t, testTaskName, inconsistent.TaskName)
		assert.Equal(t, staleID, inconsistent.StatusTaskID)
		assert.Equal(t, task.ID, inconsistent.StoredTaskID)
	}

	after, err := persister.Get("Tasks/" + testTaskName + "/TaskStatus")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	status, err := store.FetchStatus(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, running, status)
}

func TestStoreStatus_WithoutTask(t *testing.T) {
	persister := newPersister(t)
	store := newStore(t, persister, "")

	first := newStatus(model.NewTaskID(testServiceName, testTaskName), model.TaskStateRunning)
	require.NoError(t, store.StoreStatus(testTaskName, first))
	status, err := store.FetchStatus(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, first, status)

	second := newStatus(model.NewTaskID(testServiceName, testTaskName), model.TaskStateStaging)
	require.NoError(t, store.StoreStatus(testTaskName, second))
	statuses, err := store.FetchStatuses()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskStatus{second}, statuses)

	// A status without a task isn't touched on load.
	reloaded := newStore(t, persister, "")
	statuses, err = reloaded.FetchStatuses()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskStatus{second}, statuses)
	tasks, err := reloaded.FetchTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStoreStatus_Validation(t *testing.T) {
	store := newStore(t, newPersister(t), "")
	status := newStatus(model.NewTaskID(testServiceName, testTaskName), model.TaskStateRunning)

	assert.True(t, schedulererrors.IsInvalidArgument(store.StoreStatus("", status)))
	assert.True(t, schedulererrors.IsInvalidArgument(store.StoreStatus("a/b", status)))
	assert.True(t, schedulererrors.IsInvalidArgument(store.StoreStatus(testTaskName, nil)))
}

func TestMismatchedTaskIDs(t *testing.T) {
	persister := newPersister(t)
	store := newStore(t, persister, "")
	original := newTaskInfo(testTaskName)
	redeployed := newTaskInfo(testTaskName)
	require.NotEqual(t, original.ID, redeployed.ID)

	require.NoError(t, store.StoreTasks([]*model.TaskInfo{original}))
	require.NoError(t, store.StoreStatus(testTaskName, newStatus(original.ID, model.TaskStateRunning)))
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{redeployed}))

	expected := &model.TaskStatus{
		TaskID:    redeployed.ID,
		State:     model.TaskStateFailed,
		Message:   `Reported as failed: stored status belongs to task id "` + string(original.ID) + `"`,
		AgentID:   redeployed.AgentID,
		Timestamp: testTime,
	}

	// Every combined read reports the repaired status, as many times as it's asked for.
	for i := 0; i < 2; i++ {
		status, err := store.FetchStatus(testTaskName)
		require.NoError(t, err)
		assert.Equal(t, expected, status)

		statuses, err := store.FetchStatuses()
		require.NoError(t, err)
		assert.Equal(t, []*model.TaskStatus{expected}, statuses)

		records, err := store.FetchRecords()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, &TaskRecord{Name: testTaskName, Info: redeployed, Status: expected}, records[0])
	}

	// Reads don't write anything.
	data, err := persister.Get("Tasks/" + testTaskName + "/TaskStatus")
	require.NoError(t, err)
	stored, err := decodeTaskStatus("", data)
	require.NoError(t, err)
	assert.Equal(t, original.ID, stored.TaskID)

	// Loading the store persists the repair.
	reloaded := newStore(t, persister, "")
	data, err = persister.Get("Tasks/" + testTaskName + "/TaskStatus")
	require.NoError(t, err)
	stored, err = decodeTaskStatus("", data)
	require.NoError(t, err)
	assert.Equal(t, redeployed.ID, stored.TaskID)
	assert.Equal(t, model.TaskStateFailed, stored.State)

	statuses, err := reloaded.FetchStatuses()
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, redeployed.ID, statuses[0].TaskID)
	assert.Equal(t, model.TaskStateFailed, statuses[0].State)
	tasks, err := reloaded.FetchTasks()
	require.NoError(t, err)
	assert.Equal(t, []*model.TaskInfo{redeployed}, tasks)
}

func TestMissingTaskStatus(t *testing.T) {
	tests := map[string]struct {
		policy         RepairPolicy
		expectRepaired bool
	}{
		"default policy": {
			policy:         "",
			expectRepaired: true,
		},
		"fail mismatched and missing": {
			policy:         RepairMismatchedAndMissing,
			expectRepaired: true,
		},
		"fail mismatched only": {
			policy:         RepairMismatched,
			expectRepaired: false,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			persister := newPersister(t)
			task := newTaskInfo(testTaskName)
			store := newStore(t, persister, "")
			require.NoError(t, store.StoreTasks([]*model.TaskInfo{task}))
			statuses, err := store.FetchStatuses()
			require.NoError(t, err)
			assert.Empty(t, statuses)

			reloaded, err := NewWithClock(persister, Config{RepairPolicy: tc.policy}, clock.NewFakeClock(testTime))
			require.NoError(t, err)
			statuses, err = reloaded.FetchStatuses()
			require.NoError(t, err)
			if !tc.expectRepaired {
				assert.Empty(t, statuses)
				return
			}
			require.Len(t, statuses, 1)
			assert.Equal(t, task.ID, statuses[0].TaskID)
			assert.Equal(t, model.TaskStateFailed, statuses[0].State)
			assert.True(t, testTime.Equal(statuses[0].Timestamp))
			tasks, err := reloaded.FetchTasks()
			require.NoError(t, err)
			assert.Equal(t, []*model.TaskInfo{task}, tasks)
		})
	}
}

func TestReadOnlyLoad(t *testing.T) {
	persister := newPersister(t)
	store := newStore(t, persister, "")
	unreported := newTaskInfo("test-executor-0")
	original := newTaskInfo("test-executor-1")
	redeployed := newTaskInfo("test-executor-1")
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{unreported, original}))
	require.NoError(t, store.StoreStatus(original.Name, newStatus(original.ID, model.TaskStateRunning)))
	require.NoError(t, store.StoreTasks([]*model.TaskInfo{redeployed}))

	keysBefore, err := storage.GetAllKeys(persister)
	require.NoError(t, err)
	statusBefore, err := persister.Get("Tasks/" + redeployed.Name + "/TaskStatus")
	require.NoError(t, err)

	readOnly, err := NewWithClock(persister, Config{ReadOnly: true}, clock.NewFakeClock(testTime))
	require.NoError(t, err)

	keysAfter, err := storage.GetAllKeys(persister)
	require.NoError(t, err)
	assert.Equal(t, keysBefore, keysAfter)
	assertNotFound(t, persister, "Tasks/"+unreported.Name+"/TaskStatus")
	statusAfter, err := persister.Get("Tasks/" + redeployed.Name + "/TaskStatus")
	require.NoError(t, err)
	assert.Equal(t, statusBefore, statusAfter)

	// Mismatched statuses are still reported as failed.
	status, err := readOnly.FetchStatus(redeployed.Name)
	require.NoError(t, err)
	assert.Equal(t, redeployed.ID, status.TaskID)
	assert.Equal(t, model.TaskStateFailed, status.State)
	status, err = readOnly.FetchStatus(unreported.Name)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestNew_Validation(t *testing.T) {
	persister := newPersister(t)

	_, err := New(persister, Config{RepairPolicy: "FailEverything"})
	assert.True(t, schedulererrors.IsInvalidArgument(err))
	_, err = New(persister, Config{Namespace: "a/b"})
	assert.True(t, schedulererrors.IsInvalidArgument(err))
	_, err = New(persister, Config{Namespace: "  "})
	assert.True(t, schedulererrors.IsInvalidArgument(err))
	_, err = New(nil, Config{})
	assert.True(t, schedulererrors.IsInvalidArgument(err))
}

func TestCorruptTaskInfo(t *testing.T) {
	persister := newPersister(t)
	store := newStore(t, persister, "")
	require.NoError(t, persister.Set("Tasks/"+testTaskName+"/TaskInfo", []byte("{not json")))

	_, err := store.FetchTask(testTaskName)
	assert.Equal(t, storage.SerializationError, storage.ReasonOf(err))
	_, err = store.FetchTasks()
	assert.Equal(t, storage.SerializationError, storage.ReasonOf(err))
	_, err = New(persister, Config{})
	assert.Equal(t, storage.SerializationError, storage.ReasonOf(err))
}

func TestProperties(t *testing.T) {
	store := newStore(t, newPersister(t), "")

	keys, err := store.FetchPropertyKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
	value, err := store.FetchProperty(goodPropertyKey)
	require.NoError(t, err)
	assert.Nil(t, value)
	require.NoError(t, store.ClearProperty(goodPropertyKey))

	require.NoError(t, store.StoreProperty(goodPropertyKey, []byte(propertyValue)))
	value, err = store.FetchProperty(goodPropertyKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(propertyValue), value)

	require.NoError(t, store.StoreProperty("empty", []byte{}))
	value, err = store.FetchProperty("empty")
	require.NoError(t, err)
	assert.NotNil(t, value)
	assert.Empty(t, value)

	keys, err = store.FetchPropertyKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", goodPropertyKey}, keys)

	require.NoError(t, store.ClearProperty(goodPropertyKey))
	require.NoError(t, store.ClearProperty("empty"))
	keys, err = store.FetchPropertyKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestProperties_Validation(t *testing.T) {
	store := newStore(t, newPersister(t), "")
	tests := map[string]struct {
		key   string
		value []byte
	}{
		"blank key":      {key: blankPropertyKey, value: []byte(propertyValue)},
		"empty key":      {key: "", value: []byte(propertyValue)},
		"key with slash": {key: slashPropertyKey, value: []byte(propertyValue)},
		"nil value":      {key: goodPropertyKey, value: nil},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.True(t, schedulererrors.IsInvalidArgument(store.StoreProperty(tc.key, tc.value)))
			if tc.value == nil {
				return
			}
			_, err := store.FetchProperty(tc.key)
			assert.True(t, schedulererrors.IsInvalidArgument(err))
			assert.True(t, schedulererrors.IsInvalidArgument(store.ClearProperty(tc.key)))
		})
	}
	keys, err := store.FetchPropertyKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGoalOverrideStatus(t *testing.T) {
	store := newStore(t, newPersister(t), "")

	status, err := store.FetchGoalOverrideStatus(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, Inactive, status)
	assert.True(t, status.IsInactive())
	assert.Equal(t, "INACTIVE", status.String())

	sequence := []GoalOverrideStatus{
		{OverridePaused, ProgressPending},
		{OverridePaused, ProgressInProgress},
		{OverridePaused, ProgressComplete},
		{OverrideNone, ProgressPending},
		{OverrideNone, ProgressInProgress},
		{OverrideNone, ProgressComplete},
		{OverridePaused, ProgressPending},
		Inactive,
	}
	for _, expected := range sequence {
		require.NoError(t, store.StoreGoalOverrideStatus(testTaskName, expected))
		status, err = store.FetchGoalOverrideStatus(testTaskName)
		require.NoError(t, err)
		assert.Equal(t, expected, status)
	}
	assert.True(t, status.IsInactive())
}

func TestGoalOverrideStatus_Validation(t *testing.T) {
	store := newStore(t, newPersister(t), "")

	err := store.StoreGoalOverrideStatus(testTaskName, GoalOverrideStatus{Override: "STOPPED", Progress: ProgressPending})
	assert.True(t, schedulererrors.IsInvalidArgument(err))
	err = store.StoreGoalOverrideStatus(testTaskName, GoalOverrideStatus{Override: OverridePaused})
	assert.True(t, schedulererrors.IsInvalidArgument(err))
	err = store.StoreGoalOverrideStatus("a/b", Inactive)
	assert.True(t, schedulererrors.IsInvalidArgument(err))

	status, err := store.FetchGoalOverrideStatus(testTaskName)
	require.NoError(t, err)
	assert.Equal(t, Inactive, status)
}

func TestGoalOverrideStatus_String(t *testing.T) {
	assert.Equal(t, "PAUSED/IN_PROGRESS", GoalOverrideStatus{OverridePaused, ProgressInProgress}.String())
	assert.Equal(t, "NONE/PENDING", GoalOverrideStatus{OverrideNone, ProgressPending}.String())
}

func TestDeleteAllDataIfNamespaced(t *testing.T) {
	t.Run("not namespaced", func(t *testing.T) {
		store := newStore(t, newPersister(t), "")
		status := newStatus(model.NewTaskID(testServiceName, testTaskName), model.TaskStateRunning)
		require.NoError(t, store.StoreStatus(testTaskName, status))

		require.NoError(t, store.DeleteAllDataIfNamespaced())

		fetched, err := store.FetchStatus(testTaskName)
		require.NoError(t, err)
		assert.Equal(t, status, fetched)
	})
	t.Run("namespaced", func(t *testing.T) {
		persister := newPersister(t)
		root := newStore(t, persister, "")
		other := newStore(t, persister, testNamespace+"-two")
		store := newStore(t, persister, testNamespace)
		status := newStatus(model.NewTaskID(testServiceName, testTaskName), model.TaskStateRunning)
		for _, s := range []*StateStore{root, other, store} {
			require.NoError(t, s.StoreStatus(testTaskName, status))
			require.NoError(t, s.StoreProperty(goodPropertyKey, []byte(propertyValue)))
		}

		require.NoError(t, store.DeleteAllDataIfNamespaced())

		fetched, err := store.FetchStatus(testTaskName)
		require.NoError(t, err)
		assert.Nil(t, fetched)
		keys, err := store.FetchPropertyKeys()
		require.NoError(t, err)
		assert.Empty(t, keys)

		for _, s := range []*StateStore{root, other} {
			fetched, err := s.FetchStatus(testTaskName)
			require.NoError(t, err)
			assert.Equal(t, status, fetched)
			keys, err := s.FetchPropertyKeys()
			require.NoError(t, err)
			assert.Equal(t, []string{goodPropertyKey}, keys)
		}
	})
}
