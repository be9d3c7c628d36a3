package specification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
	"github.com/armadaproject/podscheduler/internal/placement"
)

// ServiceSpec is a named set of pods.
type ServiceSpec struct {
	Name string
	// Ordered by pod type.
	Pods []*PodSpec
}

func (s *ServiceSpec) GetPod(podType string) (*PodSpec, bool) {
	for _, pod := range s.Pods {
		if pod.GetType() == podType {
			return pod, true
		}
	}
	return nil, false
}

// PodInstance returns instance index of the pod of type podType.
func (s *ServiceSpec) PodInstance(podType string, index int) (*PodInstance, error) {
	pod, ok := s.GetPod(podType)
	if !ok {
		return nil, errors.WithStack(&schedulererrors.ErrNotFound{
			Type:    "pod",
			Value:   podType,
			Message: fmt.Sprintf("service %s has no such pod", s.Name),
		})
	}
	if index < 0 || index >= pod.GetCount() {
		return nil, schedulererrors.NewInvalidArgument(
			"index", index, "pod %s has %d instances", podType, pod.GetCount(),
		)
	}
	return &PodInstance{Pod: pod, Index: index}, nil
}

type serviceDocument struct {
	Name string                  `json:"name"`
	Pods map[string]*podDocument `json:"pods"`
}

type podDocument struct {
	User              string                   `json:"user"`
	Count             int                      `json:"count"`
	Image             string                   `json:"image"`
	AllowDecommission bool                     `json:"allow-decommission"`
	SharePidNamespace bool                     `json:"share-pid-namespace"`
	Placement         json.RawMessage          `json:"placement"`
	Tasks             map[string]*taskDocument `json:"tasks"`
}

type taskDocument struct {
	Goal   GoalState `json:"goal"`
	Cmd    string    `json:"cmd"`
	CPUs   float64   `json:"cpus"`
	Memory int       `json:"memory"`
}

// ParseServiceSpecYAML parses a service spec such as
//
//	name: hello-world
//	pods:
//	  hello:
//	    count: 3
//	    placement: '[["hostname", "UNIQUE"]]'
//	    tasks:
//	      server:
//	        goal: RUNNING
//	        cmd: ./server
//	        cpus: 0.5
//	        memory: 256
//
// Placement is either a Marathon-style constraint string or a rule document (see placement.UnmarshalRule).
// Tasks of a pod are ordered by name.
func ParseServiceSpecYAML(data []byte) (*ServiceSpec, error) {
	doc := &serviceDocument{}
	if err := yaml.UnmarshalStrict(data, doc); err != nil {
		return nil, schedulererrors.NewInvalidArgument("service", "", "invalid service spec: %s", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, schedulererrors.NewInvalidArgument("name", doc.Name, "service name must not be blank")
	}
	if len(doc.Pods) == 0 {
		return nil, schedulererrors.NewInvalidArgument("pods", doc.Name, "service must have at least one pod")
	}
	spec := &ServiceSpec{Name: doc.Name}
	podTypes := maps.Keys(doc.Pods)
	slices.Sort(podTypes)
	for _, podType := range podTypes {
		pod, err := podSpecFromDocument(podType, doc.Pods[podType])
		if err != nil {
			return nil, err
		}
		spec.Pods = append(spec.Pods, pod)
	}
	return spec, nil
}

func podSpecFromDocument(podType string, doc *podDocument) (*PodSpec, error) {
	if doc == nil {
		return nil, schedulererrors.NewInvalidArgument("pods", podType, "pod %s is empty", podType)
	}
	rule, err := parsePlacement(podType, doc.Placement)
	if err != nil {
		return nil, err
	}
	config := PodSpecConfig{
		Type:              podType,
		User:              doc.User,
		Count:             doc.Count,
		Image:             doc.Image,
		AllowDecommission: doc.AllowDecommission,
		SharePidNamespace: doc.SharePidNamespace,
		PlacementRule:     rule,
	}
	taskNames := maps.Keys(doc.Tasks)
	slices.Sort(taskNames)
	for _, name := range taskNames {
		task := doc.Tasks[name]
		if task == nil {
			task = &taskDocument{}
		}
		config.Tasks = append(config.Tasks, TaskSpecConfig{
			Name:      name,
			GoalState: task.Goal,
			Cmd:       task.Cmd,
			CPUs:      task.CPUs,
			MemoryMB:  task.Memory,
		})
	}
	return NewPodSpec(config)
}

// parsePlacement returns nil if no placement is given.
func parsePlacement(podType string, raw json.RawMessage) (placement.Rule, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var constraints string
		if err := json.Unmarshal(raw, &constraints); err != nil {
			return nil, schedulererrors.NewInvalidArgument("placement", string(raw), "%s", err)
		}
		return placement.ParseMarathonConstraints(podType, constraints)
	}
	return placement.UnmarshalRule(raw)
}
