package scheduler

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
	"github.com/armadaproject/podscheduler/internal/model"
	"github.com/armadaproject/podscheduler/internal/placement"
	"github.com/armadaproject/podscheduler/internal/specification"
	"github.com/armadaproject/podscheduler/internal/statestore"
)

// OfferOutcome is the result of evaluating one offer for a pod instance.
type OfferOutcome struct {
	Offer   *model.Offer
	Outcome *placement.Outcome
}

// PlacementResult is the result of evaluating a batch of offers for a pod instance.
type PlacementResult struct {
	PodInstance string
	// One per offer, in offer order. Offers after the accepted one aren't evaluated.
	Outcomes []*OfferOutcome
	// Nil if no offer was accepted.
	Accepted *model.Offer
	// Tasks written to the state store for the accepted offer.
	Tasks []*model.TaskInfo
}

// OfferEvaluator decides where pod instances are placed and records the tasks it places in a StateStore.
type OfferEvaluator struct {
	serviceName string
	stateStore  *statestore.StateStore
	metrics     *evaluatorMetrics
}

func NewOfferEvaluator(serviceName string, stateStore *statestore.StateStore, reg prometheus.Registerer) *OfferEvaluator {
	return &OfferEvaluator{
		serviceName: serviceName,
		stateStore:  stateStore,
		metrics:     newEvaluatorMetrics(reg),
	}
}

// Explain evaluates every offer for pod against the tasks currently in the state store, without placing anything.
func (e *OfferEvaluator) Explain(pod *specification.PodInstance, offers []*model.Offer) ([]*OfferOutcome, error) {
	placedTasks, err := e.stateStore.FetchTasks()
	if err != nil {
		return nil, err
	}
	outcomes := make([]*OfferOutcome, len(offers))
	for i, offer := range offers {
		outcomes[i] = &OfferOutcome{Offer: offer, Outcome: placement.Evaluate(offer, pod, placedTasks)}
	}
	return outcomes, nil
}

// Place evaluates offers for pod in order and accepts the first one that passes its placement rule.
// The tasks of pod are then written to the state store with fresh task ids, as launched on the accepted offer.
func (e *OfferEvaluator) Place(pod *specification.PodInstance, offers []*model.Offer) (*PlacementResult, error) {
	logger := log.WithField("podInstance", pod.GetName())
	placedTasks, err := e.stateStore.FetchTasks()
	if err != nil {
		return nil, err
	}

	result := &PlacementResult{PodInstance: pod.GetName()}
	for _, offer := range offers {
		outcome := placement.Evaluate(offer, pod, placedTasks)
		result.Outcomes = append(result.Outcomes, &OfferOutcome{Offer: offer, Outcome: outcome})
		if !outcome.Passed {
			e.metrics.offers.WithLabelValues("declined").Inc()
			for _, source := range failureSources(outcome) {
				e.metrics.ruleFailures.WithLabelValues(source).Inc()
			}
			logger.Debugf("declining offer %s on %s:\n%s", offer.ID, offer.GetHostname(), outcome)
			continue
		}
		e.metrics.offers.WithLabelValues("accepted").Inc()
		logger.Infof("accepting offer %s on %s", offer.ID, offer.GetHostname())
		result.Accepted = offer
		break
	}
	if result.Accepted == nil {
		e.metrics.podInstances.WithLabelValues("unplaced").Inc()
		logger.Infof("none of %d offers passed placement", len(offers))
		return result, nil
	}

	result.Tasks = e.launchTasks(pod, result.Accepted)
	if err := e.stateStore.StoreTasks(result.Tasks); err != nil {
		return nil, errors.WithMessagef(err, "failed to store tasks of %s", pod.GetName())
	}
	e.metrics.podInstances.WithLabelValues("placed").Inc()
	e.metrics.tasksLaunched.Add(float64(len(result.Tasks)))
	return result, nil
}

func (e *OfferEvaluator) launchTasks(pod *specification.PodInstance, offer *model.Offer) []*model.TaskInfo {
	taskSpecs := pod.Pod.GetTasks()
	tasks := make([]*model.TaskInfo, len(taskSpecs))
	for i, taskSpec := range taskSpecs {
		name := pod.TaskName(taskSpec)
		var domain *model.FaultDomain
		if offer.Domain != nil {
			domain = &model.FaultDomain{Region: offer.Domain.Region, Zone: offer.Domain.Zone}
		}
		var attributes []model.Attribute
		if len(offer.Attributes) > 0 {
			attributes = append(attributes, offer.Attributes...)
		}
		tasks[i] = &model.TaskInfo{
			Name:       name,
			ID:         model.NewTaskID(e.serviceName, name),
			AgentID:    offer.AgentID,
			Hostname:   offer.Hostname,
			Attributes: attributes,
			Domain:     domain,
			PodType:    pod.GetType(),
			PodIndex:   pod.GetIndex(),
			Labels:     map[string]string{"goal-state": string(taskSpec.GetGoalState())},
		}
	}
	return tasks
}

// RecordStatus stores a status update, routed to its task by the task name encoded in the status' task id.
func (e *OfferEvaluator) RecordStatus(status *model.TaskStatus) error {
	if status == nil {
		return schedulererrors.NewInvalidArgument("status", status, "status must be non-nil")
	}
	name, err := model.TaskNameFromID(status.TaskID)
	if err != nil {
		return schedulererrors.NewInvalidArgument("taskId", status.TaskID, "%s", err)
	}
	if err := e.stateStore.StoreStatus(name, status); err != nil {
		return err
	}
	e.metrics.statusUpdates.WithLabelValues(status.State.String()).Inc()
	log.WithField("task", name).Debugf("recorded status %s for %s", status.State, status.TaskID)
	return nil
}

// failureSources returns the rule types responsible for a failed outcome.
func failureSources(outcome *placement.Outcome) []string {
	if outcome.Passed {
		return nil
	}
	var sources []string
	for _, child := range outcome.Children {
		sources = append(sources, failureSources(child)...)
	}
	if len(sources) == 0 {
		sources = append(sources, outcome.Source)
	}
	return sources
}

// ParseOffersYAML parses a YAML list of offers.
func ParseOffersYAML(data []byte) ([]*model.Offer, error) {
	var offers []*model.Offer
	if err := yaml.UnmarshalStrict(data, &offers); err != nil {
		return nil, schedulererrors.NewInvalidArgument("offers", "", "invalid offers: %s", err)
	}
	return offers, nil
}
