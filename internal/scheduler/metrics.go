package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "podscheduler_"

type evaluatorMetrics struct {
	// Offers evaluated, by result (accepted, declined)
	offers *prometheus.CounterVec
	// Pod instances evaluated, by result (placed, unplaced)
	podInstances *prometheus.CounterVec
	// Failed rules of declined offers, by rule type
	ruleFailures  *prometheus.CounterVec
	tasksLaunched prometheus.Counter
	// Status updates recorded, by task state
	statusUpdates *prometheus.CounterVec
}

func newEvaluatorMetrics(reg prometheus.Registerer) *evaluatorMetrics {
	factory := promauto.With(reg)
	return &evaluatorMetrics{
		offers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "offers_evaluated_total",
			Help: "Number of offers evaluated against pod placement rules",
		}, []string{"result"}),
		podInstances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "pod_instances_evaluated_total",
			Help: "Number of pod instances offers were evaluated for",
		}, []string{"result"}),
		ruleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "placement_rule_failures_total",
			Help: "Number of times a placement rule caused an offer to be declined",
		}, []string{"rule"}),
		tasksLaunched: factory.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "tasks_launched_total",
			Help: "Number of tasks written to the state store on accepting an offer",
		}),
		statusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "task_status_updates_total",
			Help: "Number of task status updates recorded",
		}, []string{"state"}),
	}
}
