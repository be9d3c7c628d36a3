package placement

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/armadaproject/podscheduler/internal/model"
)

// PodInstance is the pod being placed.
type PodInstance interface {
	GetType() string
	GetIndex() int
	// GetName returns the name shared by the tasks of the instance, e.g. "web-0".
	GetName() string
	// GetPlacementRule returns nil for pods without placement constraints.
	GetPlacementRule() Rule
}

// Evaluate evaluates the placement rule of pod against offer.
// placedTasks are the tasks already placed in the cluster; they're only read.
func Evaluate(offer *model.Offer, pod PodInstance, placedTasks []*model.TaskInfo) *Outcome {
	rule := pod.GetPlacementRule()
	if isNilRule(rule) {
		rule = nil
	}
	return Filter(rule, offer, pod, placedTasks)
}

// Filter evaluates rule against offer. A nil rule passes every offer.
//
// Every child of a composite rule is evaluated, even once the verdict is known, so that the outcome explains
// each part of the rule. Offers lacking the values a rule inspects fail that rule, and so does every offer
// evaluated against a rule that couldn't have been built by its constructor, e.g. a FieldRule without a matcher.
func Filter(rule Rule, offer *model.Offer, pod PodInstance, placedTasks []*model.TaskInfo) *Outcome {
	source := TypeName(rule)
	if rule == nil {
		return pass(source, nil, "All offers pass: pod has no placement constraints")
	}
	if reason := malformed(rule); reason != "" {
		return fail(source, nil, "Malformed rule: %s", reason)
	}
	return filter(rule, offer, pod, placedTasks)
}

func filter(rule Rule, offer *model.Offer, pod PodInstance, placedTasks []*model.TaskInfo) *Outcome {
	source := TypeName(rule)
	switch r := rule.(type) {
	case *FieldRule:
		return filterField(source, r, offer)
	case *AndRule:
		children := filterAll(r.Rules, offer, pod, placedTasks)
		passing := countPassing(children)
		if passing == len(children) {
			return pass(source, children, "%d of %d rules are passing", passing, len(children))
		}
		return fail(source, children, "%d of %d rules are passing", passing, len(children))
	case *OrRule:
		children := filterAll(r.Rules, offer, pod, placedTasks)
		passing := countPassing(children)
		if passing > 0 {
			return pass(source, children, "%d of %d rules are passing", passing, len(children))
		}
		return fail(source, children, "%d of %d rules are passing", passing, len(children))
	case *NotRule:
		child := filter(r.Rule, offer, pod, placedTasks)
		children := []*Outcome{child}
		if child.Passed {
			return fail(source, children, "Match inverted: %s", child.Reason)
		}
		return pass(source, children, "Match inverted: %s", child.Reason)
	case *MaxPerRule:
		return filterMaxPer(source, r, offer, pod, placedTasks)
	case *TaskTypeRule:
		return filterTaskType(source, r, offer, pod, placedTasks)
	}
	return pass(source, nil, "All offers pass: pod has no placement constraints")
}

// FieldsInspected returns the fields of an offer that rule looks at, in field order.
func FieldsInspected(rule Rule) []Field {
	seen := make(map[Field]bool)
	collectFields(rule, seen)
	fields := make([]Field, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	return fields
}

func collectFields(rule Rule, seen map[Field]bool) {
	if isNilRule(rule) {
		return
	}
	switch r := rule.(type) {
	case *FieldRule:
		seen[r.Field] = true
	case *AndRule:
		for _, child := range r.Rules {
			collectFields(child, seen)
		}
	case *OrRule:
		for _, child := range r.Rules {
			collectFields(child, seen)
		}
	case *NotRule:
		collectFields(r.Rule, seen)
	case *MaxPerRule:
		seen[r.Field] = true
	case *TaskTypeRule:
		seen[r.Field] = true
	}
}

// malformed returns why rule or any rule nested in it can't be evaluated, or the empty string if all can.
func malformed(rule Rule) string {
	if isNilRule(rule) {
		return "rule is nil"
	}
	switch r := rule.(type) {
	case *FieldRule:
		if !r.Field.valid() {
			return "unknown placement field"
		}
		if r.Matcher == nil {
			return "matcher is nil"
		}
	case *AndRule:
		return malformedChildren(r.Rules)
	case *OrRule:
		return malformedChildren(r.Rules)
	case *NotRule:
		if isNilRule(r.Rule) {
			return "no rule to negate"
		}
		return malformed(r.Rule)
	case *MaxPerRule:
		if !r.Field.valid() {
			return "unknown placement field"
		}
		if r.Max < 1 {
			return fmt.Sprintf("max must be at least 1, got %d", r.Max)
		}
		if r.KeyMatcher == nil || r.TaskFilter == nil {
			return "key matcher and task filter must be non-nil"
		}
	case *TaskTypeRule:
		if !r.Field.valid() {
			return "unknown placement field"
		}
	}
	return ""
}

func malformedChildren(rules []Rule) string {
	if len(rules) == 0 {
		return "no rules to combine"
	}
	for i, rule := range rules {
		if isNilRule(rule) {
			return fmt.Sprintf("rule at index %d is nil", i)
		}
		if reason := malformed(rule); reason != "" {
			return reason
		}
	}
	return ""
}

func filterAll(rules []Rule, offer *model.Offer, pod PodInstance, placedTasks []*model.TaskInfo) []*Outcome {
	outcomes := make([]*Outcome, len(rules))
	for i, rule := range rules {
		outcomes[i] = filter(rule, offer, pod, placedTasks)
	}
	return outcomes
}

func countPassing(outcomes []*Outcome) int {
	n := 0
	for _, outcome := range outcomes {
		if outcome.Passed {
			n++
		}
	}
	return n
}

func filterField(source string, rule *FieldRule, offer *model.Offer) *Outcome {
	keys := ExtractKeys(rule.Field, offer)
	if len(keys) == 0 {
		return fail(source, nil, "Offer has no %s to match pattern: '%s'", rule.Field.description(), rule.Matcher)
	}
	for _, key := range keys {
		if rule.Matcher.Matches(key) {
			return pass(source, nil, "Offer %s matches pattern: '%s'", rule.Field.description(), rule.Matcher)
		}
	}
	return fail(source, nil, "Offer %s didn't match pattern: '%s'", rule.Field.description(), rule.Matcher)
}

// otherTasks returns the placed tasks that don't belong to pod.
// A pod instance being relaunched shouldn't be constrained by its own previous placement.
func otherTasks(pod PodInstance, placedTasks []*model.TaskInfo) []*model.TaskInfo {
	tasks := make([]*model.TaskInfo, 0, len(placedTasks))
	for _, task := range placedTasks {
		if task == nil || task.PodInstanceName() == pod.GetName() {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func filterMaxPer(source string, rule *MaxPerRule, offer *model.Offer, pod PodInstance, placedTasks []*model.TaskInfo) *Outcome {
	allKeys := ExtractKeys(rule.Field, offer)
	if len(allKeys) == 0 {
		return fail(source, nil, "Offer has no %s to count tasks against", rule.Field.description())
	}
	offerKeys := make([]string, 0, len(allKeys))
	for _, key := range allKeys {
		if rule.KeyMatcher.Matches(key) {
			offerKeys = append(offerKeys, key)
		}
	}
	if len(offerKeys) == 0 {
		return pass(
			source, nil, "None of the offer's %s values match '%s', so no limit applies",
			rule.Field.description(), rule.KeyMatcher,
		)
	}

	counts := make(map[string]int)
	for _, task := range otherTasks(pod, placedTasks) {
		if !rule.TaskFilter.Matches(task.Name) {
			continue
		}
		for _, key := range extractTaskKeys(rule.Field, task) {
			counts[key]++
		}
	}
	for _, key := range offerKeys {
		if counts[key] >= rule.Max {
			return fail(
				source, nil, "%d tasks matching filter '%s' are already present on %s '%s', the maximum is %d",
				counts[key], rule.TaskFilter, rule.Field.description(), key, rule.Max,
			)
		}
	}
	return pass(
		source, nil, "Fewer than %d tasks matching filter '%s' are present on the offer's %s",
		rule.Max, rule.TaskFilter, rule.Field.description(),
	)
}

func filterTaskType(source string, rule *TaskTypeRule, offer *model.Offer, pod PodInstance, placedTasks []*model.TaskInfo) *Outcome {
	offerKeys := ExtractKeys(rule.Field, offer)
	if len(offerKeys) == 0 {
		return fail(source, nil, "Offer has no %s to compare with tasks of type '%s'", rule.Field.description(), rule.PodType)
	}

	typedTasks := 0
	var colocated *model.TaskInfo
	for _, task := range otherTasks(pod, placedTasks) {
		if task.PodType != rule.PodType {
			continue
		}
		typedTasks++
		for _, key := range extractTaskKeys(rule.Field, task) {
			if slices.Contains(offerKeys, key) {
				colocated = task
				break
			}
		}
		if colocated != nil {
			break
		}
	}

	switch rule.Behavior {
	case BehaviorAvoid:
		if colocated != nil {
			return fail(
				source, nil, "Found a task of type '%s' to avoid on the offer's %s: %s",
				rule.PodType, rule.Field.description(), colocated.Name,
			)
		}
		return pass(source, nil, "No tasks of type '%s' on the offer's %s", rule.PodType, rule.Field.description())
	case BehaviorColocate:
		if colocated != nil {
			return pass(
				source, nil, "Found a task of type '%s' to colocate with on the offer's %s: %s",
				rule.PodType, rule.Field.description(), colocated.Name,
			)
		}
		if typedTasks == 0 {
			return pass(source, nil, "No tasks of type '%s' are placed, so there is nothing to colocate with", rule.PodType)
		}
		return fail(source, nil, "No tasks of type '%s' on the offer's %s", rule.PodType, rule.Field.description())
	}
	return fail(source, nil, "Unknown behavior '%s'", rule.Behavior)
}
