package placement

import (
	"strings"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

// Rule is a placement constraint. The set of rules is closed; rules are built with the constructors in this
// package and evaluated with Filter. A rule is never modified once built and may be evaluated any number of times.
type Rule interface {
	isRule()
}

// FieldRule passes offers for which Matcher accepts at least one value of Field.
type FieldRule struct {
	Field   Field
	Matcher StringMatcher
}

// AndRule passes offers that pass every one of Rules.
type AndRule struct {
	Rules []Rule
}

// OrRule passes offers that pass at least one of Rules.
type OrRule struct {
	Rules []Rule
}

// NotRule passes offers that fail Rule.
type NotRule struct {
	Rule Rule
}

// PassthroughRule passes every offer. It's the rule of pods with no placement constraints.
type PassthroughRule struct{}

// MaxPerRule limits the number of tasks that may be placed on each distinct value of Field,
// e.g. at most two tasks per zone.
// Only values accepted by KeyMatcher are limited and only tasks whose names are accepted by TaskFilter are counted.
type MaxPerRule struct {
	Field      Field
	Max        int
	KeyMatcher StringMatcher
	TaskFilter StringMatcher
}

// Behavior is how a TaskTypeRule relates a pod to tasks of another pod type.
type Behavior string

const (
	// BehaviorAvoid rejects offers sharing a value of the rule's field with a task of the pod type.
	BehaviorAvoid Behavior = "AVOID"
	// BehaviorColocate only accepts offers sharing a value of the rule's field with a task of the pod type.
	// If no task of the pod type is placed anywhere, every offer is accepted.
	BehaviorColocate Behavior = "COLOCATE"
)

// TaskTypeRule places a pod relative to the tasks of pod type PodType.
type TaskTypeRule struct {
	PodType  string
	Behavior Behavior
	Field    Field
}

func (*FieldRule) isRule()       {}
func (*AndRule) isRule()         {}
func (*OrRule) isRule()          {}
func (*NotRule) isRule()         {}
func (*PassthroughRule) isRule() {}
func (*MaxPerRule) isRule()      {}
func (*TaskTypeRule) isRule()    {}

func NewFieldRule(field Field, matcher StringMatcher) (*FieldRule, error) {
	if !field.valid() {
		return nil, schedulererrors.NewInvalidArgument("field", field, "unknown placement field")
	}
	if matcher == nil {
		return nil, schedulererrors.NewInvalidArgument("matcher", matcher, "matcher must be non-nil")
	}
	return &FieldRule{Field: field, Matcher: matcher}, nil
}

func NewHostnameRule(matcher StringMatcher) (*FieldRule, error) {
	return NewFieldRule(FieldHostname, matcher)
}

// NewAttributeRule matches offer attributes in their "name:value" form.
func NewAttributeRule(matcher StringMatcher) (*FieldRule, error) {
	return NewFieldRule(FieldAttribute, matcher)
}

func NewZoneRule(matcher StringMatcher) (*FieldRule, error) {
	return NewFieldRule(FieldZone, matcher)
}

func NewRegionRule(matcher StringMatcher) (*FieldRule, error) {
	return NewFieldRule(FieldRegion, matcher)
}

func NewAndRule(rules ...Rule) (*AndRule, error) {
	children, err := validateChildren("AndRule", rules)
	if err != nil {
		return nil, err
	}
	return &AndRule{Rules: children}, nil
}

func NewOrRule(rules ...Rule) (*OrRule, error) {
	children, err := validateChildren("OrRule", rules)
	if err != nil {
		return nil, err
	}
	return &OrRule{Rules: children}, nil
}

func NewNotRule(rule Rule) (*NotRule, error) {
	if isNilRule(rule) {
		return nil, schedulererrors.NewInvalidArgument("rule", rule, "NotRule requires a rule to negate")
	}
	return &NotRule{Rule: rule}, nil
}

func NewPassthroughRule() *PassthroughRule {
	return &PassthroughRule{}
}

// NewMaxPerRule returns a rule allowing at most max tasks per value of field.
// A nil keyMatcher limits every value and a nil taskFilter counts every task.
func NewMaxPerRule(field Field, max int, keyMatcher StringMatcher, taskFilter StringMatcher) (*MaxPerRule, error) {
	if !field.valid() {
		return nil, schedulererrors.NewInvalidArgument("field", field, "unknown placement field")
	}
	if max < 1 {
		return nil, schedulererrors.NewInvalidArgument("max", max, "must be at least 1")
	}
	if keyMatcher == nil {
		keyMatcher = NewAnyMatcher()
	}
	if taskFilter == nil {
		taskFilter = NewAnyMatcher()
	}
	return &MaxPerRule{Field: field, Max: max, KeyMatcher: keyMatcher, TaskFilter: taskFilter}, nil
}

func NewMaxPerHostnameRule(max int, taskFilter StringMatcher) (*MaxPerRule, error) {
	return NewMaxPerRule(FieldHostname, max, nil, taskFilter)
}

func NewMaxPerZoneRule(max int, taskFilter StringMatcher) (*MaxPerRule, error) {
	return NewMaxPerRule(FieldZone, max, nil, taskFilter)
}

func NewMaxPerRegionRule(max int, taskFilter StringMatcher) (*MaxPerRule, error) {
	return NewMaxPerRule(FieldRegion, max, nil, taskFilter)
}

// NewMaxPerAttributeRule limits tasks per "name:value" attribute accepted by attributeMatcher.
func NewMaxPerAttributeRule(max int, attributeMatcher StringMatcher, taskFilter StringMatcher) (*MaxPerRule, error) {
	return NewMaxPerRule(FieldAttribute, max, attributeMatcher, taskFilter)
}

func NewTaskTypeRule(podType string, behavior Behavior, field Field) (*TaskTypeRule, error) {
	if strings.TrimSpace(podType) == "" {
		return nil, schedulererrors.NewInvalidArgument("podType", podType, "must not be blank")
	}
	if behavior != BehaviorAvoid && behavior != BehaviorColocate {
		return nil, schedulererrors.NewInvalidArgument(
			"behavior", behavior, "must be one of %s or %s", BehaviorAvoid, BehaviorColocate,
		)
	}
	if !field.valid() {
		return nil, schedulererrors.NewInvalidArgument("field", field, "unknown placement field")
	}
	return &TaskTypeRule{PodType: podType, Behavior: behavior, Field: field}, nil
}

// NewAvoidTypeRule rejects hosts already running a task of podType.
func NewAvoidTypeRule(podType string) (*TaskTypeRule, error) {
	return NewTaskTypeRule(podType, BehaviorAvoid, FieldHostname)
}

// NewColocateTypeRule only accepts hosts already running a task of podType.
func NewColocateTypeRule(podType string) (*TaskTypeRule, error) {
	return NewTaskTypeRule(podType, BehaviorColocate, FieldHostname)
}

func validateChildren(ruleType string, rules []Rule) ([]Rule, error) {
	if len(rules) == 0 {
		return nil, schedulererrors.NewInvalidArgument("rules", rules, "%s requires at least one rule", ruleType)
	}
	children := make([]Rule, len(rules))
	for i, rule := range rules {
		if isNilRule(rule) {
			return nil, schedulererrors.NewInvalidArgument("rules", i, "%s rule at index %d is nil", ruleType, i)
		}
		children[i] = rule
	}
	return children, nil
}

// isNilRule also catches typed nil pointers.
func isNilRule(rule Rule) bool {
	switch r := rule.(type) {
	case nil:
		return true
	case *FieldRule:
		return r == nil
	case *AndRule:
		return r == nil
	case *OrRule:
		return r == nil
	case *NotRule:
		return r == nil
	case *PassthroughRule:
		return r == nil
	case *MaxPerRule:
		return r == nil
	case *TaskTypeRule:
		return r == nil
	}
	return false
}

// TypeName returns the name a rule is known by in encoded rule documents and evaluation outcomes.
func TypeName(rule Rule) string {
	if isNilRule(rule) {
		return "PassthroughRule"
	}
	switch r := rule.(type) {
	case *FieldRule:
		return fieldRuleTypeNames[r.Field]
	case *AndRule:
		return "AndRule"
	case *OrRule:
		return "OrRule"
	case *NotRule:
		return "NotRule"
	case *MaxPerRule:
		return maxPerRuleTypeNames[r.Field]
	case *TaskTypeRule:
		return "TaskTypeRule"
	}
	return "PassthroughRule"
}

var fieldRuleTypeNames = map[Field]string{
	FieldHostname:  "HostnameRule",
	FieldAttribute: "AttributeRule",
	FieldZone:      "ZoneRule",
	FieldRegion:    "RegionRule",
}

var maxPerRuleTypeNames = map[Field]string{
	FieldHostname:  "MaxPerHostnameRule",
	FieldAttribute: "MaxPerAttributeRule",
	FieldZone:      "MaxPerZoneRule",
	FieldRegion:    "MaxPerRegionRule",
}
