package placement

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

// ParseMarathonConstraints converts Marathon-style placement constraints into a Rule.
//
// Constraints are given either as JSON, e.g. [["hostname","UNIQUE"],["rack","LIKE","rack-[1-3]"]], or in the
// flat form hostname:UNIQUE,rack:LIKE:rack-[1-3]. The field "hostname" (or "@hostname") refers to the offer
// hostname, "@zone" and "@region" to its fault domain and anything else to the attribute of that name.
// Supported operators are UNIQUE, CLUSTER, IS, LIKE, UNLIKE and MAX_PER.
//
// UNIQUE and MAX_PER only count the tasks of pods of podType.
//
// An empty string yields a PassthroughRule; several constraints are combined with an AndRule.
func ParseMarathonConstraints(podType string, constraints string) (Rule, error) {
	constraints = strings.TrimSpace(constraints)
	if constraints == "" || constraints == "[]" {
		return NewPassthroughRule(), nil
	}
	rows, err := splitMarathonConstraints(constraints)
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := marathonConstraintRule(podType, row)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if len(rules) == 1 {
		return rules[0], nil
	}
	return NewAndRule(rules...)
}

func splitMarathonConstraints(constraints string) ([][]string, error) {
	if strings.HasPrefix(constraints, "[") {
		var rows [][]string
		if err := json.Unmarshal([]byte(constraints), &rows); err == nil {
			return rows, nil
		}
		// A single constraint needn't be nested.
		var row []string
		if err := json.Unmarshal([]byte(constraints), &row); err != nil {
			return nil, schedulererrors.NewInvalidArgument("constraints", constraints, "invalid JSON constraints: %s", err)
		}
		return [][]string{row}, nil
	}
	var rows [][]string
	for _, constraint := range strings.Split(constraints, ",") {
		if constraint = strings.TrimSpace(constraint); constraint != "" {
			rows = append(rows, strings.SplitN(constraint, ":", 3))
		}
	}
	return rows, nil
}

func marathonConstraintRule(podType string, row []string) (Rule, error) {
	if len(row) < 2 || len(row) > 3 {
		return nil, schedulererrors.NewInvalidArgument(
			"constraint", strings.Join(row, ":"), "expected field:operator or field:operator:value",
		)
	}
	name := strings.TrimSpace(row[0])
	operator := strings.ToUpper(strings.TrimSpace(row[1]))
	value := ""
	hasValue := len(row) == 3
	if hasValue {
		value = row[2]
	}
	field, attributeName := marathonField(name)
	requireValue := func() error {
		if !hasValue || value == "" {
			return schedulererrors.NewInvalidArgument("constraint", strings.Join(row, ":"), "%s requires a value", operator)
		}
		return nil
	}

	switch operator {
	case "UNIQUE":
		return newMarathonMaxPer(podType, field, attributeName, 1)
	case "MAX_PER":
		if err := requireValue(); err != nil {
			return nil, err
		}
		max, err := strconv.Atoi(value)
		if err != nil {
			return nil, schedulererrors.NewInvalidArgument("constraint", strings.Join(row, ":"), "MAX_PER requires an integer value")
		}
		return newMarathonMaxPer(podType, field, attributeName, max)
	case "CLUSTER", "IS":
		if err := requireValue(); err != nil {
			return nil, err
		}
		if field == FieldAttribute {
			return NewFieldRule(field, NewExactMatcher(attributeName+":"+value))
		}
		return NewFieldRule(field, NewExactMatcher(value))
	case "LIKE", "UNLIKE":
		if err := requireValue(); err != nil {
			return nil, err
		}
		pattern := value
		if field == FieldAttribute {
			pattern = regexp.QuoteMeta(attributeName) + ":(?:" + value + ")"
		}
		matcher, err := NewRegexMatcher(pattern)
		if err != nil {
			return nil, err
		}
		rule, err := NewFieldRule(field, matcher)
		if err != nil || operator == "LIKE" {
			return rule, err
		}
		return NewNotRule(rule)
	case "GROUP_BY":
		return nil, schedulererrors.NewInvalidArgument("constraint", strings.Join(row, ":"), "GROUP_BY is not supported")
	}
	return nil, schedulererrors.NewInvalidArgument("constraint", strings.Join(row, ":"), "unknown operator %s", operator)
}

// marathonField maps a constraint field name onto a placement field, and the attribute name if it's an attribute.
func marathonField(name string) (Field, string) {
	switch strings.ToLower(name) {
	case "hostname", "@hostname":
		return FieldHostname, ""
	case "@zone":
		return FieldZone, ""
	case "@region":
		return FieldRegion, ""
	}
	return FieldAttribute, name
}

func newMarathonMaxPer(podType string, field Field, attributeName string, max int) (Rule, error) {
	taskFilter, err := podTaskFilter(podType)
	if err != nil {
		return nil, err
	}
	if field != FieldAttribute {
		return NewMaxPerRule(field, max, nil, taskFilter)
	}
	keyMatcher, err := NewRegexMatcher(regexp.QuoteMeta(attributeName) + ":.*")
	if err != nil {
		return nil, err
	}
	return NewMaxPerAttributeRule(max, keyMatcher, taskFilter)
}

// podTaskFilter matches the names of the tasks of every instance of podType, i.e. <type>-<index>-<task>.
func podTaskFilter(podType string) (StringMatcher, error) {
	if strings.TrimSpace(podType) == "" {
		return nil, schedulererrors.NewInvalidArgument("podType", podType, "pod type must not be blank")
	}
	return NewRegexMatcher(regexp.QuoteMeta(podType) + "-[0-9]+-.*")
}
