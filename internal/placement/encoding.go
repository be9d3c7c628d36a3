package placement

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ruleDocument is the encoded form of a Rule. Which fields are set depends on Type.
type ruleDocument struct {
	Type       string           `json:"@type"`
	Matcher    *matcherDocument `json:"matcher,omitempty"`
	Rules      []*ruleDocument  `json:"rules,omitempty"`
	Rule       *ruleDocument    `json:"rule,omitempty"`
	Max        int              `json:"max,omitempty"`
	TaskFilter *matcherDocument `json:"task-filter,omitempty"`
	PodType    string           `json:"type,omitempty"`
	Behavior   Behavior         `json:"behavior,omitempty"`
	Field      string           `json:"field,omitempty"`
}

type matcherDocument struct {
	Type    string `json:"@type"`
	String  string `json:"string,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// MarshalRule encodes rule as JSON.
func MarshalRule(rule Rule) ([]byte, error) {
	data, err := json.Marshal(toRuleDocument(rule))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// MarshalRuleYAML encodes rule as YAML.
func MarshalRuleYAML(rule Rule) ([]byte, error) {
	data, err := MarshalRule(rule)
	if err != nil {
		return nil, err
	}
	data, err = yaml.JSONToYAML(data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// UnmarshalRule decodes a rule from JSON or YAML, validating it in the same way as the rule constructors.
func UnmarshalRule(data []byte) (Rule, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, schedulererrors.NewInvalidArgument("placement", string(data), "invalid rule document: %s", err)
	}
	doc := &ruleDocument{}
	if err := json.Unmarshal(jsonData, doc); err != nil {
		return nil, schedulererrors.NewInvalidArgument("placement", string(data), "invalid rule document: %s", err)
	}
	return fromRuleDocument(doc)
}

func toRuleDocument(rule Rule) *ruleDocument {
	doc := &ruleDocument{Type: TypeName(rule)}
	switch r := rule.(type) {
	case *FieldRule:
		doc.Matcher = toMatcherDocument(r.Matcher)
	case *AndRule:
		doc.Rules = toRuleDocuments(r.Rules)
	case *OrRule:
		doc.Rules = toRuleDocuments(r.Rules)
	case *NotRule:
		doc.Rule = toRuleDocument(r.Rule)
	case *MaxPerRule:
		doc.Max = r.Max
		doc.TaskFilter = toMatcherDocument(r.TaskFilter)
		if r.Field == FieldAttribute {
			doc.Matcher = toMatcherDocument(r.KeyMatcher)
		}
	case *TaskTypeRule:
		doc.PodType = r.PodType
		doc.Behavior = r.Behavior
		doc.Field = r.Field.String()
	}
	return doc
}

func toRuleDocuments(rules []Rule) []*ruleDocument {
	docs := make([]*ruleDocument, len(rules))
	for i, rule := range rules {
		docs[i] = toRuleDocument(rule)
	}
	return docs
}

func toMatcherDocument(matcher StringMatcher) *matcherDocument {
	switch m := matcher.(type) {
	case *ExactMatcher:
		return &matcherDocument{Type: "ExactMatcher", String: m.Value}
	case *RegexMatcher:
		return &matcherDocument{Type: "RegexMatcher", Pattern: m.Pattern()}
	case *GlobMatcher:
		return &matcherDocument{Type: "GlobMatcher", Pattern: m.Pattern()}
	}
	return &matcherDocument{Type: "AnyMatcher"}
}

func fromRuleDocument(doc *ruleDocument) (Rule, error) {
	if doc == nil {
		return nil, schedulererrors.NewInvalidArgument("placement", nil, "missing rule")
	}
	if field, ok := fieldRuleTypes[doc.Type]; ok {
		matcher, err := fromMatcherDocument(doc.Matcher)
		if err != nil {
			return nil, err
		}
		return NewFieldRule(field, matcher)
	}
	if field, ok := maxPerRuleTypes[doc.Type]; ok {
		var keyMatcher, taskFilter StringMatcher
		var err error
		if doc.Matcher != nil {
			if keyMatcher, err = fromMatcherDocument(doc.Matcher); err != nil {
				return nil, err
			}
		}
		if doc.TaskFilter != nil {
			if taskFilter, err = fromMatcherDocument(doc.TaskFilter); err != nil {
				return nil, err
			}
		}
		return NewMaxPerRule(field, doc.Max, keyMatcher, taskFilter)
	}
	switch doc.Type {
	case "AndRule", "OrRule":
		children := make([]Rule, len(doc.Rules))
		for i, childDoc := range doc.Rules {
			child, err := fromRuleDocument(childDoc)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		if doc.Type == "AndRule" {
			return NewAndRule(children...)
		}
		return NewOrRule(children...)
	case "NotRule":
		child, err := fromRuleDocument(doc.Rule)
		if err != nil {
			return nil, err
		}
		return NewNotRule(child)
	case "PassthroughRule":
		return NewPassthroughRule(), nil
	case "TaskTypeRule":
		field := FieldHostname
		if doc.Field != "" {
			var ok bool
			if field, ok = ParseField(doc.Field); !ok {
				return nil, schedulererrors.NewInvalidArgument("field", doc.Field, "unknown placement field")
			}
		}
		return NewTaskTypeRule(doc.PodType, doc.Behavior, field)
	}
	return nil, schedulererrors.NewInvalidArgument("@type", doc.Type, "unknown rule type")
}

var fieldRuleTypes = invert(fieldRuleTypeNames)

var maxPerRuleTypes = invert(maxPerRuleTypeNames)

func invert(names map[Field]string) map[string]Field {
	fields := make(map[string]Field, len(names))
	for field, name := range names {
		fields[name] = field
	}
	return fields
}

func fromMatcherDocument(doc *matcherDocument) (StringMatcher, error) {
	if doc == nil {
		return nil, schedulererrors.NewInvalidArgument("matcher", nil, "missing matcher")
	}
	switch doc.Type {
	case "ExactMatcher":
		return NewExactMatcher(doc.String), nil
	case "AnyMatcher":
		return NewAnyMatcher(), nil
	case "RegexMatcher":
		return NewRegexMatcher(doc.Pattern)
	case "GlobMatcher":
		return NewGlobMatcher(doc.Pattern)
	}
	return nil, schedulererrors.NewInvalidArgument("@type", doc.Type, "unknown matcher type")
}
