package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

func TestRuleEncoding_RoundTrip(t *testing.T) {
	regex, err := NewRegexMatcher("rack:rack-[1-3]")
	require.NoError(t, err)
	glob, err := NewGlobMatcher("host-*")
	require.NoError(t, err)
	attribute, err := NewAttributeRule(regex)
	require.NoError(t, err)
	hostname, err := NewHostnameRule(glob)
	require.NoError(t, err)
	notHostname, err := NewNotRule(hostnameRule(t, "host-3"))
	require.NoError(t, err)
	region, err := NewRegionRule(NewAnyMatcher())
	require.NoError(t, err)
	or, err := NewOrRule(hostname, region)
	require.NoError(t, err)
	maxPerZone, err := NewMaxPerZoneRule(2, NewExactMatcher("web-0-server"))
	require.NoError(t, err)
	maxPerAttribute, err := NewMaxPerAttributeRule(1, regex, nil)
	require.NoError(t, err)
	avoid, err := NewTaskTypeRule("db", BehaviorAvoid, FieldZone)
	require.NoError(t, err)
	and, err := NewAndRule(attribute, notHostname, or, maxPerZone, maxPerAttribute, avoid, NewPassthroughRule())
	require.NoError(t, err)

	data, err := MarshalRule(and)
	require.NoError(t, err)
	decoded, err := UnmarshalRule(data)
	require.NoError(t, err)
	assertRulesEquivalent(t, and, decoded)

	data, err = MarshalRuleYAML(and)
	require.NoError(t, err)
	decoded, err = UnmarshalRule(data)
	require.NoError(t, err)
	assertRulesEquivalent(t, and, decoded)
}

// assertRulesEquivalent compares rules by their encoded form, since compiled matchers aren't comparable.
func assertRulesEquivalent(t *testing.T, expected Rule, actual Rule) {
	expectedData, err := MarshalRule(expected)
	require.NoError(t, err)
	actualData, err := MarshalRule(actual)
	require.NoError(t, err)
	assert.JSONEq(t, string(expectedData), string(actualData))
}

func TestUnmarshalRule_YAML(t *testing.T) {
	data := []byte(`
"@type": AndRule
rules:
  - "@type": HostnameRule
    matcher:
      "@type": ExactMatcher
      string: host-7
  - "@type": MaxPerHostnameRule
    max: 2
  - "@type": TaskTypeRule
    type: db
    behavior: COLOCATE
`)
	rule, err := UnmarshalRule(data)
	require.NoError(t, err)

	and, ok := rule.(*AndRule)
	require.True(t, ok)
	require.Len(t, and.Rules, 3)
	assert.Equal(t, &FieldRule{Field: FieldHostname, Matcher: NewExactMatcher("host-7")}, and.Rules[0])
	assert.Equal(t, &MaxPerRule{Field: FieldHostname, Max: 2, KeyMatcher: NewAnyMatcher(), TaskFilter: NewAnyMatcher()}, and.Rules[1])
	assert.Equal(t, &TaskTypeRule{PodType: "db", Behavior: BehaviorColocate, Field: FieldHostname}, and.Rules[2])

	assert.True(t, evaluate(rule, newOffer("host-7")).Passed)
	assert.False(t, evaluate(rule, newOffer("host-8")).Passed)
}

func TestUnmarshalRule_Invalid(t *testing.T) {
	tests := map[string]string{
		"not a document":        `[1, 2`,
		"unknown rule type":     `{"@type": "FooRule"}`,
		"missing matcher":       `{"@type": "HostnameRule"}`,
		"unknown matcher type":  `{"@type": "HostnameRule", "matcher": {"@type": "FooMatcher"}}`,
		"invalid regex":         `{"@type": "HostnameRule", "matcher": {"@type": "RegexMatcher", "pattern": "host-["}}`,
		"and without children":  `{"@type": "AndRule", "rules": []}`,
		"not without child":     `{"@type": "NotRule"}`,
		"max per without max":   `{"@type": "MaxPerZoneRule"}`,
		"task type bad field":   `{"@type": "TaskTypeRule", "type": "db", "behavior": "AVOID", "field": "RACK"}`,
		"task type no behavior": `{"@type": "TaskTypeRule", "type": "db"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRule([]byte(data))
			assert.True(t, schedulererrors.IsInvalidArgument(err), "unexpected error %v", err)
		})
	}
}
