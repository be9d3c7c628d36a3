package placement

import (
	"fmt"
	"regexp"

	"github.com/gobwas/glob"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

// StringMatcher is a predicate over strings, e.g. offer hostnames or attributes.
// String returns a description of the matcher that's included in evaluation reasons.
type StringMatcher interface {
	Matches(s string) bool
	String() string
}

// ExactMatcher accepts only Value.
type ExactMatcher struct {
	Value string
}

func NewExactMatcher(value string) *ExactMatcher {
	return &ExactMatcher{Value: value}
}

func (m *ExactMatcher) Matches(s string) bool {
	return s == m.Value
}

func (m *ExactMatcher) String() string {
	return fmt.Sprintf("exact(%s)", m.Value)
}

// AnyMatcher accepts everything.
type AnyMatcher struct{}

func NewAnyMatcher() *AnyMatcher {
	return &AnyMatcher{}
}

func (m *AnyMatcher) Matches(string) bool {
	return true
}

func (m *AnyMatcher) String() string {
	return "any"
}

// RegexMatcher accepts strings that match its pattern in their entirety.
type RegexMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// NewRegexMatcher returns an error if pattern isn't a valid regular expression.
func NewRegexMatcher(pattern string) (*RegexMatcher, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, schedulererrors.NewInvalidArgument("pattern", pattern, "invalid regular expression: %s", err)
	}
	return &RegexMatcher{pattern: pattern, re: re}, nil
}

func (m *RegexMatcher) Pattern() string {
	return m.pattern
}

func (m *RegexMatcher) Matches(s string) bool {
	return m.re.MatchString(s)
}

func (m *RegexMatcher) String() string {
	return fmt.Sprintf("regex(%s)", m.pattern)
}

// GlobMatcher accepts strings matching a shell-style glob, e.g. "host-*" or "rack:rack-{1,2}".
type GlobMatcher struct {
	pattern string
	g       glob.Glob
}

// NewGlobMatcher returns an error if pattern isn't a valid glob.
func NewGlobMatcher(pattern string) (*GlobMatcher, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, schedulererrors.NewInvalidArgument("pattern", pattern, "invalid glob: %s", err)
	}
	return &GlobMatcher{pattern: pattern, g: g}, nil
}

func (m *GlobMatcher) Pattern() string {
	return m.pattern
}

func (m *GlobMatcher) Matches(s string) bool {
	return m.g.Match(s)
}

func (m *GlobMatcher) String() string {
	return fmt.Sprintf("glob(%s)", m.pattern)
}
