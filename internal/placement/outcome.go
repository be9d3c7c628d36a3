package placement

import (
	"fmt"
	"strings"
)

// Outcome is the result of evaluating a rule against an offer.
// Composite rules keep the outcome of every child, so an Outcome explains the whole decision rather than
// only its verdict.
type Outcome struct {
	Passed bool
	// Type name of the rule that produced this outcome, e.g. "HostnameRule".
	Source   string
	Reason   string
	Children []*Outcome
}

func pass(source string, children []*Outcome, format string, args ...interface{}) *Outcome {
	return &Outcome{Passed: true, Source: source, Reason: fmt.Sprintf(format, args...), Children: children}
}

func fail(source string, children []*Outcome, format string, args ...interface{}) *Outcome {
	return &Outcome{Passed: false, Source: source, Reason: fmt.Sprintf(format, args...), Children: children}
}

func (o *Outcome) verdict() string {
	if o.Passed {
		return "PASS"
	}
	return "FAIL"
}

// String renders the outcome tree with one outcome per line, children indented under their parent.
func (o *Outcome) String() string {
	var sb strings.Builder
	o.write(&sb, 0)
	return strings.TrimSuffix(sb.String(), "\n")
}

func (o *Outcome) write(sb *strings.Builder, depth int) {
	fmt.Fprintf(sb, "%s%s(%s): %s\n", strings.Repeat("  ", depth), o.verdict(), o.Source, o.Reason)
	for _, child := range o.Children {
		child.write(sb, depth+1)
	}
}

// FailureReasons returns the reasons of the outcomes that are responsible for o failing.
// Those are the failed outcomes in the tree that don't themselves have failed children.
// Returns nil if o passed.
func (o *Outcome) FailureReasons() []string {
	if o.Passed {
		return nil
	}
	var reasons []string
	for _, child := range o.Children {
		reasons = append(reasons, child.FailureReasons()...)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, o.Reason)
	}
	return reasons
}
