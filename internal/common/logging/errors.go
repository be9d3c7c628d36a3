package logging

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Stacktrace is the field WithStacktrace records the stack trace of an error under.
const Stacktrace = "stacktrace"

// WithStacktrace adds err to entry, along with the stack trace recorded where err was created if err was created
// or wrapped by pkg/errors.
func WithStacktrace(entry *log.Entry, err error) *log.Entry {
	entry = entry.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		entry = entry.WithField(Stacktrace, stack)
	}
	return entry
}

// Error logs err at error level on the standard logger, with its stack trace.
func Error(err error, message string) {
	WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error(message)
}

// ExtractStack returns the innermost stack trace in the chain of err, or nil if there isn't one.
func ExtractStack(err error) errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var stack errors.StackTrace
	for ; err != nil; err = errors.Unwrap(err) {
		if tracer, ok := err.(stackTracer); ok {
			stack = tracer.StackTrace()
		}
	}
	return stack
}
