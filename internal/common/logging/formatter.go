package logging

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// CommandLineFormatter prints the message followed by any fields as key=value, for output meant to be read at a
// terminal. Stack traces are left out.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(entry.Message)
	keys := maps.Keys(entry.Data)
	slices.Sort(keys)
	for _, key := range keys {
		if key == Stacktrace {
			continue
		}
		fmt.Fprintf(&b, " %s=%v", key, entry.Data[key])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
