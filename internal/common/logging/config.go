package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	FormatText = "text"
	FormatJson = "json"
	// Message only, for interactive use of the command line tools
	FormatCommandLine = "commandline"
)

var validLogFormats = map[string]bool{
	FormatText:        true,
	FormatJson:        true,
	FormatCommandLine: true,
}

// Config defines logging configuration.
type Config struct {
	// Log level, e.g. info, error etc
	Level string `mapstructure:"level"`
	// Logging format, one of text, json or commandline
	Format string `mapstructure:"format"`
}

// Apply configures the logrus standard logger according to c.
func (c Config) Apply() error {
	level, err := log.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return errors.WithStack(err)
	}
	if err := validateLogFormat(c.Format); err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	switch c.Format {
	case FormatJson:
		log.SetFormatter(&log.JSONFormatter{})
	case FormatCommandLine:
		log.SetFormatter(&CommandLineFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	}
	return nil
}

func validateLogFormat(f string) error {
	if _, ok := validLogFormats[f]; !ok {
		formats := maps.Keys(validLogFormats)
		slices.Sort(formats)
		return errors.Errorf("unknown log format: %s.  Valid formats are %s", f, formats)
	}
	return nil
}
