// Package logging routes loggo module loggers through the host line logger.
package logging

import (
	"fmt"

	"globe/hal"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

// DefaultSpec is used when no logging specification is given.
const DefaultSpec = "<root>=INFO"

// HALWriter is a loggo.Writer that emits one line per entry through a hal.Logger.
type HALWriter struct {
	Out hal.Logger
}

// Write implements loggo.Writer.
func (w HALWriter) Write(entry loggo.Entry) {
	if w.Out == nil {
		return
	}
	w.Out.WriteLineString(Format(entry))
}

// Format renders an entry as "15:04:05.000 LEVEL module message".
func Format(entry loggo.Entry) string {
	ts := entry.Timestamp.UTC().Format("15:04:05.000")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

// Setup installs the HAL writer as the default loggo writer and applies spec,
// e.g. "<root>=INFO;globe.tiles=DEBUG". It may be called again, including
// after loggo.ResetLogging has removed every writer.
func Setup(out hal.Logger, spec string) error {
	if out == nil {
		return errors.NotValidf("nil logger")
	}
	// Not finding a default writer is fine.
	_, _ = loggo.RemoveWriter(loggo.DefaultWriterName)
	if err := loggo.RegisterWriter(loggo.DefaultWriterName, HALWriter{Out: out}); err != nil {
		return errors.Annotate(err, "registering default log writer")
	}
	if spec == "" {
		spec = DefaultSpec
	}
	return errors.Annotatef(loggo.ConfigureLoggers(spec), "configuring loggers %q", spec)
}
