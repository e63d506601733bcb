package app

import (
	"io"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

// ConfigureLogging applies a loggo specification such as
// "<root>=INFO;reqhub.hub=TRACE". When w is not nil the default writer is
// replaced so that log output can be kept off a terminal screen.
func ConfigureLogging(spec string, w io.Writer) error {
	if spec != "" {
		if err := loggo.ConfigureLoggers(spec); err != nil {
			return errors.Annotatef(err, "log specification %q", spec)
		}
	}
	if w != nil {
		if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, loggo.DefaultFormatter)); err != nil {
			return errors.Annotate(err, "replacing log writer")
		}
	}
	return nil
}
