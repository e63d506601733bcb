package hub

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/reqhub/internal/requisition"
)

// runJob executes the steps of a job in order. Each step goes through
// Execute, so unhandled steps escalate on their own. The job is handled if
// any step was.
func (h *Hub) runJob(ctx context.Context, job []requisition.JobEntry) bool {
	handled := false
	for i, step := range job {
		if err := ctx.Err(); err != nil {
			logger.Warningf("%s: job aborted before step %d: %v", h.source, i, err)
			break
		}

		payload, err := requisition.Decode(step.RequestType, step.Parameter)
		if err != nil {
			logger.Errorf("%s: job step %d (%q): %v", h.source, i, step.RequestType, err)
			continue
		}
		if h.Execute(ctx, step.RequestType, payload) {
			handled = true
		}
	}
	return handled
}

// JobFile is the YAML form of a job.
//
//	job:
//	  - requestType: showInfo
//	    parameter: ready
//	  - requestType: connectionAdded
//	    parameter: {id: 1, caption: local}
type JobFile struct {
	Job []JobStep `yaml:"job"`
}

// JobStep is one step of a JobFile.
type JobStep struct {
	RequestType string `yaml:"requestType"`
	Parameter   any    `yaml:"parameter"`
}

// LoadJob reads a YAML job and validates every step against the catalog.
func LoadJob(r io.Reader) ([]requisition.JobEntry, error) {
	var file JobFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.NotValidf("empty job")
		}
		return nil, errors.Annotate(err, "parsing job")
	}

	entries := make([]requisition.JobEntry, 0, len(file.Job))
	for i, step := range file.Job {
		name := requisition.Name(step.RequestType)
		raw, err := json.Marshal(step.Parameter)
		if err != nil {
			return nil, errors.Annotatef(err, "job step %d (%q)", i, name)
		}
		if _, err := requisition.Decode(name, raw); err != nil {
			return nil, errors.Annotatef(err, "job step %d", i)
		}
		entries = append(entries, requisition.JobEntry{RequestType: name, Parameter: raw})
	}
	return entries, nil
}

// LoadJobFile reads a YAML job from path.
func LoadJobFile(path string) ([]requisition.JobEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	entries, err := LoadJob(f)
	return entries, errors.Annotatef(err, "job file %s", path)
}
