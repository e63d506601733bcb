package requisition

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Envelope is the wire form of a requisition.
type Envelope struct {
	Source      string          `json:"source,omitempty"`
	RequestType Name            `json:"requestType"`
	Parameter   json.RawMessage `json:"parameter,omitempty"`
}

// NewEnvelope encodes payload for transmission. Host-local kinds are
// rejected.
func NewEnvelope(source string, name Name, payload any) (Envelope, error) {
	if !Known(name) {
		return Envelope{}, errors.NotFoundf("requisition %q", name)
	}
	if !Remotable(name) {
		return Envelope{}, errors.NotValidf("host-local requisition %q to remote", name)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Annotatef(err, "encoding %q parameter", name)
	}
	return Envelope{Source: source, RequestType: name, Parameter: raw}, nil
}

// ParseEnvelope decodes a message received from a channel.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.NewNotValid(err, "malformed envelope")
	}
	if env.RequestType == "" {
		return Envelope{}, errors.NotValidf("envelope without request type")
	}
	return env, nil
}

// Marshal encodes the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	return data, errors.Trace(err)
}

// Payload decodes the typed parameter.
func (e Envelope) Payload() (any, error) {
	return Decode(e.RequestType, e.Parameter)
}
