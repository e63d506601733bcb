package shell

import (
	"encoding/json"

	"github.com/juju/errors"

	"github.com/dshills/reqhub/internal/requisition"
)

// Response state types sent by the backend.
const (
	StatePending = "PENDING"
	StateOK      = "OK"
	StateError   = "ERROR"
)

// Request is a command sent to the backend.
type Request struct {
	Request   string         `json:"request"`
	RequestID string         `json:"request_id"`
	Command   string         `json:"command"`
	Args      map[string]any `json:"args,omitempty"`
}

// RequestState tells how far a request got.
type RequestState struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// Response is one message from the backend. A request may be answered by
// several pending responses followed by a final one.
type Response struct {
	RequestID    string          `json:"request_id,omitempty"`
	RequestState RequestState    `json:"request_state"`
	Done         bool            `json:"done,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`

	SessionUUID   string       `json:"session_uuid,omitempty"`
	LocalUserMode bool         `json:"local_user_mode,omitempty"`
	ActiveProfile *profileData `json:"active_profile,omitempty"`

	// Raw is the message as received.
	Raw json.RawMessage `json:"-"`
}

type profileData struct {
	ID          int                    `json:"id"`
	UserID      int                    `json:"user_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Options     requisition.Dictionary `json:"options"`
}

// Final reports whether no more responses follow for the request.
func (r Response) Final() bool {
	return r.Done || r.RequestState.Type != StatePending
}

// Failed reports whether the backend rejected the request.
func (r Response) Failed() bool {
	return r.RequestState.Type == StateError
}

func (r Response) reply(id string) requisition.ShellReply {
	return requisition.ShellReply{
		ID:      id,
		State:   r.RequestState.Type,
		Message: r.RequestState.Msg,
		Done:    r.Final(),
		Result:  r.Result,
	}
}

func (r Response) webSession() requisition.WebSessionData {
	data := requisition.WebSessionData{
		SessionUUID:   r.SessionUUID,
		LocalUserMode: r.LocalUserMode,
	}
	if p := r.ActiveProfile; p != nil {
		data.ActiveProfile = requisition.ShellProfile{
			ID:          p.ID,
			UserID:      p.UserID,
			Name:        p.Name,
			Description: p.Description,
			Options:     p.Options,
		}
	}
	return data
}

// parseResponse decodes and checks a backend message. Messages that carry a
// session id need no request id; all others need a request id and a state.
func parseResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, errors.NewNotValid(err, "malformed response")
	}
	resp.Raw = append(json.RawMessage(nil), data...)

	if resp.SessionUUID != "" {
		return resp, nil
	}
	if resp.RequestID == "" {
		return Response{}, errors.NotValidf("response without request_id")
	}
	if resp.RequestState.Type == "" {
		return Response{}, errors.NotValidf("response %s without request_state", resp.RequestID)
	}
	return resp, nil
}

// dictionary turns a message into the map form the debugger shows.
func dictionary(data []byte) requisition.Dictionary {
	var dict requisition.Dictionary
	if err := json.Unmarshal(data, &dict); err != nil {
		return requisition.Dictionary{"raw": string(data)}
	}
	return dict
}
