// Package traffic taps the envelopes crossing remote bridges so they can be
// inspected, the way a communication debugger shows the messages between a
// frontend and its host.
package traffic

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"
	"github.com/juju/pubsub/v2"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

var logger = loggo.GetLogger("reqhub.traffic")

const (
	// TopicSent is published for every envelope written to a channel.
	TopicSent = "traffic.sent"

	// TopicReceived is published for every envelope read from a channel.
	TopicReceived = "traffic.received"
)

// Direction tells whether an envelope was sent or received.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Record is one tapped envelope.
type Record struct {
	Time      time.Time
	Direction Direction
	// Peer names the bridge the envelope crossed.
	Peer     string
	Envelope requisition.Envelope
}

// Tap publishes records on a pubsub hub. A nil *Tap drops everything.
type Tap struct {
	hub   *pubsub.SimpleHub
	clock clock.Clock
}

// NewTap creates a tap. A nil clock means the wall clock.
func NewTap(clk clock.Clock) *Tap {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Tap{
		hub: pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
			Logger: loggo.GetLogger("reqhub.traffic.hub"),
		}),
		clock: clk,
	}
}

// Sent records an outgoing envelope.
func (t *Tap) Sent(peer string, env requisition.Envelope) {
	t.publish(TopicSent, Sent, peer, env)
}

// Received records an incoming envelope.
func (t *Tap) Received(peer string, env requisition.Envelope) {
	t.publish(TopicReceived, Received, peer, env)
}

func (t *Tap) publish(topic string, dir Direction, peer string, env requisition.Envelope) {
	if t == nil {
		return
	}
	_ = t.hub.Publish(topic, Record{
		Time:      t.clock.Now(),
		Direction: dir,
		Peer:      peer,
		Envelope:  env,
	})
}

// Subscribe calls fn for every record in publication order. The returned
// function unsubscribes.
func (t *Tap) Subscribe(fn func(Record)) func() {
	return t.hub.SubscribeMatch(isTrafficTopic, func(topic string, data interface{}) {
		rec, ok := data.(Record)
		if !ok {
			logger.Warningf("unexpected %T on %s", data, topic)
			return
		}
		fn(rec)
	})
}

func isTrafficTopic(topic string) bool {
	return topic == TopicSent || topic == TopicReceived
}

// Recorder keeps the most recent records of a tap.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	records []Record
	unsub   func()
}

// NewRecorder starts recording up to limit records from tap.
func NewRecorder(tap *Tap, limit int) *Recorder {
	if limit <= 0 {
		limit = 1000
	}
	r := &Recorder{limit: limit}
	r.unsub = tap.Subscribe(r.add)
	return r
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
	if over := len(r.records) - r.limit; over > 0 {
		r.records = append(r.records[:0], r.records[over:]...)
	}
}

// Records returns a copy of the recorded envelopes, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Close stops recording.
func (r *Recorder) Close() {
	r.unsub()
}

// Forward executes a debugger requisition on h for every tapped envelope.
// Sent envelopes travel as the request and received ones as the response.
// The returned function stops forwarding.
func Forward(ctx context.Context, tap *Tap, h *hub.Hub) func() {
	return tap.Subscribe(func(rec Record) {
		data, err := json.Marshal(rec.Envelope)
		if err != nil {
			logger.Errorf("encoding %q for the debugger: %v", rec.Envelope.RequestType, err)
			return
		}
		var dict requisition.Dictionary
		if err := json.Unmarshal(data, &dict); err != nil {
			logger.Errorf("decoding %q for the debugger: %v", rec.Envelope.RequestType, err)
			return
		}
		dict["peer"] = rec.Peer

		var payload requisition.DebuggerData
		if rec.Direction == Sent {
			payload.Request = dict
		} else {
			payload.Response = dict
		}
		hub.Execute(ctx, h, requisition.Debugger, payload)
	})
}
