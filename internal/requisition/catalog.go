package requisition

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/juju/errors"
)

// Name identifies a requisition on a hub and on the wire.
type Name string

// String returns the wire name.
func (n Name) String() string {
	return string(n)
}

// Kind is a catalog entry binding a Name to its payload type P.
type Kind[P any] struct {
	name Name
}

// Name returns the wire name of the kind.
func (k Kind[P]) Name() Name {
	return k.name
}

// String returns the wire name of the kind.
func (k Kind[P]) String() string {
	return string(k.name)
}

type entry struct {
	payload reflect.Type
	local   bool
}

// catalog is written only during package initialization.
var catalog = make(map[Name]entry)

func define[P any](name Name) Kind[P] {
	if _, exists := catalog[name]; exists {
		panic("requisition: duplicate kind " + string(name))
	}
	catalog[name] = entry{payload: reflect.TypeOf((*P)(nil)).Elem()}
	return Kind[P]{name: name}
}

// defineLocal registers a kind that never crosses a channel.
func defineLocal[P any](name Name) Kind[P] {
	k := define[P](name)
	e := catalog[name]
	e.local = true
	catalog[name] = e
	return k
}

// Known reports whether name is part of the catalog.
func Known(name Name) bool {
	_, ok := catalog[name]
	return ok
}

// Remotable reports whether requisitions with the given name may be sent to
// a remote peer.
func Remotable(name Name) bool {
	e, ok := catalog[name]
	return ok && !e.local
}

// PayloadType returns the Go type of the payload carried by name.
func PayloadType(name Name) (reflect.Type, bool) {
	e, ok := catalog[name]
	if !ok {
		return nil, false
	}
	return e.payload, true
}

// Names returns all catalog names in lexical order.
func Names() []Name {
	names := make([]Name, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Decode turns a raw JSON parameter into the typed payload of name.
// An empty or null parameter yields the zero value of the payload type.
func Decode(name Name, raw json.RawMessage) (any, error) {
	e, ok := catalog[name]
	if !ok {
		return nil, errors.NotFoundf("requisition %q", name)
	}
	if e.local {
		return nil, errors.NotValidf("host-local requisition %q from remote", name)
	}
	ptr := reflect.New(e.payload)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, ptr.Interface()); err != nil {
			return nil, errors.Annotatef(err, "decoding %q parameter", name)
		}
	}
	return ptr.Elem().Interface(), nil
}

// Normalize checks that payload matches the catalog type of name.
// A nil payload becomes the zero value and a json.RawMessage is decoded.
func Normalize(name Name, payload any) (any, error) {
	e, ok := catalog[name]
	if !ok {
		return nil, errors.NotFoundf("requisition %q", name)
	}
	switch p := payload.(type) {
	case nil:
		return reflect.Zero(e.payload).Interface(), nil
	case json.RawMessage:
		if e.payload != reflect.TypeOf((*json.RawMessage)(nil)).Elem() {
			return Decode(name, p)
		}
	}
	if t := reflect.TypeOf(payload); t != e.payload {
		return nil, errors.NotValidf("payload %s for %q (want %s)", t, name, e.payload)
	}
	return payload, nil
}
