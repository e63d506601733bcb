// Package requisition defines the closed catalog of requisitions that flow
// through a hub.
//
// A requisition is a named event with a typed payload. Each entry of the
// catalog is a Kind[P] value which ties the wire name to the Go type of its
// payload, so subscribers and publishers agree on the payload at compile
// time:
//
//	hub.On(h, requisition.ShowError, func(ctx context.Context, msg string) (bool, error) {
//	    ...
//	})
//	hub.Execute(ctx, h, requisition.ShowError, "disk full")
//
// Remote peers only see names and JSON. The catalog maps a name back to its
// payload type so an Envelope received from a peer can be decoded into the
// same value a local publisher would have passed.
//
// Some kinds are host-local (proxyRequest carries a live provider reference)
// and can never cross a channel.
package requisition
