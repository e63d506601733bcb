package hub

import (
	"context"

	"github.com/juju/errors"

	"github.com/dshills/reqhub/internal/requisition"
)

// On registers a typed subscriber for kind k on r.
func On[P any](r Registrar, k requisition.Kind[P], fn func(ctx context.Context, payload P) (bool, error)) (*Subscription, error) {
	if fn == nil {
		return nil, errors.NotValidf("nil handler for %q", k.Name())
	}
	return r.Register(k.Name(), HandlerFunc(func(ctx context.Context, payload any) (bool, error) {
		p, ok := payload.(P)
		if !ok {
			return false, errors.NotValidf("payload %T for %q", payload, k.Name())
		}
		return fn(ctx, p)
	}))
}

// Execute runs a typed requisition through h.Execute.
func Execute[P any](ctx context.Context, h *Hub, k requisition.Kind[P], payload P) bool {
	return h.Execute(ctx, k.Name(), payload)
}

// ExecuteConcurrent runs a typed requisition through h.ExecuteConcurrent.
func ExecuteConcurrent[P any](ctx context.Context, h *Hub, k requisition.Kind[P], payload P) bool {
	return h.ExecuteConcurrent(ctx, k.Name(), payload)
}

// ExecuteRemote sends a typed requisition through h.ExecuteRemote.
func ExecuteRemote[P any](ctx context.Context, h *Hub, k requisition.Kind[P], payload P) bool {
	return h.ExecuteRemote(ctx, k.Name(), payload)
}
