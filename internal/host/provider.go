package host

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/dshills/reqhub/internal/bridge"
	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

// ErrDisposed is returned for operations on a disposed provider.
const ErrDisposed = errors.ConstError("provider disposed")

// State is the lifecycle state of a provider.
type State int

const (
	Created State = iota
	Active
	Backgrounded
	Disposed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Active:
		return "active"
	case Backgrounded:
		return "backgrounded"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Provider is the host side of one webview: a hub whose remote is the
// webview and whose escalation target is the host.
type Provider struct {
	id     string
	seq    uint64
	host   *Host
	hub    *hub.Hub
	scope  *hub.Scope
	bridge *bridge.Bridge

	mu      sync.Mutex
	caption string
	state   State
}

// ID returns the provider id.
func (p *Provider) ID() string {
	return p.id
}

// Caption returns the title of the webview.
func (p *Provider) Caption() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caption
}

// SetCaption changes the title of the webview.
func (p *Provider) SetCaption(caption string) {
	p.mu.Lock()
	p.caption = caption
	p.mu.Unlock()
}

// Hub returns the provider's hub.
func (p *Provider) Hub() *hub.Hub {
	return p.hub
}

// Scope returns the scope that owns the provider's subscriptions. It is
// closed on disposal.
func (p *Provider) Scope() *hub.Scope {
	return p.scope
}

// State returns the lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reveal makes the provider the active one.
func (p *Provider) Reveal() error {
	return p.transition(Active, Created, Active, Backgrounded)
}

// Background marks the provider as hidden.
func (p *Provider) Background() error {
	return p.transition(Backgrounded, Active, Backgrounded)
}

func (p *Provider) transition(to State, from ...State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Disposed {
		return ErrDisposed
	}
	for _, s := range from {
		if p.state == s {
			if p.state != to {
				logger.Debugf("provider %q: %s -> %s", p.caption, p.state, to)
			}
			p.state = to
			return nil
		}
	}
	return errors.NotValidf("provider %q moving from %s to %s", p.caption, p.state, to)
}

// Dispose unregisters the provider's subscriptions, stops its bridge and
// removes it from the host. Later calls do nothing.
func (p *Provider) Dispose() {
	p.mu.Lock()
	if p.state == Disposed {
		p.mu.Unlock()
		return
	}
	p.state = Disposed
	p.mu.Unlock()

	p.scope.Close()
	if p.bridge != nil {
		p.bridge.Kill()
	}
	p.host.remove(p)
	logger.Infof("disposed provider %q (%s)", p.Caption(), p.id)
}

// RunCommand reveals the provider, optionally changes its caption, and
// sends the requisition to the webview.
func (p *Provider) RunCommand(ctx context.Context, name requisition.Name, payload any, caption string) (bool, error) {
	if p.State() == Disposed {
		return false, ErrDisposed
	}
	if caption != "" {
		p.SetCaption(caption)
	}
	if err := p.Reveal(); err != nil {
		return false, errors.Trace(err)
	}
	return p.hub.ExecuteRemote(ctx, name, payload), nil
}

// registerDefaults installs the subscribers every provider hub carries.
func (p *Provider) registerDefaults() error {
	h := p.host

	if _, err := hub.On(p.scope, requisition.SettingsChanged, func(_ context.Context, e *requisition.SettingEntry) (bool, error) {
		if e == nil || h.settings == nil {
			return false, nil
		}
		if err := h.settings.Set(e.Key, e.Value); err != nil {
			return false, errors.Annotatef(err, "setting %q", e.Key)
		}
		return true, nil
	}); err != nil {
		return errors.Trace(err)
	}

	// Dialog responses belong to the host and are never broadcast.
	if _, err := hub.On(p.scope, requisition.DialogResponded, func(ctx context.Context, r requisition.DialogResponse) (bool, error) {
		if !hub.Execute(ctx, h.hub, requisition.DialogResponded, r) {
			logger.Debugf("dialog %q response not handled", r.ID)
		}
		return true, nil
	}); err != nil {
		return errors.Trace(err)
	}

	// The selection is not consumed so the host still sees it.
	_, err := hub.On(p.scope, requisition.SelectConnectionTab, func(_ context.Context, sel requisition.ConnectionTabSelection) (bool, error) {
		if sel.Caption != "" {
			p.SetCaption(sel.Caption)
		}
		return false, nil
	})
	return errors.Trace(err)
}
