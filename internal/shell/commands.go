package shell

import (
	"context"

	"github.com/juju/errors"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

// Serve registers the session as the shellExecute handler on r. Each
// command runs in the background and every backend response is executed as
// shellResponse on the session hub, carrying the command's id.
func (s *Session) Serve(r hub.Registrar) (*hub.Subscription, error) {
	return hub.On(r, requisition.ShellExecute, s.handleCommand)
}

func (s *Session) handleCommand(_ context.Context, cmd requisition.ShellCommand) (bool, error) {
	if cmd.ID == "" || cmd.Command == "" {
		return false, errors.NotValidf("shell command without id or command")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrDisconnected
	}
	s.commands.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.commands.Done()
		s.runCommand(cmd)
	}()
	return true, nil
}

func (s *Session) runCommand(cmd requisition.ShellCommand) {
	ctx := s.tomb.Context(nil)
	final, err := s.ExecuteStream(ctx, cmd.Command, cmd.Args, func(resp Response) {
		s.reply(ctx, resp.reply(cmd.ID))
	})
	if err != nil && final.RequestID == "" {
		logger.Debugf("shell command %s (%s): %v", cmd.ID, cmd.Command, err)
		s.reply(ctx, requisition.ShellReply{ID: cmd.ID, State: StateError, Message: err.Error(), Done: true})
		return
	}
	s.reply(ctx, final.reply(cmd.ID))
}

func (s *Session) reply(ctx context.Context, r requisition.ShellReply) {
	if !hub.Execute(ctx, s.cfg.Hub, requisition.ShellResponse, r) {
		logger.Debugf("shellResponse for %s not handled", r.ID)
	}
}
