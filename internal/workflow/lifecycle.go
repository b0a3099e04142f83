package workflow

import (
	"context"

	"github.com/loykin/landodeck/internal/lando"
	"github.com/loykin/landodeck/internal/operation"
)

// Action is a single-command site lifecycle action.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionRebuild Action = "rebuild"
)

var actionVerbs = map[Action]string{
	ActionStart:   "Starting",
	ActionStop:    "Stopping",
	ActionRestart: "Restarting",
	ActionRebuild: "Rebuilding",
}

func (a Action) Valid() bool {
	_, ok := actionVerbs[a]
	return ok
}

func (s *Service) command(a Action) string {
	switch a {
	case ActionStop:
		return s.cli.Stop()
	case ActionRestart:
		return s.cli.Restart()
	case ActionRebuild:
		return s.cli.Rebuild()
	default:
		return s.cli.Start()
	}
}

// Lifecycle streams the one Lando command for action in the site directory.
// The operation log is exactly the command's output.
func (s *Service) Lifecycle(action Action, site lando.Binding) operation.Task {
	command := s.command(action)
	return func(ctx context.Context, op *operation.Op) error {
		s.log.Info(actionVerbs[action]+" site", "site", site.Name, "dir", site.Dir, "operation", op.ID())
		return s.shell.Stream(ctx, command, site.Dir, op.Line)
	}
}
