package assistant

import (
	"log/slog"
	"sync"

	"github.com/kestrelvoice/aria/pkg/wake"
)

// CommandRegistry maps command-word IDs to local actions (lamp on, status
// report). Its Handle method plugs into WithCommandHandler.
type CommandRegistry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	actions map[int]commandAction
}

type commandAction struct {
	name string
	run  func()
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry(logger *slog.Logger) *CommandRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRegistry{
		logger:  logger.With("component", "commands"),
		actions: make(map[int]commandAction),
	}
}

// Register binds an action to a command ID, replacing any previous binding.
func (r *CommandRegistry) Register(id int, name string, run func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[id] = commandAction{name: name, run: run}
}

// Handle runs the action bound to the top recognition result. Unknown
// commands are logged and dropped.
func (r *CommandRegistry) Handle(results []wake.CommandResult) {
	if len(results) == 0 {
		return
	}
	top := results[0]

	r.mu.RLock()
	action, ok := r.actions[top.CommandID]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unbound command", "command_id", top.CommandID)
		return
	}
	r.logger.Info("running command", "name", action.name, "command_id", top.CommandID)
	action.run()
}

// Names returns the registered command names keyed by ID.
func (r *CommandRegistry) Names() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]string, len(r.actions))
	for id, a := range r.actions {
		out[id] = a.name
	}
	return out
}
