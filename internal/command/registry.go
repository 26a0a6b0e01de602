package command

import (
	"strings"
	"sync"
)

// Registry maps command names and aliases to commands. All keeps
// registration order.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd under its name and aliases. A later registration with
// the same name replaces the earlier one.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.commands[cmd.Name()]; ok {
		for i, c := range r.order {
			if c == old {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.commands[cmd.Name()] = cmd
	for _, a := range cmd.Aliases() {
		r.commands[a] = cmd
	}
	r.order = append(r.order, cmd)
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// ForComponent finds the command owning a component custom ID.
func (r *Registry) ForComponent(customID string) (Command, bool) {
	name, _, ok := strings.Cut(customID, ":")
	if !ok {
		return nil, false
	}
	cmd, found := r.Get(name)
	if !found {
		return nil, false
	}
	if _, ok := innermost(cmd).(ComponentInteractionHandler); !ok {
		return nil, false
	}
	return cmd, true
}

func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.order...)
}
