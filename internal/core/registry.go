package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc produces the reply for one event. Everything it needs is passed in;
// handlers must not keep state between calls.
type HandlerFunc func(ctx context.Context, deps Deps, ev Event) (Reply, error)

// Command binds a name to its handler
type Command struct {
	Name        string
	Description string
	Handler     HandlerFunc
}

var commandNamePattern = regexp.MustCompile(`^\w+$`)

// Registry maps command names to handlers. It is filled at startup and sealed;
// after Seal it only serves lookups.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	sealed   bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command. Names are case-sensitive and must be unique; on a
// duplicate the first registration is kept.
func (r *Registry) Register(cmd Command) error {
	if !commandNamePattern.MatchString(cmd.Name) {
		return fmt.Errorf("%w: name %q must be letters, digits or underscores", ErrInvalidCommand, cmd.Name)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("%w: command %q has no handler", ErrInvalidCommand, cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, cmd.Name)
	}
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Seal checks that every callback Action resolves to a command and freezes the
// registry. A failed Seal leaves the registry open.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []string
	for _, action := range Actions() {
		if _, ok := r.commands[action.Tag()]; !ok {
			missing = append(missing, action.Tag())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingAction, strings.Join(missing, ", "))
	}

	r.sealed = true
	return nil
}

// Sealed reports whether Seal succeeded
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the command registered under name
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns all commands sorted by name
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
