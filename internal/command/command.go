package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Command is a named operation a front-end can invoke on the host.
type Command struct {
	Name        string
	Title       string
	Description string
	Category    string
	// ArgHint names the argument that palette-style callers fill from
	// trailing input, e.g. "name" for greet.
	ArgHint string
	Handler Handler
}

// Handler runs a command. Handlers may be called concurrently from the
// TUI and the control socket and must not care which one is asking.
type Handler func(ctx context.Context, args Args) (string, error)

var (
	// ErrUnknown is returned when no command is registered under the
	// requested name.
	ErrUnknown = errors.New("no such command")
	// ErrRegistered is returned when a name is registered twice.
	ErrRegistered = errors.New("command already registered")
)

// Registry maps command names to handlers. It is populated once during
// startup wiring and is read-only afterwards, so lookups need no lock.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. The first registration of a name wins;
// a duplicate is a wiring bug and is reported as an error.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("command name is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %s", ErrRegistered, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// RegisterAll registers every command in order, stopping at the first
// failure.
func (r *Registry) RegisterAll(cmds ...Command) error {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Invoke looks up name and runs its handler. An unregistered name
// returns ErrUnknown; it is never fatal.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (string, error) {
	cmd, ok := r.commands[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return cmd.Handler(ctx, args)
}

// Lookup returns the command registered under name, if any.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns all commands sorted by name.
func (r *Registry) List() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Len() int {
	return len(r.commands)
}
