package command

import (
	"context"
	"fmt"
)

// The web front-end asserts on these reply strings verbatim; they are
// kept byte for byte from the shell this host replaced.
const pythonProbeReply = "Python connection test from Tauri v2"

// Builtins returns the commands every host registers, independent of
// which services are wired.
func Builtins() []Command {
	return []Command{
		{
			Name:        "greet",
			Title:       "Greet",
			Description: "Echo a greeting for the given name",
			Category:    "demo",
			ArgHint:     "name",
			Handler: func(_ context.Context, args Args) (string, error) {
				name, err := args.String("name")
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Hello, %s! You've been greeted from Rust!", name), nil
			},
		},
		{
			Name:        "test_python_connection",
			Title:       "Test Python Connection",
			Description: "Static connectivity placeholder; backend_ping does the live probe",
			Category:    "demo",
			Handler: func(context.Context, Args) (string, error) {
				return pythonProbeReply, nil
			},
		},
	}
}
