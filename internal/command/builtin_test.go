package command

import (
	"context"
	"testing"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.RegisterAll(Builtins()...); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	return r
}

func TestGreet(t *testing.T) {
	r := builtinRegistry(t)

	cases := []struct {
		name string
		want string
	}{
		{"World", "Hello, World! You've been greeted from Rust!"},
		{"DJ Späce", "Hello, DJ Späce! You've been greeted from Rust!"},
		{"", "Hello, ! You've been greeted from Rust!"},
	}
	for _, tc := range cases {
		got, err := r.Invoke(context.Background(), "greet", Args{"name": tc.name})
		if err != nil {
			t.Fatalf("greet(%q): %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("greet(%q):\n want %q\n got  %q", tc.name, tc.want, got)
		}
	}
}

func TestGreetMissingArg(t *testing.T) {
	r := builtinRegistry(t)

	if _, err := r.Invoke(context.Background(), "greet", Args{}); err == nil {
		t.Fatal("expected error when name argument is absent")
	}
}

func TestGreetDeterministic(t *testing.T) {
	r := builtinRegistry(t)

	first, err := r.Invoke(context.Background(), "greet", Args{"name": "Ada"})
	if err != nil {
		t.Fatalf("greet: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := r.Invoke(context.Background(), "greet", Args{"name": "Ada"})
		if err != nil {
			t.Fatalf("greet repeat %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("greet is not deterministic: %q vs %q", got, first)
		}
	}
}

func TestPythonConnectionPlaceholder(t *testing.T) {
	r := builtinRegistry(t)

	const want = "Python connection test from Tauri v2"
	for i := 0; i < 3; i++ {
		got, err := r.Invoke(context.Background(), "test_python_connection", nil)
		if err != nil {
			t.Fatalf("test_python_connection: %v", err)
		}
		if got != want {
			t.Fatalf("want %q, got %q", want, got)
		}
	}
}
