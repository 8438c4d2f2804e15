package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func testCmd(name string, reply string) Command {
	return Command{
		Name:  name,
		Title: name,
		Handler: func(context.Context, Args) (string, error) {
			return reply, nil
		},
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Command{Name: "", Handler: func(context.Context, Args) (string, error) { return "", nil }}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register(Command{Name: "nohandler"}); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if r.Len() != 0 {
		t.Fatalf("invalid commands were stored, len=%d", r.Len())
	}
}

func TestRegistryDuplicateKeepsFirst(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testCmd("status", "first")); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register(testCmd("status", "second"))
	if !errors.Is(err, ErrRegistered) {
		t.Fatalf("want ErrRegistered, got %v", err)
	}

	got, err := r.Invoke(context.Background(), "status", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != "first" {
		t.Fatalf("duplicate overwrote original: got %q", got)
	}
}

func TestRegistryUnknownCommand(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testCmd("known", "ok")); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("want ErrUnknown, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error should name the command: %v", err)
	}
}

func TestRegistryHandlerErrorPassesThrough(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	cmd := Command{Name: "explode", Handler: func(context.Context, Args) (string, error) {
		return "", boom
	}}
	if err := r.Register(cmd); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Invoke(context.Background(), "explode", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("want handler error, got %v", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(testCmd(name, name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("want 3 commands, got %d", len(list))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, cmd := range list {
		if cmd.Name != want[i] {
			t.Fatalf("position %d: want %s, got %s", i, want[i], cmd.Name)
		}
	}
}

func TestRegistryConcurrentInvoke(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("cmd_%d", i)
		if err := r.Register(testCmd(name, name)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("cmd_%d", i%8)
			got, err := r.Invoke(context.Background(), name, nil)
			if err != nil {
				t.Errorf("invoke %s: %v", name, err)
				return
			}
			if got != name {
				t.Errorf("invoke %s: got %q", name, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestArgsString(t *testing.T) {
	args := Args{"name": "World", "count": float64(3)}

	if got, err := args.String("name"); err != nil || got != "World" {
		t.Fatalf("String(name) = %q, %v", got, err)
	}
	if _, err := args.String("absent"); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := args.String("count"); err == nil {
		t.Fatal("expected error for non-string value")
	}
	if got := args.StringOr("absent", "fallback"); got != "fallback" {
		t.Fatalf("StringOr fallback: got %q", got)
	}
}

func TestArgsIntCoercion(t *testing.T) {
	cases := []struct {
		name string
		args Args
		want int
	}{
		{"float64", Args{"deck": float64(2)}, 2},
		{"int", Args{"deck": 1}, 1},
		{"string", Args{"deck": "2"}, 2},
	}
	for _, tc := range cases {
		got, err := tc.args.Int("deck")
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: want %d, got %d", tc.name, tc.want, got)
		}
	}

	if _, err := (Args{"deck": "two"}).Int("deck"); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
	if got := (Args{}).IntOr("deck", 7); got != 7 {
		t.Fatalf("IntOr fallback: got %d", got)
	}
}
