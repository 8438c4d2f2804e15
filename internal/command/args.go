package command

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Args carries the named arguments of a single invocation. Over the
// control socket this is the decoded JSON "args" object; the TUI builds
// it from palette input.
type Args map[string]any

// String returns the named argument as a string. A missing key is an
// error; an empty string is a valid value.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q: want string, got %T", key, v)
	}
	return s, nil
}

// StringOr returns the named argument or fallback when absent.
func (a Args) StringOr(key, fallback string) string {
	if s, err := a.String(key); err == nil {
		return s
	}
	return fallback
}

// Int returns the named argument as an int. JSON numbers arrive as
// float64 and palette input as strings, so both are coerced.
func (a Args) Int(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", key, err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("argument %q: want number, got %T", key, v)
	}
}

// IntOr returns the named argument or fallback when absent or invalid.
func (a Args) IntOr(key string, fallback int) int {
	if n, err := a.Int(key); err == nil {
		return n
	}
	return fallback
}
