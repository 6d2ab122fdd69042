package tools

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fumiya-kume/reposcan/pkg/errors"
)

// Args are the named arguments of a tool call, typically decoded from JSON
type Args map[string]any

// String returns the trimmed string argument, or "" when absent
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// Int accepts JSON numbers, Go integers and numeric strings
func (a Args) Int(name string) (int, bool, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, true, errors.InvalidInputError(name + " must be an integer")
		}
		return int(v), true, nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, true, errors.InvalidInputError(name + " must be an integer")
		}
		return n, true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if err != nil {
			return 0, true, errors.InvalidInputError(name + " must be an integer")
		}
		return n, true, nil
	}
	return 0, true, errors.InvalidInputError(name + " must be an integer")
}

// Bool returns the boolean argument, defaulting to false
func (a Args) Bool(name string) bool {
	switch v := a[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Strings accepts a list of strings or a single comma separated string
func (a Args) Strings(name string) []string {
	var out []string
	switch v := a[name].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = strings.Split(v, ",")
	}

	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// Map returns an object argument, or nil
func (a Args) Map(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

// Decode converts an object argument into target through its JSON form.
// It reports false when the argument is absent.
func (a Args) Decode(name string, target any) (bool, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return true, errors.NewError(errors.ErrorTypeInvalidInput).
			WithMessagef("%s is not valid JSON", name).
			WithCause(err).
			Build()
	}
	if err := json.Unmarshal(data, target); err != nil {
		return true, errors.NewError(errors.ErrorTypeInvalidInput).
			WithMessagef("%s has an unexpected shape", name).
			WithCause(err).
			Build()
	}
	return true, nil
}

func (a Args) required(name string) (string, error) {
	v := a.String(name)
	if v == "" {
		return "", errors.InvalidInputError(name + " is required")
	}
	return v, nil
}
