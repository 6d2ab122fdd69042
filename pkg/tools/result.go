package tools

import (
	"encoding/json"
	"fmt"

	"github.com/fumiya-kume/reposcan/pkg/errors"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Result is the JSON-serializable value every tool call returns. Failures
// carry "error" with the taxonomy name and a human readable "message".
type Result map[string]any

// OK reports whether the call succeeded
func (r Result) OK() bool {
	return r["status"] == statusSuccess
}

// ErrorType returns the taxonomy name of a failed call, or ""
func (r Result) ErrorType() string {
	s, _ := r["error"].(string)
	return s
}

// Message returns the human readable failure message, or ""
func (r Result) Message() string {
	s, _ := r["message"].(string)
	return s
}

// JSON encodes the result with stable key order
func (r Result) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func success(fields Result) Result {
	if fields == nil {
		fields = Result{}
	}
	fields["status"] = statusSuccess
	return fields
}

// failure converts err into the structured error fields
func failure(err error) Result {
	r := Result{
		"status":  statusError,
		"error":   errors.TypeOf(err).String(),
		"message": errors.MessageOf(err),
	}
	if suggestions := errors.GetSuggestions(err); len(suggestions) > 0 {
		r["suggestions"] = suggestions
	}
	return r
}

// encode turns a typed value into its JSON object form so results only hold
// plain maps, slices, strings, numbers and bools.
func encode(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
