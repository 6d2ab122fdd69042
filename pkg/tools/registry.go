// Package tools exposes reposcan operations as named tools returning
// JSON-serializable results, for use by an agent runtime or the CLI.
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// Handler implements one tool
type Handler func(ctx context.Context, session *Session, args Args) (Result, error)

// Tool describes a callable tool
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Parameters lists accepted argument names, required ones marked by Required
	Parameters []Parameter `json:"parameters"`
	Handler    Handler     `json:"-"`
}

// Parameter documents a tool argument
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Registry holds the tools available to a caller
type Registry struct {
	tools  map[string]Tool
	mu     sync.RWMutex
	logger logger.LoggerInterface
}

// NewRegistry creates an empty registry
func NewRegistry(log logger.LoggerInterface) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.Component(log, "tools"),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" || tool.Handler == nil {
		return errors.InvalidInputError("tool needs a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return errors.InvalidInputError(fmt.Sprintf("tool %s already registered", tool.Name))
	}
	r.tools[tool.Name] = tool
	r.logger.Debug("Tool registered (name: %s)", tool.Name)
	return nil
}

// Get returns the named tool
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the named tool. It never panics and never returns a nil
// result: handler errors and panics become structured failures.
func (r *Registry) Call(ctx context.Context, session *Session, name string, args Args) (result Result) {
	tool, ok := r.Get(name)
	if !ok {
		return failure(errors.NewError(errors.ErrorTypeNotFound).
			WithMessagef("unknown tool: %s", name).
			Build())
	}
	if session == nil {
		session = NewSession("")
	}
	if args == nil {
		args = Args{}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Tool %s panicked: %v\n%s", name, rec, debug.Stack())
			result = failure(errors.NewError(errors.ErrorTypeUnknown).
				WithMessagef("internal error in %s: %v", name, rec).
				Build())
		}
	}()

	r.logger.Debug("Calling tool %s (session: %s)", name, session.ID)
	res, err := tool.Handler(ctx, session, args)
	if err != nil {
		r.logger.Warn("Tool %s failed: %s", name, errors.MessageOf(err))
		failed := failure(err)
		// partial payloads survive alongside the error fields
		for k, v := range res {
			if _, taken := failed[k]; !taken {
				failed[k] = v
			}
		}
		return failed
	}
	return success(res)
}
