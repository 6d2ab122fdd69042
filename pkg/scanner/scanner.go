// Package scanner runs a local semgrep scan when no hosted scanning service
// is reachable.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/internal/utils"
	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

const (
	defaultCommand = "semgrep"
	defaultTimeout = 5 * time.Minute
)

// languageRulesets maps profiler language names to registry rulesets
var languageRulesets = map[string]string{
	"Python":     "p/python",
	"JavaScript": "p/javascript",
	"TypeScript": "p/typescript",
	"Java":       "p/java",
	"Kotlin":     "p/kotlin",
	"Go":         "p/golang",
	"Ruby":       "p/ruby",
	"PHP":        "p/php",
	"C":          "p/c",
	"C#":         "p/csharp",
	"Rust":       "p/rust",
	"Swift":      "p/swift",
}

var frameworkRulesets = map[string]string{
	"django": "p/django",
	"flask":  "p/flask",
	"react":  "p/react",
}

// Options configures a Scanner. Zero values select defaults.
type Options struct {
	// Command overrides semgrep discovery with a name or path
	Command         string
	Timeout         time.Duration
	DefaultRulesets []string
	Logger          logger.LoggerInterface
}

// Scanner invokes semgrep as an external process
type Scanner struct {
	command         string
	timeout         time.Duration
	defaultRulesets []string
	logger          logger.LoggerInterface
}

// Result is the outcome of one scan invocation
type Result struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// IsSuccess returns true if semgrep exited cleanly
func (r *Result) IsSuccess() bool {
	return r.ExitCode == 0
}

// New creates a scanner
func New(opts Options) *Scanner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rulesets := opts.DefaultRulesets
	if len(rulesets) == 0 {
		rulesets = config.DefaultRulesets
	}

	return &Scanner{
		command:         opts.Command,
		timeout:         timeout,
		defaultRulesets: append([]string(nil), rulesets...),
		logger:          logger.Component(opts.Logger, "scanner"),
	}
}

// NewFromConfig applies the scanner section of cfg
func NewFromConfig(cfg *config.Config, log logger.LoggerInterface) *Scanner {
	return New(Options{
		Command:         cfg.Scanner.Command,
		Timeout:         cfg.Scanner.Timeout,
		DefaultRulesets: cfg.Scanner.DefaultRulesets,
		Logger:          log,
	})
}

// Timeout returns the per-scan limit
func (s *Scanner) Timeout() time.Duration {
	return s.timeout
}

// Execute runs semgrep --json --quiet over path. A non-zero exit is not an
// error: the result carries the exit code and both output streams. Errors
// are reserved for a missing binary, a start failure, the timeout and the
// caller's context ending.
func (s *Scanner) Execute(ctx context.Context, path string, rulesets []string) (*Result, error) {
	override := s.command
	if override == defaultCommand {
		override = ""
	}
	command, err := utils.ResolveCommand(defaultCommand, override)
	if err != nil {
		return nil, errors.NewError(errors.ErrorTypeConfiguration).
			WithMessage("semgrep executable not found").
			WithCause(err).
			WithSuggestion("Install semgrep or set scanner.command in the configuration").
			Build()
	}

	if len(rulesets) == 0 {
		rulesets = s.defaultRulesets
	}
	args := BuildArgs(path, rulesets)

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// #nosec G204 - command is resolved from configuration, arguments are not shell-interpreted
	cmd := exec.CommandContext(execCtx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children that inherit the output pipes must not outlive the timeout
	cmd.WaitDelay = time.Second

	s.logger.Info("Running %s on %s with %d rulesets", command, path, len(rulesets))

	start := time.Now()
	err = cmd.Run()
	result := &Result{
		Command:  command,
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	// the caller giving up is not the scan's own time limit
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, errors.NewError(errors.ErrorTypeUnknown).
			WithMessage("semgrep scan interrupted").
			WithCause(ctxErr).
			WithContext("command", command).
			Build()
	}
	if execCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return result, errors.TimeoutError(defaultCommand, s.timeout)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			s.logger.Warn("semgrep exited with code %d", result.ExitCode)
			return result, nil
		}
		result.ExitCode = -1
		return result, errors.NewError(errors.ErrorTypeRemoteOperation).
			WithMessage("failed to start semgrep").
			WithCause(err).
			WithContext("command", command).
			Build()
	}

	s.logger.Info("semgrep finished in %s", result.Duration.Round(time.Millisecond))
	return result, nil
}

// Run executes a scan and renders the outcome as the text handed back to an
// agent. It never fails.
func (s *Scanner) Run(ctx context.Context, path string, rulesets []string) string {
	result, err := s.Execute(ctx, path, rulesets)
	switch {
	case err != nil && ctx.Err() != nil:
		return fmt.Sprintf("Semgrep scan cancelled: %v", ctx.Err())
	case errors.IsType(err, errors.ErrorTypeTimeout):
		return fmt.Sprintf("Semgrep scan timed out after %s", humanDuration(s.timeout))
	case err != nil:
		return fmt.Sprintf("Error running local Semgrep scan: %s", errors.MessageOf(err))
	case result.IsSuccess():
		return "Semgrep scan completed successfully:\n" + result.Stdout
	default:
		return fmt.Sprintf("Semgrep scan completed with warnings/errors:\nSTDOUT: %s\nSTDERR: %s", result.Stdout, result.Stderr)
	}
}

// BuildArgs assembles the semgrep argument list
func BuildArgs(path string, rulesets []string) []string {
	args := []string{"--json", "--quiet"}
	for _, ruleset := range rulesets {
		args = append(args, "--config", ruleset)
	}
	return append(args, path)
}

// RecommendRulesets extends defaults with language and framework rulesets
// matching profile, without duplicates.
func RecommendRulesets(profile *types.ProjectLanguageProfile, defaults []string) []string {
	if len(defaults) == 0 {
		defaults = config.DefaultRulesets
	}

	rulesets := []string{}
	seen := make(map[string]bool)
	add := func(r string) {
		if r != "" && !seen[r] {
			seen[r] = true
			rulesets = append(rulesets, r)
		}
	}

	for _, r := range defaults {
		add(r)
	}
	if profile == nil {
		return rulesets
	}
	for _, lang := range profile.Languages {
		add(languageRulesets[lang.Name])
	}
	for _, label := range profile.Frameworks {
		name := label
		if i := strings.LastIndex(label, ": "); i >= 0 {
			name = label[i+2:]
		}
		add(frameworkRulesets[strings.ToLower(name)])
	}
	return rulesets
}

func humanDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}
