package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
	"github.com/fumiya-kume/reposcan/pkg/tools"
	"github.com/fumiya-kume/reposcan/pkg/ui"
)

// tokenEnv lists the variables checked for each platform's token
var tokenEnv = map[string][]string{
	"github": {"GH_TOKEN", "GITHUB_TOKEN"},
	"gitlab": {"GITLAB_TOKEN"},
}

// app is the per-invocation wiring shared by the commands
type app struct {
	cfg      *config.Config
	deps     tools.Dependencies
	registry *tools.Registry
	session  *tools.Session
	render   *ui.Renderer
	out      io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg := appConfig
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	deps, err := tools.NewDependencies(cfg, nil)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		deps:     deps,
		registry: tools.NewDefaultRegistry(deps, nil),
		session:  tools.NewSession(""),
		render:   ui.NewRenderer(cmd.OutOrStdout(), themeName),
		out:      cmd.OutOrStdout(),
	}
	a.storeEnvTokens(cmd.Context())
	return a, nil
}

// storeEnvTokens moves tokens found in the environment into the session vault
func (a *app) storeEnvTokens(ctx context.Context) {
	for platform, names := range tokenEnv {
		for _, name := range names {
			token := os.Getenv(name)
			if token == "" {
				continue
			}
			res := a.registry.Call(ctx, a.session, tools.StorePAT, tools.Args{"platform": platform, "token": token})
			if !res.OK() {
				logger.Warn("Ignoring %s: %s", name, res.Message())
			}
			break
		}
	}
}

// call runs a tool and turns a failed result into a toolError
func (a *app) call(ctx context.Context, name string, args tools.Args) (tools.Result, error) {
	res := a.registry.Call(ctx, a.session, name, args)
	if !res.OK() {
		if jsonOutput {
			_ = a.printJSON(res) //nolint:errcheck // the failure is reported either way
		}
		return res, &toolError{result: res}
	}
	return res, nil
}

// emit prints res as JSON or as the rendered human view
func (a *app) emit(res tools.Result, human func() (string, error)) error {
	if jsonOutput {
		return a.printJSON(res)
	}
	text, err := human()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, text)
	return err
}

func (a *app) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

// decodeField converts res[key] back into its typed form
func decodeField(res tools.Result, key string, target interface{}) error {
	data, err := json.Marshal(res[key])
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// toolError carries a failed tool result up to Execute
type toolError struct {
	result tools.Result
}

func (e *toolError) Error() string {
	return fmt.Sprintf("%s: %s", e.result.ErrorType(), e.result.Message())
}

func renderError(r *ui.Renderer, err error) string {
	var te *toolError
	if errors.As(err, &te) {
		suggestions, _ := te.result["suggestions"].([]string)
		return r.Failure(te.result.ErrorType(), te.result.Message(), suggestions)
	}
	return r.Error(err)
}
