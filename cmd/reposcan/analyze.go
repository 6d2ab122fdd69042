package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/analysis"
	"github.com/fumiya-kume/reposcan/pkg/tools"
	"github.com/fumiya-kume/reposcan/pkg/ui"
)

var profileCmd = &cobra.Command{
	Use:   "profile <path>",
	Short: "Identify the languages, frameworks and build tools of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		res, err := a.call(cmd.Context(), tools.IdentifyLanguage, tools.Args{"local_path": args[0]})
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var profile types.ProjectLanguageProfile
			if err := decodeField(res, "profile", &profile); err != nil {
				return "", err
			}
			return a.render.Profile(&profile), nil
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <path>",
	Short: "Assemble the project context handed to review agents",
	Long: `Profile a project, read its manifests and directory layout, and select the
files worth analyzing. With --output the context is also written as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		toolArgs := tools.Args{"local_path": args[0]}
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if output != "" {
			toolArgs["output_path"] = output
		}
		scope, err := cmd.Flags().GetString("scope")
		if err != nil {
			return err
		}
		if scope != "" {
			toolArgs["extra_config"] = map[string]interface{}{"scope": scope}
		}

		res, err := a.call(cmd.Context(), tools.PrepareProjectContext, toolArgs)
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var pctx types.ProjectDataContext
			if err := decodeField(res, "context", &pctx); err != nil {
				return "", err
			}
			text := a.render.Context(&pctx)
			if output != "" {
				text += "\n" + a.render.Status(ui.StatusSuccess, "Context written to "+output)
			}
			return text, nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Re-profile a project whenever its files change",
	Long: `Profile a project, then profile it again after every settled burst of file
changes until interrupted. With --json each profile is printed as one line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		debounce, err := cmd.Flags().GetDuration("debounce")
		if err != nil {
			return err
		}

		analyzer := analysis.NewAnalyzer(
			analysis.AnalyzerConfigFrom(a.cfg),
			analysis.NewProfileCache(analysis.DefaultProfileCacheExpiration, nil),
			nil,
		)
		watcher := analysis.NewTreeWatcher(analyzer, debounce, nil)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watcher.Watch(ctx, args[0], func(profile *types.ProjectLanguageProfile, err error) {
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), renderError(a.render, err))
				return
			}
			if jsonOutput {
				data, err := json.Marshal(profile)
				if err != nil {
					return
				}
				fmt.Fprintln(a.out, string(data))
				return
			}
			fmt.Fprintln(a.out, a.render.Profile(profile))
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(watchCmd)

	contextCmd.Flags().StringP("output", "o", "", "write the context as JSON to this file")
	contextCmd.Flags().String("scope", "", "analysis scope recorded in the context configuration")

	watchCmd.Flags().Duration("debounce", analysis.DefaultWatchDebounce, "quiet period before re-profiling")
}
