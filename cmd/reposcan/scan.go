package main

import (
	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/pkg/tools"
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Run the Semgrep security scan on a local checkout",
	Long: `Run semgrep over a checkout. Without --ruleset the project is profiled first
and rulesets are recommended for its languages. A missing semgrep binary or a
timeout is reported in the output rather than as a failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		rulesets, err := cmd.Flags().GetStringSlice("ruleset")
		if err != nil {
			return err
		}

		toolArgs := tools.Args{"local_path": args[0]}
		if len(rulesets) > 0 {
			toolArgs["rulesets"] = rulesets
		} else if _, err := a.call(cmd.Context(), tools.IdentifyLanguage, toolArgs); err != nil {
			return err
		}

		res, err := a.call(cmd.Context(), tools.RunSemgrepScan, toolArgs)
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var used []string
			if err := decodeField(res, "rulesets", &used); err != nil {
				return "", err
			}
			output, _ := res["output"].(string)
			return a.render.Scan(args[0], used, output), nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSlice("ruleset", nil, "semgrep ruleset, repeatable (default recommended from the profile)")
}
