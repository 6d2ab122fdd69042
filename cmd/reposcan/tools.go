package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and invoke the agent tools directly",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered tools and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		list := make([]tools.Tool, 0, len(a.registry.Names()))
		for _, name := range a.registry.Names() {
			tool, _ := a.registry.Get(name)
			list = append(list, tool)
		}
		if jsonOutput {
			return a.printJSON(list)
		}

		styles := a.render.Theme().Styles
		for _, tool := range list {
			fmt.Fprintf(a.out, "%s  %s\n", styles.Title.Render(tool.Name), tool.Description)
			for _, p := range tool.Parameters {
				name := p.Name
				if p.Required {
					name += "*"
				}
				fmt.Fprintf(a.out, "    %s %s %s\n", styles.Label.Render(name), styles.Code.Render(p.Type), styles.Muted.Render(p.Description))
			}
		}
		return nil
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a tool with JSON arguments and print its result",
	Example: `  reposcan tools call identify_language --args '{"local_path": "."}'
  reposcan tools call get_pr_diff --args '{"repo_url": "https://github.com/o/r", "pr_number": 7}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		raw, err := cmd.Flags().GetString("args")
		if err != nil {
			return err
		}

		toolArgs := tools.Args{}
		if strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &toolArgs); err != nil {
				return errors.NewError(errors.ErrorTypeInvalidInput).
					WithMessage("--args must be a JSON object").
					WithCause(err).
					Build()
			}
		}

		res := a.registry.Call(cmd.Context(), a.session, args[0], toolArgs)
		data, err := res.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(data))
		if !res.OK() {
			return &toolError{result: res}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)

	toolsCallCmd.Flags().String("args", "{}", "tool arguments as a JSON object")
}
