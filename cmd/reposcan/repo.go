package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/git"
	"github.com/fumiya-kume/reposcan/pkg/tools"
	"github.com/fumiya-kume/reposcan/pkg/ui"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <repository-url>",
	Short: "Clone a repository into the workspace",
	Long: `Clone a GitHub, GitLab or Bitbucket repository with a shallow single-branch
clone. Tokens come from --token, GH_TOKEN/GITHUB_TOKEN or GITLAB_TOKEN.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		toolArgs := tools.Args{"repo_url": args[0]}
		for _, name := range []string{"path", "branch", "token"} {
			value, err := cmd.Flags().GetString(name)
			if err != nil {
				return err
			}
			if value != "" {
				key := name
				if name == "path" {
					key = "local_path"
				}
				toolArgs[key] = value
			}
		}
		depth, err := cmd.Flags().GetInt("depth")
		if err != nil {
			return err
		}
		if depth > 0 {
			toolArgs["depth"] = depth
		}

		res, err := a.call(cmd.Context(), tools.CloneRepository, toolArgs)
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var info types.RepositoryInfo
			if err := decodeField(res, "repository", &info); err != nil {
				return "", err
			}
			return a.render.Repository(&info), nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Describe a local checkout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		res, err := a.call(cmd.Context(), tools.GetRepositoryInfo, tools.Args{"local_path": args[0]})
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var info types.RepositoryInfo
			if err := decodeField(res, "repository", &info); err != nil {
				return "", err
			}
			return a.render.Repository(&info), nil
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [path]",
	Short: "Remove local checkouts",
	Long:  "Remove a checkout, or with --all every checkout in the workspace directory.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			return err
		}

		var paths []string
		switch {
		case all:
			paths, err = git.NewRepositoryManagerFromConfig(a.cfg, nil).ListRepositories()
			if err != nil {
				return err
			}
		case len(args) == 1:
			paths = args
		default:
			return fmt.Errorf("a path or --all is required")
		}

		results := []tools.Result{}
		for _, path := range paths {
			res, err := a.call(cmd.Context(), tools.CleanupRepository, tools.Args{"local_path": path})
			if err != nil {
				return err
			}
			results = append(results, res)
			if !jsonOutput {
				fmt.Fprintln(a.out, a.render.Status(ui.StatusSuccess, "Removed "+path))
			}
		}

		if jsonOutput {
			return a.printJSON(results)
		}
		if len(paths) == 0 {
			fmt.Fprintln(a.out, a.render.Status(ui.StatusInfo, "No repositories in "+a.cfg.Workspace.Dir))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(cleanupCmd)

	cloneCmd.Flags().String("path", "", "target directory (default <workspace>/<repository>)")
	cloneCmd.Flags().String("branch", "", "branch to check out")
	cloneCmd.Flags().Int("depth", 0, "clone depth (default from configuration)")
	cloneCmd.Flags().String("token", "", "access token for private repositories")

	cleanupCmd.Flags().Bool("all", false, "remove every checkout in the workspace")
}
