package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/security"
	"github.com/fumiya-kume/reposcan/pkg/tools"
)

// prPathMarkers separate the repository part of a pull request link
var prPathMarkers = []string{"/-/merge_requests/", "/merge_requests/", "/pull/", "/pull-requests/", "/pullrequests/"}

// repoURLFromPRLink strips the pull request suffix from link
func repoURLFromPRLink(link string) string {
	for _, marker := range prPathMarkers {
		if i := strings.Index(link, marker); i > 0 {
			return link[:i]
		}
	}
	return link
}

var prCmd = &cobra.Command{
	Use:   "pr <repository-url|pr-link> [pr-id]",
	Short: "Show pull or merge request details",
	Long: `Fetch pull request metadata from GitHub or GitLab. A single pull request link
may be given instead of a repository URL and number. When the platform API is
unavailable a Git-only fallback record is shown.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		toolArgs := tools.Args{}
		if len(args) == 2 {
			toolArgs["repo_url"] = args[0]
			toolArgs["pr_id"] = args[1]
		} else {
			a.session.PRLink = args[0]
			a.session.RepoURL = repoURLFromPRLink(args[0])
		}
		token, err := cmd.Flags().GetString("token")
		if err != nil {
			return err
		}
		if token != "" {
			toolArgs["token"] = token
		}

		res, err := a.call(cmd.Context(), tools.GetPRDetails, toolArgs)
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var info types.PullRequestInfo
			if err := decodeField(res, "pull_request", &info); err != nil {
				return "", err
			}
			return a.render.PullRequest(&info), nil
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <repository-url|pr-link> [pr-number]",
	Short: "Compute a pull request diff from a local clone",
	Long: `Fetch the pull request head into a full clone of the repository and diff it
against its merge base. Works without platform API access.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		withPatch, err := cmd.Flags().GetBool("patch")
		if err != nil {
			return err
		}

		toolArgs := tools.Args{}
		if len(args) == 2 {
			toolArgs["repo_url"] = args[0]
			toolArgs["pr_number"] = args[1]
		} else {
			a.session.PRLink = args[0]
			a.session.RepoURL = repoURLFromPRLink(args[0])
		}

		res, err := a.call(cmd.Context(), tools.GetPRDiff, toolArgs)
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			var diff types.PRDiff
			if err := decodeField(res, "diff", &diff); err != nil {
				return "", err
			}
			return a.render.Diff(&diff, withPatch), nil
		})
	},
}

var patCmd = &cobra.Command{
	Use:   "pat",
	Short: "Check personal access tokens",
}

var patValidateCmd = &cobra.Command{
	Use:   "validate <platform> <token>",
	Short: "Check that a token has the format its platform issues",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		res, err := a.call(cmd.Context(), tools.ValidatePATFormat, tools.Args{"platform": args[0], "token": args[1]})
		if err != nil {
			return err
		}
		return a.emit(res, func() (string, error) {
			valid, _ := res["valid"].(bool)
			creationURL, _ := res["creation_url"].(string)
			return a.render.PATCheck(args[0], valid, creationURL), nil
		})
	},
}

var patURLCmd = &cobra.Command{
	Use:   "url <platform>",
	Short: "Print where to create a token for a platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), security.PATCreationURL(args[0]))
		return err
	},
}

func init() {
	rootCmd.AddCommand(prCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(patCmd)
	patCmd.AddCommand(patValidateCmd)
	patCmd.AddCommand(patURLCmd)

	prCmd.Flags().String("token", "", "access token for the platform API")
	diffCmd.Flags().Bool("patch", false, "print the unified diff")
}
