package tools

import (
	"context"
	"strconv"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/analysis"
	"github.com/fumiya-kume/reposcan/pkg/clock"
	"github.com/fumiya-kume/reposcan/pkg/config"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/git"
	"github.com/fumiya-kume/reposcan/pkg/logger"
	"github.com/fumiya-kume/reposcan/pkg/pr"
	"github.com/fumiya-kume/reposcan/pkg/scanner"
	"github.com/fumiya-kume/reposcan/pkg/security"
)

// Tool names
const (
	CloneRepository       = "clone_repository"
	GetRepositoryInfo     = "get_repository_info"
	CleanupRepository     = "cleanup_repository"
	IdentifyLanguage      = "identify_language"
	PrepareProjectContext = "prepare_project_context"
	GetPRDetails          = "get_pr_details"
	GetPRDiff             = "get_pr_diff"
	StorePAT              = "store_pat"
	ValidatePATFormat     = "validate_pat_format"
	RunSemgrepScan        = "run_semgrep_scan"
)

// Repositories is the acquisition surface the tools depend on
type Repositories interface {
	CloneRepository(ctx context.Context, repoURL string, opts git.CloneOptions) (*types.RepositoryInfo, error)
	GetRepositoryInfo(localPath string) (*types.RepositoryInfo, error)
	CleanupRepository(localPath string) bool
	GetPRDiff(ctx context.Context, repoURL string, prNumber int) *types.PRDiff
}

// Profiler builds language profiles
type Profiler interface {
	IdentifyLanguage(ctx context.Context, projectPath string) (*types.ProjectLanguageProfile, error)
}

// Assembler builds project contexts
type Assembler interface {
	PrepareProjectContext(ctx context.Context, repoInfo types.RepositoryInfo, profile types.ProjectLanguageProfile, extra map[string]interface{}) (*types.ProjectDataContext, error)
}

// PRDetailer resolves pull request details
type PRDetailer interface {
	GetPRDetails(ctx context.Context, repoURL, prID, token string) *types.PullRequestInfo
}

// CredentialStore holds personal access tokens
type CredentialStore interface {
	StorePAT(platform, username, token, sessionID string) (string, error)
	RetrievePAT(hash string) (string, bool)
}

// SecurityScanner runs the local static analysis fallback
type SecurityScanner interface {
	Run(ctx context.Context, path string, rulesets []string) string
}

// Dependencies wires the tools to their implementations
type Dependencies struct {
	Repositories    Repositories
	Profiler        Profiler
	Assembler       Assembler
	Differ          PRDetailer
	Vault           CredentialStore
	Scanner         SecurityScanner
	DefaultRulesets []string
}

// NewDependencies builds the production implementations from cfg
func NewDependencies(cfg *config.Config, log logger.LoggerInterface) (Dependencies, error) {
	vault, err := security.NewVault(clock.NewRealClock(), log)
	if err != nil {
		return Dependencies{}, err
	}
	analyzer := analysis.NewAnalyzer(
		analysis.AnalyzerConfigFrom(cfg),
		analysis.NewProfileCache(analysis.DefaultProfileCacheExpiration, nil),
		log,
	)
	return Dependencies{
		Repositories:    git.NewRepositoryManagerFromConfig(cfg, log),
		Profiler:        analyzer,
		Assembler:       analyzer,
		Differ:          pr.NewDifferFromConfig(cfg, log),
		Vault:           vault,
		Scanner:         scanner.NewFromConfig(cfg, log),
		DefaultRulesets: cfg.Scanner.DefaultRulesets,
	}, nil
}

// NewDefaultRegistry registers every built-in tool against deps
func NewDefaultRegistry(deps Dependencies, log logger.LoggerInterface) *Registry {
	r := NewRegistry(log)
	b := &builtins{deps: deps}
	for _, tool := range b.tools() {
		if err := r.Register(tool); err != nil {
			// names below are unique
			panic(err)
		}
	}
	return r
}

type builtins struct {
	deps Dependencies
}

func (b *builtins) tools() []Tool {
	return []Tool{
		{
			Name:        CloneRepository,
			Description: "Clone a GitHub, GitLab or Bitbucket repository into the workspace",
			Parameters: []Parameter{
				{Name: "repo_url", Type: "string", Description: "repository URL", Required: true},
				{Name: "local_path", Type: "string", Description: "target directory"},
				{Name: "branch", Type: "string", Description: "branch to check out"},
				{Name: "depth", Type: "integer", Description: "clone depth"},
				{Name: "token", Type: "string", Description: "access token for private repositories"},
			},
			Handler: b.cloneRepository,
		},
		{
			Name:        GetRepositoryInfo,
			Description: "Describe an existing local checkout",
			Parameters:  []Parameter{{Name: "local_path", Type: "string", Description: "checkout directory"}},
			Handler:     b.getRepositoryInfo,
		},
		{
			Name:        CleanupRepository,
			Description: "Remove a local checkout",
			Parameters:  []Parameter{{Name: "local_path", Type: "string", Description: "checkout directory"}},
			Handler:     b.cleanupRepository,
		},
		{
			Name:        IdentifyLanguage,
			Description: "Profile the languages, frameworks and build tooling of a source tree",
			Parameters:  []Parameter{{Name: "local_path", Type: "string", Description: "source tree"}},
			Handler:     b.identifyLanguage,
		},
		{
			Name:        PrepareProjectContext,
			Description: "Assemble the project context: metadata, directory structure and file list",
			Parameters: []Parameter{
				{Name: "local_path", Type: "string", Description: "source tree"},
				{Name: "repo_info", Type: "object", Description: "repository info, defaults to the session's"},
				{Name: "language_profile", Type: "object", Description: "language profile, computed when absent"},
				{Name: "extra_config", Type: "object", Description: "extra preparation settings"},
				{Name: "output_path", Type: "string", Description: "write the context as JSON here"},
			},
			Handler: b.prepareProjectContext,
		},
		{
			Name:        GetPRDetails,
			Description: "Fetch pull or merge request details from the hosting platform",
			Parameters: []Parameter{
				{Name: "repo_url", Type: "string", Description: "repository URL"},
				{Name: "pr_id", Type: "string", Description: "pull or merge request number"},
				{Name: "token", Type: "string", Description: "access token"},
			},
			Handler: b.getPRDetails,
		},
		{
			Name:        GetPRDiff,
			Description: "Compute a pull request diff locally from its pull ref",
			Parameters: []Parameter{
				{Name: "repo_url", Type: "string", Description: "repository URL"},
				{Name: "pr_number", Type: "integer", Description: "pull request number"},
			},
			Handler: b.getPRDiff,
		},
		{
			Name:        StorePAT,
			Description: "Encrypt a personal access token for this session",
			Parameters: []Parameter{
				{Name: "platform", Type: "string", Description: "github, gitlab or bitbucket", Required: true},
				{Name: "username", Type: "string", Description: "account name"},
				{Name: "token", Type: "string", Description: "personal access token", Required: true},
			},
			Handler: b.storePAT,
		},
		{
			Name:        ValidatePATFormat,
			Description: "Check a personal access token against the platform's format rules",
			Parameters: []Parameter{
				{Name: "platform", Type: "string", Description: "github, gitlab or bitbucket", Required: true},
				{Name: "token", Type: "string", Description: "personal access token", Required: true},
			},
			Handler: b.validatePATFormat,
		},
		{
			Name:        RunSemgrepScan,
			Description: "Run a local semgrep scan over a source tree",
			Parameters: []Parameter{
				{Name: "local_path", Type: "string", Description: "source tree"},
				{Name: "rulesets", Type: "array", Description: "semgrep rulesets, recommended from the profile when absent"},
			},
			Handler: b.runSemgrepScan,
		},
	}
}

func (b *builtins) localPath(session *Session, args Args) (string, error) {
	if path := args.String("local_path"); path != "" {
		return path, nil
	}
	if session.LocalPath != "" {
		return session.LocalPath, nil
	}
	return "", errors.InvalidInputError("local_path is required")
}

func (b *builtins) repoURL(session *Session, args Args) (string, error) {
	if url := args.String("repo_url"); url != "" {
		return url, nil
	}
	if session.RepoURL != "" {
		return session.RepoURL, nil
	}
	return "", errors.InvalidInputError("repo_url is required")
}

// prNumber reads name from args, falling back to the session's PR link
func (b *builtins) prNumber(session *Session, args Args, name string) (int, error) {
	n, ok, err := args.Int(name)
	if err != nil {
		return 0, err
	}
	if !ok && session.PRLink != "" {
		n, ok = git.ExtractPRNumber(session.PRLink)
	}
	if !ok {
		return 0, errors.InvalidInputError(name + " is required")
	}
	if n <= 0 {
		return 0, errors.InvalidInputError(name + " must be positive")
	}
	return n, nil
}

// token prefers an explicit argument, then a token stored in the vault
// for the repository's platform.
func (b *builtins) token(session *Session, args Args, repoURL string) string {
	if token := args.String("token"); token != "" {
		return token
	}
	if b.deps.Vault == nil {
		return ""
	}
	hash, ok := session.PATHash(git.DetectPlatform(repoURL))
	if !ok {
		return ""
	}
	token, _ := b.deps.Vault.RetrievePAT(hash)
	return token
}

func (b *builtins) cloneRepository(ctx context.Context, session *Session, args Args) (Result, error) {
	repoURL, err := args.required("repo_url")
	if err != nil {
		return nil, err
	}
	depth, _, err := args.Int("depth")
	if err != nil {
		return nil, err
	}

	info, err := b.deps.Repositories.CloneRepository(ctx, repoURL, git.CloneOptions{
		LocalPath: args.String("local_path"),
		Branch:    args.String("branch"),
		Depth:     depth,
		Token:     b.token(session, args, repoURL),
	})
	if err != nil {
		return nil, err
	}

	session.setRepository(repoURL, info)
	return repositoryResult(info)
}

func (b *builtins) getRepositoryInfo(_ context.Context, session *Session, args Args) (Result, error) {
	path, err := b.localPath(session, args)
	if err != nil {
		return nil, err
	}
	info, err := b.deps.Repositories.GetRepositoryInfo(path)
	if err != nil {
		return nil, err
	}
	return repositoryResult(info)
}

func repositoryResult(info *types.RepositoryInfo) (Result, error) {
	encoded, err := encode(info)
	if err != nil {
		return nil, err
	}
	return Result{"repository": encoded}, nil
}

func (b *builtins) cleanupRepository(_ context.Context, session *Session, args Args) (Result, error) {
	path, err := b.localPath(session, args)
	if err != nil {
		return nil, err
	}
	res := Result{"local_path": path}
	if !b.deps.Repositories.CleanupRepository(path) {
		return res, errors.NewError(errors.ErrorTypeFileSystem).
			WithMessagef("failed to remove %s", path).
			Build()
	}
	session.forget(path)
	res["cleaned"] = true
	return res, nil
}

func (b *builtins) identifyLanguage(ctx context.Context, session *Session, args Args) (Result, error) {
	path, err := b.localPath(session, args)
	if err != nil {
		return nil, err
	}
	profile, err := b.deps.Profiler.IdentifyLanguage(ctx, path)
	if err != nil {
		return nil, err
	}
	session.setProfile(path, profile)

	encoded, err := encode(profile)
	if err != nil {
		return nil, err
	}
	return Result{"profile": encoded}, nil
}

func (b *builtins) prepareProjectContext(ctx context.Context, session *Session, args Args) (Result, error) {
	var repoInfo types.RepositoryInfo
	found, err := args.Decode("repo_info", &repoInfo)
	if err != nil {
		return nil, err
	}
	if !found {
		switch {
		case args.String("local_path") != "":
			repoInfo = types.RepositoryInfo{URL: "unknown", LocalPath: args.String("local_path")}
			if info, err := b.deps.Repositories.GetRepositoryInfo(repoInfo.LocalPath); err == nil {
				repoInfo = *info
			}
		case session.Repository != nil:
			repoInfo = *session.Repository
		case session.LocalPath != "":
			repoInfo = types.RepositoryInfo{URL: "unknown", LocalPath: session.LocalPath}
		default:
			return nil, errors.InvalidInputError("repo_info or local_path is required")
		}
	}

	var profile types.ProjectLanguageProfile
	found, err = args.Decode("language_profile", &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		if session.Profile != nil && session.LocalPath == repoInfo.LocalPath {
			profile = *session.Profile
		} else {
			p, err := b.deps.Profiler.IdentifyLanguage(ctx, repoInfo.LocalPath)
			if err != nil {
				return nil, err
			}
			profile = *p
		}
	}

	pctx, err := b.deps.Assembler.PrepareProjectContext(ctx, repoInfo, profile, args.Map("extra_config"))
	if err != nil {
		return nil, err
	}

	res := Result{}
	if out := args.String("output_path"); out != "" {
		if err := pctx.SaveToFile(out); err != nil {
			return nil, err
		}
		res["output_path"] = out
	}

	encoded, err := encode(pctx)
	if err != nil {
		return nil, err
	}
	res["context"] = encoded
	return res, nil
}

func (b *builtins) getPRDetails(ctx context.Context, session *Session, args Args) (Result, error) {
	repoURL, err := b.repoURL(session, args)
	if err != nil {
		return nil, err
	}
	prID := args.String("pr_id")
	if prID == "" {
		n, err := b.prNumber(session, args, "pr_id")
		if err != nil {
			return nil, err
		}
		prID = strconv.Itoa(n)
	}

	info := b.deps.Differ.GetPRDetails(ctx, repoURL, prID, b.token(session, args, repoURL))
	encoded, err := encode(info)
	if err != nil {
		return nil, err
	}
	return Result{"pull_request": encoded}, nil
}

func (b *builtins) getPRDiff(ctx context.Context, session *Session, args Args) (Result, error) {
	repoURL, err := b.repoURL(session, args)
	if err != nil {
		return nil, err
	}
	n, err := b.prNumber(session, args, "pr_number")
	if err != nil {
		return nil, err
	}

	diff := b.deps.Repositories.GetPRDiff(ctx, repoURL, n)
	encoded, err := encode(diff)
	if err != nil {
		return nil, err
	}
	res := Result{"diff": encoded}
	if diff.Error != nil {
		return res, errors.NewError(errors.ErrorTypeRemoteOperation).
			WithMessage(*diff.Error).
			Build()
	}
	return res, nil
}

func (b *builtins) storePAT(_ context.Context, session *Session, args Args) (Result, error) {
	if b.deps.Vault == nil {
		return nil, errors.ConfigurationError("no credential vault configured")
	}
	platform, err := args.required("platform")
	if err != nil {
		return nil, err
	}

	hash, err := b.deps.Vault.StorePAT(platform, args.String("username"), args.String("token"), session.ID)
	if err != nil {
		return nil, err
	}
	session.rememberPAT(platform, hash)

	return Result{
		"platform":     platform,
		"token_hash":   hash,
		"format_valid": security.ValidatePATFormat(platform, args.String("token")),
	}, nil
}

func (b *builtins) validatePATFormat(_ context.Context, _ *Session, args Args) (Result, error) {
	platform, err := args.required("platform")
	if err != nil {
		return nil, err
	}
	return Result{
		"platform":     platform,
		"valid":        security.ValidatePATFormat(platform, args.String("token")),
		"creation_url": security.PATCreationURL(platform),
	}, nil
}

func (b *builtins) runSemgrepScan(ctx context.Context, session *Session, args Args) (Result, error) {
	path, err := b.localPath(session, args)
	if err != nil {
		return nil, err
	}

	rulesets := args.Strings("rulesets")
	if len(rulesets) == 0 {
		var profile *types.ProjectLanguageProfile
		if path == session.LocalPath {
			profile = session.Profile
		}
		rulesets = scanner.RecommendRulesets(profile, b.deps.DefaultRulesets)
	}

	return Result{
		"local_path": path,
		"rulesets":   rulesets,
		"output":     b.deps.Scanner.Run(ctx, path, rulesets),
	}, nil
}
