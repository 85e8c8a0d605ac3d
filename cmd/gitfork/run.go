package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mirrorsmith/go-forktools/internal/config"
	gerrors "github.com/mirrorsmith/go-forktools/internal/errors"
	"github.com/mirrorsmith/go-forktools/internal/github"
	"github.com/mirrorsmith/go-forktools/internal/gitlab"
	"github.com/mirrorsmith/go-forktools/internal/poll"
	"github.com/mirrorsmith/go-forktools/internal/progress"
	"github.com/mirrorsmith/go-forktools/internal/signature"
	"github.com/mirrorsmith/go-forktools/internal/token"
)

var errMissingGithubToken = errors.New("GitHub token not found. Set GIT_TOKEN_GITHUB or GITHUB_TOKEN")

type runOptions struct {
	source     string
	configPath string
	skipMirror bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fork a repository, ensure a release, and mirror it",
		Long: `Fork the source repository on GitHub, poll until the fork is visible,
ensure a release exists on it, and import the repository into GitLab when a
GitLab token is available. Prints a JSON summary; if HMAC_SECRET is set the
summary is signed and the signature printed alongside it.`,
		Example: `  gitfork run --source octocat/hello-world --config targets.yaml
  gitfork run --source octocat/hello-world --config targets.yaml --skip-mirror`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logger = logger.Level(zerolog.DebugLevel)
			} else {
				logger = logger.Level(zerolog.InfoLevel)
			}
			return runFork(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Repository to fork (owner/repo)")
	cmd.Flags().StringVar(&opts.configPath, "config", "targets.yaml", "Path to the targets file")
	cmd.Flags().BoolVar(&opts.skipMirror, "skip-mirror", false, "Skip the GitLab mirror stage")
	cmd.MarkFlagRequired("source")

	return cmd
}

func runFork(ctx context.Context, opts *runOptions) error {
	if err := github.ValidateRepoFormat(opts.source); err != nil {
		return fmt.Errorf("invalid source repository: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, err := config.LoadTargetsConfig(opts.configPath)
	if err != nil {
		return err
	}

	storage := token.NewEnvStorage()
	githubToken, err := token.Resolve(ctx, storage, token.ProviderGitHub)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			return errMissingGithubToken
		}
		return fmt.Errorf("failed to resolve GitHub token: %w", err)
	}
	if p := token.DetectProvider(githubToken.Value); p != "" && p != token.ProviderGitHub {
		logger.Warn().Str("detected", string(p)).Msg("GitHub token looks like a token for another provider")
	}

	tracker := progress.NewLogTracker(logger)

	ghClient, err := github.NewClient(ctx, &githubToken, cfg.Verification)
	if err != nil {
		err = gerrors.New("fork", fmt.Errorf("failed to create GitHub client: %w", err))
		hintRemoteFailure(err)
		return err
	}

	summary, err := forkAndRelease(ctx, ghClient, cfg, tracker, opts.source)
	if err != nil {
		hintRemoteFailure(err)
		return err
	}

	// The mirror stage is best-effort: a GitLab failure never fails the run.
	if !opts.skipMirror {
		if webURL, err := mirrorToGitlab(ctx, storage, cfg, tracker, opts.source); err != nil {
			logger.Error().Err(err).Msg("GitLab mirror failed, continuing")
		} else if webURL != "" {
			summary.Mirror = webURL
		}
	}

	return emitSummary(cfg, summary)
}

// hintRemoteFailure logs actionable context for well-known GitHub failures.
func hintRemoteFailure(err error) {
	switch {
	case errors.Is(err, gerrors.ErrBadCredentials):
		logger.Error().Msg("GitHub rejected the token, check GIT_TOKEN_GITHUB")
	case errors.Is(err, gerrors.ErrRateLimitExceeded):
		logger.Error().Msg("GitHub API rate limit exceeded, retry later")
	}
}

// githubForker is the slice of the GitHub client the pipeline needs.
type githubForker interface {
	GetUsername() string
	CreateFork(ctx context.Context, source, org, fallbackOwner string) (string, error)
	ExistenceCheck() poll.CheckFunc
	EnsureRelease(ctx context.Context, handle string, rel config.ReleaseDefaults) (string, error)
}

// forkAndRelease runs the GitHub half of the pipeline: create the fork, wait
// for it to become visible, and ensure it carries a release.
func forkAndRelease(ctx context.Context, client githubForker, cfg *config.TargetsConfig, tracker progress.Tracker, source string) (*signature.Summary, error) {
	fallbackOwner := cfg.ForkOwner()
	if fallbackOwner == "" {
		fallbackOwner = client.GetUsername()
	}

	tracker.StartStage("fork", source)
	handle, err := client.CreateFork(ctx, source, cfg.GitHub.TargetOrg, fallbackOwner)
	if err != nil {
		tracker.FailStage("fork", err)
		return nil, gerrors.New("fork", err)
	}
	tracker.CompleteStage("fork")

	tracker.StartStage("wait", handle)
	waiter, err := poll.New(cfg.Poll.MaxAttempts, cfg.Poll.Delay.Std(), poll.WithTracker(tracker))
	if err != nil {
		return nil, gerrors.New("wait", err)
	}
	if err := waiter.Wait(ctx, handle, client.ExistenceCheck()); err != nil {
		tracker.FailStage("wait", err)
		return nil, gerrors.New("wait", err)
	}
	tracker.CompleteStage("wait")

	tracker.StartStage("release", handle)
	releaseURL, err := client.EnsureRelease(ctx, handle, cfg.Release)
	if err != nil {
		tracker.FailStage("release", err)
		return nil, gerrors.New("release", err)
	}
	tracker.CompleteStage("release")

	summary := signature.NewSummary(source, handle)
	summary.Release = releaseURL
	return summary, nil
}

// mirrorToGitlab imports the source repository into the configured GitLab
// namespace. Returns an empty URL without error when no GitLab token is set.
func mirrorToGitlab(ctx context.Context, storage token.Storage, cfg *config.TargetsConfig, tracker progress.Tracker, source string) (string, error) {
	gitlabToken, err := token.Resolve(ctx, storage, token.ProviderGitLab)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			logger.Info().Msg("no GitLab token set, skipping mirror")
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve GitLab token: %w", err)
	}

	glClient, err := gitlab.NewClient(ctx, &gitlabToken)
	if err != nil {
		return "", fmt.Errorf("failed to create GitLab client: %w", err)
	}

	_, repo, err := github.ParseRepo(source)
	if err != nil {
		return "", err
	}

	tracker.StartStage("mirror", source)
	project, err := glClient.ImportProject(ctx, gitlab.ImportOptions{
		Path:       repo,
		ImportURL:  gitlab.ImportURLFor(source),
		Namespace:  cfg.GitLab.TargetNamespace,
		Visibility: cfg.GitLab.Visibility,
	})
	if err != nil {
		tracker.FailStage("mirror", err)
		return "", gerrors.New("mirror", err)
	}
	tracker.CompleteStage("mirror")

	return project.WebURL, nil
}

// emitSummary prints the run summary and, when a secret is available, its
// signature. A configured signing requirement with no secret is an error.
func emitSummary(cfg *config.TargetsConfig, summary *signature.Summary) error {
	secret := os.Getenv("HMAC_SECRET")
	if secret == "" {
		if cfg.Verification.RequireHMACSignature {
			return fmt.Errorf("require_hmac_signature is set but HMAC_SECRET is not")
		}
		payload, err := summary.Encode()
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	payload, sig, err := signature.SignSummary(secret, summary)
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	fmt.Printf("HMAC-SIGNATURE: %s\n", sig)
	return nil
}
