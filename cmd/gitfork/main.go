package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	gerrors "github.com/mirrorsmith/go-forktools/internal/errors"
)

// Exit codes, matching the behavior automation depends on:
// 3 means no GitHub token was available, 4 means a GitHub stage failed.
const (
	exitUsage        = 1
	exitMissingToken = 3
	exitGithubFailed = 4
)

var logger zerolog.Logger

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitfork",
		Short: "Fork, release, and mirror repositories across hosting platforms",
		Long: `A CLI tool that forks a GitHub repository, waits for the asynchronously
created fork to become visible, ensures a release exists on it, and
optionally mirrors the repository into a GitLab namespace. Run summaries
can be signed with a keyed hash for downstream verification.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; environment variables win either way.
			if err := godotenv.Load(); err != nil {
				logger.Debug().Msg("no .env file found, using environment variables")
			}
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newRunCmd(),
		newVerifyCmd(),
		newVersionCmd(),
	)

	return cmd
}

func main() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps pipeline errors to the documented process exit codes.
func exitCodeFor(err error) int {
	if errors.Is(err, errMissingGithubToken) {
		return exitMissingToken
	}
	var opErr *gerrors.OperationError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "fork", "wait", "release":
			return exitGithubFailed
		}
	}
	return exitUsage
}
