// Package github wraps the GitHub REST API operations used by the fork
// pipeline: creating forks, checking fork visibility, and ensuring releases.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"

	"github.com/mirrorsmith/go-forktools/internal/config"
	gerrors "github.com/mirrorsmith/go-forktools/internal/errors"
	"github.com/mirrorsmith/go-forktools/internal/poll"
	"github.com/mirrorsmith/go-forktools/internal/token"
)

// Client handles GitHub API operations for the fork pipeline
type Client struct {
	gh       *gh.Client
	verify   config.VerificationConfig
	username string // Cached username after validation
}

// Option configures a Client before it validates its token.
type Option func(*Client) error

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		c.gh.BaseURL = parsed
		return nil
	}
}

// NewClient creates a new GitHub API client with token validation. The
// token is exchanged for an oauth2 transport and verified with a call to
// the authenticated-user endpoint before the client is returned.
func NewClient(ctx context.Context, t *token.Token, verify config.VerificationConfig, opts ...Option) (*Client, error) {
	if !token.IsValid(*t) {
		return nil, token.ErrTokenInvalid
	}
	if token.IsExpired(*t) {
		return nil, token.ErrTokenExpired
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: t.Value})
	httpClient := oauth2.NewClient(ctx, tokenSource)

	client := &Client{
		gh:     gh.NewClient(httpClient),
		verify: verify,
	}
	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	// Validate the token and cache the username during client creation
	user, resp, err := client.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", classify("GetUser", resp, err))
	}
	client.username = user.GetLogin()

	return client, nil
}

// GetUsername returns the cached username
func (c *Client) GetUsername() string {
	return c.username
}

// CreateFork requests a fork of source (owner/repo), optionally into org.
// GitHub creates forks asynchronously and answers 202; go-github surfaces
// that as an AcceptedError, which this method treats as success. The returned
// handle is the fork's full name, derived from fallbackOwner and the source
// repository name when the response body omits it.
func (c *Client) CreateFork(ctx context.Context, source, org, fallbackOwner string) (string, error) {
	owner, repo, err := ParseRepo(source)
	if err != nil {
		return "", err
	}

	var opts *gh.RepositoryCreateForkOptions
	if org != "" {
		opts = &gh.RepositoryCreateForkOptions{Organization: org}
	}

	fork, resp, err := c.gh.Repositories.CreateFork(ctx, owner, repo, opts)
	if err != nil {
		// 202 means the fork is being created in the background.
		var accepted *gh.AcceptedError
		if !errors.As(err, &accepted) {
			return "", classify("CreateFork", resp, err)
		}
	}

	if err := c.verifyResponse(resp); err != nil {
		return "", err
	}

	if fork != nil && fork.GetFullName() != "" {
		return fork.GetFullName(), nil
	}
	return DeriveForkHandle(fallbackOwner, repo)
}

// RepoExists performs one existence check for the repository named by
// handle. A 404 means the repository is not visible yet; any other API
// failure is permanent.
func (c *Client) RepoExists(ctx context.Context, handle string) (poll.Outcome, error) {
	owner, repo, err := ParseRepo(handle)
	if err != nil {
		return poll.NotReady, err
	}

	_, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return poll.NotReady, nil
		}
		return poll.NotReady, classify("GetRepository", resp, err)
	}

	if err := c.verifyResponse(resp); err != nil {
		return poll.NotReady, err
	}
	return poll.Ready, nil
}

// ExistenceCheck returns a poll.CheckFunc bound to this client, suitable for
// handing to a poll.Waiter.
func (c *Client) ExistenceCheck() poll.CheckFunc {
	return func(ctx context.Context, handle string) (poll.Outcome, error) {
		return c.RepoExists(ctx, handle)
	}
}

// EnsureRelease returns the URL of the newest release on the repository
// named by handle, creating one from the configured defaults when the
// repository has none.
func (c *Client) EnsureRelease(ctx context.Context, handle string, rel config.ReleaseDefaults) (string, error) {
	owner, repo, err := ParseRepo(handle)
	if err != nil {
		return "", err
	}

	releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, &gh.ListOptions{PerPage: 1})
	if err != nil {
		return "", classify("ListReleases", resp, err)
	}
	if err := c.verifyResponse(resp); err != nil {
		return "", err
	}
	if len(releases) > 0 {
		return releases[0].GetHTMLURL(), nil
	}

	release := &gh.RepositoryRelease{
		TagName:    gh.Ptr(rel.Tag),
		Name:       gh.Ptr(rel.Name),
		Body:       gh.Ptr(rel.Body),
		Draft:      gh.Ptr(false),
		Prerelease: gh.Ptr(false),
	}
	created, resp, err := c.gh.Repositories.CreateRelease(ctx, owner, repo, release)
	if err != nil {
		return "", classify("CreateRelease", resp, err)
	}
	if err := c.verifyResponse(resp); err != nil {
		return "", err
	}
	return created.GetHTMLURL(), nil
}

// verifyResponse enforces the configured MIME allow-list on an API response.
func (c *Client) verifyResponse(resp *gh.Response) error {
	if !c.verify.RequireMIMEType || resp == nil {
		return nil
	}

	ctype := resp.Header.Get("Content-Type")
	ctype = strings.TrimSpace(strings.SplitN(ctype, ";", 2)[0])
	for _, allowed := range c.verify.AllowedMIMETypes {
		if ctype == allowed {
			return nil
		}
	}
	return gerrors.NewRemoteError("VerifyResponse", fmt.Sprintf("unexpected MIME type: %s", ctype), nil)
}

// classify maps a go-github error into a RemoteError carrying the HTTP
// status for permanence checks.
func classify(op string, resp *gh.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return gerrors.NewRemoteHTTPError(op, status, "GitHub API error", err)
}

// ParseRepo parses an owner/repo string into separate owner and repo parts
func ParseRepo(repoString string) (owner, repo string, err error) {
	parts := strings.Split(repoString, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s (expected owner/repo)", repoString)
	}
	return parts[0], parts[1], nil
}

// ValidateRepoFormat checks that repoString is a well-formed owner/repo pair
func ValidateRepoFormat(repoString string) error {
	_, _, err := ParseRepo(repoString)
	return err
}

// DeriveForkHandle constructs a fork handle from the owning account and the
// source repository name, for fork responses that omit the full name.
func DeriveForkHandle(owner, repo string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("cannot derive fork handle: no fork owner known")
	}
	return fmt.Sprintf("%s/%s", owner, repo), nil
}
