// Package gitlab implements the GitLab API operations used to mirror a
// repository into a GitLab namespace via import-by-URL. GitLab has no SDK in
// use here; the v4 REST surface needed is small enough to call directly.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gerrors "github.com/mirrorsmith/go-forktools/internal/errors"
	"github.com/mirrorsmith/go-forktools/internal/token"
)

const (
	apiBaseURL = "https://gitlab.com/api/v4"
	userAgent  = "go-forktools/1.0"
)

// Client handles GitLab API operations
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string // Allow custom base URL for testing
}

// Project is the subset of a GitLab project the mirror pipeline reads.
type Project struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	ImportStatus      string `json:"import_status"`
}

// ImportOptions describe a repository import into GitLab.
type ImportOptions struct {
	// Path is the project path (normally the source repository name).
	Path string
	// ImportURL is the public clone URL to import from.
	ImportURL string
	// Namespace is the target namespace; empty means the token owner's space.
	Namespace string
	// Visibility is public, internal, or private. Defaults to public.
	Visibility string
}

// Option configures a Client before it validates its token.
type Option func(*Client)

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(raw, "/")
	}
}

// NewClient creates a new GitLab API client with token validation
func NewClient(ctx context.Context, t *token.Token, opts ...Option) (*Client, error) {
	if !token.IsValid(*t) {
		return nil, token.ErrTokenInvalid
	}
	if token.IsExpired(*t) {
		return nil, token.ErrTokenExpired
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      t.Value,
		baseURL:    apiBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}

	if err := client.validateToken(ctx); err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	return client, nil
}

// validateToken makes a test API call to verify the token
func (c *Client) validateToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/user", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ImportProject starts an import of the repository at opts.ImportURL into
// GitLab. A conflict means the project already exists; in that case the
// existing project is looked up and returned.
func (c *Client) ImportProject(ctx context.Context, opts ImportOptions) (*Project, error) {
	if opts.Path == "" || opts.ImportURL == "" {
		return nil, fmt.Errorf("import requires a project path and import URL")
	}

	visibility := opts.Visibility
	if visibility == "" {
		visibility = "public"
	}

	form := url.Values{}
	form.Set("path", opts.Path)
	form.Set("name", opts.Path)
	form.Set("import_url", opts.ImportURL)
	form.Set("visibility", visibility)
	if opts.Namespace != "" {
		form.Set("namespace", opts.Namespace)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/projects", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.send(req)
	if err != nil {
		if gerrors.IsConflict(err) {
			// Project exists from a previous run; return it instead.
			return c.GetProject(ctx, qualifiedPath(opts.Namespace, opts.Path))
		}
		return nil, err
	}
	defer resp.Body.Close()

	var project Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return &project, nil
}

// GetProject fetches a project by its namespace-qualified path.
func (c *Client) GetProject(ctx context.Context, path string) (*Project, error) {
	encoded := url.PathEscape(path)
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/projects/"+encoded, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var project Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	return &project, nil
}

// send sends an HTTP request with the necessary headers
func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = resp.Status
		}
		return nil, gerrors.NewRemoteHTTPError("GitLab API", resp.StatusCode, message, nil)
	}

	return resp, nil
}

// qualifiedPath joins a namespace and project path the way GitLab addresses
// projects.
func qualifiedPath(namespace, path string) string {
	if namespace == "" {
		return path
	}
	return namespace + "/" + path
}

// ImportURLFor builds the public clone URL for a GitHub-hosted source
// repository in owner/repo form.
func ImportURLFor(source string) string {
	return fmt.Sprintf("https://github.com/%s.git", source)
}
