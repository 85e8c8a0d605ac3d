package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mirrorsmith/go-forktools/internal/errors"
	"github.com/mirrorsmith/go-forktools/internal/poll"
)

// GitHubTargets identifies where forks are created on GitHub.
type GitHubTargets struct {
	// TargetOrg is the organization forks are created under. Empty means the
	// authenticated user's account.
	TargetOrg string `yaml:"target_org,omitempty"`
	// TargetUser names the account owning the fork when the fork response
	// omits the full name and no organization is configured.
	TargetUser string `yaml:"target_user,omitempty"`
}

// GitLabTargets identifies where mirrors are imported on GitLab.
type GitLabTargets struct {
	TargetNamespace string `yaml:"target_namespace,omitempty"`
	Visibility      string `yaml:"visibility,omitempty"`
}

// ReleaseDefaults describe the release created on a fork that has none.
type ReleaseDefaults struct {
	Tag  string `yaml:"tag"`
	Name string `yaml:"name"`
	Body string `yaml:"body"`
}

// Duration wraps time.Duration so YAML values like "2s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PollConfig bounds the wait for an asynchronously created fork.
type PollConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Delay       Duration `yaml:"delay"`
}

// VerificationConfig controls response verification and summary signing.
type VerificationConfig struct {
	RequireMIMEType      bool     `yaml:"require_mime_type"`
	AllowedMIMETypes     []string `yaml:"allowed_mime_types,omitempty"`
	RequireHMACSignature bool     `yaml:"require_hmac_signature"`
}

// TargetsConfig is the top-level targets file loaded by the fork pipeline.
type TargetsConfig struct {
	GitHub       GitHubTargets      `yaml:"github"`
	GitLab       GitLabTargets      `yaml:"gitlab"`
	Release      ReleaseDefaults    `yaml:"release"`
	Poll         PollConfig         `yaml:"poll"`
	Verification VerificationConfig `yaml:"verification"`
}

// DefaultTargetsConfig returns a TargetsConfig with default values
func DefaultTargetsConfig() *TargetsConfig {
	return &TargetsConfig{
		Release: ReleaseDefaults{
			Tag:  "v0.0.1",
			Name: "Initial release",
			Body: "Auto-created release",
		},
		Poll: PollConfig{
			MaxAttempts: poll.DefaultMaxAttempts,
			Delay:       Duration(poll.DefaultDelay),
		},
		GitLab: GitLabTargets{
			Visibility: "public",
		},
	}
}

// LoadTargetsConfig loads a targets file from a YAML file. Environment
// variables referenced in the file are expanded before parsing.
func LoadTargetsConfig(path string) (*TargetsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("config", fmt.Errorf("failed to read targets file: %w", err))
	}

	expanded := os.ExpandEnv(string(data))

	config := DefaultTargetsConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, errors.New("config", fmt.Errorf("failed to parse targets file: %w", err))
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveTargetsConfig saves the configuration to a YAML file
func (c *TargetsConfig) SaveTargetsConfig(path string) error {
	if err := c.validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("config", fmt.Errorf("failed to marshal targets file: %w", err))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("config", fmt.Errorf("failed to write targets file: %w", err))
	}

	return nil
}

func (c *TargetsConfig) validate() error {
	if c.Poll.MaxAttempts < 1 {
		return errors.New("config", fmt.Errorf("poll max_attempts must be positive, got %d", c.Poll.MaxAttempts))
	}
	if c.Poll.Delay < 0 {
		return errors.New("config", fmt.Errorf("poll delay must be non-negative, got %s", c.Poll.Delay.Std()))
	}
	if c.Release.Tag == "" {
		c.Release.Tag = "v0.0.1"
	}
	switch c.GitLab.Visibility {
	case "", "public", "internal", "private":
	default:
		return errors.New("config", fmt.Errorf("invalid gitlab visibility: %s", c.GitLab.Visibility))
	}
	if c.Verification.RequireMIMEType && len(c.Verification.AllowedMIMETypes) == 0 {
		return errors.New("config", fmt.Errorf("require_mime_type is set but allowed_mime_types is empty"))
	}
	for i, m := range c.Verification.AllowedMIMETypes {
		c.Verification.AllowedMIMETypes[i] = strings.TrimSpace(m)
	}
	return nil
}

// ForkOwner returns the account that will own the fork: the configured
// organization if any, otherwise the configured user.
func (c *TargetsConfig) ForkOwner() string {
	if c.GitHub.TargetOrg != "" {
		return c.GitHub.TargetOrg
	}
	return c.GitHub.TargetUser
}
