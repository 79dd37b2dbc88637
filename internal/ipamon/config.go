package ipamon

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/y0ug/ipamon/internal/state"
	"github.com/y0ug/ipamon/internal/webserver"
)

// Config holds the daemon configuration, loaded once at startup from a TOML
// file.
type Config struct {
	// BaseURL is the root of the listing service; channels are served
	// under {base_url}/{channel}/.
	BaseURL string `toml:"base_url"`
	// RefreshSchedule is a standard five-field cron expression.
	RefreshSchedule string   `toml:"refresh_schedule"`
	Targets         []Target `toml:"targets"`

	State     state.Config     `toml:"state"`
	RateLimit RateLimitConfig  `toml:"rate_limit"`
	Webserver webserver.Config `toml:"webserver"`

	// NotifyURLs are optional Shoutrrr URLs for operator notices.
	NotifyURLs []string `toml:"notify_urls"`
}

// Target is one downstream recipient: a GitHub repository whose ipa-update
// workflow is triggered on changes.
type Target struct {
	GitHubRepo  string `toml:"github_repo"`
	GitHubToken string `toml:"github_token"`
}

// RateLimitConfig bounds outbound dispatch calls. Zero Rate disables
// limiting.
type RateLimitConfig struct {
	Rate  float64 `toml:"rate"` // requests per second
	Burst int     `toml:"burst"`
}

const defaultConfigPath = "config.toml"

// LoadConfig loads and validates the configuration. An empty path falls back
// to the CONFIG_PATH environment variable, then to config.toml in the
// working directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			path = envPath
		}
	}

	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if violations := config.Validate(); len(violations) > 0 {
		return nil, fmt.Errorf("invalid config %s:\n  - %s", path, strings.Join(violations, "\n  - "))
	}

	return &config, nil
}

var repoSlugRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+/[A-Za-z0-9._-]+$`)

// Validate checks the configuration and returns one violation message per
// problem found, empty when the configuration is usable.
func (c *Config) Validate() []string {
	var violations []string

	switch {
	case c.BaseURL == "":
		violations = append(violations, "base_url is required")
	case !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://"):
		violations = append(violations, "base_url must be an http(s) URL")
	}

	if c.RefreshSchedule == "" {
		violations = append(violations, "refresh_schedule is required")
	} else if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		violations = append(violations, fmt.Sprintf("refresh_schedule is not a valid cron expression: %v", err))
	}

	if len(c.Targets) == 0 {
		violations = append(violations, "at least one target is required")
	}
	for i, target := range c.Targets {
		if target.GitHubRepo == "" {
			violations = append(violations, fmt.Sprintf("targets[%d]: github_repo is required", i))
		} else if !repoSlugRegex.MatchString(target.GitHubRepo) {
			violations = append(violations, fmt.Sprintf("targets[%d]: github_repo must be in owner/repo form", i))
		}
		if target.GitHubToken == "" {
			violations = append(violations, fmt.Sprintf("targets[%d]: github_token is required", i))
		}
	}

	switch c.State.Type {
	case "", "file", "bolt":
	case "redis":
		if c.State.RedisAddr == "" {
			violations = append(violations, "state.redis_addr is required for the redis backend")
		}
	default:
		violations = append(violations, fmt.Sprintf("state.type %q is not one of file, bolt, redis", c.State.Type))
	}

	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		violations = append(violations, "rate_limit.burst must be positive when rate_limit.rate is set")
	}

	return violations
}
