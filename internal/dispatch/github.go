package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIBaseURL = "https://api.github.com"

// GitHubClient implements the Dispatcher interface via the GitHub
// repository_dispatch API.
type GitHubClient struct {
	Repo        string
	Token       string
	APIBaseURL  string
	Client      *http.Client
	RateLimiter *RateLimiter
}

// NewGitHubClient initializes a GitHubClient for one target repository.
func NewGitHubClient(repo, token string) *GitHubClient {
	return &GitHubClient{
		Repo:       repo,
		Token:      token,
		APIBaseURL: defaultAPIBaseURL,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SetRateLimiter sets the rate limiter for the client.
func (g *GitHubClient) SetRateLimiter(limiter *RateLimiter) {
	g.RateLimiter = limiter
}

// TargetID returns the repository slug.
func (g *GitHubClient) TargetID() string {
	return g.Repo
}

// dispatchPayload is the repository_dispatch request body consumed by the
// downstream update workflows.
type dispatchPayload struct {
	EventType     string        `json:"event_type"`
	ClientPayload clientPayload `json:"client_payload"`
}

type clientPayload struct {
	IPAURL       string `json:"ipa_url"`
	IsTestflight bool   `json:"is_testflight"`
}

// Dispatch triggers the target's ipa-update workflow. GitHub acknowledges a
// repository_dispatch with 204; any other status is a failure and the error
// carries the response detail for the logs.
func (g *GitHubClient) Dispatch(ctx context.Context, notif Notification) error {
	if g.RateLimiter != nil {
		if err := g.RateLimiter.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}
	}

	payload := dispatchPayload{
		EventType: "ipa-update",
		ClientPayload: clientPayload{
			IPAURL:       notif.IPAURL,
			IsTestflight: notif.IsTestflight,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/dispatches", g.APIBaseURL, g.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.Token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("dispatch returned status %d: %s", resp.StatusCode, string(detail))
	}

	return nil
}
