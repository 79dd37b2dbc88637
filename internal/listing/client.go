package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fetches channel listings from the remote listing service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient initializes a new listing Client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch retrieves the current listing for a channel. It returns both the
// parsed items and the raw response body; the fingerprint is computed over
// the raw payload so that passthrough fields the core does not interpret
// still count towards content identity.
func (c *Client) Fetch(ctx context.Context, channel string) ([]Item, []byte, error) {
	url := fmt.Sprintf("%s/%s/", c.BaseURL, channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("listing request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, nil, fmt.Errorf("failed to parse listing response: %w", err)
	}

	return items, body, nil
}
