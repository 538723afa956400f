// Package github is the client for the upstream code-hosting REST API.
// It is the only place besides the installer's artifact downloads that
// talks to the network.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobvm/bob/pkg/errors"
)

const (
	defaultBaseURL = "https://api.github.com"
	userAgent      = "bob"
	acceptHeader   = "application/vnd.github.v3+json"

	// Repo is the upstream editor repository.
	Repo = "neovim/neovim"
)

// Release is the upstream registry's view of a release.
// bob.json files are this structure serialized verbatim.
type Release struct {
	TagName         string    `json:"tag_name"`
	TargetCommitish string    `json:"target_commitish,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
}

// Commit is a single entry from the commit-range listing.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
	} `json:"commit"`
}

// HTTPClient is the minimal client surface, injectable for tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the upstream v3 REST API. Unauthenticated; rate
// limits apply and are surfaced with remediation guidance.
type Client struct {
	baseURL    string
	httpClient HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom API base (tests, proxies).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient creates an upstream API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Releases fetches the most recent releases, newest first.
func (c *Client) Releases(ctx context.Context, perPage int) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", c.baseURL, Repo, perPage)
	var releases []Release
	if err := c.getJSON(ctx, url, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// ReleaseByTag fetches a single release by its tag name.
func (c *Client) ReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/tags/%s", c.baseURL, Repo, tag)
	var release Release
	if err := c.getJSON(ctx, url, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// CommitsBetween lists commits in the (since, until] window, newest first.
func (c *Client) CommitsBetween(ctx context.Context, since, until time.Time) ([]Commit, error) {
	url := fmt.Sprintf("%s/repos/%s/commits?since=%s&until=%s&per_page=100",
		c.baseURL, Repo,
		since.UTC().Format(time.RFC3339),
		until.UTC().Format(time.RFC3339))
	var commits []Commit
	if err := c.getJSON(ctx, url, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// apiError is the upstream error body shape.
type apiError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot build API request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.ErrNetwork, "request to %s failed", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrNetwork, "cannot read API response")
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && strings.Contains(ae.DocumentationURL, "rate-limiting") {
			return errors.Newf(errors.ErrRateLimited,
				"upstream API rate limit exceeded: %s (wait a while or configure an authenticated github_mirror)", ae.Message)
		}
		return errors.Newf(errors.ErrNetwork, "upstream API returned %d for %s", resp.StatusCode, url)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrNetwork, "cannot decode API response")
	}
	return nil
}
