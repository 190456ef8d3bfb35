// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package release fetches release notes for the Amazon EKS optimized AMI
// from the GitHub releases API.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
)

const (
	// DefaultRepo is the upstream repository publishing EKS optimized AMI
	// release notes.
	DefaultRepo = "awslabs/amazon-eks-ami"

	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second

	// Unauthenticated GitHub API calls are limited to 60/hour; one request
	// per second keeps bursts of paging well under the secondary limits.
	requestsPerSecond = 1
	requestBurst      = 3

	maxRetryElapsed = 2 * time.Minute
)

// GitHubClient lists and retrieves releases for a single GitHub repository.
// The zero value is not usable; construct with NewGitHubClient.
type GitHubClient struct {
	repo    string
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// GitHubOption mutates client construction defaults.
type GitHubOption func(*GitHubClient)

// WithRepo overrides the owner/name repository the client reads.
func WithRepo(repo string) GitHubOption {
	return func(c *GitHubClient) {
		c.repo = repo
	}
}

// WithBaseURL points the client at an alternate API endpoint, used by tests
// and GitHub Enterprise deployments.
func WithBaseURL(u string) GitHubOption {
	return func(c *GitHubClient) {
		c.baseURL = u
	}
}

// WithToken sets a bearer token for authenticated requests.
func WithToken(token string) GitHubOption {
	return func(c *GitHubClient) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) GitHubOption {
	return func(c *GitHubClient) {
		c.client = hc
	}
}

// NewGitHubClient creates a release client for DefaultRepo. A GITHUB_TOKEN
// environment variable is picked up automatically when no explicit token
// option is given.
func NewGitHubClient(opts ...GitHubOption) *GitHubClient {
	c := &GitHubClient{
		repo:    DefaultRepo,
		baseURL: defaultBaseURL,
		token:   os.Getenv("GITHUB_TOKEN"),
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListReleases returns up to limit published releases, newest first. Draft
// and prerelease entries are filtered out, so fewer than limit records may
// come back even when the repository has more releases.
func (c *GitHubClient) ListReleases(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid release limit: %d", limit))
	}

	u := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", c.baseURL, c.repo, limit)
	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.NewWithContext(errors.ErrCodeFetchFailed,
			fmt.Sprintf("github API returned status %d", status),
			map[string]any{"repo": c.repo, "status": status})
	}

	var all []Record
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, "decoding releases response", err)
	}

	records := make([]Record, 0, len(all))
	for _, r := range all {
		if r.Draft || r.Prerelease {
			continue
		}
		records = append(records, r)
	}

	c.log.Debug("listed releases",
		"repo", c.repo,
		"requested", limit,
		"published", len(records))
	return records, nil
}

// GetReleaseByTag returns the release with the given tag, or (nil, nil) when
// the tag does not exist.
func (c *GitHubClient) GetReleaseByTag(ctx context.Context, tag string) (*Record, error) {
	if tag == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "release tag is required")
	}

	u := fmt.Sprintf("%s/repos/%s/releases/tags/%s", c.baseURL, c.repo, tag)
	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, errors.NewWithContext(errors.ErrCodeFetchFailed,
			fmt.Sprintf("github API returned status %d", status),
			map[string]any{"repo": c.repo, "tag": tag, "status": status})
	}

	var r Record
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, "decoding release response", err)
	}
	return &r, nil
}

// GetLatestRelease returns the newest published release, or (nil, nil) when
// the repository has none.
func (c *GitHubClient) GetLatestRelease(ctx context.Context) (*Record, error) {
	records, err := c.ListReleases(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// SearchByContent returns the releases among the newest limit whose body
// contains term, case-insensitively.
func (c *GitHubClient) SearchByContent(ctx context.Context, term string, limit int) ([]Record, error) {
	if term == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "search term is required")
	}

	records, err := c.ListReleases(ctx, limit)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	var matched []Record
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Body), needle) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// get performs a rate-limited GET with retry on transient failures. It
// returns the response body and status; 4xx statuses other than 429 are
// returned to the caller without retrying.
func (c *GitHubClient) get(ctx context.Context, url string) ([]byte, int, error) {
	var (
		payload []byte
		status  int
	)

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if status == http.StatusTooManyRequests || status >= 500 {
			return fmt.Errorf("retryable status %d from %s", status, url)
		}

		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, 0, errors.Wrap(errors.ErrCodeTimeout, "github request canceled", err)
		}
		return nil, 0, errors.Wrap(errors.ErrCodeFetchFailed, "github request failed", err)
	}
	return payload, status, nil
}
