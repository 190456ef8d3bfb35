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

// Package nvrepo locates downloadable NVIDIA driver packages in the CUDA
// apt repository, cross-checking that an AMI's driver version is actually
// installable in containers.
package nvrepo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/version"
)

const (
	// DefaultBaseURL is the root of NVIDIA's CUDA package repositories.
	DefaultBaseURL = "https://developer.download.nvidia.com/compute/cuda/repos"

	// DefaultOSVersion selects which OS flavor of the repository to search,
	// in the upstream "{distro}{version}" form (ubuntu2204, debian12, ...).
	DefaultOSVersion = "ubuntu2204"

	defaultTimeout = 30 * time.Second
)

// driverPackages are the userspace libraries that must exist for a driver
// version to be usable inside containers.
var driverPackages = []string{
	"libnvidia-compute",
	"libnvidia-encode",
	"libnvidia-decode",
}

// Result is the outcome of one repository lookup.
type Result struct {
	// VersionBase is the major.minor.patch prefix extracted from the raw
	// AMI driver string.
	VersionBase string `json:"versionBase" yaml:"versionBase"`

	// FormattedVersion is "<major>_<deb version suffix>", the form used in
	// container build arguments (e.g. "570_570.133.20-0ubuntu1").
	FormattedVersion string `json:"formattedVersion" yaml:"formattedVersion"`

	// RepoURL is the repository index that was searched.
	RepoURL string `json:"repoUrl" yaml:"repoUrl"`

	// DebURLs holds one entry per driver package: a download URL when the
	// package was found, or a "# NOT FOUND: ..." marker when it was not.
	DebURLs []string `json:"debUrls" yaml:"debUrls"`

	// Missing lists the packages that produced NOT FOUND markers.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Complete reports whether every driver package was found.
func (r Result) Complete() bool {
	return len(r.Missing) == 0
}

// Client searches one OS flavor of the CUDA repository.
type Client struct {
	baseURL   string
	osVersion string
	client    *http.Client
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate repository root, used by
// tests and mirrors.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithOSVersion selects the repository flavor, e.g. "ubuntu2404" or
// "debian12".
func WithOSVersion(v string) Option {
	return func(c *Client) {
		c.osVersion = v
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a repository client for DefaultOSVersion.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		osVersion: DefaultOSVersion,
		client:    &http.Client{Timeout: defaultTimeout},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// repoPath maps an architecture to its repository directory. ARM packages
// live under the Server Base System Architecture path.
func repoPath(arch amitype.Architecture) string {
	if arch == amitype.ArchARM64 {
		return "sbsa"
	}
	return "x86_64"
}

// packageSuffix maps an architecture to the deb filename suffix.
func packageSuffix(arch amitype.Architecture) string {
	if arch == amitype.ArchARM64 {
		return "arm64"
	}
	return "amd64"
}

// FindDebURLs searches the repository index for the three driver packages
// matching the raw AMI driver version. A package missing from the index
// yields a NOT FOUND marker in the result rather than an error; only an
// unusable input version or an unreachable repository fails the call.
func (c *Client) FindDebURLs(ctx context.Context, rawDriverVersion string, arch amitype.Architecture) (*Result, error) {
	base := version.ExtractDriverBase(rawDriverVersion)
	if base == "" {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidInput,
			"could not extract a numeric driver version",
			map[string]any{"driverVersion": rawDriverVersion})
	}
	parts := strings.Split(base, ".")
	major := parts[0]
	if len(parts) < 3 {
		c.log.Warn("driver version has no patch component, deb matching may fail",
			"versionBase", base)
	}

	repoURL := fmt.Sprintf("%s/%s/%s/", c.baseURL, c.osVersion, repoPath(arch))
	index, err := c.fetchIndex(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	suffix := packageSuffix(arch)
	result := &Result{
		VersionBase: base,
		RepoURL:     repoURL,
	}
	var foundSuffix string

	for _, pkg := range driverPackages {
		exact := regexp.MustCompile(fmt.Sprintf(`%s-(\d+)_(%s[-\w]*)_%s\.deb`,
			pkg, regexp.QuoteMeta(base), suffix))
		if m := exact.FindStringSubmatch(index); m != nil {
			result.DebURLs = append(result.DebURLs, repoURL+m[0])
			foundSuffix = m[2]
			continue
		}

		// Fall back to a major.minor match when the patch level in the
		// release notes lags the repository.
		if len(parts) >= 2 {
			partial := regexp.MustCompile(fmt.Sprintf(`%s-(\d+)_(%s\.%s[\d.-]*[-\w]*)_%s\.deb`,
				pkg, regexp.QuoteMeta(parts[0]), regexp.QuoteMeta(parts[1]), suffix))
			if m := partial.FindStringSubmatch(index); m != nil {
				result.DebURLs = append(result.DebURLs, repoURL+m[0])
				foundSuffix = m[2]
				c.log.Debug("partial deb match", "package", pkg, "file", m[0])
				continue
			}
		}

		result.DebURLs = append(result.DebURLs, fmt.Sprintf("# NOT FOUND: %s-%s_%s_%s.deb", pkg, major, base, suffix))
		result.Missing = append(result.Missing, pkg)
	}

	if foundSuffix == "" {
		// Nothing matched at all; keep the marker list but synthesize the
		// formatted version from the release-note value.
		result.FormattedVersion = major + "_" + base
		c.log.Warn("no matching deb packages found",
			"versionBase", base,
			"architecture", arch.String(),
			"repo", repoURL)
		return result, nil
	}

	result.FormattedVersion = major + "_" + foundSuffix
	return result, nil
}

// PackageInfo is one deb package located by SearchPackages.
type PackageInfo struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version" yaml:"version"`
	Architecture string `json:"architecture" yaml:"architecture"`
	URL          string `json:"url" yaml:"url"`
}

// packageTypes maps the short search types to their deb package names.
var packageTypes = map[string]string{
	"compute": "libnvidia-compute",
	"encode":  "libnvidia-encode",
	"decode":  "libnvidia-decode",
}

// PackageTypes returns the supported short package type names.
func PackageTypes() []string {
	return []string{"compute", "encode", "decode"}
}

// SearchPackages lists every deb in the repository index matching the
// driver version. A bare major version ("570") matches any release of that
// major; a dotted version ("570.124.06") matches releases with that exact
// prefix. types narrows the search to a subset of PackageTypes; empty
// means all of them.
func (c *Client) SearchPackages(ctx context.Context, driverVersion string, arch amitype.Architecture, types []string) ([]PackageInfo, error) {
	if driverVersion == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "driver version is required")
	}
	if len(types) == 0 {
		types = PackageTypes()
	}
	var names []string
	for _, t := range types {
		name, ok := packageTypes[t]
		if !ok {
			return nil, errors.NewWithContext(errors.ErrCodeInvalidInput,
				"unknown package type",
				map[string]any{"packageType": t, "supported": PackageTypes()})
		}
		names = append(names, name)
	}

	repoURL := fmt.Sprintf("%s/%s/%s/", c.baseURL, c.osVersion, repoPath(arch))
	index, err := c.fetchIndex(ctx, repoURL)
	if err != nil {
		return nil, err
	}

	suffix := packageSuffix(arch)
	var packages []PackageInfo
	seen := make(map[string]bool)
	for _, name := range names {
		var re *regexp.Regexp
		major := driverVersion
		if strings.Contains(driverVersion, ".") {
			major = strings.SplitN(driverVersion, ".", 2)[0]
			re = regexp.MustCompile(fmt.Sprintf(`%s-%s_(%s-[0-9a-z.]+)_%s\.deb`,
				name, regexp.QuoteMeta(major), regexp.QuoteMeta(driverVersion), suffix))
		} else {
			re = regexp.MustCompile(fmt.Sprintf(`%s-%s_(\d+\.\d+\.\d+-[0-9a-z.]+)_%s\.deb`,
				name, regexp.QuoteMeta(major), suffix))
		}

		for _, m := range re.FindAllStringSubmatch(index, -1) {
			if seen[m[0]] {
				continue
			}
			seen[m[0]] = true
			packages = append(packages, PackageInfo{
				Name:         fmt.Sprintf("%s-%s", name, major),
				Version:      m[1],
				Architecture: suffix,
				URL:          repoURL + m[0],
			})
		}
	}

	c.log.Debug("searched repository",
		"driverVersion", driverVersion,
		"repo", repoURL,
		"found", len(packages))
	return packages, nil
}

// fetchIndex downloads the repository listing page, retrying transient
// failures.
func (c *Client) fetchIndex(ctx context.Context, url string) (string, error) {
	var page string

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("retryable status %d from %s", resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d from %s", resp.StatusCode, url))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		page = string(body)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", errors.Wrap(errors.ErrCodeFetchFailed, "fetching NVIDIA repository index", err)
	}
	return page, nil
}
