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

// Package resolver answers driver-version queries over the EKS optimized
// AMI release history.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/parser"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/release"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/version"
)

// DriverNotFound is reported as the driver version when a release documents
// the requested Kubernetes version but its tables carry no driver package.
const DriverNotFound = "Not found"

// DefaultReleaseLimit bounds how many recent releases the find and search
// queries scan.
const DefaultReleaseLimit = 50

// DefaultListVersionsLimit bounds the release window unioned by
// ListAvailableK8sVersions, which needs recency more than depth.
const DefaultListVersionsLimit = 20

// Source supplies release records, newest first. Implemented by
// release.GitHubClient.
type Source interface {
	ListReleases(ctx context.Context, limit int) ([]release.Record, error)
	GetReleaseByTag(ctx context.Context, tag string) (*release.Record, error)
}

// Match is one resolved driver version: the release it came from, the
// Kubernetes version section, and the AMI type whose column carried it.
type Match struct {
	ReleaseTag    string          `json:"releaseTag" yaml:"releaseTag"`
	ReleaseDate   string          `json:"releaseDate" yaml:"releaseDate"`
	K8sVersion    string          `json:"k8sVersion" yaml:"k8sVersion"`
	DriverVersion string          `json:"driverVersion" yaml:"driverVersion"`
	AMIType       amitype.AMIType `json:"amiType" yaml:"amiType"`
}

// FindByOptions narrows a FindByDriverVersion query.
type FindByOptions struct {
	// Fuzzy selects case-insensitive substring matching. Exact mode is a
	// case-sensitive substring match.
	Fuzzy bool

	// K8sVersion, when set, restricts matches to that section.
	K8sVersion string

	// AMITypes, when empty, defaults to all types for Architecture.
	AMITypes []amitype.AMIType

	// Architecture picks the default AMI type set. Defaults to x86_64.
	Architecture amitype.Architecture

	// Limit bounds the release scan. Zero means DefaultReleaseLimit.
	Limit int
}

// Resolver runs queries against a release source. It holds no state between
// calls; every query re-fetches and re-parses the releases it needs.
type Resolver struct {
	source Source
	limit  int
	log    *slog.Logger

	// parseBody is swapped in tests to inject parse failures.
	parseBody func(string) (parser.K8sSections, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLimit bounds how many releases each query scans.
func WithLimit(limit int) Option {
	return func(r *Resolver) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// New creates a Resolver over the given release source.
func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		limit:     DefaultReleaseLimit,
		log:       slog.Default(),
		parseBody: parser.ParseReleaseBody,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindFirstDriverVersion returns the first release, in source order, whose
// notes carry a driver version for the Kubernetes version and AMI type. It
// keeps scanning past releases that document the Kubernetes version without
// driver data, and returns nil only when no release has it at all.
func (r *Resolver) FindFirstDriverVersion(ctx context.Context, k8sVersion string, at amitype.AMIType) (*Match, error) {
	timer := queryTimer("find_first")
	defer timer.ObserveDuration()

	records, err := r.source.ListReleases(ctx, r.limit)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		table, ok := r.sectionFor(rec, k8sVersion)
		if !ok {
			continue
		}
		if v, ok := table.DriverVersion(at); ok {
			return &Match{
				ReleaseTag:    rec.Tag,
				ReleaseDate:   rec.PublishedAt,
				K8sVersion:    k8sVersion,
				DriverVersion: v,
				AMIType:       at,
			}, nil
		}
	}
	return nil, nil
}

// FindLatestDriverVersion commits to the first release, in source order,
// that documents the Kubernetes version at all. When that release's tables
// lack the driver package the match carries DriverNotFound instead of
// scanning older releases. The commit-early behavior differs deliberately
// from FindFirstDriverVersion; both are pinned by tests.
func (r *Resolver) FindLatestDriverVersion(ctx context.Context, k8sVersion string, at amitype.AMIType) (*Match, error) {
	timer := queryTimer("find_latest")
	defer timer.ObserveDuration()

	records, err := r.source.ListReleases(ctx, r.limit)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		table, ok := r.sectionFor(rec, k8sVersion)
		if !ok {
			continue
		}
		v, ok := table.DriverVersion(at)
		if !ok {
			v = DriverNotFound
		}
		return &Match{
			ReleaseTag:    rec.Tag,
			ReleaseDate:   rec.PublishedAt,
			K8sVersion:    k8sVersion,
			DriverVersion: v,
			AMIType:       at,
		}, nil
	}
	return nil, nil
}

// FindByDriverVersion returns every release/section/AMI-type combination
// whose driver version contains the search term. Unlike the two lookups
// above it is exhaustive; result order follows release order, then section
// order, then AMI-type order.
func (r *Resolver) FindByDriverVersion(ctx context.Context, searchTerm string, opts FindByOptions) ([]Match, error) {
	timer := queryTimer("find_by_driver")
	defer timer.ObserveDuration()

	if searchTerm == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "driver version search term is required")
	}

	amiTypes := opts.AMITypes
	if len(amiTypes) == 0 {
		arch := opts.Architecture
		if arch == "" {
			arch = amitype.ArchX8664
		}
		var err error
		amiTypes, err = amitype.ForArchitecture(arch)
		if err != nil {
			return nil, err
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = r.limit
	}
	records, err := r.source.ListReleases(ctx, limit)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, rec := range records {
		sections, err := r.parse(rec)
		if err != nil {
			continue
		}
		for _, k8sVersion := range sortedSectionKeys(sections) {
			if opts.K8sVersion != "" && k8sVersion != opts.K8sVersion {
				continue
			}
			table := sections[k8sVersion]
			for _, at := range amiTypes {
				v, ok := table.DriverVersion(at)
				if !ok {
					continue
				}
				if !termMatches(searchTerm, v, opts.Fuzzy) {
					continue
				}
				matches = append(matches, Match{
					ReleaseTag:    rec.Tag,
					ReleaseDate:   rec.PublishedAt,
					K8sVersion:    k8sVersion,
					DriverVersion: v,
					AMIType:       at,
				})
			}
		}
	}
	return matches, nil
}

// ListAvailableK8sVersions unions the Kubernetes version sections found in
// up to limit recent releases, sorted numerically so "1.9" precedes "1.10".
func (r *Resolver) ListAvailableK8sVersions(ctx context.Context, limit int) ([]string, error) {
	timer := queryTimer("list_k8s_versions")
	defer timer.ObserveDuration()

	if limit <= 0 {
		limit = DefaultListVersionsLimit
	}
	records, err := r.source.ListReleases(ctx, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		sections, err := r.parse(rec)
		if err != nil {
			continue
		}
		for v := range sections {
			seen[v] = true
		}
	}

	versions := make([]string, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	version.SortNumeric(versions)
	return versions, nil
}

// InspectRelease parses a single release by tag and returns its sections.
// A nil record means the tag does not exist upstream.
func (r *Resolver) InspectRelease(ctx context.Context, tag string) (*release.Record, parser.K8sSections, error) {
	rec, err := r.source.GetReleaseByTag(ctx, tag)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, nil
	}
	sections, err := r.parseBody(rec.Body)
	if err != nil {
		return nil, nil, err
	}
	return rec, sections, nil
}

// sectionFor parses one release and returns its table for the Kubernetes
// version, swallowing per-release parse failures.
func (r *Resolver) sectionFor(rec release.Record, k8sVersion string) (parser.PackageTable, bool) {
	sections, err := r.parse(rec)
	if err != nil {
		return parser.PackageTable{}, false
	}
	table, ok := sections[k8sVersion]
	return table, ok
}

// parse wraps parseBody with skip-and-continue accounting: one unparseable
// body must not fail a query over the other releases.
func (r *Resolver) parse(rec release.Record) (parser.K8sSections, error) {
	start := time.Now()
	sections, err := r.parseBody(rec.Body)
	if err != nil {
		parseFailures.Inc()
		r.log.Warn("skipping release with unparseable body",
			"tag", rec.Tag,
			"error", err)
		return nil, err
	}
	parseDuration.Observe(time.Since(start).Seconds())
	return sections, nil
}

// sortedSectionKeys returns the section keys in numeric order so result
// ordering is deterministic within one release.
func sortedSectionKeys(sections parser.K8sSections) []string {
	keys := sections.Versions()
	version.SortNumeric(keys)
	return keys
}

func termMatches(term, value string, fuzzy bool) bool {
	if fuzzy {
		return strings.Contains(strings.ToLower(value), strings.ToLower(term))
	}
	return strings.Contains(value, term)
}
