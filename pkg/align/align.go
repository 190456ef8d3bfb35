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

// Package align selects an EKS AMI release and NVIDIA driver version that
// match each other, either starting from the AMI side (latest release for a
// cluster's Kubernetes version) or from the container side (a desired
// driver version).
package align

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/nvrepo"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/resolver"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/version"
)

// ClusterVersionGetter supplies a cluster's Kubernetes version when the
// caller does not pass one explicitly. Implemented by eksapi.Client.
type ClusterVersionGetter interface {
	ClusterVersion(ctx context.Context, clusterName string) (string, error)
}

// PackageFinder cross-checks a driver version against the NVIDIA package
// repository. Implemented by nvrepo.Client.
type PackageFinder interface {
	FindDebURLs(ctx context.Context, rawDriverVersion string, arch amitype.Architecture) (*nvrepo.Result, error)
}

// Result is a completed alignment: one AMI release paired with the driver
// packages that match it.
type Result struct {
	Strategy          string               `json:"strategy" yaml:"strategy"`
	K8sVersion        string               `json:"k8sVersion" yaml:"k8sVersion"`
	ReleaseTag        string               `json:"releaseTag" yaml:"releaseTag"`
	ReleaseDate       string               `json:"releaseDate,omitempty" yaml:"releaseDate,omitempty"`
	AMIReleaseVersion string               `json:"amiReleaseVersion" yaml:"amiReleaseVersion"`
	AMIType           amitype.AMIType      `json:"amiType" yaml:"amiType"`
	Architecture      amitype.Architecture `json:"architecture" yaml:"architecture"`
	DriverVersion     string               `json:"driverVersion" yaml:"driverVersion"`
	DriverMissing     bool                 `json:"driverMissing,omitempty" yaml:"driverMissing,omitempty"`
	DeprecatedAMI     bool                 `json:"deprecatedAmi,omitempty" yaml:"deprecatedAmi,omitempty"`
	Packages          *nvrepo.Result       `json:"packages,omitempty" yaml:"packages,omitempty"`
	Warnings          []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Ambiguous is the refusal state of the container-first strategy: a partial
// driver version matched several releases and the caller must choose.
type Ambiguous struct {
	SearchTerm string           `json:"searchTerm" yaml:"searchTerm"`
	Candidates []resolver.Match `json:"candidates" yaml:"candidates"`

	// SuggestedVersions are exact versions extracted from the candidates,
	// suitable for re-running the query unambiguously.
	SuggestedVersions []string `json:"suggestedVersions" yaml:"suggestedVersions"`
}

// Aligner runs the two alignment strategies.
type Aligner struct {
	resolver *resolver.Resolver
	packages PackageFinder
	clusters ClusterVersionGetter
	log      *slog.Logger
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithClusterSource enables Kubernetes version auto-detection from a
// cluster name.
func WithClusterSource(c ClusterVersionGetter) Option {
	return func(a *Aligner) {
		a.clusters = c
	}
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Aligner) {
		a.log = log
	}
}

// New creates an Aligner over a resolver and a package repository.
func New(r *resolver.Resolver, packages PackageFinder, opts ...Option) *Aligner {
	a := &Aligner{
		resolver: r,
		packages: packages,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AMIFirstOptions drive AlignAMIFirst. Exactly one of K8sVersion and
// ClusterName must be set.
type AMIFirstOptions struct {
	K8sVersion   string
	ClusterName  string
	Architecture amitype.Architecture
}

// AlignAMIFirst resolves the latest AMI release for the Kubernetes version
// and looks up the container packages matching its driver. It succeeds
// whenever a release documents the Kubernetes version; a release without
// driver data is reported with DriverMissing set and no package lookup.
func (a *Aligner) AlignAMIFirst(ctx context.Context, opts AMIFirstOptions) (*Result, error) {
	arch := opts.Architecture
	if arch == "" {
		arch = amitype.ArchX8664
	}

	k8sVersion := opts.K8sVersion
	if k8sVersion == "" {
		if opts.ClusterName == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"either a Kubernetes version or a cluster name is required")
		}
		if a.clusters == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"cluster version lookup is not configured")
		}
		v, err := a.clusters.ClusterVersion(ctx, opts.ClusterName)
		if err != nil {
			return nil, err
		}
		k8sVersion = v
		a.log.Info("detected cluster version", "cluster", opts.ClusterName, "k8sVersion", k8sVersion)
	}

	at, err := amitype.Recommended(arch, k8sVersion)
	if err != nil {
		return nil, err
	}

	m, err := a.resolver.FindLatestDriverVersion(ctx, k8sVersion, at)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.NewWithContext(errors.ErrCodeNotFound,
			"no AMI release documents this Kubernetes version",
			map[string]any{"k8sVersion": k8sVersion, "amiType": at.String()})
	}

	res := &Result{
		Strategy:          "ami-first",
		K8sVersion:        k8sVersion,
		ReleaseTag:        m.ReleaseTag,
		ReleaseDate:       m.ReleaseDate,
		AMIReleaseVersion: strings.TrimPrefix(m.ReleaseTag, "v"),
		AMIType:           at,
		Architecture:      arch,
		DriverVersion:     m.DriverVersion,
	}

	if m.DriverVersion == resolver.DriverNotFound {
		res.DriverMissing = true
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("release %s documents Kubernetes %s but carries no driver package entry", m.ReleaseTag, k8sVersion))
		return res, nil
	}

	pkgs, err := a.packages.FindDebURLs(ctx, m.DriverVersion, arch)
	if err != nil {
		return nil, err
	}
	res.Packages = pkgs
	if !pkgs.Complete() {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("driver packages missing from the NVIDIA repository: %s", strings.Join(pkgs.Missing, ", ")))
	}
	return res, nil
}

// ContainerFirstOptions drive AlignContainerFirst.
type ContainerFirstOptions struct {
	// K8sVersion, when set, restricts the search and gates deprecated AL2
	// candidates out for versions past the AL2 cutoff.
	K8sVersion   string
	Architecture amitype.Architecture
}

// AlignContainerFirst finds AMI releases bundling a driver matching the
// search term and selects one. A partial search term that matches several
// releases yields an Ambiguous result instead of a selection; exact version
// terms and single matches proceed, preferring AL2023 over deprecated AL2.
func (a *Aligner) AlignContainerFirst(ctx context.Context, searchTerm string, opts ContainerFirstOptions) (*Result, *Ambiguous, error) {
	if searchTerm == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "driver version search term is required")
	}

	arch := opts.Architecture
	if arch == "" {
		arch = amitype.ArchX8664
	}

	amiTypes, err := candidateTypes(arch, opts.K8sVersion)
	if err != nil {
		return nil, nil, err
	}

	matches, err := a.resolver.FindByDriverVersion(ctx, searchTerm, resolver.FindByOptions{
		Fuzzy:        true,
		K8sVersion:   opts.K8sVersion,
		AMITypes:     amiTypes,
		Architecture: arch,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		return nil, nil, errors.NewWithContext(errors.ErrCodeNotFound,
			"no AMI release bundles a matching driver version",
			map[string]any{"driverVersion": searchTerm, "architecture": arch.String()})
	}

	if !version.IsExactDriverVersion(searchTerm) && len(matches) > 1 {
		return nil, &Ambiguous{
			SearchTerm:        searchTerm,
			Candidates:        matches,
			SuggestedVersions: suggestVersions(matches),
		}, nil
	}

	selected := matches[0]
	for _, m := range matches {
		if m.AMIType.IsAL2023() {
			selected = m
			break
		}
	}

	if !selected.AMIType.IsAL2023() && opts.K8sVersion == "" && !amitype.IsAL2Supported(selected.K8sVersion) {
		return nil, nil, errors.NewWithContext(errors.ErrCodeNotFound,
			"driver only found in AL2 releases past the AL2 support cutoff",
			map[string]any{"driverVersion": searchTerm, "k8sVersion": selected.K8sVersion})
	}

	res := &Result{
		Strategy:          "container-first",
		K8sVersion:        selected.K8sVersion,
		ReleaseTag:        selected.ReleaseTag,
		ReleaseDate:       selected.ReleaseDate,
		AMIReleaseVersion: strings.TrimPrefix(selected.ReleaseTag, "v"),
		AMIType:           selected.AMIType,
		Architecture:      arch,
		DriverVersion:     selected.DriverVersion,
	}
	if deprecated, _ := amitype.IsDeprecated(selected.AMIType); deprecated {
		res.DeprecatedAMI = true
		res.Warnings = append(res.Warnings,
			"selected a deprecated AL2 AMI, consider migrating to AL2023")
	}

	pkgs, err := a.packages.FindDebURLs(ctx, selected.DriverVersion, arch)
	if err != nil {
		return nil, nil, err
	}
	res.Packages = pkgs
	if !pkgs.Complete() {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("driver packages missing from the NVIDIA repository: %s", strings.Join(pkgs.Missing, ", ")))
	}
	return res, nil, nil
}

// candidateTypes narrows the AMI type search set: ARM is AL2023-only, and
// Kubernetes versions past the AL2 cutoff exclude the deprecated type.
func candidateTypes(arch amitype.Architecture, k8sVersion string) ([]amitype.AMIType, error) {
	if arch == amitype.ArchARM64 {
		return []amitype.AMIType{amitype.AL2023ARM64NVIDIA}, nil
	}
	if arch != amitype.ArchX8664 {
		return nil, errors.NewWithContext(errors.ErrCodeUnknownArchitecture, "unknown architecture",
			map[string]any{"architecture": string(arch)})
	}
	if k8sVersion != "" && !amitype.IsAL2Supported(k8sVersion) {
		return []amitype.AMIType{amitype.AL2023X8664NVIDIA}, nil
	}
	return []amitype.AMIType{amitype.AL2023X8664NVIDIA, amitype.AL2X8664GPU}, nil
}

// suggestVersions extracts the distinct exact versions among the candidate
// matches, sorted, for the caller to retry with.
func suggestVersions(matches []resolver.Match) []string {
	seen := make(map[string]bool)
	for _, m := range matches {
		if base := version.ExtractDriverBase(m.DriverVersion); base != "" {
			seen[base] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	version.SortNumeric(out)
	return out
}
