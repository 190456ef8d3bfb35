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

package amitype

import (
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/version"
)

const (
	// AL2EOLDate is the Amazon Linux 2 end-of-life date.
	AL2EOLDate = "2024-11-26"
	// AL2LastK8sVersion is the last Kubernetes version for which AL2 GPU
	// AMIs are published.
	AL2LastK8sVersion = "1.32"
)

// Compatibility describes an AMI type's support status.
type Compatibility struct {
	AMIType            AMIType      `json:"amiType" yaml:"amiType"`
	Architecture       Architecture `json:"architecture" yaml:"architecture"`
	KubernetesVersions []string     `json:"kubernetesVersions" yaml:"kubernetesVersions"`
	IsDeprecated       bool         `json:"isDeprecated" yaml:"isDeprecated"`
	DeprecationDate    string       `json:"deprecationDate,omitempty" yaml:"deprecationDate,omitempty"`
	ReplacementAMIType AMIType      `json:"replacementAmiType,omitempty" yaml:"replacementAmiType,omitempty"`
}

// registry is the static compatibility matrix. Defined once at process
// start, never mutated.
var registry = map[AMIType]Compatibility{
	AL2023X8664NVIDIA: {
		AMIType:            AL2023X8664NVIDIA,
		Architecture:       ArchX8664,
		KubernetesVersions: []string{"1.28", "1.29", "1.30", "1.31", "1.32", "1.33"},
	},
	AL2X8664GPU: {
		AMIType:            AL2X8664GPU,
		Architecture:       ArchX8664,
		KubernetesVersions: []string{"1.28", "1.29", "1.30", "1.31", "1.32"},
		IsDeprecated:       true,
		DeprecationDate:    AL2EOLDate,
		ReplacementAMIType: AL2023X8664NVIDIA,
	},
	AL2023ARM64NVIDIA: {
		AMIType:            AL2023ARM64NVIDIA,
		Architecture:       ArchARM64,
		KubernetesVersions: []string{"1.28", "1.29", "1.30", "1.31", "1.32", "1.33"},
	},
}

// All returns every registered AMI type, AL2023 variants first.
func All() []AMIType {
	return []AMIType{AL2023X8664NVIDIA, AL2023ARM64NVIDIA, AL2X8664GPU}
}

// Parse validates an AMI type string against the registry.
func Parse(s string) (AMIType, error) {
	t := AMIType(s)
	if _, ok := registry[t]; !ok {
		return "", errors.New(errors.ErrCodeUnknownAMIType, "unknown AMI type: "+s)
	}
	return t, nil
}

// ForArchitecture returns the AMI types compatible with an architecture.
// AL2023 variants are listed before the deprecated AL2 variant; callers
// needing "the preferred match" take the first AL2023 entry.
func ForArchitecture(arch Architecture) ([]AMIType, error) {
	switch arch {
	case ArchARM64:
		return []AMIType{AL2023ARM64NVIDIA}, nil
	case ArchX8664:
		return []AMIType{AL2023X8664NVIDIA, AL2X8664GPU}, nil
	default:
		return nil, errors.New(errors.ErrCodeUnknownArchitecture,
			"unsupported architecture: "+string(arch))
	}
}

// GPUTypes returns all GPU-enabled AMI types; these are the column names
// the release-note parser recognizes.
func GPUTypes() []AMIType {
	var out []AMIType
	for _, t := range All() {
		if t.IsGPUEnabled() {
			out = append(out, t)
		}
	}
	return out
}

// Recommended returns the recommended AMI type for an architecture.
// The k8sVersion parameter is accepted for interface stability but the
// recommendation does not depend on it: AL2023 is always preferred since
// AL2 is deprecated.
func Recommended(arch Architecture, k8sVersion string) (AMIType, error) {
	switch arch {
	case ArchARM64:
		return AL2023ARM64NVIDIA, nil
	case ArchX8664:
		return AL2023X8664NVIDIA, nil
	default:
		return "", errors.New(errors.ErrCodeUnknownArchitecture,
			"unsupported architecture: "+string(arch))
	}
}

// IsDeprecated reports whether the AMI type is deprecated.
func IsDeprecated(t AMIType) (bool, error) {
	c, ok := registry[t]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownAMIType, "unknown AMI type: "+string(t))
	}
	return c.IsDeprecated, nil
}

// CompatibilityInfo returns the compatibility record for an AMI type.
func CompatibilityInfo(t AMIType) (Compatibility, error) {
	c, ok := registry[t]
	if !ok {
		return Compatibility{}, errors.New(errors.ErrCodeUnknownAMIType, "unknown AMI type: "+string(t))
	}
	return c, nil
}

// CompatibilityMatrix returns the full compatibility matrix keyed by AMI
// type string, for the parse command's matrix output.
func CompatibilityMatrix() map[string]Compatibility {
	out := make(map[string]Compatibility, len(registry))
	for t, c := range registry {
		out[t.String()] = c
	}
	return out
}

// IsAL2Supported reports whether AL2 GPU AMIs are still published for the
// given Kubernetes version. The comparison is numeric on (major, minor),
// so "1.9" is below the "1.32" cutoff and "1.33" is above it.
func IsAL2Supported(k8sVersion string) bool {
	v, err := version.Parse(k8sVersion)
	if err != nil {
		return false
	}
	return version.MustParse(AL2LastK8sVersion).EqualsOrNewer(v)
}
