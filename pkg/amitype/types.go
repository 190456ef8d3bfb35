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
	"strings"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
)

// AMIType is an EKS-optimized AMI variant name, exactly as it appears in
// the EKS API and in the release-note table columns.
type AMIType string

const (
	// AL2023X8664NVIDIA is the Amazon Linux 2023 x86_64 NVIDIA AMI type.
	AL2023X8664NVIDIA AMIType = "AL2023_x86_64_NVIDIA"
	// AL2X8664GPU is the deprecated Amazon Linux 2 x86_64 GPU AMI type.
	AL2X8664GPU AMIType = "AL2_x86_64_GPU"
	// AL2023ARM64NVIDIA is the Amazon Linux 2023 ARM64 NVIDIA AMI type.
	AL2023ARM64NVIDIA AMIType = "AL2023_ARM_64_NVIDIA"
)

// String returns the AMI type's wire value.
func (t AMIType) String() string {
	return string(t)
}

// IsAL2023 reports whether the AMI type is AL2023-based.
func (t AMIType) IsAL2023() bool {
	return strings.Contains(string(t), "AL2023")
}

// IsGPUEnabled reports whether the AMI type ships GPU drivers.
func (t AMIType) IsGPUEnabled() bool {
	return strings.Contains(string(t), "NVIDIA") || strings.Contains(string(t), "GPU")
}

// Architecture returns the CPU architecture of the AMI type.
func (t AMIType) Architecture() Architecture {
	if strings.Contains(string(t), "ARM") {
		return ArchARM64
	}
	return ArchX8664
}

// Architecture is a supported CPU architecture.
type Architecture string

const (
	// ArchX8664 is the x86_64 (amd64) architecture.
	ArchX8664 Architecture = "x86_64"
	// ArchARM64 is the 64-bit ARM (Graviton) architecture.
	ArchARM64 Architecture = "arm64"
)

// String returns the architecture's normalized value.
func (a Architecture) String() string {
	return string(a)
}

// DisplayName returns a human-readable architecture name.
func (a Architecture) DisplayName() string {
	if a == ArchARM64 {
		return "ARM64"
	}
	return "x86_64"
}

// ParseArchitecture normalizes an architecture string, treating amd64 as an
// alias for x86_64. Unknown values return an UNKNOWN_ARCHITECTURE error,
// never a silent default: downstream logic branches on architecture.
func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "amd64":
		return ArchX8664, nil
	case "arm64":
		return ArchARM64, nil
	default:
		return "", errors.New(errors.ErrCodeUnknownArchitecture,
			"unsupported architecture: "+s+" (supported: x86_64, amd64, arm64)")
	}
}
