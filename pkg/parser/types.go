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

package parser

import (
	"sort"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
)

// DriverPackage is the kernel module package whose version string carries the
// NVIDIA driver version bundled in an AMI.
const DriverPackage = "kmod-nvidia-latest-dkms"

// PackageTable holds the package versions extracted for one Kubernetes
// version of one release. Two key conventions coexist in release notes:
// per-AMI-type columns (current releases) and a bare package name (releases
// published before the tables grew per-AMI-type columns). Both are kept so
// lookups can fall back explicitly instead of probing string keys.
type PackageTable struct {
	// ByAMIType maps package name -> AMI type -> version string.
	ByAMIType map[string]map[amitype.AMIType]string `json:"byAmiType,omitempty" yaml:"byAmiType,omitempty"`

	// Legacy maps package name -> version string for packages recorded
	// without an AMI type suffix.
	Legacy map[string]string `json:"legacy,omitempty" yaml:"legacy,omitempty"`
}

// NewPackageTable returns an empty table ready for inserts.
func NewPackageTable() PackageTable {
	return PackageTable{
		ByAMIType: make(map[string]map[amitype.AMIType]string),
		Legacy:    make(map[string]string),
	}
}

// IsEmpty reports whether the table holds no entries at all.
func (t PackageTable) IsEmpty() bool {
	return len(t.ByAMIType) == 0 && len(t.Legacy) == 0
}

// set records a package version for an AMI type, additionally writing the
// legacy entry for the driver package.
func (t PackageTable) set(pkg string, at amitype.AMIType, version string) {
	m, ok := t.ByAMIType[pkg]
	if !ok {
		m = make(map[amitype.AMIType]string)
		t.ByAMIType[pkg] = m
	}
	m[at] = version
	if pkg == DriverPackage {
		t.Legacy[pkg] = version
	}
}

// merge copies all entries of other into t, overwriting on collision.
func (t PackageTable) merge(other PackageTable) {
	for pkg, byType := range other.ByAMIType {
		for at, v := range byType {
			m, ok := t.ByAMIType[pkg]
			if !ok {
				m = make(map[amitype.AMIType]string)
				t.ByAMIType[pkg] = m
			}
			m[at] = v
		}
	}
	for pkg, v := range other.Legacy {
		t.Legacy[pkg] = v
	}
}

// Version returns the version of pkg for the given AMI type, falling back to
// the legacy unsuffixed entry when no per-AMI-type value exists.
func (t PackageTable) Version(pkg string, at amitype.AMIType) (string, bool) {
	if byType, ok := t.ByAMIType[pkg]; ok {
		if v, ok := byType[at]; ok {
			return v, true
		}
	}
	v, ok := t.Legacy[pkg]
	return v, ok
}

// DriverVersion returns the NVIDIA driver version for the given AMI type.
func (t PackageTable) DriverVersion(at amitype.AMIType) (string, bool) {
	return t.Version(DriverPackage, at)
}

// Flatten renders the table in its traditional string-keyed form, with
// per-AMI-type entries under "<package>_<AMI type>" and legacy entries under
// the bare package name. Used for inspection output.
func (t PackageTable) Flatten() map[string]string {
	out := make(map[string]string, len(t.Legacy)+len(t.ByAMIType))
	for pkg, byType := range t.ByAMIType {
		for at, v := range byType {
			out[pkg+"_"+at.String()] = v
		}
	}
	for pkg, v := range t.Legacy {
		out[pkg] = v
	}
	return out
}

// Packages returns the sorted set of package names present in the table.
func (t PackageTable) Packages() []string {
	seen := make(map[string]bool, len(t.ByAMIType)+len(t.Legacy))
	for pkg := range t.ByAMIType {
		seen[pkg] = true
	}
	for pkg := range t.Legacy {
		seen[pkg] = true
	}
	names := make([]string, 0, len(seen))
	for pkg := range seen {
		names = append(names, pkg)
	}
	sort.Strings(names)
	return names
}

// K8sSections maps a Kubernetes minor version string ("1.32") to the package
// table extracted from that version's section of a release body.
type K8sSections map[string]PackageTable

// Versions returns the section keys in map order.
func (s K8sSections) Versions() []string {
	versions := make([]string, 0, len(s))
	for v := range s {
		versions = append(versions, v)
	}
	return versions
}
