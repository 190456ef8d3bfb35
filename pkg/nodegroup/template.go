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

// Package nodegroup builds EKS managed-nodegroup configurations, in the
// JSON shape consumed by "aws eks create-nodegroup --cli-input-json".
package nodegroup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/align"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
)

// DefaultTemplateFile is the filename probed by Discover.
const DefaultTemplateFile = "nodegroup_template.json"

// ScalingConfig mirrors the EKS nodegroup scaling block.
type ScalingConfig struct {
	MinSize     int `json:"minSize" yaml:"minSize"`
	MaxSize     int `json:"maxSize" yaml:"maxSize"`
	DesiredSize int `json:"desiredSize" yaml:"desiredSize"`
}

// Taint mirrors the EKS nodegroup taint block.
type Taint struct {
	Key    string `json:"key" yaml:"key"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
	Effect string `json:"effect" yaml:"effect"`
}

// Template is a nodegroup configuration. Field names follow the AWS CLI
// input JSON so a rendered template can be fed to create-nodegroup
// directly.
type Template struct {
	ClusterName    string            `json:"clusterName" yaml:"clusterName"`
	NodegroupName  string            `json:"nodegroupName" yaml:"nodegroupName"`
	NodeRole       string            `json:"nodeRole" yaml:"nodeRole"`
	Subnets        []string          `json:"subnets" yaml:"subnets"`
	InstanceTypes  []string          `json:"instanceTypes,omitempty" yaml:"instanceTypes,omitempty"`
	AMIType        string            `json:"amiType,omitempty" yaml:"amiType,omitempty"`
	Version        string            `json:"version,omitempty" yaml:"version,omitempty"`
	ReleaseVersion string            `json:"releaseVersion,omitempty" yaml:"releaseVersion,omitempty"`
	CapacityType   string            `json:"capacityType,omitempty" yaml:"capacityType,omitempty"`
	DiskSize       int               `json:"diskSize,omitempty" yaml:"diskSize,omitempty"`
	ScalingConfig  *ScalingConfig    `json:"scalingConfig,omitempty" yaml:"scalingConfig,omitempty"`
	UpdateConfig   map[string]int    `json:"updateConfig,omitempty" yaml:"updateConfig,omitempty"`
	RemoteAccess   map[string]any    `json:"remoteAccess,omitempty" yaml:"remoteAccess,omitempty"`
	Labels         map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Taints         []Taint           `json:"taints,omitempty" yaml:"taints,omitempty"`
	Tags           map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// defaultGPUInstances returns the default instance type per architecture.
func defaultGPUInstances(arch amitype.Architecture) []string {
	if arch == amitype.ArchARM64 {
		return []string{"g5g.xlarge"}
	}
	return []string{"g4dn.xlarge"}
}

// architectureLabels returns the node labels stamped on GPU nodegroups.
func architectureLabels(arch amitype.Architecture) map[string]string {
	labelArch := "amd64"
	if arch == amitype.ArchARM64 {
		labelArch = "arm64"
	}
	return map[string]string{
		"kubernetes.io/arch": labelArch,
		"node-type":          "gpu-worker",
		"nvidia.com/gpu":     "true",
	}
}

// Default builds a sample template for the architecture, with placeholder
// account-specific values the operator fills in.
func Default(clusterName string, arch amitype.Architecture) (*Template, error) {
	at, err := amitype.Recommended(arch, "")
	if err != nil {
		return nil, err
	}
	if clusterName == "" {
		clusterName = "YOUR-CLUSTER-NAME"
	}

	return &Template{
		ClusterName:   clusterName,
		NodegroupName: fmt.Sprintf("gpu-workers-%s", arch),
		NodeRole:      "arn:aws:iam::YOUR_ACCOUNT_ID:role/EKSNodeInstanceRole",
		Subnets:       []string{"subnet-YOUR_SUBNET_1", "subnet-YOUR_SUBNET_2"},
		InstanceTypes: defaultGPUInstances(arch),
		AMIType:       at.String(),
		CapacityType:  "ON_DEMAND",
		DiskSize:      50,
		ScalingConfig: &ScalingConfig{MinSize: 0, MaxSize: 10, DesiredSize: 1},
		UpdateConfig:  map[string]int{"maxUnavailable": 1},
		Labels:        architectureLabels(arch),
		Tags: map[string]string{
			"Architecture": arch.String(),
			"ManagedBy":    "eksnv",
		},
	}, nil
}

// Load reads a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidInput, "reading template file", err,
			map[string]any{"path": path})
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidInput, "decoding template JSON", err,
			map[string]any{"path": path})
	}
	return &t, nil
}

// Discover looks for the default template file in the given directory, then
// its "templates" subdirectory. An empty path means no template was found,
// which is not an error.
func Discover(dir string) string {
	if dir == "" {
		dir = "."
	}
	for _, candidate := range []string{
		filepath.Join(dir, DefaultTemplateFile),
		filepath.Join(dir, "templates", DefaultTemplateFile),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Merge overlays non-zero fields of overrides onto t, returning a new
// template. Label, tag, and update-config maps merge key-wise rather than
// replacing wholesale.
func (t *Template) Merge(overrides *Template) *Template {
	out := *t
	if overrides == nil {
		return &out
	}

	if overrides.ClusterName != "" {
		out.ClusterName = overrides.ClusterName
	}
	if overrides.NodegroupName != "" {
		out.NodegroupName = overrides.NodegroupName
	}
	if overrides.NodeRole != "" {
		out.NodeRole = overrides.NodeRole
	}
	if len(overrides.Subnets) > 0 {
		out.Subnets = overrides.Subnets
	}
	if len(overrides.InstanceTypes) > 0 {
		out.InstanceTypes = overrides.InstanceTypes
	}
	if overrides.AMIType != "" {
		out.AMIType = overrides.AMIType
	}
	if overrides.Version != "" {
		out.Version = overrides.Version
	}
	if overrides.ReleaseVersion != "" {
		out.ReleaseVersion = overrides.ReleaseVersion
	}
	if overrides.CapacityType != "" {
		out.CapacityType = overrides.CapacityType
	}
	if overrides.DiskSize != 0 {
		out.DiskSize = overrides.DiskSize
	}
	if overrides.ScalingConfig != nil {
		out.ScalingConfig = overrides.ScalingConfig
	}
	if len(overrides.Taints) > 0 {
		out.Taints = overrides.Taints
	}
	if overrides.RemoteAccess != nil {
		out.RemoteAccess = overrides.RemoteAccess
	}
	out.Labels = mergeMaps(t.Labels, overrides.Labels)
	out.Tags = mergeMaps(t.Tags, overrides.Tags)
	out.UpdateConfig = mergeMaps(t.UpdateConfig, overrides.UpdateConfig)
	return &out
}

func mergeMaps[V any](base, overrides map[string]V) map[string]V {
	if base == nil && overrides == nil {
		return nil
	}
	out := make(map[string]V, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// ApplyAlignment stamps an alignment result's AMI selection onto the
// template: AMI type, Kubernetes version, and the pinned release version in
// EKS "<k8s version>-<release date>" form.
func (t *Template) ApplyAlignment(res *align.Result) *Template {
	out := *t
	out.AMIType = res.AMIType.String()
	out.Version = res.K8sVersion
	out.ReleaseVersion = fmt.Sprintf("%s-%s", res.K8sVersion, res.AMIReleaseVersion)
	return &out
}

// Validate reports structural problems. An empty slice means the template
// can be submitted.
func (t *Template) Validate() []string {
	var issues []string
	if t.ClusterName == "" {
		issues = append(issues, "clusterName is required")
	}
	if t.NodegroupName == "" {
		issues = append(issues, "nodegroupName is required")
	}
	if t.NodeRole == "" {
		issues = append(issues, "nodeRole is required")
	}
	if len(t.Subnets) == 0 {
		issues = append(issues, "at least one subnet is required")
	}
	if t.NodegroupName != "" && !nodegroupNameRE.MatchString(t.NodegroupName) {
		issues = append(issues, fmt.Sprintf("invalid nodegroupName %q (alphanumerics, hyphens, underscores, max 63 chars)", t.NodegroupName))
	}
	if t.NodeRole != "" && !strings.HasPrefix(t.NodeRole, "arn:aws:iam::") {
		issues = append(issues, "nodeRole should be an IAM role ARN (arn:aws:iam::ACCOUNT:role/ROLE)")
	}
	for _, subnet := range t.Subnets {
		if !strings.HasPrefix(subnet, "subnet-") {
			issues = append(issues, fmt.Sprintf("invalid subnet %q (should start with subnet-)", subnet))
		}
	}
	if t.CapacityType != "" && t.CapacityType != "ON_DEMAND" && t.CapacityType != "SPOT" {
		issues = append(issues, "capacityType must be ON_DEMAND or SPOT")
	}
	for _, it := range t.InstanceTypes {
		if !strings.Contains(it, ".") {
			issues = append(issues, fmt.Sprintf("invalid instance type %q", it))
		}
	}
	if t.AMIType != "" {
		if _, err := amitype.Parse(t.AMIType); err != nil {
			issues = append(issues, fmt.Sprintf("unknown amiType %q", t.AMIType))
		}
	}
	if sc := t.ScalingConfig; sc != nil {
		if sc.MinSize < 0 {
			issues = append(issues, "scalingConfig.minSize cannot be negative")
		}
		if sc.MaxSize < 1 {
			issues = append(issues, "scalingConfig.maxSize must be at least 1")
		}
		if sc.MinSize > sc.MaxSize {
			issues = append(issues, "scalingConfig.minSize exceeds maxSize")
		}
		if sc.DesiredSize < sc.MinSize || sc.DesiredSize > sc.MaxSize {
			issues = append(issues, "scalingConfig.desiredSize is outside [minSize, maxSize]")
		}
	}
	if t.UpdateConfig != nil {
		_, unavail := t.UpdateConfig["maxUnavailable"]
		_, pct := t.UpdateConfig["maxUnavailablePercentage"]
		if unavail && pct {
			issues = append(issues, "updateConfig cannot set both maxUnavailable and maxUnavailablePercentage")
		}
	}
	return issues
}

var nodegroupNameRE = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z_-]{0,62}$`)

// Write renders the template as indented JSON to a file.
func (t *Template) Write(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "encoding template", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.WrapWithContext(errors.ErrCodeInternal, "writing template file", err,
			map[string]any{"path": path})
	}
	return nil
}
