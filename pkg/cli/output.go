/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"fmt"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/eksapi"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/resolver"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/serializers"
)

// matchList renders resolver matches one row per match.
type matchList []resolver.Match

func (m matchList) TableHeader() []string {
	return []string{"RELEASE", "DATE", "K8S", "AMI TYPE", "DRIVER"}
}

func (m matchList) TableRows() [][]string {
	rows := make([][]string, 0, len(m))
	for _, match := range m {
		rows = append(rows, []string{
			match.ReleaseTag,
			match.ReleaseDate,
			match.K8sVersion,
			match.AMIType.String(),
			match.DriverVersion,
		})
	}
	return rows
}

var _ serializers.Tabular = (matchList)(nil)

// nodegroupList renders nodegroup summaries one row per nodegroup.
type nodegroupList []eksapi.NodegroupInfo

func (n nodegroupList) TableHeader() []string {
	return []string{"NODEGROUP", "STATUS", "AMI TYPE", "K8S", "RELEASE", "ARCH"}
}

func (n nodegroupList) TableRows() [][]string {
	rows := make([][]string, 0, len(n))
	for _, ng := range n {
		rows = append(rows, []string{
			ng.NodegroupName,
			ng.Status,
			ng.AMIType,
			ng.Version,
			ng.ReleaseVersion,
			ng.Architecture().String(),
		})
	}
	return rows
}

var _ serializers.Tabular = (nodegroupList)(nil)

// parseFormat validates the --format flag value.
func parseFormat() (serializers.Format, error) {
	f := serializers.Format(format)
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", format)
	}
	return f, nil
}

// newWriter writes to --output, or stdout when unset.
func newWriter(f serializers.Format) *serializers.Writer {
	return serializers.NewFileWriterOrStdout(f, output)
}
