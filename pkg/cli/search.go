/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/nvrepo"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/serializers"
)

var (
	searchDriverVersion string
	searchPackageType   string
	searchArchitecture  string
	searchOSVersion     string
)

// packageList renders repository packages one row per deb.
type packageList []nvrepo.PackageInfo

func (p packageList) TableHeader() []string {
	return []string{"PACKAGE", "VERSION", "ARCH", "URL"}
}

func (p packageList) TableRows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, pkg := range p {
		rows = append(rows, []string{pkg.Name, pkg.Version, pkg.Architecture, pkg.URL})
	}
	return rows
}

var _ serializers.Tabular = (packageList)(nil)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:     "search",
	GroupID: "functional",
	Short:   "Search the NVIDIA CUDA repository for driver packages",
	Long: `Search NVIDIA's CUDA apt repository for the driver userspace packages
(libnvidia-compute, libnvidia-encode, libnvidia-decode).

A bare major version (570) lists every release of that major; a dotted
version (570.124.06) narrows the listing to that exact release.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outFormat, err := parseFormat()
		if err != nil {
			return err
		}
		w := newWriter(outFormat)

		if searchDriverVersion == "" {
			return fmt.Errorf("--driver-version is required")
		}
		arch, err := amitype.ParseArchitecture(searchArchitecture)
		if err != nil {
			return err
		}
		var types []string
		if searchPackageType != "all" {
			types = []string{searchPackageType}
		}

		repo := nvrepo.NewClient(nvrepo.WithOSVersion(searchOSVersion))
		packages, err := repo.SearchPackages(cmd.Context(), searchDriverVersion, arch, types)
		if err != nil {
			return fmt.Errorf("error searching repository: %w", err)
		}
		if len(packages) == 0 {
			return fmt.Errorf("no packages found for driver version %s", searchDriverVersion)
		}
		return w.Serialize(packageList(packages))
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchDriverVersion, "driver-version", "d", "", "NVIDIA driver version (e.g., 570, 570.124.06)")
	searchCmd.Flags().StringVarP(&searchPackageType, "package-type", "p", "all", "package type to search (compute, encode, decode, all)")
	searchCmd.Flags().StringVarP(&searchArchitecture, "architecture", "", "x86_64", "CPU architecture (x86_64, arm64)")
	searchCmd.Flags().StringVarP(&searchOSVersion, "os-version", "", nvrepo.DefaultOSVersion, "CUDA repository OS flavor (e.g., ubuntu2204, debian12)")

	searchCmd.Flags().StringVarP(&output, "output", "", "", "output file path (default: stdout)")
	searchCmd.Flags().StringVarP(&format, "format", "", "table", "output format (json, yaml, table)")
}
