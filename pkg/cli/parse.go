/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/release"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/resolver"
)

var (
	parseK8sVersion   string
	parseAMIType      string
	parseArchitecture string
	parseDriver       string
	parseFuzzy        bool
	parseLatest       bool
	parseListVersions bool
	parseLimit        int
	parseGitHubRepo   string
	parseDebugRelease string
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:     "parse",
	GroupID: "functional",
	Short:   "Query EKS optimized AMI release notes for NVIDIA driver versions",
	Long: `Query the release notes of the Amazon EKS optimized AMI for the NVIDIA
driver versions bundled per Kubernetes version and AMI type.

Three query modes:
  - by Kubernetes version: the first release carrying driver data
    (default) or the most recent release documenting the version (--latest)
  - by driver version (--driver): every release bundling a matching
    driver, exact or fuzzy substring match
  - --list-versions: the Kubernetes versions covered by recent releases
  - --debug-release: dump the parsed package tables of one release tag

Results can be output in JSON, YAML, or table format.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outFormat, err := parseFormat()
		if err != nil {
			return err
		}
		w := newWriter(outFormat)
		ctx := cmd.Context()
		r := newResolver()

		switch {
		case parseDebugRelease != "":
			source := release.NewGitHubClient(release.WithRepo(parseGitHubRepo))
			insp, err := debugRelease(ctx, source, parseDebugRelease)
			if err != nil {
				return err
			}
			return w.Serialize(insp)

		case parseListVersions:
			versions, err := r.ListAvailableK8sVersions(ctx, parseLimit)
			if err != nil {
				return fmt.Errorf("error listing Kubernetes versions: %w", err)
			}
			return w.Serialize(map[string][]string{"k8sVersions": versions})

		case parseDriver != "":
			arch, err := amitype.ParseArchitecture(parseArchitecture)
			if err != nil {
				return err
			}
			var amiTypes []amitype.AMIType
			if parseAMIType != "" {
				at, err := amitype.Parse(parseAMIType)
				if err != nil {
					return err
				}
				amiTypes = []amitype.AMIType{at}
			}
			matches, err := r.FindByDriverVersion(ctx, parseDriver, resolver.FindByOptions{
				Fuzzy:        parseFuzzy,
				K8sVersion:   parseK8sVersion,
				AMITypes:     amiTypes,
				Architecture: arch,
				Limit:        parseLimit,
			})
			if err != nil {
				return fmt.Errorf("error searching driver versions: %w", err)
			}
			return w.Serialize(matchList(matches))

		case parseK8sVersion != "":
			at, err := resolveAMIType(parseAMIType, parseArchitecture, parseK8sVersion)
			if err != nil {
				return err
			}
			var m *resolver.Match
			if parseLatest {
				m, err = r.FindLatestDriverVersion(ctx, parseK8sVersion, at)
			} else {
				m, err = r.FindFirstDriverVersion(ctx, parseK8sVersion, at)
			}
			if err != nil {
				return fmt.Errorf("error resolving driver version: %w", err)
			}
			if m == nil {
				return fmt.Errorf("no release found for Kubernetes %s with AMI type %s", parseK8sVersion, at)
			}
			return w.Serialize(m)

		default:
			return fmt.Errorf("one of --k8s-version, --driver, or --list-versions is required")
		}
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseK8sVersion, "k8s-version", "", "", "Kubernetes version to query (e.g., 1.32)")
	parseCmd.Flags().StringVarP(&parseAMIType, "ami-type", "", "", "AMI type to query (default: recommended for architecture)")
	parseCmd.Flags().StringVarP(&parseArchitecture, "architecture", "", "x86_64", "CPU architecture (x86_64, arm64)")
	parseCmd.Flags().StringVarP(&parseDriver, "driver", "", "", "driver version search term (e.g., 570 or 570.148.08)")
	parseCmd.Flags().BoolVarP(&parseFuzzy, "fuzzy", "", false, "case-insensitive driver version matching")
	parseCmd.Flags().BoolVarP(&parseLatest, "latest", "", false, "return the most recent release documenting the Kubernetes version")
	parseCmd.Flags().BoolVarP(&parseListVersions, "list-versions", "", false, "list Kubernetes versions covered by recent releases")
	parseCmd.Flags().IntVarP(&parseLimit, "limit", "", 0,
		fmt.Sprintf("how many recent releases to scan (default %d, %d for --list-versions)",
			resolver.DefaultReleaseLimit, resolver.DefaultListVersionsLimit))
	parseCmd.Flags().StringVarP(&parseGitHubRepo, "repo", "", release.DefaultRepo, "GitHub repository publishing the release notes")
	parseCmd.Flags().StringVarP(&parseDebugRelease, "debug-release", "", "", "dump the parsed package tables of one release tag (e.g., v20250801)")

	parseCmd.Flags().StringVarP(&output, "output", "", "", "output file path (default: stdout)")
	parseCmd.Flags().StringVarP(&format, "format", "", "json", "output format (json, yaml, table)")
}

// newResolver builds a resolver over the GitHub release source.
func newResolver() *resolver.Resolver {
	source := release.NewGitHubClient(release.WithRepo(parseGitHubRepo))
	return resolver.New(source, resolver.WithLimit(parseLimit))
}

// resolveAMIType picks an explicit AMI type or the recommended type for the
// architecture.
func resolveAMIType(explicit, architecture, k8sVersion string) (amitype.AMIType, error) {
	if explicit != "" {
		return amitype.Parse(explicit)
	}
	arch, err := amitype.ParseArchitecture(architecture)
	if err != nil {
		return "", err
	}
	return amitype.Recommended(arch, k8sVersion)
}
