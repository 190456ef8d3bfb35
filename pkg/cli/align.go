/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/align"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/eksapi"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/nodegroup"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/nvrepo"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/release"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/resolver"
)

var (
	alignStrategy      string
	alignK8sVersion    string
	alignClusterName   string
	alignDriverVersion string
	alignArchitecture  string
	alignOSVersion     string
	alignTemplatePath  string
	alignPlanOnly      bool
	alignAWSProfile    string
	alignAWSRegion     string
)

// alignResponse is the full command output: the selected pairing plus the
// nodegroup configuration built from it.
type alignResponse struct {
	Alignment *align.Result       `json:"alignment" yaml:"alignment"`
	Nodegroup *nodegroup.Template `json:"nodegroup,omitempty" yaml:"nodegroup,omitempty"`
}

// alignCmd represents the align command
var alignCmd = &cobra.Command{
	Use:     "align",
	GroupID: "functional",
	Short:   "Align an EKS AMI release with NVIDIA container driver versions",
	Long: `Select an EKS optimized AMI release and NVIDIA driver version that match
each other, then build a nodegroup configuration pinned to that release.

Two strategies:
  ami-first        - start from a Kubernetes version (explicit or detected
                     from a cluster) and take the latest AMI release's
                     bundled driver.
  container-first  - start from a desired driver version and find the AMI
                     releases bundling it. Partial versions matching more
                     than one release are refused with the candidate list.

The package cross-check downloads nothing; it verifies the driver's
userspace libraries exist in NVIDIA's CUDA apt repository.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outFormat, err := parseFormat()
		if err != nil {
			return err
		}
		w := newWriter(outFormat)
		ctx := cmd.Context()

		arch, err := amitype.ParseArchitecture(alignArchitecture)
		if err != nil {
			return err
		}

		source := release.NewGitHubClient()
		repo := nvrepo.NewClient(nvrepo.WithOSVersion(alignOSVersion))

		var opts []align.Option
		if alignClusterName != "" {
			eksClient, err := eksapi.NewClient(ctx, alignAWSProfile, alignAWSRegion)
			if err != nil {
				return fmt.Errorf("error creating EKS client: %w", err)
			}
			opts = append(opts, align.WithClusterSource(eksClient))
		}
		aligner := align.New(resolver.New(source), repo, opts...)

		var res *align.Result
		switch alignStrategy {
		case "ami-first":
			res, err = aligner.AlignAMIFirst(ctx, align.AMIFirstOptions{
				K8sVersion:   alignK8sVersion,
				ClusterName:  alignClusterName,
				Architecture: arch,
			})
			if err != nil {
				return fmt.Errorf("error aligning ami-first: %w", err)
			}

		case "container-first":
			if alignDriverVersion == "" {
				return fmt.Errorf("--current-driver-version is required for the container-first strategy")
			}
			var amb *align.Ambiguous
			res, amb, err = aligner.AlignContainerFirst(ctx, alignDriverVersion, align.ContainerFirstOptions{
				K8sVersion:   alignK8sVersion,
				Architecture: arch,
			})
			if err != nil {
				return fmt.Errorf("error aligning container-first: %w", err)
			}
			if amb != nil {
				// Present the candidates and stop; the caller picks an
				// exact version and reruns.
				if err := w.Serialize(amb); err != nil {
					return err
				}
				return fmt.Errorf("driver version %q is ambiguous, rerun with one of: %v",
					amb.SearchTerm, amb.SuggestedVersions)
			}

		default:
			return fmt.Errorf("unknown strategy: %q (use ami-first or container-first)", alignStrategy)
		}

		resp := &alignResponse{Alignment: res}
		if !alignPlanOnly {
			tpl, err := loadOrDefaultTemplate(alignClusterName, arch)
			if err != nil {
				return err
			}
			resp.Nodegroup = tpl.ApplyAlignment(res)
		}
		return w.Serialize(resp)
	},
}

func init() {
	rootCmd.AddCommand(alignCmd)

	alignCmd.Flags().StringVarP(&alignStrategy, "strategy", "", "ami-first", "alignment strategy (ami-first, container-first)")
	alignCmd.Flags().StringVarP(&alignK8sVersion, "k8s-version", "", "", "Kubernetes version (e.g., 1.32)")
	alignCmd.Flags().StringVarP(&alignClusterName, "cluster-name", "", "", "EKS cluster to detect the Kubernetes version from")
	alignCmd.Flags().StringVarP(&alignDriverVersion, "current-driver-version", "", "", "driver version running in containers (container-first)")
	alignCmd.Flags().StringVarP(&alignArchitecture, "architecture", "", "x86_64", "CPU architecture (x86_64, arm64)")
	alignCmd.Flags().StringVarP(&alignOSVersion, "os-version", "", nvrepo.DefaultOSVersion, "CUDA repository OS flavor for the package cross-check (e.g., ubuntu2204, debian12)")
	alignCmd.Flags().StringVarP(&alignTemplatePath, "template", "", "", "nodegroup template file (default: discover nodegroup_template.json)")
	alignCmd.Flags().BoolVarP(&alignPlanOnly, "plan-only", "", false, "report the alignment without building a nodegroup configuration")
	alignCmd.Flags().StringVarP(&alignAWSProfile, "profile", "", "", "AWS profile")
	alignCmd.Flags().StringVarP(&alignAWSRegion, "region", "", "", "AWS region")

	alignCmd.Flags().StringVarP(&output, "output", "", "", "output file path (default: stdout)")
	alignCmd.Flags().StringVarP(&format, "format", "", "json", "output format (json, yaml, table)")
}

// loadOrDefaultTemplate loads the explicit template, a discovered one, or
// the architecture default.
func loadOrDefaultTemplate(clusterName string, arch amitype.Architecture) (*nodegroup.Template, error) {
	path := alignTemplatePath
	if path == "" {
		path = nodegroup.Discover(".")
	}
	if path == "" {
		return nodegroup.Default(clusterName, arch)
	}
	tpl, err := nodegroup.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading template: %w", err)
	}
	return tpl, nil
}
