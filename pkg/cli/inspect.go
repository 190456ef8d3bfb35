/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/eksapi"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/parser"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/release"
)

var (
	inspectClusterName string
	inspectReleaseTag  string
	inspectAWSProfile  string
	inspectAWSRegion   string
)

// clusterInspection summarizes a cluster's GPU nodegroups with migration
// hints for deprecated AMI types.
type clusterInspection struct {
	ClusterName string                 `json:"clusterName" yaml:"clusterName"`
	K8sVersion  string                 `json:"k8sVersion" yaml:"k8sVersion"`
	Nodegroups  []eksapi.NodegroupInfo `json:"nodegroups" yaml:"nodegroups"`
	// RecommendedImages maps each nodegroup AMI type to the image ID the
	// EKS optimized-AMI SSM parameter currently recommends for the
	// cluster's Kubernetes version.
	RecommendedImages map[string]string `json:"recommendedImages,omitempty" yaml:"recommendedImages,omitempty"`
	Hints             []string          `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// releaseInspection is the parsed view of one release's notes.
type releaseInspection struct {
	Tag         string                       `json:"tag" yaml:"tag"`
	PublishedAt string                       `json:"publishedAt" yaml:"publishedAt"`
	Issues      []string                     `json:"issues,omitempty" yaml:"issues,omitempty"`
	Sections    map[string]map[string]string `json:"sections" yaml:"sections"`
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:     "inspect",
	GroupID: "functional",
	Short:   "Inspect a cluster's GPU nodegroups or a release's parsed notes",
	Long: `Inspect either an EKS cluster (listing its GPU nodegroups with AMI state
and migration hints) or a single AMI release tag (dumping the parsed
per-Kubernetes-version package tables for debugging).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outFormat, err := parseFormat()
		if err != nil {
			return err
		}
		w := newWriter(outFormat)
		ctx := cmd.Context()

		switch {
		case inspectReleaseTag != "":
			insp, err := debugRelease(ctx, release.NewGitHubClient(), inspectReleaseTag)
			if err != nil {
				return err
			}
			return w.Serialize(insp)

		case inspectClusterName != "":
			client, err := eksapi.NewClient(ctx, inspectAWSProfile, inspectAWSRegion)
			if err != nil {
				return fmt.Errorf("error creating EKS client: %w", err)
			}
			k8sVersion, err := client.ClusterVersion(ctx, inspectClusterName)
			if err != nil {
				return fmt.Errorf("error describing cluster: %w", err)
			}
			groups, err := client.GPUNodegroups(ctx, inspectClusterName)
			if err != nil {
				return fmt.Errorf("error listing GPU nodegroups: %w", err)
			}

			insp := clusterInspection{
				ClusterName:       inspectClusterName,
				K8sVersion:        k8sVersion,
				Nodegroups:        groups,
				RecommendedImages: recommendedImages(ctx, client, k8sVersion, groups),
				Hints:             migrationHints(groups, k8sVersion),
			}
			if outFormat == "table" {
				return w.Serialize(nodegroupList(groups))
			}
			return w.Serialize(insp)

		default:
			return fmt.Errorf("one of --cluster-name or --release-tag is required")
		}
	},
}

// debugRelease fetches one release and dumps its parsed per-Kubernetes
// package tables together with any validation issues.
func debugRelease(ctx context.Context, source *release.GitHubClient, tag string) (*releaseInspection, error) {
	rec, err := source.GetReleaseByTag(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("error fetching release: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("release %q not found", tag)
	}
	sections, err := parser.ParseReleaseBody(rec.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing release body: %w", err)
	}
	flat := make(map[string]map[string]string, len(sections))
	for k8s, table := range sections {
		flat[k8s] = table.Flatten()
	}
	return &releaseInspection{
		Tag:         rec.Tag,
		PublishedAt: rec.PublishedAt,
		Issues:      rec.Validate(),
		Sections:    flat,
	}, nil
}

// optimizedAMIResolver is the slice of the EKS client used to look up the
// recommended image per AMI type.
type optimizedAMIResolver interface {
	ResolveOptimizedAMI(ctx context.Context, k8sVersion string, at amitype.AMIType) (string, error)
}

// recommendedImages resolves the current SSM-recommended image ID for each
// distinct AMI type among the nodegroups. A failed lookup drops its entry
// rather than failing the inspection.
func recommendedImages(ctx context.Context, r optimizedAMIResolver, k8sVersion string, groups []eksapi.NodegroupInfo) map[string]string {
	images := make(map[string]string)
	for _, ng := range groups {
		at, err := amitype.Parse(ng.AMIType)
		if err != nil {
			continue
		}
		if _, ok := images[at.String()]; ok {
			continue
		}
		imageID, err := r.ResolveOptimizedAMI(ctx, k8sVersion, at)
		if err != nil {
			slog.Warn("could not resolve recommended image",
				"amiType", at.String(),
				"error", err)
			continue
		}
		images[at.String()] = imageID
	}
	if len(images) == 0 {
		return nil
	}
	return images
}

// migrationHints flags nodegroups on deprecated or soon-unsupported AMI
// types.
func migrationHints(groups []eksapi.NodegroupInfo, k8sVersion string) []string {
	var hints []string
	for _, ng := range groups {
		at, err := amitype.Parse(ng.AMIType)
		if err != nil {
			continue
		}
		deprecated, _ := amitype.IsDeprecated(at)
		if !deprecated {
			continue
		}
		info, err := amitype.CompatibilityInfo(at)
		if err != nil {
			continue
		}
		hint := fmt.Sprintf("nodegroup %s uses deprecated %s, migrate to %s",
			ng.NodegroupName, ng.AMIType, info.ReplacementAMIType)
		if !amitype.IsAL2Supported(k8sVersion) {
			hint += fmt.Sprintf(" (AL2 is unsupported on Kubernetes %s)", k8sVersion)
		}
		hints = append(hints, hint)
	}
	return hints
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectClusterName, "cluster-name", "", "", "EKS cluster to inspect")
	inspectCmd.Flags().StringVarP(&inspectReleaseTag, "release-tag", "", "", "AMI release tag to parse (e.g., v20250801)")
	inspectCmd.Flags().StringVarP(&inspectAWSProfile, "profile", "", "", "AWS profile")
	inspectCmd.Flags().StringVarP(&inspectAWSRegion, "region", "", "", "AWS region")

	inspectCmd.Flags().StringVarP(&output, "output", "", "", "output file path (default: stdout)")
	inspectCmd.Flags().StringVarP(&format, "format", "", "json", "output format (json, yaml, table)")
}
