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

// Package eksapi reads cluster and nodegroup state from Amazon EKS and
// resolves optimized AMI image IDs through SSM Parameter Store.
package eksapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
)

// ClusterAPI defines the subset of EKS operations the client needs.
type ClusterAPI interface {
	ListClusters(ctx context.Context, params *eks.ListClustersInput,
		optFns ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput,
		optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	ListNodegroups(ctx context.Context, params *eks.ListNodegroupsInput,
		optFns ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
	DescribeNodegroup(ctx context.Context, params *eks.DescribeNodegroupInput,
		optFns ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error)
}

// SSMParameterGetter defines the subset of SSM operations needed for AMI
// image ID resolution.
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NodegroupInfo is the subset of nodegroup state the alignment and template
// flows read.
type NodegroupInfo struct {
	ClusterName    string            `json:"clusterName" yaml:"clusterName"`
	NodegroupName  string            `json:"nodegroupName" yaml:"nodegroupName"`
	AMIType        string            `json:"amiType" yaml:"amiType"`
	ReleaseVersion string            `json:"releaseVersion,omitempty" yaml:"releaseVersion,omitempty"`
	Version        string            `json:"version" yaml:"version"`
	Status         string            `json:"status" yaml:"status"`
	InstanceTypes  []string          `json:"instanceTypes,omitempty" yaml:"instanceTypes,omitempty"`
	NodeRoleARN    string            `json:"nodeRole,omitempty" yaml:"nodeRole,omitempty"`
	Subnets        []string          `json:"subnets,omitempty" yaml:"subnets,omitempty"`
	CapacityType   string            `json:"capacityType,omitempty" yaml:"capacityType,omitempty"`
	DiskSize       int32             `json:"diskSize,omitempty" yaml:"diskSize,omitempty"`
	DesiredSize    int32             `json:"desiredSize" yaml:"desiredSize"`
	MinSize        int32             `json:"minSize" yaml:"minSize"`
	MaxSize        int32             `json:"maxSize" yaml:"maxSize"`
	Labels         map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Tags           map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Architecture derives the CPU architecture from the AMI type name.
func (n NodegroupInfo) Architecture() amitype.Architecture {
	if strings.Contains(n.AMIType, "ARM") {
		return amitype.ArchARM64
	}
	return amitype.ArchX8664
}

// IsGPU reports whether the nodegroup runs a GPU-enabled AMI.
func (n NodegroupInfo) IsGPU() bool {
	return strings.Contains(n.AMIType, "GPU") || strings.Contains(n.AMIType, "NVIDIA")
}

// AMIReleaseTag extracts the release-note tag from an EKS releaseVersion
// like "1.32.3-20250801": the date suffix prefixed with "v".
func (n NodegroupInfo) AMIReleaseTag() string {
	if n.ReleaseVersion == "" {
		return ""
	}
	parts := strings.Split(n.ReleaseVersion, "-")
	return "v" + parts[len(parts)-1]
}

// Client reads EKS state through narrow API interfaces so tests can supply
// mocks.
type Client struct {
	eksClient ClusterAPI
	ssmClient SSMParameterGetter
	log       *slog.Logger
}

// NewClient builds a client from the ambient AWS configuration. Profile and
// region are optional overrides.
func NewClient(ctx context.Context, profile, region string) (*Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, "loading AWS configuration", err)
	}

	return &Client{
		eksClient: eks.NewFromConfig(cfg),
		ssmClient: ssm.NewFromConfig(cfg),
		log:       slog.Default(),
	}, nil
}

// NewClientWith wires explicit API implementations, used by tests.
func NewClientWith(eksClient ClusterAPI, ssmClient SSMParameterGetter) *Client {
	return &Client{
		eksClient: eksClient,
		ssmClient: ssmClient,
		log:       slog.Default(),
	}
}

// ListClusters returns the names of all EKS clusters in the region.
func (c *Client) ListClusters(ctx context.Context) ([]string, error) {
	var names []string
	var next *string
	for {
		out, err := c.eksClient.ListClusters(ctx, &eks.ListClustersInput{NextToken: next})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFetchFailed, "listing clusters", err)
		}
		names = append(names, out.Clusters...)
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}
	return names, nil
}

// ClusterVersion returns the Kubernetes minor version of a cluster.
func (c *Client) ClusterVersion(ctx context.Context, clusterName string) (string, error) {
	out, err := c.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(clusterName),
	})
	if err != nil {
		return "", errors.WrapWithContext(errors.ErrCodeFetchFailed, "describing cluster", err,
			map[string]any{"cluster": clusterName})
	}
	if out.Cluster == nil || out.Cluster.Version == nil {
		return "", errors.NewWithContext(errors.ErrCodeFetchFailed,
			"cluster has no version in describe response",
			map[string]any{"cluster": clusterName})
	}
	return *out.Cluster.Version, nil
}

// ListNodegroups returns the nodegroup names of a cluster.
func (c *Client) ListNodegroups(ctx context.Context, clusterName string) ([]string, error) {
	var names []string
	var next *string
	for {
		out, err := c.eksClient.ListNodegroups(ctx, &eks.ListNodegroupsInput{
			ClusterName: aws.String(clusterName),
			NextToken:   next,
		})
		if err != nil {
			return nil, errors.WrapWithContext(errors.ErrCodeFetchFailed, "listing nodegroups", err,
				map[string]any{"cluster": clusterName})
		}
		names = append(names, out.Nodegroups...)
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}
	return names, nil
}

// GetNodegroup returns the state of one nodegroup.
func (c *Client) GetNodegroup(ctx context.Context, clusterName, nodegroupName string) (*NodegroupInfo, error) {
	out, err := c.eksClient.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(clusterName),
		NodegroupName: aws.String(nodegroupName),
	})
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeFetchFailed, "describing nodegroup", err,
			map[string]any{"cluster": clusterName, "nodegroup": nodegroupName})
	}
	ng := out.Nodegroup
	if ng == nil {
		return nil, errors.NewWithContext(errors.ErrCodeNotFound, "nodegroup not found",
			map[string]any{"cluster": clusterName, "nodegroup": nodegroupName})
	}

	info := &NodegroupInfo{
		ClusterName:   clusterName,
		NodegroupName: nodegroupName,
		AMIType:       string(ng.AmiType),
		Status:        string(ng.Status),
		CapacityType:  string(ng.CapacityType),
		InstanceTypes: ng.InstanceTypes,
		Subnets:       ng.Subnets,
		Labels:        ng.Labels,
		Tags:          ng.Tags,
	}
	if ng.ReleaseVersion != nil {
		info.ReleaseVersion = *ng.ReleaseVersion
	}
	if ng.Version != nil {
		info.Version = *ng.Version
	}
	if ng.NodeRole != nil {
		info.NodeRoleARN = *ng.NodeRole
	}
	if ng.DiskSize != nil {
		info.DiskSize = *ng.DiskSize
	}
	if sc := ng.ScalingConfig; sc != nil {
		if sc.DesiredSize != nil {
			info.DesiredSize = *sc.DesiredSize
		}
		if sc.MinSize != nil {
			info.MinSize = *sc.MinSize
		}
		if sc.MaxSize != nil {
			info.MaxSize = *sc.MaxSize
		}
	}
	return info, nil
}

// GPUNodegroups returns the GPU-enabled nodegroups of a cluster.
func (c *Client) GPUNodegroups(ctx context.Context, clusterName string) ([]NodegroupInfo, error) {
	names, err := c.ListNodegroups(ctx, clusterName)
	if err != nil {
		return nil, err
	}

	var gpu []NodegroupInfo
	for _, name := range names {
		info, err := c.GetNodegroup(ctx, clusterName, name)
		if err != nil {
			c.log.Warn("skipping nodegroup", "nodegroup", name, "error", err)
			continue
		}
		if info.IsGPU() {
			gpu = append(gpu, *info)
		}
	}
	return gpu, nil
}

// ResolveOptimizedAMI returns the image ID of the current EKS optimized AMI
// for a Kubernetes version and AMI type, via the public SSM parameter tree.
func (c *Client) ResolveOptimizedAMI(ctx context.Context, k8sVersion string, at amitype.AMIType) (string, error) {
	path, err := ssmParameterPath(k8sVersion, at)
	if err != nil {
		return "", err
	}

	out, err := c.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(path),
	})
	if err != nil {
		return "", errors.WrapWithContext(errors.ErrCodeFetchFailed, "reading SSM parameter", err,
			map[string]any{"parameter": path})
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.NewWithContext(errors.ErrCodeNotFound, "SSM parameter has no value",
			map[string]any{"parameter": path})
	}
	return *out.Parameter.Value, nil
}

// ssmParameterPath builds the optimized-AMI parameter name for an AMI type.
func ssmParameterPath(k8sVersion string, at amitype.AMIType) (string, error) {
	switch at {
	case amitype.AL2023X8664NVIDIA:
		return fmt.Sprintf("/aws/service/eks/optimized-ami/%s/amazon-linux-2023/x86_64/nvidia/recommended/image_id", k8sVersion), nil
	case amitype.AL2023ARM64NVIDIA:
		return fmt.Sprintf("/aws/service/eks/optimized-ami/%s/amazon-linux-2023/arm64/nvidia/recommended/image_id", k8sVersion), nil
	case amitype.AL2X8664GPU:
		return fmt.Sprintf("/aws/service/eks/optimized-ami/%s/amazon-linux-2-gpu/recommended/image_id", k8sVersion), nil
	default:
		return "", errors.NewWithContext(errors.ErrCodeUnknownAMIType, "no SSM parameter path for AMI type",
			map[string]any{"amiType": at.String()})
	}
}
