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

package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/eksapi"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/serializers"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		wantFormat serializers.Format
		wantErr    bool
	}{
		{
			name:       "valid yaml format",
			format:     "yaml",
			wantFormat: serializers.FormatYAML,
			wantErr:    false,
		},
		{
			name:       "valid json format",
			format:     "json",
			wantFormat: serializers.FormatJSON,
			wantErr:    false,
		},
		{
			name:       "valid table format",
			format:     "table",
			wantFormat: serializers.FormatTable,
			wantErr:    false,
		},
		{
			name:    "invalid format xml",
			format:  "xml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format = tt.format
			got, err := parseFormat()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantFormat {
				t.Errorf("got format %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

func TestResolveAMIType(t *testing.T) {
	tests := []struct {
		name         string
		explicit     string
		architecture string
		want         amitype.AMIType
		wantErr      bool
	}{
		{
			name:         "explicit type wins",
			explicit:     "AL2_x86_64_GPU",
			architecture: "arm64",
			want:         amitype.AL2X8664GPU,
		},
		{
			name:         "x86 defaults to AL2023",
			architecture: "x86_64",
			want:         amitype.AL2023X8664NVIDIA,
		},
		{
			name:         "amd64 alias accepted",
			architecture: "amd64",
			want:         amitype.AL2023X8664NVIDIA,
		},
		{
			name:         "arm64 defaults to AL2023 ARM",
			architecture: "arm64",
			want:         amitype.AL2023ARM64NVIDIA,
		},
		{
			name:     "unknown explicit type",
			explicit: "WINDOWS_GPU",
			wantErr:  true,
		},
		{
			name:         "unknown architecture",
			architecture: "riscv",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAMIType(tt.explicit, tt.architecture, "1.32")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchListRows(t *testing.T) {
	list := matchList{
		{ReleaseTag: "v20250801", ReleaseDate: "2025-08-01", K8sVersion: "1.32",
			AMIType: amitype.AL2023X8664NVIDIA, DriverVersion: "570.148.08"},
	}
	if got := len(list.TableHeader()); got != 5 {
		t.Fatalf("header has %d columns, want 5", got)
	}
	rows := list.TableRows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0][0] != "v20250801" || rows[0][4] != "570.148.08" {
		t.Errorf("unexpected row contents: %v", rows[0])
	}
}

func TestMigrationHints(t *testing.T) {
	groups := []eksapi.NodegroupInfo{
		{NodegroupName: "modern", AMIType: "AL2023_x86_64_NVIDIA"},
		{NodegroupName: "legacy", AMIType: "AL2_x86_64_GPU"},
	}

	hints := migrationHints(groups, "1.30")
	if len(hints) != 1 {
		t.Fatalf("got %d hints, want 1", len(hints))
	}
	if !strings.Contains(hints[0], "legacy") || !strings.Contains(hints[0], "AL2023_x86_64_NVIDIA") {
		t.Errorf("unexpected hint: %q", hints[0])
	}

	hints = migrationHints(groups, "1.33")
	if len(hints) != 1 || !strings.Contains(hints[0], "unsupported") {
		t.Errorf("expected an unsupported note for 1.33, got %v", hints)
	}
}

type fakeAMIResolver struct {
	calls []string
}

func (f *fakeAMIResolver) ResolveOptimizedAMI(_ context.Context, _ string, at amitype.AMIType) (string, error) {
	f.calls = append(f.calls, at.String())
	if at == amitype.AL2X8664GPU {
		return "", fmt.Errorf("parameter not found")
	}
	return "ami-" + at.String(), nil
}

var _ optimizedAMIResolver = (*fakeAMIResolver)(nil)

func TestRecommendedImages(t *testing.T) {
	groups := []eksapi.NodegroupInfo{
		{NodegroupName: "a", AMIType: "AL2023_x86_64_NVIDIA"},
		{NodegroupName: "b", AMIType: "AL2023_x86_64_NVIDIA"},
		{NodegroupName: "c", AMIType: "AL2_x86_64_GPU"},
		{NodegroupName: "d", AMIType: "NOT_AN_AMI_TYPE"},
	}

	r := &fakeAMIResolver{}
	images := recommendedImages(context.Background(), r, "1.32", groups)

	// One lookup per distinct valid AMI type; the failed AL2 lookup and the
	// unknown type leave no entry.
	if len(r.calls) != 2 {
		t.Fatalf("got %d lookups, want 2: %v", len(r.calls), r.calls)
	}
	if len(images) != 1 {
		t.Fatalf("got %d images, want 1: %v", len(images), images)
	}
	if images["AL2023_x86_64_NVIDIA"] != "ami-AL2023_x86_64_NVIDIA" {
		t.Errorf("unexpected image map: %v", images)
	}
}

func TestPackageListRows(t *testing.T) {
	list := packageList{
		{Name: "libnvidia-compute-570", Version: "570.133.20-0ubuntu1",
			Architecture: "amd64", URL: "https://example.com/x.deb"},
	}
	if got := len(list.TableHeader()); got != 4 {
		t.Fatalf("header has %d columns, want 4", got)
	}
	rows := list.TableRows()
	if len(rows) != 1 || rows[0][1] != "570.133.20-0ubuntu1" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestNewResolverUsesLimit(t *testing.T) {
	parseLimit = 7
	parseGitHubRepo = "awslabs/amazon-eks-ami"
	if r := newResolver(); r == nil {
		t.Fatal("expected a resolver")
	}
	parseLimit = 0
}
