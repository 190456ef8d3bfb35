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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
)

const collapsibleBody = `
<details>
<summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th><th>AL2_x86_64_GPU</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>570.148.08-1.amzn2023</td><td>570.124.06-1.amzn2</td></tr>
<tr><td>containerd</td><td>1.7.27-1.amzn2023</td><td>1.7.27-1.amzn2</td></tr>
</table>
</details>
<details>
<summary><b>Kubernetes 1.31</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>565.57.01-1.amzn2023</td></tr>
</table>
</details>`

func TestParseCollapsibleSections(t *testing.T) {
	sections, err := ParseReleaseBody(collapsibleBody)
	require.NoError(t, err)
	require.Len(t, sections, 2)

	table, ok := sections["1.32"]
	require.True(t, ok)

	v, ok := table.DriverVersion(amitype.AL2023X8664NVIDIA)
	require.True(t, ok)
	assert.Equal(t, "570.148.08-1.amzn2023", v)

	v, ok = table.DriverVersion(amitype.AL2X8664GPU)
	require.True(t, ok)
	assert.Equal(t, "570.124.06-1.amzn2", v)

	v, ok = table.Version("containerd", amitype.AL2023X8664NVIDIA)
	require.True(t, ok)
	assert.Equal(t, "1.7.27-1.amzn2023", v)

	_, ok = sections["1.31"]
	assert.True(t, ok)
}

func TestParseFlattenedKeys(t *testing.T) {
	sections, err := ParseReleaseBody(collapsibleBody)
	require.NoError(t, err)

	flat := sections["1.32"].Flatten()
	assert.Equal(t, "570.148.08-1.amzn2023", flat["kmod-nvidia-latest-dkms_AL2023_x86_64_NVIDIA"])
	assert.Equal(t, "570.124.06-1.amzn2", flat["kmod-nvidia-latest-dkms_AL2_x86_64_GPU"])
	// Legacy bare key carries the last written driver value.
	_, ok := flat["kmod-nvidia-latest-dkms"]
	assert.True(t, ok)
	// Non-driver packages never get a legacy entry.
	_, ok = flat["containerd"]
	assert.False(t, ok)
}

func TestParseHeaderFallback(t *testing.T) {
	body := `
<h2>Kubernetes 1.30</h2>
<p>notes</p>
<table>
<tr><th>Package</th><th>AL2_x86_64_GPU</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>550.90.07-1.amzn2</td></tr>
</table>
<h2>Changelog</h2>
<table>
<tr><th>Package</th><th>AL2_x86_64_GPU</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>999.0.0-should-not-appear</td></tr>
</table>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	v, ok := sections["1.30"].DriverVersion(amitype.AL2X8664GPU)
	require.True(t, ok)
	assert.Equal(t, "550.90.07-1.amzn2", v)
}

func TestParseHeaderFallbackSkippedWhenCollapsiblePresent(t *testing.T) {
	body := `
<h2>Kubernetes 1.29</h2>
<table>
<tr><th>Package</th><th>AL2_x86_64_GPU</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>535.0.0-1.amzn2</td></tr>
</table>
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Package</th><th>AL2023_x86_64_NVIDIA</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>570.148.08-1.amzn2023</td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	_, ok := sections["1.32"]
	assert.True(t, ok)
	_, ok = sections["1.29"]
	assert.False(t, ok)
}

func TestParseColspanMergedCell(t *testing.T) {
	// First data cell spans logical columns 0-1; the GPU column at logical
	// index 1 must resolve to the merged cell, not the next physical cell.
	body := `
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th><th>AL2_x86_64_GPU</th></tr>
<tr><td colspan="2">570.148.08-shared</td><td>570.124.06-al2</td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)

	table := sections["1.32"]
	v, ok := table.Version("570.148.08-shared", amitype.AL2023X8664NVIDIA)
	require.True(t, ok)
	assert.Equal(t, "570.148.08-shared", v)

	v, ok = table.Version("570.148.08-shared", amitype.AL2X8664GPU)
	require.True(t, ok)
	assert.Equal(t, "570.124.06-al2", v)
}

func TestParseSkipsPlaceholderValues(t *testing.T) {
	body := `
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th><th>AL2_x86_64_GPU</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>570.148.08-1.amzn2023</td><td>—</td></tr>
<tr><td>some-pkg</td><td>-</td><td></td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)

	table := sections["1.32"]
	_, ok := table.Version("kmod-nvidia-latest-dkms", amitype.AL2X8664GPU)
	// Falls back to the legacy entry written for the AL2023 column.
	require.True(t, ok)
	byType := table.ByAMIType["kmod-nvidia-latest-dkms"]
	_, ok = byType[amitype.AL2X8664GPU]
	assert.False(t, ok)
	_, ok = table.ByAMIType["some-pkg"]
	assert.False(t, ok)
}

func TestParseIgnoresNonGPUTables(t *testing.T) {
	body := `
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_STANDARD</th></tr>
<tr><td>containerd</td><td>1.7.27</td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	assert.NotContains(t, sections, "1.32")
	assert.Empty(t, sections)
}

func TestParseGPUTableWithNoDataRows(t *testing.T) {
	body := `
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	assert.NotContains(t, sections, "1.32")
	assert.Empty(t, sections)
}

func TestParseEmptySummarySectionFallsThroughToHeaders(t *testing.T) {
	// The collapsible section carries no GPU packages, so the header pass
	// still runs and its data is kept.
	body := `
<details><summary><b>Kubernetes 1.99</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_STANDARD</th></tr>
<tr><td>containerd</td><td>1.7.27</td></tr>
</table>
</details>
<h2>Kubernetes 1.30</h2>
<table>
<tr><th>Package</th><th>AL2_x86_64_GPU</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>550.90.07-1.amzn2</td></tr>
</table>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.NotContains(t, sections, "1.99")

	v, ok := sections["1.30"].DriverVersion(amitype.AL2X8664GPU)
	require.True(t, ok)
	assert.Equal(t, "550.90.07-1.amzn2", v)
}

func TestParseDuplicateSectionLastWins(t *testing.T) {
	body := `
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>565.57.01-1.amzn2023</td></tr>
<tr><td>containerd</td><td>1.7.27-1.amzn2023</td></tr>
</table>
</details>
<details><summary><b>Kubernetes 1.32</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>570.148.08-1.amzn2023</td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	table := sections["1.32"]
	v, ok := table.DriverVersion(amitype.AL2023X8664NVIDIA)
	require.True(t, ok)
	assert.Equal(t, "570.148.08-1.amzn2023", v)
	// The earlier section is replaced wholesale, not merged into.
	_, ok = table.Version("containerd", amitype.AL2023X8664NVIDIA)
	assert.False(t, ok)
}

func TestParseNonKubernetesSummaryIgnored(t *testing.T) {
	body := `
<details><summary><b>What's new</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>570.148.08</td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestParseEmptyBody(t *testing.T) {
	sections, err := ParseReleaseBody("")
	require.NoError(t, err)
	assert.NotNil(t, sections)
	assert.Empty(t, sections)
}

func TestParseIdempotent(t *testing.T) {
	first, err := ParseReleaseBody(collapsibleBody)
	require.NoError(t, err)
	second, err := ParseReleaseBody(collapsibleBody)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseCaseInsensitiveHeader(t *testing.T) {
	body := `
<details><summary><b>KUBERNETES 1.33</b></summary>
<table>
<tr><th>Component</th><th>AL2023_x86_64_NVIDIA</th></tr>
<tr><td>kmod-nvidia-latest-dkms</td><td>575.0.1-1.amzn2023</td></tr>
</table>
</details>`

	sections, err := ParseReleaseBody(body)
	require.NoError(t, err)
	_, ok := sections["1.33"]
	assert.True(t, ok)
}
