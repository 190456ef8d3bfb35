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

package serializers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name    string            `json:"name" yaml:"name"`
	Count   int               `json:"count" yaml:"count"`
	Details map[string]string `json:"details" yaml:"details"`
}

type rowSample struct {
	rows [][]string
}

func (r rowSample) TableHeader() []string { return []string{"TAG", "VERSION"} }
func (r rowSample) TableRows() [][]string { return r.rows }

func TestSerializeJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatJSON, &buf)

	in := sample{Name: "a", Count: 2, Details: map[string]string{"k": "v"}}
	require.NoError(t, w.Serialize(in))

	var out sample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, in, out)
}

func TestSerializeYAML(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatYAML, &buf)

	in := sample{Name: "a", Count: 2}
	require.NoError(t, w.Serialize(in))

	var out sample
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, in, out)
}

func TestSerializeTableFlattens(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatTable, &buf)

	require.NoError(t, w.Serialize(sample{Name: "a", Count: 2, Details: map[string]string{"k": "v"}}))
	out := buf.String()
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Details.k")
	assert.Contains(t, out, "v")
}

func TestSerializeTableRowOriented(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatTable, &buf)

	require.NoError(t, w.Serialize(rowSample{rows: [][]string{
		{"v20250801", "570.148.08"},
		{"v20250715", "570.133.20"},
	}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "TAG")
	assert.Contains(t, lines[2], "v20250801")
	assert.Contains(t, lines[3], "570.133.20")
}

func TestSerializeUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(Format("xml"), &buf)
	require.Error(t, w.Serialize(sample{}))
	assert.True(t, Format("xml").IsUnknown())
	assert.False(t, FormatJSON.IsUnknown())
}
