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

package release

// Record is one GitHub release of the upstream AMI repository. The body is
// the raw release-note markup; everything downstream treats a Record as
// immutable once fetched.
type Record struct {
	Tag         string `json:"tag_name" yaml:"tag"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	PublishedAt string `json:"published_at" yaml:"publishedAt"`
	Body        string `json:"body" yaml:"body"`
	Draft       bool   `json:"draft" yaml:"draft"`
	Prerelease  bool   `json:"prerelease" yaml:"prerelease"`
	HTMLURL     string `json:"html_url,omitempty" yaml:"htmlUrl,omitempty"`
}

// Validate reports structural issues with a release record. An empty slice
// means the record is usable.
func (r Record) Validate() []string {
	var issues []string
	if r.Tag == "" {
		issues = append(issues, "missing tag_name")
	}
	if r.PublishedAt == "" {
		issues = append(issues, "missing published_at")
	}
	if r.Body == "" {
		issues = append(issues, "missing or empty body")
	} else if len(r.Body) < 10 {
		issues = append(issues, "body is too short (likely incomplete)")
	}
	return issues
}
