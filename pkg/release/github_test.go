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

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GitHubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGitHubClient(WithBaseURL(srv.URL), WithToken(""))
}

func TestListReleasesFiltersDraftsAndPrereleases(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/awslabs/amazon-eks-ami/releases", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"tag_name":"v20250801","published_at":"2025-08-01T00:00:00Z","body":"notes a"},
			{"tag_name":"v20250715","published_at":"2025-07-15T00:00:00Z","body":"notes b","draft":true},
			{"tag_name":"v20250701","published_at":"2025-07-01T00:00:00Z","body":"notes c","prerelease":true}
		]`))
	})

	records, err := c.ListReleases(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "v20250801", records[0].Tag)
	assert.Equal(t, "notes a", records[0].Body)
}

func TestListReleasesInvalidLimit(t *testing.T) {
	c := NewGitHubClient(WithToken(""))
	_, err := c.ListReleases(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestGetReleaseByTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/awslabs/amazon-eks-ami/releases/tags/v20250801", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v20250801","published_at":"2025-08-01T00:00:00Z","body":"notes"}`))
	})

	rec, err := c.GetReleaseByTag(context.Background(), "v20250801")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v20250801", rec.Tag)
}

func TestGetReleaseByTagNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec, err := c.GetReleaseByTag(context.Background(), "v00000000")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetReleaseByTagEmptyTag(t *testing.T) {
	c := NewGitHubClient(WithToken(""))
	_, err := c.GetReleaseByTag(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestListReleasesServerError(t *testing.T) {
	hits := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"tag_name":"v20250801","published_at":"2025-08-01T00:00:00Z","body":"notes"}]`))
	})

	records, err := c.ListReleases(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.GreaterOrEqual(t, hits, 2)
}

func TestGetLatestRelease(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"tag_name":"v20250801","published_at":"2025-08-01T00:00:00Z","body":"notes"}]`))
	})

	rec, err := c.GetLatestRelease(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v20250801", rec.Tag)
}

func TestGetLatestReleaseEmptyRepo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	rec, err := c.GetLatestRelease(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSearchByContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"tag_name":"v20250801","published_at":"2025-08-01T00:00:00Z","body":"kmod-nvidia 570.148.08"},
			{"tag_name":"v20250715","published_at":"2025-07-15T00:00:00Z","body":"no driver notes here"}
		]`))
	})

	records, err := c.SearchByContent(context.Background(), "KMOD-NVIDIA", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "v20250801", records[0].Tag)
}

func TestSearchByContentEmptyTerm(t *testing.T) {
	c := NewGitHubClient(WithToken(""))
	_, err := c.SearchByContent(context.Background(), "", 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		issues int
	}{
		{"complete", Record{Tag: "v1", PublishedAt: "2025-08-01", Body: "a long enough body"}, 0},
		{"missing tag", Record{PublishedAt: "2025-08-01", Body: "a long enough body"}, 1},
		{"empty body", Record{Tag: "v1", PublishedAt: "2025-08-01"}, 1},
		{"short body", Record{Tag: "v1", PublishedAt: "2025-08-01", Body: "tiny"}, 1},
		{"all missing", Record{}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, tc.record.Validate(), tc.issues)
		})
	}
}
