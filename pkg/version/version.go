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

package version

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Error types for version parsing failures
var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrTooManyComponents = errors.New("version has more than 3 components")
	ErrNonNumeric        = errors.New("version component is not numeric")
	ErrNegativeComponent = errors.New("version component cannot be negative")
)

// Version represents a dotted version number with Major, Minor, and Patch
// components. It supports flexible precision (1, 2, or 3 components) and
// preserves trailing metadata such as packaging suffixes
// (e.g. "-1.amzn2023", "-1.el7"). The Precision field indicates how many
// components are significant for comparisons, which matters for Kubernetes
// versions: "1.32" compares as (1, 32), never as the string "1.32".
type Version struct {
	Major int `json:"major,omitempty" yaml:"major,omitempty"`
	Minor int `json:"minor,omitempty" yaml:"minor,omitempty"`
	Patch int `json:"patch,omitempty" yaml:"patch,omitempty"`

	// Precision indicates how many components are significant (1, 2, or 3)
	Precision int `json:"precision,omitempty" yaml:"precision,omitempty"`

	// Extras stores trailing version metadata like "-1.amzn2023"
	Extras string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// String returns the string representation of the Version respecting its
// precision. Extras are not included.
func (v Version) String() string {
	switch v.Precision {
	case 1:
		return fmt.Sprintf("%d", v.Major)
	case 2:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
}

// Parse parses a version string into a Version struct.
// Supported formats: "1", "1.32", "570.148.8", "v20250403", "570.148.08-1.amzn2023".
// The "v" prefix is optional and stripped if present. Metadata after '-' or
// '+' following a digit is preserved in the Extras field.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, ErrEmptyVersion
	}

	s = strings.TrimPrefix(s, "v")
	var v Version

	// Split off extras: the first '-' or '+' that follows a digit starts
	// the metadata (so "1.28-eks" has extras but a leading "-1" would not).
	mainPart := s
	for i, ch := range s {
		if (ch == '-' || ch == '+') && i > 0 {
			prev := s[i-1]
			if prev >= '0' && prev <= '9' {
				mainPart = s[:i]
				v.Extras = s[i:]
				break
			}
		}
	}

	parts := strings.Split(mainPart, ".")
	if len(parts) > 3 {
		return Version{}, ErrTooManyComponents
	}

	for i, part := range parts {
		if part == "" {
			return Version{}, fmt.Errorf("%w: empty component", ErrNonNumeric)
		}
		num, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, part)
		}
		if num < 0 {
			return Version{}, fmt.Errorf("%w: %d", ErrNegativeComponent, num)
		}

		switch i {
		case 0:
			v.Major = num
		case 1:
			v.Minor = num
		case 2:
			v.Patch = num
		}
	}

	v.Precision = len(parts)
	return v, nil
}

// MustParse parses a version string and panics if parsing fails. Only use
// this for hardcoded strings or in tests; for user input use Parse.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("MustParse: %v", err))
	}
	return v
}

// Compare returns an integer comparing two versions:
// -1 if v < other, 0 if v == other, 1 if v > other.
// Comparison is performed up to the lower of the two precisions, so
// "1.32" equals "1.32.4" but "1.9" sorts before "1.10".
func (v Version) Compare(other Version) int {
	precision := v.Precision
	if other.Precision < precision {
		precision = other.Precision
	}

	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if precision == 1 {
		return 0
	}

	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	if precision == 2 {
		return 0
	}

	if v.Patch != other.Patch {
		if v.Patch < other.Patch {
			return -1
		}
		return 1
	}
	return 0
}

// EqualsOrNewer returns true if v is equal to or newer than other,
// comparing up to the precision of v.
func (v Version) EqualsOrNewer(other Version) bool {
	return v.Compare(other) >= 0
}

var (
	// driverBasePatterns locate the numeric base of an NVIDIA driver
	// version inside package strings like "570.148.08-1.amzn2023".
	driverBasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+\.\d+\.\d+`),
		regexp.MustCompile(`\d+\.\d+`),
		regexp.MustCompile(`\d+`),
	}

	// exactDriverPattern matches a fully-specified driver version at the
	// start of a string (e.g. "570.148.08", not "570").
	exactDriverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+`)
)

// ExtractDriverBase returns the numeric base of a driver version string,
// preserving the original digits ("570.148.08-1.amzn2023" -> "570.148.08",
// leading zeros intact). Returns an empty string when no digits are found.
func ExtractDriverBase(raw string) string {
	for _, p := range driverBasePatterns {
		if m := p.FindString(raw); m != "" {
			return m
		}
	}
	return ""
}

// IsExactDriverVersion reports whether the string begins with a complete
// major.minor.patch driver version. Search terms that fail this check are
// treated as fuzzy by the alignment strategies.
func IsExactDriverVersion(s string) bool {
	return exactDriverPattern.MatchString(s)
}

// SortNumeric sorts version strings in ascending numeric order
// ("1.2" < "1.9" < "1.10"). Unparseable strings sort first, among
// themselves lexically, to keep the output deterministic.
func SortNumeric(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, erri := Parse(versions[i])
		vj, errj := Parse(versions[j])
		if erri != nil || errj != nil {
			if erri == nil {
				return false
			}
			if errj == nil {
				return true
			}
			return versions[i] < versions[j]
		}
		return vi.Compare(vj) < 0
	})
}
