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

// Package parser extracts per-Kubernetes-version package tables from the
// HTML bodies of EKS optimized AMI release notes.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/NVIDIA/eks-nvidia-tools/pkg/amitype"
	"github.com/NVIDIA/eks-nvidia-tools/pkg/errors"
)

// k8sHeaderRE matches section headers like "Kubernetes 1.32". The version
// number is captured verbatim; range validation belongs to callers.
var k8sHeaderRE = regexp.MustCompile(`(?i)kubernetes\s+(\d+\.\d+)`)

// ParseReleaseBody parses one release's HTML body into its Kubernetes
// version sections. An empty body yields an empty result; only a structural
// HTML parse failure produces an error, which callers are expected to treat
// as skip-this-release.
func ParseReleaseBody(body string) (K8sSections, error) {
	sections := make(K8sSections)
	if strings.TrimSpace(body) == "" {
		return sections, nil
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParseFailed, "parsing release body", err)
	}

	gpuColumns := make(map[string]amitype.AMIType)
	for _, at := range amitype.GPUTypes() {
		gpuColumns[at.String()] = at
	}

	// A located section counts only when its tables yielded packages;
	// packageless sections are dropped, and the header fallback runs
	// whenever the collapsible pass recorded nothing usable. Duplicate
	// version headers overwrite, so the last parsed section wins.
	for _, sec := range collapsibleSections(doc) {
		table := extractPackages(sec.nodes, gpuColumns)
		if table.IsEmpty() {
			continue
		}
		sections[sec.version] = table
	}
	if len(sections) > 0 {
		return sections, nil
	}

	for _, sec := range headerSections(doc) {
		table := extractPackages(sec.nodes, gpuColumns)
		if table.IsEmpty() {
			continue
		}
		sections[sec.version] = table
	}
	return sections, nil
}

// section is one located Kubernetes-version region of the body: the version
// string from its header plus the nodes that make up its content.
type section struct {
	version string
	nodes   []*html.Node
}

// collapsibleSections finds <summary><b>Kubernetes X.Y</b></summary> markers
// and yields their enclosing <details> elements.
func collapsibleSections(doc *html.Node) []section {
	var out []section
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Summary {
			return
		}
		bold := findElement(n, atom.B)
		if bold == nil {
			return
		}
		m := k8sHeaderRE.FindStringSubmatch(nodeText(bold))
		if m == nil {
			return
		}
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && p.DataAtom == atom.Details {
				out = append(out, section{version: m[1], nodes: []*html.Node{p}})
				return
			}
		}
	})
	return out
}

// headerSections is the fallback for bodies without collapsible sections:
// each h1-h6 matching the Kubernetes pattern starts a section whose content
// is every following sibling up to the next header of any level.
func headerSections(doc *html.Node) []section {
	var out []section
	walk(doc, func(n *html.Node) {
		if !isHeading(n) {
			return
		}
		m := k8sHeaderRE.FindStringSubmatch(nodeText(n))
		if m == nil {
			return
		}
		var nodes []*html.Node
		for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
			if isHeading(sib) {
				break
			}
			nodes = append(nodes, sib)
		}
		out = append(out, section{version: m[1], nodes: nodes})
	})
	return out
}

// extractPackages reads every table in the section nodes and pulls package
// versions from columns whose header matches a GPU-enabled AMI type. Tables
// without GPU columns are ignored.
func extractPackages(nodes []*html.Node, gpuColumns map[string]amitype.AMIType) PackageTable {
	out := NewPackageTable()
	for _, n := range nodes {
		walk(n, func(t *html.Node) {
			if t.Type != html.ElementNode || t.DataAtom != atom.Table {
				return
			}
			out.merge(extractTable(t, gpuColumns))
		})
	}
	return out
}

func extractTable(table *html.Node, gpuColumns map[string]amitype.AMIType) PackageTable {
	out := NewPackageTable()

	rows := tableRows(table)
	if len(rows) == 0 {
		return out
	}

	// Columns naming a GPU AMI type, in header order so the legacy entry
	// deterministically carries the rightmost column's value. Header cells
	// may themselves carry colspan.
	type gpuColumn struct {
		index int
		at    amitype.AMIType
	}
	var targets []gpuColumn
	logical := 0
	for _, cell := range rowCells(rows[0]) {
		name := nodeText(cell)
		if at, ok := gpuColumns[name]; ok {
			targets = append(targets, gpuColumn{index: logical, at: at})
		}
		logical += cellSpan(cell)
	}
	if len(targets) == 0 {
		return out
	}

	for _, row := range rows[1:] {
		cells := rowCells(row)
		if len(cells) == 0 {
			continue
		}
		pkg := nodeText(cells[0])
		if pkg == "" {
			continue
		}
		for _, col := range targets {
			value := cellAtLogicalColumn(cells, col.index)
			if value == "" || value == "-" || value == "—" {
				continue
			}
			out.set(pkg, col.at, value)
		}
	}
	return out
}

// cellAtLogicalColumn walks cells left to right accumulating colspan and
// returns the text of the cell whose span covers the target column. Merged
// cells spanning several columns answer for each of them.
func cellAtLogicalColumn(cells []*html.Node, target int) string {
	logical := 0
	for _, cell := range cells {
		span := cellSpan(cell)
		if target >= logical && target < logical+span {
			return nodeText(cell)
		}
		logical += span
	}
	return ""
}

func cellSpan(cell *html.Node) int {
	for _, a := range cell.Attr {
		if a.Key == "colspan" {
			if span, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && span > 1 {
				return span
			}
			return 1
		}
	}
	return 1
}

// tableRows returns all <tr> descendants of a table, header row first.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	walk(table, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			rows = append(rows, n)
		}
	})
	return rows
}

// rowCells returns the direct th/td children of a row.
func rowCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
			cells = append(cells, c)
		}
	}
	return cells
}

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// findElement returns the first descendant element with the given atom.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.DataAtom == a {
			found = c
		}
	})
	return found
}

// nodeText concatenates all text descendants with whitespace normalized to
// single spaces.
func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}
