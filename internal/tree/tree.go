// Package tree lays out a JSON value as a collapsible, highlighted tree.
//
// Whether a node is expanded is decided by ComputeExpansion on every build: the
// root is open by default, any container whose key or subtree contains the active
// query is forced open, and everything else follows the caller's manual toggles.
package tree

import (
	"strconv"

	"github.com/har-viewer/backend/internal/highlight"
	"github.com/har-viewer/backend/internal/jsonvalue"
	"github.com/har-viewer/backend/internal/match"
)

// Options carries caller-held expansion state.
type Options struct {
	// AlwaysExpanded opens every non-empty container, as for full payload display.
	AlwaysExpanded bool `json:"alwaysExpanded"`
	// Expanded holds manual toggles by node path. A present entry overrides the
	// default but never collapses a node the query forces open.
	Expanded map[string]bool `json:"expanded,omitempty"`
}

// Node is one value in the rendered tree. Children are always populated; Expanded
// decides whether they are drawn.
type Node struct {
	Kind       string              `json:"kind"`
	Key        string              `json:"key,omitempty"`
	HasKey     bool                `json:"hasKey"`
	Index      int                 `json:"index"`
	Path       string              `json:"path"`
	Depth      int                 `json:"depth"`
	Expanded   bool                `json:"expanded"`
	Expandable bool                `json:"expandable"`
	Count      int                 `json:"count,omitempty"`
	Summary    string              `json:"summary,omitempty"`
	KeySegs    []highlight.Segment `json:"keySegments,omitempty"`
	ValueSegs  []highlight.Segment `json:"valueSegments,omitempty"`
	Children   []*Node             `json:"children,omitempty"`
}

// ComputeExpansion decides whether the container v, reached under key at depth and
// path, is drawn open.
func ComputeExpansion(v *jsonvalue.Value, key, path string, depth int, m *match.Matcher, opts Options) bool {
	if v == nil || !v.IsContainer() || v.Len() == 0 {
		return false
	}
	if !m.Empty() && (m.Contains(key) || SubtreeContains(v, m)) {
		return true
	}
	if set, ok := opts.Expanded[path]; ok {
		return set
	}
	return opts.AlwaysExpanded || depth < 1
}

// SubtreeContains reports whether any key or leaf below v contains the query.
func SubtreeContains(v *jsonvalue.Value, m *match.Matcher) bool {
	if m.Empty() {
		return false
	}
	found := false
	v.Each(func(key string, _ int, child *jsonvalue.Value) {
		if found {
			return
		}
		switch {
		case key != "" && m.Contains(key):
			found = true
		case child.IsContainer():
			found = SubtreeContains(child, m)
		default:
			found = m.Contains(child.Text())
		}
	})
	return found
}

// Build renders v against query.
func Build(v *jsonvalue.Value, query string, opts Options) *Node {
	return build(v, "", false, 0, "", 0, match.New(query), opts)
}

// BuildText parses text as JSON and renders it. Text that is not JSON, or nests too
// deeply, is rendered as a single string leaf.
func BuildText(text, query string, opts Options) *Node {
	v, err := jsonvalue.Parse(text)
	if err != nil {
		v = jsonvalue.FromString(text)
	}
	return Build(v, query, opts)
}

func build(v *jsonvalue.Value, key string, hasKey bool, index int, path string, depth int, m *match.Matcher, opts Options) *Node {
	n := &Node{
		Kind:   v.Kind.String(),
		Key:    key,
		HasKey: hasKey,
		Index:  index,
		Path:   path,
		Depth:  depth,
	}
	if hasKey {
		n.KeySegs = highlight.SplitWith(key, m)
	}

	if !v.IsContainer() {
		n.ValueSegs = highlight.SplitWith(v.Text(), m)
		return n
	}

	n.Count = v.Len()
	n.Expandable = n.Count > 0
	n.Summary = summary(v)
	n.Expanded = ComputeExpansion(v, key, path, depth, m, opts)

	isObject := v.Kind == jsonvalue.Object
	n.Children = make([]*Node, 0, n.Count)
	v.Each(func(k string, i int, child *jsonvalue.Value) {
		seg := k
		if !isObject {
			seg = strconv.Itoa(i)
		}
		n.Children = append(n.Children, build(child, k, isObject, i, joinPath(path, seg), depth+1, m, opts))
	})
	return n
}

func summary(v *jsonvalue.Value) string {
	if v.Kind == jsonvalue.Array {
		return strconv.Itoa(v.Len()) + " items"
	}
	return strconv.Itoa(v.Len()) + " keys"
}

func joinPath(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + "." + seg
}

// Find returns the node at path, or nil.
func (n *Node) Find(path string) *Node {
	if n.Path == path {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(path); found != nil {
			return found
		}
	}
	return nil
}
