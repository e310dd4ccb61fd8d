package tree

import "github.com/har-viewer/backend/internal/highlight"

// Toggle states for a drawn line.
const (
	ToggleNone      = ""
	ToggleExpanded  = "expanded"
	ToggleCollapsed = "collapsed"
)

// Line is one drawn row of the tree.
type Line struct {
	Depth    int                 `json:"depth"`
	Path     string              `json:"path"`
	Toggle   string              `json:"toggle,omitempty"`
	Segments []highlight.Segment `json:"segments"`
	Summary  string              `json:"summary,omitempty"`
}

// Text joins the segments of a line.
func (l Line) Text() string { return highlight.Join(l.Segments) }

// Lines flattens the visible part of n into rows. Collapsed containers contribute a
// single placeholder row.
func Lines(n *Node) []Line {
	var out []Line
	appendLines(&out, n, true)
	return out
}

func appendLines(out *[]Line, n *Node, last bool) {
	head := keyPrefix(n)

	if n.Kind != "object" && n.Kind != "array" {
		segs := head
		if n.Kind == "string" {
			segs = append(segs, lit(`"`))
			segs = append(segs, n.ValueSegs...)
			segs = append(segs, lit(`"`))
		} else {
			segs = append(segs, n.ValueSegs...)
		}
		*out = append(*out, Line{Depth: n.Depth, Path: n.Path, Segments: withComma(segs, last)})
		return
	}

	open, closer := "{", "}"
	if n.Kind == "array" {
		open, closer = "[", "]"
	}

	switch {
	case !n.Expandable:
		segs := append(head, lit(open+closer))
		*out = append(*out, Line{Depth: n.Depth, Path: n.Path, Segments: withComma(segs, last)})
	case !n.Expanded:
		segs := append(head, lit(open), lit(" ... "), lit(closer))
		*out = append(*out, Line{
			Depth:    n.Depth,
			Path:     n.Path,
			Toggle:   ToggleCollapsed,
			Segments: withComma(segs, last),
			Summary:  n.Summary,
		})
	default:
		*out = append(*out, Line{Depth: n.Depth, Path: n.Path, Toggle: ToggleExpanded, Segments: append(head, lit(open))})
		for i, c := range n.Children {
			appendLines(out, c, i == len(n.Children)-1)
		}
		*out = append(*out, Line{Depth: n.Depth, Path: n.Path, Segments: withComma([]highlight.Segment{lit(closer)}, last)})
	}
}

func keyPrefix(n *Node) []highlight.Segment {
	if !n.HasKey {
		return nil
	}
	segs := make([]highlight.Segment, 0, len(n.KeySegs)+1)
	segs = append(segs, n.KeySegs...)
	return append(segs, lit(": "))
}

func withComma(segs []highlight.Segment, last bool) []highlight.Segment {
	if last {
		return segs
	}
	return append(segs, lit(","))
}

func lit(s string) highlight.Segment { return highlight.Segment{Text: s} }
