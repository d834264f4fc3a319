package ucm

import (
	"sort"
	"time"
)

// EdgeType is the closed set of semantic relations an Edge may carry.
// Containment lives in the document's structure map, not here — edges
// express semantic relations only (spec §3 "Block").
type EdgeType struct {
	name string
}

// Well-known edge types. Other(label) covers anything not in this set.
var (
	EdgeReferences   = EdgeType{"references"}
	EdgeDependsOn    = EdgeType{"depends_on"}
	EdgeContains     = EdgeType{"contains"}
	EdgeDerivedFrom  = EdgeType{"derived_from"}
	EdgeAnnotates    = EdgeType{"annotates"}
	EdgeSupersededBy = EdgeType{"superseded_by"}
)

// OtherEdgeType builds an Other(label) edge type for relations outside
// the well-known set.
func OtherEdgeType(label string) EdgeType { return EdgeType{name: label} }

// String renders the edge type's wire label.
func (t EdgeType) String() string { return t.name }

// Edge is a typed, directed, non-containment relation from the block that
// holds it to a target block.
type Edge struct {
	Type       EdgeType
	Target     BlockId
	Metadata   any // arbitrary JSON, nil if unset
	Confidence *float32
}

// equalKey reports whether two edges share the (type, target) identity
// that LINK treats as idempotent (spec §4.1 Link / S3).
func (e Edge) equalKey(other Edge) bool {
	return e.Type == other.Type && e.Target == other.Target
}

// SemanticRole optionally classifies a block within a closed category set,
// with a free-form subrole for finer distinctions.
type SemanticRole struct {
	Category string
	Subrole  string // empty means unset
}

// RoleCategories is the closed set of semantic_role.category values
// accepted by the Metadata validation stage (spec §4.2 "Metadata").
var RoleCategories = map[string]bool{
	"heading": true, "summary": true, "example": true, "definition": true,
	"claim": true, "evidence": true, "caveat": true, "navigation": true,
	"metadata": true, "other": true,
}

// Metadata carries a block's descriptive, non-structural attributes.
type Metadata struct {
	Label        string // empty means unset
	Tags         []string
	SemanticRole *SemanticRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
	TokenCount   *int
	Custom       map[string]any
}

// NormalizeTags deduplicates and sorts Tags in place, matching spec §3
// invariant 7 ("metadata.tags contains no duplicates") and the documented
// serialization rule (dedup, sorted-on-serialize).
func (m *Metadata) NormalizeTags() {
	seen := make(map[string]bool, len(m.Tags))
	out := m.Tags[:0]
	for _, t := range m.Tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	m.Tags = out
}

// clone returns a deep copy of m, used by Block.clone for copy-on-write
// snapshots (spec §9 design notes).
func (m Metadata) clone() Metadata {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	if m.SemanticRole != nil {
		r := *m.SemanticRole
		out.SemanticRole = &r
	}
	if m.TokenCount != nil {
		tc := *m.TokenCount
		out.TokenCount = &tc
	}
	out.Custom = deepCloneJSON(m.Custom).(map[string]any)
	return out
}

// Block is a content-carrying node of the document tree, with metadata
// and its own outgoing semantic edges. A block's containment position
// (who its parent is, and where among siblings) lives in the owning
// Document's structure map, not on the Block itself.
type Block struct {
	ID       BlockId
	Content  Content
	Metadata Metadata
	Edges    []Edge
}

// clone returns a deep copy of b so the engine's copy-on-write snapshots
// never alias mutable state with a committed document (spec §9).
func (b *Block) clone() *Block {
	out := &Block{
		ID:       b.ID,
		Content:  cloneContent(b.Content),
		Metadata: b.Metadata.clone(),
		Edges:    make([]Edge, len(b.Edges)),
	}
	for i, e := range b.Edges {
		out.Edges[i] = e
		if e.Confidence != nil {
			c := *e.Confidence
			out.Edges[i].Confidence = &c
		}
		out.Edges[i].Metadata = deepCloneJSON(e.Metadata)
	}
	return out
}

// findEdge returns the index of the first edge matching (type, target),
// or -1.
func (b *Block) findEdge(edgeType EdgeType, target BlockId) int {
	for i, e := range b.Edges {
		if e.Type == edgeType && e.Target == target {
			return i
		}
	}
	return -1
}

// canonicalize appends this block's canonical byte form: its ID, then its
// content's variant tag and body, then its non-structural metadata
// (label, sorted tags, role, custom map). Wall-clock timestamps (CreatedAt,
// UpdatedAt) are intentionally excluded — they are not part of the
// document's reproducible, cross-run observable state (see DESIGN.md,
// "fingerprint scope" decision).
func (b *Block) canonicalize(w *canonWriter) {
	w.WriteRaw([]byte(b.ID))
	b.Content.canonicalize(w)
	w.WriteString(b.Metadata.Label)
	w.WriteStringSlice(b.Metadata.Tags)
	if b.Metadata.SemanticRole != nil {
		w.WriteBool(true)
		w.WriteString(b.Metadata.SemanticRole.Category)
		w.WriteString(b.Metadata.SemanticRole.Subrole)
	} else {
		w.WriteBool(false)
	}
	w.WriteJSON(b.Metadata.Custom)
}

func cloneContent(c Content) Content {
	out := c
	if c.Text != nil {
		t := *c.Text
		out.Text = &t
	}
	if c.Code != nil {
		cc := *c.Code
		out.Code = &cc
	}
	if c.Table != nil {
		t := TableContent{Columns: append([]Column(nil), c.Table.Columns...)}
		t.Rows = make([][]Cell, len(c.Table.Rows))
		for i, row := range c.Table.Rows {
			t.Rows[i] = append([]Cell(nil), row...)
		}
		out.Table = &t
	}
	if c.Math != nil {
		m := *c.Math
		out.Math = &m
	}
	if c.Media != nil {
		m := *c.Media
		out.Media = &m
	}
	if c.JSON != nil {
		j := JSONContent{Schema: c.JSON.Schema, Value: deepCloneJSON(c.JSON.Value)}
		out.JSON = &j
	}
	if c.Binary != nil {
		b := BinaryContent{MimeType: c.Binary.MimeType, Data: append([]byte(nil), c.Binary.Data...)}
		out.Binary = &b
	}
	if c.Composite != nil {
		comp := CompositeContent{Kind: c.Composite.Kind, Children: append([]BlockId(nil), c.Composite.Children...)}
		out.Composite = &comp
	}
	return out
}

// deepCloneJSON deep-copies a decoded-JSON value tree (maps, slices,
// scalars) so mutations to a clone never alias the original.
func deepCloneJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = deepCloneJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = deepCloneJSON(vv)
		}
		return out
	default:
		return v
	}
}
