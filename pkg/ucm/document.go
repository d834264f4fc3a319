package ucm

import (
	"sort"
	"time"
)

// sortBlockIDs sorts ids ascending by their lexicographic (string) value,
// the order spec §4.5 requires when walking blocks for the fingerprint.
func sortBlockIDs(ids []BlockId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Version tracks a document's monotonic commit counter (spec §3 invariant
// 6: "version.counter is strictly monotonic across committed operations").
type Version struct {
	Counter   uint64
	UpdatedAt time.Time
}

// DocumentMetadata carries a document's descriptive attributes.
type DocumentMetadata struct {
	Title         string // empty means unset
	Description   string // empty means unset
	SchemaVersion string
	Custom        map[string]any
}

// EdgeRef is one entry of an EdgeIndex: the source block that holds the
// edge, and the edge itself.
type EdgeRef struct {
	Source BlockId
	Edge   Edge
}

// EdgeIndex is the derived reverse index target_id -> [(source_id, edge)]
// described in spec §3. It must always equal the recomputation of edges
// from the block map (invariant 5); RebuildEdgeIndex enforces this.
type EdgeIndex map[BlockId][]EdgeRef

// Document is a rooted tree of blocks (the structure map) augmented with
// a secondary edge graph for semantic cross-references (spec §3).
type Document struct {
	ID        DocumentId
	Root      BlockId
	Blocks    map[BlockId]*Block
	Structure map[BlockId][]BlockId
	EdgeIdx   EdgeIndex
	Metadata  DocumentMetadata
	Version   Version

	// parentOf is an internal derived index (child -> parent), kept in
	// lock-step with Structure by every mutating method on Document. It
	// is not part of the spec's data model; it exists so Engine
	// operations (Move's cycle check, Delete's re-parenting) don't pay
	// an O(blocks) scan for "who is this block's parent".
	parentOf map[BlockId]BlockId
}

// NewDocument creates a document containing only its reserved root block.
func NewDocument(id DocumentId, schemaVersion string) *Document {
	now := time.Now()
	doc := &Document{
		ID:   id,
		Root: RootBlockID,
		Blocks: map[BlockId]*Block{
			RootBlockID: {
				ID:      RootBlockID,
				Content: NewCompositeContent("root", nil),
				Metadata: Metadata{
					CreatedAt: now,
					UpdatedAt: now,
					Custom:    map[string]any{},
				},
			},
		},
		Structure: map[BlockId][]BlockId{RootBlockID: {}},
		EdgeIdx:   EdgeIndex{},
		Metadata: DocumentMetadata{
			SchemaVersion: schemaVersion,
			Custom:        map[string]any{},
		},
		Version:  Version{Counter: 0, UpdatedAt: now},
		parentOf: map[BlockId]BlockId{},
	}
	return doc
}

// ParentOf returns the parent of id and whether id has one (the root does
// not).
func (d *Document) ParentOf(id BlockId) (BlockId, bool) {
	p, ok := d.parentOf[id]
	return p, ok
}

// Exists reports whether id names a block in this document.
func (d *Document) Exists(id BlockId) bool {
	_, ok := d.Blocks[id]
	return ok
}

// Children returns id's ordered children slice. It is empty if id has
// none, and nil if id has no structure entry or does not exist.
func (d *Document) Children(id BlockId) []BlockId {
	return d.Structure[id]
}

// IsDescendant reports whether candidate is id itself or appears anywhere
// below id in the containment tree. Used by Move's cycle check (spec
// §4.1: "new_parent is a descendant of block_id (or equal)").
func (d *Document) IsDescendant(id, candidate BlockId) bool {
	if id == candidate {
		return true
	}
	for _, child := range d.Structure[id] {
		if d.IsDescendant(child, candidate) {
			return true
		}
	}
	return false
}

// Subtree returns id and every block reachable below it via Structure, in
// pre-order.
func (d *Document) Subtree(id BlockId) []BlockId {
	out := []BlockId{id}
	for _, child := range d.Structure[id] {
		out = append(out, d.Subtree(child)...)
	}
	return out
}

// insertChild places child into parent's children slice at index (or at
// the end if index is nil), and records the reverse parentOf link.
func (d *Document) insertChild(parent, child BlockId, index *int) {
	siblings := d.Structure[parent]
	pos := len(siblings)
	if index != nil {
		pos = *index
	}
	if pos > len(siblings) {
		pos = len(siblings)
	}
	siblings = append(siblings, "")
	copy(siblings[pos+1:], siblings[pos:])
	siblings[pos] = child
	d.Structure[parent] = siblings
	d.parentOf[child] = parent
}

// removeChild deletes child from its parent's children slice and drops
// its parentOf entry. It is a no-op if child has no recorded parent.
func (d *Document) removeChild(child BlockId) {
	parent, ok := d.parentOf[child]
	if !ok {
		return
	}
	siblings := d.Structure[parent]
	for i, c := range siblings {
		if c == child {
			d.Structure[parent] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	delete(d.parentOf, child)
}

// RebuildParentIndex recomputes parentOf from Structure. Exposed so
// PortableDocument.ToDocument (which starts from an explicit structure
// list, not incremental inserts) can build it once after decoding.
func (d *Document) RebuildParentIndex() {
	d.parentOf = make(map[BlockId]BlockId, len(d.Blocks))
	for parent, children := range d.Structure {
		for _, child := range children {
			d.parentOf[child] = parent
		}
	}
}

// RebuildEdgeIndex recomputes EdgeIdx from the edges embedded in every
// block, per spec §3 ("edge_index is a derived view, always consistent
// with the sum of every block's edges").
func (d *Document) RebuildEdgeIndex() {
	idx := EdgeIndex{}
	for _, id := range d.sortedBlockIDs() {
		block := d.Blocks[id]
		for _, e := range block.Edges {
			idx[e.Target] = append(idx[e.Target], EdgeRef{Source: id, Edge: e})
		}
	}
	d.EdgeIdx = idx
}

// sortedBlockIDs returns every block id in ascending lexicographic order,
// the iteration order spec §4.5 requires for the fingerprint and that
// this package uses everywhere else a deterministic block order matters.
func (d *Document) sortedBlockIDs() []BlockId {
	ids := make([]BlockId, 0, len(d.Blocks))
	for id := range d.Blocks {
		ids = append(ids, id)
	}
	sortBlockIDs(ids)
	return ids
}

// Clone returns a deep copy of d that shares no mutable state with the
// original — the "simple correct implementation" of copy-on-write the
// spec's design notes call for (§9), used both for atomic-batch pre-
// images and for SnapshotManager.
func (d *Document) Clone() *Document {
	out := &Document{
		ID:       d.ID,
		Root:     d.Root,
		Blocks:   make(map[BlockId]*Block, len(d.Blocks)),
		Structure: make(map[BlockId][]BlockId, len(d.Structure)),
		parentOf: make(map[BlockId]BlockId, len(d.parentOf)),
		Version:  d.Version,
		Metadata: DocumentMetadata{
			Title:         d.Metadata.Title,
			Description:   d.Metadata.Description,
			SchemaVersion: d.Metadata.SchemaVersion,
			Custom:        deepCloneJSON(d.Metadata.Custom).(map[string]any),
		},
	}
	for id, b := range d.Blocks {
		out.Blocks[id] = b.clone()
	}
	for parent, children := range d.Structure {
		out.Structure[parent] = append([]BlockId(nil), children...)
	}
	for child, parent := range d.parentOf {
		out.parentOf[child] = parent
	}
	out.RebuildEdgeIndex()
	return out
}
