package ucm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// fingerprintMagic is the literal tag written first in every canonical
// byte stream (spec §4.5 step 1).
const fingerprintMagic = "UCM\x01"

// Fingerprint computes the canonical, deterministic 256-bit digest of a
// document's observable state (spec §4.5). It is identical for
// structurally equal documents across runs and across the portable
// round-trip, and independent of Go's map iteration order.
func Fingerprint(doc *Document) string {
	w := newCanonWriter()

	w.WriteRaw([]byte(fingerprintMagic))
	w.WriteString(doc.Metadata.SchemaVersion)
	w.WriteRaw([]byte(doc.Root))

	for _, id := range doc.sortedBlockIDs() {
		doc.Blocks[id].canonicalize(w)
	}

	writeStructure(w, doc)
	writeEdges(w, doc)
	writeDocMetadata(w, doc)

	sum := sha256.Sum256(w.Bytes())
	return hex.EncodeToString(sum[:])
}

// writeStructure emits (parent_id, count, child_ids in declared order)
// for every parent in ascending id order (spec §4.5 step 5). Sibling
// order is observable and preserved verbatim.
func writeStructure(w *canonWriter, doc *Document) {
	parents := make([]BlockId, 0, len(doc.Structure))
	for p := range doc.Structure {
		parents = append(parents, p)
	}
	sortBlockIDs(parents)

	w.WriteUvarint(uint64(len(parents)))
	for _, parent := range parents {
		children := doc.Structure[parent]
		w.WriteRaw([]byte(parent))
		w.WriteUvarint(uint64(len(children)))
		for _, child := range children {
			w.WriteRaw([]byte(child))
		}
	}
}

// writeEdges flattens every block's edges to (source, type, target,
// metadata, confidence) tuples sorted by (source, type, target) and
// writes them (spec §4.5 step 6). Confidence is an extension beyond the
// tuple shape spec.md names explicitly, included so two edges that only
// differ in confidence still fingerprint differently.
func writeEdges(w *canonWriter, doc *Document) {
	type tuple struct {
		source BlockId
		typ    string
		target BlockId
		edge   Edge
	}
	var tuples []tuple
	for _, id := range doc.sortedBlockIDs() {
		for _, e := range doc.Blocks[id].Edges {
			tuples = append(tuples, tuple{source: id, typ: e.Type.String(), target: e.Target, edge: e})
		}
	}
	sort.Slice(tuples, func(i, j int) bool {
		if tuples[i].source != tuples[j].source {
			return tuples[i].source < tuples[j].source
		}
		if tuples[i].typ != tuples[j].typ {
			return tuples[i].typ < tuples[j].typ
		}
		return tuples[i].target < tuples[j].target
	})

	w.WriteUvarint(uint64(len(tuples)))
	for _, t := range tuples {
		w.WriteRaw([]byte(t.source))
		w.WriteString(t.typ)
		w.WriteRaw([]byte(t.target))
		w.WriteJSON(t.edge.Metadata)
		if t.edge.Confidence != nil {
			w.WriteBool(true)
			w.WriteFloat64(float64(*t.edge.Confidence))
		} else {
			w.WriteBool(false)
		}
	}
}

// writeDocMetadata emits the document's own metadata (spec §4.5 step 7).
// SchemaVersion was already written in step 2 and is not repeated here.
func writeDocMetadata(w *canonWriter, doc *Document) {
	w.WriteString(doc.Metadata.Title)
	w.WriteString(doc.Metadata.Description)
	w.WriteJSON(doc.Metadata.Custom)
}
