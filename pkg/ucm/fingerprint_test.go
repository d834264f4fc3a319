package ucm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultBounds, 10)
}

func TestFingerprint_StableAcrossMapIterationOrder(t *testing.T) {
	doc1 := NewDocument(NewDocumentID([]byte("doc-a"), nil), "1")
	doc2 := NewDocument(NewDocumentID([]byte("doc-a"), nil), "1")

	eng := newTestEngine()
	for i, label := range []string{"alpha", "beta", "gamma", "delta"} {
		op := NewAppendOperation(doc1.Root, NewTextContent(label, FormatPlain), label, nil, nil, nil)
		result := eng.Execute(doc1, op)
		require.True(t, result.Success)
		_ = i

		op2 := NewAppendOperation(doc2.Root, NewTextContent(label, FormatPlain), label, nil, nil, nil)
		result2 := eng.Execute(doc2, op2)
		require.True(t, result2.Success)
	}

	assert.Equal(t, Fingerprint(doc1), Fingerprint(doc2))
}

func TestFingerprint_ChangesOnContentEdit(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("doc-b"), nil), "1")
	eng := newTestEngine()

	appendResult := eng.Execute(doc, NewAppendOperation(doc.Root, NewTextContent("v1", FormatPlain), "", nil, nil, nil))
	require.True(t, appendResult.Success)
	before := Fingerprint(doc)

	blockID := appendResult.AffectedBlocks[0]
	editResult := eng.Execute(doc, NewEditOperation(blockID, "content.text", "v2", EditSet))
	require.True(t, editResult.Success)
	after := Fingerprint(doc)

	assert.NotEqual(t, before, after)
}

func TestFingerprint_IgnoresTimestamps(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("doc-c"), nil), "1")
	before := Fingerprint(doc)

	doc.Blocks[doc.Root].Metadata.CreatedAt = doc.Blocks[doc.Root].Metadata.CreatedAt.Add(1)
	after := Fingerprint(doc)

	assert.Equal(t, before, after, "wall-clock timestamps must not affect the fingerprint")
}

func TestFingerprint_RoundTripThroughClone(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("doc-d"), nil), "1")
	eng := newTestEngine()
	require.True(t, eng.Execute(doc, NewAppendOperation(doc.Root, NewTextContent("x", FormatPlain), "", nil, nil, nil)).Success)

	clone := doc.Clone()
	assert.Equal(t, Fingerprint(doc), Fingerprint(clone))
}
