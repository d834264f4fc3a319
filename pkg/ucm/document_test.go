package ucm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument_RootOnly(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	require.True(t, doc.Exists(doc.Root))
	assert.Len(t, doc.Blocks, 1)
	assert.Empty(t, doc.Children(doc.Root))
	assert.Equal(t, uint64(0), doc.Version.Counter)
}

func TestDocument_InsertChild_OrderAndIndex(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.insertChild(doc.Root, "blk_000000000001", nil)
	doc.insertChild(doc.Root, "blk_000000000002", nil)

	zero := 0
	doc.insertChild(doc.Root, "blk_000000000003", &zero)

	assert.Equal(t, []BlockId{"blk_000000000003", "blk_000000000001", "blk_000000000002"}, doc.Children(doc.Root))

	parent, ok := doc.ParentOf("blk_000000000003")
	assert.True(t, ok)
	assert.Equal(t, doc.Root, parent)
}

func TestDocument_RemoveChild(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.insertChild(doc.Root, "blk_000000000001", nil)
	doc.insertChild(doc.Root, "blk_000000000002", nil)

	doc.removeChild("blk_000000000001")
	assert.Equal(t, []BlockId{"blk_000000000002"}, doc.Children(doc.Root))
	_, ok := doc.ParentOf("blk_000000000001")
	assert.False(t, ok)

	doc.removeChild("blk_000000000099") // no parent recorded: no-op
}

func TestDocument_IsDescendant(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.insertChild(doc.Root, "blk_000000000001", nil)
	doc.insertChild("blk_000000000001", "blk_000000000002", nil)

	assert.True(t, doc.IsDescendant(doc.Root, doc.Root))
	assert.True(t, doc.IsDescendant(doc.Root, "blk_000000000002"))
	assert.False(t, doc.IsDescendant("blk_000000000002", doc.Root))
	assert.False(t, doc.IsDescendant("blk_000000000001", "blk_000000000099"))
}

func TestDocument_Subtree_PreOrder(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.insertChild(doc.Root, "blk_000000000001", nil)
	doc.insertChild(doc.Root, "blk_000000000002", nil)
	doc.insertChild("blk_000000000001", "blk_000000000003", nil)

	assert.Equal(t,
		[]BlockId{doc.Root, "blk_000000000001", "blk_000000000003", "blk_000000000002"},
		doc.Subtree(doc.Root))
}

func TestDocument_RebuildParentIndex(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.Structure[doc.Root] = []BlockId{"blk_000000000001"}
	doc.Blocks["blk_000000000001"] = &Block{ID: "blk_000000000001", Content: NewTextContent("x", FormatPlain)}
	doc.Structure["blk_000000000001"] = []BlockId{}

	doc.RebuildParentIndex()
	parent, ok := doc.ParentOf("blk_000000000001")
	require.True(t, ok)
	assert.Equal(t, doc.Root, parent)
}

func TestDocument_RebuildEdgeIndex(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.insertChild(doc.Root, "blk_000000000001", nil)
	doc.Blocks["blk_000000000001"] = &Block{
		ID:      "blk_000000000001",
		Content: NewTextContent("x", FormatPlain),
		Edges:   []Edge{{Type: EdgeReferences, Target: doc.Root}},
	}

	doc.RebuildEdgeIndex()
	refs := doc.EdgeIdx[doc.Root]
	require.Len(t, refs, 1)
	assert.Equal(t, BlockId("blk_000000000001"), refs[0].Source)
}

func TestDocument_Clone_DeepCopy(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.insertChild(doc.Root, "blk_000000000001", nil)
	doc.Blocks["blk_000000000001"] = &Block{
		ID:      "blk_000000000001",
		Content: NewTextContent("original", FormatPlain),
		Metadata: Metadata{
			Custom: map[string]any{"k": "v"},
		},
	}
	doc.RebuildEdgeIndex()

	clone := doc.Clone()
	clone.Blocks["blk_000000000001"].Content.Text.Text = "changed"
	clone.Structure[doc.Root] = append(clone.Structure[doc.Root], "blk_000000000002")
	clone.Metadata.Custom["k"] = "changed"

	assert.Equal(t, "original", doc.Blocks["blk_000000000001"].Content.Text.Text)
	assert.Len(t, doc.Structure[doc.Root], 1)
	assert.Equal(t, "v", doc.Metadata.Custom["k"])
}
