package ucm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docWithChild(t *testing.T) (*Document, BlockId) {
	t.Helper()
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	childID := BlockId("blk_000000000001")
	doc.Blocks[childID] = &Block{ID: childID, Content: NewTextContent("x", FormatPlain)}
	doc.insertChild(doc.Root, childID, nil)
	doc.Structure[childID] = []BlockId{}
	return doc, childID
}

func TestStageStructural_MissingRoot(t *testing.T) {
	doc, _ := docWithChild(t)
	delete(doc.Blocks, doc.Root)

	diags := stageStructural(doc, DefaultBounds)
	require.NotEmpty(t, diags)
	assert.Equal(t, SeverityFatal, diags[0].Severity)
}

func TestStageStructural_OrphanedChildCount(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Structure[doc.Root] = nil // child no longer anyone's child

	diags := stageStructural(doc, DefaultBounds)
	found := false
	for _, d := range diags {
		if d.Code == "UCM2004" && d.BlockID == childID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStageStructural_DuplicateChild(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Structure[doc.Root] = []BlockId{childID, childID}

	diags := stageStructural(doc, DefaultBounds)
	found := false
	for _, d := range diags {
		if d.Code == "UCM2005" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStageAcyclicity_DetectsCycle(t *testing.T) {
	doc, childID := docWithChild(t)
	// Introduce a cycle: child "contains" root.
	doc.Structure[childID] = []BlockId{doc.Root}

	diags := stageAcyclicity(doc, DefaultBounds)
	require.NotEmpty(t, diags)
	assert.Equal(t, "UCM2010", diags[0].Code)
}

func TestStageOrphans_FlagsUnreachableBlock(t *testing.T) {
	doc, _ := docWithChild(t)
	orphanID := BlockId("blk_000000000099")
	doc.Blocks[orphanID] = &Block{ID: orphanID, Content: NewTextContent("x", FormatPlain)}

	diags := stageOrphans(doc, DefaultBounds)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, orphanID, diags[0].BlockID)
}

func TestStageOrphans_SuppressedByAllowOrphans(t *testing.T) {
	doc, _ := docWithChild(t)
	orphanID := BlockId("blk_000000000099")
	doc.Blocks[orphanID] = &Block{ID: orphanID, Content: NewTextContent("x", FormatPlain)}

	bounds := DefaultBounds
	bounds.AllowOrphans = true
	assert.Empty(t, stageOrphans(doc, bounds))
}

func TestStageBounds_MaxBlocksExceeded(t *testing.T) {
	doc, _ := docWithChild(t)
	bounds := Bounds{MaxBlocks: 1, MaxDepth: 256, MaxEdgesPerBlock: 1000}

	diags := stageBounds(doc, bounds)
	require.NotEmpty(t, diags)
	assert.Equal(t, "UCM2030", diags[0].Code)
}

func TestStageBounds_MaxDepthExceeded(t *testing.T) {
	doc, childID := docWithChild(t)
	grandchildID := BlockId("blk_000000000002")
	doc.Blocks[grandchildID] = &Block{ID: grandchildID, Content: NewTextContent("y", FormatPlain)}
	doc.insertChild(childID, grandchildID, nil)
	bounds := Bounds{MaxBlocks: 100, MaxDepth: 1, MaxEdgesPerBlock: 1000}

	diags := stageBounds(doc, bounds)
	found := false
	for _, d := range diags {
		if d.Code == "UCM2031" && d.BlockID == grandchildID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStageBounds_MaxEdgesPerBlockExceeded(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Blocks[childID].Edges = []Edge{{Type: EdgeReferences, Target: doc.Root}, {Type: EdgeDependsOn, Target: doc.Root}}
	bounds := Bounds{MaxBlocks: 100, MaxDepth: 256, MaxEdgesPerBlock: 1}

	diags := stageBounds(doc, bounds)
	found := false
	for _, d := range diags {
		if d.Code == "UCM2032" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStageEdgeIntegrity_DanglingTarget(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Blocks[childID].Edges = []Edge{{Type: EdgeReferences, Target: "blk_ffffffffffff"}}
	doc.RebuildEdgeIndex()

	diags := stageEdgeIntegrity(doc, DefaultBounds)
	found := false
	for _, d := range diags {
		if d.Code == "UCM2040" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStageEdgeIntegrity_StaleIndex(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Blocks[childID].Edges = []Edge{{Type: EdgeReferences, Target: doc.Root}}
	// Deliberately don't rebuild EdgeIdx: it stays stale relative to Blocks.

	diags := stageEdgeIntegrity(doc, DefaultBounds)
	assert.NotEmpty(t, diags)
}

func TestStageMetadata_DuplicateTagAndBadRole(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Blocks[childID].Metadata.Tags = []string{"a", "a"}
	doc.Blocks[childID].Metadata.SemanticRole = &SemanticRole{Category: "not-a-real-category"}

	diags := stageMetadata(doc, DefaultBounds)
	var codes []string
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, "UCM2050")
	assert.Contains(t, codes, "UCM2051")
}

func TestValidationPipeline_ValidOnlyFalseOnFatal(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Blocks[childID].Metadata.Tags = []string{"a", "a"} // warning only

	result := NewValidationPipeline().Validate(doc, DefaultBounds)
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Diagnostics)
}

func TestValidationPipeline_InvalidOnFatal(t *testing.T) {
	doc, childID := docWithChild(t)
	doc.Blocks[childID].Metadata.SemanticRole = &SemanticRole{Category: "bogus"}

	result := NewValidationPipeline().Validate(doc, DefaultBounds)
	assert.False(t, result.Valid)
}
