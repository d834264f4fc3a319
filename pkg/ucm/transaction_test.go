package ucm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_BeginApplyCommit(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	assert.Equal(t, TxActive, tx.Status)

	result := tx.Apply(eng, NewAppendOperation(doc.Root, NewTextContent("hi", FormatPlain), "", nil, nil, nil))
	require.True(t, result.Success)

	vr := tx.Commit(eng)
	assert.True(t, vr.Valid)
	assert.Equal(t, TxCommitted, tx.Status)
	assert.Len(t, doc.Children(doc.Root), 1)
}

func TestTransaction_RollbackRestoresPreImage(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	result := tx.Apply(eng, NewAppendOperation(doc.Root, NewTextContent("hi", FormatPlain), "", nil, nil, nil))
	require.True(t, result.Success)
	require.Len(t, doc.Children(doc.Root), 1)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, TxRolledBack, tx.Status)
	assert.Empty(t, doc.Children(doc.Root))
}

func TestTransaction_ApplyAfterCloseFails(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	require.NoError(t, tx.Rollback())

	result := tx.Apply(eng, NewAppendOperation(doc.Root, NewTextContent("hi", FormatPlain), "", nil, nil, nil))
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrTransactionClosed)
}

func TestTransaction_CommitAfterCloseFails(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	require.NoError(t, tx.Rollback())

	vr := tx.Commit(eng)
	assert.False(t, vr.Valid)
}

func TestTransaction_CommitRollsBackOnInvalidResult(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	appendResult := tx.Apply(eng, NewAppendOperation(doc.Root, NewTextContent("hi", FormatPlain), "", nil, nil, nil))
	require.True(t, appendResult.Success)
	blockID := appendResult.AffectedBlocks[0]

	// Force an invalid state directly on the working document: an
	// unknown semantic_role.category, which stageMetadata rejects.
	tx.working.Blocks[blockID].Metadata.SemanticRole = &SemanticRole{Category: "not-real"}

	vr := tx.Commit(eng)
	assert.False(t, vr.Valid)
	assert.Equal(t, TxFailed, tx.Status)
	assert.Empty(t, doc.Children(doc.Root), "failed commit must restore the pre-image")
}

func TestTransaction_SetMetadata(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	require.NoError(t, tx.SetMetadata(map[string]any{"actor": "test-suite"}))
	assert.Equal(t, "test-suite", tx.Metadata["actor"])

	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.SetMetadata(map[string]any{"x": 1}), ErrTransactionClosed)
}

func TestTransaction_ResultsAccumulate(t *testing.T) {
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	eng := NewEngine(DefaultBounds, 10)
	tm := NewTransactionManager(doc, eng)

	tx := tm.Begin()
	tx.Apply(eng, NewAppendOperation(doc.Root, NewTextContent("a", FormatPlain), "", nil, nil, nil))
	tx.Apply(eng, NewAppendOperation(doc.Root, NewTextContent("b", FormatPlain), "", nil, nil, nil))

	assert.Len(t, tx.Results(), 2)
}
