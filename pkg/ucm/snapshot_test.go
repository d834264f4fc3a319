package ucm

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotManager_CreateAndRestore(t *testing.T) {
	mgr := NewSnapshotManager(10)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")

	require.NoError(t, mgr.Create("v1", "first cut", doc))
	assert.True(t, mgr.Exists("v1"))
	assert.Equal(t, 1, mgr.Count())

	restored, err := mgr.Restore("v1")
	require.NoError(t, err)
	assert.Equal(t, doc.Root, restored.Root)
}

func TestSnapshotManager_CreateDuplicateNameFails(t *testing.T) {
	mgr := NewSnapshotManager(10)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")

	require.NoError(t, mgr.Create("v1", "", doc))
	err := mgr.Create("v1", "", doc)
	assert.Error(t, err)
}

func TestSnapshotManager_RestoreUnknownFails(t *testing.T) {
	mgr := NewSnapshotManager(10)
	_, err := mgr.Restore("missing")
	assert.Error(t, err)
}

func TestSnapshotManager_RestoreIsIndependentCopy(t *testing.T) {
	mgr := NewSnapshotManager(10)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	require.NoError(t, mgr.Create("v1", "", doc))

	restored, err := mgr.Restore("v1")
	require.NoError(t, err)
	restored.Blocks[doc.Root].Metadata.Label = "mutated"

	again, err := mgr.Restore("v1")
	require.NoError(t, err)
	assert.Empty(t, again.Blocks[doc.Root].Metadata.Label)
}

func TestSnapshotManager_EvictsOldestWhenBoundExceeded(t *testing.T) {
	mgr := NewSnapshotManager(2)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")

	require.NoError(t, mgr.Create("v1", "", doc))
	require.NoError(t, mgr.Create("v2", "", doc))
	require.NoError(t, mgr.Create("v3", "", doc))

	assert.Equal(t, 2, mgr.Count())
	assert.False(t, mgr.Exists("v1"), "oldest snapshot should have been evicted")
	assert.True(t, mgr.Exists("v2"))
	assert.True(t, mgr.Exists("v3"))
}

func TestSnapshotManager_ListOrderedMostRecentFirst(t *testing.T) {
	mgr := NewSnapshotManager(10)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")

	require.NoError(t, mgr.Create("first", "", doc))
	require.NoError(t, mgr.Create("second", "", doc))
	require.NoError(t, mgr.Create("third", "", doc))

	list := mgr.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestSnapshotManager_ListIncludesDocumentVersion(t *testing.T) {
	mgr := NewSnapshotManager(10)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	doc.Version.Counter = 7

	require.NoError(t, mgr.Create("v1", "", doc))
	list := mgr.List()
	require.Len(t, list, 1)
	assert.Equal(t, uint64(7), list[0].DocumentVersion)
	assert.False(t, list[0].CreatedAt.IsZero())
}

func TestSnapshotManager_EvictionIsLogged(t *testing.T) {
	var buf bytes.Buffer
	mgr := NewSnapshotManagerWithLogger(1, log.New(&buf, "", 0))
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")

	require.NoError(t, mgr.Create("v1", "", doc))
	require.NoError(t, mgr.Create("v2", "", doc))

	assert.Contains(t, buf.String(), "v1")
}

func TestSnapshotManager_DeleteAndCount(t *testing.T) {
	mgr := NewSnapshotManager(10)
	doc := NewDocument(NewDocumentID([]byte("seed"), nil), "1")
	require.NoError(t, mgr.Create("v1", "", doc))

	mgr.Delete("v1")
	assert.False(t, mgr.Exists("v1"))
	assert.Equal(t, 0, mgr.Count())

	mgr.Delete("never-existed") // no-op, must not panic
}
