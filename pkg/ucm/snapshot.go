package ucm

import (
	"io"
	"log"
	"sort"
	"time"
)

// Snapshot is a named, immutable pre-image of a document, created by the
// CreateSnapshot operation and restorable by RestoreSnapshot (spec §4.1).
type Snapshot struct {
	Name        string
	Description string
	Doc         *Document
	Sequence    uint64 // creation order, used for oldest-evicted-first
	CreatedAt   time.Time
}

// SnapshotInfo is the lightweight view of a Snapshot returned by List:
// everything but the document copy itself, matching the wasm reference
// binding's list() shape (original_source/crates/ucp-wasm/src/snapshot.rs)
// so callers can page through snapshot history without paying to clone
// every retained document.
type SnapshotInfo struct {
	Name            string
	Description     string
	Sequence        uint64
	CreatedAt       time.Time
	DocumentVersion uint64
}

// SnapshotManager holds a bounded set of named snapshots for one document.
// When Create would exceed MaxSnapshots, the oldest snapshot (by Sequence)
// is evicted first, grounded on the reference engine's ring-buffer
// snapshot store (original_source/crates/ucp-wasm/src/snapshot.rs).
type SnapshotManager struct {
	MaxSnapshots int
	byName       map[string]*Snapshot
	nextSeq      uint64
	logger       *log.Logger
}

// NewSnapshotManager builds a manager bounded to maxSnapshots entries. Zero
// or negative means unbounded.
func NewSnapshotManager(maxSnapshots int) *SnapshotManager {
	return NewSnapshotManagerWithLogger(maxSnapshots, log.New(io.Discard, "", 0))
}

// NewSnapshotManagerWithLogger is NewSnapshotManager with an explicit
// logger, used by NewEngine so eviction shares the Engine's logger.
func NewSnapshotManagerWithLogger(maxSnapshots int, logger *log.Logger) *SnapshotManager {
	return &SnapshotManager{MaxSnapshots: maxSnapshots, byName: map[string]*Snapshot{}, logger: logger}
}

// Create stores a deep copy of doc under name, evicting the oldest
// snapshot first if MaxSnapshots would otherwise be exceeded. It fails
// with KindSnapshotExists if name is already taken (spec §4.1
// CreateSnapshot: "name must be unique among existing snapshots").
func (m *SnapshotManager) Create(name, description string, doc *Document) error {
	if _, exists := m.byName[name]; exists {
		return errSnapshotExists(name)
	}
	if m.MaxSnapshots > 0 && len(m.byName) >= m.MaxSnapshots {
		m.evictOldest()
	}
	m.byName[name] = &Snapshot{
		Name:        name,
		Description: description,
		Doc:         doc.Clone(),
		Sequence:    m.nextSeq,
		CreatedAt:   time.Now(),
	}
	m.nextSeq++
	return nil
}

// evictOldest removes the snapshot with the smallest Sequence.
func (m *SnapshotManager) evictOldest() {
	var oldest *Snapshot
	for _, s := range m.byName {
		if oldest == nil || s.Sequence < oldest.Sequence {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.byName, oldest.Name)
		m.logger.Printf("evicted snapshot %q to stay within max_snapshots=%d", oldest.Name, m.MaxSnapshots)
	}
}

// Restore returns a fresh deep copy of the named snapshot's document, or
// KindSnapshotNotFound if name is unknown (spec §4.1 RestoreSnapshot).
func (m *SnapshotManager) Restore(name string) (*Document, error) {
	s, ok := m.byName[name]
	if !ok {
		return nil, errSnapshotNotFound(name)
	}
	return s.Doc.Clone(), nil
}

// Exists reports whether a snapshot is registered under name.
func (m *SnapshotManager) Exists(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// Delete removes the named snapshot. It is a no-op if name is unknown.
func (m *SnapshotManager) Delete(name string) {
	delete(m.byName, name)
}

// Count returns the number of snapshots currently retained.
func (m *SnapshotManager) Count() int {
	return len(m.byName)
}

// List returns every snapshot's lightweight metadata, most-recent-first by
// creation order, without cloning any retained document (spec §4.3
// "list() returns snapshots most-recent first by created_at").
func (m *SnapshotManager) List() []SnapshotInfo {
	out := make([]SnapshotInfo, 0, len(m.byName))
	for _, s := range m.byName {
		out = append(out, SnapshotInfo{
			Name:            s.Name,
			Description:     s.Description,
			Sequence:        s.Sequence,
			CreatedAt:       s.CreatedAt,
			DocumentVersion: s.Doc.Version.Counter,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out
}
