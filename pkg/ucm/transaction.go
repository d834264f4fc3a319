package ucm

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Transaction errors.
var (
	ErrTransactionClosed = errors.New("transaction already closed")
	ErrTransactionActive = errors.New("transaction already active")
)

// TransactionStatus is a Transaction's position in its state machine:
// Pending -> Active -> {Committed, RolledBack, Failed} (spec §4.1 "atomic
// batches").
type TransactionStatus string

const (
	TxPending    TransactionStatus = "pending"
	TxActive     TransactionStatus = "active"
	TxCommitted  TransactionStatus = "committed"
	TxRolledBack TransactionStatus = "rolled_back"
	TxFailed     TransactionStatus = "failed"
)

// Transaction is one atomic batch: a pre-image of the document taken at
// Begin, the ordered operations applied directly to the live document, and the
// final commit/rollback decision. Mirrors the buffer-then-apply shape of
// the reference storage engine's transaction type, adapted from
// per-node CRUD buffering to a whole-document pre-image because Engine's
// atomic batches validate the result as a unit rather than operation by
// operation.
type Transaction struct {
	mu sync.Mutex

	ID        string
	StartTime time.Time
	Status    TransactionStatus

	preImage *Document
	working  *Document
	applied  []OperationResult
	Metadata map[string]any
}

var txSeq uint64
var txSeqMu sync.Mutex

func nextTxID() string {
	txSeqMu.Lock()
	defer txSeqMu.Unlock()
	txSeq++
	return fmt.Sprintf("tx-%d", txSeq)
}

// TransactionManager begins and tracks transactions against a document.
// Grounded on the reference storage engine's transaction.go, adapted to
// guard a single Document rather than a MemoryEngine's node/edge maps.
type TransactionManager struct {
	mu  sync.Mutex
	doc *Document
	eng *Engine
}

// NewTransactionManager binds a manager to the document an Engine will
// mutate.
func NewTransactionManager(doc *Document, eng *Engine) *TransactionManager {
	return &TransactionManager{doc: doc, eng: eng}
}

// Begin opens a new transaction, capturing doc's pre-image so Rollback can
// restore it exactly (spec §4.1: "an atomic batch that fails validation
// leaves the document exactly as it was before the batch began").
func (tm *TransactionManager) Begin() *Transaction {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return &Transaction{
		ID:        nextTxID(),
		StartTime: time.Now(),
		Status:    TxActive,
		preImage:  tm.doc.Clone(),
		working:   tm.doc,
		Metadata:  map[string]any{},
	}
}

// Apply runs one operation against the transaction's working document,
// buffering its result. A failed operation does not itself close the
// transaction; the caller decides whether to Commit or Rollback.
func (tx *Transaction) Apply(eng *Engine, op Operation) OperationResult {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.Status != TxActive {
		return opFailure(fmt.Errorf("%w: status is %s", ErrTransactionClosed, tx.Status))
	}
	result := eng.apply(tx.working, op)
	tx.applied = append(tx.applied, result)
	return result
}

// Commit validates the working document and, if it passes, leaves it in
// place as the new committed state. On validation failure the working
// document is rolled back to the pre-image and Status becomes Failed,
// matching the all-or-nothing semantics of Engine.ExecuteAtomic.
func (tx *Transaction) Commit(eng *Engine) ValidationResult {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.Status != TxActive {
		return ValidationResult{Valid: false, Diagnostics: []Diagnostic{
			diag(SeverityFatal, "UCM2099", "", "cannot commit: status is %s", tx.Status),
		}}
	}

	result := eng.validator().Validate(tx.working, eng.bounds())
	if !result.Valid {
		tx.restoreWorkingLocked()
		tx.Status = TxFailed
		return result
	}
	tx.Status = TxCommitted
	return result
}

// Rollback discards every change made since Begin, restoring the
// document's pre-image in place.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.Status != TxActive {
		return ErrTransactionClosed
	}
	tx.restoreWorkingLocked()
	tx.Status = TxRolledBack
	return nil
}

// restoreWorkingLocked copies the pre-image back over the working
// document's fields in place, so callers holding the original *Document
// pointer observe the rollback. Must be called with tx.mu held.
func (tx *Transaction) restoreWorkingLocked() {
	fresh := tx.preImage.Clone()
	tx.working.Blocks = fresh.Blocks
	tx.working.Structure = fresh.Structure
	tx.working.EdgeIdx = fresh.EdgeIdx
	tx.working.Metadata = fresh.Metadata
	tx.working.Version = fresh.Version
	tx.working.RebuildParentIndex()
}

// Results returns every OperationResult buffered by Apply so far.
func (tx *Transaction) Results() []OperationResult {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return append([]OperationResult(nil), tx.applied...)
}

// SetMetadata merges extra key/value pairs into the transaction's
// metadata, used only for caller-side logging and diagnostics.
func (tx *Transaction) SetMetadata(metadata map[string]any) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.Status != TxActive {
		return ErrTransactionClosed
	}
	for k, v := range metadata {
		tx.Metadata[k] = v
	}
	return nil
}
