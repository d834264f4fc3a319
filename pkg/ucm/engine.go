package ucm

import (
	"io"
	"log"
	"strings"
	"time"

	"github.com/orneryd/ucm/pkg/convert"
)

// Engine applies Operations to a Document, validating every result before
// it is considered committed (spec §4.1 "Engine"). The zero value is not
// usable; build one with NewEngine.
type Engine struct {
	Bounds    Bounds
	Snapshots *SnapshotManager
	Logger    *log.Logger
	pipeline  *ValidationPipeline
	idExists  func(*Document, BlockId) bool
}

// NewEngine builds an Engine with the given resource bounds and a fresh
// snapshot store bounded to maxSnapshots. Logger defaults to discarding
// output; set Engine.Logger directly to observe rolled-back batches and
// snapshot evictions.
func NewEngine(bounds Bounds, maxSnapshots int) *Engine {
	logger := log.New(io.Discard, "", 0)
	return &Engine{
		Bounds:    bounds,
		Snapshots: NewSnapshotManagerWithLogger(maxSnapshots, logger),
		Logger:    logger,
		pipeline:  NewValidationPipeline(),
		idExists:  func(doc *Document, id BlockId) bool { return doc.Exists(id) },
	}
}

func (e *Engine) validator() *ValidationPipeline { return e.pipeline }
func (e *Engine) bounds() Bounds                 { return e.Bounds }

// Execute applies a single operation to doc in place and validates the
// result, rolling the document back to its pre-operation state if
// validation fails (spec §4.1: "a non-atomic Execute call that fails
// validation still leaves the document unchanged").
func (e *Engine) Execute(doc *Document, op Operation) OperationResult {
	pre := doc.Clone()
	result := e.apply(doc, op)
	if !result.Success {
		return result
	}

	v := e.pipeline.Validate(doc, e.Bounds)
	if !v.Valid {
		restoreInPlace(doc, pre)
		e.logger().Printf("rolled back %s: %s", op.Describe(), firstFatal(v.Diagnostics))
		return opFailure(errValidationFailed("operation %q left the document invalid: %s", op.Describe(), firstFatal(v.Diagnostics)))
	}
	return result
}

// logger returns e.Logger, or a discarding logger if Logger is nil.
func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.New(io.Discard, "", 0)
}

// ExecuteAtomic applies every operation in ops against a single working
// copy and either commits all of them or none, per spec §4.1 "atomic
// batches": the document is left exactly as it was before the batch if
// any operation fails or the final result does not validate.
func (e *Engine) ExecuteAtomic(doc *Document, ops []Operation) []OperationResult {
	pre := doc.Clone()
	results := make([]OperationResult, 0, len(ops))

	for _, op := range ops {
		r := e.apply(doc, op)
		results = append(results, r)
		if !r.Success {
			restoreInPlace(doc, pre)
			e.logger().Printf("rolled back batch at %s: %v", op.Describe(), r.Err)
			return results
		}
	}

	v := e.pipeline.Validate(doc, e.Bounds)
	if !v.Valid {
		restoreInPlace(doc, pre)
		e.logger().Printf("rolled back batch of %d operations: %s", len(ops), firstFatal(v.Diagnostics))
		results = append(results, opFailure(errValidationFailed("batch left the document invalid: %s", firstFatal(v.Diagnostics))))
		return results
	}
	return results
}

// restoreInPlace copies pre's fields back onto doc so every outstanding
// pointer to doc observes the rollback, instead of returning a new
// *Document the caller would have to remember to use.
func restoreInPlace(doc, pre *Document) {
	doc.Blocks = pre.Blocks
	doc.Structure = pre.Structure
	doc.EdgeIdx = pre.EdgeIdx
	doc.Metadata = pre.Metadata
	doc.Version = pre.Version
	doc.RebuildParentIndex()
}

func firstFatal(diagnostics []Diagnostic) string {
	for _, d := range diagnostics {
		if d.Severity == SeverityFatal {
			return d.Message
		}
	}
	if len(diagnostics) > 0 {
		return diagnostics[0].Message
	}
	return "no diagnostic detail"
}

// apply dispatches a single operation to its handler and bumps the
// document's version counter on success (spec §3 invariant 6), except for
// CreateSnapshot, which leaves the document untouched.
func (e *Engine) apply(doc *Document, op Operation) OperationResult {
	var result OperationResult
	switch op.Kind {
	case OpEdit:
		result = e.applyEdit(doc, op.Edit)
	case OpMove:
		result = e.applyMove(doc, op.Move)
	case OpAppend:
		result = e.applyAppend(doc, op.Append)
	case OpDelete:
		result = e.applyDelete(doc, op.Delete)
	case OpLink:
		result = e.applyLink(doc, op.Link)
	case OpUnlink:
		result = e.applyUnlink(doc, op.Unlink)
	case OpPrune:
		result = e.applyPrune(doc, op.Prune)
	case OpCreateSnapshot:
		result = e.applyCreateSnapshot(doc, op.CreateSnapshot)
	case OpRestoreSnapshot:
		result = e.applyRestoreSnapshot(doc, op.RestoreSnapshot)
	default:
		return opFailure(errInvalidOperation("unknown operation kind %q", op.Kind))
	}
	if result.Success && op.Kind != OpCreateSnapshot {
		doc.Version.Counter++
	}
	return result
}

// isImmutablePath reports whether path addresses a block's own identifier
// ("id", metadata.custom.id or metadata.custom.block_id); Edit on such a
// path is rejected outright rather than silently
// desynchronizing the document from its own index (spec §9 open
// question: "should Edit be allowed to touch id-bearing fields?" —
// decided no, see DESIGN.md).
func isImmutablePath(path string) bool {
	switch path {
	case "id", "metadata.custom.id", "metadata.custom.block_id":
		return true
	default:
		return false
	}
}

// applyEdit resolves path against block_id and combines it with value
// using Operator (spec §4.1 Edit). Supported paths: metadata.label,
// metadata.tags, metadata.semantic_role.category,
// metadata.semantic_role.subrole, metadata.custom.<key>, and the text-ish
// content bodies (content.text, content.code.source,
// content.math.expression).
func (e *Engine) applyEdit(doc *Document, op *EditOp) OperationResult {
	block, ok := doc.Blocks[op.BlockID]
	if !ok {
		return opFailure(errBlockNotFound(op.BlockID))
	}
	if isImmutablePath(op.Path) {
		return opFailure(errInvalidOperation("path %q addresses an immutable identifier field", op.Path))
	}

	var result OperationResult
	switch {
	case op.Path == "metadata.label":
		result = e.editString(op, &block.Metadata.Label)
	case op.Path == "metadata.tags":
		result = e.editTags(op, block)
	case op.Path == "metadata.semantic_role.category":
		role := ensureRole(block)
		result = e.editString(op, &role.Category)
	case op.Path == "metadata.semantic_role.subrole":
		role := ensureRole(block)
		result = e.editString(op, &role.Subrole)
	case strings.HasPrefix(op.Path, "metadata.custom."):
		key := strings.TrimPrefix(op.Path, "metadata.custom.")
		result = e.editCustom(op, block, key)
	case op.Path == "content.text":
		if block.Content.Text == nil {
			return opFailure(errTypeMismatch(op.BlockID, "block %q is not Text content", op.BlockID))
		}
		result = e.editString(op, &block.Content.Text.Text)
	case op.Path == "content.code.source":
		if block.Content.Code == nil {
			return opFailure(errTypeMismatch(op.BlockID, "block %q is not Code content", op.BlockID))
		}
		result = e.editString(op, &block.Content.Code.Source)
	case op.Path == "content.math.expression":
		if block.Content.Math == nil {
			return opFailure(errTypeMismatch(op.BlockID, "block %q is not Math content", op.BlockID))
		}
		result = e.editString(op, &block.Content.Math.Expression)
	default:
		return opFailure(errPathNotFound(op.BlockID, op.Path))
	}
	if result.Success {
		block.Metadata.UpdatedAt = time.Now()
	}
	return result
}

func ensureRole(block *Block) *SemanticRole {
	if block.Metadata.SemanticRole == nil {
		block.Metadata.SemanticRole = &SemanticRole{}
	}
	return block.Metadata.SemanticRole
}

// editString applies Set/Append/Remove to a string-valued field.
// Increment/Decrement are not meaningful for strings and fail with
// TypeMismatch.
func (e *Engine) editString(op *EditOp, field *string) OperationResult {
	switch op.Operator {
	case EditSet:
		s, ok := op.Value.(string)
		if !ok {
			return opFailure(errTypeMismatch(op.BlockID, "path %q requires a string value", op.Path))
		}
		*field = s
	case EditAppend:
		s, ok := op.Value.(string)
		if !ok {
			return opFailure(errTypeMismatch(op.BlockID, "path %q requires a string value", op.Path))
		}
		*field += s
	case EditRemove:
		*field = ""
	default:
		return opFailure(errTypeMismatch(op.BlockID, "operator %q is not valid for a string field", op.Operator))
	}
	return opSuccess(op.BlockID)
}

// editTags applies Set/Append/Remove to a block's tag list, normalizing
// (dedup + sort) afterwards (spec §3 invariant 7).
func (e *Engine) editTags(op *EditOp, block *Block) OperationResult {
	switch op.Operator {
	case EditSet:
		tags, ok := toStringSlice(op.Value)
		if !ok {
			return opFailure(errTypeMismatch(op.BlockID, "metadata.tags requires a string list"))
		}
		block.Metadata.Tags = tags
	case EditAppend:
		tag, ok := op.Value.(string)
		if !ok {
			return opFailure(errTypeMismatch(op.BlockID, "metadata.tags append requires a single string"))
		}
		block.Metadata.Tags = append(block.Metadata.Tags, tag)
	case EditRemove:
		tag, ok := op.Value.(string)
		if !ok {
			return opFailure(errTypeMismatch(op.BlockID, "metadata.tags remove requires a single string"))
		}
		out := block.Metadata.Tags[:0]
		for _, t := range block.Metadata.Tags {
			if t != tag {
				out = append(out, t)
			}
		}
		block.Metadata.Tags = out
	default:
		return opFailure(errTypeMismatch(op.BlockID, "operator %q is not valid for metadata.tags", op.Operator))
	}
	block.Metadata.NormalizeTags()
	return opSuccess(op.BlockID)
}

func toStringSlice(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...), true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// editCustom applies any EditOperator to a metadata.custom entry. Numeric
// operators coerce both the existing and new value through pkg/convert,
// so "increment a counter stored as JSON" behaves the same whether a
// number arrives as a float64, an int, or a numeric string.
func (e *Engine) editCustom(op *EditOp, block *Block, key string) OperationResult {
	if block.Metadata.Custom == nil {
		block.Metadata.Custom = map[string]any{}
	}
	switch op.Operator {
	case EditSet:
		block.Metadata.Custom[key] = op.Value
	case EditRemove:
		delete(block.Metadata.Custom, key)
	case EditAppend:
		existing, ok := block.Metadata.Custom[key].(string)
		addition, okVal := op.Value.(string)
		if !ok || !okVal {
			return opFailure(errTypeMismatch(op.BlockID, "append on %q requires existing and new values to be strings", op.Path))
		}
		block.Metadata.Custom[key] = existing + addition
	case EditIncrement, EditDecrement:
		cur, ok := convert.ToFloat64(block.Metadata.Custom[key])
		if !ok {
			cur = 0
		}
		delta, ok := convert.ToFloat64(op.Value)
		if !ok {
			return opFailure(errNumericRange(op.BlockID, "path %q requires a numeric value", op.Path))
		}
		if op.Operator == EditDecrement {
			delta = -delta
		}
		block.Metadata.Custom[key] = cur + delta
	default:
		return opFailure(errTypeMismatch(op.BlockID, "unknown operator %q", op.Operator))
	}
	return opSuccess(op.BlockID)
}

// applyMove reparents block_id under new_parent at the given sibling
// index, rejecting attempts that would make a block its own ancestor
// (spec §4.1 Move).
func (e *Engine) applyMove(doc *Document, op *MoveOp) OperationResult {
	if op.BlockID == doc.Root {
		return opFailure(errInvalidOperation("the root block cannot be moved"))
	}
	if !doc.Exists(op.BlockID) {
		return opFailure(errBlockNotFound(op.BlockID))
	}
	if !doc.Exists(op.NewParent) {
		return opFailure(errParentNotFound(op.NewParent))
	}
	if doc.IsDescendant(op.BlockID, op.NewParent) {
		return opFailure(errCycleDetected(op.BlockID))
	}

	doc.removeChild(op.BlockID)
	doc.insertChild(op.NewParent, op.BlockID, op.Index)
	return opSuccess(op.BlockID, op.NewParent)
}

// applyAppend validates content and creates a new block as the last (or
// index-positioned) child of parent_id (spec §4.1 Append).
func (e *Engine) applyAppend(doc *Document, op *AppendOp) OperationResult {
	if !doc.Exists(op.ParentID) {
		return opFailure(errParentNotFound(op.ParentID))
	}
	if err := op.Content.Validate(); err != nil {
		return opFailure(err)
	}

	id := newBlockID(op.Content.hashBytes(), "append", op.ParentID, func(id BlockId) bool { return e.idExists(doc, id) })

	now := time.Now()
	tags := append([]string(nil), op.Tags...)
	block := &Block{
		ID:      id,
		Content: op.Content,
		Metadata: Metadata{
			Label:        op.Label,
			Tags:         tags,
			SemanticRole: op.SemanticRole,
			Custom:       map[string]any{},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	block.Metadata.NormalizeTags()

	doc.Blocks[id] = block
	doc.insertChild(op.ParentID, id, op.Index)
	return opSuccess(id, op.ParentID)
}

// applyDelete removes block_id. Cascade removes its whole subtree;
// PreserveChildren re-parents its children onto its own parent before
// removing it; the default (neither flag set) fails if block_id has any
// children (spec §4.1 Delete).
func (e *Engine) applyDelete(doc *Document, op *DeleteOp) OperationResult {
	if op.BlockID == doc.Root {
		return opFailure(errInvalidOperation("the root block cannot be deleted"))
	}
	if !doc.Exists(op.BlockID) {
		return opFailure(errBlockNotFound(op.BlockID))
	}
	if op.Cascade && op.PreserveChildren {
		return opFailure(errInvalidArgument("delete cascade and preserve_children are mutually exclusive"))
	}

	children := doc.Structure[op.BlockID]
	if len(children) > 0 && !op.Cascade && !op.PreserveChildren {
		return opFailure(errInvalidOperation("block %q has %d children; set cascade or preserve_children", op.BlockID, len(children)))
	}

	var affected []BlockId
	if op.Cascade {
		for _, id := range doc.Subtree(op.BlockID) {
			affected = append(affected, id)
			removeEdgesTargeting(doc, id)
			delete(doc.Blocks, id)
		}
		doc.removeChild(op.BlockID)
		delete(doc.Structure, op.BlockID)
	} else {
		if op.PreserveChildren {
			parent, _ := doc.ParentOf(op.BlockID)
			for _, child := range append([]BlockId(nil), children...) {
				doc.removeChild(child)
				doc.insertChild(parent, child, nil)
			}
		}
		affected = []BlockId{op.BlockID}
		removeEdgesTargeting(doc, op.BlockID)
		doc.removeChild(op.BlockID)
		delete(doc.Structure, op.BlockID)
		delete(doc.Blocks, op.BlockID)
	}

	doc.RebuildEdgeIndex()
	return opSuccess(affected...)
}

// removeEdgesTargeting strips any edge pointing at target from every
// other block, so Delete never leaves a dangling edge (spec §3 invariant
// 4: "every edge target refers to an existing block").
func removeEdgesTargeting(doc *Document, target BlockId) {
	for _, id := range doc.sortedBlockIDs() {
		if id == target {
			continue
		}
		block := doc.Blocks[id]
		kept := block.Edges[:0]
		for _, e := range block.Edges {
			if e.Target != target {
				kept = append(kept, e)
			}
		}
		block.Edges = kept
	}
}

// applyLink adds an edge from source to target. Re-linking the same
// (type, target) pair is idempotent: it succeeds without creating a
// duplicate (spec §4.1 Link, testable property S3).
func (e *Engine) applyLink(doc *Document, op *LinkOp) OperationResult {
	source, ok := doc.Blocks[op.Source]
	if !ok {
		return opFailure(errBlockNotFound(op.Source))
	}
	if !doc.Exists(op.Target) {
		return opFailure(errBlockNotFound(op.Target))
	}

	edge := Edge{Type: op.Type, Target: op.Target, Metadata: op.Metadata, Confidence: op.Confidence}
	if idx := source.findEdge(op.Type, op.Target); idx >= 0 {
		source.Edges[idx] = edge
	} else {
		source.Edges = append(source.Edges, edge)
	}
	doc.RebuildEdgeIndex()
	return opSuccess(op.Source, op.Target)
}

// applyUnlink removes the exact (type, target) edge from source, if
// present. Unlinking a non-existent edge is a no-op success, matching
// Link's idempotence (spec §4.1 Unlink).
func (e *Engine) applyUnlink(doc *Document, op *UnlinkOp) OperationResult {
	source, ok := doc.Blocks[op.Source]
	if !ok {
		return opFailure(errBlockNotFound(op.Source))
	}
	idx := source.findEdge(op.Type, op.Target)
	if idx < 0 {
		return opSuccess().withWarning("no %s edge from %s to %s to unlink", op.Type, op.Source, op.Target)
	}
	source.Edges = append(source.Edges[:idx], source.Edges[idx+1:]...)
	doc.RebuildEdgeIndex()
	return opSuccess(op.Source)
}

// applyPrune removes every block matching Condition (default
// Unreachable), cascading through whatever subtree that leaves behind
// (spec §4.1 Prune).
func (e *Engine) applyPrune(doc *Document, op *PruneOp) OperationResult {
	condition := Unreachable()
	if op.Condition != nil {
		condition = *op.Condition
	}

	var toRemove []BlockId
	switch condition.Kind {
	case PruneUnreachable:
		reachable := map[BlockId]bool{}
		for _, id := range doc.Subtree(doc.Root) {
			reachable[id] = true
		}
		for _, id := range doc.sortedBlockIDs() {
			if !reachable[id] {
				toRemove = append(toRemove, id)
			}
		}
	case PruneTagContains:
		for _, id := range doc.sortedBlockIDs() {
			for _, t := range doc.Blocks[id].Metadata.Tags {
				if t == condition.Tag {
					toRemove = append(toRemove, id)
					break
				}
			}
		}
	case PruneCustomKind:
		if condition.Predicate == nil {
			return opFailure(errNotImplemented("prune condition %q has no registered predicate", condition.Name))
		}
		for _, id := range doc.sortedBlockIDs() {
			if id == doc.Root {
				continue
			}
			if condition.Predicate(doc.Blocks[id]) {
				toRemove = append(toRemove, id)
			}
		}
	default:
		return opFailure(errInvalidOperation("unknown prune condition %q", condition.Kind))
	}

	var removed []BlockId
	for _, id := range toRemove {
		if id == doc.Root || !doc.Exists(id) {
			continue
		}
		doc.removeChild(id)
		for _, sub := range doc.Subtree(id) {
			removeEdgesTargeting(doc, sub)
			delete(doc.Structure, sub)
			delete(doc.Blocks, sub)
			removed = append(removed, sub)
		}
	}
	doc.RebuildEdgeIndex()
	return opSuccess(removed...)
}

// applyCreateSnapshot delegates to the Engine's SnapshotManager without
// mutating doc (spec §4.1 CreateSnapshot).
func (e *Engine) applyCreateSnapshot(doc *Document, op *CreateSnapshotOp) OperationResult {
	if e.Snapshots == nil {
		return opFailure(errNotImplemented("this engine has no snapshot manager configured"))
	}
	e.Snapshots.logger = e.logger()
	if err := e.Snapshots.Create(op.Name, op.Description, doc); err != nil {
		return opFailure(err)
	}
	return opSuccess()
}

// applyRestoreSnapshot replaces doc's state in place with a named
// snapshot's pre-image (spec §4.1 RestoreSnapshot). The version counter
// must still strictly increase even though the document's content moves
// backwards in time, so it is set to max(current, snapshot) before apply's
// own increment lands it one past whichever was higher.
func (e *Engine) applyRestoreSnapshot(doc *Document, op *RestoreSnapshotOp) OperationResult {
	if e.Snapshots == nil {
		return opFailure(errNotImplemented("this engine has no snapshot manager configured"))
	}
	restored, err := e.Snapshots.Restore(op.Name)
	if err != nil {
		return opFailure(err)
	}
	counter := doc.Version.Counter
	if restored.Version.Counter > counter {
		counter = restored.Version.Counter
	}
	restoreInPlace(doc, restored)
	doc.Version.Counter = counter
	return opSuccess()
}
