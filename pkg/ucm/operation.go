package ucm

import "fmt"

// EditOperator selects how Edit combines a new value with the existing
// value at a path (spec §4.1 Edit).
type EditOperator string

const (
	EditSet       EditOperator = "set"
	EditAppend    EditOperator = "append"
	EditRemove    EditOperator = "remove"
	EditIncrement EditOperator = "increment"
	EditDecrement EditOperator = "decrement"
)

// PruneConditionKind selects which rule Prune uses to pick blocks for
// removal (spec §4.1 Prune).
type PruneConditionKind string

const (
	PruneUnreachable  PruneConditionKind = "unreachable"
	PruneTagContains  PruneConditionKind = "tag_contains"
	PruneCustomKind   PruneConditionKind = "custom"
)

// PruneCondition selects Prune's removal rule. For PruneCustomKind, the
// caller supplies Predicate directly (spec §9 open question: the
// evaluation model for Custom(expr) is host policy, not a DSL owned by
// this package) — Name is only for logging/diagnostics when no Predicate
// is registered.
type PruneCondition struct {
	Kind      PruneConditionKind
	Tag       string
	Name      string
	Predicate func(*Block) bool
}

// Unreachable builds a PruneCondition that removes every block not
// reachable from root.
func Unreachable() PruneCondition { return PruneCondition{Kind: PruneUnreachable} }

// TagContains builds a PruneCondition that removes every block whose tags
// contain tag.
func TagContains(tag string) PruneCondition {
	return PruneCondition{Kind: PruneTagContains, Tag: tag}
}

// CustomPrune builds a PruneCondition evaluated by a caller-supplied
// predicate. name is used only in diagnostics.
func CustomPrune(name string, predicate func(*Block) bool) PruneCondition {
	return PruneCondition{Kind: PruneCustomKind, Name: name, Predicate: predicate}
}

// EditOp edits the value at path within block_id (spec §4.1 Edit).
type EditOp struct {
	BlockID  BlockId
	Path     string
	Value    any
	Operator EditOperator
}

// MoveOp reparents block_id under new_parent, optionally at a specific
// sibling index (spec §4.1 Move).
type MoveOp struct {
	BlockID   BlockId
	NewParent BlockId
	Index     *int
}

// AppendOp creates a new block under parent_id (spec §4.1 Append).
type AppendOp struct {
	ParentID     BlockId
	Content      Content
	Label        string
	Tags         []string
	SemanticRole *SemanticRole
	Index        *int
}

// DeleteOp removes block_id (spec §4.1 Delete). Cascade and
// PreserveChildren are mutually exclusive.
type DeleteOp struct {
	BlockID          BlockId
	Cascade          bool
	PreserveChildren bool
}

// LinkOp adds an edge from source to target (spec §4.1 Link).
type LinkOp struct {
	Source     BlockId
	Type       EdgeType
	Target     BlockId
	Metadata   any
	Confidence *float32
}

// UnlinkOp removes the exact matching edge (spec §4.1 Unlink).
type UnlinkOp struct {
	Source BlockId
	Type   EdgeType
	Target BlockId
}

// PruneOp removes blocks matching Condition (spec §4.1 Prune). A nil
// Condition defaults to Unreachable.
type PruneOp struct {
	Condition *PruneCondition
}

// CreateSnapshotOp delegates to the SnapshotManager without altering the
// document (spec §4.1 CreateSnapshot).
type CreateSnapshotOp struct {
	Name        string
	Description string
}

// RestoreSnapshotOp replaces the document's state wholesale with a
// snapshot's pre-image (spec §4.1 RestoreSnapshot).
type RestoreSnapshotOp struct {
	Name string
}

// OpKind identifies which variant of Operation is populated.
type OpKind string

const (
	OpEdit            OpKind = "edit"
	OpMove            OpKind = "move"
	OpAppend          OpKind = "append"
	OpDelete          OpKind = "delete"
	OpLink            OpKind = "link"
	OpUnlink          OpKind = "unlink"
	OpPrune           OpKind = "prune"
	OpCreateSnapshot  OpKind = "create_snapshot"
	OpRestoreSnapshot OpKind = "restore_snapshot"
)

// Operation is a single declarative mutation (spec §3 glossary). Build
// one with the NewXOperation constructors rather than a literal, so Kind
// always matches the populated field.
type Operation struct {
	Kind            OpKind
	Edit            *EditOp
	Move            *MoveOp
	Append          *AppendOp
	Delete          *DeleteOp
	Link            *LinkOp
	Unlink          *UnlinkOp
	Prune           *PruneOp
	CreateSnapshot  *CreateSnapshotOp
	RestoreSnapshot *RestoreSnapshotOp
}

func NewEditOperation(blockID BlockId, path string, value any, op EditOperator) Operation {
	return Operation{Kind: OpEdit, Edit: &EditOp{BlockID: blockID, Path: path, Value: value, Operator: op}}
}

func NewMoveOperation(blockID, newParent BlockId, index *int) Operation {
	return Operation{Kind: OpMove, Move: &MoveOp{BlockID: blockID, NewParent: newParent, Index: index}}
}

func NewAppendOperation(parentID BlockId, content Content, label string, tags []string, role *SemanticRole, index *int) Operation {
	return Operation{Kind: OpAppend, Append: &AppendOp{
		ParentID: parentID, Content: content, Label: label, Tags: tags, SemanticRole: role, Index: index,
	}}
}

func NewDeleteOperation(blockID BlockId, cascade, preserveChildren bool) Operation {
	return Operation{Kind: OpDelete, Delete: &DeleteOp{BlockID: blockID, Cascade: cascade, PreserveChildren: preserveChildren}}
}

func NewLinkOperation(source BlockId, edgeType EdgeType, target BlockId, metadata any) Operation {
	return Operation{Kind: OpLink, Link: &LinkOp{Source: source, Type: edgeType, Target: target, Metadata: metadata}}
}

func NewUnlinkOperation(source BlockId, edgeType EdgeType, target BlockId) Operation {
	return Operation{Kind: OpUnlink, Unlink: &UnlinkOp{Source: source, Type: edgeType, Target: target}}
}

func NewPruneOperation(condition *PruneCondition) Operation {
	return Operation{Kind: OpPrune, Prune: &PruneOp{Condition: condition}}
}

func NewCreateSnapshotOperation(name, description string) Operation {
	return Operation{Kind: OpCreateSnapshot, CreateSnapshot: &CreateSnapshotOp{Name: name, Description: description}}
}

func NewRestoreSnapshotOperation(name string) Operation {
	return Operation{Kind: OpRestoreSnapshot, RestoreSnapshot: &RestoreSnapshotOp{Name: name}}
}

// Describe renders a short UCL-flavoured summary of the operation, for
// log lines and error messages. Grounded on the Rust reference
// engine's Operation::description() (original_source/crates/ucm-engine).
func (op Operation) Describe() string {
	switch op.Kind {
	case OpEdit:
		return fmt.Sprintf("EDIT %s SET %s", op.Edit.BlockID, op.Edit.Path)
	case OpMove:
		return fmt.Sprintf("MOVE %s TO %s", op.Move.BlockID, op.Move.NewParent)
	case OpAppend:
		return fmt.Sprintf("APPEND to %s", op.Append.ParentID)
	case OpDelete:
		if op.Delete.Cascade {
			return fmt.Sprintf("DELETE %s CASCADE", op.Delete.BlockID)
		}
		return fmt.Sprintf("DELETE %s", op.Delete.BlockID)
	case OpLink:
		return fmt.Sprintf("LINK %s %s %s", op.Link.Source, op.Link.Type, op.Link.Target)
	case OpUnlink:
		return fmt.Sprintf("UNLINK %s %s %s", op.Unlink.Source, op.Unlink.Type, op.Unlink.Target)
	case OpPrune:
		if op.Prune.Condition == nil {
			return "PRUNE UNREACHABLE"
		}
		switch op.Prune.Condition.Kind {
		case PruneTagContains:
			return fmt.Sprintf("PRUNE WHERE tag=%s", op.Prune.Condition.Tag)
		case PruneCustomKind:
			return fmt.Sprintf("PRUNE WHERE %s", op.Prune.Condition.Name)
		default:
			return "PRUNE UNREACHABLE"
		}
	case OpCreateSnapshot:
		return fmt.Sprintf("SNAPSHOT CREATE %s", op.CreateSnapshot.Name)
	case OpRestoreSnapshot:
		return fmt.Sprintf("SNAPSHOT RESTORE %s", op.RestoreSnapshot.Name)
	default:
		return "UNKNOWN OPERATION"
	}
}

// OperationResult is the outcome of a single Engine.Execute call (spec
// §4.1 "Engine").
type OperationResult struct {
	Success        bool
	AffectedBlocks []BlockId
	Warnings       []string
	Err            error
}

func opSuccess(affected ...BlockId) OperationResult {
	return OperationResult{Success: true, AffectedBlocks: affected}
}

func opFailure(err error) OperationResult {
	return OperationResult{Success: false, Err: err}
}

func (r OperationResult) withWarning(format string, args ...any) OperationResult {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	return r
}
