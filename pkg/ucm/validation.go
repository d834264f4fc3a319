package ucm

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Severity classifies a Diagnostic (spec §6 "Diagnostics wire form").
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one finding produced by a validation stage.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	BlockID  BlockId // empty if not block-scoped
}

func diag(sev Severity, code string, blockID BlockId, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...), BlockID: blockID}
}

// Bounds are the resource caps the Bounds validation stage enforces (spec
// §5 "Concurrency & Resource Model"). A MaxBlocks, MaxDepth or
// MaxEdgesPerBlock of zero or less disables that cap.
type Bounds struct {
	MaxBlocks        int
	MaxDepth         int
	MaxEdgesPerBlock int
	AllowOrphans     bool
}

// DefaultBounds mirrors the conservative defaults a fresh Engine uses when
// no Config is supplied (see pkg/ucmconfig).
var DefaultBounds = Bounds{
	MaxBlocks:        100_000,
	MaxDepth:         256,
	MaxEdgesPerBlock: 1_000,
	AllowOrphans:     false,
}

// ValidationResult is the outcome of running every stage of the pipeline
// over a document.
type ValidationResult struct {
	Valid       bool
	Diagnostics []Diagnostic
}

// stageFunc is one ordered step of the ValidationPipeline. Each stage sees
// the full diagnostics slice accumulated so far only through its return
// value; stages do not short-circuit each other, so a single Validate call
// surfaces every problem in the document, not just the first.
type stageFunc func(doc *Document, bounds Bounds) []Diagnostic

// ValidationPipeline runs the ordered structural checks spec §4.2 requires
// before an engine commits a batch: Structural, Acyclicity, Orphans,
// Bounds, EdgeIntegrity, Metadata.
type ValidationPipeline struct {
	stages []stageFunc
}

// NewValidationPipeline builds the pipeline with its fixed stage order.
func NewValidationPipeline() *ValidationPipeline {
	return &ValidationPipeline{stages: []stageFunc{
		stageStructural,
		stageAcyclicity,
		stageOrphans,
		stageBounds,
		stageEdgeIntegrity,
		stageMetadata,
	}}
}

// Validate runs every stage and reports whether the document is free of
// Fatal diagnostics. Warning and Info diagnostics never flip Valid to
// false; they are advisory (spec §4.2).
func (p *ValidationPipeline) Validate(doc *Document, bounds Bounds) ValidationResult {
	var all []Diagnostic
	for _, stage := range p.stages {
		all = append(all, stage(doc, bounds)...)
	}
	valid := true
	for _, d := range all {
		if d.Severity == SeverityFatal {
			valid = false
			break
		}
	}
	return ValidationResult{Valid: valid, Diagnostics: all}
}

// stageStructural checks that the root exists, every block named in
// Structure exists in Blocks, and every block (other than root) appears
// exactly once as someone's child (spec §3 invariants 1-2).
func stageStructural(doc *Document, _ Bounds) []Diagnostic {
	var out []Diagnostic
	if _, ok := doc.Blocks[doc.Root]; !ok {
		out = append(out, diag(SeverityFatal, "UCM2001", doc.Root, "root block %q is missing from the block map", doc.Root))
	}

	childCount := map[BlockId]int{}
	for parent, children := range doc.Structure {
		if _, ok := doc.Blocks[parent]; !ok {
			out = append(out, diag(SeverityFatal, "UCM2002", parent, "structure references unknown parent %q", parent))
			continue
		}
		for _, child := range children {
			if _, ok := doc.Blocks[child]; !ok {
				out = append(out, diag(SeverityFatal, "UCM2003", child, "structure references unknown child %q", child))
				continue
			}
			childCount[child]++
		}
	}
	for _, id := range doc.sortedBlockIDs() {
		if id == doc.Root {
			continue
		}
		switch childCount[id] {
		case 0:
			out = append(out, diag(SeverityFatal, "UCM2004", id, "block %q is not reachable as anyone's child", id))
		case 1:
		default:
			out = append(out, diag(SeverityFatal, "UCM2005", id, "block %q appears as a child %d times", id, childCount[id]))
		}
	}
	return out
}

// stageAcyclicity walks the containment tree from root with a visited set
// keyed by a fast hash of the block id, flagging any block reachable
// through more than one path back to itself (spec §3 invariant 3: "the
// structure graph contains no cycles").
func stageAcyclicity(doc *Document, _ Bounds) []Diagnostic {
	var out []Diagnostic
	visiting := map[uint64]bool{}
	visited := map[uint64]bool{}

	var walk func(id BlockId) bool
	walk = func(id BlockId) bool {
		h := xxhash.Sum64String(string(id))
		if visiting[h] {
			out = append(out, diag(SeverityFatal, "UCM2010", id, "cycle detected at block %q", id))
			return false
		}
		if visited[h] {
			return true
		}
		visiting[h] = true
		for _, child := range doc.Structure[id] {
			if !walk(child) {
				return false
			}
		}
		visiting[h] = false
		visited[h] = true
		return true
	}
	walk(doc.Root)
	return out
}

// stageOrphans flags blocks present in Blocks but not reachable from the
// root through Structure, unless bounds.AllowOrphans is set (spec §4.2
// "Orphans").
func stageOrphans(doc *Document, bounds Bounds) []Diagnostic {
	if bounds.AllowOrphans {
		return nil
	}
	reachable := map[BlockId]bool{}
	for _, id := range doc.Subtree(doc.Root) {
		reachable[id] = true
	}
	var out []Diagnostic
	for _, id := range doc.sortedBlockIDs() {
		if !reachable[id] {
			out = append(out, diag(SeverityWarning, "UCM2020", id, "block %q is orphaned (unreachable from root)", id))
		}
	}
	return out
}

// stageBounds enforces the resource caps configured for this engine (spec
// §5): total block count, maximum containment depth, and edges per block.
func stageBounds(doc *Document, bounds Bounds) []Diagnostic {
	var out []Diagnostic
	if bounds.MaxBlocks > 0 && len(doc.Blocks) > bounds.MaxBlocks {
		out = append(out, diag(SeverityFatal, "UCM2030", "", "document has %d blocks, exceeding max_blocks=%d", len(doc.Blocks), bounds.MaxBlocks))
	}
	if bounds.MaxDepth > 0 {
		var walk func(id BlockId, depth int)
		walk = func(id BlockId, depth int) {
			if depth > bounds.MaxDepth {
				out = append(out, diag(SeverityFatal, "UCM2031", id, "block %q is at depth %d, exceeding max_depth=%d", id, depth, bounds.MaxDepth))
				return
			}
			for _, child := range doc.Structure[id] {
				walk(child, depth+1)
			}
		}
		walk(doc.Root, 0)
	}
	if bounds.MaxEdgesPerBlock > 0 {
		for _, id := range doc.sortedBlockIDs() {
			if n := len(doc.Blocks[id].Edges); n > bounds.MaxEdgesPerBlock {
				out = append(out, diag(SeverityFatal, "UCM2032", id, "block %q has %d edges, exceeding max_edges_per_block=%d", id, n, bounds.MaxEdgesPerBlock))
			}
		}
	}
	return out
}

// stageEdgeIntegrity checks that every edge targets an existing block and
// that EdgeIdx agrees exactly with the edges embedded in the block map
// (spec §3 invariant 5).
func stageEdgeIntegrity(doc *Document, _ Bounds) []Diagnostic {
	var out []Diagnostic
	for _, id := range doc.sortedBlockIDs() {
		for _, e := range doc.Blocks[id].Edges {
			if _, ok := doc.Blocks[e.Target]; !ok {
				out = append(out, diag(SeverityFatal, "UCM2040", id, "edge from %q targets unknown block %q", id, e.Target))
			}
		}
	}

	want := EdgeIndex{}
	for _, id := range doc.sortedBlockIDs() {
		for _, e := range doc.Blocks[id].Edges {
			want[e.Target] = append(want[e.Target], EdgeRef{Source: id, Edge: e})
		}
	}
	if len(want) != len(doc.EdgeIdx) {
		out = append(out, diag(SeverityFatal, "UCM2041", "", "edge index has %d targets, expected %d", len(doc.EdgeIdx), len(want)))
	}
	for target, refs := range want {
		if len(doc.EdgeIdx[target]) != len(refs) {
			out = append(out, diag(SeverityFatal, "UCM2042", target, "edge index entry for %q is stale", target))
		}
	}
	return out
}

// stageMetadata enforces metadata-level invariants: tags are deduplicated,
// and any semantic_role.category falls within the closed RoleCategories
// set (spec §3 invariant 7, §4.2 "Metadata").
func stageMetadata(doc *Document, _ Bounds) []Diagnostic {
	var out []Diagnostic
	for _, id := range doc.sortedBlockIDs() {
		m := doc.Blocks[id].Metadata
		seen := map[string]bool{}
		for _, t := range m.Tags {
			if seen[t] {
				out = append(out, diag(SeverityWarning, "UCM2050", id, "block %q has duplicate tag %q", id, t))
			}
			seen[t] = true
		}
		if m.SemanticRole != nil && !RoleCategories[m.SemanticRole.Category] {
			out = append(out, diag(SeverityFatal, "UCM2051", id, "block %q has unknown semantic_role.category %q", id, m.SemanticRole.Category))
		}
	}
	return out
}
