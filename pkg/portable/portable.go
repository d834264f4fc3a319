// Package portable implements the lossless external JSON encoding of a
// Document, spec §4.6 "PortableDocument": the only on-disk/on-wire form
// the engine knows about, since persistence beyond this format is an
// explicit non-goal (spec.md §1 Non-goals).
//
// Round-tripping a Document through FromDocument then ToDocument must
// produce a document with the same ucm.Fingerprint, and any field this
// package does not recognize is kept in Extra and re-emitted verbatim so
// a newer writer's documents survive an older reader (spec §6 "External
// Interfaces": "any unknown field is preserved on read and re-emitted on
// write").
package portable

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/orneryd/ucm/pkg/ucm"
)

// SchemaVersion is the current schema_version value. FromDocument writes
// the source document's own schema_version rather than this constant, and
// a document decoded with a different schema_version is still accepted;
// ToDocument copies it through unchanged.
const SchemaVersion = "1"

// Document is the wire form of a ucm.Document (spec §4.6).
type Document struct {
	SchemaVersion string              `json:"schema_version"`
	ID            string              `json:"id"`
	Root          string              `json:"root"`
	Metadata      DocumentMetadata    `json:"metadata"`
	Blocks        []Block             `json:"blocks"`
	Structure     []StructureEntry    `json:"structure"`
	Edges         []EdgeEntry         `json:"edges"`
	Extra         map[string]json.RawMessage `json:"-"`
}

// DocumentMetadata is the wire form of ucm.DocumentMetadata.
type DocumentMetadata struct {
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	SchemaVersion string         `json:"schema_version"`
	Custom        map[string]any `json:"custom,omitempty"`
}

// StructureEntry is one (parent, ordered children) pair. Encoded as a
// list rather than a JSON object so child order, which is significant,
// survives re-encoding regardless of any JSON library's map key order.
type StructureEntry struct {
	Parent   string   `json:"parent"`
	Children []string `json:"children"`
}

// EdgeEntry is one (source block, edge) pair.
type EdgeEntry struct {
	Source string `json:"source"`
	Edge   Edge   `json:"edge"`
}

// Edge is the wire form of ucm.Edge.
type Edge struct {
	Type       string  `json:"type"`
	Target     string  `json:"target"`
	Metadata   any     `json:"metadata,omitempty"`
	Confidence *float32 `json:"confidence,omitempty"`
}

// SemanticRole is the wire form of ucm.SemanticRole.
type SemanticRole struct {
	Category string `json:"category"`
	Subrole  string `json:"subrole,omitempty"`
}

// Metadata is the wire form of ucm.Metadata.
type Metadata struct {
	Label        string         `json:"label,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	SemanticRole *SemanticRole  `json:"semantic_role,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
	TokenCount   *int           `json:"token_count,omitempty"`
	Custom       map[string]any `json:"custom,omitempty"`
}

// Block is the wire form of a ucm.Block.
type Block struct {
	ID       string   `json:"id"`
	Content  Content  `json:"content"`
	Metadata Metadata `json:"metadata"`
	Edges    []Edge   `json:"edges,omitempty"`
}

// Content is the wire form of the ucm.Content tagged union: a "kind"
// discriminator plus exactly one populated payload field.
type Content struct {
	Kind      string     `json:"kind"`
	Text      *Text      `json:"text,omitempty"`
	Code      *Code      `json:"code,omitempty"`
	Table     *Table     `json:"table,omitempty"`
	Math      *Math      `json:"math,omitempty"`
	Media     *Media     `json:"media,omitempty"`
	JSON      *JSON      `json:"json,omitempty"`
	Binary    *Binary    `json:"binary,omitempty"`
	Composite *Composite `json:"composite,omitempty"`
}

type Text struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

type Code struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Cell struct {
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	Number   float64 `json:"number,omitempty"`
	Boolean  bool   `json:"boolean,omitempty"`
	Date     string `json:"date,omitempty"`
	DateTime string `json:"datetime,omitempty"`
	JSON     any    `json:"json,omitempty"`
}

type Table struct {
	Columns []Column   `json:"columns"`
	Rows    [][]Cell   `json:"rows"`
}

type Math struct {
	Expression  string `json:"expression"`
	DisplayMode bool   `json:"display_mode,omitempty"`
}

type MediaSource struct {
	Kind             string `json:"kind"`
	URL              string `json:"url,omitempty"`
	Base64           string `json:"base64,omitempty"`
	Reference        string `json:"reference,omitempty"`
	ExternalProvider string `json:"external_provider,omitempty"`
	ExternalKey      string `json:"external_key,omitempty"`
}

type Media struct {
	MediaType string      `json:"media_type"`
	Source    MediaSource `json:"source"`
	AltText   string      `json:"alt_text,omitempty"`
}

type JSON struct {
	Schema string `json:"schema,omitempty"`
	Value  any    `json:"value"`
}

// Binary's Data is base64-encoded automatically by encoding/json because
// its Go type is []byte.
type Binary struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type Composite struct {
	Kind     string   `json:"kind"`
	Children []string `json:"children"`
}

// MarshalJSON merges the typed fields with Extra so unknown top-level
// fields round-trip (spec §6: unknown fields are preserved and
// re-emitted).
func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	base, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the typed fields and stashes every field this
// struct does not declare into Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Document(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"schema_version": true, "id": true, "root": true,
		"metadata": true, "blocks": true, "structure": true, "edges": true,
	}
	for k, v := range raw {
		if !known[k] {
			if d.Extra == nil {
				d.Extra = map[string]json.RawMessage{}
			}
			d.Extra[k] = v
		}
	}
	return nil
}

// FromDocument builds the wire form of doc. Blocks, structure entries and
// edges are listed in ascending (source or parent) id order for a stable,
// diffable encoding; the children inside each structure entry keep doc's
// own declared order.
func FromDocument(doc *ucm.Document) (*Document, error) {
	out := &Document{
		SchemaVersion: doc.Metadata.SchemaVersion,
		ID:            string(doc.ID),
		Root:          string(doc.Root),
		Metadata: DocumentMetadata{
			Title:         doc.Metadata.Title,
			Description:   doc.Metadata.Description,
			SchemaVersion: doc.Metadata.SchemaVersion,
			Custom:        doc.Metadata.Custom,
		},
	}

	ids := sortedIDs(doc)
	for _, id := range ids {
		block := doc.Blocks[id]
		wb, err := blockToWire(block)
		if err != nil {
			return nil, fmt.Errorf("encoding block %s: %w", id, err)
		}
		out.Blocks = append(out.Blocks, wb)
	}

	for _, id := range ids {
		children := doc.Structure[id]
		if children == nil {
			continue
		}
		childIDs := make([]string, 0, len(children))
		for _, c := range children {
			childIDs = append(childIDs, string(c))
		}
		out.Structure = append(out.Structure, StructureEntry{Parent: string(id), Children: childIDs})
	}

	for _, id := range ids {
		for _, e := range doc.Blocks[id].Edges {
			out.Edges = append(out.Edges, EdgeEntry{
				Source: string(id),
				Edge: Edge{
					Type:       e.Type.String(),
					Target:     string(e.Target),
					Metadata:   e.Metadata,
					Confidence: e.Confidence,
				},
			})
		}
	}

	return out, nil
}

func sortedIDs(doc *ucm.Document) []ucm.BlockId {
	ids := make([]ucm.BlockId, 0, len(doc.Blocks))
	for id := range doc.Blocks {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// ToDocument rebuilds a ucm.Document from the wire form, rejecting
// inputs that violate the §3 data-model invariants with typed errors
// (spec §4.6: "rejecting inputs that violate §3 invariants with typed
// errors").
func (d *Document) ToDocument() (*ucm.Document, error) {
	root, err := ucm.ParseBlockId(d.Root)
	if err != nil {
		return nil, err
	}
	docID, err := ucm.ParseDocumentId(d.ID)
	if err != nil {
		return nil, err
	}

	doc := &ucm.Document{
		ID:        docID,
		Root:      root,
		Blocks:    map[ucm.BlockId]*ucm.Block{},
		Structure: map[ucm.BlockId][]ucm.BlockId{},
		EdgeIdx:   ucm.EdgeIndex{},
		Metadata: ucm.DocumentMetadata{
			Title:         d.Metadata.Title,
			Description:   d.Metadata.Description,
			SchemaVersion: d.Metadata.SchemaVersion,
			Custom:        d.Metadata.Custom,
		},
	}
	if doc.Metadata.Custom == nil {
		doc.Metadata.Custom = map[string]any{}
	}

	for _, wb := range d.Blocks {
		block, err := blockFromWire(wb)
		if err != nil {
			return nil, fmt.Errorf("decoding block %s: %w", wb.ID, err)
		}
		doc.Blocks[block.ID] = block
	}
	if _, ok := doc.Blocks[root]; !ok {
		return nil, fmt.Errorf("root block %s is not present in blocks", root)
	}

	for _, se := range d.Structure {
		parent, err := ucm.ParseBlockId(se.Parent)
		if err != nil {
			return nil, err
		}
		children := make([]ucm.BlockId, 0, len(se.Children))
		for _, c := range se.Children {
			childID, err := ucm.ParseBlockId(c)
			if err != nil {
				return nil, err
			}
			children = append(children, childID)
		}
		doc.Structure[parent] = children
	}

	for _, ee := range d.Edges {
		source, err := ucm.ParseBlockId(ee.Source)
		if err != nil {
			return nil, err
		}
		target, err := ucm.ParseBlockId(ee.Edge.Target)
		if err != nil {
			return nil, err
		}
		block, ok := doc.Blocks[source]
		if !ok {
			return nil, fmt.Errorf("edge source %s is not a known block", source)
		}
		edgeType := ucm.OtherEdgeType(ee.Edge.Type)
		block.Edges = append(block.Edges, ucm.Edge{
			Type:       edgeType,
			Target:     target,
			Metadata:   ee.Edge.Metadata,
			Confidence: ee.Edge.Confidence,
		})
	}

	doc.RebuildParentIndex()
	doc.RebuildEdgeIndex()

	pipeline := ucm.NewValidationPipeline()
	result := pipeline.Validate(doc, ucm.DefaultBounds)
	if !result.Valid {
		return nil, fmt.Errorf("portable document fails validation: %s", result.Diagnostics[0].Message)
	}
	return doc, nil
}

func blockToWire(block *ucm.Block) (Block, error) {
	content, err := contentToWire(block.Content)
	if err != nil {
		return Block{}, err
	}
	wb := Block{
		ID:      string(block.ID),
		Content: content,
		Metadata: Metadata{
			Label:      block.Metadata.Label,
			Tags:       block.Metadata.Tags,
			TokenCount: block.Metadata.TokenCount,
			Custom:     block.Metadata.Custom,
		},
	}
	if !block.Metadata.CreatedAt.IsZero() {
		wb.Metadata.CreatedAt = block.Metadata.CreatedAt.Format(timeLayout)
	}
	if !block.Metadata.UpdatedAt.IsZero() {
		wb.Metadata.UpdatedAt = block.Metadata.UpdatedAt.Format(timeLayout)
	}
	if block.Metadata.SemanticRole != nil {
		wb.Metadata.SemanticRole = &SemanticRole{
			Category: block.Metadata.SemanticRole.Category,
			Subrole:  block.Metadata.SemanticRole.Subrole,
		}
	}
	for _, e := range block.Edges {
		wb.Edges = append(wb.Edges, Edge{
			Type: e.Type.String(), Target: string(e.Target),
			Metadata: e.Metadata, Confidence: e.Confidence,
		})
	}
	return wb, nil
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func blockFromWire(wb Block) (*ucm.Block, error) {
	id, err := ucm.ParseBlockId(wb.ID)
	if err != nil {
		return nil, err
	}
	content, err := contentFromWire(wb.Content)
	if err != nil {
		return nil, err
	}
	block := &ucm.Block{
		ID:      id,
		Content: content,
		Metadata: ucm.Metadata{
			Label:      wb.Metadata.Label,
			Tags:       append([]string(nil), wb.Metadata.Tags...),
			TokenCount: wb.Metadata.TokenCount,
			Custom:     wb.Metadata.Custom,
		},
	}
	if wb.Metadata.SemanticRole != nil {
		block.Metadata.SemanticRole = &ucm.SemanticRole{
			Category: wb.Metadata.SemanticRole.Category,
			Subrole:  wb.Metadata.SemanticRole.Subrole,
		}
	}
	if wb.Metadata.CreatedAt != "" {
		t, err := parseTime(wb.Metadata.CreatedAt)
		if err != nil {
			return nil, err
		}
		block.Metadata.CreatedAt = t
	}
	if wb.Metadata.UpdatedAt != "" {
		t, err := parseTime(wb.Metadata.UpdatedAt)
		if err != nil {
			return nil, err
		}
		block.Metadata.UpdatedAt = t
	}
	if block.Metadata.Custom == nil {
		block.Metadata.Custom = map[string]any{}
	}
	block.Metadata.NormalizeTags()
	return block, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// contentToWire converts a ucm.Content into its wire form. Exactly one of
// the typed payload fields is populated, matching Kind.
func contentToWire(c ucm.Content) (Content, error) {
	out := Content{Kind: string(c.Kind)}
	switch c.Kind {
	case ucm.ContentKindText:
		out.Text = &Text{Text: c.Text.Text, Format: string(c.Text.Format)}
	case ucm.ContentKindCode:
		out.Code = &Code{Language: c.Code.Language, Source: c.Code.Source}
	case ucm.ContentKindTable:
		cols := make([]Column, len(c.Table.Columns))
		for i, col := range c.Table.Columns {
			cols[i] = Column{Name: col.Name, Type: string(col.Type)}
		}
		rows := make([][]Cell, len(c.Table.Rows))
		for i, row := range c.Table.Rows {
			wireRow := make([]Cell, len(row))
			for j, cell := range row {
				wireRow[j] = cellToWire(cell)
			}
			rows[i] = wireRow
		}
		out.Table = &Table{Columns: cols, Rows: rows}
	case ucm.ContentKindMath:
		out.Math = &Math{Expression: c.Math.Expression, DisplayMode: c.Math.DisplayMode}
	case ucm.ContentKindMedia:
		out.Media = &Media{
			MediaType: string(c.Media.MediaType),
			AltText:   c.Media.AltText,
			Source: MediaSource{
				Kind:             string(c.Media.Source.Kind),
				URL:              c.Media.Source.URL,
				Base64:           c.Media.Source.Base64,
				Reference:        string(c.Media.Source.Reference),
				ExternalProvider: c.Media.Source.ExternalProvider,
				ExternalKey:      c.Media.Source.ExternalKey,
			},
		}
	case ucm.ContentKindJSON:
		out.JSON = &JSON{Schema: c.JSON.Schema, Value: c.JSON.Value}
	case ucm.ContentKindBinary:
		out.Binary = &Binary{MimeType: c.Binary.MimeType, Data: c.Binary.Data}
	case ucm.ContentKindComposite:
		children := make([]string, len(c.Composite.Children))
		for i, id := range c.Composite.Children {
			children[i] = string(id)
		}
		out.Composite = &Composite{Kind: c.Composite.Kind, Children: children}
	default:
		return Content{}, fmt.Errorf("unknown content kind %q", c.Kind)
	}
	return out, nil
}

func cellToWire(cell ucm.Cell) Cell {
	return Cell{
		Kind: string(cell.Kind), Text: cell.Text, Number: cell.Number,
		Boolean: cell.Boolean, Date: cell.Date, DateTime: cell.DateTime, JSON: cell.JSON,
	}
}

// contentFromWire rebuilds a ucm.Content from its wire form and validates
// it, per spec §4.6's "rejecting inputs that violate §3 invariants with
// typed errors".
func contentFromWire(w Content) (ucm.Content, error) {
	var out ucm.Content
	switch ucm.ContentKind(w.Kind) {
	case ucm.ContentKindText:
		if w.Text == nil {
			return out, fmt.Errorf("content kind %q missing text payload", w.Kind)
		}
		out = ucm.NewTextContent(w.Text.Text, ucm.TextFormat(w.Text.Format))
	case ucm.ContentKindCode:
		if w.Code == nil {
			return out, fmt.Errorf("content kind %q missing code payload", w.Kind)
		}
		out = ucm.NewCodeContent(w.Code.Language, w.Code.Source)
	case ucm.ContentKindTable:
		if w.Table == nil {
			return out, fmt.Errorf("content kind %q missing table payload", w.Kind)
		}
		cols := make([]ucm.Column, len(w.Table.Columns))
		for i, col := range w.Table.Columns {
			cols[i] = ucm.Column{Name: col.Name, Type: ucm.CellKind(col.Type)}
		}
		rows := make([][]ucm.Cell, len(w.Table.Rows))
		for i, row := range w.Table.Rows {
			cellRow := make([]ucm.Cell, len(row))
			for j, cell := range row {
				cellRow[j] = cellFromWire(cell)
			}
			rows[i] = cellRow
		}
		out = ucm.NewTableContent(cols, rows)
	case ucm.ContentKindMath:
		if w.Math == nil {
			return out, fmt.Errorf("content kind %q missing math payload", w.Kind)
		}
		out = ucm.NewMathContent(w.Math.Expression, w.Math.DisplayMode)
	case ucm.ContentKindMedia:
		if w.Media == nil {
			return out, fmt.Errorf("content kind %q missing media payload", w.Kind)
		}
		src := ucm.MediaSource{
			Kind:             ucm.MediaSourceKind(w.Media.Source.Kind),
			URL:              w.Media.Source.URL,
			Base64:           w.Media.Source.Base64,
			Reference:        ucm.BlockId(w.Media.Source.Reference),
			ExternalProvider: w.Media.Source.ExternalProvider,
			ExternalKey:      w.Media.Source.ExternalKey,
		}
		out = ucm.NewMediaContent(ucm.MediaType(w.Media.MediaType), src, w.Media.AltText)
	case ucm.ContentKindJSON:
		if w.JSON == nil {
			return out, fmt.Errorf("content kind %q missing json payload", w.Kind)
		}
		out = ucm.NewJSONContent(w.JSON.Schema, w.JSON.Value)
	case ucm.ContentKindBinary:
		if w.Binary == nil {
			return out, fmt.Errorf("content kind %q missing binary payload", w.Kind)
		}
		out = ucm.NewBinaryContent(w.Binary.MimeType, w.Binary.Data)
	case ucm.ContentKindComposite:
		if w.Composite == nil {
			return out, fmt.Errorf("content kind %q missing composite payload", w.Kind)
		}
		children := make([]ucm.BlockId, len(w.Composite.Children))
		for i, id := range w.Composite.Children {
			children[i] = ucm.BlockId(id)
		}
		out = ucm.NewCompositeContent(w.Composite.Kind, children)
	default:
		return out, fmt.Errorf("unknown content kind %q", w.Kind)
	}
	if err := out.Validate(); err != nil {
		return ucm.Content{}, err
	}
	return out, nil
}

func cellFromWire(cell Cell) ucm.Cell {
	return ucm.Cell{
		Kind: ucm.CellKind(cell.Kind), Text: cell.Text, Number: cell.Number,
		Boolean: cell.Boolean, Date: cell.Date, DateTime: cell.DateTime, JSON: cell.JSON,
	}
}
