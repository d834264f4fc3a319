package ucm

import "sort"

// ContentKind identifies which variant of Content is populated. Content is
// a closed sum type: adding a new variant is a schema-version bump, not a
// silent addition (spec §9 design notes).
type ContentKind string

const (
	ContentKindText      ContentKind = "text"
	ContentKindCode      ContentKind = "code"
	ContentKindTable     ContentKind = "table"
	ContentKindMath      ContentKind = "math"
	ContentKindMedia     ContentKind = "media"
	ContentKindJSON      ContentKind = "json"
	ContentKindBinary    ContentKind = "binary"
	ContentKindComposite ContentKind = "composite"
)

// canonTag is the one-byte variant discriminator written before a
// Content's canonical serialization in the fingerprint byte stream
// (spec §4.5 step 4).
var canonTag = map[ContentKind]byte{
	ContentKindText:      0x01,
	ContentKindCode:      0x02,
	ContentKindTable:     0x03,
	ContentKindMath:      0x04,
	ContentKindMedia:     0x05,
	ContentKindJSON:      0x06,
	ContentKindBinary:    0x07,
	ContentKindComposite: 0x08,
}

// TextFormat is the closed set of formats a Text content's body may be in.
type TextFormat string

const (
	FormatPlain    TextFormat = "plain"
	FormatMarkdown TextFormat = "markdown"
	FormatHTML     TextFormat = "html"
)

// TextContent is plain, markdown, or HTML prose.
type TextContent struct {
	Text   string
	Format TextFormat
}

// CodeContent is a source snippet tagged with its language.
type CodeContent struct {
	Language string
	Source   string
}

// CellKind is the closed set of scalar types a Table cell may hold.
type CellKind string

const (
	CellNull     CellKind = "null"
	CellText     CellKind = "text"
	CellNumber   CellKind = "number"
	CellBoolean  CellKind = "boolean"
	CellDate     CellKind = "date"
	CellDateTime CellKind = "datetime"
	CellJSON     CellKind = "json"
)

// Cell is one value in a Table row. Exactly the field matching Kind is
// meaningful; the rest are zero values.
type Cell struct {
	Kind     CellKind
	Text     string
	Number   float64
	Boolean  bool
	Date     string // YYYY-MM-DD
	DateTime string // RFC3339
	JSON     any
}

// Column describes one column of a Table's schema.
type Column struct {
	Name string
	Type CellKind
}

// TableContent is a named, typed grid of rows.
type TableContent struct {
	Columns []Column
	Rows    [][]Cell
}

// MathContent is a math expression, optionally rendered on its own line.
type MathContent struct {
	Expression  string
	DisplayMode bool
}

// MediaType is the closed set of media kinds Media content may describe.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
	MediaEmbed MediaType = "embed"
)

// MediaSourceKind is the closed set of ways a Media's bytes may be located.
type MediaSourceKind string

const (
	MediaSourceURL       MediaSourceKind = "url"
	MediaSourceBase64    MediaSourceKind = "base64"
	MediaSourceReference MediaSourceKind = "reference"
	MediaSourceExternal  MediaSourceKind = "external"
)

// MediaSource locates a Media content's bytes: a URL, inline base64, a
// reference to another block carrying the bytes, or an external provider
// lookup key.
type MediaSource struct {
	Kind             MediaSourceKind
	URL              string
	Base64           string
	Reference        BlockId
	ExternalProvider string
	ExternalKey      string
}

// MediaContent describes an image, audio, video, or embed.
type MediaContent struct {
	MediaType MediaType
	Source    MediaSource
	AltText   string // empty means unset
}

// JSONContent is an arbitrary JSON value, optionally tagged with a schema
// identifier understood by the caller.
type JSONContent struct {
	Schema string // empty means unset
	Value  any
}

// BinaryContent is an opaque byte blob with a MIME type.
type BinaryContent struct {
	MimeType string
	Data     []byte
}

// CompositeContent groups other blocks under a caller-defined kind, e.g.
// a "gallery" or "tab-group" composed of several child blocks.
type CompositeContent struct {
	Kind     string
	Children []BlockId
}

// Content is exactly one populated variant (spec §3 "Content"). Use the
// NewXContent constructors rather than constructing Content literals
// directly, so Kind always matches the populated field.
type Content struct {
	Kind      ContentKind
	Text      *TextContent
	Code      *CodeContent
	Table     *TableContent
	Math      *MathContent
	Media     *MediaContent
	JSON      *JSONContent
	Binary    *BinaryContent
	Composite *CompositeContent
}

// NewTextContent builds a Text-variant Content.
func NewTextContent(text string, format TextFormat) Content {
	return Content{Kind: ContentKindText, Text: &TextContent{Text: text, Format: format}}
}

// NewCodeContent builds a Code-variant Content.
func NewCodeContent(language, source string) Content {
	return Content{Kind: ContentKindCode, Code: &CodeContent{Language: language, Source: source}}
}

// NewTableContent builds a Table-variant Content.
func NewTableContent(columns []Column, rows [][]Cell) Content {
	return Content{Kind: ContentKindTable, Table: &TableContent{Columns: columns, Rows: rows}}
}

// NewMathContent builds a Math-variant Content.
func NewMathContent(expression string, displayMode bool) Content {
	return Content{Kind: ContentKindMath, Math: &MathContent{Expression: expression, DisplayMode: displayMode}}
}

// NewMediaContent builds a Media-variant Content.
func NewMediaContent(mediaType MediaType, source MediaSource, altText string) Content {
	return Content{Kind: ContentKindMedia, Media: &MediaContent{MediaType: mediaType, Source: source, AltText: altText}}
}

// NewJSONContent builds a Json-variant Content.
func NewJSONContent(schema string, value any) Content {
	return Content{Kind: ContentKindJSON, JSON: &JSONContent{Schema: schema, Value: value}}
}

// NewBinaryContent builds a Binary-variant Content.
func NewBinaryContent(mimeType string, data []byte) Content {
	return Content{Kind: ContentKindBinary, Binary: &BinaryContent{MimeType: mimeType, Data: data}}
}

// NewCompositeContent builds a Composite-variant Content.
func NewCompositeContent(kind string, children []BlockId) Content {
	return Content{Kind: ContentKindComposite, Composite: &CompositeContent{Kind: kind, Children: append([]BlockId(nil), children...)}}
}

// Validate checks that exactly the field matching Kind is populated.
func (c Content) Validate() error {
	count := 0
	for _, set := range []bool{c.Text != nil, c.Code != nil, c.Table != nil, c.Math != nil,
		c.Media != nil, c.JSON != nil, c.Binary != nil, c.Composite != nil} {
		if set {
			count++
		}
	}
	if count != 1 {
		return errInvalidArgument("content must have exactly one populated variant, found %d", count)
	}
	switch c.Kind {
	case ContentKindText:
		if c.Text == nil {
			return errInvalidArgument("content kind %q has no text payload", c.Kind)
		}
	case ContentKindCode:
		if c.Code == nil {
			return errInvalidArgument("content kind %q has no code payload", c.Kind)
		}
	case ContentKindTable:
		if c.Table == nil {
			return errInvalidArgument("content kind %q has no table payload", c.Kind)
		}
	case ContentKindMath:
		if c.Math == nil {
			return errInvalidArgument("content kind %q has no math payload", c.Kind)
		}
	case ContentKindMedia:
		if c.Media == nil {
			return errInvalidArgument("content kind %q has no media payload", c.Kind)
		}
	case ContentKindJSON:
		if c.JSON == nil {
			return errInvalidArgument("content kind %q has no json payload", c.Kind)
		}
	case ContentKindBinary:
		if c.Binary == nil {
			return errInvalidArgument("content kind %q has no binary payload", c.Kind)
		}
	case ContentKindComposite:
		if c.Composite == nil {
			return errInvalidArgument("content kind %q has no composite payload", c.Kind)
		}
	default:
		return errInvalidArgument("unknown content kind %q", c.Kind)
	}
	return nil
}

// hashBytes returns a stable byte representation used for content-
// addressed id derivation (§3 Identifiers). It is built by canonicalize,
// so its bytes are exactly what this Content contributes to the
// canonical fingerprint (§4.5) and the two never drift apart.
func (c Content) hashBytes() []byte {
	w := newCanonWriter()
	c.canonicalize(w)
	return w.Bytes()
}

// canonicalize appends this Content's variant tag and canonical byte
// encoding to w, per spec §4.5 step 4.
func (c Content) canonicalize(w *canonWriter) {
	tag, ok := canonTag[c.Kind]
	if !ok {
		tag = 0x00
	}
	w.WriteByte(tag)
	switch c.Kind {
	case ContentKindText:
		w.WriteString(c.Text.Text)
		w.WriteString(string(c.Text.Format))
	case ContentKindCode:
		w.WriteString(c.Code.Language)
		w.WriteString(c.Code.Source)
	case ContentKindTable:
		w.WriteUvarint(uint64(len(c.Table.Columns)))
		for _, col := range c.Table.Columns {
			w.WriteString(col.Name)
			w.WriteString(string(col.Type))
		}
		w.WriteUvarint(uint64(len(c.Table.Rows)))
		for _, row := range c.Table.Rows {
			w.WriteUvarint(uint64(len(row)))
			for _, cell := range row {
				cell.canonicalize(w)
			}
		}
	case ContentKindMath:
		w.WriteString(c.Math.Expression)
		w.WriteBool(c.Math.DisplayMode)
	case ContentKindMedia:
		w.WriteString(string(c.Media.MediaType))
		w.WriteByte(mediaSourceTag(c.Media.Source.Kind))
		switch c.Media.Source.Kind {
		case MediaSourceURL:
			w.WriteString(c.Media.Source.URL)
		case MediaSourceBase64:
			w.WriteString(c.Media.Source.Base64)
		case MediaSourceReference:
			w.WriteString(string(c.Media.Source.Reference))
		case MediaSourceExternal:
			w.WriteString(c.Media.Source.ExternalProvider)
			w.WriteString(c.Media.Source.ExternalKey)
		}
		w.WriteString(c.Media.AltText)
	case ContentKindJSON:
		w.WriteString(c.JSON.Schema)
		w.WriteJSON(c.JSON.Value)
	case ContentKindBinary:
		w.WriteString(c.Binary.MimeType)
		w.WriteBytes(c.Binary.Data)
	case ContentKindComposite:
		w.WriteString(c.Composite.Kind)
		w.WriteUvarint(uint64(len(c.Composite.Children)))
		for _, child := range c.Composite.Children {
			w.WriteString(string(child))
		}
	}
}

func mediaSourceTag(k MediaSourceKind) byte {
	switch k {
	case MediaSourceURL:
		return 0x01
	case MediaSourceBase64:
		return 0x02
	case MediaSourceReference:
		return 0x03
	case MediaSourceExternal:
		return 0x04
	default:
		return 0x00
	}
}

func (cell Cell) canonicalize(w *canonWriter) {
	switch cell.Kind {
	case CellNull:
		w.WriteByte(0x00)
	case CellText:
		w.WriteByte(0x01)
		w.WriteString(cell.Text)
	case CellNumber:
		w.WriteByte(0x02)
		w.WriteFloat64(cell.Number)
	case CellBoolean:
		w.WriteByte(0x03)
		w.WriteBool(cell.Boolean)
	case CellDate:
		w.WriteByte(0x04)
		w.WriteString(cell.Date)
	case CellDateTime:
		w.WriteByte(0x05)
		w.WriteString(cell.DateTime)
	case CellJSON:
		w.WriteByte(0x06)
		w.WriteJSON(cell.JSON)
	default:
		w.WriteByte(0xFF)
	}
}

// sortedKeys returns the keys of a map[string]any in ascending order, used
// everywhere the spec calls for "maps as sorted-by-key sequences".
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
