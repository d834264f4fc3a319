package ucm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContent_Validate_ExactlyOneVariant(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		wantErr bool
	}{
		{"valid text", NewTextContent("hello", FormatPlain), false},
		{"valid code", NewCodeContent("go", "package main"), false},
		{"valid math", NewMathContent("x^2", true), false},
		{"valid binary", NewBinaryContent("application/octet-stream", []byte{1, 2, 3}), false},
		{"no variant populated", Content{Kind: ContentKindText}, true},
		{"two variants populated", Content{
			Kind: ContentKindText,
			Text: &TextContent{Text: "a"},
			Code: &CodeContent{Language: "go"},
		}, true},
		{"kind mismatches populated field", Content{Kind: ContentKindCode, Text: &TextContent{Text: "a"}}, true},
		{"unknown kind", Content{Kind: ContentKind("bogus"), Text: &TextContent{Text: "a"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.content.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContent_HashBytes_Deterministic(t *testing.T) {
	a := NewTextContent("same text", FormatMarkdown)
	b := NewTextContent("same text", FormatMarkdown)
	assert.Equal(t, a.hashBytes(), b.hashBytes())
}

func TestContent_HashBytes_DiffersByField(t *testing.T) {
	a := NewTextContent("one", FormatPlain)
	b := NewTextContent("two", FormatPlain)
	assert.NotEqual(t, a.hashBytes(), b.hashBytes())

	c := NewTextContent("one", FormatMarkdown)
	assert.NotEqual(t, a.hashBytes(), c.hashBytes())
}

func TestContent_HashBytes_TableOrderSensitive(t *testing.T) {
	cols := []Column{{Name: "a", Type: CellText}, {Name: "b", Type: CellNumber}}
	rows1 := [][]Cell{{{Kind: CellText, Text: "x"}, {Kind: CellNumber, Number: 1}}}
	rows2 := [][]Cell{{{Kind: CellNumber, Number: 1}, {Kind: CellText, Text: "x"}}}

	t1 := NewTableContent(cols, rows1)
	t2 := NewTableContent(cols, rows2)
	assert.NotEqual(t, t1.hashBytes(), t2.hashBytes(), "row cell order must affect the canonical bytes")
}

func TestContent_HashBytes_CompositeChildOrderMatters(t *testing.T) {
	a := NewCompositeContent("gallery", []BlockId{"blk_000000000001", "blk_000000000002"})
	b := NewCompositeContent("gallery", []BlockId{"blk_000000000002", "blk_000000000001"})
	assert.NotEqual(t, a.hashBytes(), b.hashBytes())
}

func TestContent_HashBytes_MediaSourceVariants(t *testing.T) {
	url := NewMediaContent(MediaImage, MediaSource{Kind: MediaSourceURL, URL: "https://example.com/a.png"}, "")
	ref := NewMediaContent(MediaImage, MediaSource{Kind: MediaSourceReference, Reference: "blk_000000000001"}, "")
	assert.NotEqual(t, url.hashBytes(), ref.hashBytes())
}
