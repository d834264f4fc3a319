package ucm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// canonWriter accumulates the canonical byte stream described in spec
// §4.5: length-prefixed UTF-8 strings, maps as sorted-by-key sequences,
// floats as their IEEE-754 bit pattern, booleans as 0x00/0x01. Every
// writer method is a pure append; the same sequence of calls always
// produces the same bytes, which is what makes Fingerprint deterministic.
type canonWriter struct {
	buf bytes.Buffer
}

func newCanonWriter() *canonWriter {
	return &canonWriter{}
}

func (w *canonWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *canonWriter) WriteByte(b byte) { w.buf.WriteByte(b) }

func (w *canonWriter) WriteRaw(b []byte) { w.buf.Write(b) }

func (w *canonWriter) WriteBool(b bool) {
	if b {
		w.buf.WriteByte(0x01)
	} else {
		w.buf.WriteByte(0x00)
	}
}

// WriteUvarint writes v as a little-endian base-128 varint, the same
// encoding as encoding/binary.PutUvarint.
func (w *canonWriter) WriteUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

// WriteString writes s length-prefixed (as a varint byte count) followed
// by its UTF-8 bytes.
func (w *canonWriter) WriteString(s string) {
	w.WriteUvarint(uint64(len(s)))
	w.buf.WriteString(s)
}

// WriteBytes writes b length-prefixed followed by its raw bytes.
func (w *canonWriter) WriteBytes(b []byte) {
	w.WriteUvarint(uint64(len(b)))
	w.buf.Write(b)
}

// WriteFloat64 writes f's IEEE-754 bit pattern, big-endian.
func (w *canonWriter) WriteFloat64(f float64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(f))
	w.buf.Write(tmp[:])
}

// WriteStringSlice writes a sequence of strings in the given order,
// length-prefixed as a whole then each element length-prefixed.
func (w *canonWriter) WriteStringSlice(ss []string) {
	w.WriteUvarint(uint64(len(ss)))
	for _, s := range ss {
		w.WriteString(s)
	}
}

// WriteStringMap writes a map[string]string sorted by key.
func (w *canonWriter) WriteStringMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.WriteUvarint(uint64(len(keys)))
	for _, k := range keys {
		w.WriteString(k)
		w.WriteString(m[k])
	}
}

// WriteJSON canonically encodes an arbitrary decoded-JSON value (as
// produced by encoding/json.Unmarshal into interface{}): nil, bool,
// float64 (int and int64 are encoded as the same float64), string,
// []any, or map[string]any with sorted keys. Any other concrete type,
// json.Number included, is encoded via its string form as a last resort,
// tagged distinctly so it can never collide with a real JSON string.
func (w *canonWriter) WriteJSON(v any) {
	switch val := v.(type) {
	case nil:
		w.WriteByte(0x00)
	case bool:
		w.WriteByte(0x01)
		w.WriteBool(val)
	case float64:
		w.WriteByte(0x02)
		w.WriteFloat64(val)
	case int:
		w.WriteByte(0x02)
		w.WriteFloat64(float64(val))
	case int64:
		w.WriteByte(0x02)
		w.WriteFloat64(float64(val))
	case string:
		w.WriteByte(0x03)
		w.WriteString(val)
	case []any:
		w.WriteByte(0x04)
		w.WriteUvarint(uint64(len(val)))
		for _, item := range val {
			w.WriteJSON(item)
		}
	case map[string]any:
		w.WriteByte(0x05)
		keys := sortedKeys(val)
		w.WriteUvarint(uint64(len(keys)))
		for _, k := range keys {
			w.WriteString(k)
			w.WriteJSON(val[k])
		}
	default:
		w.WriteByte(0xFE)
		w.WriteString(fmt.Sprintf("%v", val))
	}
}
