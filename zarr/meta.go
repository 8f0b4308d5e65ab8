package zarr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Names of the zarr v2 metadata objects stored beside chunk data.
const (
	groupMetaName        = ".zgroup"
	arrayMetaName        = ".zarray"
	attrsMetaName        = ".zattrs"
	consolidatedMetaName = ".zmetadata"
)

const zarrFormat = 2

// -----------------------------------------------------------------------------
// Group metadata
// -----------------------------------------------------------------------------

type zgroupDoc struct {
	ZarrFormat int `json:"zarr_format"`
}

func encodeGroupMeta() ([]byte, error) {
	return json.Marshal(zgroupDoc{ZarrFormat: zarrFormat})
}

func checkGroupMeta(b []byte) error {
	var doc zgroupDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("zarr: parse %s: %w", groupMetaName, err)
	}
	if doc.ZarrFormat != zarrFormat {
		return fmt.Errorf("zarr: unsupported zarr_format %d", doc.ZarrFormat)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Array metadata
// -----------------------------------------------------------------------------

// arrayMeta is the parsed form of a .zarray document. Fill is held as float64
// and truncated for integer dtypes when chunks are materialized.
type arrayMeta struct {
	Shape      []int
	Chunks     []int
	DType      DType
	Compressor Compressor
	Fill       float64
}

type zarrayDoc struct {
	Shape      []int               `json:"shape"`
	Chunks     []int               `json:"chunks"`
	DType      string              `json:"dtype"`
	Compressor *compressorDoc      `json:"compressor"`
	FillValue  jsoniter.RawMessage `json:"fill_value"`
	Order      string              `json:"order"`
	Filters    any         `json:"filters"`
	ZarrFormat int                 `json:"zarr_format"`
}

type compressorDoc struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

func (m *arrayMeta) encode() ([]byte, error) {
	fill, err := encodeFill(m.DType, m.Fill)
	if err != nil {
		return nil, err
	}
	doc := zarrayDoc{
		Shape:      m.Shape,
		Chunks:     m.Chunks,
		DType:      m.DType.String(),
		FillValue:  fill,
		Order:      "C",
		Filters:    nil,
		ZarrFormat: zarrFormat,
	}
	if name := m.Compressor.Name(); name != "" {
		doc.Compressor = &compressorDoc{ID: name, Level: m.Compressor.Level()}
	}
	return json.Marshal(doc)
}

func parseArrayMeta(b []byte) (*arrayMeta, error) {
	var doc zarrayDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("zarr: parse %s: %w", arrayMetaName, err)
	}
	if doc.ZarrFormat != zarrFormat {
		return nil, fmt.Errorf("zarr: unsupported zarr_format %d", doc.ZarrFormat)
	}
	if doc.Order != "" && doc.Order != "C" {
		return nil, fmt.Errorf("zarr: chunk order %q is not supported", doc.Order)
	}
	if len(doc.Chunks) != len(doc.Shape) {
		return nil, fmt.Errorf("zarr: chunk rank %d does not match shape rank %d", len(doc.Chunks), len(doc.Shape))
	}
	dt, err := ParseDType(doc.DType)
	if err != nil {
		return nil, err
	}
	fill, err := decodeFill(dt, doc.FillValue)
	if err != nil {
		return nil, err
	}
	var comp Compressor
	if doc.Compressor == nil {
		comp = NewRawCompressor()
	} else {
		comp, err = compressorByName(doc.Compressor.ID, doc.Compressor.Level)
		if err != nil {
			return nil, err
		}
	}
	return &arrayMeta{
		Shape:      doc.Shape,
		Chunks:     doc.Chunks,
		DType:      dt,
		Compressor: comp,
		Fill:       fill,
	}, nil
}

// encodeFill renders a fill value per the zarr v2 convention: non-finite
// floats become the strings "NaN", "Infinity" and "-Infinity".
func encodeFill(d DType, fill float64) (jsoniter.RawMessage, error) {
	if d.IsFloat() {
		switch {
		case math.IsNaN(fill):
			return jsoniter.RawMessage(`"NaN"`), nil
		case math.IsInf(fill, 1):
			return jsoniter.RawMessage(`"Infinity"`), nil
		case math.IsInf(fill, -1):
			return jsoniter.RawMessage(`"-Infinity"`), nil
		}
		return json.Marshal(fill)
	}
	return json.Marshal(int64(fill))
}

func decodeFill(d DType, raw jsoniter.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return d.defaultFill(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("zarr: fill_value %q is not supported", s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("zarr: parse fill_value: %w", err)
	}
	return f, nil
}

// -----------------------------------------------------------------------------
// Attributes
// -----------------------------------------------------------------------------

func encodeAttrs(attrs map[string]any) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return json.Marshal(attrs)
}

func parseAttrs(b []byte) (map[string]any, error) {
	attrs := map[string]any{}
	if err := json.Unmarshal(b, &attrs); err != nil {
		return nil, fmt.Errorf("zarr: parse %s: %w", attrsMetaName, err)
	}
	return attrs, nil
}

// -----------------------------------------------------------------------------
// Consolidated metadata
// -----------------------------------------------------------------------------

type consolidatedDoc struct {
	Metadata map[string]jsoniter.RawMessage `json:"metadata"`
	Format   int                            `json:"zarr_consolidated_format"`
}

func encodeConsolidated(docs map[string][]byte) ([]byte, error) {
	meta := make(map[string]jsoniter.RawMessage, len(docs))
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		meta[k] = jsoniter.RawMessage(docs[k])
	}
	return json.Marshal(consolidatedDoc{Metadata: meta, Format: 1})
}

func parseConsolidated(b []byte) (map[string][]byte, error) {
	var doc consolidatedDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("zarr: parse %s: %w", consolidatedMetaName, err)
	}
	if doc.Format != 1 {
		return nil, fmt.Errorf("zarr: unsupported consolidated format %d", doc.Format)
	}
	out := make(map[string][]byte, len(doc.Metadata))
	for k, v := range doc.Metadata {
		out[k] = []byte(v)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Key helpers
// -----------------------------------------------------------------------------

// joinKey joins hierarchy path segments into a store key, skipping empties so
// that the root path "" composes cleanly.
func joinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// splitNodePath returns the parent path and final segment of a node path.
func splitNodePath(path string) (parent, name string) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
