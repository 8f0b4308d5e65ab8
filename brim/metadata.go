package brim

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brim-format/brim-go/zarr"
)

// -----------------------------------------------------------------------------
// Typed values
// -----------------------------------------------------------------------------

// ValueKind tags the dynamic type of a metadata Value.
type ValueKind int

// Metadata value kinds.
const (
	KindNumber ValueKind = iota
	KindString
	KindBool
	KindTime
	KindNumbers
	KindStrings
)

// Value is a typed metadata value. The zero value is the number 0. Callers
// switch on Kind or use the kind accessors; values round-trip through
// storage without changing kind.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
	t    time.Time
	nums []float64
	strs []string
}

// NumberValue returns a numeric value.
func NumberValue(v float64) Value { return Value{kind: KindNumber, num: v} }

// StringValue returns a text value.
func StringValue(v string) Value { return Value{kind: KindString, str: v} }

// BoolValue returns a boolean value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// TimeValue returns a timestamp value.
func TimeValue(v time.Time) Value { return Value{kind: KindTime, t: v} }

// NumbersValue returns a numeric array value. The slice is copied.
func NumbersValue(v []float64) Value {
	return Value{kind: KindNumbers, nums: append([]float64(nil), v...)}
}

// StringsValue returns a text array value. The slice is copied.
func StringsValue(v []string) Value {
	return Value{kind: KindStrings, strs: append([]string(nil), v...)}
}

// Kind reports the value's type tag.
func (v Value) Kind() ValueKind { return v.kind }

// Number returns the numeric value, ok when the kind matches.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Text returns the string value, ok when the kind matches.
func (v Value) Text() (string, bool) { return v.str, v.kind == KindString }

// Bool returns the boolean value, ok when the kind matches.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Time returns the timestamp value, ok when the kind matches.
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// Numbers returns a copy of the numeric array, ok when the kind matches.
func (v Value) Numbers() ([]float64, bool) {
	if v.kind != KindNumbers {
		return nil, false
	}
	return append([]float64(nil), v.nums...), true
}

// Strings returns a copy of the text array, ok when the kind matches.
func (v Value) Strings() ([]string, bool) {
	if v.kind != KindStrings {
		return nil, false
	}
	return append([]string(nil), v.strs...), true
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindNumbers:
		return fmt.Sprint(v.nums)
	case KindStrings:
		return fmt.Sprint(v.strs)
	}
	return ""
}

// storable rejects values the JSON attribute encoding cannot carry.
func (v Value) storable() error {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("non-finite numbers cannot be stored")
		}
	case KindNumbers:
		for _, n := range v.nums {
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return fmt.Errorf("non-finite numbers cannot be stored")
			}
		}
	}
	return nil
}

// native returns the plain Go representation used by lossy bulk views.
func (v Value) native() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindNumbers:
		return append([]float64(nil), v.nums...)
	case KindStrings:
		return append([]string(nil), v.strs...)
	}
	return nil
}

// Item couples a metadata value with its physical unit. An empty unit means
// the value is unit-less; readers are expected to check, not assume.
type Item struct {
	Value Value
	Units string
}

// Unitless reports whether the item carries no unit annotation.
func (it Item) Unitless() bool { return it.Units == "" }

// -----------------------------------------------------------------------------
// Attribute codec
// -----------------------------------------------------------------------------

// Entry document field names.
const (
	itemTypeField  = "type"
	itemValueField = "value"
	itemUnitsField = "units"
)

var kindTags = map[ValueKind]string{
	KindNumber:  "number",
	KindString:  "string",
	KindBool:    "bool",
	KindTime:    "time",
	KindNumbers: "numbers",
	KindStrings: "strings",
}

// encode returns the attribute document for an item. Values are normalized
// to their JSON shapes so staged and persisted entries read back the same.
func (it Item) encode() map[string]any {
	var val any
	switch v := it.Value; v.kind {
	case KindNumber:
		val = v.num
	case KindString:
		val = v.str
	case KindBool:
		val = v.b
	case KindTime:
		val = v.t.Format(time.RFC3339Nano)
	case KindNumbers:
		arr := make([]any, len(v.nums))
		for i, n := range v.nums {
			arr[i] = n
		}
		val = arr
	case KindStrings:
		arr := make([]any, len(v.strs))
		for i, s := range v.strs {
			arr[i] = s
		}
		val = arr
	}
	doc := map[string]any{
		itemTypeField:  kindTags[it.Value.kind],
		itemValueField: val,
	}
	if it.Units != "" {
		doc[itemUnitsField] = it.Units
	}
	return doc
}

// decodeItem parses an attribute document back into an item.
func decodeItem(raw any) (Item, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return Item{}, fmt.Errorf("metadata entry is not an object")
	}
	tag, _ := doc[itemTypeField].(string)
	units, _ := doc[itemUnitsField].(string)
	val := doc[itemValueField]

	it := Item{Units: units}
	switch tag {
	case kindTags[KindNumber]:
		n, ok := val.(float64)
		if !ok {
			return Item{}, fmt.Errorf("metadata entry tagged %s holds %T", tag, val)
		}
		it.Value = NumberValue(n)
	case kindTags[KindString]:
		s, ok := val.(string)
		if !ok {
			return Item{}, fmt.Errorf("metadata entry tagged %s holds %T", tag, val)
		}
		it.Value = StringValue(s)
	case kindTags[KindBool]:
		b, ok := val.(bool)
		if !ok {
			return Item{}, fmt.Errorf("metadata entry tagged %s holds %T", tag, val)
		}
		it.Value = BoolValue(b)
	case kindTags[KindTime]:
		s, ok := val.(string)
		if !ok {
			return Item{}, fmt.Errorf("metadata entry tagged %s holds %T", tag, val)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Item{}, fmt.Errorf("metadata entry tagged %s: %w", tag, err)
		}
		it.Value = TimeValue(t)
	case kindTags[KindNumbers]:
		arr, ok := val.([]any)
		if !ok {
			return Item{}, fmt.Errorf("metadata entry tagged %s holds %T", tag, val)
		}
		nums := make([]float64, len(arr))
		for i, e := range arr {
			n, ok := e.(float64)
			if !ok {
				return Item{}, fmt.Errorf("metadata entry tagged %s holds %T element", tag, e)
			}
			nums[i] = n
		}
		it.Value = Value{kind: KindNumbers, nums: nums}
	case kindTags[KindStrings]:
		arr, ok := val.([]any)
		if !ok {
			return Item{}, fmt.Errorf("metadata entry tagged %s holds %T", tag, val)
		}
		strs := make([]string, len(arr))
		for i, e := range arr {
			s, ok := e.(string)
			if !ok {
				return Item{}, fmt.Errorf("metadata entry tagged %s holds %T element", tag, e)
			}
			strs[i] = s
		}
		it.Value = Value{kind: KindStrings, strs: strs}
	default:
		return Item{}, fmt.Errorf("metadata entry has unknown type %q", tag)
	}
	return it, nil
}

// -----------------------------------------------------------------------------
// Accessor
// -----------------------------------------------------------------------------

// Metadata provides typed access to the metadata of one data group. Reads
// consult the group's own record first and fall back to the file-global one;
// writes land in the group record unless made through SetGlobal or
// AddGlobal. The accessor returned by File.Metadata reads and writes the
// global record only.
//
// Mutations are staged in memory and persist when the file is flushed or
// closed.
type Metadata struct {
	f     *File
	owner *zarr.Group
}

// attrKey builds the attribute name of one entry.
func attrKey(cat Category, key string) string {
	return string(cat) + "." + key
}

// lookupOrder returns the parent groups to consult, most specific first.
func (m *Metadata) lookupOrder() []*zarr.Group {
	if m.owner == nil {
		return []*zarr.Group{m.f.base}
	}
	return []*zarr.Group{m.owner, m.f.base}
}

// record returns the metadata group under parent, nil when absent. With
// create set it is made on demand.
func (m *Metadata) record(ctx context.Context, parent *zarr.Group, create bool) (*zarr.Group, error) {
	if create {
		g, err := ensureGroup(ctx, parent, metadataGroupName)
		if err != nil {
			return nil, fmt.Errorf("brim: metadata: %w", err)
		}
		return g, nil
	}
	ok, err := parent.HasGroup(ctx, metadataGroupName)
	if err != nil {
		return nil, fmt.Errorf("brim: metadata: %w", mapErr(err))
	}
	if !ok {
		return nil, nil
	}
	g, err := parent.Group(ctx, metadataGroupName)
	if err != nil {
		return nil, fmt.Errorf("brim: metadata: %w", mapErr(err))
	}
	return g, nil
}

// Get reads one entry, checking the group record before the file-global one
// and failing with ErrNotFound when neither holds the key.
func (m *Metadata) Get(ctx context.Context, cat Category, key string) (Item, error) {
	attr := attrKey(cat, key)
	for _, parent := range m.lookupOrder() {
		rec, err := m.record(ctx, parent, false)
		if err != nil {
			return Item{}, err
		}
		if rec == nil {
			continue
		}
		raw, ok, err := rec.Attr(ctx, attr)
		if err != nil {
			return Item{}, fmt.Errorf("brim: metadata %s: %w", attr, mapErr(err))
		}
		if !ok {
			continue
		}
		it, err := decodeItem(raw)
		if err != nil {
			return Item{}, fmt.Errorf("brim: metadata %s: %w", attr, err)
		}
		return it, nil
	}
	return Item{}, fmt.Errorf("brim: metadata %s: %w", attr, ErrNotFound)
}

// number reads an entry and returns its numeric value.
func (m *Metadata) number(ctx context.Context, cat Category, key string) (float64, error) {
	it, err := m.Get(ctx, cat, key)
	if err != nil {
		return 0, err
	}
	n, ok := it.Value.Number()
	if !ok {
		return 0, fmt.Errorf("brim: metadata %s is not a number", attrKey(cat, key))
	}
	return n, nil
}

// Set stages one entry in the owning group's record (the global record for
// accessors from File.Metadata). Overwriting a key replaces its value, type,
// and unit together.
func (m *Metadata) Set(ctx context.Context, cat Category, key string, item Item) error {
	parent := m.owner
	if parent == nil {
		parent = m.f.base
	}
	return m.set(ctx, parent, cat, key, item)
}

// SetGlobal stages one entry in the file-global record.
func (m *Metadata) SetGlobal(ctx context.Context, cat Category, key string, item Item) error {
	return m.set(ctx, m.f.base, cat, key, item)
}

func (m *Metadata) set(ctx context.Context, parent *zarr.Group, cat Category, key string, item Item) error {
	if cat == "" || key == "" {
		return fmt.Errorf("brim: metadata: category and key must be non-empty")
	}
	if strings.Contains(string(cat), ".") {
		return fmt.Errorf("brim: metadata: category %q must not contain a dot", cat)
	}
	if err := item.Value.storable(); err != nil {
		return fmt.Errorf("brim: metadata %s: %w", attrKey(cat, key), err)
	}
	if m.f.IsReadOnly() {
		return fmt.Errorf("brim: set metadata %s: %w", attrKey(cat, key), ErrReadOnly)
	}
	rec, err := m.record(ctx, parent, true)
	if err != nil {
		return err
	}
	if err := rec.SetAttr(ctx, attrKey(cat, key), item.encode()); err != nil {
		return fmt.Errorf("brim: set metadata %s: %w", attrKey(cat, key), mapErr(err))
	}
	return nil
}

// Add stages a batch of entries under one category.
func (m *Metadata) Add(ctx context.Context, cat Category, items map[string]Item) error {
	for _, key := range sortedKeys(items) {
		if err := m.Set(ctx, cat, key, items[key]); err != nil {
			return err
		}
	}
	return nil
}

// AddGlobal stages a batch of entries in the file-global record.
func (m *Metadata) AddGlobal(ctx context.Context, cat Category, items map[string]Item) error {
	for _, key := range sortedKeys(items) {
		if err := m.SetGlobal(ctx, cat, key, items[key]); err != nil {
			return err
		}
	}
	return nil
}

// Category returns the merged view of one category: file-global entries
// overlaid with the group's own. Entries that fail to parse are skipped.
func (m *Metadata) Category(ctx context.Context, cat Category) (map[string]Item, error) {
	out := make(map[string]Item)
	prefix := string(cat) + "."
	parents := m.lookupOrder()
	for i := len(parents) - 1; i >= 0; i-- {
		rec, err := m.record(ctx, parents[i], false)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		attrs, err := rec.Attrs(ctx)
		if err != nil {
			return nil, fmt.Errorf("brim: metadata: %w", mapErr(err))
		}
		for k, raw := range attrs {
			key, ok := strings.CutPrefix(k, prefix)
			if !ok || key == "" {
				continue
			}
			it, err := decodeItem(raw)
			if err != nil {
				continue
			}
			out[key] = it
		}
	}
	return out, nil
}

// AllToMap flattens every entry into {category: {key: value}} with plain Go
// values. Units and unparsable entries are dropped; this is a convenience
// view, not the canonical representation.
func (m *Metadata) AllToMap(ctx context.Context) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	parents := m.lookupOrder()
	for i := len(parents) - 1; i >= 0; i-- {
		rec, err := m.record(ctx, parents[i], false)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		attrs, err := rec.Attrs(ctx)
		if err != nil {
			return nil, fmt.Errorf("brim: metadata: %w", mapErr(err))
		}
		for k, raw := range attrs {
			cat, key, ok := strings.Cut(k, ".")
			if !ok || cat == "" || key == "" {
				continue
			}
			it, err := decodeItem(raw)
			if err != nil {
				continue
			}
			if out[cat] == nil {
				out[cat] = make(map[string]any)
			}
			out[cat][key] = it.Value.native()
		}
	}
	return out, nil
}

// sortedKeys returns the map's keys in ascending order, for deterministic
// iteration.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
