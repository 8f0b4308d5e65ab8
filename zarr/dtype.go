package zarr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// DType
// -----------------------------------------------------------------------------

// DType enumerates the element types this implementation stores.
//
// All numeric types are little-endian, C order. The zarr v2 encoding strings
// ("<f8", "|i1", ...) are used in array metadata documents.
type DType int

// Supported element types.
const (
	Float64 DType = iota
	Float32
	Int64
	Int32
	Int16
	Int8
	Uint8
	Bool
)

var dtypeEncodings = map[DType]string{
	Float64: "<f8",
	Float32: "<f4",
	Int64:   "<i8",
	Int32:   "<i4",
	Int16:   "<i2",
	Int8:    "|i1",
	Uint8:   "|u1",
	Bool:    "|b1",
}

// String returns the zarr v2 dtype encoding.
func (d DType) String() string {
	if s, ok := dtypeEncodings[d]; ok {
		return s
	}
	return fmt.Sprintf("DType(%d)", int(d))
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float64, Int64:
		return 8
	case Float32, Int32:
		return 4
	case Int16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	}
	return 0
}

// IsFloat reports whether the dtype stores floating-point values.
func (d DType) IsFloat() bool {
	return d == Float64 || d == Float32
}

// ParseDType maps a zarr v2 dtype encoding back to a DType.
func ParseDType(s string) (DType, error) {
	for d, enc := range dtypeEncodings {
		if s == enc {
			return d, nil
		}
	}
	return 0, fmt.Errorf("zarr: dtype %q: %w", s, ErrUnsupportedDType)
}

// SmallestIntDType returns the narrowest signed integer dtype that can hold
// every value in [min, max].
func SmallestIntDType(min, max int64) DType {
	switch {
	case min >= math.MinInt8 && max <= math.MaxInt8:
		return Int8
	case min >= math.MinInt16 && max <= math.MaxInt16:
		return Int16
	case min >= math.MinInt32 && max <= math.MaxInt32:
		return Int32
	default:
		return Int64
	}
}

// defaultFill returns the fill value for cells never written: NaN for floats,
// -1 for signed integers, 0 for unsigned and bool.
func (d DType) defaultFill() float64 {
	switch {
	case d.IsFloat():
		return math.NaN()
	case d == Uint8 || d == Bool:
		return 0
	default:
		return -1
	}
}

// -----------------------------------------------------------------------------
// Element codec
// -----------------------------------------------------------------------------

// element constrains the in-memory representations arrays are read into and
// written from. Narrower stored dtypes widen on read and truncate on write.
type element interface {
	~float64 | ~int64
}

// encodeElems converts values to the dtype's little-endian byte layout.
func encodeElems[T element](vals []T, d DType) ([]byte, error) {
	buf := make([]byte, len(vals)*d.Size())
	switch d {
	case Float64:
		for i, v := range vals {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(float64(v)))
		}
	case Float32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
	case Int64:
		for i, v := range vals {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(int64(v)))
		}
	case Int32:
		for i, v := range vals {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(int32(v)))
		}
	case Int16:
		for i, v := range vals {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
		}
	case Int8:
		for i, v := range vals {
			buf[i] = byte(int8(v))
		}
	case Uint8:
		for i, v := range vals {
			buf[i] = byte(uint8(v))
		}
	case Bool:
		for i, v := range vals {
			if v != 0 {
				buf[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("zarr: encode %s: %w", d, ErrUnsupportedDType)
	}
	return buf, nil
}

// decodeElems converts a little-endian chunk payload into values of type T.
func decodeElems[T element](b []byte, d DType) ([]T, error) {
	if d.Size() == 0 || len(b)%d.Size() != 0 {
		return nil, fmt.Errorf("zarr: chunk payload of %d bytes is not a whole number of %s elements", len(b), d)
	}
	n := len(b) / d.Size()
	vals := make([]T, n)
	switch d {
	case Float64:
		for i := range vals {
			vals[i] = T(math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:])))
		}
	case Float32:
		for i := range vals {
			vals[i] = T(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
		}
	case Int64:
		for i := range vals {
			vals[i] = T(int64(binary.LittleEndian.Uint64(b[i*8:])))
		}
	case Int32:
		for i := range vals {
			vals[i] = T(int32(binary.LittleEndian.Uint32(b[i*4:])))
		}
	case Int16:
		for i := range vals {
			vals[i] = T(int16(binary.LittleEndian.Uint16(b[i*2:])))
		}
	case Int8:
		for i := range vals {
			vals[i] = T(int8(b[i]))
		}
	case Uint8:
		for i := range vals {
			vals[i] = T(b[i])
		}
	case Bool:
		for i := range vals {
			if b[i] != 0 {
				vals[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("zarr: decode %s: %w", d, ErrUnsupportedDType)
	}
	return vals, nil
}
