package memscan

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies the type of a scanned value. The set of kinds is
// closed; everything a scan finds, a filter narrows and a freeze writes
// is one of these.
type ValueKind uint8

const (
	// Int32 is a 32-bit two's complement integer.
	Int32 ValueKind = iota
	// Int64 is a 64-bit two's complement integer.
	Int64
	// Float32 is an IEEE-754 single precision float.
	Float32
	// Float64 is an IEEE-754 double precision float.
	Float64
	// Byte is a single raw octet.
	Byte
)

// Size returns the width in bytes of values of this kind.
func (k ValueKind) Size() int {
	switch k {
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	case Byte:
		return 1
	}
	return 0
}

func (k ValueKind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Byte:
		return "byte"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// ParseKind converts a kind name used on the command line into a
// ValueKind.
func ParseKind(s string) (ValueKind, error) {
	switch s {
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "byte":
		return Byte, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnsupportedKind, s)
}

// Value is a scalar tagged with its kind. The zero Value is Int32(0).
// Values are immutable; the bit pattern is stored exactly as it will be
// written to memory, so comparisons between values and raw memory are
// bit-exact for every kind, floats included.
type Value struct {
	kind ValueKind
	bits uint64
}

// Int32Value returns an Int32 Value.
func Int32Value(v int32) Value {
	return Value{kind: Int32, bits: uint64(uint32(v))}
}

// Int64Value returns an Int64 Value.
func Int64Value(v int64) Value {
	return Value{kind: Int64, bits: uint64(v)}
}

// Float32Value returns a Float32 Value.
func Float32Value(v float32) Value {
	return Value{kind: Float32, bits: uint64(math.Float32bits(v))}
}

// Float64Value returns a Float64 Value.
func Float64Value(v float64) Value {
	return Value{kind: Float64, bits: math.Float64bits(v)}
}

// ByteValue returns a Byte Value.
func ByteValue(v byte) Value {
	return Value{kind: Byte, bits: uint64(v)}
}

// ParseValue parses the string representation of a value of the given
// kind. Integers are decimal, floats use the usual Go syntax.
func ParseValue(s string, k ValueKind) (Value, error) {
	switch k {
	case Int32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as int32", s)
		}
		return Int32Value(int32(n)), nil
	case Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as int64", s)
		}
		return Int64Value(n), nil
	case Float32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as float32", s)
		}
		return Float32Value(float32(f)), nil
	case Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as float64", s)
		}
		return Float64Value(f), nil
	case Byte:
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return Value{}, fmt.Errorf("cannot parse %q as byte", s)
		}
		return ByteValue(byte(n)), nil
	}
	return Value{}, fmt.Errorf("%w %v", ErrUnsupportedKind, k)
}

// Kind returns the kind the value was constructed with.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Encode returns the little-endian byte pattern of the value. The
// returned slice is always exactly v.Kind().Size() bytes long.
func (v Value) Encode() []byte {
	switch v.kind {
	case Int32, Float32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.bits))
		return buf
	case Int64, Float64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v.bits)
		return buf
	case Byte:
		return []byte{byte(v.bits)}
	}
	return nil
}

// DecodeValue decodes a value of the given kind from the prefix of buf.
// If buf is shorter than the kind's width the decode fails with
// ErrMalformedData; an unknown kind fails with ErrUnsupportedKind.
func DecodeValue(buf []byte, k ValueKind) (Value, error) {
	if k.Size() == 0 {
		return Value{}, fmt.Errorf("%w %v", ErrUnsupportedKind, k)
	}
	if len(buf) < k.Size() {
		return Value{}, fmt.Errorf("%w: need %d bytes for %s, have %d", ErrMalformedData, k.Size(), k, len(buf))
	}
	switch k {
	case Int32, Float32:
		return Value{kind: k, bits: uint64(binary.LittleEndian.Uint32(buf))}, nil
	case Int64, Float64:
		return Value{kind: k, bits: binary.LittleEndian.Uint64(buf)}, nil
	case Byte:
		return Value{kind: Byte, bits: uint64(buf[0])}, nil
	}
	return Value{}, fmt.Errorf("%w %v", ErrUnsupportedKind, k)
}

// EqualBytes reports whether the prefix of buf holds exactly this
// value's bit pattern.
func (v Value) EqualBytes(buf []byte) bool {
	w, err := DecodeValue(buf, v.kind)
	if err != nil {
		return false
	}
	return w.bits == v.bits
}

// Int returns the value as an int64. Meaningful for integer kinds.
func (v Value) Int() int64 {
	if v.kind == Int32 {
		return int64(int32(uint32(v.bits)))
	}
	return int64(v.bits)
}

// Float returns the value as a float64. Meaningful for float kinds.
func (v Value) Float() float64 {
	if v.kind == Float32 {
		return float64(math.Float32frombits(uint32(v.bits)))
	}
	return math.Float64frombits(v.bits)
}

func (v Value) String() string {
	switch v.kind {
	case Int32, Int64, Byte:
		return strconv.FormatInt(v.Int(), 10)
	case Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	}
	return fmt.Sprintf("Value(%#x)", v.bits)
}
