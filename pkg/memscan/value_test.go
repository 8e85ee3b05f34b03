package memscan

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestValueEncode(t *testing.T) {
	for _, tc := range []struct {
		name string
		val  Value
		want []byte
	}{
		{"int32 small", Int32Value(100), []byte{100, 0, 0, 0}},
		{"int32 negative", Int32Value(-1), []byte{0xff, 0xff, 0xff, 0xff}},
		{"int32 min", Int32Value(math.MinInt32), []byte{0, 0, 0, 0x80}},
		{"int64", Int64Value(0x0102030405060708), []byte{8, 7, 6, 5, 4, 3, 2, 1}},
		{"int64 negative", Int64Value(-2), []byte{0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"float32", Float32Value(1.5), []byte{0, 0, 0xc0, 0x3f}},
		{"float64", Float64Value(1.5), []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f}},
		{"byte", ByteValue(0xab), []byte{0xab}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.val.Encode()
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
			if len(got) != tc.val.Kind().Size() {
				t.Fatalf("expected width %d, got %d", tc.val.Kind().Size(), len(got))
			}
		})
	}
}

func TestValueRoundTrip(t *testing.T) {
	vals := []Value{
		Int32Value(0),
		Int32Value(100),
		Int32Value(-12345),
		Int32Value(math.MaxInt32),
		Int64Value(math.MinInt64),
		Int64Value(1 << 40),
		Float32Value(0.1),
		Float32Value(float32(math.Inf(-1))),
		Float64Value(3.141592653589793),
		Float64Value(math.NaN()),
		ByteValue(0),
		ByteValue(255),
	}
	for _, v := range vals {
		got, err := DecodeValue(v.Encode(), v.Kind())
		if err != nil {
			t.Fatalf("decode %s %s: %v", v.Kind(), v, err)
		}
		if got != v {
			t.Fatalf("expected %s to round-trip, got %s (bits %#x vs %#x)", v, got, got.bits, v.bits)
		}
		if !v.EqualBytes(v.Encode()) {
			t.Fatalf("%s %s does not equal its own pattern", v.Kind(), v)
		}
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	for _, tc := range []struct {
		kind ValueKind
		buf  []byte
	}{
		{Int32, []byte{1, 2, 3}},
		{Int64, []byte{1, 2, 3, 4, 5, 6, 7}},
		{Float32, nil},
		{Float64, []byte{}},
		{Byte, nil},
	} {
		_, err := DecodeValue(tc.buf, tc.kind)
		if !errors.Is(err, ErrMalformedData) {
			t.Fatalf("expected ErrMalformedData decoding %d bytes as %s, got %v", len(tc.buf), tc.kind, err)
		}
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	// an unknown kind is reported as such even when buf is long enough
	// to trip the short-buffer check first
	for _, buf := range [][]byte{nil, {1, 2, 3, 4, 5, 6, 7, 8}} {
		_, err := DecodeValue(buf, ValueKind(99))
		if !errors.Is(err, ErrUnsupportedKind) {
			t.Fatalf("expected ErrUnsupportedKind decoding %d bytes, got %v", len(buf), err)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ValueKind
	}{
		{"int32", Int32},
		{"int", Int32},
		{"int64", Int64},
		{"long", Int64},
		{"float32", Float32},
		{"float", Float32},
		{"float64", Float64},
		{"double", Float64},
		{"byte", Byte},
	} {
		got, err := ParseKind(tc.in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("expected ParseKind(%q) = %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := ParseKind("uint128"); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		in   string
		kind ValueKind
		want Value
		ok   bool
	}{
		{"100", Int32, Int32Value(100), true},
		{"-42", Int32, Int32Value(-42), true},
		{"2147483648", Int32, Value{}, false},
		{"abc", Int32, Value{}, false},
		{"3.5", Int32, Value{}, false},
		{"9999999999", Int64, Int64Value(9999999999), true},
		{"2.5", Float32, Float32Value(2.5), true},
		{"-0.125", Float64, Float64Value(-0.125), true},
		{"200", Byte, ByteValue(200), true},
		{"256", Byte, Value{}, false},
		{"-1", Byte, Value{}, false},
	} {
		got, err := ParseValue(tc.in, tc.kind)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseValue(%q, %s): %v", tc.in, tc.kind, err)
			}
			if got != tc.want {
				t.Fatalf("expected ParseValue(%q, %s) = %s, got %s", tc.in, tc.kind, tc.want, got)
			}
		} else if err == nil {
			t.Fatalf("expected ParseValue(%q, %s) to fail, got %s", tc.in, tc.kind, got)
		}
	}
}

func TestKindSize(t *testing.T) {
	sizes := map[ValueKind]int{Int32: 4, Int64: 8, Float32: 4, Float64: 8, Byte: 1}
	for k, want := range sizes {
		if got := k.Size(); got != want {
			t.Errorf("expected %s.Size() = %d, got %d", k, want, got)
		}
	}
}

func TestValueString(t *testing.T) {
	for _, tc := range []struct {
		val  Value
		want string
	}{
		{Int32Value(-7), "-7"},
		{Int64Value(1 << 33), "8589934592"},
		{Float32Value(2.5), "2.5"},
		{Float64Value(-0.125), "-0.125"},
		{ByteValue(9), "9"},
	} {
		if got := tc.val.String(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}
