package starbind

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/memscout/memscout/pkg/memscan"
)

// starlarkToKind converts a starlark string into a value kind.
func starlarkToKind(v starlark.Value) (memscan.ValueKind, error) {
	s, ok := v.(starlark.String)
	if !ok {
		return 0, fmt.Errorf("kind argument is not a string")
	}
	return memscan.ParseKind(string(s))
}

// starlarkToAddr converts a starlark integer into an address.
func starlarkToAddr(v starlark.Value) (uint64, error) {
	n, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("address argument is not an integer")
	}
	addr, ok := n.Uint64()
	if !ok {
		return 0, fmt.Errorf("address %s out of range", n)
	}
	return addr, nil
}

// starlarkToValue converts a starlark scalar into an engine value of
// the given kind.
func starlarkToValue(v starlark.Value, kind memscan.ValueKind) (memscan.Value, error) {
	switch v := v.(type) {
	case starlark.Int:
		switch kind {
		case memscan.Float32, memscan.Float64:
			n, ok := v.Int64()
			if !ok {
				return memscan.Value{}, fmt.Errorf("value %s out of range", v)
			}
			return memscan.ParseValue(starlark.Float(n).String(), kind)
		}
		return memscan.ParseValue(v.String(), kind)
	case starlark.Float:
		return memscan.ParseValue(v.String(), kind)
	case starlark.String:
		return memscan.ParseValue(string(v), kind)
	}
	return memscan.Value{}, fmt.Errorf("cannot use %s as a %s value", v.Type(), kind)
}

// valueToStarlark converts an engine value into the corresponding
// starlark scalar.
func valueToStarlark(v memscan.Value) starlark.Value {
	switch v.Kind() {
	case memscan.Float32, memscan.Float64:
		return starlark.Float(v.Float())
	}
	return starlark.MakeInt64(v.Int())
}

// interfaceToStarlarkValue converts a simple go value into a starlark
// value, for arguments passed to a script's main function.
func interfaceToStarlarkValue(v interface{}) starlark.Value {
	switch v := v.(type) {
	case bool:
		return starlark.Bool(v)
	case int:
		return starlark.MakeInt64(int64(v))
	case int64:
		return starlark.MakeInt64(v)
	case uint64:
		return starlark.MakeUint64(v)
	case float64:
		return starlark.Float(v)
	case string:
		return starlark.String(v)
	case memscan.Value:
		return valueToStarlark(v)
	case nil:
		return starlark.None
	case error:
		return starlark.String(v.Error())
	default:
		return starlark.String(fmt.Sprintf("%v", v))
	}
}
