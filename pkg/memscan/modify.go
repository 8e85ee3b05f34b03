package memscan

import (
	"errors"
	"fmt"
)

// ReadByAddress reads one value of the given kind at an absolute
// address. If a full value cannot be read there the error wraps
// ErrInvalidAddress.
func (s *Session) ReadByAddress(addr uint64, k ValueKind) (Value, error) {
	data, err := s.ReadBytes(addr, k.Size())
	if err != nil {
		if errors.Is(err, ErrPartialRead) {
			return Value{}, fmt.Errorf("no readable %s at %#x: %w", k, addr, ErrInvalidAddress)
		}
		return Value{}, err
	}
	return DecodeValue(data, k)
}

// ModifyByAddress writes v's full encoded pattern at an absolute
// address. The write is not verified by re-reading and does not
// re-filter any candidate set.
func (s *Session) ModifyByAddress(addr uint64, v Value) error {
	return s.WriteBytes(addr, v.Encode())
}

// ReadByIndex reads the current value of candidate i of c, using the
// kind the set was scanned with. A bad index fails with
// ErrIndexOutOfRange.
func (s *Session) ReadByIndex(c *CandidateSet, i int) (Value, error) {
	addr, err := c.Addr(i)
	if err != nil {
		return Value{}, err
	}
	return s.ReadByAddress(addr, c.Kind())
}

// ModifyByIndex writes v at candidate i of c. A bad index fails with
// ErrIndexOutOfRange, a kind mismatch with ErrKindMismatch.
func (s *Session) ModifyByIndex(c *CandidateSet, i int, v Value) error {
	if v.Kind() != c.Kind() {
		return fmt.Errorf("%w: set holds %s, value is %s", ErrKindMismatch, c.Kind(), v.Kind())
	}
	addr, err := c.Addr(i)
	if err != nil {
		return err
	}
	return s.ModifyByAddress(addr, v)
}
