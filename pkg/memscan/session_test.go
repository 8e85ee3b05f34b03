package memscan

import (
	"errors"
	"testing"
)

func TestSessionReadWriteRoundTrip(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x2000)

	if err := s.WriteBytes(0x10100, []byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	buf, err := s.ReadBytes(0x10100, 4)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("expected %#v, got %#v", want, buf)
		}
	}
	if s.Pid() != 4242 {
		t.Errorf("expected pid 4242, got %d", s.Pid())
	}
	if s.Name() != "victim.exe" {
		t.Errorf("expected name victim.exe, got %q", s.Name())
	}
}

func TestSessionDetach(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)
	if err := s.Valid(); err != nil {
		t.Fatalf("expected fresh session to be valid, got %v", err)
	}
	if err := s.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if !p.closed {
		t.Fatal("expected Detach to close the process handle")
	}
	if err := s.Valid(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from Valid, got %v", err)
	}
	// detaching twice is not an error
	if err := s.Detach(); err != nil {
		t.Fatalf("second Detach: %v", err)
	}

	if _, err := s.ReadBytes(0x10000, 4); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from ReadBytes, got %v", err)
	}
	if err := s.WriteBytes(0x10000, []byte{1}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from WriteBytes, got %v", err)
	}
	if _, err := s.QueryRegion(0x10000); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from QueryRegion, got %v", err)
	}
}

func TestSessionPartialRead(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)

	// crosses the end of the mapped region
	if _, err := s.ReadBytes(0x10ffe, 4); !errors.Is(err, ErrPartialRead) {
		t.Fatalf("expected ErrPartialRead, got %v", err)
	}
	// entirely unmapped
	if _, err := s.ReadBytes(0x90000, 4); !errors.Is(err, ErrPartialRead) {
		t.Fatalf("expected ErrPartialRead, got %v", err)
	}
}

func TestSessionPartialWrite(t *testing.T) {
	p := newFakeProcess()
	p.addRegion(0x10000, 0x1000, MemCommit, PageReadOnly)
	s := NewSession(4242, "victim.exe", p)

	err := s.WriteBytes(0x10000, []byte{1, 2, 3, 4})
	if !errors.Is(err, ErrPartialWrite) {
		t.Fatalf("expected ErrPartialWrite, got %v", err)
	}
}

func TestReadModifyByAddress(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)

	for _, v := range []Value{
		Int32Value(-123456),
		Int64Value(1 << 40),
		Float32Value(3.25),
		Float64Value(-0.5),
		ByteValue(0x7f),
	} {
		if err := s.ModifyByAddress(0x10200, v); err != nil {
			t.Fatalf("ModifyByAddress(%s): %v", v, err)
		}
		got, err := s.ReadByAddress(0x10200, v.Kind())
		if err != nil {
			t.Fatalf("ReadByAddress(%s): %v", v.Kind(), err)
		}
		if got != v {
			t.Fatalf("expected %#v, got %#v", v, got)
		}
	}

	// the write really lands in the target's memory
	if err := s.ModifyByAddress(0x10300, Int32Value(9999)); err != nil {
		t.Fatalf("ModifyByAddress: %v", err)
	}
	raw := p.peek(0x10300, 4)
	want := []byte{0x0f, 0x27, 0, 0}
	for i := range want {
		if raw[i] != want[i] {
			t.Fatalf("expected raw bytes %#v, got %#v", want, raw)
		}
	}
}

func TestReadByAddressInvalid(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)

	_, err := s.ReadByAddress(0xdead0000, Int32)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	// a short read at the region boundary is an invalid address too
	_, err = s.ReadByAddress(0x10ffd, Int64)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}
