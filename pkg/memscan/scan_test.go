package memscan

import (
	"errors"
	"testing"
)

func TestScanFindsAllMatches(t *testing.T) {
	s, p := fakeSession(0x10000, 0x2000)
	for _, off := range []uint64{8, 52, 1024} {
		p.poke(0x10000+off, Int32Value(100).Encode())
	}

	set, err := s.Scan(Int32Value(100))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if set.Kind() != Int32 {
		t.Errorf("expected kind %s, got %s", Int32, set.Kind())
	}
	want := []uint64{0x10008, 0x10034, 0x10400}
	got := set.Addrs()
	if len(got) != len(want) {
		t.Fatalf("expected addresses %#v, got %#v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected addresses %#v, got %#v", want, got)
		}
	}
}

func TestScanOverlappingMatches(t *testing.T) {
	s, p := fakeSession(0x10000, 0x1000)
	p.poke(0x10064, []byte{1, 1, 1, 1, 1, 1})

	set, err := s.Scan(Int32Value(0x01010101))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []uint64{0x10064, 0x10065, 0x10066}
	got := set.Addrs()
	if len(got) != len(want) {
		t.Fatalf("expected addresses %#v, got %#v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected addresses %#v, got %#v", want, got)
		}
	}
}

func TestScanSkipsFailingRegions(t *testing.T) {
	p := newFakeProcess()
	p.addRegion(0x10000, 0x1000, MemCommit, PageReadWrite)
	p.addRegion(0x20000, 0x1000, MemCommit, PageReadWrite)
	p.addRegion(0x30000, 0x1000, MemCommit, PageReadWrite)
	p.failReads[0x20000] = true
	s := NewSession(4242, "victim.exe", p)

	p.poke(0x10010, Int64Value(777).Encode())
	p.poke(0x20010, Int64Value(777).Encode())
	p.poke(0x30010, Int64Value(777).Encode())

	set, err := s.Scan(Int64Value(777))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []uint64{0x10010, 0x30010}
	got := set.Addrs()
	if len(got) != len(want) {
		t.Fatalf("expected addresses %#v, got %#v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected addresses %#v, got %#v", want, got)
		}
	}
}

func TestScanCapsRegionRead(t *testing.T) {
	s, p := fakeSession(0x100000, maxScanChunk+0x1000)
	p.poke(0x100000+maxScanChunk-4, Int32Value(31337).Encode())
	p.poke(0x100000+maxScanChunk+16, Int32Value(31337).Encode())

	set, err := s.Scan(Int32Value(31337))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	got := set.Addrs()
	if len(got) != 1 || got[0] != 0x100000+maxScanChunk-4 {
		t.Fatalf("expected only the match below the chunk cap, got %#v", got)
	}
}

func TestScanByteValues(t *testing.T) {
	s, p := fakeSession(0x10000, 0x200)
	for _, off := range []uint64{3, 4, 0x1ff} {
		p.poke(0x10000+off, []byte{0xab})
	}

	set, err := s.Scan(ByteValue(0xab))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []uint64{0x10003, 0x10004, 0x101ff}
	got := set.Addrs()
	if len(got) != len(want) {
		t.Fatalf("expected addresses %#v, got %#v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected addresses %#v, got %#v", want, got)
		}
	}
}

func TestScanClosedSession(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)
	if err := s.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if _, err := s.Scan(Int32Value(1)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

// detachingProcess detaches its session after the first memory read,
// like a target exiting while a scan is in flight.
type detachingProcess struct {
	*fakeProcess
	sess  *Session
	reads int
}

func (p *detachingProcess) ReadMemory(buf []byte, addr uint64) (int, error) {
	n, err := p.fakeProcess.ReadMemory(buf, addr)
	p.reads++
	if p.reads == 1 {
		p.sess.Detach()
	}
	return n, err
}

func TestScanSessionDetachedMidWalk(t *testing.T) {
	fp := newFakeProcess()
	fp.addRegion(0x10000, 0x1000, MemCommit, PageReadWrite)
	fp.addRegion(0x20000, 0x1000, MemCommit, PageReadWrite)
	fp.poke(0x10010, Int32Value(9).Encode())
	fp.poke(0x20010, Int32Value(9).Encode())

	dp := &detachingProcess{fakeProcess: fp}
	dp.sess = NewSession(4242, "victim.exe", dp)

	set, err := dp.sess.Scan(Int32Value(9))
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if set != nil {
		t.Fatalf("expected no candidate set, got %#v", set.Addrs())
	}
}

func TestScanEmptyResult(t *testing.T) {
	s, _ := fakeSession(0x10000, 0x1000)

	set, err := s.Scan(Float64Value(1234.5678))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("expected no matches, got %d", set.Len())
	}
	if set.Kind() != Float64 {
		t.Errorf("expected kind %s, got %s", Float64, set.Kind())
	}
}
