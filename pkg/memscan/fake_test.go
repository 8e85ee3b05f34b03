package memscan

import (
	"errors"
	"sync"
)

var (
	errNoMoreRegions = errors.New("no more regions")
	errNotMapped     = errors.New("address not mapped")
	errInducedFault  = errors.New("induced fault")
	errShortTransfer = errors.New("short transfer")
)

// fakeProcess implements ProcessHandle over in-memory buffers laid out
// as address-space regions, so the engine can be tested without a live
// process on any platform.
type fakeProcess struct {
	mu         sync.Mutex
	regions    []*fakeRegion
	failReads  map[uint64]bool // region base -> reads fault
	failWrites map[uint64]bool // region base -> writes fault
	closed     bool
}

type fakeRegion struct {
	Region
	data []byte // nil when the region has no backing (free/reserved)
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		failReads:  make(map[uint64]bool),
		failWrites: make(map[uint64]bool),
	}
}

// addRegion appends a region; callers add regions in ascending base
// order. Committed regions get zeroed backing storage.
func (p *fakeProcess) addRegion(base, size uint64, state, protect uint32) *fakeRegion {
	r := &fakeRegion{
		Region: Region{Base: base, AllocBase: base, Size: size, State: state, Protect: protect, Type: 0x20000},
	}
	if state == MemCommit {
		r.data = make([]byte, size)
	}
	p.regions = append(p.regions, r)
	return r
}

func (p *fakeProcess) find(addr uint64) *fakeRegion {
	for _, r := range p.regions {
		if addr >= r.Base && addr < r.End() {
			return r
		}
	}
	return nil
}

// poke mutates memory directly, bypassing the handle, like another
// thread of the target would.
func (p *fakeProcess) poke(addr uint64, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.find(addr)
	if r == nil || r.data == nil {
		panic("poke outside committed region")
	}
	copy(r.data[addr-r.Base:], data)
}

// peek reads memory directly, bypassing the handle.
func (p *fakeProcess) peek(addr uint64, n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.find(addr)
	if r == nil || r.data == nil {
		panic("peek outside committed region")
	}
	out := make([]byte, n)
	copy(out, r.data[addr-r.Base:])
	return out
}

func (p *fakeProcess) ReadMemory(buf []byte, addr uint64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.find(addr)
	if r == nil || r.data == nil {
		return 0, errNotMapped
	}
	if p.failReads[r.Base] {
		return 0, errInducedFault
	}
	n := copy(buf, r.data[addr-r.Base:])
	if n < len(buf) {
		return n, errShortTransfer
	}
	return n, nil
}

func (p *fakeProcess) WriteMemory(addr uint64, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.find(addr)
	if r == nil || r.data == nil {
		return 0, errNotMapped
	}
	if p.failWrites[r.Base] || !r.Writable() {
		return 0, errInducedFault
	}
	n := copy(r.data[addr-r.Base:], data)
	if n < len(data) {
		return n, errShortTransfer
	}
	return n, nil
}

func (p *fakeProcess) QueryRegion(addr uint64) (Region, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r := p.find(addr); r != nil {
		return r.Region, nil
	}
	// model the gap up to the next mapped region as free space
	for _, r := range p.regions {
		if r.Base > addr {
			return Region{Base: addr, Size: r.Base - addr, State: MemFree}, nil
		}
	}
	return Region{}, errNoMoreRegions
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeSession builds a session over a single read-write region holding
// size zeroed bytes at base.
func fakeSession(base uint64, size uint64) (*Session, *fakeProcess) {
	p := newFakeProcess()
	p.addRegion(base, size, MemCommit, PageReadWrite)
	return NewSession(4242, "victim.exe", p), p
}
