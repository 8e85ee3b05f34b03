package memscan

// Memory state and protection constants as reported by the platform's
// virtual memory interface (VirtualQueryEx). The values are the Windows
// ones; declaring them here keeps the walk predicate testable against
// synthetic processes on any platform.
const (
	MemCommit  = 0x1000
	MemReserve = 0x2000
	MemFree    = 0x10000

	PageNoAccess         = 0x01
	PageReadOnly         = 0x02
	PageReadWrite        = 0x04
	PageWriteCopy        = 0x08
	PageExecute          = 0x10
	PageExecuteRead      = 0x20
	PageExecuteReadWrite = 0x40
	PageExecuteWriteCopy = 0x80
	PageGuard            = 0x100
)

// maxUserAddr is the first address past the user-mode portion of a
// 64-bit Windows address space. The region walk never goes beyond it.
const maxUserAddr uint64 = 0x7fffffff0000

// Region describes one contiguous range of another process' virtual
// address space.
type Region struct {
	Base      uint64
	AllocBase uint64
	Size      uint64
	State     uint32
	Protect   uint32
	Type      uint32
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

// Readable reports whether the region is committed with a protection
// that permits reading. Guard pages report false: the guard modifier
// changes the protection word so it is no longer one of the plain
// readable values.
func (r Region) Readable() bool {
	if r.State != MemCommit {
		return false
	}
	switch r.Protect {
	case PageReadOnly, PageReadWrite, PageWriteCopy, PageExecuteRead, PageExecuteReadWrite:
		return true
	}
	return false
}

// Writable reports whether the region is committed with a protection
// that permits writing.
func (r Region) Writable() bool {
	if r.State != MemCommit {
		return false
	}
	switch r.Protect {
	case PageReadWrite, PageWriteCopy, PageExecuteReadWrite, PageExecuteWriteCopy:
		return true
	}
	return false
}

// RegionWalker streams the committed readable regions of a process in
// ascending base order. Usage follows bufio.Scanner:
//
//	w := sess.Regions()
//	for w.Next() {
//		r := w.Region()
//		...
//	}
//
// Regions that are free, reserved or unreadable are skipped
// transparently. The walk ends at the first failed query or at the
// user-mode address ceiling; a walker cannot be restarted. Err reports
// the query error that ended the walk, if any.
type RegionWalker struct {
	q    RegionQuerier
	addr uint64
	cur  Region
	done bool
	err  error
}

// NewRegionWalker returns a walker over q starting at address zero.
func NewRegionWalker(q RegionQuerier) *RegionWalker {
	return &RegionWalker{q: q}
}

// Next advances the walker to the next readable region, returning false
// when the address space is exhausted.
func (w *RegionWalker) Next() bool {
	for !w.done {
		if w.addr >= maxUserAddr {
			w.done = true
			return false
		}
		r, err := w.q.QueryRegion(w.addr)
		if err != nil {
			w.err = err
			w.done = true
			return false
		}
		next := r.Base + r.Size
		if next <= w.addr {
			// zero-sized region or address wrap
			w.done = true
			return false
		}
		w.addr = next
		if r.Readable() {
			w.cur = r
			return true
		}
	}
	return false
}

// Region returns the region found by the last successful call to Next.
func (w *RegionWalker) Region() Region {
	return w.cur
}

// Err returns the query error that ended the walk, or nil if the walk
// ended at the address ceiling or a zero-sized region. Querying past
// the last mapped region fails on some platforms, so a non-nil Err does
// not by itself mean the walk was cut short; callers check for specific
// errors such as ErrSessionClosed.
func (w *RegionWalker) Err() error {
	return w.err
}
