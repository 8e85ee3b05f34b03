package memscan

// MemoryReader is like io.ReaderAt, but the offset is an address in the
// attached process' virtual address space.
type MemoryReader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// MemoryReadWriter is an interface for reading or writing the target's
// memory. Implementations must return a non-nil error whenever fewer
// bytes than requested were transferred.
type MemoryReadWriter interface {
	MemoryReader
	WriteMemory(addr uint64, data []byte) (written int, err error)
}

// RegionQuerier describes the virtual layout of a process one region at
// a time. QueryRegion returns the region containing addr, whatever its
// state; an error means the address space is exhausted or the query
// itself failed.
type RegionQuerier interface {
	QueryRegion(addr uint64) (Region, error)
}

// ProcessHandle is the narrow OS surface a Session drives: memory
// access, layout queries and handle lifetime. The native package
// provides the real implementation; tests provide synthetic ones.
type ProcessHandle interface {
	MemoryReadWriter
	RegionQuerier
	Close() error
}
