package memscan

import (
	"fmt"
	"sync"

	"github.com/memscout/memscout/pkg/logflags"
)

// Session represents an attach to a live process. Every engine
// operation goes through a Session; once Detach has been called they
// all fail with ErrSessionClosed.
//
// Plain reads and writes may run concurrently with each other and with
// freeze ticks. Scan and filter passes are serialized by an internal
// lock so only one of them mutates candidate state at a time.
type Session struct {
	pid  int
	name string

	mu sync.RWMutex // guards h
	h  ProcessHandle

	scanMu sync.Mutex // serializes scan and filter passes
}

// NewSession returns a Session over the given process handle.
// Production handles come from the native package.
func NewSession(pid int, name string, h ProcessHandle) *Session {
	return &Session{pid: pid, name: name, h: h}
}

// Pid returns the pid of the attached process.
func (s *Session) Pid() int {
	return s.pid
}

// Name returns the executable name of the attached process, if known.
func (s *Session) Name() string {
	return s.name
}

// Valid returns nil if the session can still be used.
func (s *Session) Valid() error {
	_, err := s.handle()
	return err
}

func (s *Session) handle() (ProcessHandle, error) {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	if h == nil {
		return nil, ErrSessionClosed
	}
	return h, nil
}

// Detach releases the OS handle. Detach is idempotent: the first call
// closes the handle, later calls return nil without doing anything.
func (s *Session) Detach() error {
	s.mu.Lock()
	h := s.h
	s.h = nil
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	logflags.SessionLogger().Debugf("detached from pid %d (%s)", s.pid, s.name)
	return h.Close()
}

// ReadBytes reads n bytes at addr. A failed or short transfer returns
// an error wrapping ErrPartialRead.
func (s *Session) ReadBytes(addr uint64, n int) ([]byte, error) {
	h, err := s.handle()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	got, err := h.ReadMemory(buf, addr)
	if err != nil || got < n {
		return nil, fmt.Errorf("read %d of %d bytes at %#x: %w", got, n, addr, ErrPartialRead)
	}
	return buf, nil
}

// WriteBytes writes data at addr. A failed or short transfer returns an
// error wrapping ErrPartialWrite.
func (s *Session) WriteBytes(addr uint64, data []byte) error {
	h, err := s.handle()
	if err != nil {
		return err
	}
	written, err := h.WriteMemory(addr, data)
	if err != nil || written < len(data) {
		return fmt.Errorf("wrote %d of %d bytes at %#x: %w", written, len(data), addr, ErrPartialWrite)
	}
	return nil
}

// QueryRegion implements RegionQuerier by delegating to the process
// handle.
func (s *Session) QueryRegion(addr uint64) (Region, error) {
	h, err := s.handle()
	if err != nil {
		return Region{}, err
	}
	return h.QueryRegion(addr)
}

// Regions returns a walker over the committed readable regions of the
// attached process.
func (s *Session) Regions() *RegionWalker {
	return NewRegionWalker(s)
}
