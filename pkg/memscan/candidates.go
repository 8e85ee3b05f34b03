package memscan

import (
	"errors"
	"fmt"
)

// CandidateSet is the ordered set of absolute addresses produced by a
// scan, together with the value kind the scan used. The kind never
// changes for the lifetime of the set; scanning for a different kind
// produces a new set.
//
// A set only shrinks: Filter removes entries and never adds or reorders
// them. Scan and Filter are the only mutators and both hold the
// session's scan lock.
type CandidateSet struct {
	kind  ValueKind
	addrs []uint64
}

// Len returns the number of candidate addresses.
func (c *CandidateSet) Len() int {
	return len(c.addrs)
}

// Kind returns the value kind the set was scanned with.
func (c *CandidateSet) Kind() ValueKind {
	return c.kind
}

// Addrs returns a copy of the candidate addresses in ascending order.
func (c *CandidateSet) Addrs() []uint64 {
	out := make([]uint64, len(c.addrs))
	copy(out, c.addrs)
	return out
}

// Addr returns the address of candidate i.
func (c *CandidateSet) Addr(i int) (uint64, error) {
	if i < 0 || i >= len(c.addrs) {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(c.addrs))
	}
	return c.addrs[i], nil
}

// Clone returns an independent copy of the set. Filtering the copy
// does not disturb the original, which makes snapshots for undo
// possible.
func (c *CandidateSet) Clone() *CandidateSet {
	out := &CandidateSet{kind: c.kind}
	if c.addrs != nil {
		out.addrs = make([]uint64, len(c.addrs))
		copy(out.addrs, c.addrs)
	}
	return out
}

// Clear empties the set. The kind stays bound; a new scan produces a
// new set.
func (c *CandidateSet) Clear() {
	c.addrs = nil
}

// Filter re-reads every candidate from the live process and keeps only
// the addresses whose current bytes equal v's pattern. Candidates that
// can no longer be read are dropped. Filtering with a value of a
// different kind fails with ErrKindMismatch before touching memory.
//
// On error the set is left unchanged; on success survivors keep their
// relative order.
func (c *CandidateSet) Filter(s *Session, v Value) error {
	if v.Kind() != c.kind {
		return fmt.Errorf("%w: set holds %s, filter value is %s", ErrKindMismatch, c.kind, v.Kind())
	}
	if err := s.Valid(); err != nil {
		return err
	}
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	size := c.kind.Size()
	kept := make([]uint64, 0, len(c.addrs))
	for _, addr := range c.addrs {
		data, err := s.ReadBytes(addr, size)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return err
			}
			continue
		}
		if v.EqualBytes(data) {
			kept = append(kept, addr)
		}
	}
	c.addrs = kept
	return nil
}
