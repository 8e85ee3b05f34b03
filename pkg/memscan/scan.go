package memscan

import (
	"bytes"
	"errors"
	"time"

	"github.com/memscout/memscout/pkg/logflags"
)

// maxScanChunk caps how many bytes of a single region a scan will read.
// A region larger than this is only scanned in its first maxScanChunk
// bytes; matches past the cap are not found.
const maxScanChunk = 10 << 20

// Scan walks every committed readable region of the process and returns
// the set of addresses whose bytes hold v's exact pattern. Matches are
// found at every byte offset, so overlapping matches are all reported,
// and result addresses are ascending.
//
// A region whose read fails is skipped and the scan continues; only a
// closed session aborts the scan.
func (s *Session) Scan(v Value) (*CandidateSet, error) {
	if err := s.Valid(); err != nil {
		return nil, err
	}
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	pattern := v.Encode()
	logger := logflags.ScanLogger()
	start := time.Now()

	set := &CandidateSet{kind: v.Kind()}
	var scanned, skipped int
	var total uint64

	w := s.Regions()
	for w.Next() {
		r := w.Region()
		n := r.Size
		if n > maxScanChunk {
			n = maxScanChunk
		}
		data, err := s.ReadBytes(r.Base, int(n))
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return nil, err
			}
			skipped++
			if logflags.Scan() {
				logger.Debugf("skipping region %#x-%#x: %v", r.Base, r.End(), err)
			}
			continue
		}
		scanned++
		total += uint64(len(data))

		for off := 0; ; {
			i := bytes.Index(data[off:], pattern)
			if i < 0 {
				break
			}
			set.addrs = append(set.addrs, r.Base+uint64(off+i))
			// advance one byte so overlapping matches are found too
			off += i + 1
		}
	}
	if err := w.Err(); errors.Is(err, ErrSessionClosed) {
		return nil, err
	}

	logger.Debugf("scan for %s %s: %d matches in %d regions (%d unreadable), %d bytes in %s",
		v.Kind(), v, set.Len(), scanned, skipped, total, time.Since(start))
	return set, nil
}
