package terminal

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/memscout/memscout/pkg/memscan"
)

// undoDepth is how many scan/filter generations the undo command can
// step back through.
const undoDepth = 16

// undoHistory is a bounded stack of candidate set snapshots. Every scan
// and filter pushes the set it is about to replace; old generations
// fall off the end once the bound is reached.
type undoHistory struct {
	cache *lru.Cache
	gen   int
}

type undoEntry struct {
	what       string
	candidates *memscan.CandidateSet
}

func newUndoHistory(depth int) *undoHistory {
	// lru.New only fails for a non-positive size
	cache, err := lru.New(depth)
	if err != nil {
		panic(err)
	}
	return &undoHistory{cache: cache}
}

// push records the candidate set that cmd is about to replace. A nil
// set (no scan yet) is recorded too, so undoing the first scan returns
// to the unscanned state.
func (h *undoHistory) push(what string, c *memscan.CandidateSet) {
	h.gen++
	h.cache.Add(h.gen, undoEntry{what: what, candidates: c})
}

// pop returns the most recent snapshot, or false if there is none left.
func (h *undoHistory) pop() (undoEntry, bool) {
	keys := h.cache.Keys()
	if len(keys) == 0 {
		return undoEntry{}, false
	}
	last := keys[len(keys)-1]
	v, ok := h.cache.Get(last)
	if !ok {
		return undoEntry{}, false
	}
	h.cache.Remove(last)
	return v.(undoEntry), true
}

func (h *undoHistory) clear() {
	h.cache.Purge()
	h.gen = 0
}
