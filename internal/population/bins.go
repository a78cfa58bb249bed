package population

import "sync"

// RecyclingBins hold the handles of extinct mutations and gametes so that
// new ones reuse their slots instead of growing the pools. Both bins are
// FIFO and rebuilt once per generation; pop and push are mutex-guarded.
type RecyclingBins struct {
	mu sync.Mutex

	mutations    []int
	mutationHead int
	gametes      []int
	gameteHead   int
}

func NewRecyclingBins() *RecyclingBins {
	return &RecyclingBins{}
}

// Rebuild refills both bins from the zero-count mutations and gametes of
// pop. Any previously queued handles are discarded.
func (b *RecyclingBins) Rebuild(p *Population) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mutations = b.mutations[:0]
	b.mutationHead = 0
	for i, c := range p.MutationCounts {
		if c == 0 {
			b.mutations = append(b.mutations, i)
		}
	}
	b.gametes = b.gametes[:0]
	b.gameteHead = 0
	for i := range p.Gametes {
		if p.Gametes[i].N == 0 {
			b.gametes = append(b.gametes, i)
		}
	}
}

// NextMutationSlot returns a recyclable mutation handle, or false when the
// caller must allocate a new slot.
func (b *RecyclingBins) NextMutationSlot() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mutationHead == len(b.mutations) {
		return 0, false
	}
	h := b.mutations[b.mutationHead]
	b.mutationHead++
	return h, true
}

// NextGameteSlot is NextMutationSlot for the gamete pool.
func (b *RecyclingBins) NextGameteSlot() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gameteHead == len(b.gametes) {
		return 0, false
	}
	h := b.gametes[b.gameteHead]
	b.gameteHead++
	return h, true
}

// RecordRemovedMutation queues h for reuse. The engine relies on the
// per-generation Rebuild scan instead; this is for callers that free
// handles between rebuilds.
func (b *RecyclingBins) RecordRemovedMutation(h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations = append(b.mutations, h)
}

// RecordRemovedGamete queues gamete handle h for reuse.
func (b *RecyclingBins) RecordRemovedGamete(h int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gametes = append(b.gametes, h)
}

// Pending reports how many handles are still queued in each bin.
func (b *RecyclingBins) Pending() (mutations, gametes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mutations) - b.mutationHead, len(b.gametes) - b.gameteHead
}
