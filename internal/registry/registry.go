// Package registry holds not-yet-accepted bet proposals. Proposal ids come
// from a bounded namespace of small integers and are reused as soon as a
// proposal leaves the registry; the allocator is isolated so the scheme can
// be swapped for a monotonic counter if pending volume ever approaches the
// namespace size.
package registry

import (
	"sync"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// idSpace bounds the proposal id namespace. Ids are reused once freed, so
// this only limits the number of simultaneously pending proposals.
const idSpace = 100_000

// idAlloc hands out the smallest id not currently in use.
type idAlloc struct {
	space int
}

func (a idAlloc) next(used map[int]bool) (int, error) {
	if len(used) >= a.space {
		return 0, domain.ErrIDSpaceExhausted
	}
	for id := 0; id < a.space; id++ {
		if !used[id] {
			return id, nil
		}
	}
	return 0, domain.ErrIDSpaceExhausted
}

// Registry is the owner of pending proposals. Read methods that take a `now`
// argument purge expired proposals as a side effect and report the purged
// ids, so callers can observe (and log) the eviction.
type Registry struct {
	mu      sync.Mutex
	pending map[int]domain.BetProposal
	alloc   idAlloc
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		pending: make(map[int]domain.BetProposal),
		alloc:   idAlloc{space: idSpace},
	}
}

// Add allocates the smallest free id, stamps it on the proposal, stores it,
// and returns the stored copy.
func (r *Registry) Add(p domain.BetProposal) (domain.BetProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	used := make(map[int]bool, len(r.pending))
	for id := range r.pending {
		used[id] = true
	}
	id, err := r.alloc.next(used)
	if err != nil {
		return domain.BetProposal{}, err
	}

	p.ID = id
	r.pending[id] = p
	return p, nil
}

// Reinsert puts a proposal back under its existing id. Used to recover an
// offer after a failed acceptance. Returns false if the id was reallocated
// in the meantime.
func (r *Registry) Reinsert(p domain.BetProposal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.pending[p.ID]; taken {
		return false
	}
	r.pending[p.ID] = p
	return true
}

// Remove deletes a proposal by id, freeing the id for reuse. Returns false
// if no such proposal is pending.
func (r *Registry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return false
	}
	delete(r.pending, id)
	return true
}

// ByID returns a copy of the pending proposal with the given id.
func (r *Registry) ByID(id int) (domain.BetProposal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	return p, ok
}

// Len returns the number of pending proposals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// ByChat returns the live proposals created in the given chat. Proposals
// whose offer-validity deadline has passed are evicted first and reported in
// purged; they are never returned as live.
func (r *Registry) ByChat(chatID int64, now time.Time) (live []domain.BetProposal, purged []int) {
	return r.collect(now, func(p domain.BetProposal) bool {
		return p.ChatID == chatID
	})
}

// ByUser returns the live proposals the given user created or was named as
// counterparty on, purging expired ones like ByChat.
func (r *Registry) ByUser(userID int64, now time.Time) (live []domain.BetProposal, purged []int) {
	return r.collect(now, func(p domain.BetProposal) bool {
		if p.CreatedBy == userID {
			return true
		}
		return p.Counterparty != nil && *p.Counterparty == userID
	})
}

func (r *Registry) collect(now time.Time, match func(domain.BetProposal) bool) (live []domain.BetProposal, purged []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.pending {
		if p.Expired(now) {
			delete(r.pending, id)
			purged = append(purged, id)
			continue
		}
		if match(p) {
			live = append(live, p)
		}
	}
	return live, purged
}
