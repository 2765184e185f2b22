package focus

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which members currently hold a live connection per group.
// It is a pure set store: the single-group-per-member rule is enforced by
// the gateway, which leaves the previous group before joining a new one.
// State is process-local and lost on restart by design; reconnecting
// members re-register.
type Registry struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]map[uuid.UUID]struct{}
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Join adds the member to the group's presence set. Returns whether
// membership actually changed; repeat joins are idempotent.
func (r *Registry) Join(groupID, memberID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.groups[groupID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.groups[groupID] = set
	}
	if _, exists := set[memberID]; exists {
		return false
	}
	set[memberID] = struct{}{}
	return true
}

// Leave removes the member from the group's presence set. The group entry
// is dropped entirely once its set is empty.
func (r *Registry) Leave(groupID, memberID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.groups[groupID]
	if !ok {
		return false
	}
	if _, exists := set[memberID]; !exists {
		return false
	}
	delete(set, memberID)
	if len(set) == 0 {
		delete(r.groups, groupID)
	}
	return true
}

// MembersOf returns a sorted snapshot of the members currently present in
// the group. Empty slice if the group has no presence entry.
func (r *Registry) MembersOf(groupID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.groups[groupID]
	members := make([]uuid.UUID, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return members
}

// Count returns how many members are present in the group.
func (r *Registry) Count(groupID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[groupID])
}
