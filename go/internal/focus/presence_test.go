package focus

import (
	"testing"

	"github.com/google/uuid"
)

func TestRegistryJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	group := uuid.New()
	member := uuid.New()

	if !r.Join(group, member) {
		t.Fatal("first join should report a change")
	}
	if r.Join(group, member) {
		t.Fatal("repeat join should not report a change")
	}
	if got := r.Count(group); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestRegistryLeave(t *testing.T) {
	r := NewRegistry()
	group := uuid.New()
	member := uuid.New()

	if r.Leave(group, member) {
		t.Fatal("leave before join should not report a change")
	}

	r.Join(group, member)
	if !r.Leave(group, member) {
		t.Fatal("leave after join should report a change")
	}
	if r.Leave(group, member) {
		t.Fatal("second leave should not report a change")
	}
	if got := r.Count(group); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
}

func TestRegistryMembersOfSnapshot(t *testing.T) {
	r := NewRegistry()
	group := uuid.New()

	if got := r.MembersOf(group); len(got) != 0 {
		t.Fatalf("members of empty group = %v, want none", got)
	}

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	r.Join(group, a)
	r.Join(group, b)
	r.Join(group, c)

	members := r.MembersOf(group)
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3", len(members))
	}
	for i := 1; i < len(members); i++ {
		if members[i-1].String() >= members[i].String() {
			t.Fatalf("members not sorted: %v", members)
		}
	}
}

func TestRegistryGroupsAreIndependent(t *testing.T) {
	r := NewRegistry()
	g1, g2 := uuid.New(), uuid.New()
	member := uuid.New()

	r.Join(g1, member)
	r.Join(g2, member)
	r.Leave(g1, member)

	if r.Count(g1) != 0 {
		t.Fatal("member should have left first group")
	}
	if r.Count(g2) != 1 {
		t.Fatal("member should still be present in second group")
	}
}
