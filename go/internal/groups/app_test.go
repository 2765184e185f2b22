package groups

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRankMembersDenseRanking(t *testing.T) {
	members := []GroupMember{
		{MemberID: uuid.New(), Name: "first", Points: 120},
		{MemberID: uuid.New(), Name: "tied-a", Points: 80},
		{MemberID: uuid.New(), Name: "tied-b", Points: 80},
		{MemberID: uuid.New(), Name: "last", Points: 20},
	}

	rows := rankMembers(members)
	wantRanks := []int{1, 2, 2, 3}
	for i, row := range rows {
		if row.Rank != wantRanks[i] {
			t.Fatalf("row %d (%s): rank = %d, want %d", i, row.Name, row.Rank, wantRanks[i])
		}
	}
}

func TestRankMembersNegativePoints(t *testing.T) {
	members := []GroupMember{
		{MemberID: uuid.New(), Points: 0},
		{MemberID: uuid.New(), Points: -100},
		{MemberID: uuid.New(), Points: -100},
	}

	rows := rankMembers(members)
	if rows[0].Rank != 1 || rows[1].Rank != 2 || rows[2].Rank != 2 {
		t.Fatalf("ranks = [%d %d %d], want [1 2 2]", rows[0].Rank, rows[1].Rank, rows[2].Rank)
	}
}

func TestRankMembersEmpty(t *testing.T) {
	if rows := rankMembers(nil); len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}

func TestNewInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := newInviteCode()
		if err != nil {
			t.Fatalf("newInviteCode: %v", err)
		}
		if len(code) != inviteCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), inviteCodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(inviteCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes are not random")
	}
}
