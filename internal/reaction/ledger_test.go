package reaction_test

import (
	"testing"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/internal/reaction"
)

func TestToggleAddsNewSymbol(t *testing.T) {
	out := reaction.Toggle(nil, "👍", "u1", "alice")

	if len(out) != 1 {
		t.Fatalf("expected one reaction entry, got %d", len(out))
	}
	if out[0].Symbol != "👍" {
		t.Fatalf("expected symbol 👍, got %q", out[0].Symbol)
	}
	if len(out[0].UserIDs) != 1 || out[0].UserIDs[0] != "u1" {
		t.Fatalf("expected user u1 in entry, got %v", out[0].UserIDs)
	}
	if len(out[0].Usernames) != 1 || out[0].Usernames[0] != "alice" {
		t.Fatalf("expected username alice in entry, got %v", out[0].Usernames)
	}
}

func TestToggleSameSymbolTwiceRemovesUser(t *testing.T) {
	once := reaction.Toggle(nil, "👍", "u1", "alice")
	twice := reaction.Toggle(once, "👍", "u1", "alice")

	if len(twice) != 0 {
		t.Fatalf("expected empty ledger after double toggle, got %v", twice)
	}
}

func TestToggleKeepsEntryWhileOtherUsersRemain(t *testing.T) {
	ledger := reaction.Toggle(nil, "👍", "u1", "alice")
	ledger = reaction.Toggle(ledger, "👍", "u2", "bob")
	ledger = reaction.Toggle(ledger, "👍", "u1", "alice")

	if len(ledger) != 1 {
		t.Fatalf("expected one entry to remain, got %d", len(ledger))
	}
	if len(ledger[0].UserIDs) != 1 || ledger[0].UserIDs[0] != "u2" {
		t.Fatalf("expected only u2 to remain, got %v", ledger[0].UserIDs)
	}
	if ledger[0].Usernames[0] != "bob" {
		t.Fatalf("parallel username list out of sync: %v", ledger[0].Usernames)
	}
}

func TestToggleDifferentSymbolsAreIndependent(t *testing.T) {
	ledger := reaction.Toggle(nil, "👍", "u1", "alice")
	ledger = reaction.Toggle(ledger, "❤️", "u1", "alice")

	if len(ledger) != 2 {
		t.Fatalf("expected two independent entries, got %d", len(ledger))
	}

	symbols := map[string]bool{}
	for _, r := range ledger {
		if symbols[r.Symbol] {
			t.Fatalf("duplicate symbol entry %q", r.Symbol)
		}
		symbols[r.Symbol] = true
	}
}

func TestToggleDoesNotMutateInput(t *testing.T) {
	original := []domain.Reaction{
		{Symbol: "👍", UserIDs: []string{"u1"}, Usernames: []string{"alice"}},
	}

	reaction.Toggle(original, "👍", "u2", "bob")

	if len(original[0].UserIDs) != 1 {
		t.Fatalf("input slice was mutated: %v", original[0].UserIDs)
	}
}
