// Package reaction implements the per-message reaction ledger with
// toggle semantics: reacting twice with the same symbol cancels the
// first reaction.
package reaction

import "github.com/Degefa-Gomora/evangadiForum1/internal/domain"

// Toggle flips a user's reaction for one symbol and returns the new
// list. Invariants held after every call: no two entries share a
// symbol, and no entry has an empty user set. The input slice is not
// mutated.
func Toggle(reactions []domain.Reaction, symbol, userID, username string) []domain.Reaction {
	out := make([]domain.Reaction, 0, len(reactions)+1)
	found := false

	for _, r := range reactions {
		if r.Symbol != symbol {
			out = append(out, cloneReaction(r))
			continue
		}
		found = true

		idx := indexOf(r.UserIDs, userID)
		if idx < 0 {
			r = cloneReaction(r)
			r.UserIDs = append(r.UserIDs, userID)
			r.Usernames = append(r.Usernames, username)
			out = append(out, r)
			continue
		}

		// Remove the user from both parallel lists; drop the entry
		// entirely once nobody is left.
		if len(r.UserIDs) == 1 {
			continue
		}
		r = cloneReaction(r)
		r.UserIDs = append(r.UserIDs[:idx], r.UserIDs[idx+1:]...)
		r.Usernames = append(r.Usernames[:idx], r.Usernames[idx+1:]...)
		out = append(out, r)
	}

	if !found {
		out = append(out, domain.Reaction{
			Symbol:    symbol,
			UserIDs:   []string{userID},
			Usernames: []string{username},
		})
	}

	return out
}

func cloneReaction(r domain.Reaction) domain.Reaction {
	return domain.Reaction{
		Symbol:    r.Symbol,
		UserIDs:   append([]string(nil), r.UserIDs...),
		Usernames: append([]string(nil), r.Usernames...),
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
