package pairing

import (
	"fmt"

	"github.com/gridmatch/gridmatch/game/match"
)

// SessionCreator is the slice of the session registry the pairing service
// needs.
type SessionCreator interface {
	Create(params match.Params) (*match.Actor, error)
}

// NewMatchedHandler returns the MatchedFunc that turns one matchmaking result
// into one session. Every matched player is pre-declared on the session so
// join admission expects them even once the game is underway. The batch is
// normally two entries but larger pools are accepted as-is; the mode comes
// from the first entry's declared properties.
func NewMatchedHandler(creator SessionCreator) MatchedFunc {
	return func(entries []Entry) (string, error) {
		if len(entries) == 0 {
			return "", fmt.Errorf("empty matchmaking result")
		}

		invited := make([]string, 0, len(entries))
		for _, entry := range entries {
			invited = append(invited, entry.PlayerID)
		}

		actor, err := creator.Create(match.Params{
			Mode:        entries[0].Mode(),
			Invited:     invited,
			FromPairing: true,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create session: %w", err)
		}
		return actor.ID(), nil
	}
}
