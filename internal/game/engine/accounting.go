package engine

import (
	"fmt"

	"github.com/palemoky/exploding-kittens/internal/game/card"
)

// CheckAccounting verifies that draw pile, discard pile, hands and a lethal card
// awaiting defuse together hold every catalog card exactly once, and that the
// active seat is still in the game.
func (g *Game) CheckAccounting() error {
	catalog, err := card.Build(g.rules, len(g.players))
	if err != nil {
		return err
	}
	expected := make(map[int]card.Kind, catalog.Len())
	for _, c := range catalog.Cards() {
		expected[c.ID] = c.Kind
	}

	seen := make(map[int]string, len(expected))
	check := func(where string, cards []card.Card) error {
		for _, c := range cards {
			kind, ok := expected[c.ID]
			if !ok {
				return fmt.Errorf("unknown card %s in %s", c, where)
			}
			if kind != c.Kind {
				return fmt.Errorf("card %d in %s is %s, catalog says %s", c.ID, where, c.Kind, kind)
			}
			if prev, dup := seen[c.ID]; dup {
				return fmt.Errorf("card %s in both %s and %s", c, prev, where)
			}
			seen[c.ID] = where
		}
		return nil
	}

	if err := check("draw pile", g.drawPile.Cards()); err != nil {
		return err
	}
	if err := check("discard pile", g.discardPile.Cards()); err != nil {
		return err
	}
	for _, p := range g.players {
		if err := check(fmt.Sprintf("hand %d", p.Seat), p.Hand.Cards()); err != nil {
			return err
		}
	}
	if g.lethal != nil {
		if err := check("pending lethal", []card.Card{*g.lethal}); err != nil {
			return err
		}
	}
	if len(seen) != len(expected) {
		return fmt.Errorf("accounted for %d of %d cards", len(seen), len(expected))
	}

	if g.phase != PhaseGameOver && g.eliminated[g.activeSeat] {
		return fmt.Errorf("active seat %d is eliminated", g.activeSeat)
	}
	return nil
}
