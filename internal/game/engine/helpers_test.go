package engine

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/palemoky/exploding-kittens/internal/game/card"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func (r *recorder) reset() {
	r.events = nil
}

func players(n int) []PlayerInfo {
	out := make([]PlayerInfo, n)
	for i := range out {
		out[i] = PlayerInfo{ID: string(rune('a' + i)), Name: "P" + string(rune('1'+i))}
	}
	return out
}

func newTestGame(t *testing.T, n int) (*Game, *recorder) {
	t.Helper()
	return newTestGameWithRules(t, n, card.DefaultRules())
}

func newTestGameWithRules(t *testing.T, n int, rules card.Rules) (*Game, *recorder) {
	t.Helper()
	rec := &recorder{}
	g, err := New(players(n), Options{
		Rules:          rules,
		Rand:           rand.New(rand.NewPCG(7, 11)),
		Sink:           rec,
		Now:            func() time.Time { return testEpoch },
		ReactionWindow: time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, g.CheckAccounting())
	return g, rec
}

// take removes a card of kind k from the draw pile, or the discard pile, keeping it out of play
// until the caller puts it somewhere.
func take(t *testing.T, g *Game, k card.Kind) card.Card {
	t.Helper()
	if c, ok := g.drawPile.RemoveKind(k); ok {
		return c
	}
	if c, ok := g.discardPile.RemoveKind(k); ok {
		return c
	}
	t.Fatalf("no %s left outside hands", k)
	return card.Card{}
}

// setHand replaces seat's hand with one card of each kind; the old hand goes to the bottom of
// the draw pile.
func setHand(t *testing.T, g *Game, seat int, kinds ...card.Kind) []card.Card {
	t.Helper()
	g.drawPile.Append(g.players[seat].Hand.TakeAll()...)
	var given []card.Card
	for _, k := range kinds {
		c := take(t, g, k)
		g.players[seat].Hand.Add(c)
		given = append(given, c)
	}
	require.NoError(t, g.CheckAccounting())
	return given
}

// stackTop moves one card of each kind to the top of the draw pile, kinds[0] on top.
func stackTop(t *testing.T, g *Game, kinds ...card.Kind) {
	t.Helper()
	var taken []card.Card
	for _, k := range kinds {
		taken = append(taken, take(t, g, k))
	}
	slices.Reverse(taken)
	g.drawPile.PushTop(taken...)
	require.NoError(t, g.CheckAccounting())
}

func cardIDs(cards []card.Card) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func handIDs(g *Game, seat int) []int {
	return cardIDs(g.Hand(seat))
}

// mustApply applies a and checks card accounting afterwards.
func mustApply(t *testing.T, g *Game, seat int, a Action) {
	t.Helper()
	require.NoError(t, g.Apply(seat, a))
	require.NoError(t, g.CheckAccounting())
}

// passAll passes for every seat still awaited in the current reaction window.
func passAll(t *testing.T, g *Game) {
	t.Helper()
	for g.Phase() == PhaseReactionWindow {
		seats := g.AwaitedSeats()
		require.NotEmpty(t, seats)
		mustApply(t, g, seats[0], Pass())
	}
}

// clearHands returns every hand to the bottom of the draw pile so setHand can pick freely.
func clearHands(g *Game) {
	for _, p := range g.players {
		g.drawPile.Append(p.Hand.TakeAll()...)
	}
}
