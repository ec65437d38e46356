package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
)

func TestDrawEndsTurn(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 3)
	stackTop(t, g, card.Tacocat)
	top, _ := g.drawPile.Top()
	handBefore := len(g.Hand(0))
	rec.reset()

	mustApply(t, g, 0, Draw())

	assert.Len(t, g.Hand(0), handBefore+1)
	assert.Contains(t, handIDs(g, 0), top.ID)
	assert.Equal(t, 1, g.ActiveSeat())
	assert.Equal(t, 1, g.TurnsRemaining())
	assert.Equal(t, []EventKind{EventCardDrawn, EventPlayerDrew, EventTurnAdvanced}, rec.kinds())
	assert.Equal(t, []int{0}, rec.events[0].Recipients, "drawn card is private")
	assert.Empty(t, rec.events[1].Recipients)
}

func TestDefuseReinsertsLethal(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 2)
	hand := setHand(t, g, 0, card.Defuse, card.Skip)
	stackTop(t, g, card.ExplodingKitten)
	pileBefore := g.DrawPileSize()

	mustApply(t, g, 0, Draw())
	require.Equal(t, PhaseAwaitingDefuse, g.Phase())
	lethal, ok := g.PendingLethal()
	require.True(t, ok)
	assert.Equal(t, card.ExplodingKitten, lethal.Kind)
	assert.Equal(t, []int{0}, g.AwaitedSeats())

	drawn, ok := rec.last(EventLethalDrawn)
	require.True(t, ok)
	assert.True(t, drawn.Payload.(LethalDrawnPayload).HasDefuse)

	assert.ErrorIs(t, g.Apply(1, Pass()), apperrors.ErrNotYourTurn)
	assert.ErrorIs(t, g.Apply(0, Draw()), apperrors.ErrIllegalAction)
	assert.ErrorIs(t, g.Apply(0, PlayCards(hand[1].ID)), apperrors.ErrIllegalAction)
	assert.ErrorIs(t, g.Apply(0, PlayCards(hand[0].ID, hand[1].ID)), apperrors.ErrIllegalAction)

	mustApply(t, g, 0, Defuse(hand[0].ID, 2))

	_, ok = g.PendingLethal()
	assert.False(t, ok)
	assert.Equal(t, pileBefore, g.DrawPileSize())
	peek, err := g.drawPile.PeekTop(3)
	require.NoError(t, err)
	assert.Equal(t, lethal, peek[2])
	top, _ := g.DiscardTop()
	assert.Equal(t, hand[0], top)
	assert.Equal(t, 1, g.ActiveSeat())
	assert.Equal(t, PhaseAwaitingAction, g.Phase())
}

func TestDefuseIndexIsClamped(t *testing.T) {
	t.Parallel()

	g, _ := newTestGame(t, 2)
	save := setHand(t, g, 0, card.Defuse)[0]
	stackTop(t, g, card.ExplodingKitten)

	mustApply(t, g, 0, Draw())
	mustApply(t, g, 0, Defuse(save.ID, 10_000))

	cards := g.drawPile.Cards()
	assert.Equal(t, card.ExplodingKitten, cards[len(cards)-1].Kind)
}

func TestEliminationWithAttackTurnsLeft(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 3)
	attack := setHand(t, g, 0, card.Attack)[0]
	mustApply(t, g, 0, PlayCards(attack.ID).At(1))
	passAll(t, g)
	require.Equal(t, 1, g.ActiveSeat())
	require.Equal(t, 2, g.TurnsRemaining())

	setHand(t, g, 1, card.Tacocat)
	stackTop(t, g, card.ExplodingKitten)
	mustApply(t, g, 1, Draw())

	assert.True(t, g.Eliminated(1))
	assert.Equal(t, 2, g.ActiveSeat())
	assert.Equal(t, 1, g.TurnsRemaining())
	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	_, ok := rec.last(EventGameEnded)
	assert.False(t, ok)

	// 出局座位在轮转中被跳过
	stackTop(t, g, card.Skip)
	mustApply(t, g, 2, Draw())
	assert.Equal(t, 0, g.ActiveSeat())
	stackTop(t, g, card.Skip)
	mustApply(t, g, 0, Draw())
	assert.Equal(t, 2, g.ActiveSeat())
}

func TestDrawPileRecycle(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 2)
	stackTop(t, g, card.Tacocat)
	top, _ := g.drawPile.Top()
	rest := g.drawPile.Cards()[1:]
	g.drawPile = card.NewPile([]card.Card{top})
	g.discardPile.PushTop(rest...)
	require.NoError(t, g.CheckAccounting())

	mustApply(t, g, 0, Draw())
	discardTop, _ := g.DiscardTop()
	rec.reset()

	mustApply(t, g, 1, Draw())

	e, ok := rec.last(EventDrawPileRecycled)
	require.True(t, ok)
	assert.Equal(t, len(rest)-1, e.Payload.(DrawPileRecycledPayload).Moved)
	assert.Equal(t, 1, g.DiscardPileSize())
	stillTop, _ := g.DiscardTop()
	assert.Equal(t, discardTop, stillTop, "discard keeps its top card")
}

func TestDeckExhaustedIsFatal(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 2)
	g.drawPile = card.NewPile(nil)
	rec.reset()

	err := g.Apply(0, Draw())
	require.ErrorIs(t, err, apperrors.ErrDeckExhausted)
	assert.True(t, apperrors.IsFatal(err))
	assert.Equal(t, PhaseGameOver, g.Phase())
	assert.Equal(t, []EventKind{EventDrawPileRecycled, EventDiagnostic, EventGameEnded}, rec.kinds())

	diag := rec.events[1].Payload.(DiagnosticPayload)
	assert.NotEmpty(t, diag.Accounting, "cards were removed from play")
	ended := rec.events[2].Payload.(GameEndedPayload)
	assert.Nil(t, ended.Winner)
	assert.Equal(t, "deck_exhausted", ended.Reason)

	assert.ErrorIs(t, g.Apply(0, Draw()), apperrors.ErrGameAlreadyOver)
}
