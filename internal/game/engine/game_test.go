package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
)

func TestNewDealsEveryPlayerCount(t *testing.T) {
	t.Parallel()

	for n := card.MinPlayers; n <= card.MaxPlayers; n++ {
		g, rec := newTestGame(t, n)
		rules := card.DefaultRules()
		deal, err := rules.DealSize(n)
		require.NoError(t, err)
		size, err := rules.CatalogSize(n)
		require.NoError(t, err)

		for seat := range n {
			hand := g.players[seat].Hand
			assert.Equal(t, deal+1, hand.Len(), "seat %d of %d", seat, n)
			assert.Equal(t, 1, hand.CountKind(card.Defuse), "seat %d of %d", seat, n)
			assert.Zero(t, hand.CountKind(card.ExplodingKitten), "seat %d of %d", seat, n)
		}
		assert.Equal(t, size-n*(deal+1), g.DrawPileSize())
		assert.Zero(t, g.DiscardPileSize())
		assert.Equal(t, PhaseAwaitingAction, g.Phase())
		assert.Equal(t, 0, g.ActiveSeat())
		assert.Equal(t, 1, g.TurnsRemaining())

		kinds := rec.kinds()
		require.Len(t, kinds, n+2)
		assert.Equal(t, EventGameStarted, kinds[0])
		for seat := range n {
			e := rec.events[seat+1]
			assert.Equal(t, EventHandDealt, e.Kind)
			assert.Equal(t, []int{seat}, e.Recipients)
		}
		assert.Equal(t, EventTurnAdvanced, kinds[n+1])
	}
}

func TestNewRejectsPlayerCount(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 9} {
		_, err := New(players(n), Options{})
		assert.ErrorIs(t, err, apperrors.ErrInsufficientPlayers, "%d players", n)
	}
}

func TestNewIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	a, _ := newTestGame(t, 4)
	b, _ := newTestGame(t, 4)
	for seat := range 4 {
		assert.Equal(t, a.Hand(seat), b.Hand(seat))
	}
	assert.Equal(t, a.drawPile.Cards(), b.drawPile.Cards())
}

// 2 人局：每人 7 + 1 张，摸牌堆 catalogSize(2) − 16
func TestScenarioA(t *testing.T) {
	t.Parallel()

	g, _ := newTestGame(t, 2)
	size, err := g.Rules().CatalogSize(2)
	require.NoError(t, err)

	assert.Len(t, g.Hand(0), 8)
	assert.Len(t, g.Hand(1), 8)
	assert.Equal(t, size-16, g.DrawPileSize())
	assert.Equal(t, 37, g.DrawPileSize())
}

func TestScenarioBDrawLethalWithoutSave(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 2)
	setHand(t, g, 0, card.Tacocat, card.Skip)
	stackTop(t, g, card.ExplodingKitten)
	before := g.DrawPileSize()

	mustApply(t, g, 0, Draw())

	assert.Equal(t, PhaseGameOver, g.Phase())
	assert.True(t, g.Eliminated(0))
	assert.Empty(t, g.Hand(0))
	assert.Equal(t, before-1, g.DrawPileSize())
	assert.Equal(t, 3, g.DiscardPileSize(), "lethal and the rest of the hand")

	winner, ok := g.Winner()
	require.True(t, ok)
	assert.Equal(t, 1, winner)

	e, ok := rec.last(EventGameEnded)
	require.True(t, ok)
	payload := e.Payload.(GameEndedPayload)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, 1, *payload.Winner)

	elim, ok := rec.last(EventPlayerEliminated)
	require.True(t, ok)
	assert.Equal(t, 0, elim.Payload.(PlayerEliminatedPayload).Seat)

	assert.ErrorIs(t, g.Apply(1, Draw()), apperrors.ErrGameAlreadyOver)
}

func TestScenarioCAttackOnTimeout(t *testing.T) {
	t.Parallel()

	g, _ := newTestGame(t, 2)
	attack := setHand(t, g, 0, card.Attack, card.Tacocat)[0]
	drawBefore := g.DrawPileSize()

	mustApply(t, g, 0, PlayCards(attack.ID).At(1))
	require.Equal(t, PhaseReactionWindow, g.Phase())
	info, ok := g.ReactionWindow()
	require.True(t, ok)
	assert.Equal(t, testEpoch.Add(g.reactionWindow), info.Deadline)
	assert.Equal(t, []int{1}, info.Eligible)

	closed, err := g.CloseReactionWindow(info.WindowID)
	require.NoError(t, err)
	require.True(t, closed)
	require.NoError(t, g.CheckAccounting())

	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, 1, g.ActiveSeat())
	assert.Equal(t, 2, g.TurnsRemaining())
	assert.Len(t, g.Hand(0), 1, "attacker does not draw")
	assert.Equal(t, drawBefore, g.DrawPileSize())
}

func TestScenarioDFavor(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 2)
	favor := setHand(t, g, 0, card.Favor, card.Nope)[0]
	given := setHand(t, g, 1, card.Tacocat, card.Skip)
	x := given[1]

	mustApply(t, g, 0, PlayCards(favor.ID).At(1))
	passAll(t, g)

	require.Equal(t, PhaseAwaitingFavor, g.Phase())
	target, ok := g.FavorTarget()
	require.True(t, ok)
	assert.Equal(t, 1, target)
	assert.Equal(t, []int{1}, g.AwaitedSeats())

	assert.ErrorIs(t, g.Apply(0, GiveCard(x.ID)), apperrors.ErrNotYourTurn)
	assert.ErrorIs(t, g.Apply(1, Draw()), apperrors.ErrIllegalAction)

	before0, before1 := len(g.Hand(0)), len(g.Hand(1))
	mustApply(t, g, 1, GiveCard(x.ID))

	assert.Len(t, g.Hand(0), before0+1)
	assert.Len(t, g.Hand(1), before1-1)
	assert.Contains(t, handIDs(g, 0), x.ID)
	assert.NotContains(t, handIDs(g, 1), x.ID)
	assert.Equal(t, PhaseAwaitingAction, g.Phase())
	assert.Equal(t, 0, g.ActiveSeat())

	e, ok := rec.last(EventCardTransferred)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{0, 1}, e.Recipients)
}

func TestRejectionsLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seat    int
		action  func(hand []card.Card) Action
		wantErr error
	}{
		{name: "Draw out of turn", seat: 1, action: func([]card.Card) Action { return Draw() }, wantErr: apperrors.ErrNotYourTurn},
		{name: "Play out of turn", seat: 1, action: func([]card.Card) Action { return PlayCards(0) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Card not owned", seat: 0, action: func([]card.Card) Action { return PlayCards(999) }, wantErr: apperrors.ErrCardNotOwned},
		{name: "Single cat", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[0].ID) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Attack without target", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[1].ID) }, wantErr: apperrors.ErrInvalidTarget},
		{name: "Attack self", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[1].ID).At(0) }, wantErr: apperrors.ErrInvalidTarget},
		{name: "Attack unknown seat", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[1].ID).At(5) }, wantErr: apperrors.ErrInvalidTarget},
		{name: "Lone nope", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[2].ID) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Defuse without lethal", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[3].ID) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Mixed pair", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[0].ID, h[1].ID).At(1) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Triple without a name", seat: 0, action: func(h []card.Card) Action { return PlayCards(h[4].ID, h[5].ID, h[6].ID).At(1) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Pass outside a window", seat: 0, action: func([]card.Card) Action { return Pass() }, wantErr: apperrors.ErrIllegalAction},
		{name: "Give outside a favor", seat: 0, action: func(h []card.Card) Action { return GiveCard(h[0].ID) }, wantErr: apperrors.ErrIllegalAction},
		{name: "Unknown seat", seat: 7, action: func([]card.Card) Action { return Draw() }, wantErr: apperrors.ErrSeatNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, rec := newTestGame(t, 2)
			setHand(t, g, 1, card.Skip, card.Shuffle)
			hand := setHand(t, g, 0,
				card.Tacocat, card.Attack, card.Nope, card.Defuse,
				card.BeardCat, card.BeardCat, card.BeardCat)
			rec.reset()
			before := g.SnapshotFor(0)
			hand1 := g.Hand(1)

			// 同一个非法动作重复提交，结果和状态都不变
			for attempt := range 2 {
				err := g.Apply(tt.seat, tt.action(hand))
				assert.ErrorIs(t, err, tt.wantErr, "attempt %d", attempt)
				assert.False(t, apperrors.IsFatal(err))

				assert.Equal(t, before, g.SnapshotFor(0), "attempt %d", attempt)
				assert.Equal(t, hand1, g.Hand(1))
				assert.Empty(t, g.players[0].Hand.Selection())
				assert.Empty(t, rec.events)
				require.NoError(t, g.CheckAccounting())
			}
		})
	}
}

func TestNotYourTurnIsIllegalAction(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, apperrors.ErrNotYourTurn, apperrors.ErrIllegalAction)
	assert.NotErrorIs(t, apperrors.ErrIllegalAction, apperrors.ErrNotYourTurn)
}

func TestAbortFromReactionWindow(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 3)
	skip := setHand(t, g, 0, card.Skip)[0]
	mustApply(t, g, 0, PlayCards(skip.ID))
	info, ok := g.ReactionWindow()
	require.True(t, ok)

	require.NoError(t, g.Abort("all players left"))
	assert.Equal(t, PhaseGameOver, g.Phase())
	assert.Empty(t, g.AwaitedSeats())

	e, ok := rec.last(EventGameEnded)
	require.True(t, ok)
	payload := e.Payload.(GameEndedPayload)
	assert.Nil(t, payload.Winner)
	assert.True(t, payload.Aborted)

	closed, err := g.CloseReactionWindow(info.WindowID)
	assert.NoError(t, err)
	assert.False(t, closed)
	assert.ErrorIs(t, g.Apply(1, Pass()), apperrors.ErrGameAlreadyOver)
	assert.ErrorIs(t, g.Abort("again"), apperrors.ErrGameAlreadyOver)
	_, ok = g.Winner()
	assert.False(t, ok)
}

func TestSetConnectionKeepsHand(t *testing.T) {
	t.Parallel()

	g, rec := newTestGame(t, 2)
	hand := g.Hand(1)
	rec.reset()

	require.NoError(t, g.SetConnection(1, StandIn))
	require.NoError(t, g.SetConnection(1, StandIn))
	assert.Equal(t, StandIn, g.Conn(1))
	assert.Equal(t, []EventKind{EventPlayerConnectionChanged}, rec.kinds())

	require.NoError(t, g.SetConnection(1, Connected))
	assert.Equal(t, hand, g.Hand(1))
	assert.Equal(t, Connected, g.Players()[1].Conn)

	assert.ErrorIs(t, g.SetConnection(4, StandIn), apperrors.ErrSeatNotFound)
}

// 随机对局：每次状态变化后都检查牌数守恒、当前座位未出局、事件序号递增
func TestRandomPlaythroughKeepsInvariants(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 20; seed++ {
		n := 2 + int(seed%4)
		g, rec := newTestGame(t, n)
		rng := rand.New(rand.NewPCG(seed, seed*31))

		for step := 0; step < 3000 && g.Phase() != PhaseGameOver; step++ {
			awaited := g.AwaitedSeats()
			require.NotEmpty(t, awaited, "seed %d step %d phase %s", seed, step, g.Phase())
			seat := awaited[rng.IntN(len(awaited))]

			if err := g.Apply(seat, randomAction(g, seat, rng)); err != nil {
				require.False(t, apperrors.IsFatal(err), "seed %d: %v", seed, err)
			}
			require.NoError(t, g.CheckAccounting(), "seed %d step %d", seed, step)
			if g.Phase() != PhaseGameOver {
				require.False(t, g.Eliminated(g.ActiveSeat()))
			}
		}

		for i := 1; i < len(rec.events); i++ {
			require.Equal(t, rec.events[i-1].Seq+1, rec.events[i].Seq)
		}
	}
}

func randomAction(g *Game, seat int, rng *rand.Rand) Action {
	hand := g.Hand(seat)
	switch g.Phase() {
	case PhaseReactionWindow:
		if rng.IntN(3) == 0 {
			for _, c := range hand {
				if c.Kind == card.Nope {
					return PlayCards(c.ID)
				}
			}
		}
		return Pass()
	case PhaseAwaitingDefuse:
		for _, c := range hand {
			if c.Kind == card.Defuse {
				return Defuse(c.ID, rng.IntN(g.DrawPileSize()+1))
			}
		}
	case PhaseAwaitingFavor:
		return GiveCard(hand[rng.IntN(len(hand))].ID)
	case PhaseAwaitingAction:
		if len(hand) > 0 && rng.IntN(2) == 0 {
			c := hand[rng.IntN(len(hand))]
			target := (seat + 1 + rng.IntN(g.NumPlayers()-1)) % g.NumPlayers()
			a := PlayCards(c.ID).At(target)
			if c.Kind.IsCat() {
				for _, other := range hand {
					if other.Kind == c.Kind && other.ID != c.ID {
						a = PlayCards(c.ID, other.ID).At(target)
						break
					}
				}
			}
			return a
		}
	}
	return Draw()
}
