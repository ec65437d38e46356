package agent

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
)

type fakeView struct {
	phase       engine.Phase
	active      int
	hands       map[int][]card.Card
	drawPile    int
	awaited     []int
	favorTarget int
}

func (f fakeView) Phase() engine.Phase                         { return f.phase }
func (f fakeView) ActiveSeat() int                             { return f.active }
func (f fakeView) TurnsRemaining() int                         { return 1 }
func (f fakeView) Hand(seat int) []card.Card                   { return f.hands[seat] }
func (f fakeView) DrawPileSize() int                           { return f.drawPile }
func (f fakeView) AwaitedSeats() []int                         { return f.awaited }
func (f fakeView) ReactionWindow() (engine.ReactionInfo, bool) { return engine.ReactionInfo{}, false }
func (f fakeView) Eliminated(int) bool                         { return false }
func (f fakeView) FavorTarget() (int, bool) {
	return f.favorTarget, f.phase == engine.PhaseAwaitingFavor
}

func TestRemoteNeverDecides(t *testing.T) {
	t.Parallel()

	_, ok := Remote{}.Decide(fakeView{phase: engine.PhaseAwaitingAction}, 0)
	assert.False(t, ok)
	assert.Equal(t, "remote", Remote{}.Name())
}

func TestStandInDecide(t *testing.T) {
	t.Parallel()

	defuse := card.Card{ID: 40, Kind: card.Defuse}
	skip := card.Card{ID: 5, Kind: card.Skip}

	tests := []struct {
		name   string
		view   fakeView
		seat   int
		want   engine.ActionType
		wantID int
		ok     bool
	}{
		{
			name: "Draws on own turn",
			view: fakeView{phase: engine.PhaseAwaitingAction, active: 1, hands: map[int][]card.Card{1: {skip}}},
			seat: 1, want: engine.ActionDraw, ok: true,
		},
		{
			name: "Waits on someone else's turn",
			view: fakeView{phase: engine.PhaseAwaitingAction, active: 0},
			seat: 1,
		},
		{
			name: "Passes when awaited in a window",
			view: fakeView{phase: engine.PhaseReactionWindow, awaited: []int{0, 2}},
			seat: 2, want: engine.ActionPass, ok: true,
		},
		{
			name: "Not eligible in a window",
			view: fakeView{phase: engine.PhaseReactionWindow, awaited: []int{0}},
			seat: 2,
		},
		{
			name: "Defuses with held save",
			view: fakeView{phase: engine.PhaseAwaitingDefuse, active: 0, drawPile: 10, hands: map[int][]card.Card{0: {skip, defuse}}},
			seat: 0, want: engine.ActionPlayCards, wantID: defuse.ID, ok: true,
		},
		{
			name: "Gives first non-defuse card",
			view: fakeView{phase: engine.PhaseAwaitingFavor, favorTarget: 1, hands: map[int][]card.Card{1: {defuse, skip}}},
			seat: 1, want: engine.ActionGiveCard, wantID: skip.ID, ok: true,
		},
		{
			name: "Gives defuse when nothing else",
			view: fakeView{phase: engine.PhaseAwaitingFavor, favorTarget: 1, hands: map[int][]card.Card{1: {defuse}}},
			seat: 1, want: engine.ActionGiveCard, wantID: defuse.ID, ok: true,
		},
		{
			name: "Game over",
			view: fakeView{phase: engine.PhaseGameOver},
			seat: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewStandIn(rand.New(rand.NewPCG(1, 1)))
			a, ok := s.Decide(tt.view, tt.seat)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, a.Type)
			if tt.wantID != 0 {
				assert.Equal(t, []int{tt.wantID}, a.CardIDs)
			}
			if tt.want == engine.ActionPlayCards {
				assert.GreaterOrEqual(t, a.InsertIndex, 0)
				assert.LessOrEqual(t, a.InsertIndex, tt.view.drawPile)
			}
		})
	}
}

func TestFor(t *testing.T) {
	t.Parallel()

	s := NewStandIn(nil)
	assert.Equal(t, Controller(s), For(engine.StandIn, s))
	assert.Equal(t, Controller(Remote{}), For(engine.Connected, s))
}

// 全部托管时对局一定能走到结束
func TestStandInFinishesGame(t *testing.T) {
	t.Parallel()

	for n := card.MinPlayers; n <= card.MaxPlayers; n++ {
		g, err := engine.New(make([]engine.PlayerInfo, n), engine.Options{Rand: rand.New(rand.NewPCG(uint64(n), 3))})
		require.NoError(t, err)
		s := NewStandIn(rand.New(rand.NewPCG(uint64(n), 5)))

		for step := 0; step < 2000 && g.Phase() != engine.PhaseGameOver; step++ {
			seat := g.AwaitedSeats()[0]
			a, ok := s.Decide(g, seat)
			require.True(t, ok, "%d players, phase %s", n, g.Phase())
			require.NoError(t, g.Apply(seat, a))
			require.NoError(t, g.CheckAccounting())
		}

		require.Equal(t, engine.PhaseGameOver, g.Phase(), "%d players", n)
		_, ok := g.Winner()
		assert.True(t, ok)
	}
}
