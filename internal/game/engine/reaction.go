package engine

import (
	"fmt"
	"time"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
)

// reactionState 当前反应窗口。Nope 链用计数器表示：偶数张则动作生效，奇数张则取消。
// 每张被接受的 Nope 都会以新的 id 重新打开窗口，出这张 Nope 的人在新窗口中没有资格。
type reactionState struct {
	id       uint64
	nopes    int
	lastBy   int
	passed   map[int]bool
	deadline time.Time
}

func (g *Game) openWindow(lastBy, nopes int) {
	g.windowSeq++
	g.reaction = &reactionState{
		id:       g.windowSeq,
		nopes:    nopes,
		lastBy:   lastBy,
		passed:   make(map[int]bool),
		deadline: g.now().Add(g.reactionWindow),
	}
	g.phase = PhaseReactionWindow
	g.emit(EventReactionWindowOpened, ReactionWindowOpenedPayload{
		WindowID: g.reaction.id,
		Deadline: g.reaction.deadline,
		Eligible: g.eligibleReactors(),
		Nopes:    nopes,
	})
}

// eligibleReactors 可以在当前窗口出 Nope 的座位
func (g *Game) eligibleReactors() []int {
	var seats []int
	for _, s := range g.liveSeats() {
		if s != g.reaction.lastBy {
			seats = append(seats, s)
		}
	}
	return seats
}

func (g *Game) applyReaction(seat int, a Action) error {
	if seat == g.reaction.lastBy {
		return fmt.Errorf("%w: cannot react to your own card", apperrors.ErrIllegalAction)
	}
	switch a.Type {
	case ActionPass:
		return g.pass(seat)
	case ActionPlayCards:
		return g.nope(seat, a)
	default:
		return fmt.Errorf("%w: %s during %s", apperrors.ErrIllegalAction, a.Type, g.phase)
	}
}

func (g *Game) nope(seat int, a Action) error {
	if g.reaction.passed[seat] {
		return fmt.Errorf("%w: already passed in this window", apperrors.ErrIllegalAction)
	}
	if len(a.CardIDs) != 1 {
		return fmt.Errorf("%w: only a single nope may be played in a reaction window", apperrors.ErrIllegalAction)
	}
	hand := g.players[seat].Hand
	c, ok := hand.Get(a.CardIDs[0])
	if !ok {
		return fmt.Errorf("%w: card %d", apperrors.ErrCardNotOwned, a.CardIDs[0])
	}
	if c.Kind != card.Nope {
		return fmt.Errorf("%w: only nope can be played in a reaction window", apperrors.ErrIllegalAction)
	}

	_, _ = hand.Remove(c.ID)
	g.discardPile.PushTop(c)
	nopes := g.reaction.nopes + 1
	g.emit(EventNopePlayed, NopePlayedPayload{Seat: seat, Card: c, Nopes: nopes})
	g.openWindow(seat, nopes)
	return nil
}

func (g *Game) pass(seat int) error {
	if g.reaction.passed[seat] {
		return nil
	}
	g.reaction.passed[seat] = true
	g.emit(EventReactionPassed, ReactionPassedPayload{Seat: seat, WindowID: g.reaction.id})

	for _, s := range g.eligibleReactors() {
		if !g.reaction.passed[s] {
			return nil
		}
	}
	return g.closeWindow()
}

// CloseReactionWindow 窗口超时。id 与当前窗口不符时视为过期计时器，返回 false。
func (g *Game) CloseReactionWindow(id uint64) (bool, error) {
	if g.phase != PhaseReactionWindow || g.reaction == nil || g.reaction.id != id {
		return false, nil
	}
	err := g.closeWindow()
	if err != nil && apperrors.IsFatal(err) {
		g.failFatal(err)
	}
	return true, err
}

func (g *Game) closeWindow() error {
	pa := g.pending
	pa.nopes = g.reaction.nopes
	g.pending = nil
	g.reaction = nil

	if pa.nopes%2 == 1 {
		g.phase = PhaseAwaitingAction
		g.emitResolved(pa, EffectSummary{Effect: EffectCancelled})
		return nil
	}
	return g.resolve(pa)
}
