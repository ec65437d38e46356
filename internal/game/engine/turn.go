package engine

import (
	"errors"
	"fmt"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
)

// drawForTurn 摸牌结束一个回合。摸到炸弹时进入拆弹阶段，没有 Defuse 则直接出局。
func (g *Game) drawForTurn() error {
	seat := g.activeSeat
	p := g.players[seat]

	c, err := g.drawCard()
	if err != nil {
		return err
	}

	if c.Kind == card.ExplodingKitten {
		g.lethal = &c
		hasSave := p.HasSave()
		g.emit(EventLethalDrawn, LethalDrawnPayload{Seat: seat, Card: c, HasDefuse: hasSave})
		if hasSave {
			g.phase = PhaseAwaitingDefuse
			return nil
		}
		g.eliminate(seat)
		return nil
	}

	p.Hand.Add(c)
	g.emitTo([]int{seat}, EventCardDrawn, CardDrawnPayload{Seat: seat, Card: c})
	g.emit(EventPlayerDrew, PlayerDrewPayload{Seat: seat, HandSize: p.Hand.Len(), DrawPileSize: g.drawPile.Len()})
	g.endTurn()
	return nil
}

// drawCard 摸牌堆为空时把弃牌堆（除堆顶外）洗回摸牌堆，只重试一次
func (g *Game) drawCard() (card.Card, error) {
	c, err := g.drawPile.Draw()
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperrors.ErrEmptyPile) {
		return card.Card{}, err
	}

	moved := g.discardPile.TakeAllButTop()
	g.drawPile.Append(moved...)
	g.drawPile.Shuffle(g.rng)
	g.emit(EventDrawPileRecycled, DrawPileRecycledPayload{Moved: len(moved)})

	c, err = g.drawPile.Draw()
	if err != nil {
		return card.Card{}, fmt.Errorf("%w: draw and discard piles both empty", apperrors.ErrDeckExhausted)
	}
	return c, nil
}

// applyDefuse 拆弹：Defuse 进弃牌堆，炸弹放回摸牌堆的指定位置，不能被 Nope
func (g *Game) applyDefuse(seat int, a Action) error {
	if seat != g.activeSeat {
		return apperrors.ErrNotYourTurn
	}
	if a.Type != ActionPlayCards || len(a.CardIDs) != 1 {
		return fmt.Errorf("%w: play one defuse", apperrors.ErrIllegalAction)
	}
	hand := g.players[seat].Hand
	c, ok := hand.Get(a.CardIDs[0])
	if !ok {
		return fmt.Errorf("%w: card %d", apperrors.ErrCardNotOwned, a.CardIDs[0])
	}
	if c.Kind != card.Defuse {
		return fmt.Errorf("%w: %s cannot defuse", apperrors.ErrIllegalAction, c.Kind)
	}

	_, _ = hand.Remove(c.ID)
	g.discardPile.PushTop(c)
	g.drawPile.InsertAt(*g.lethal, a.InsertIndex)
	g.lethal = nil
	g.emit(EventLethalDefused, LethalDefusedPayload{Seat: seat, DrawPileSize: g.drawPile.Len()})
	g.endTurn()
	return nil
}

// eliminate 玩家出局：炸弹和剩余手牌进弃牌堆，剩余回合作废
func (g *Game) eliminate(seat int) {
	p := g.players[seat]
	if g.lethal != nil {
		g.discardPile.PushTop(*g.lethal)
		g.lethal = nil
	}
	g.discardPile.PushTop(p.Hand.TakeAll()...)
	g.eliminated[seat] = true
	p.Eliminated = true
	g.emit(EventPlayerEliminated, PlayerEliminatedPayload{Seat: seat})

	live := g.liveSeats()
	if len(live) == 1 {
		g.finish(live[0])
		return
	}
	g.activeSeat = g.nextLive(seat)
	g.turnsRemaining = 1
	g.phase = PhaseAwaitingAction
	g.emit(EventTurnAdvanced, TurnAdvancedPayload{ActiveSeat: g.activeSeat, TurnsRemaining: g.turnsRemaining})
}

// endTurn 结束当前一个回合；被 Attack 时可能还要继续
func (g *Game) endTurn() {
	g.turnsRemaining--
	if g.turnsRemaining <= 0 {
		g.activeSeat = g.nextLive(g.activeSeat)
		g.turnsRemaining = 1
	}
	g.phase = PhaseAwaitingAction
	g.emit(EventTurnAdvanced, TurnAdvancedPayload{ActiveSeat: g.activeSeat, TurnsRemaining: g.turnsRemaining})
}
