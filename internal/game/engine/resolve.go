package engine

import (
	"fmt"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/rule"
)

// play 当前玩家主动出牌：校验后牌进入弃牌堆，并为该动作打开反应窗口
func (g *Game) play(seat int, a Action) error {
	p := g.players[seat]
	cards, err := p.Hand.Select(a.CardIDs)
	if err != nil {
		return err
	}
	pl, err := rule.Classify(cards)
	if err != nil {
		p.Hand.ClearSelection()
		return err
	}
	if pl.Type == rule.Single && pl.Kind == card.Nope {
		p.Hand.ClearSelection()
		return fmt.Errorf("%w: nothing to nope", apperrors.ErrIllegalAction)
	}

	target := -1
	if pl.NeedsTarget() {
		if target, err = g.validateTarget(seat, a.Target, pl); err != nil {
			p.Hand.ClearSelection()
			return err
		}
	}
	var named card.Kind
	if pl.Type == rule.Triple {
		if a.NamedKind == nil || !a.NamedKind.Valid() {
			p.Hand.ClearSelection()
			return fmt.Errorf("%w: a triple must name a card kind", apperrors.ErrIllegalAction)
		}
		named = *a.NamedKind
	}

	played := p.Hand.CommitSelection()
	g.discardPile.PushTop(played...)
	g.pending = &pendingAction{actor: seat, play: pl, target: target, namedKind: named}

	announced := ActionAnnouncedPayload{Seat: seat, Play: pl.Type.String(), Kind: pl.Kind, Cards: played}
	if target >= 0 {
		announced.Target = &target
	}
	if pl.Type == rule.Triple {
		announced.NamedKind = &named
	}
	g.emit(EventActionAnnounced, announced)

	g.openWindow(seat, 0)
	return nil
}

func (g *Game) validateTarget(seat int, target *int, pl rule.Play) (int, error) {
	if target == nil {
		return -1, fmt.Errorf("%w: %s needs a target", apperrors.ErrInvalidTarget, pl.Kind)
	}
	t := *target
	switch {
	case t < 0 || t >= len(g.players):
		return -1, fmt.Errorf("%w: no seat %d", apperrors.ErrInvalidTarget, t)
	case t == seat:
		return -1, fmt.Errorf("%w: cannot target yourself", apperrors.ErrInvalidTarget)
	case g.eliminated[t]:
		return -1, fmt.Errorf("%w: seat %d is eliminated", apperrors.ErrInvalidTarget, t)
	}
	takesCard := pl.Type != rule.Single || pl.Kind == card.Favor
	if takesCard && g.players[t].Hand.Len() == 0 {
		return -1, fmt.Errorf("%w: seat %d has no cards", apperrors.ErrInvalidTarget, t)
	}
	return t, nil
}

// resolve 反应窗口关闭且未被取消后，执行动作的效果
func (g *Game) resolve(pa *pendingAction) error {
	g.phase = PhaseResolving
	actor := pa.actor
	summary := EffectSummary{}
	if pa.target >= 0 {
		t := pa.target
		summary.Target = &t
	}

	switch pa.play.Type {
	case rule.Pair:
		summary.Effect = EffectSteal
		summary.Transferred = g.stealRandom(pa.target, actor)
		g.phase = PhaseAwaitingAction
		g.emitResolved(pa, summary)
		return nil
	case rule.Triple:
		summary.Effect = EffectSteal
		summary.Transferred = g.stealNamed(pa.target, actor, pa.namedKind)
		g.phase = PhaseAwaitingAction
		g.emitResolved(pa, summary)
		return nil
	}

	switch pa.play.Kind {
	case card.Attack:
		turns := g.rules.AttackTurns
		if g.rules.StackAttacks && g.turnsRemaining > 1 {
			turns += g.turnsRemaining
		}
		summary.Effect = EffectAttack
		summary.TurnsGranted = turns
		g.emitResolved(pa, summary)
		g.activeSeat = pa.target
		g.turnsRemaining = turns
		g.phase = PhaseAwaitingAction
		g.emit(EventTurnAdvanced, TurnAdvancedPayload{ActiveSeat: g.activeSeat, TurnsRemaining: g.turnsRemaining})
	case card.Skip:
		summary.Effect = EffectSkip
		g.emitResolved(pa, summary)
		g.endTurn()
	case card.Favor:
		if g.players[pa.target].Hand.Len() == 0 {
			summary.Effect = EffectNoEffect
			g.phase = PhaseAwaitingAction
			g.emitResolved(pa, summary)
			return nil
		}
		summary.Effect = EffectFavor
		g.emitResolved(pa, summary)
		g.favor = &favorRequest{actor: actor, target: pa.target}
		g.phase = PhaseAwaitingFavor
		g.emit(EventFavorRequested, FavorRequestedPayload{Actor: actor, Target: pa.target})
	case card.SeeTheFuture:
		k := min(g.rules.PeekCount, g.drawPile.Len())
		top, err := g.drawPile.PeekTop(k)
		if err != nil {
			return err
		}
		summary.Effect = EffectPeek
		summary.Revealed = len(top)
		g.phase = PhaseAwaitingAction
		g.emitTo([]int{actor}, EventFutureSeen, FutureSeenPayload{Seat: actor, Cards: top})
		g.emitResolved(pa, summary)
	case card.Shuffle:
		g.drawPile.Shuffle(g.rng)
		summary.Effect = EffectShuffle
		g.phase = PhaseAwaitingAction
		g.emitResolved(pa, summary)
	default:
		g.phase = PhaseAwaitingAction
		return fmt.Errorf("%w: %s has no effect", apperrors.ErrIllegalAction, pa.play.Kind)
	}
	return nil
}

func (g *Game) emitResolved(pa *pendingAction, s EffectSummary) {
	g.emit(EventActionResolved, ActionResolvedPayload{
		Seat:    pa.actor,
		Kind:    pa.play.Kind,
		Play:    pa.play.Type.String(),
		Nopes:   pa.nopes,
		Summary: s,
	})
}

func (g *Game) stealRandom(from, to int) int {
	src := g.players[from].Hand
	if src.Len() == 0 {
		return 0
	}
	c := src.RemoveAt(g.rng.IntN(src.Len()))
	g.transfer(from, to, c)
	return 1
}

func (g *Game) stealNamed(from, to int, k card.Kind) int {
	c, ok := g.players[from].Hand.FindKind(k)
	if !ok {
		return 0
	}
	_, _ = g.players[from].Hand.Remove(c.ID)
	g.transfer(from, to, c)
	return 1
}

func (g *Game) transfer(from, to int, c card.Card) {
	g.players[to].Hand.Add(c)
	g.emitTo([]int{from, to}, EventCardTransferred, CardTransferredPayload{From: from, To: to, Card: c})
}

// applyFavor Favor 目标自己选择交出哪张牌
func (g *Game) applyFavor(seat int, a Action) error {
	if seat != g.favor.target {
		return apperrors.ErrNotYourTurn
	}
	if a.Type != ActionGiveCard {
		return fmt.Errorf("%w: %s while a favor is owed", apperrors.ErrIllegalAction, a.Type)
	}
	if len(a.CardIDs) != 1 {
		return fmt.Errorf("%w: give exactly one card", apperrors.ErrIllegalAction)
	}
	c, err := g.players[seat].Hand.Remove(a.CardIDs[0])
	if err != nil {
		return err
	}
	fr := g.favor
	g.favor = nil
	g.transfer(fr.target, fr.actor, c)
	g.phase = PhaseAwaitingAction
	return nil
}
