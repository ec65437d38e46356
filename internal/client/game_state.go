package client

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/protocol"
)

// GameState 客户端对局镜像：以 state_sync 为基准，按事件增量更新
type GameState struct {
	MatchID string
	Seat    int
	State   engine.Snapshot

	// Future 最近一次预言看到的牌（牌堆顶在前），牌堆顺序变化后清空
	Future []card.Card

	LastSeq uint64
	Synced  bool
}

// NewGameState creates an empty mirror.
func NewGameState() *GameState {
	return &GameState{Seat: -1}
}

// Apply 处理一条服务端消息。重复或过期的事件返回 false。
func (gs *GameState) Apply(msg *protocol.Message) (bool, error) {
	switch msg.Type {
	case protocol.MsgConnected:
		var p protocol.ConnectedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		gs.MatchID, gs.Seat = p.MatchID, p.Seat
		return true, nil

	case protocol.MsgStateSync:
		var p protocol.StateSyncPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		var snap engine.Snapshot
		if err := json.Unmarshal(p.State, &snap); err != nil {
			return false, err
		}
		gs.MatchID, gs.Seat, gs.State = p.MatchID, p.Seat, snap
		gs.LastSeq = max(gs.LastSeq, snap.Seq)
		gs.Synced = true
		return true, nil

	case protocol.MsgEvent:
		var p protocol.EventPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, err
		}
		if p.Seq <= gs.LastSeq {
			return false, nil
		}
		gs.LastSeq = p.Seq
		if !gs.Synced {
			// 补发阶段，稍后的 state_sync 会覆盖全部状态
			return true, nil
		}
		return true, gs.applyEvent(p)
	}
	return true, nil
}

func (gs *GameState) applyEvent(p protocol.EventPayload) error {
	s := &gs.State
	s.Seq = p.Seq

	switch engine.EventKind(p.Kind) {
	case engine.EventTurnAdvanced:
		var d engine.TurnAdvancedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		s.ActiveSeat, s.TurnsRemaining = d.ActiveSeat, d.TurnsRemaining
		s.Phase = engine.PhaseAwaitingAction

	case engine.EventActionAnnounced:
		var d engine.ActionAnnouncedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.Seat == gs.Seat {
			gs.removeFromHand(d.Cards...)
		}
		gs.setHandSize(d.Seat, -len(d.Cards))
		s.DiscardSize += len(d.Cards)
		if n := len(d.Cards); n > 0 {
			top := d.Cards[n-1]
			s.DiscardTop = &top
		}

	case engine.EventNopePlayed:
		var d engine.NopePlayedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.Seat == gs.Seat {
			gs.removeFromHand(d.Card)
		}
		gs.setHandSize(d.Seat, -1)
		s.DiscardSize++
		s.DiscardTop = &d.Card

	case engine.EventReactionWindowOpened:
		s.Phase = engine.PhaseReactionWindow

	case engine.EventActionResolved:
		var d engine.ActionResolvedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.Summary.Effect == engine.EffectShuffle {
			gs.Future = nil
		}
		s.Phase = engine.PhaseAwaitingAction
		s.Reaction = nil

	case engine.EventFavorRequested:
		var d engine.FavorRequestedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		s.Phase = engine.PhaseAwaitingFavor
		s.FavorTarget = &d.Target

	case engine.EventFutureSeen:
		var d engine.FutureSeenPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.Seat == gs.Seat {
			gs.Future = d.Cards
		}

	case engine.EventCardDrawn:
		var d engine.CardDrawnPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.Seat == gs.Seat {
			s.Hand = append(s.Hand, d.Card)
		}

	case engine.EventPlayerDrew:
		var d engine.PlayerDrewPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		s.DrawPileSize = d.DrawPileSize
		gs.players(func(ps *engine.PlayerSummary) {
			if ps.Seat == d.Seat {
				ps.HandSize = d.HandSize
			}
		})
		gs.popFuture()

	case engine.EventLethalDrawn:
		s.DrawPileSize = max(0, s.DrawPileSize-1)
		gs.popFuture()
		s.Phase = engine.PhaseAwaitingDefuse

	case engine.EventLethalDefused:
		var d engine.LethalDefusedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.Seat == gs.Seat {
			gs.removeKind(card.Defuse)
		}
		gs.setHandSize(d.Seat, -1)
		s.DrawPileSize = d.DrawPileSize
		s.DiscardSize++
		// 炸弹被放回任意位置，已知顺序失效
		gs.Future = nil

	case engine.EventDrawPileRecycled:
		var d engine.DrawPileRecycledPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		s.DrawPileSize += d.Moved
		s.DiscardSize -= d.Moved
		gs.Future = nil

	case engine.EventCardTransferred:
		var d engine.CardTransferredPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		if d.From == gs.Seat {
			gs.removeFromHand(d.Card)
		}
		if d.To == gs.Seat {
			s.Hand = append(s.Hand, d.Card)
		}
		gs.setHandSize(d.From, -1)
		gs.setHandSize(d.To, 1)
		s.FavorTarget = nil

	case engine.EventPlayerEliminated:
		var d engine.PlayerEliminatedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		gs.players(func(ps *engine.PlayerSummary) {
			if ps.Seat == d.Seat {
				ps.Out = true
				ps.HandSize = 0
			}
		})
		if d.Seat == gs.Seat {
			s.Hand = nil
		}

	case engine.EventPlayerConnectionChanged:
		var d engine.PlayerConnectionChangedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		gs.players(func(ps *engine.PlayerSummary) {
			if ps.Seat == d.Seat {
				ps.Conn = d.Conn
			}
		})

	case engine.EventGameEnded:
		var d engine.GameEndedPayload
		if err := decode(p, &d); err != nil {
			return err
		}
		s.Phase = engine.PhaseGameOver
		s.Winner = d.Winner
		s.Reaction = nil
	}
	return nil
}

// Over 对局是否已结束
func (gs GameState) Over() bool {
	return gs.Synced && gs.State.Phase == engine.PhaseGameOver
}

// MyTurn 是否轮到自己行动
func (gs GameState) MyTurn() bool {
	return gs.Synced && gs.State.ActiveSeat == gs.Seat && gs.State.Phase != engine.PhaseGameOver
}

// FirstOfKind 手里第一张 k 牌
func (gs GameState) FirstOfKind(k card.Kind) (card.Card, bool) {
	i := slices.IndexFunc(gs.State.Hand, func(c card.Card) bool { return c.Kind == k })
	if i < 0 {
		return card.Card{}, false
	}
	return gs.State.Hand[i], true
}

// NextIsLethal 预言结果显示下一张是炸弹
func (gs GameState) NextIsLethal() bool {
	return len(gs.Future) > 0 && gs.Future[0].Kind == card.ExplodingKitten
}

func (gs *GameState) popFuture() {
	if len(gs.Future) > 0 {
		gs.Future = gs.Future[1:]
	}
}

func (gs *GameState) removeFromHand(cards ...card.Card) {
	for _, c := range cards {
		gs.State.Hand = slices.DeleteFunc(gs.State.Hand, func(h card.Card) bool { return h.ID == c.ID })
	}
}

func (gs *GameState) removeKind(k card.Kind) {
	if c, ok := gs.FirstOfKind(k); ok {
		gs.removeFromHand(c)
	}
}

func (gs *GameState) setHandSize(seat, delta int) {
	gs.players(func(ps *engine.PlayerSummary) {
		if ps.Seat == seat {
			ps.HandSize = max(0, ps.HandSize+delta)
		}
	})
}

func (gs *GameState) players(fn func(*engine.PlayerSummary)) {
	for i := range gs.State.Players {
		fn(&gs.State.Players[i])
	}
}

func decode(p protocol.EventPayload, v any) error {
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode %s event %d: %w", p.Kind, p.Seq, err)
	}
	return nil
}
