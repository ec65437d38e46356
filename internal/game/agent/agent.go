package agent

import (
	"math/rand/v2"

	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
)

// Controller 座位的决策来源。Decide 返回 false 表示需要等待外部输入。
type Controller interface {
	Decide(v engine.View, seat int) (engine.Action, bool)
	Name() string
}

// Remote 在线玩家：动作只来自 inbox，自己从不决策
type Remote struct{}

func (Remote) Decide(engine.View, int) (engine.Action, bool) { return engine.Action{}, false }
func (Remote) Name() string                                  { return "remote" }

// StandIn 断线托管策略：总是直接摸牌，不出可选牌，反应窗口一律放过，
// 有 Defuse 就拆并把炸弹放到随机位置，被 Favor 时交出第一张非 Defuse 的牌。
type StandIn struct {
	rng *rand.Rand
}

// NewStandIn returns the stand-in policy. A nil rng uses the global source.
func NewStandIn(rng *rand.Rand) *StandIn {
	return &StandIn{rng: rng}
}

func (s *StandIn) Name() string { return "stand_in" }

func (s *StandIn) Decide(v engine.View, seat int) (engine.Action, bool) {
	switch v.Phase() {
	case engine.PhaseAwaitingAction:
		if v.ActiveSeat() == seat {
			return engine.Draw(), true
		}
	case engine.PhaseReactionWindow:
		for _, awaited := range v.AwaitedSeats() {
			if awaited == seat {
				return engine.Pass(), true
			}
		}
	case engine.PhaseAwaitingDefuse:
		if v.ActiveSeat() != seat {
			return engine.Action{}, false
		}
		for _, c := range v.Hand(seat) {
			if c.Kind == card.Defuse {
				return engine.Defuse(c.ID, s.intN(v.DrawPileSize()+1)), true
			}
		}
	case engine.PhaseAwaitingFavor:
		if target, ok := v.FavorTarget(); ok && target == seat {
			return s.favorCard(v.Hand(seat))
		}
	}
	return engine.Action{}, false
}

func (s *StandIn) favorCard(hand []card.Card) (engine.Action, bool) {
	if len(hand) == 0 {
		return engine.Action{}, false
	}
	for _, c := range hand {
		if c.Kind != card.Defuse {
			return engine.GiveCard(c.ID), true
		}
	}
	return engine.GiveCard(hand[0].ID), true
}

func (s *StandIn) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	return s.rng.IntN(n)
}

// For picks the controller that decides for a seat in the given connection state.
func For(conn engine.ConnState, standIn Controller) Controller {
	if conn == engine.StandIn {
		return standIn
	}
	return Remote{}
}
