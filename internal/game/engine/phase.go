package engine

import "fmt"

// Phase 对局阶段
type Phase int

const (
	PhaseAwaitingAction Phase = iota // 当前玩家出牌或摸牌结束回合
	PhaseReactionWindow              // 有动作待结算，其他玩家可以 Nope
	PhaseResolving                   // 结算中，只在一次 Apply 内部出现
	PhaseAwaitingDefuse              // 摸到炸弹，等待拆除
	PhaseAwaitingFavor               // Favor 生效，等待目标交出一张牌
	PhaseGameOver
)

var phaseNames = map[Phase]string{
	PhaseAwaitingAction: "awaiting_action",
	PhaseReactionWindow: "reaction_window",
	PhaseResolving:      "resolving",
	PhaseAwaitingDefuse: "awaiting_defuse",
	PhaseAwaitingFavor:  "awaiting_favor",
	PhaseGameOver:       "game_over",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for phase, name := range phaseNames {
		if name == string(b) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// ConnState 玩家连接状态
type ConnState int

const (
	Connected ConnState = iota
	StandIn             // 断线，由托管策略代打
)

func (c ConnState) String() string {
	if c == StandIn {
		return "stand_in"
	}
	return "connected"
}

// MarshalText encodes the connection state by name.
func (c ConnState) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a connection state name.
func (c *ConnState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connected":
		*c = Connected
	case "stand_in":
		*c = StandIn
	default:
		return fmt.Errorf("unknown connection state %q", b)
	}
	return nil
}
