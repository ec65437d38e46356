package engine

import "github.com/palemoky/exploding-kittens/internal/game/card"

// PlayerInfo 大厅传入的已校验玩家，按座位顺序排列
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player 对局中的玩家。座位在整局中固定，断线只改变 Conn。
type Player struct {
	ID         string
	Name       string
	Seat       int
	Hand       *card.Hand
	Conn       ConnState
	Eliminated bool
}

// HasSave reports whether the player holds a Defuse.
func (p *Player) HasSave() bool {
	return p.Hand.CountKind(card.Defuse) > 0
}

func (p *Player) summary() PlayerSummary {
	return PlayerSummary{
		ID:       p.ID,
		Name:     p.Name,
		Seat:     p.Seat,
		HandSize: p.Hand.Len(),
		Conn:     p.Conn,
		Out:      p.Eliminated,
	}
}
