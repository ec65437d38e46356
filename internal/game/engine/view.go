package engine

import (
	"slices"
	"time"

	"github.com/palemoky/exploding-kittens/internal/game/card"
)

// View is the read-only surface decision sources see.
type View interface {
	Phase() Phase
	ActiveSeat() int
	TurnsRemaining() int
	Hand(seat int) []card.Card
	DrawPileSize() int
	AwaitedSeats() []int
	ReactionWindow() (ReactionInfo, bool)
	FavorTarget() (int, bool)
	Eliminated(seat int) bool
}

var _ View = (*Game)(nil)

// ReactionInfo 当前反应窗口的公开信息
type ReactionInfo struct {
	WindowID uint64    `json:"window_id"`
	Actor    int       `json:"actor"`
	Kind     card.Kind `json:"kind"`
	Play     string    `json:"play"`
	Nopes    int       `json:"nopes"`
	LastBy   int       `json:"last_by"`
	Eligible []int     `json:"eligible"`
	Passed   []int     `json:"passed"`
	Deadline time.Time `json:"deadline"`
}

func (g *Game) Phase() Phase         { return g.phase }
func (g *Game) ActiveSeat() int      { return g.activeSeat }
func (g *Game) TurnsRemaining() int  { return g.turnsRemaining }
func (g *Game) DrawPileSize() int    { return g.drawPile.Len() }
func (g *Game) DiscardPileSize() int { return g.discardPile.Len() }
func (g *Game) Rules() card.Rules    { return g.rules }
func (g *Game) Seq() uint64          { return g.seq }
func (g *Game) NumPlayers() int      { return len(g.players) }

// Hand returns a copy of seat's hand, or nil for an unknown seat.
func (g *Game) Hand(seat int) []card.Card {
	if seat < 0 || seat >= len(g.players) {
		return nil
	}
	return g.players[seat].Hand.Cards()
}

func (g *Game) Eliminated(seat int) bool {
	return g.eliminated[seat]
}

// Players 所有座位的公开信息
func (g *Game) Players() []PlayerSummary {
	return g.summaries()
}

// Conn returns the decision source of seat.
func (g *Game) Conn(seat int) ConnState {
	if seat < 0 || seat >= len(g.players) {
		return Connected
	}
	return g.players[seat].Conn
}

// DiscardTop 弃牌堆顶
func (g *Game) DiscardTop() (card.Card, bool) {
	return g.discardPile.Top()
}

// Winner returns the winning seat once the game has a winner.
func (g *Game) Winner() (int, bool) {
	return g.winner, g.phase == PhaseGameOver && g.winner >= 0
}

// PendingLethal 拆弹阶段中被摸到的炸弹
func (g *Game) PendingLethal() (card.Card, bool) {
	if g.lethal == nil {
		return card.Card{}, false
	}
	return *g.lethal, true
}

func (g *Game) FavorTarget() (int, bool) {
	if g.phase != PhaseAwaitingFavor || g.favor == nil {
		return -1, false
	}
	return g.favor.target, true
}

func (g *Game) ReactionWindow() (ReactionInfo, bool) {
	if g.phase != PhaseReactionWindow || g.reaction == nil {
		return ReactionInfo{}, false
	}
	r := g.reaction
	info := ReactionInfo{
		WindowID: r.id,
		Actor:    g.pending.actor,
		Kind:     g.pending.play.Kind,
		Play:     g.pending.play.Type.String(),
		Nopes:    r.nopes,
		LastBy:   r.lastBy,
		Eligible: g.eligibleReactors(),
		Deadline: r.deadline,
	}
	for seat := range r.passed {
		info.Passed = append(info.Passed, seat)
	}
	slices.Sort(info.Passed)
	return info, true
}

// AwaitedSeats 当前需要做出决定的座位
func (g *Game) AwaitedSeats() []int {
	switch g.phase {
	case PhaseAwaitingAction, PhaseAwaitingDefuse:
		return []int{g.activeSeat}
	case PhaseAwaitingFavor:
		return []int{g.favor.target}
	case PhaseReactionWindow:
		var seats []int
		for _, s := range g.eligibleReactors() {
			if !g.reaction.passed[s] {
				seats = append(seats, s)
			}
		}
		return seats
	default:
		return nil
	}
}

// Snapshot is a point-in-time picture of a match. Hand is only set for the
// seat the snapshot was taken for.
type Snapshot struct {
	Seq            uint64          `json:"seq"`
	Phase          Phase           `json:"phase"`
	ActiveSeat     int             `json:"active_seat"`
	TurnsRemaining int             `json:"turns_remaining"`
	Players        []PlayerSummary `json:"players"`
	DrawPileSize   int             `json:"draw_pile_size"`
	DiscardSize    int             `json:"discard_size"`
	DiscardTop     *card.Card      `json:"discard_top,omitempty"`
	Reaction       *ReactionInfo   `json:"reaction,omitempty"`
	FavorTarget    *int            `json:"favor_target,omitempty"`
	Winner         *int            `json:"winner,omitempty"`
	Seat           *int            `json:"seat,omitempty"`
	Hand           []card.Card     `json:"hand,omitempty"`
}

// Snapshot 公开快照，不含任何手牌
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Seq:            g.seq,
		Phase:          g.phase,
		ActiveSeat:     g.activeSeat,
		TurnsRemaining: g.turnsRemaining,
		Players:        g.summaries(),
		DrawPileSize:   g.drawPile.Len(),
		DiscardSize:    g.discardPile.Len(),
	}
	if top, ok := g.discardPile.Top(); ok {
		s.DiscardTop = &top
	}
	if info, ok := g.ReactionWindow(); ok {
		s.Reaction = &info
	}
	if t, ok := g.FavorTarget(); ok {
		s.FavorTarget = &t
	}
	if w, ok := g.Winner(); ok {
		s.Winner = &w
	}
	return s
}

// SnapshotFor 在公开快照上加入 seat 自己的手牌
func (g *Game) SnapshotFor(seat int) Snapshot {
	s := g.Snapshot()
	if seat >= 0 && seat < len(g.players) {
		s.Seat = &seat
		s.Hand = g.players[seat].Hand.Cards()
	}
	return s
}
