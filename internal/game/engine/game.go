package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/rule"
)

// DefaultReactionWindow 默认 Nope 反应时间
const DefaultReactionWindow = 3 * time.Second

// Options 对局构造参数
type Options struct {
	Rules          card.Rules
	Rand           *rand.Rand
	Sink           EventSink
	Now            func() time.Time
	ReactionWindow time.Duration
}

// pendingAction 反应窗口中等待结算的出牌
type pendingAction struct {
	actor     int
	play      rule.Play
	target    int // -1 表示无目标
	namedKind card.Kind
	nopes     int
}

type favorRequest struct {
	actor  int
	target int
}

// Game 一局游戏的全部权威状态。不是并发安全的，由唯一的 match 协程持有。
type Game struct {
	rules          card.Rules
	rng            *rand.Rand
	sink           EventSink
	now            func() time.Time
	reactionWindow time.Duration

	players        []*Player
	drawPile       *card.Pile
	discardPile    *card.Pile
	activeSeat     int
	turnsRemaining int
	phase          Phase
	pending        *pendingAction
	reaction       *reactionState
	favor          *favorRequest
	lethal         *card.Card // 摸到、尚未拆除的炸弹
	eliminated     map[int]bool
	winner         int

	windowSeq uint64
	seq       uint64
}

// New 创建对局：构建并洗牌、发牌、每人一张 Defuse，然后把炸弹洗回牌堆
func New(players []PlayerInfo, opts Options) (*Game, error) {
	n := len(players)
	if n < card.MinPlayers || n > card.MaxPlayers {
		return nil, fmt.Errorf("%w: got %d", apperrors.ErrInsufficientPlayers, n)
	}
	if opts.Rules.Counts == nil {
		opts.Rules = card.DefaultRules()
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReactionWindow <= 0 {
		opts.ReactionWindow = DefaultReactionWindow
	}

	pile, err := card.Build(opts.Rules, n)
	if err != nil {
		return nil, err
	}

	g := &Game{
		rules:          opts.Rules,
		rng:            opts.Rand,
		sink:           opts.Sink,
		now:            opts.Now,
		reactionWindow: opts.ReactionWindow,
		players:        make([]*Player, n),
		drawPile:       pile,
		discardPile:    card.NewPile(nil),
		turnsRemaining: 1,
		phase:          PhaseAwaitingAction,
		eliminated:     make(map[int]bool),
		winner:         -1,
	}
	for i, p := range players {
		g.players[i] = &Player{ID: p.ID, Name: p.Name, Seat: i, Hand: card.NewHand()}
	}

	if err := g.deal(); err != nil {
		return nil, err
	}

	g.emit(EventGameStarted, GameStartedPayload{
		Players:      g.summaries(),
		ActiveSeat:   g.activeSeat,
		DrawPileSize: g.drawPile.Len(),
	})
	for _, p := range g.players {
		g.emitTo([]int{p.Seat}, EventHandDealt, HandDealtPayload{Seat: p.Seat, Hand: p.Hand.Cards()})
	}
	g.emit(EventTurnAdvanced, TurnAdvancedPayload{ActiveSeat: g.activeSeat, TurnsRemaining: g.turnsRemaining})
	return g, nil
}

// deal 发牌。发牌阶段摸到的炸弹和 Defuse 先放一边，之后每人补一张 Defuse，其余随机插回。
func (g *Game) deal() error {
	g.drawPile.Shuffle(g.rng)

	size, err := g.rules.DealSize(len(g.players))
	if err != nil {
		return err
	}
	var setAside []card.Card
	for range size {
		for _, p := range g.players {
			for {
				c, err := g.drawPile.Draw()
				if err != nil {
					return fmt.Errorf("deck too small to deal %d cards: %w", size, err)
				}
				if c.Kind == card.ExplodingKitten || c.Kind == card.Defuse {
					setAside = append(setAside, c)
					continue
				}
				p.Hand.Add(c)
				break
			}
		}
	}

	for _, p := range g.players {
		save, ok := takeKind(&setAside, card.Defuse)
		if !ok {
			if save, ok = g.drawPile.RemoveKind(card.Defuse); !ok {
				return fmt.Errorf("no defuse left for seat %d: %w", p.Seat, apperrors.ErrInsufficientCards)
			}
		}
		p.Hand.Add(save)
	}

	for _, c := range setAside {
		g.drawPile.InsertAt(c, g.rng.IntN(g.drawPile.Len()+1))
	}
	g.drawPile.Shuffle(g.rng)
	return nil
}

func takeKind(cards *[]card.Card, k card.Kind) (card.Card, bool) {
	for i, c := range *cards {
		if c.Kind == k {
			*cards = append((*cards)[:i], (*cards)[i+1:]...)
			return c, true
		}
	}
	return card.Card{}, false
}

// Apply 校验并执行一个玩家意图。被拒绝时状态不变；只有 ErrDeckExhausted 是致命错误。
func (g *Game) Apply(seat int, a Action) error {
	if g.phase == PhaseGameOver {
		return apperrors.ErrGameAlreadyOver
	}
	if seat < 0 || seat >= len(g.players) {
		return fmt.Errorf("%w: %d", apperrors.ErrSeatNotFound, seat)
	}
	if g.eliminated[seat] {
		return fmt.Errorf("%w: seat %d is eliminated", apperrors.ErrIllegalAction, seat)
	}

	var err error
	switch g.phase {
	case PhaseAwaitingAction:
		err = g.applyTurnAction(seat, a)
	case PhaseReactionWindow:
		err = g.applyReaction(seat, a)
	case PhaseAwaitingDefuse:
		err = g.applyDefuse(seat, a)
	case PhaseAwaitingFavor:
		err = g.applyFavor(seat, a)
	default:
		err = fmt.Errorf("%w: phase %s", apperrors.ErrIllegalAction, g.phase)
	}

	if errors.Is(err, apperrors.ErrDeckExhausted) {
		g.failFatal(err)
	}
	return err
}

func (g *Game) applyTurnAction(seat int, a Action) error {
	if seat != g.activeSeat {
		return apperrors.ErrNotYourTurn
	}
	switch a.Type {
	case ActionPlayCards:
		return g.play(seat, a)
	case ActionDraw:
		return g.drawForTurn()
	default:
		return fmt.Errorf("%w: %s during %s", apperrors.ErrIllegalAction, a.Type, g.phase)
	}
}

// Abort 外部终止对局（例如所有玩家离开），从任意阶段直接进入 GameOver，没有赢家
func (g *Game) Abort(reason string) error {
	if g.phase == PhaseGameOver {
		return apperrors.ErrGameAlreadyOver
	}
	g.pending = nil
	g.reaction = nil
	g.favor = nil
	g.phase = PhaseGameOver
	g.winner = -1
	g.emit(EventGameEnded, GameEndedPayload{Aborted: true, Reason: reason})
	return nil
}

// SetConnection 切换玩家的决策来源，手牌和座位不变
func (g *Game) SetConnection(seat int, conn ConnState) error {
	if seat < 0 || seat >= len(g.players) {
		return fmt.Errorf("%w: %d", apperrors.ErrSeatNotFound, seat)
	}
	p := g.players[seat]
	if p.Conn == conn {
		return nil
	}
	p.Conn = conn
	g.emit(EventPlayerConnectionChanged, PlayerConnectionChangedPayload{Seat: seat, Conn: conn})
	return nil
}

func (g *Game) failFatal(cause error) {
	diag := DiagnosticPayload{Message: cause.Error()}
	if err := g.CheckAccounting(); err != nil {
		diag.Accounting = err.Error()
	}
	g.pending = nil
	g.reaction = nil
	g.favor = nil
	g.phase = PhaseGameOver
	g.winner = -1
	g.emit(EventDiagnostic, diag)
	g.emit(EventGameEnded, GameEndedPayload{Reason: "deck_exhausted"})
}

func (g *Game) finish(winner int) {
	g.phase = PhaseGameOver
	g.winner = winner
	g.emit(EventGameEnded, GameEndedPayload{Winner: &winner})
}

func (g *Game) emit(kind EventKind, payload any) {
	g.emitTo(nil, kind, payload)
}

func (g *Game) emitTo(recipients []int, kind EventKind, payload any) {
	g.seq++
	g.sink.Publish(Event{Seq: g.seq, Kind: kind, Payload: payload, Recipients: recipients})
}

func (g *Game) summaries() []PlayerSummary {
	out := make([]PlayerSummary, len(g.players))
	for i, p := range g.players {
		out[i] = p.summary()
	}
	return out
}

// liveSeats 未出局的座位，按座位顺序
func (g *Game) liveSeats() []int {
	seats := make([]int, 0, len(g.players))
	for _, p := range g.players {
		if !g.eliminated[p.Seat] {
			seats = append(seats, p.Seat)
		}
	}
	return seats
}

// nextLive 返回 seat 之后第一个未出局的座位
func (g *Game) nextLive(seat int) int {
	n := len(g.players)
	for i := 1; i <= n; i++ {
		next := (seat + i) % n
		if !g.eliminated[next] {
			return next
		}
	}
	return seat
}
