package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/agent"
	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/logger"
)

const (
	defaultInboxSize = 64
	// 托管连续行动的上限，防止策略出错时死循环
	maxStandInSteps = 1000
)

// Config 对局运行参数
type Config struct {
	Rules          card.Rules
	ReactionWindow time.Duration
	TurnTimeout    time.Duration // 0 表示在线玩家不限时
	InboxSize      int
	Rand           *rand.Rand

	// PauseUnattended 所有座位都托管时暂停对局，等待有人重连或被外部中止
	PauseUnattended bool
}

// Match 一局对局。engine.Game 只在 Run 协程中访问，外部通过 inbox 提交命令。
type Match struct {
	ID string

	cfg     Config
	game    *engine.Game
	standIn agent.Controller
	inbox   chan command

	timer    *time.Timer
	timerGen uint64
	// 计时器启动时的事件序号。被拒绝的命令不产生事件，不会重置等待中座位的计时
	armedSeq uint64

	views     atomic.Pointer[views]
	done      chan struct{}
	closeOnce sync.Once
}

// views 每次命令处理后刷新的只读快照，供其他协程无锁读取
type views struct {
	public engine.Snapshot
	seats  []engine.Snapshot
}

// New 创建对局并发牌。sink 在 Run 协程中被同步调用，不能阻塞。
func New(id string, players []engine.PlayerInfo, cfg Config, sink engine.EventSink) (*Match, error) {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if cfg.ReactionWindow <= 0 {
		cfg.ReactionWindow = engine.DefaultReactionWindow
	}

	g, err := engine.New(players, engine.Options{
		Rules:          cfg.Rules,
		Rand:           cfg.Rand,
		Sink:           sink,
		ReactionWindow: cfg.ReactionWindow,
	})
	if err != nil {
		return nil, err
	}

	m := &Match{
		ID:      id,
		cfg:     cfg,
		game:    g,
		standIn: agent.NewStandIn(nil),
		inbox:   make(chan command, cfg.InboxSize),
		done:    make(chan struct{}),
	}
	m.refreshViews()
	return m, nil
}

// Run 处理 inbox 直到对局结束或 ctx 被取消
func (m *Match) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			if m.game.Phase() != engine.PhaseGameOver {
				_ = m.game.Abort("internal error")
			}
		}
		m.stopTimer()
		m.refreshViews()
		m.closeOnce.Do(func() { close(m.done) })
	}()

	m.advance()
	for m.game.Phase() != engine.PhaseGameOver {
		select {
		case <-ctx.Done():
			_ = m.game.Abort("server shutting down")
			log.Printf("🛑 对局 %s 被终止: %v", m.ID, ctx.Err())
			return
		case cmd := <-m.inbox:
			err := cmd.apply(m)
			m.advance()
			if reply := cmd.replyTo(); reply != nil {
				reply <- err
			}
		}
	}
	m.logEnd()
}

// Done is closed once the match reaches GameOver.
func (m *Match) Done() <-chan struct{} {
	return m.done
}

// Submit 提交一个玩家动作，同步返回接受或拒绝
func (m *Match) Submit(seat int, a engine.Action) error {
	reply := make(chan error, 1)
	return m.send(submitCmd{seat: seat, action: a, reply: reply}, reply)
}

// SetConnection 切换座位的决策来源。转为托管时，如果轮到该座位，托管策略立即行动。
func (m *Match) SetConnection(seat int, conn engine.ConnState) error {
	reply := make(chan error, 1)
	return m.send(connCmd{seat: seat, conn: conn, reply: reply}, reply)
}

// Abort ends the match without a winner from any phase.
func (m *Match) Abort(reason string) error {
	reply := make(chan error, 1)
	return m.send(abortCmd{reason: reason, reply: reply}, reply)
}

func (m *Match) send(cmd command, reply chan error) error {
	select {
	case m.inbox <- cmd:
	case <-m.done:
		return apperrors.ErrGameAlreadyOver
	}
	select {
	case err := <-reply:
		return err
	case <-m.done:
		// Run 在关闭 done 之前总会先回复已取出的命令
		select {
		case err := <-reply:
			return err
		default:
			return apperrors.ErrGameAlreadyOver
		}
	}
}

// Snapshot returns the latest public state.
func (m *Match) Snapshot() engine.Snapshot {
	return m.views.Load().public
}

// SnapshotFor returns the latest state as seen by seat, including its hand.
func (m *Match) SnapshotFor(seat int) (engine.Snapshot, error) {
	v := m.views.Load()
	if seat < 0 || seat >= len(v.seats) {
		return engine.Snapshot{}, fmt.Errorf("%w: %d", apperrors.ErrSeatNotFound, seat)
	}
	return v.seats[seat], nil
}

// NumPlayers 座位数
func (m *Match) NumPlayers() int {
	return len(m.views.Load().seats)
}

func (m *Match) refreshViews() {
	n := m.game.NumPlayers()
	v := &views{public: m.game.Snapshot(), seats: make([]engine.Snapshot, n)}
	for seat := range n {
		v.seats[seat] = m.game.SnapshotFor(seat)
	}
	m.views.Store(v)
}

// advance 让托管座位行动直到需要在线玩家决策，然后为当前阶段重新计时
func (m *Match) advance() {
	for range maxStandInSteps {
		if !m.driveStandIns() {
			break
		}
	}
	m.armTimer()
	m.refreshViews()
}

// driveStandIns 让一个托管座位行动，返回是否有动作被执行
func (m *Match) driveStandIns() bool {
	if m.game.Phase() == engine.PhaseGameOver || m.paused() {
		return false
	}
	for _, seat := range m.game.AwaitedSeats() {
		ctrl := agent.For(m.game.Conn(seat), m.standIn)
		a, ok := ctrl.Decide(m.game, seat)
		if !ok {
			continue
		}
		if err := m.game.Apply(seat, a); err != nil {
			m.logApplyError(seat, ctrl, err)
			continue
		}
		return true
	}
	return false
}

// timeout 当前阶段超时：反应窗口直接关闭，其余阶段由托管策略替等待中的座位行动一次
func (m *Match) timeout(gen, windowID uint64) {
	if gen != m.timerGen {
		return
	}
	m.timer = nil
	if m.game.Phase() == engine.PhaseReactionWindow {
		if _, err := m.game.CloseReactionWindow(windowID); err != nil {
			logger.LogError("match %s: close reaction window: %v", m.ID, err)
		}
		return
	}
	for _, seat := range m.game.AwaitedSeats() {
		a, ok := m.standIn.Decide(m.game, seat)
		if !ok {
			continue
		}
		log.Printf("⏰ 对局 %s 座位 %d 超时，自动 %s", m.ID, seat, a.Type)
		if err := m.game.Apply(seat, a); err != nil {
			m.logApplyError(seat, m.standIn, err)
		}
		return
	}
}

func (m *Match) armTimer() {
	if m.timer != nil && m.armedSeq == m.game.Seq() {
		return
	}
	m.stopTimer()
	m.armedSeq = m.game.Seq()
	m.timerGen++
	gen := m.timerGen
	if m.paused() {
		return
	}

	var (
		d        time.Duration
		windowID uint64
	)
	switch m.game.Phase() {
	case engine.PhaseGameOver:
		return
	case engine.PhaseReactionWindow:
		info, _ := m.game.ReactionWindow()
		windowID = info.WindowID
		d = max(time.Until(info.Deadline), 0)
	default:
		if m.cfg.TurnTimeout <= 0 {
			return
		}
		d = m.cfg.TurnTimeout
	}

	m.timer = time.AfterFunc(d, func() {
		// 计时器只负责投递命令，状态只在 Run 协程中修改
		select {
		case m.inbox <- timeoutCmd{gen: gen, windowID: windowID}:
		case <-m.done:
		}
	})
}

// paused 无人在线且配置了暂停
func (m *Match) paused() bool {
	if !m.cfg.PauseUnattended {
		return false
	}
	for seat := range m.game.NumPlayers() {
		if m.game.Conn(seat) == engine.Connected {
			return false
		}
	}
	return true
}

func (m *Match) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Match) logApplyError(seat int, ctrl agent.Controller, err error) {
	if errors.Is(err, apperrors.ErrDeckExhausted) {
		logger.LogError("match %s: %v", m.ID, err)
		return
	}
	logger.LogError("match %s: %s action for seat %d rejected: %v", m.ID, ctrl.Name(), seat, err)
}

func (m *Match) logEnd() {
	if w, ok := m.game.Winner(); ok {
		log.Printf("🏆 对局 %s 结束，赢家座位 %d", m.ID, w)
		return
	}
	log.Printf("🏁 对局 %s 结束，没有赢家", m.ID)
}
