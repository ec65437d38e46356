package match

import (
	"errors"
	"log"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/logger"
)

// command inbox 中的一项，只在 Run 协程中执行。
// 回复在托管座位行动、计时器重置之后才发出，调用方返回时看到的快照已经稳定。
type command interface {
	apply(m *Match) error
	replyTo() chan<- error
}

type submitCmd struct {
	seat   int
	action engine.Action
	reply  chan<- error
}

func (c submitCmd) apply(m *Match) error {
	err := m.game.Apply(c.seat, c.action)
	if errors.Is(err, apperrors.ErrDeckExhausted) {
		logger.LogError("match %s: %v", m.ID, err)
	}
	return err
}

func (c submitCmd) replyTo() chan<- error { return c.reply }

type connCmd struct {
	seat  int
	conn  engine.ConnState
	reply chan<- error
}

func (c connCmd) apply(m *Match) error {
	if err := m.game.SetConnection(c.seat, c.conn); err != nil {
		return err
	}
	if c.conn == engine.StandIn {
		log.Printf("📴 对局 %s 座位 %d 掉线，转为托管", m.ID, c.seat)
	} else {
		log.Printf("📶 对局 %s 座位 %d 重新连接", m.ID, c.seat)
	}
	return nil
}

func (c connCmd) replyTo() chan<- error { return c.reply }

type abortCmd struct {
	reason string
	reply  chan<- error
}

func (c abortCmd) apply(m *Match) error {
	if err := m.game.Abort(c.reason); err != nil {
		return err
	}
	log.Printf("🛑 对局 %s 已中止: %s", m.ID, c.reason)
	return nil
}

func (c abortCmd) replyTo() chan<- error { return c.reply }

type timeoutCmd struct {
	gen      uint64
	windowID uint64
}

func (c timeoutCmd) apply(m *Match) error {
	m.timeout(c.gen, c.windowID)
	return nil
}

func (timeoutCmd) replyTo() chan<- error { return nil }
