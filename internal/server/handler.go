package server

import (
	"fmt"
	"log"
	"time"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/protocol"
	"github.com/palemoky/exploding-kittens/internal/protocol/codec"
)

// handle 处理客户端消息
func (s *Server) handle(c *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgPing:
		s.handlePing(c, msg)

	// 游戏操作
	case protocol.MsgPlayCards, protocol.MsgDraw, protocol.MsgPass, protocol.MsgGiveCard:
		action, err := toAction(msg)
		if err != nil {
			c.SendMessage(codec.ErrorMessageFor(err))
			return
		}
		s.submit(c, action)

	default:
		log.Printf("未知消息类型: %s", msg.Type)
		c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
	}
}

// handlePing 处理心跳消息
func (s *Server) handlePing(c *Client, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		return
	}

	c.SendMessage(codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// submit 把动作交给对局。结果通过事件广播，被拒绝时只回复提交者。
func (s *Server) submit(c *Client, a engine.Action) {
	if err := s.matches.SubmitAction(c.MatchID(), c.Seat(), a); err != nil {
		if apperrors.IsFatal(err) {
			log.Printf("❌ 对局 %s 座位 %d 动作 %s 失败: %v", c.MatchID(), c.Seat(), a.Type, err)
		}
		c.SendMessage(codec.ErrorMessageFor(err))
	}
}

// toAction 把线上消息转换为对局动作
func toAction(msg *protocol.Message) (engine.Action, error) {
	switch msg.Type {
	case protocol.MsgDraw:
		return engine.Draw(), nil
	case protocol.MsgPass:
		return engine.Pass(), nil
	case protocol.MsgGiveCard:
		p, err := codec.ParsePayload[protocol.GiveCardPayload](msg)
		if err != nil {
			return engine.Action{}, err
		}
		return engine.GiveCard(p.CardID), nil
	case protocol.MsgPlayCards:
		p, err := codec.ParsePayload[protocol.PlayCardsPayload](msg)
		if err != nil {
			return engine.Action{}, err
		}
		a := engine.PlayCards(p.CardIDs...)
		a.Target = p.Target
		a.InsertIndex = p.InsertIndex
		if p.NamedKind != "" {
			k, err := card.ParseKind(p.NamedKind)
			if err != nil {
				return engine.Action{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidMessage, err)
			}
			a = a.Naming(k)
		}
		return a, nil
	default:
		return engine.Action{}, fmt.Errorf("%w: %s is not an action", apperrors.ErrInvalidMessage, msg.Type)
	}
}
