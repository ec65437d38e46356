package server

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/protocol"
	"github.com/palemoky/exploding-kittens/internal/protocol/codec"
)

// hub 记录每局每个座位当前的连接。每个座位同一时刻最多一个连接，新连接顶替旧连接。
type hub struct {
	mu      sync.RWMutex
	matches map[string]map[int]*Client
}

func newHub() *hub {
	return &hub{matches: make(map[string]map[int]*Client)}
}

// attach 绑定座位连接，返回被顶替的旧连接
func (h *hub) attach(c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	seats, ok := h.matches[c.MatchID()]
	if !ok {
		seats = make(map[int]*Client)
		h.matches[c.MatchID()] = seats
	}
	prev := seats[c.Seat()]
	seats[c.Seat()] = c
	return prev
}

// detach 解绑连接，c 已被顶替时返回 false
func (h *hub) detach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	seats := h.matches[c.MatchID()]
	if seats[c.Seat()] != c {
		return false
	}
	delete(seats, c.Seat())
	return true
}

// drop 移除一局的所有连接并关闭
func (h *hub) drop(matchID string) {
	h.mu.Lock()
	seats := h.matches[matchID]
	delete(h.matches, matchID)
	h.mu.Unlock()

	for _, c := range seats {
		c.Close()
	}
}

// seats 一局当前的在线连接数
func (h *hub) seats(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// count 在线连接数
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, seats := range h.matches {
		n += len(seats)
	}
	return n
}

// deliver 把事件推送给可见的在线座位。在对局协程中调用，只做非阻塞发送。
func (h *hub) deliver(matchID string, e engine.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seats := h.matches[matchID]
	if len(seats) == 0 {
		return
	}

	msg, err := eventMessage(e.Seq, string(e.Kind), e.Payload)
	if err != nil {
		log.Printf("⚠️ 对局 %s 事件 %d 编码失败: %v", matchID, e.Seq, err)
		return
	}
	for seat, c := range seats {
		if e.VisibleTo(seat) {
			c.deliverEvent(e.Seq, msg)
		}
	}
}

func eventMessage(seq uint64, kind string, payload any) (*protocol.Message, error) {
	var data json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return codec.NewMessage(protocol.MsgEvent, protocol.EventPayload{
		Seq:  seq,
		Kind: kind,
		Data: data,
	})
}
