package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/exploding-kittens/internal/protocol"
	"github.com/palemoky/exploding-kittens/internal/protocol/codec"
	"github.com/palemoky/exploding-kittens/internal/server/session"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	// 超速警告达到该次数后断开
	maxRateWarnings = 5

	// 重连补发的历史事件也走这个缓冲区
	sendBufferSize = 1024
)

// Client 一个座位的 WebSocket 连接
type Client struct {
	ID       string // 连接 ID，重连后会变化
	IP       string
	session  *session.SeatSession
	encoding codec.Encoding

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool

	// 补发历史事件期间实时事件先暂存，补发完成后按 seq 去重再发送
	syncMu  sync.Mutex
	syncing bool
	pending []*protocol.Message
	pendSeq []uint64
	lastSeq uint64
}

// NewClient 创建新客户端
func NewClient(s *Server, conn *websocket.Conn, sess *session.SeatSession, enc codec.Encoding) *Client {
	return &Client{
		ID:       uuid.New().String(),
		session:  sess,
		encoding: enc,
		server:   s,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		syncing:  true,
	}
}

// Seat 连接所属座位
func (c *Client) Seat() int { return c.session.Seat }

// MatchID 连接所属对局
func (c *Client) MatchID() string { return c.session.MatchID }

func (c *Client) seatKey() seatKey { return seatKey{matchID: c.MatchID(), seat: c.Seat()} }

// ReadPump 从 WebSocket 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.server.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取错误: %v", err)
			}
			break
		}

		// 按座位限流，违规次数跨重连累计
		switch c.server.limiter.allow(c.seatKey()) {
		case rateDropped:
			log.Printf("⚠️ 对局 %s 座位 %d (IP: %s) 消息过于频繁", c.MatchID(), c.Seat(), c.IP)
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeRateLimit))
			if c.server.limiter.strikes(c.seatKey()) > maxRateWarnings {
				log.Printf("🚫 对局 %s 座位 %d 因多次超速被断开连接", c.MatchID(), c.Seat())
				return
			}
			continue
		case rateSlowDown:
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "slow down"))
		}

		msg, err := c.encoding.Unmarshal(message)
		if err != nil {
			log.Printf("消息解析错误: %v", err)
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.encoding == codec.EncodingBinary {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frameType, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msg *protocol.Message) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	data, err := c.encoding.Marshal(msg)
	if err != nil {
		log.Printf("消息编码错误: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// 发送缓冲区已满，关闭连接，客户端重连后可补发
		log.Printf("客户端 %s 发送缓冲区已满", c.ID)
		c.closed = true
		close(c.send)
	}
}

// deliverEvent 发送一条实时事件，补发期间先暂存
func (c *Client) deliverEvent(seq uint64, msg *protocol.Message) {
	c.syncMu.Lock()
	if c.syncing {
		c.pending = append(c.pending, msg)
		c.pendSeq = append(c.pendSeq, seq)
		c.syncMu.Unlock()
		return
	}
	c.lastSeq = max(c.lastSeq, seq)
	c.syncMu.Unlock()

	c.SendMessage(msg)
}

// replayed 记录补发到的最大 seq
func (c *Client) replayed(seq uint64) {
	c.syncMu.Lock()
	c.lastSeq = max(c.lastSeq, seq)
	c.syncMu.Unlock()
}

// finishSync 补发结束，发送暂存事件中尚未补发的部分
func (c *Client) finishSync() {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	for i, msg := range c.pending {
		if c.pendSeq[i] > c.lastSeq {
			c.lastSeq = c.pendSeq[i]
			c.SendMessage(msg)
		}
	}
	c.pending, c.pendSeq = nil, nil
	c.syncing = false
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
