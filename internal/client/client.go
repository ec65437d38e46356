package client

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/logger"
	"github.com/palemoky/exploding-kittens/internal/protocol"
	"github.com/palemoky/exploding-kittens/internal/protocol/codec"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// 最大重连次数
	maxReconnectAttempts = 5
	// 首次重连间隔，之后指数退避
	reconnectInterval = 500 * time.Millisecond
	maxReconnectDelay = 10 * time.Second

	bufferSize = 256
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrNotConnected = errors.New("not connected")
	ErrTimeout      = errors.New("receive timeout")
)

// Client 一个座位的 WebSocket 客户端。断线后用 since=最后收到的 seq 重连，重复事件在本地丢弃。
type Client struct {
	ServerURL string // ws://host:port/ws
	Token     string
	Encoding  codec.Encoding

	// AutoReconnect 为 false 时断线即关闭
	AutoReconnect bool

	// 回调，在读协程中调用
	OnMessage   func(*protocol.Message)
	OnError     func(error)
	OnClose     func()
	OnReconnect func()

	state   *GameState
	stateMu sync.RWMutex

	conn    *websocket.Conn
	send    chan []byte
	receive chan *protocol.Message
	done    chan struct{}

	mu           sync.Mutex
	closed       bool
	reconnecting atomic.Bool
	latency      atomic.Int64
}

// NewClient 创建客户端
func NewClient(serverURL, token string) *Client {
	return &Client{
		ServerURL:     serverURL,
		Token:         token,
		AutoReconnect: true,
		state:         NewGameState(),
		receive:       make(chan *protocol.Message, bufferSize),
		done:          make(chan struct{}),
	}
}

// Connect 连接服务器
func (c *Client) Connect() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

// dial 建立一条新连接，携带已收到的最大 seq
func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.Token)
	q.Set("encoding", c.Encoding.String())
	if seq := c.LastSeq(); seq > 0 {
		q.Set("since", strconv.FormatUint(seq, 10))
	}
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return conn, nil
}

// attach 启动新连接的读写协程
func (c *Client) attach(conn *websocket.Conn) {
	send := make(chan []byte, bufferSize)

	c.stateMu.Lock()
	c.state.Synced = false
	c.stateMu.Unlock()

	c.mu.Lock()
	c.conn = conn
	c.send = send
	c.mu.Unlock()

	go c.readPump(conn, send)
	go c.writePump(conn, send)
}

// readPump 从服务器读取消息
func (c *Client) readPump(conn *websocket.Conn, send chan []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		c.detach(conn, send)
		c.handleReadExit()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && c.OnError != nil {
				c.OnError(err)
			}
			return
		}

		msg, err := c.Encoding.Unmarshal(data)
		if err != nil {
			log.Printf("消息解析错误: %v", err)
			continue
		}
		c.processMessage(msg)
	}
}

func (c *Client) processMessage(msg *protocol.Message) {
	c.stateMu.Lock()
	fresh, err := c.state.Apply(msg)
	c.stateMu.Unlock()
	if err != nil && c.OnError != nil {
		c.OnError(err)
	}
	if !fresh {
		return
	}

	if msg.Type == protocol.MsgPong {
		if p, err := codec.ParsePayload[protocol.PongPayload](msg); err == nil {
			c.latency.Store(time.Now().UnixMilli() - p.ClientTimestamp)
		}
	}

	if c.OnMessage != nil {
		c.OnMessage(msg)
	}

	select {
	case c.receive <- msg:
	default:
	}
}

// detach 关闭连接的发送通道，写协程随之退出
func (c *Client) detach(conn *websocket.Conn, send chan []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.send = nil
		close(send)
	}
	_ = conn.Close()
}

func (c *Client) handleReadExit() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	switch {
	case closed:
		if c.OnClose != nil {
			c.OnClose()
		}
	case c.AutoReconnect:
		go c.tryReconnect()
	default:
		c.Close()
		if c.OnClose != nil {
			c.OnClose()
		}
	}
}

// writePump 向服务器写入消息
func (c *Client) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	frameType := websocket.TextMessage
	if c.Encoding == codec.EncodingBinary {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(frameType, message); err != nil {
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// SendMessage 发送消息
func (c *Client) SendMessage(msg *protocol.Message) error {
	data, err := c.Encoding.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Receive 接收消息 (阻塞)
func (c *Client) Receive() (*protocol.Message, error) {
	select {
	case msg := <-c.receive:
		return msg, nil
	case <-c.done:
		return nil, ErrClosed
	}
}

// ReceiveWithTimeout 带超时接收消息
func (c *Client) ReceiveWithTimeout(timeout time.Duration) (*protocol.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-c.receive:
		return msg, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-c.done:
		return nil, ErrClosed
	}
}

// Close 关闭连接，不再重连
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

// Drop 断开当前连接但保留客户端，AutoReconnect 时会自动重连
func (c *Client) Drop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil
}

// IsReconnecting 是否正在重连
func (c *Client) IsReconnecting() bool {
	return c.reconnecting.Load()
}

// Latency 最近一次 ping 的往返延迟（毫秒）
func (c *Client) Latency() int64 {
	return c.latency.Load()
}

// LastSeq 已收到的最大事件序号
func (c *Client) LastSeq() uint64 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state.LastSeq
}

// State 返回本地对局镜像的副本
func (c *Client) State() GameState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	gs := *c.state
	gs.Future = slices.Clone(gs.Future)
	gs.State.Hand = slices.Clone(gs.State.Hand)
	gs.State.Players = slices.Clone(gs.State.Players)
	return gs
}

// --- 便捷方法 ---

// Draw 摸牌结束回合
func (c *Client) Draw() error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgDraw, nil))
}

// Pass 反应窗口内放弃
func (c *Client) Pass() error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgPass, nil))
}

// PlayCards 出牌。target 为 nil 表示无目标。
func (c *Client) PlayCards(ids []int, target *int) error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgPlayCards, protocol.PlayCardsPayload{
		CardIDs: ids,
		Target:  target,
	}))
}

// PlayTriple 三条点名
func (c *Client) PlayTriple(ids []int, target int, named card.Kind) error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgPlayCards, protocol.PlayCardsPayload{
		CardIDs:   ids,
		Target:    &target,
		NamedKind: named.String(),
	}))
}

// Defuse 拆弹并把炸弹放回 index
func (c *Client) Defuse(id, index int) error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgPlayCards, protocol.PlayCardsPayload{
		CardIDs:     []int{id},
		InsertIndex: index,
	}))
}

// GiveCard 响应 Favor
func (c *Client) GiveCard(id int) error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgGiveCard, protocol.GiveCardPayload{CardID: id}))
}

// Ping 发送心跳
func (c *Client) Ping() error {
	return c.SendMessage(codec.MustNewMessage(protocol.MsgPing, protocol.PingPayload{
		Timestamp: time.Now().UnixMilli(),
	}))
}
