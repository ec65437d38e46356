package client

import (
	"log"
	"time"

	"github.com/palemoky/exploding-kittens/internal/logger"
)

// tryReconnect 指数退避重连。服务端按 since 补发错过的事件并重新下发 state_sync。
func (c *Client) tryReconnect() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			c.reconnecting.Store(false)
		}
	}()

	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	delay := reconnectInterval
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		log.Printf("🔄 尝试重连 (%d/%d)，since=%d", attempt, maxReconnectAttempts, c.LastSeq())

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			c.reconnecting.Store(false)
			return
		}
		delay = min(delay*2, maxReconnectDelay)

		conn, err := c.dial()
		if err != nil {
			log.Printf("重连失败: %v", err)
			continue
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			_ = conn.Close()
			c.reconnecting.Store(false)
			return
		}

		c.attach(conn)
		c.reconnecting.Store(false)
		log.Printf("✅ 重连成功")
		if c.OnReconnect != nil {
			c.OnReconnect()
		}
		return
	}

	log.Printf("❌ 重连失败，已达最大尝试次数")
	c.reconnecting.Store(false)
	c.Close()
	if c.OnClose != nil {
		c.OnClose()
	}
}
