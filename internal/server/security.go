package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// originPolicy WebSocket 握手的来源白名单，空 Origin（本地客户端、同源）总是放行
type originPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}
	return p
}

// allow 用作 websocket.Upgrader.CheckOrigin
func (p *originPolicy) allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.any || origin == "" {
		return true
	}
	_, ok := p.origins[strings.ToLower(origin)]
	return ok
}

// clientIP 优先取代理头中最早的地址
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// seatKey 限流按座位计，重连不会清空违规记录
type seatKey struct {
	matchID string
	seat    int
}

type rateVerdict int

const (
	rateOK       rateVerdict = iota
	rateSlowDown             // 超过一半额度，提醒客户端
	rateDropped              // 超出额度，消息被丢弃并记一次违规
)

type seatWindow struct {
	start   time.Time
	count   int
	strikes int
}

// seatLimiter 每个座位每秒的消息额度
type seatLimiter struct {
	perSecond int
	now       func() time.Time

	mu    sync.Mutex
	seats map[seatKey]*seatWindow
}

func newSeatLimiter(perSecond int) *seatLimiter {
	return &seatLimiter{
		perSecond: perSecond,
		now:       time.Now,
		seats:     make(map[seatKey]*seatWindow),
	}
}

// allow 记录一条消息并给出判定。perSecond <= 0 表示不限流。
func (l *seatLimiter) allow(k seatKey) rateVerdict {
	if l.perSecond <= 0 {
		return rateOK
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.seats[k]
	if !ok {
		w = &seatWindow{start: now}
		l.seats[k] = w
	}
	if now.Sub(w.start) >= time.Second {
		w.start, w.count = now, 0
	}
	w.count++

	switch {
	case w.count > l.perSecond:
		w.strikes++
		return rateDropped
	case w.count > l.perSecond/2:
		return rateSlowDown
	}
	return rateOK
}

// strikes 座位累计的违规次数
func (l *seatLimiter) strikes(k seatKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.seats[k]; ok {
		return w.strikes
	}
	return 0
}

// forgetMatch 对局清理时丢弃该局所有座位的记录
func (l *seatLimiter) forgetMatch(matchID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.seats {
		if k.matchID == matchID {
			delete(l.seats, k)
		}
	}
}
