package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/palemoky/exploding-kittens/internal/game/engine"
	"github.com/palemoky/exploding-kittens/internal/server/storage"
)

const eventWriteTimeout = 5 * time.Second

// eventLog 把一局的事件按序异步写入 Redis，并在每批写入后刷新快照。
// Publish 在对局协程中调用，只入队不做 IO。
type eventLog struct {
	matchID  string
	store    *storage.RedisStore
	snapshot func(matchID string) (engine.Snapshot, bool)

	mu      sync.Mutex
	queue   []storage.StoredEvent
	notify  chan struct{}
	flushCh chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newEventLog(matchID string, store *storage.RedisStore, snapshot func(string) (engine.Snapshot, bool)) *eventLog {
	l := &eventLog{
		matchID:  matchID,
		store:    store,
		snapshot: snapshot,
		notify:   make(chan struct{}, 1),
		flushCh:  make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// Publish implements engine.EventSink.
func (l *eventLog) Publish(e engine.Event) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		log.Printf("⚠️ 对局 %s 事件 %d 序列化失败: %v", l.matchID, e.Seq, err)
		return
	}

	l.mu.Lock()
	l.queue = append(l.queue, storage.StoredEvent{
		Seq:        e.Seq,
		Kind:       string(e.Kind),
		Recipients: e.Recipients,
		Data:       data,
	})
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Flush 等待调用前入队的事件全部写完
func (l *eventLog) Flush(ctx context.Context) {
	ack := make(chan struct{})
	select {
	case l.flushCh <- ack:
	case <-l.done:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

// Close 写完剩余事件后停止写入协程
func (l *eventLog) Close() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}

func (l *eventLog) run() {
	defer close(l.done)
	for {
		select {
		case <-l.notify:
			l.drain(false)
		case ack := <-l.flushCh:
			l.drain(true)
			close(ack)
		case <-l.stop:
			l.drain(true)
			return
		}
	}
}

// drain 写入队列中的事件并刷新快照，队列为空时只有 force 才刷新快照
func (l *eventLog) drain(force bool) {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	if len(batch) == 0 && !force {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	defer cancel()

	for _, ev := range batch {
		if err := l.store.AppendEvent(ctx, l.matchID, ev); err != nil {
			log.Printf("⚠️ 对局 %s 事件 %d 写入失败: %v", l.matchID, ev.Seq, err)
		}
	}

	snap, ok := l.snapshot(l.matchID)
	if !ok {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("⚠️ 对局 %s 快照序列化失败: %v", l.matchID, err)
		return
	}
	if err := l.store.SaveSnapshot(ctx, l.matchID, data); err != nil {
		log.Printf("⚠️ 对局 %s 快照保存失败: %v", l.matchID, err)
	}
}
