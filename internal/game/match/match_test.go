package match

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
	"github.com/palemoky/exploding-kittens/internal/game/card"
	"github.com/palemoky/exploding-kittens/internal/game/engine"
)

const waitFor = 5 * time.Second

type syncRecorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *syncRecorder) Publish(e engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *syncRecorder) has(kind engine.EventKind, match func(engine.Event) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind && (match == nil || match(e)) {
			return true
		}
	}
	return false
}

// skipRules 牌库只有 Skip、Defuse 和炸弹，手牌内容可预知
func skipRules() card.Rules {
	r := card.DefaultRules()
	r.Counts = map[card.Kind]int{card.Skip: 30}
	return r
}

func testPlayers(n int) []engine.PlayerInfo {
	out := make([]engine.PlayerInfo, n)
	for i := range out {
		out[i] = engine.PlayerInfo{ID: string(rune('a' + i)), Name: string(rune('A' + i))}
	}
	return out
}

func startMatch(t *testing.T, n int, cfg Config) (*Match, *syncRecorder) {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(3, 4))
	}
	rec := &syncRecorder{}
	m, err := New("test", testPlayers(n), cfg, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	go m.Run(ctx)
	return m, rec
}

func firstOfKind(t *testing.T, m *Match, seat int, k card.Kind) card.Card {
	t.Helper()
	snap, err := m.SnapshotFor(seat)
	require.NoError(t, err)
	for _, c := range snap.Hand {
		if c.Kind == k {
			return c
		}
	}
	t.Fatalf("seat %d holds no %s", seat, k)
	return card.Card{}
}

func TestSubmitAcceptsAndRejects(t *testing.T) {
	t.Parallel()

	m, _ := startMatch(t, 2, Config{Rules: skipRules()})

	err := m.Submit(1, engine.Draw())
	assert.ErrorIs(t, err, apperrors.ErrNotYourTurn)
	assert.Equal(t, 0, m.Snapshot().ActiveSeat)

	require.NoError(t, m.Submit(0, engine.Draw()))
	snap := m.Snapshot()
	assert.True(t, snap.ActiveSeat == 1 || snap.Phase == engine.PhaseAwaitingDefuse,
		"draw either ends the turn or hits the kitten")

	_, err = m.SnapshotFor(5)
	assert.ErrorIs(t, err, apperrors.ErrSeatNotFound)
	assert.Equal(t, 2, m.NumPlayers())
}

func TestReactionWindowClosesOnTimeout(t *testing.T) {
	t.Parallel()

	m, rec := startMatch(t, 2, Config{Rules: skipRules(), ReactionWindow: 30 * time.Millisecond})
	skip := firstOfKind(t, m, 0, card.Skip)

	require.NoError(t, m.Submit(0, engine.PlayCards(skip.ID)))
	require.Equal(t, engine.PhaseReactionWindow, m.Snapshot().Phase)
	require.NotNil(t, m.Snapshot().Reaction)

	require.Eventually(t, func() bool {
		return rec.has(engine.EventActionResolved, nil)
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return m.Snapshot().ActiveSeat == 1
	}, waitFor, 5*time.Millisecond)
}

func TestPassClosesWindowBeforeDeadline(t *testing.T) {
	t.Parallel()

	m, _ := startMatch(t, 2, Config{Rules: skipRules(), ReactionWindow: time.Hour})
	skip := firstOfKind(t, m, 0, card.Skip)

	require.NoError(t, m.Submit(0, engine.PlayCards(skip.ID)))
	require.NoError(t, m.Submit(1, engine.Pass()))

	snap := m.Snapshot()
	assert.Equal(t, engine.PhaseAwaitingAction, snap.Phase)
	assert.Equal(t, 1, snap.ActiveSeat)
}

func TestTurnTimeoutActsOnceForSeat(t *testing.T) {
	t.Parallel()

	m, rec := startMatch(t, 2, Config{Rules: skipRules(), TurnTimeout: 30 * time.Millisecond})

	require.Eventually(t, func() bool {
		return rec.has(engine.EventPlayerDrew, func(e engine.Event) bool {
			return e.Payload.(engine.PlayerDrewPayload).Seat == 0
		}) || rec.has(engine.EventLethalDrawn, nil)
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, engine.Connected, m.Snapshot().Players[0].Conn, "timeout does not switch to stand-in")
}

func TestRejectedSubmitsDoNotResetTurnTimer(t *testing.T) {
	t.Parallel()

	m, rec := startMatch(t, 2, Config{Rules: skipRules(), TurnTimeout: 100 * time.Millisecond})
	active := m.Snapshot().ActiveSeat
	idle := 1 - active

	timedOut := func() bool {
		return rec.has(engine.EventPlayerDrew, func(e engine.Event) bool {
			return e.Payload.(engine.PlayerDrewPayload).Seat == active
		}) || rec.has(engine.EventLethalDrawn, func(e engine.Event) bool {
			return e.Payload.(engine.LethalDrawnPayload).Seat == active
		})
	}

	deadline := time.Now().Add(600 * time.Millisecond)
	for time.Now().Before(deadline) && !timedOut() {
		err := m.Submit(idle, engine.Draw())
		if err == nil {
			// 已经轮到 idle，说明 active 刚刚超时
			break
		}
		require.ErrorIs(t, err, apperrors.ErrNotYourTurn)
		time.Sleep(40 * time.Millisecond)
	}
	assert.True(t, timedOut(), "seat %d should time out while seat %d keeps sending rejected actions", active, idle)
}

func TestDisconnectOnOwnTurnLetsStandInAct(t *testing.T) {
	t.Parallel()

	m, rec := startMatch(t, 2, Config{Rules: skipRules()})
	require.NoError(t, m.SetConnection(0, engine.StandIn))

	assert.True(t, rec.has(engine.EventPlayerConnectionChanged, nil))
	assert.True(t, rec.has(engine.EventPlayerDrew, nil) || rec.has(engine.EventLethalDrawn, nil))
	assert.Equal(t, engine.StandIn, m.Snapshot().Players[0].Conn)
}

func TestReconnectKeepsHand(t *testing.T) {
	t.Parallel()

	m, _ := startMatch(t, 2, Config{Rules: skipRules()})
	before, err := m.SnapshotFor(1)
	require.NoError(t, err)

	require.NoError(t, m.SetConnection(1, engine.StandIn))
	require.NoError(t, m.SetConnection(1, engine.Connected))

	after, err := m.SnapshotFor(1)
	require.NoError(t, err)
	assert.Equal(t, before.Hand, after.Hand)
	assert.Equal(t, engine.Connected, after.Players[1].Conn)
}

func TestStandInsFinishMatch(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 4} {
		m, rec := startMatch(t, n, Config{})
		for seat := range n {
			err := m.SetConnection(seat, engine.StandIn)
			if err != nil {
				require.ErrorIs(t, err, apperrors.ErrGameAlreadyOver)
			}
		}

		select {
		case <-m.Done():
		case <-time.After(waitFor):
			t.Fatalf("%d stand-ins did not finish", n)
		}
		snap := m.Snapshot()
		assert.Equal(t, engine.PhaseGameOver, snap.Phase)
		require.NotNil(t, snap.Winner)
		assert.True(t, rec.has(engine.EventGameEnded, nil))
		assert.ErrorIs(t, m.Submit(0, engine.Draw()), apperrors.ErrGameAlreadyOver)
	}
}

func TestPauseUnattendedWaitsForPlayers(t *testing.T) {
	t.Parallel()

	m, rec := startMatch(t, 2, Config{Rules: skipRules(), TurnTimeout: 20 * time.Millisecond, PauseUnattended: true})
	require.NoError(t, m.SetConnection(0, engine.StandIn))
	require.NoError(t, m.SetConnection(1, engine.StandIn))

	paused := m.Snapshot()
	time.Sleep(100 * time.Millisecond)
	snap := m.Snapshot()
	assert.NotEqual(t, engine.PhaseGameOver, snap.Phase)
	assert.Equal(t, paused.Seq, snap.Seq, "no seat acts while nobody is connected")

	require.NoError(t, m.SetConnection(1, engine.Connected))
	require.Eventually(t, func() bool { return m.Snapshot().Seq > paused.Seq+1 }, waitFor, 5*time.Millisecond)

	if err := m.Abort("abandoned"); err != nil {
		require.ErrorIs(t, err, apperrors.ErrGameAlreadyOver)
		return
	}
	assert.True(t, rec.has(engine.EventGameEnded, func(e engine.Event) bool {
		return e.Payload.(engine.GameEndedPayload).Aborted
	}))
}

func TestAbortReleasesPendingWindow(t *testing.T) {
	t.Parallel()

	m, rec := startMatch(t, 3, Config{Rules: skipRules(), ReactionWindow: time.Hour})
	skip := firstOfKind(t, m, 0, card.Skip)
	require.NoError(t, m.Submit(0, engine.PlayCards(skip.ID)))

	require.NoError(t, m.Abort("players left"))

	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("match still running after abort")
	}
	assert.Equal(t, engine.PhaseGameOver, m.Snapshot().Phase)
	assert.Nil(t, m.Snapshot().Winner)
	assert.True(t, rec.has(engine.EventGameEnded, func(e engine.Event) bool {
		return e.Payload.(engine.GameEndedPayload).Aborted
	}))
	assert.ErrorIs(t, m.Submit(1, engine.Pass()), apperrors.ErrGameAlreadyOver)
	assert.ErrorIs(t, m.Abort("again"), apperrors.ErrGameAlreadyOver)
}

func TestContextCancelAbortsMatch(t *testing.T) {
	t.Parallel()

	m, err := New("ctx", testPlayers(2), Config{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	cancel()
	select {
	case <-m.Done():
	case <-time.After(waitFor):
		t.Fatal("match ignored context cancellation")
	}
	assert.Equal(t, engine.PhaseGameOver, m.Snapshot().Phase)
}
