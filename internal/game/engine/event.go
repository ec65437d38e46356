package engine

import (
	"time"

	"github.com/palemoky/exploding-kittens/internal/game/card"
)

// EventKind 状态变化事件类型
type EventKind string

const (
	EventGameStarted             EventKind = "game_started"
	EventHandDealt               EventKind = "hand_dealt"
	EventActionAnnounced         EventKind = "action_announced"
	EventReactionWindowOpened    EventKind = "reaction_window_opened"
	EventNopePlayed              EventKind = "nope_played"
	EventReactionPassed          EventKind = "reaction_passed"
	EventActionResolved          EventKind = "action_resolved"
	EventFutureSeen              EventKind = "future_seen"
	EventFavorRequested          EventKind = "favor_requested"
	EventCardTransferred         EventKind = "card_transferred"
	EventCardDrawn               EventKind = "card_drawn"
	EventPlayerDrew              EventKind = "player_drew"
	EventDrawPileRecycled        EventKind = "draw_pile_recycled"
	EventLethalDrawn             EventKind = "lethal_drawn"
	EventLethalDefused           EventKind = "lethal_defused"
	EventPlayerEliminated        EventKind = "player_eliminated"
	EventTurnAdvanced            EventKind = "turn_advanced"
	EventPlayerConnectionChanged EventKind = "player_connection_changed"
	EventGameEnded               EventKind = "game_ended"
	EventDiagnostic              EventKind = "diagnostic"
)

// Event is one state transition. Seq increases strictly within a match so consumers
// can drop duplicates. Empty Recipients means every seat.
type Event struct {
	Seq        uint64    `json:"seq"`
	Kind       EventKind `json:"kind"`
	Payload    any       `json:"payload"`
	Recipients []int     `json:"recipients,omitempty"`
}

// VisibleTo reports whether seat may observe the event.
func (e Event) VisibleTo(seat int) bool {
	if len(e.Recipients) == 0 {
		return true
	}
	for _, r := range e.Recipients {
		if r == seat {
			return true
		}
	}
	return false
}

// EventSink receives events in order. Implementations must not call back into the game.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Publish(Event) {}

// --- payloads ---

type PlayerSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Seat     int       `json:"seat"`
	HandSize int       `json:"hand_size"`
	Conn     ConnState `json:"conn"`
	Out      bool      `json:"eliminated"`
}

type GameStartedPayload struct {
	Players      []PlayerSummary `json:"players"`
	ActiveSeat   int             `json:"active_seat"`
	DrawPileSize int             `json:"draw_pile_size"`
}

type HandDealtPayload struct {
	Seat int         `json:"seat"`
	Hand []card.Card `json:"hand"`
}

type ActionAnnouncedPayload struct {
	Seat      int         `json:"seat"`
	Play      string      `json:"play"`
	Kind      card.Kind   `json:"kind"`
	Cards     []card.Card `json:"cards"`
	Target    *int        `json:"target,omitempty"`
	NamedKind *card.Kind  `json:"named_kind,omitempty"`
}

type ReactionWindowOpenedPayload struct {
	WindowID uint64    `json:"window_id"`
	Deadline time.Time `json:"deadline"`
	Eligible []int     `json:"eligible"`
	Nopes    int       `json:"nopes"`
}

type NopePlayedPayload struct {
	Seat  int       `json:"seat"`
	Card  card.Card `json:"card"`
	Nopes int       `json:"nopes"`
}

type ReactionPassedPayload struct {
	Seat     int    `json:"seat"`
	WindowID uint64 `json:"window_id"`
}

// Effect names the delta applied by a resolved action.
type Effect string

const (
	EffectCancelled   Effect = "cancelled"
	EffectAttack      Effect = "attack"
	EffectSkip        Effect = "skip"
	EffectFavor       Effect = "favor"
	EffectPeek        Effect = "peek"
	EffectShuffle     Effect = "shuffle"
	EffectSteal       Effect = "steal"
	EffectNoEffect    Effect = "no_effect"
	EffectTransferred Effect = "transferred"
)

type EffectSummary struct {
	Effect       Effect `json:"effect"`
	Target       *int   `json:"target,omitempty"`
	TurnsGranted int    `json:"turns_granted,omitempty"`
	Revealed     int    `json:"revealed,omitempty"`
	Transferred  int    `json:"transferred,omitempty"`
}

type ActionResolvedPayload struct {
	Seat    int           `json:"seat"`
	Kind    card.Kind     `json:"kind"`
	Play    string        `json:"play"`
	Nopes   int           `json:"nopes"`
	Summary EffectSummary `json:"summary"`
}

type FutureSeenPayload struct {
	Seat  int         `json:"seat"`
	Cards []card.Card `json:"cards"`
}

type FavorRequestedPayload struct {
	Actor  int `json:"actor"`
	Target int `json:"target"`
}

type CardTransferredPayload struct {
	From int       `json:"from"`
	To   int       `json:"to"`
	Card card.Card `json:"card"`
}

type CardDrawnPayload struct {
	Seat int       `json:"seat"`
	Card card.Card `json:"card"`
}

type PlayerDrewPayload struct {
	Seat         int `json:"seat"`
	HandSize     int `json:"hand_size"`
	DrawPileSize int `json:"draw_pile_size"`
}

type DrawPileRecycledPayload struct {
	Moved int `json:"moved"`
}

type LethalDrawnPayload struct {
	Seat      int       `json:"seat"`
	Card      card.Card `json:"card"`
	HasDefuse bool      `json:"has_defuse"`
}

type LethalDefusedPayload struct {
	Seat         int `json:"seat"`
	DrawPileSize int `json:"draw_pile_size"`
}

type PlayerEliminatedPayload struct {
	Seat int `json:"seat"`
}

type TurnAdvancedPayload struct {
	ActiveSeat     int `json:"active_seat"`
	TurnsRemaining int `json:"turns_remaining"`
}

type PlayerConnectionChangedPayload struct {
	Seat int       `json:"seat"`
	Conn ConnState `json:"conn"`
}

type GameEndedPayload struct {
	Winner  *int   `json:"winner"`
	Aborted bool   `json:"aborted,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type DiagnosticPayload struct {
	Message    string `json:"message"`
	Accounting string `json:"accounting,omitempty"`
}
