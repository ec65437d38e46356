package engine

import "github.com/palemoky/exploding-kittens/internal/game/card"

// ActionType 玩家意图类型
type ActionType int

const (
	ActionPlayCards ActionType = iota
	ActionDraw
	ActionPass
	ActionGiveCard // 回应 Favor
)

var actionTypeNames = map[ActionType]string{
	ActionPlayCards: "play_cards",
	ActionDraw:      "draw",
	ActionPass:      "pass",
	ActionGiveCard:  "give_card",
}

func (t ActionType) String() string {
	if name, ok := actionTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Action is a player intent submitted through the match inbox.
//
// PlayCards carries the selected card ids, plus a Target for Attack, Favor and cat
// combos, and NamedKind for a triple. During AwaitingDefuse a PlayCards with a single
// Defuse is the save, and InsertIndex is where the exploding kitten goes back.
type Action struct {
	Type        ActionType
	CardIDs     []int
	Target      *int
	InsertIndex int
	NamedKind   *card.Kind
}

// PlayCards builds a play of the given cards.
func PlayCards(ids ...int) Action {
	return Action{Type: ActionPlayCards, CardIDs: ids}
}

// At sets the target seat.
func (a Action) At(seat int) Action {
	a.Target = &seat
	return a
}

// Naming sets the kind requested by a triple.
func (a Action) Naming(k card.Kind) Action {
	a.NamedKind = &k
	return a
}

// Draw ends the turn by drawing.
func Draw() Action {
	return Action{Type: ActionDraw}
}

// Pass declines to counter in a reaction window.
func Pass() Action {
	return Action{Type: ActionPass}
}

// GiveCard surrenders a card to the Favor actor.
func GiveCard(id int) Action {
	return Action{Type: ActionGiveCard, CardIDs: []int{id}}
}

// Defuse plays a Defuse and puts the exploding kitten back at index.
func Defuse(id, index int) Action {
	return Action{Type: ActionPlayCards, CardIDs: []int{id}, InsertIndex: index}
}
