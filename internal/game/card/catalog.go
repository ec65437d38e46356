package card

import (
	"fmt"

	"github.com/palemoky/exploding-kittens/internal/apperrors"
)

const (
	MinPlayers = 2
	MaxPlayers = 8
)

// Rules 牌库与效果的可配置常量（房规）
type Rules struct {
	// Counts holds fixed multiplicities for every kind except ExplodingKitten and Defuse.
	Counts map[Kind]int

	// SavePool is the number of Defuse cards in the box. At least n+1 are used so that every
	// starting hand gets one and one remains in the deck.
	SavePool int

	AttackTurns  int  // turns handed to an attack target
	StackAttacks bool // attacked player attacking again passes remaining turns + AttackTurns
	HandSize     int  // cards dealt before the Defuse
	PeekCount    int  // cards revealed by See the Future
}

// DefaultRules 原版牌库
func DefaultRules() Rules {
	return Rules{
		Counts: map[Kind]int{
			Attack:             4,
			Skip:               4,
			Favor:              4,
			Shuffle:            4,
			SeeTheFuture:       5,
			Nope:               5,
			Tacocat:            4,
			Catermelon:         4,
			HairyPotatoCat:     4,
			BeardCat:           4,
			RainbowRalphingCat: 4,
		},
		SavePool:     6,
		AttackTurns:  2,
		StackAttacks: true,
		HandSize:     7,
		PeekCount:    3,
	}
}

// Validate 校验房规
func (r Rules) Validate() error {
	for k, n := range r.Counts {
		if !k.Valid() {
			return fmt.Errorf("unknown card kind %d", k)
		}
		if k == ExplodingKitten || k == Defuse {
			return fmt.Errorf("count for %s is derived from the player count", k)
		}
		if n < 0 {
			return fmt.Errorf("negative count %d for %s", n, k)
		}
	}
	if r.SavePool < 0 {
		return fmt.Errorf("negative save pool %d", r.SavePool)
	}
	if r.AttackTurns < 1 {
		return fmt.Errorf("attack turns must be at least 1, got %d", r.AttackTurns)
	}
	if r.HandSize < 0 {
		return fmt.Errorf("negative hand size %d", r.HandSize)
	}
	if r.PeekCount < 1 {
		return fmt.Errorf("peek count must be at least 1, got %d", r.PeekCount)
	}
	return nil
}

// CountsFor 返回 n 人局每种牌的张数
func (r Rules) CountsFor(n int) (map[Kind]int, error) {
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("%w: %d players", apperrors.ErrInsufficientPlayers, n)
	}
	counts := make(map[Kind]int, len(AllKinds))
	for _, k := range AllKinds {
		counts[k] = r.Counts[k]
	}
	counts[ExplodingKitten] = n - 1
	counts[Defuse] = max(r.SavePool, n+1)
	return counts, nil
}

// CatalogSize 返回 n 人局完整牌库的张数
func (r Rules) CatalogSize(n int) (int, error) {
	counts, err := r.CountsFor(n)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}

// DealSize 每人发到的普通牌张数。7、8 人局的普通牌不够每人 HandSize 张，按可发的最大张数平分。
func (r Rules) DealSize(n int) (int, error) {
	counts, err := r.CountsFor(n)
	if err != nil {
		return 0, err
	}
	dealable := 0
	for k, c := range counts {
		if k != ExplodingKitten && k != Defuse {
			dealable += c
		}
	}
	return min(r.HandSize, dealable/n), nil
}

// Build 按目录顺序构建未洗的完整牌库，ID 从 0 开始连续分配
func Build(r Rules, n int) (*Pile, error) {
	counts, err := r.CountsFor(n)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(counts)*5)
	id := 0
	for _, k := range AllKinds {
		for range counts[k] {
			cards = append(cards, Card{ID: id, Kind: k, Name: k.DisplayName()})
			id++
		}
	}
	return NewPile(cards), nil
}
