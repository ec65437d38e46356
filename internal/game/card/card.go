package card

import (
	"fmt"
	"strconv"
)

// Kind 牌的种类
type Kind int

const (
	Attack Kind = iota
	Skip
	Favor
	Shuffle
	SeeTheFuture
	Nope
	Defuse
	ExplodingKitten
	Tacocat
	Catermelon
	HairyPotatoCat
	BeardCat
	RainbowRalphingCat
)

// AllKinds lists every kind in catalog order.
var AllKinds = []Kind{
	Attack, Skip, Favor, Shuffle, SeeTheFuture, Nope, Defuse, ExplodingKitten,
	Tacocat, Catermelon, HairyPotatoCat, BeardCat, RainbowRalphingCat,
}

// Category 效果类别
type Category int

const (
	Immediate Category = iota
	Targeted
	Counter
	Lethal
	Save
	Combo
)

var kindNames = map[Kind]string{
	Attack:             "attack",
	Skip:               "skip",
	Favor:              "favor",
	Shuffle:            "shuffle",
	SeeTheFuture:       "see_the_future",
	Nope:               "nope",
	Defuse:             "defuse",
	ExplodingKitten:    "exploding_kitten",
	Tacocat:            "tacocat",
	Catermelon:         "catermelon",
	HairyPotatoCat:     "hairy_potato_cat",
	BeardCat:           "beard_cat",
	RainbowRalphingCat: "rainbow_ralphing_cat",
}

var displayNames = map[Kind]string{
	Attack:             "Attack",
	Skip:               "Skip",
	Favor:              "Favor",
	Shuffle:            "Shuffle",
	SeeTheFuture:       "See the Future",
	Nope:               "Nope",
	Defuse:             "Defuse",
	ExplodingKitten:    "Exploding Kitten",
	Tacocat:            "Tacocat",
	Catermelon:         "Catermelon",
	HairyPotatoCat:     "Hairy Potato Cat",
	BeardCat:           "Beard Cat",
	RainbowRalphingCat: "Rainbow-Ralphing Cat",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// DisplayName returns the printed card title.
func (k Kind) DisplayName() string {
	return displayNames[k]
}

// Valid reports whether k is one of the catalog kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Category returns the effect category of the kind.
func (k Kind) Category() Category {
	switch k {
	case SeeTheFuture, Shuffle, Skip:
		return Immediate
	case Favor, Attack:
		return Targeted
	case Nope:
		return Counter
	case ExplodingKitten:
		return Lethal
	case Defuse:
		return Save
	default:
		return Combo
	}
}

// IsCat reports whether the kind only has an effect as part of a pair or triple.
func (k Kind) IsCat() bool {
	return k.Category() == Combo
}

// ParseKind 解析牌种类名
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return -1, fmt.Errorf("无法识别的牌: %q", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid card kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Card 一张实体牌。ID 在一局的牌库中唯一，只用于区分同种牌的不同实体。
type Card struct {
	ID   int    `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s#%d", c.Kind, c.ID)
}
