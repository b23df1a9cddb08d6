package types

import (
	"fmt"
	"strings"
)

// Tradability is a set of flags gating which operations an asset allows.
type Tradability uint8

const (
	// TradabilityFrozen allows nothing.
	TradabilityFrozen          Tradability = 0
	TradabilitySell            Tradability = 1 << 0
	TradabilityBuy             Tradability = 1 << 1
	TradabilityAddLiquidity    Tradability = 1 << 2
	TradabilityRemoveLiquidity Tradability = 1 << 3

	TradabilityAll = TradabilitySell | TradabilityBuy | TradabilityAddLiquidity | TradabilityRemoveLiquidity
)

// DefaultTradability is the state of a freshly listed asset.
const DefaultTradability = TradabilityAll

var tradabilityNames = []struct {
	flag Tradability
	name string
}{
	{TradabilitySell, "sell"},
	{TradabilityBuy, "buy"},
	{TradabilityAddLiquidity, "add_liquidity"},
	{TradabilityRemoveLiquidity, "remove_liquidity"},
}

// Contains reports whether every flag of o is set.
func (t Tradability) Contains(o Tradability) bool {
	return t&o == o
}

func (t Tradability) IsValid() bool {
	return t&^TradabilityAll == 0
}

func (t Tradability) String() string {
	if t == TradabilityFrozen {
		return "frozen"
	}
	parts := make([]string, 0, len(tradabilityNames))
	for _, n := range tradabilityNames {
		if t.Contains(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTradability parses "frozen" or a "|" separated list such as "sell|buy".
func ParseTradability(s string) (Tradability, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "frozen" {
		return TradabilityFrozen, nil
	}
	if s == "all" {
		return TradabilityAll, nil
	}
	var t Tradability
	for _, part := range strings.Split(s, "|") {
		found := false
		for _, n := range tradabilityNames {
			if strings.TrimSpace(part) == n.name {
				t |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown tradability flag %q", part)
		}
	}
	return t, nil
}
