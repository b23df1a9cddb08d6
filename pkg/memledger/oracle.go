package memledger

import (
	"context"
	"sync"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

type pair struct {
	a, b uint32
}

// StaticOracle serves prices set by hand.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[pair]fp.Ratio
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[pair]fp.Ratio)}
}

// SetPrice sets the price of assetB in units of assetA
func (o *StaticOracle) SetPrice(assetA, assetB uint32, price fp.Ratio) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[pair{assetA, assetB}] = price
}

// GetPrice implements the omnipool price oracle
func (o *StaticOracle) GetPrice(_ context.Context, assetA, assetB uint32) (fp.Ratio, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[pair{assetA, assetB}]
	return price, ok
}
