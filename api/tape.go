package api

import (
	"sync"

	"github.com/huandu/skiplist"

	"github.com/openalpha/omnipool/api/types"
)

// sequenceDesc orders trade sequences newest first
type sequenceDesc struct{}

func (sequenceDesc) Compare(lhs, rhs interface{}) int {
	l := lhs.(uint64)
	r := rhs.(uint64)
	if l > r {
		return -1
	}
	if l < r {
		return 1
	}
	return 0
}

func (sequenceDesc) CalcScore(key interface{}) float64 {
	return -float64(key.(uint64))
}

// TradeTape keeps the most recent trades keyed by sequence
type TradeTape struct {
	trades   *skiplist.SkipList
	capacity int
	next     uint64
	mu       sync.RWMutex
}

// NewTradeTape creates a tape holding at most capacity trades
func NewTradeTape(capacity int) *TradeTape {
	if capacity <= 0 {
		capacity = 1000
	}
	return &TradeTape{
		trades:   skiplist.New(sequenceDesc{}),
		capacity: capacity,
		next:     1,
	}
}

// Append assigns the next sequence to trade and stores it, evicting the oldest
// trade once the tape is full.
func (t *TradeTape) Append(trade types.Trade) types.Trade {
	t.mu.Lock()
	defer t.mu.Unlock()

	trade.Sequence = t.next
	t.next++
	t.trades.Set(trade.Sequence, trade)

	if t.trades.Len() > t.capacity {
		t.trades.Remove(trade.Sequence - uint64(t.capacity))
	}
	return trade
}

// Latest returns up to limit trades, newest first
func (t *TradeTape) Latest(limit int) []types.Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 {
		return []types.Trade{}
	}
	out := make([]types.Trade, 0, min(limit, t.trades.Len()))
	for elem := t.trades.Front(); elem != nil && len(out) < limit; elem = elem.Next() {
		out = append(out, elem.Value.(types.Trade))
	}
	return out
}

// Len returns the number of stored trades
func (t *TradeTape) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.trades.Len()
}
