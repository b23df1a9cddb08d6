package types

import (
	"fmt"

	"cosmossdk.io/math"
)

const (
	ModuleName = "dca"
	StoreKey   = ModuleName
)

// OrderType is the direction of a scheduled trade.
type OrderType string

const (
	OrderTypeSell OrderType = "sell"
	OrderTypeBuy  OrderType = "buy"
)

// PoolOmnipool is the only pool type routes may use.
const PoolOmnipool = "omnipool"

// MaxRouteLength bounds the hops of a route.
const MaxRouteLength = 5

// Trade is a single hop of a route.
type Trade struct {
	Pool     string `json:"pool"`
	AssetIn  uint32 `json:"asset_in"`
	AssetOut uint32 `json:"asset_out"`
}

// Order is the trade repeated by a schedule. For a sell, Amount is sold and
// Limit is the minimum received. For a buy, Amount is bought and Limit is the
// maximum paid.
type Order struct {
	Type     OrderType `json:"type"`
	AssetIn  uint32    `json:"asset_in"`
	AssetOut uint32    `json:"asset_out"`
	Amount   math.Uint `json:"amount"`
	Limit    math.Uint `json:"limit"`
	Route    []Trade   `json:"route,omitempty"`
}

// Hops returns the route, or the direct trade when no route is set.
func (o Order) Hops() []Trade {
	if len(o.Route) == 0 {
		return []Trade{{Pool: PoolOmnipool, AssetIn: o.AssetIn, AssetOut: o.AssetOut}}
	}
	return o.Route
}

// Validate checks the order and its route.
func (o Order) Validate() error {
	if o.Type != OrderTypeSell && o.Type != OrderTypeBuy {
		return fmt.Errorf("unknown order type %q", o.Type)
	}
	if o.AssetIn == o.AssetOut {
		return fmt.Errorf("asset in and asset out must differ")
	}
	if o.Amount.IsNil() || o.Amount.IsZero() {
		return fmt.Errorf("amount must be positive")
	}
	if o.Limit.IsNil() {
		return fmt.Errorf("limit must be set")
	}
	if o.Type == OrderTypeBuy && o.Limit.IsZero() {
		return fmt.Errorf("buy limit must be positive")
	}
	return nil
}

// ValidateRoute checks that the route is a connected path from AssetIn to AssetOut.
func (o Order) ValidateRoute() error {
	if len(o.Route) == 0 {
		return nil
	}
	if len(o.Route) > MaxRouteLength {
		return fmt.Errorf("route has %d hops, at most %d allowed", len(o.Route), MaxRouteLength)
	}
	if o.Route[0].AssetIn != o.AssetIn {
		return fmt.Errorf("route starts with asset %d, order sells %d", o.Route[0].AssetIn, o.AssetIn)
	}
	if last := o.Route[len(o.Route)-1]; last.AssetOut != o.AssetOut {
		return fmt.Errorf("route ends with asset %d, order buys %d", last.AssetOut, o.AssetOut)
	}
	for i, hop := range o.Route {
		if hop.Pool != PoolOmnipool {
			return fmt.Errorf("hop %d: unsupported pool %q", i, hop.Pool)
		}
		if hop.AssetIn == hop.AssetOut {
			return fmt.Errorf("hop %d trades asset %d for itself", i, hop.AssetIn)
		}
		if i > 0 && o.Route[i-1].AssetOut != hop.AssetIn {
			return fmt.Errorf("hop %d does not continue from asset %d", i, o.Route[i-1].AssetOut)
		}
	}
	return nil
}

// RecurrenceKind distinguishes bounded from unbounded schedules.
type RecurrenceKind string

const (
	RecurrenceFixed     RecurrenceKind = "fixed"
	RecurrencePerpetual RecurrenceKind = "perpetual"
)

// Recurrence is Fixed(Count) or Perpetual.
type Recurrence struct {
	Kind  RecurrenceKind `json:"kind"`
	Count uint32         `json:"count,omitempty"`
}

func Fixed(n uint32) Recurrence { return Recurrence{Kind: RecurrenceFixed, Count: n} }

func Perpetual() Recurrence { return Recurrence{Kind: RecurrencePerpetual} }

func (r Recurrence) IsPerpetual() bool { return r.Kind == RecurrencePerpetual }

func (r Recurrence) Validate() error {
	switch r.Kind {
	case RecurrencePerpetual:
		return nil
	case RecurrenceFixed:
		if r.Count == 0 {
			return fmt.Errorf("fixed recurrence must be at least 1")
		}
		return nil
	default:
		return fmt.Errorf("unknown recurrence %q", r.Kind)
	}
}

func (r Recurrence) String() string {
	if r.IsPerpetual() {
		return string(RecurrencePerpetual)
	}
	return fmt.Sprintf("%s(%d)", r.Kind, r.Count)
}

// Schedule is a recurring order.
type Schedule struct {
	ID         uint64     `json:"id"`
	Owner      string     `json:"owner"`
	Period     uint64     `json:"period"`
	Order      Order      `json:"order"`
	Recurrence Recurrence `json:"recurrence"`
}

// Validate checks everything except the owner.
func (s Schedule) Validate() error {
	if s.Period == 0 {
		return fmt.Errorf("period must be positive")
	}
	if err := s.Recurrence.Validate(); err != nil {
		return err
	}
	return s.Order.Validate()
}

// Bond is the reserved amount backing a schedule.
type Bond struct {
	Asset  uint32    `json:"asset"`
	Amount math.Uint `json:"amount"`
}

// ScheduleState is the read view of a schedule and its bookkeeping.
type ScheduleState struct {
	Schedule  Schedule `json:"schedule"`
	Bond      Bond     `json:"bond"`
	Remaining *uint32  `json:"remaining_recurrences,omitempty"`
	// PlannedBlock is zero while suspended.
	PlannedBlock uint64  `json:"planned_block"`
	SuspendedTo  *uint64 `json:"suspended_until,omitempty"`
	Retries      uint32  `json:"retries"`
}
