package features

import (
	"context"

	"github.com/shopspring/decimal"
)

// Feature keys used in the merged context. Cold and hot keys are disjoint;
// a collision would mean the two stores disagree about ownership.
const (
	KeyUserID           = "user_id"
	KeyUserLTV          = "user_ltv"
	KeyChurnProbability = "churn_probability"
	KeyCartValue        = "current_cart_value"
	KeyProfitMargin     = "cart_profit_margin"
	KeyInventoryStatus  = "inventory_status"
)

// Context is a flat per-request mapping from feature name to scalar value.
// It is assembled on demand, never persisted, and discarded after use.
type Context map[string]any

// Float returns the named feature as float64, or fallback when the feature is
// absent or not numeric.
func (c Context) Float(key string, fallback float64) float64 {
	v, ok := c[key]
	if !ok {
		return fallback
	}
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return f
}

// ColdProfile is the analytical profile computed nightly for a user.
type ColdProfile struct {
	UserLTV          float64
	ChurnProbability float64
}

// CartSession is the live operational state of a user's current session.
// Money columns are decimals in the store and converted at the boundary.
type CartSession struct {
	CartValue       decimal.Decimal
	ProfitMargin    decimal.Decimal
	InventoryStatus string
}

// ColdReader reads the analytical (cold) store.
// A missing profile yields (nil, nil): unknown users are a business outcome,
// not a read failure.
type ColdReader interface {
	GetProfile(ctx context.Context, userID string) (*ColdProfile, error)
}

// HotReader reads the operational (hot) store.
// A missing session yields (nil, nil).
type HotReader interface {
	GetSession(ctx context.Context, userID string) (*CartSession, error)
}
