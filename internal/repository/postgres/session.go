package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/features"
	pkgerrors "hermes/pkg/errors"
)

// Compile-time check
var _ features.HotReader = (*SessionRepository)(nil)

// SessionRepository implements features.HotReader using sqlx
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new cart session repository
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	CartValue       decimal.Decimal `db:"cart_value"`
	ProfitMargin    decimal.Decimal `db:"profit_margin"`
	InventoryStatus string          `db:"inventory_status"`
}

// GetSession retrieves the live cart session for a user
func (r *SessionRepository) GetSession(ctx context.Context, userID string) (*features.CartSession, error) {
	query := `
		SELECT cart_value, profit_margin, inventory_status
		FROM cart_sessions
		WHERE user_id = $1`

	var row sessionRow
	err := r.db.GetContext(ctx, &row, query, userID)
	if pkgerrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStoreRead, err.Error())
	}

	return &features.CartSession{
		CartValue:       row.CartValue,
		ProfitMargin:    row.ProfitMargin,
		InventoryStatus: row.InventoryStatus,
	}, nil
}
