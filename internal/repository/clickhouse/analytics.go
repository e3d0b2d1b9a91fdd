package clickhouse

import (
	"context"
	"database/sql"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hermes/internal/domain/features"
	pkgerrors "hermes/pkg/errors"
)

// Compile-time check
var _ features.ColdReader = (*AnalyticsRepository)(nil)

// AnalyticsRepository implements features.ColdReader using ClickHouse
type AnalyticsRepository struct {
	conn driver.Conn
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(conn driver.Conn) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

// GetProfile retrieves the analytical profile for a user
func (r *AnalyticsRepository) GetProfile(ctx context.Context, userID string) (*features.ColdProfile, error) {
	query := `
		SELECT user_ltv, churn_probability
		FROM user_analytics
		WHERE user_id = ?
		LIMIT 1`

	row := r.conn.QueryRow(ctx, query, userID)

	var profile features.ColdProfile
	err := row.Scan(&profile.UserLTV, &profile.ChurnProbability)
	if pkgerrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStoreRead, err.Error())
	}

	return &profile, nil
}
