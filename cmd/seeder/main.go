package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/config"
	"hermes/internal/adapters/postgres"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const userCount = 10

var inventoryStatuses = []string{"High", "Normal", "Low", "Critical"}

// seedUser holds one synthetic user spanning both stores.
type seedUser struct {
	userID          string
	userLTV         float64
	churnProb       float64
	cartValue       decimal.Decimal
	profitMargin    decimal.Decimal
	inventoryStatus string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seeder: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := generateUsers()

	ch, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		return errors.Wrap(err, "failed to connect to clickhouse")
	}
	defer ch.Close()

	if err := seedClickHouse(ctx, ch, users); err != nil {
		return err
	}

	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return errors.Wrap(err, "failed to connect to postgres")
	}
	defer pg.Close()

	if err := seedPostgres(ctx, pg, users); err != nil {
		return err
	}

	logger.Infof("Seeded %d users (%s..%s) into both stores", len(users), users[0].userID, users[len(users)-1].userID)
	return nil
}

func generateUsers() []seedUser {
	users := make([]seedUser, 0, userCount)
	for i := 0; i < userCount; i++ {
		users = append(users, seedUser{
			userID:          fmt.Sprintf("user_%d", 100+i),
			userLTV:         50 + rand.Float64()*(5000-50),
			churnProb:       rand.Float64(),
			cartValue:       decimal.NewFromFloat(20 + rand.Float64()*(800-20)).Round(2),
			profitMargin:    decimal.NewFromFloat(0.05 + rand.Float64()*(0.40-0.05)).Round(4),
			inventoryStatus: inventoryStatuses[rand.Intn(len(inventoryStatuses))],
		})
	}
	return users
}

// seedClickHouse creates the analytical profile table and loads one row per
// user, replacing any previous seed.
func seedClickHouse(ctx context.Context, ch *clickhouse.Client, users []seedUser) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS user_analytics (
			user_id String,
			user_ltv Float64,
			churn_probability Float64
		) ENGINE = MergeTree()
		ORDER BY user_id`

	if err := ch.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to create user_analytics")
	}
	if err := ch.Exec(ctx, "TRUNCATE TABLE user_analytics"); err != nil {
		return errors.Wrap(err, "failed to truncate user_analytics")
	}

	batch, err := ch.Conn().PrepareBatch(ctx, "INSERT INTO user_analytics (user_id, user_ltv, churn_probability)")
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	for _, u := range users {
		if err := batch.Append(u.userID, u.userLTV, u.churnProb); err != nil {
			return errors.Wrap(err, "failed to append row")
		}
	}
	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	logger.Infof("ClickHouse: loaded %d analytical profiles", len(users))
	return nil
}

// seedPostgres creates the live cart session table and upserts one row per user.
func seedPostgres(ctx context.Context, pg *postgres.Client, users []seedUser) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS cart_sessions (
			user_id TEXT PRIMARY KEY,
			cart_value NUMERIC(10, 2) NOT NULL,
			profit_margin NUMERIC(6, 4) NOT NULL,
			inventory_status TEXT NOT NULL
		)`

	if _, err := pg.DB().ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to create cart_sessions")
	}

	upsert := `
		INSERT INTO cart_sessions (user_id, cart_value, profit_margin, inventory_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			cart_value = EXCLUDED.cart_value,
			profit_margin = EXCLUDED.profit_margin,
			inventory_status = EXCLUDED.inventory_status`

	for _, u := range users {
		if _, err := pg.DB().ExecContext(ctx, upsert, u.userID, u.cartValue, u.profitMargin, u.inventoryStatus); err != nil {
			return errors.Wrapf(err, "failed to upsert session for %s", u.userID)
		}
	}

	logger.Infof("Postgres: loaded %d cart sessions", len(users))
	return nil
}
