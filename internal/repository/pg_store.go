package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresSchema creates the order and user tables.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		signal_id TEXT NOT NULL,
		ticker VARCHAR(32) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		amount NUMERIC(20, 8) NOT NULL,
		leverage INT NOT NULL,
		stop_loss_percent DOUBLE PRECISION NOT NULL CHECK (stop_loss_percent > 0),
		take_profit_percent DOUBLE PRECISION NOT NULL CHECK (take_profit_percent > 0),
		status VARCHAR(16) NOT NULL,
		entry_price NUMERIC(20, 8) NOT NULL DEFAULT 0,
		close_price NUMERIC(20, 8),
		close_reason VARCHAR(32) NOT NULL DEFAULT '',
		pnl NUMERIC(20, 8),
		created_at TIMESTAMPTZ NOT NULL,
		activated_at TIMESTAMPTZ,
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE TABLE IF NOT EXISTS trading_users (
		id TEXT PRIMARY KEY,
		tier INT NOT NULL DEFAULT 0,
		leverage INT NOT NULL DEFAULT 5,
		trade_amount NUMERIC(20, 8) NOT NULL,
		sl_multiplier DOUBLE PRECISION,
		tp_multiplier DOUBLE PRECISION,
		max_sl_multiplier DOUBLE PRECISION,
		max_tp_multiplier DOUBLE PRECISION,
		max_positions INT NOT NULL DEFAULT 0,
		auto_trade BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

// listEligibleQuery returns auto-trading users with a usable trade amount,
// highest tier first.
const listEligibleQuery = `SELECT id, tier, leverage, trade_amount::text,
	sl_multiplier, tp_multiplier, max_sl_multiplier, max_tp_multiplier, max_positions
	FROM trading_users WHERE auto_trade AND trade_amount > 0 ORDER BY tier DESC, id ASC`

const orderColumns = `id, user_id, signal_id, ticker, direction, amount::text, leverage,
	stop_loss_percent, take_profit_percent, status, entry_price::text, close_price::text,
	close_reason, pnl::text, created_at, activated_at, closed_at`

// PgOrderStore persists orders in Postgres. Status changes are single
// conditional UPDATEs, so concurrent fills cannot both succeed.
type PgOrderStore struct {
	pool *pgxpool.Pool
}

func NewPgOrderStore(pool *pgxpool.Pool) *PgOrderStore {
	return &PgOrderStore{pool: pool}
}

func (s *PgOrderStore) Create(ctx context.Context, o *models.Order) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO orders (id, user_id, signal_id, ticker, direction, amount, leverage,
		stop_loss_percent, take_profit_percent, status, entry_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11::numeric, $12)`,
		o.ID, o.UserID, o.SignalID, o.Ticker, string(o.Direction), o.Amount.String(), o.Leverage,
		o.Protection.StopLossPercent, o.Protection.TakeProfitPercent, string(o.Status), o.EntryPrice.String(), o.CreatedAt,
	)
	if err != nil {
		return errs.Transient("order_store_unavailable", fmt.Errorf("insert order: %w", err))
	}
	return nil
}

func (s *PgOrderStore) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound(id)
	}
	if err != nil {
		return nil, errs.Transient("order_store_unavailable", fmt.Errorf("get order: %w", err))
	}
	return o, nil
}

func (s *PgOrderStore) Activate(ctx context.Context, id string, entryPrice decimal.Decimal, at time.Time) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `UPDATE orders SET status = $2, entry_price = $3::numeric, activated_at = $4
		WHERE id = $1 AND status = $5 RETURNING `+orderColumns,
		id, string(models.OrderActive), entryPrice.String(), at, string(models.OrderPending))
	return s.afterTransition(ctx, id, models.OrderActive, row)
}

func (s *PgOrderStore) Close(ctx context.Context, id string, closePrice decimal.Decimal, reason models.CloseReason, pnl decimal.Decimal, at time.Time) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `UPDATE orders SET status = $2, close_price = $3::numeric, close_reason = $4, pnl = $5::numeric, closed_at = $6
		WHERE id = $1 AND status = $7 RETURNING `+orderColumns,
		id, string(models.OrderClosed), closePrice.String(), string(reason), pnl.String(), at, string(models.OrderActive))
	return s.afterTransition(ctx, id, models.OrderClosed, row)
}

func (s *PgOrderStore) Fail(ctx context.Context, id string, at time.Time) error {
	row := s.pool.QueryRow(ctx, `UPDATE orders SET status = $2, closed_at = $3
		WHERE id = $1 AND status = $4 RETURNING `+orderColumns,
		id, string(models.OrderFailed), at, string(models.OrderPending))
	_, err := s.afterTransition(ctx, id, models.OrderFailed, row)
	return err
}

// afterTransition turns an empty UPDATE into not-found or an invalid transition.
func (s *PgOrderStore) afterTransition(ctx context.Context, id string, to models.OrderStatus, row pgx.Row) (*models.Order, error) {
	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Transient("order_store_unavailable", fmt.Errorf("update order: %w", err))
	}
	cur, gerr := s.Get(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	return nil, errs.Conflict("order_transition_invalid", "order %s is %s, cannot move to %s", id, cur.Status, to)
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                     models.Order
		dir, status, reason   string
		amount, entry         string
		closePrice, pnl       *string
		activatedAt, closedAt *time.Time
	)
	err := row.Scan(&o.ID, &o.UserID, &o.SignalID, &o.Ticker, &dir, &amount, &o.Leverage,
		&o.Protection.StopLossPercent, &o.Protection.TakeProfitPercent, &status, &entry, &closePrice,
		&reason, &pnl, &o.CreatedAt, &activatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	o.Direction = models.Direction(dir)
	o.Status = models.OrderStatus(status)
	o.CloseReason = models.CloseReason(reason)
	o.Protection.Leverage = o.Leverage
	o.ActivatedAt = activatedAt
	o.ClosedAt = closedAt
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("order amount: %w", err)
	}
	if o.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return nil, fmt.Errorf("order entry price: %w", err)
	}
	if o.ClosePrice, err = optionalDecimal(closePrice); err != nil {
		return nil, fmt.Errorf("order close price: %w", err)
	}
	if o.PnL, err = optionalDecimal(pnl); err != nil {
		return nil, fmt.Errorf("order pnl: %w", err)
	}
	return &o, nil
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// PgUserDirectory lists users with auto trading enabled.
type PgUserDirectory struct {
	pool *pgxpool.Pool
}

func NewPgUserDirectory(pool *pgxpool.Pool) *PgUserDirectory {
	return &PgUserDirectory{pool: pool}
}

func (d *PgUserDirectory) ListEligible(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := d.pool.Query(ctx, listEligibleQuery)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.UserProfile
	for rows.Next() {
		var (
			u              models.UserProfile
			amount         string
			sl, tp, mx, mt *float64
		)
		if err := rows.Scan(&u.ID, &u.Tier, &u.Leverage, &amount, &sl, &tp, &mx, &mt, &u.MaxPositions); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.TradeAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("user %s trade amount: %w", u.ID, err)
		}
		u.Overrides = overridesFrom(sl, tp, mx, mt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// overridesFrom returns nil when no multiplier column is set.
func overridesFrom(sl, tp, maxSL, maxTP *float64) *models.Multipliers {
	if sl == nil && tp == nil && maxSL == nil && maxTP == nil {
		return nil
	}
	m := &models.Multipliers{}
	if sl != nil {
		m.StopLoss = *sl
	}
	if tp != nil {
		m.TakeProfit = *tp
	}
	if maxSL != nil {
		m.MaxStopLoss = *maxSL
	}
	if maxTP != nil {
		m.MaxTakeProfit = *maxTP
	}
	return m
}

var (
	_ domrepo.OrderStore    = (*PgOrderStore)(nil)
	_ domrepo.UserDirectory = (*PgUserDirectory)(nil)
)
