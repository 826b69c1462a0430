package usecase

import (
	"context"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	applogger "SignalPilot/pkg/logger"

	"github.com/shopspring/decimal"
)

// OrderLifecycle applies external fill and close instructions to stored orders.
type OrderLifecycle struct {
	orders  domrepo.OrderStore
	sink    domrepo.NotificationSink
	metrics domrepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

type LifecycleOption func(*OrderLifecycle)

func WithLifecycleSink(s domrepo.NotificationSink) LifecycleOption {
	return func(l *OrderLifecycle) { l.sink = s }
}

func WithLifecycleLogger(lg *applogger.Logger) LifecycleOption {
	return func(l *OrderLifecycle) {
		if lg != nil {
			l.logger = lg
		}
	}
}

func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *OrderLifecycle) { l.now = now }
}

func NewOrderLifecycle(orders domrepo.OrderStore, metrics domrepo.Metrics, opts ...LifecycleOption) *OrderLifecycle {
	l := &OrderLifecycle{
		orders:  orders,
		metrics: metrics,
		logger:  applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fill moves a pending order to active at entryPrice.
func (l *OrderLifecycle) Fill(ctx context.Context, id string, entryPrice decimal.Decimal) (*models.Order, error) {
	if !entryPrice.IsPositive() {
		return nil, errs.Validation("entry_price_invalid", "entry price must be positive")
	}
	cur, err := l.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cur.Status, models.OrderActive) {
		return nil, errs.Conflict("order_transition_invalid", "order %s is %s and cannot be filled", id, cur.Status)
	}
	o, err := l.orders.Activate(ctx, id, entryPrice, l.now())
	if err != nil {
		return nil, err
	}
	l.publish(ctx, o)
	return o, nil
}

// Close settles an active order and computes its PnL.
func (l *OrderLifecycle) Close(ctx context.Context, id string, closePrice decimal.Decimal, reason models.CloseReason) (*models.Order, error) {
	if !closePrice.IsPositive() {
		return nil, errs.Validation("close_price_invalid", "close price must be positive")
	}
	switch reason {
	case models.CloseTakeProfit, models.CloseStopLoss, models.CloseManual, models.CloseReversal:
	default:
		return nil, errs.Validation("close_reason_invalid", "unknown close reason %q", reason)
	}
	cur, err := l.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cur.Status, models.OrderClosed) {
		return nil, errs.Conflict("order_transition_invalid", "order %s is %s and cannot be closed", id, cur.Status)
	}
	pnl := models.ComputePnL(cur.Direction, cur.EntryPrice, closePrice, cur.Amount, cur.Leverage)
	o, err := l.orders.Close(ctx, id, closePrice, reason, pnl, l.now())
	if err != nil {
		return nil, err
	}
	l.publish(ctx, o)
	return o, nil
}

// Fail marks a pending order as failed. Terminal.
func (l *OrderLifecycle) Fail(ctx context.Context, id string) error {
	cur, err := l.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(cur.Status, models.OrderFailed) {
		return errs.Conflict("order_transition_invalid", "order %s is %s and cannot fail", id, cur.Status)
	}
	if err := l.orders.Fail(ctx, id, l.now()); err != nil {
		return err
	}
	cur.Status = models.OrderFailed
	l.publish(ctx, cur)
	return nil
}

func (l *OrderLifecycle) publish(ctx context.Context, o *models.Order) {
	fields := []applogger.Field{
		applogger.String("order_id", o.ID),
		applogger.String("user_id", o.UserID),
		applogger.String("status", string(o.Status)),
		applogger.Decimal("entry_price", o.EntryPrice),
	}
	if o.PnL != nil {
		fields = append(fields, applogger.Decimal("pnl", *o.PnL))
	}
	l.logger.Info("order updated", fields...)
	if l.sink == nil {
		return
	}
	if err := l.sink.Publish(ctx, EventOrderUpdate, o); err != nil {
		l.metrics.RecordError("notify_order")
		l.logger.Warn("publish order update failed", applogger.Error(err))
	}
}
