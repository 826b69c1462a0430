package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	applogger "SignalPilot/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutorConfig holds fan-out tunables.
type ExecutorConfig struct {
	MaxWorkers      int
	UserTimeout     time.Duration
	LockTTL         time.Duration
	ReserveTTL      time.Duration
	MinNotional     decimal.Decimal
	DefaultLeverage int
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxWorkers:      16,
		UserTimeout:     5 * time.Second,
		LockTTL:         2 * time.Hour,
		ReserveTTL:      30 * time.Second,
		MinNotional:     decimal.NewFromInt(5),
		DefaultLeverage: 5,
	}
}

// FanoutExecutor turns one approved decision into independent per-user orders.
type FanoutExecutor struct {
	cfg        ExecutorConfig
	users      domrepo.UserDirectory
	accounts   domsvc.AccountValidator
	ledger     domrepo.TickerLedger
	protection *ProtectionCalculator
	orders     domrepo.OrderStore
	history    domrepo.SignalHistoryStore
	audit      domrepo.AuditStore
	sink       domrepo.NotificationSink
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	now        func() time.Time
}

type ExecutorOption func(*FanoutExecutor)

func WithExecutorAudit(a domrepo.AuditStore) ExecutorOption {
	return func(e *FanoutExecutor) { e.audit = a }
}

func WithExecutorSink(s domrepo.NotificationSink) ExecutorOption {
	return func(e *FanoutExecutor) { e.sink = s }
}

func WithExecutorLogger(l *applogger.Logger) ExecutorOption {
	return func(e *FanoutExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *FanoutExecutor) { e.now = now }
}

func NewFanoutExecutor(
	cfg ExecutorConfig,
	users domrepo.UserDirectory,
	accounts domsvc.AccountValidator,
	ledger domrepo.TickerLedger,
	protection *ProtectionCalculator,
	orders domrepo.OrderStore,
	history domrepo.SignalHistoryStore,
	metrics domrepo.Metrics,
	opts ...ExecutorOption,
) *FanoutExecutor {
	def := DefaultExecutorConfig()
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = def.UserTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.ReserveTTL <= 0 {
		cfg.ReserveTTL = def.ReserveTTL
	}
	if cfg.DefaultLeverage <= 0 {
		cfg.DefaultLeverage = def.DefaultLeverage
	}
	e := &FanoutExecutor{
		cfg:        cfg,
		users:      users,
		accounts:   accounts,
		ledger:     ledger,
		protection: protection,
		orders:     orders,
		history:    history,
		metrics:    metrics,
		logger:     applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute fans the approved decision out to every eligible user. A failure
// for one user never stops the others; the error return is reserved for
// problems that prevent fan-out from starting.
func (e *FanoutExecutor) Execute(ctx context.Context, sig *models.Signal, d *models.Decision) (*models.ExecutionReport, error) {
	if sig == nil || d == nil {
		return nil, errs.Validation("execution_input_missing", "signal and decision are required")
	}
	if !d.ShouldExecute {
		return nil, errs.Validation("decision_not_approved", "decision %s was not approved", d.ID)
	}
	if sig.DirectionHint != models.DirectionLong && sig.DirectionHint != models.DirectionShort {
		return nil, errs.Validation("direction_unknown", "signal %s has no direction", sig.ID)
	}

	users, err := e.users.ListEligible(ctx)
	if err != nil {
		e.metrics.RecordError("user_directory")
		return nil, errs.Transient("user_directory_unavailable", err)
	}
	SortUsers(users)

	report := &models.ExecutionReport{
		SignalID:   sig.ID,
		DecisionID: d.ID,
		Ticker:     sig.Ticker,
		StartedAt:  e.now(),
	}
	report.Results = e.run(ctx, sig, d, users)
	report.FinishedAt = e.now()
	report.Summary = summarizeResults(report.Results)

	e.logger.Info("fan-out finished",
		applogger.String("signal_id", sig.ID),
		applogger.String("ticker", sig.Ticker),
		applogger.Int("total", report.Summary.Total),
		applogger.Int("successful", report.Summary.Successful),
		applogger.Int("failed", report.Summary.Failed),
	)
	if e.audit != nil {
		if err := e.audit.SaveExecution(ctx, report); err != nil {
			e.metrics.RecordError("audit_execution")
			e.logger.Warn("save execution failed", applogger.Error(err))
		}
	}
	if e.sink != nil {
		if err := e.sink.Publish(ctx, EventExecution, report); err != nil {
			e.metrics.RecordError("notify_execution")
			e.logger.Warn("publish execution failed", applogger.Error(err))
		}
	}
	return report, nil
}

// run executes users on a bounded worker pool and returns results in user order.
func (e *FanoutExecutor) run(ctx context.Context, sig *models.Signal, d *models.Decision, users []models.UserProfile) []models.UserExecutionResult {
	if len(users) == 0 {
		return []models.UserExecutionResult{}
	}
	workers := e.cfg.MaxWorkers
	if len(users) < workers {
		workers = len(users)
	}

	type indexed struct {
		i   int
		res models.UserExecutionResult
	}
	jobs := make(chan int)
	out := make(chan indexed, len(users))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out <- indexed{i, e.executeUser(ctx, sig, d, users[i])}
			}
		}()
	}
	for i := range users {
		jobs <- i
	}
	close(jobs)
	go func() { wg.Wait(); close(out) }()

	results := make([]models.UserExecutionResult, len(users))
	for r := range out {
		results[r.i] = r.res
	}
	return results
}

func (e *FanoutExecutor) executeUser(ctx context.Context, sig *models.Signal, d *models.Decision, u models.UserProfile) (res models.UserExecutionResult) {
	start := time.Now()
	reserved := false
	defer func() {
		if r := recover(); r != nil {
			res = failed(u.ID, models.ResultPanic, fmt.Sprintf("panic: %v", r))
		}
		if !res.Success && reserved {
			e.release(u.ID, sig.Ticker)
		}
		e.metrics.RecordExecution(res.Success, res.ReasonCode)
		e.metrics.RecordLatency("execute_user", time.Since(start).Seconds())
		if !res.Success {
			e.logger.Warn("user execution failed",
				applogger.String("user_id", u.ID),
				applogger.String("ticker", sig.Ticker),
				applogger.String("reason", res.ReasonCode),
				applogger.String("detail", res.Detail),
			)
		}
	}()

	uctx, cancel := context.WithTimeout(ctx, e.cfg.UserTimeout)
	defer cancel()

	check, err := e.accounts.Validate(uctx, u, sig)
	if err != nil {
		return failedErr(u.ID, models.ResultAccountCheckFailed, err)
	}
	if !check.OK {
		return failed(u.ID, models.ResultAccountInvalid, check.Reason)
	}
	if u.MaxPositions > 0 && check.Balance.OpenPositions >= u.MaxPositions {
		return failed(u.ID, models.ResultPositionLimit,
			fmt.Sprintf("%d open positions, limit %d", check.Balance.OpenPositions, u.MaxPositions))
	}
	if check.Balance.Available.LessThan(u.TradeAmount) {
		return failed(u.ID, models.ResultInsufficientBalance,
			fmt.Sprintf("available %s below trade amount %s", check.Balance.Available, u.TradeAmount))
	}

	ok, err := e.ledger.Reserve(uctx, u.ID, sig.Ticker, e.cfg.ReserveTTL)
	if err != nil {
		return failedErr(u.ID, models.ResultLedgerUnavailable, err)
	}
	if !ok {
		return failed(u.ID, models.ResultTickerCooling, e.coolingDetail(uctx, u.ID, sig.Ticker))
	}
	reserved = true

	leverage := u.Leverage
	if leverage == 0 {
		leverage = e.cfg.DefaultLeverage
	}
	prot, err := e.protection.Compute(leverage, u.Overrides)
	if err != nil {
		return failedErr(u.ID, models.ResultProtectionInvalid, err)
	}

	order := &models.Order{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		SignalID:   sig.ID,
		Ticker:     sig.Ticker,
		Direction:  sig.DirectionHint,
		Amount:     u.TradeAmount,
		Leverage:   leverage,
		Protection: prot,
		Status:     models.OrderPending,
		CreatedAt:  e.now(),
	}
	if err := order.Validate(e.cfg.MinNotional); err != nil {
		return failedErr(u.ID, models.ResultOrderInvalid, err)
	}
	if err := e.orders.Create(uctx, order); err != nil {
		return failedErr(u.ID, models.ResultOrderStoreFailed, err)
	}

	if err := e.ledger.Commit(uctx, u.ID, sig.Ticker, e.cfg.LockTTL); err != nil {
		// The reservation still covers the pair until it expires.
		e.metrics.RecordError("ledger_commit")
		e.logger.Warn("ticker lock commit failed", applogger.String("user_id", u.ID), applogger.Error(err))
	}
	if err := e.history.RecordOutcome(uctx, models.SignalOutcome{
		Ticker:    sig.Ticker,
		Direction: sig.DirectionHint,
		Approved:  true,
		UserID:    u.ID,
		SignalID:  sig.ID,
		Timestamp: e.now(),
	}); err != nil {
		e.metrics.RecordError("history_record")
		e.logger.Warn("record user outcome failed", applogger.String("user_id", u.ID), applogger.Error(err))
	}

	return models.UserExecutionResult{
		UserID:     u.ID,
		Success:    true,
		OrderID:    order.ID,
		Protection: &prot,
	}
}

func (e *FanoutExecutor) release(userID, ticker string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.ledger.Release(ctx, userID, ticker); err != nil {
		e.metrics.RecordError("ledger_release")
		e.logger.Warn("ticker lock release failed", applogger.String("user_id", userID), applogger.Error(err))
	}
}

func (e *FanoutExecutor) coolingDetail(ctx context.Context, userID, ticker string) string {
	lock, err := e.ledger.Lookup(ctx, userID, ticker)
	if err != nil || lock == nil {
		return "ticker cooling down"
	}
	return fmt.Sprintf("ticker cooling down until %s", lock.ExpiresAt.UTC().Format(time.RFC3339))
}

// SortUsers orders by tier descending, then id ascending.
func SortUsers(users []models.UserProfile) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Tier != users[j].Tier {
			return users[i].Tier > users[j].Tier
		}
		return users[i].ID < users[j].ID
	})
}

func summarizeResults(results []models.UserExecutionResult) models.ExecutionSummary {
	s := models.ExecutionSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

func failed(userID, code, detail string) models.UserExecutionResult {
	return models.UserExecutionResult{UserID: userID, ReasonCode: code, Detail: detail}
}

func failedErr(userID, code string, err error) models.UserExecutionResult {
	if errors.Is(err, context.DeadlineExceeded) {
		code = models.ResultTimeout
	}
	return failed(userID, code, err.Error())
}
