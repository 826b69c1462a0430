package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// MemoryOrderStore keeps orders in process. Used by the memory backend and tests.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*models.Order)}
}

func (s *MemoryOrderStore) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return errs.Conflict("order_exists", "order %s already exists", o.ID)
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound(id)
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryOrderStore) Activate(_ context.Context, id string, entryPrice decimal.Decimal, at time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.transition(id, models.OrderActive)
	if err != nil {
		return nil, err
	}
	o.EntryPrice = entryPrice
	o.ActivatedAt = &at
	cp := *o
	return &cp, nil
}

func (s *MemoryOrderStore) Close(_ context.Context, id string, closePrice decimal.Decimal, reason models.CloseReason, pnl decimal.Decimal, at time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.transition(id, models.OrderClosed)
	if err != nil {
		return nil, err
	}
	o.ClosePrice = &closePrice
	o.CloseReason = reason
	o.PnL = &pnl
	o.ClosedAt = &at
	cp := *o
	return &cp, nil
}

func (s *MemoryOrderStore) Fail(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.transition(id, models.OrderFailed)
	if err != nil {
		return err
	}
	o.ClosedAt = &at
	return nil
}

// List returns all orders sorted by creation time. Intended for tests.
func (s *MemoryOrderStore) List() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// transition requires s.mu held.
func (s *MemoryOrderStore) transition(id string, to models.OrderStatus) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound(id)
	}
	if !models.CanTransition(o.Status, to) {
		return nil, errs.Conflict("order_transition_invalid", "order %s is %s, cannot move to %s", id, o.Status, to)
	}
	o.Status = to
	return o, nil
}

// ErrOrderNotFound is returned by every OrderStore for unknown ids.
func ErrOrderNotFound(id string) error {
	return errs.Validation("order_not_found", "order %s not found", id)
}

// MemoryUserDirectory serves a fixed user list. Users without a positive
// trade amount are never eligible.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users []models.UserProfile
}

func NewMemoryUserDirectory(users ...models.UserProfile) *MemoryUserDirectory {
	return &MemoryUserDirectory{users: users}
}

// Replace swaps the user list.
func (d *MemoryUserDirectory) Replace(users []models.UserProfile) {
	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
}

func (d *MemoryUserDirectory) ListEligible(_ context.Context) ([]models.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.UserProfile, 0, len(d.users))
	for _, u := range d.users {
		if u.TradeAmount.IsPositive() {
			out = append(out, u)
		}
	}
	return out, nil
}

// MemoryHistoryStore keeps the most recent outcomes per ticker. Signal-level
// and per-user outcomes are capped separately so a wide fan-out cannot evict
// the signal history the decision engine reads.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	perAsset int
	signals  map[string][]models.SignalOutcome
	users    map[string][]models.SignalOutcome
}

// NewMemoryHistoryStore retains up to perAsset outcomes of each kind per
// ticker (default 100).
func NewMemoryHistoryStore(perAsset int) *MemoryHistoryStore {
	if perAsset <= 0 {
		perAsset = 100
	}
	return &MemoryHistoryStore{
		perAsset: perAsset,
		signals:  make(map[string][]models.SignalOutcome),
		users:    make(map[string][]models.SignalOutcome),
	}
}

func (s *MemoryHistoryStore) RecordOutcome(_ context.Context, o models.SignalOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.signals
	if o.UserID != "" {
		bucket = s.users
	}
	list := append(bucket[o.Ticker], o)
	if len(list) > s.perAsset {
		list = list[len(list)-s.perAsset:]
	}
	bucket[o.Ticker] = list
	return nil
}

// QueryRecent returns signal-level outcomes only, newest first.
func (s *MemoryHistoryStore) QueryRecent(_ context.Context, ticker string, limit int) ([]models.SignalOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.signals[ticker]
	out := make([]models.SignalOutcome, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// All returns every stored outcome for ticker: signal-level oldest first,
// then per-user oldest first.
func (s *MemoryHistoryStore) All(ticker string) []models.SignalOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SignalOutcome, 0, len(s.signals[ticker])+len(s.users[ticker]))
	out = append(out, s.signals[ticker]...)
	return append(out, s.users[ticker]...)
}

var (
	_ domrepo.OrderStore         = (*MemoryOrderStore)(nil)
	_ domrepo.UserDirectory      = (*MemoryUserDirectory)(nil)
	_ domrepo.SignalHistoryStore = (*MemoryHistoryStore)(nil)
)
