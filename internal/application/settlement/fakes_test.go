package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory stand-in for the database. Entities are copied in
// and out so the service only sees what it saved.
type memStore struct {
	mu           sync.Mutex
	receivables  map[uuid.UUID]settlement.Receivable
	accounts     map[uuid.UUID]settlement.CreditAccount
	entries      []settlement.CreditEntry
	transactions map[uuid.UUID]settlement.Transaction
	series       *numbering.Series
	applications *MockApplicationGateway

	// failCreate makes TransactionRepo().Create fail, to exercise rollback paths
	failCreate error
}

func newMemStore() *memStore {
	return &memStore{
		receivables:  make(map[uuid.UUID]settlement.Receivable),
		accounts:     make(map[uuid.UUID]settlement.CreditAccount),
		transactions: make(map[uuid.UUID]settlement.Transaction),
		applications: new(MockApplicationGateway),
	}
}

// snapshot copies the store so a failed unit of work can be rolled back
func (s *memStore) snapshot() func() {
	receivables := make(map[uuid.UUID]settlement.Receivable, len(s.receivables))
	for k, v := range s.receivables {
		receivables[k] = v
	}
	accounts := make(map[uuid.UUID]settlement.CreditAccount, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	transactions := make(map[uuid.UUID]settlement.Transaction, len(s.transactions))
	for k, v := range s.transactions {
		transactions[k] = v
	}
	entries := append([]settlement.CreditEntry(nil), s.entries...)
	var series *numbering.Series
	if s.series != nil {
		c := *s.series
		series = &c
	}
	return func() {
		s.receivables = receivables
		s.accounts = accounts
		s.transactions = transactions
		s.entries = entries
		s.series = series
	}
}

// Execute serializes units of work and rolls back on error
func (s *memStore) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.snapshot()
	if err := fn(s); err != nil {
		restore()
		return err
	}
	return nil
}

func (s *memStore) SeriesRepo() numbering.SeriesRepository                { return memSeriesRepo{s} }
func (s *memStore) ReceivableRepo() settlement.ReceivableRepository       { return memReceivableRepo{s} }
func (s *memStore) CreditAccountRepo() settlement.CreditAccountRepository { return memCreditRepo{s} }
func (s *memStore) TransactionRepo() settlement.TransactionRepository     { return memTransactionRepo{s} }
func (s *memStore) Applications() settlement.ApplicationGateway           { return s.applications }

func (s *memStore) addReceivable(r *settlement.Receivable) {
	c := *r
	c.ClearDomainEvents()
	s.receivables[r.ID] = c
}

func (s *memStore) receivable(id uuid.UUID) settlement.Receivable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivables[id]
}

func (s *memStore) addCredit(customerID uuid.UUID, amount string) {
	a, _ := settlement.NewCreditAccount(customerID)
	_ = a.Credit(dec(amount), nil, nil, "opening balance")
	a.ClearPendingEntries()
	a.ClearDomainEvents()
	a.MarkPersisted()
	s.accounts[customerID] = *a
}

func (s *memStore) creditBalance(customerID uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[customerID]
	if !ok {
		return "none"
	}
	return a.CreditBalance.StringFixed(2)
}

type memReceivableRepo struct{ s *memStore }

func (r memReceivableRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Receivable, error) {
	v, ok := r.s.receivables[id]
	if !ok {
		return nil, settlement.ErrReceivableNotFound
	}
	return &v, nil
}

func (r memReceivableRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*settlement.Receivable, error) {
	return r.FindByID(ctx, id)
}

func (r memReceivableRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, filter settlement.ReceivableFilter) ([]settlement.Receivable, int64, error) {
	var out []settlement.Receivable
	for _, v := range r.s.receivables {
		if v.CustomerID == customerID && (filter.Status == nil || v.Status == *filter.Status) {
			out = append(out, v)
		}
	}
	return out, int64(len(out)), nil
}

func (r memReceivableRepo) sorted(match func(settlement.Receivable) bool) []*settlement.Receivable {
	var out []*settlement.Receivable
	for _, v := range r.s.receivables {
		if match(v) {
			c := v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r memReceivableRepo) FindByIDsForUpdate(_ context.Context, customerID uuid.UUID, ids []uuid.UUID) ([]*settlement.Receivable, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.sorted(func(v settlement.Receivable) bool { return want[v.ID] && v.CustomerID == customerID }), nil
}

func (r memReceivableRepo) FindPayableByCustomerForUpdate(_ context.Context, customerID uuid.UUID) ([]*settlement.Receivable, error) {
	return r.sorted(func(v settlement.Receivable) bool {
		return v.CustomerID == customerID && v.Status.CanApplyPayment()
	}), nil
}

func (r memReceivableRepo) CountUnpaidByCustomer(_ context.Context, customerID uuid.UUID) (int64, error) {
	var n int64
	for _, v := range r.s.receivables {
		if v.CustomerID == customerID && v.Status.CanApplyPayment() {
			n++
		}
	}
	return n, nil
}

func (r memReceivableRepo) Create(_ context.Context, receivable *settlement.Receivable) error {
	r.s.addReceivable(receivable)
	return nil
}

func (r memReceivableRepo) SaveWithLock(_ context.Context, receivable *settlement.Receivable) error {
	stored, ok := r.s.receivables[receivable.ID]
	if !ok {
		return settlement.ErrReceivableNotFound
	}
	if stored.Version != receivable.Version {
		return shared.ErrConcurrencyConflict
	}
	receivable.IncrementVersion()
	r.s.addReceivable(receivable)
	return nil
}

type memCreditRepo struct{ s *memStore }

func (r memCreditRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) (*settlement.CreditAccount, error) {
	a, ok := r.s.accounts[customerID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (r memCreditRepo) FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*settlement.CreditAccount, error) {
	return r.FindByCustomer(ctx, customerID)
}

func (r memCreditRepo) Save(_ context.Context, account *settlement.CreditAccount) error {
	stored, exists := r.s.accounts[account.CustomerID]
	if account.IsNew() {
		if exists {
			return shared.ErrConcurrencyConflict
		}
		account.MarkPersisted()
	} else {
		if !exists || stored.Version != account.Version {
			return shared.ErrConcurrencyConflict
		}
		account.IncrementVersion()
	}
	r.s.entries = append(r.s.entries, account.PendingEntries()...)
	account.ClearPendingEntries()
	c := *account
	c.ClearDomainEvents()
	r.s.accounts[account.CustomerID] = c
	return nil
}

func (r memCreditRepo) FindEntries(_ context.Context, customerID uuid.UUID, _ shared.Filter) ([]settlement.CreditEntry, int64, error) {
	var out []settlement.CreditEntry
	for _, e := range r.s.entries {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

type memTransactionRepo struct{ s *memStore }

func (r memTransactionRepo) Create(_ context.Context, txn *settlement.Transaction) error {
	if r.s.failCreate != nil {
		return r.s.failCreate
	}
	for _, t := range r.s.transactions {
		if t.DocumentNumber == txn.DocumentNumber || (txn.IdempotencyKey != "" && t.IdempotencyKey == txn.IdempotencyKey) {
			return shared.NewConcurrencyError("UNIQUE_VIOLATION", "duplicate", nil)
		}
	}
	c := *txn
	c.ClearDomainEvents()
	r.s.transactions[txn.ID] = c
	return nil
}

func (r memTransactionRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r memTransactionRepo) FindByIdempotencyKey(_ context.Context, key string) (*settlement.Transaction, error) {
	for _, t := range r.s.transactions {
		if t.IdempotencyKey == key {
			c := t
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r memTransactionRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, _ shared.Filter) ([]settlement.Transaction, int64, error) {
	var out []settlement.Transaction
	for _, t := range r.s.transactions {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (r memTransactionRepo) ExistsByDocumentNumber(_ context.Context, number string, excludeID *uuid.UUID) (bool, error) {
	for _, t := range r.s.transactions {
		if t.DocumentNumber == number && (excludeID == nil || t.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

type memSeriesRepo struct{ s *memStore }

func (r memSeriesRepo) FindByID(_ context.Context, id uuid.UUID) (*numbering.Series, error) {
	if r.s.series == nil || r.s.series.ID != id {
		return nil, numbering.ErrSeriesNotFound
	}
	c := *r.s.series
	return &c, nil
}

func (r memSeriesRepo) FindAll(_ context.Context, _ shared.Filter) ([]numbering.Series, int64, error) {
	if r.s.series == nil {
		return nil, 0, nil
	}
	return []numbering.Series{*r.s.series}, 1, nil
}

func (r memSeriesRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	return r.FindByID(ctx, id)
}

func (r memSeriesRepo) FindActiveForUpdate(_ context.Context, asOf time.Time) (*numbering.Series, error) {
	if r.s.series == nil || !r.s.series.IsActive || !r.s.series.IsEffectiveAt(asOf) {
		return nil, numbering.ErrNoActiveSeries
	}
	c := *r.s.series
	return &c, nil
}

func (r memSeriesRepo) Create(_ context.Context, series *numbering.Series) error {
	c := *series
	r.s.series = &c
	return nil
}

func (r memSeriesRepo) SaveWithLock(_ context.Context, series *numbering.Series) error {
	if r.s.series == nil || r.s.series.Version != series.Version {
		return shared.ErrConcurrencyConflict
	}
	series.IncrementVersion()
	c := *series
	c.ClearDomainEvents()
	r.s.series = &c
	return nil
}

func (r memSeriesRepo) DeactivateAllExcept(_ context.Context, id uuid.UUID) error {
	if r.s.series != nil && r.s.series.ID != id {
		r.s.series.Deactivate()
	}
	return nil
}

// MockApplicationGateway is a mock implementation of settlement.ApplicationGateway
type MockApplicationGateway struct {
	mock.Mock
}

func (m *MockApplicationGateway) IsReadyForCollection(ctx context.Context, customerID, applicationID uuid.UUID) (bool, error) {
	args := m.Called(ctx, customerID, applicationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockApplicationGateway) AdvanceAfterSettlement(ctx context.Context, customerID, applicationID uuid.UUID) error {
	return m.Called(ctx, customerID, applicationID).Error(0)
}

// MockGuard is a mock implementation of InFlightGuard
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockGuard) Release(ctx context.Context, key, token string) error {
	return m.Called(ctx, key, token).Error(0)
}

// MockMetrics records settlement metric calls
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSettlement(ctx context.Context, mode settlement.PaymentMode, total decimal.Decimal, replayed bool) {
	m.Called(ctx, mode, total, replayed)
}

func (m *MockMetrics) RecordSettlementRejected(ctx context.Context, code string) {
	m.Called(ctx, code)
}
