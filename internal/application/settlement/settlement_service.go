package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	numberingapp "github.com/erp/settlement/internal/application/numbering"
	"github.com/erp/settlement/internal/application/retry"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settlement errors raised by the service
var (
	ErrSettlementInProgress = shared.NewConcurrencyError("SETTLEMENT_IN_PROGRESS",
		"A settlement with the same idempotency key is in progress", nil)
	ErrIdempotencyKeyMismatch = shared.NewValidationError("IDEMPOTENCY_KEY_MISMATCH",
		"Idempotency key was already used for a different request")
	ErrManualNumberTaken = shared.NewDomainError("MANUAL_NUMBER_TAKEN", "Document number is already used")
)

// DefaultGuardTTL bounds how long an in-flight key is held if the holder dies
const DefaultGuardTTL = 30 * time.Second

// NumberIssuer draws document numbers inside a settlement transaction
type NumberIssuer interface {
	IssueNextInScope(ctx context.Context, repos numberingapp.TransactionalRepositories, asOf time.Time) (*numberingapp.IssueResult, error)
	ReportIssued(ctx context.Context, result *numberingapp.IssueResult)
}

// Metrics records settlement activity
type Metrics interface {
	RecordSettlement(ctx context.Context, mode settlement.PaymentMode, total decimal.Decimal, replayed bool)
	RecordSettlementRejected(ctx context.Context, code string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSettlement(context.Context, settlement.PaymentMode, decimal.Decimal, bool) {}
func (nopMetrics) RecordSettlementRejected(context.Context, string)                                {}

type nopGuard struct{}

func (nopGuard) Acquire(context.Context, string, time.Duration) (string, bool, error) {
	return "", true, nil
}
func (nopGuard) Release(context.Context, string, string) error { return nil }

// SettlementService is the payment allocator
type SettlementService struct {
	receivableRepo  settlement.ReceivableRepository
	creditRepo      settlement.CreditAccountRepository
	transactionRepo settlement.TransactionRepository
	txScope         TransactionScope
	numbers         NumberIssuer
	banks           settlement.RecognizedBanks
	guard           InFlightGuard
	guardTTL        time.Duration
	logger          *zap.Logger
	metrics         Metrics
	retryPolicy     retry.Policy
	now             func() time.Time
}

// SettlementServiceOption is a functional option for configuring SettlementService
type SettlementServiceOption func(*SettlementService)

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) SettlementServiceOption {
	return func(s *SettlementService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) SettlementServiceOption {
	return func(s *SettlementService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithGuard sets the in-flight guard for idempotency keys
func WithGuard(g InFlightGuard, ttl time.Duration) SettlementServiceOption {
	return func(s *SettlementService) {
		if g != nil {
			s.guard = g
		}
		if ttl > 0 {
			s.guardTTL = ttl
		}
	}
}

// WithRetryPolicy sets the retry policy for concurrency conflicts
func WithRetryPolicy(p retry.Policy) SettlementServiceOption {
	return func(s *SettlementService) {
		s.retryPolicy = p
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) SettlementServiceOption {
	return func(s *SettlementService) {
		s.now = now
	}
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	receivableRepo settlement.ReceivableRepository,
	creditRepo settlement.CreditAccountRepository,
	transactionRepo settlement.TransactionRepository,
	txScope TransactionScope,
	numbers NumberIssuer,
	banks settlement.RecognizedBanks,
	opts ...SettlementServiceOption,
) *SettlementService {
	s := &SettlementService{
		receivableRepo:  receivableRepo,
		creditRepo:      creditRepo,
		transactionRepo: transactionRepo,
		txScope:         txScope,
		numbers:         numbers,
		banks:           banks,
		guard:           nopGuard{},
		guardTTL:        DefaultGuardTTL,
		logger:          zap.NewNop(),
		metrics:         nopMetrics{},
		retryPolicy:     retry.DefaultPolicy(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// settleOutcome is what a committed unit of work hands back for reporting
type settleOutcome struct {
	result *SettlementResult
	issued *numberingapp.IssueResult
	events []shared.DomainEvent
}

// Settle validates the request, allocates the funds across the selected
// receivables and records the transaction, all in one unit of work. The whole
// unit is retried on concurrency conflicts.
func (s *SettlementService) Settle(ctx context.Context, cmd SettleCommand) (*SettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, cmd.CustomerID.String(),
		telemetry.SpanAttrApplicationID, cmd.ApplicationID.String(),
	)

	if cmd.CustomerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if cmd.ApplicationID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_APPLICATION", "Application ID cannot be empty")
	}
	if cmd.AsOf.IsZero() {
		cmd.AsOf = s.now()
	}
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)

	var fingerprint string
	if cmd.IdempotencyKey != "" {
		telemetry.SetAttribute(span, telemetry.SpanAttrIdempotencyKey, cmd.IdempotencyKey)
		ctx = logger.WithIdempotencyKey(ctx, cmd.IdempotencyKey)
		fingerprint = RequestFingerprint(cmd)

		release, err := s.acquire(ctx, cmd.IdempotencyKey)
		if err != nil {
			telemetry.RecordError(span, err)
			s.metrics.RecordSettlementRejected(ctx, shared.CodeOf(err))
			return nil, err
		}
		defer release()
	}

	var outcome *settleOutcome
	err := retry.OnConflict(ctx, s.retryPolicy, s.logger, "settlement.settle", func(ctx context.Context) error {
		outcome = nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			o, err := s.settleInScope(ctx, repos, cmd, fingerprint)
			if err != nil {
				return err
			}
			outcome = o
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordSettlementRejected(ctx, shared.CodeOf(err))
		logger.WithLogger(ctx, s.logger).Info("Settlement rejected",
			zap.String("customer_id", cmd.CustomerID.String()),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return nil, err
	}

	result := outcome.result
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTransactionID, result.Transaction.ID.String(),
		telemetry.SpanAttrDocumentNumber, result.Transaction.DocumentNumber,
		telemetry.SpanAttrPaymentMode, string(result.Transaction.PaymentMode),
		telemetry.SpanAttrAmount, result.Transaction.TotalAmount.StringFixed(2),
		telemetry.SpanAttrReceivableCount, len(result.Transaction.Allocations),
	)
	s.report(ctx, outcome)
	return result, nil
}

// acquire takes the in-flight guard for key. A guard backend failure is logged
// and tolerated since the unique idempotency index still rejects duplicates.
func (s *SettlementService) acquire(ctx context.Context, key string) (func(), error) {
	gk := guardKey(key)
	token, ok, err := s.guard.Acquire(ctx, gk, s.guardTTL)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("In-flight guard unavailable",
			zap.String("idempotency_key", key), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrSettlementInProgress
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), gk, token); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to release in-flight guard",
				zap.String("idempotency_key", key), zap.Error(err))
		}
	}, nil
}

func (s *SettlementService) settleInScope(ctx context.Context, repos TransactionalRepositories, cmd SettleCommand, fingerprint string) (*settleOutcome, error) {
	if cmd.IdempotencyKey != "" {
		replay, err := s.replay(ctx, repos, cmd, fingerprint)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	ready, err := repos.Applications().IsReadyForCollection(ctx, cmd.CustomerID, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, settlement.ErrNotReadyForCollection
	}

	receivables, err := s.lockReceivables(ctx, repos, cmd)
	if err != nil {
		return nil, err
	}

	declared, err := settlement.ValidatePaymentMethods(cmd.PaymentMethods, s.banks, cmd.AsOf)
	if err != nil {
		return nil, err
	}

	settlement.SortForAllocation(receivables)
	outstanding := settlement.TotalOutstanding(receivables)

	var account *settlement.CreditAccount
	creditApplied := decimal.Zero
	if cmd.UseCreditBalance {
		account, err = s.lockCreditAccount(ctx, repos, cmd.CustomerID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			creditApplied = decimal.Min(account.CreditBalance, outstanding)
		}
	}

	plan, err := settlement.PlanAllocation(receivables, declared.Add(creditApplied))
	if err != nil {
		return nil, err
	}

	txn, err := settlement.NewTransaction(settlement.TransactionParams{
		CustomerID:     cmd.CustomerID,
		ApplicationID:  cmd.ApplicationID,
		Plan:           plan,
		DeclaredAmount: declared,
		CreditApplied:  creditApplied,
		Methods:        cmd.PaymentMethods,
		IdempotencyKey: cmd.IdempotencyKey,
		RequestHash:    fingerprint,
		Remark:         cmd.Remark,
		SettledAt:      s.now(),
	})
	if err != nil {
		return nil, err
	}

	if creditApplied.IsPositive() {
		if err := account.Debit(creditApplied, &txn.ID, "Applied to settlement"); err != nil {
			return nil, err
		}
	}

	byID := lo.KeyBy(receivables, func(r *settlement.Receivable) uuid.UUID { return r.ID })
	for _, line := range plan.TouchedLines() {
		r := byID[line.ReceivableID]
		if err := r.ApplyAllocation(line.Amount, txn.ID); err != nil {
			return nil, err
		}
		if err := repos.ReceivableRepo().SaveWithLock(ctx, r); err != nil {
			return nil, err
		}
	}

	if plan.Remainder.IsPositive() {
		if account == nil {
			if account, err = s.lockCreditAccount(ctx, repos, cmd.CustomerID); err != nil {
				return nil, err
			}
		}
		if account == nil {
			if account, err = settlement.NewCreditAccount(cmd.CustomerID); err != nil {
				return nil, err
			}
		}
		if err := account.Credit(plan.Remainder, &txn.ID, nil, "Overpayment credited"); err != nil {
			return nil, err
		}
	}

	// The series row is locked here, as late as possible. The transaction row
	// must exist before credit entries reference it.
	issued, err := s.assignNumber(ctx, repos, txn, cmd)
	if err != nil {
		return nil, err
	}
	if err := repos.TransactionRepo().Create(ctx, txn); err != nil {
		return nil, err
	}

	if account != nil && len(account.PendingEntries()) > 0 {
		if err := repos.CreditAccountRepo().Save(ctx, account); err != nil {
			return nil, err
		}
	}

	advanced, err := s.propagateStatus(ctx, repos, cmd)
	if err != nil {
		return nil, err
	}

	creditBalance := decimal.Zero
	if account != nil {
		creditBalance = account.CreditBalance
	}
	outcome := &settleOutcome{
		result: &SettlementResult{
			Transaction:         toTransactionResponse(txn),
			CreditApplied:       creditApplied,
			OverpaymentCredited: plan.Remainder,
			CreditBalance:       creditBalance,
			ApplicationAdvanced: advanced,
		},
		issued: issued,
	}
	if issued != nil {
		stats := issued.Statistics
		outcome.result.NumberStatistics = &stats
	}

	for _, r := range receivables {
		outcome.events = append(outcome.events, r.GetDomainEvents()...)
		r.ClearDomainEvents()
	}
	if account != nil {
		outcome.events = append(outcome.events, account.GetDomainEvents()...)
		account.ClearDomainEvents()
	}
	outcome.events = append(outcome.events, txn.GetDomainEvents()...)
	txn.ClearDomainEvents()
	return outcome, nil
}

// replay returns the outcome of an earlier settlement with the same key, or nil
// when the key is unused.
func (s *SettlementService) replay(ctx context.Context, repos TransactionalRepositories, cmd SettleCommand, fingerprint string) (*settleOutcome, error) {
	existing, err := repos.TransactionRepo().FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if existing.RequestHash != "" && existing.RequestHash != fingerprint {
		return nil, ErrIdempotencyKeyMismatch
	}

	balance := decimal.Zero
	account, err := repos.CreditAccountRepo().FindByCustomer(ctx, existing.CustomerID)
	switch {
	case err == nil:
		balance = account.CreditBalance
	case !shared.IsNotFound(err):
		return nil, err
	}

	return &settleOutcome{result: &SettlementResult{
		Transaction:         toTransactionResponse(existing),
		CreditApplied:       existing.CreditApplied,
		OverpaymentCredited: existing.OverpaymentCredited,
		CreditBalance:       balance,
		Replayed:            true,
	}}, nil
}

// lockReceivables locks the selected receivables, or every payable receivable
// of the customer billed to the application when none are selected. A
// receivable billed to another application is never settled here.
func (s *SettlementService) lockReceivables(ctx context.Context, repos TransactionalRepositories, cmd SettleCommand) ([]*settlement.Receivable, error) {
	if len(cmd.SelectedReceivableIDs) == 0 {
		receivables, err := repos.ReceivableRepo().FindPayableByCustomerForUpdate(ctx, cmd.CustomerID)
		if err != nil {
			return nil, err
		}
		receivables = lo.Filter(receivables, func(r *settlement.Receivable, _ int) bool {
			return billedTo(r, cmd.ApplicationID)
		})
		if len(receivables) == 0 {
			return nil, settlement.ErrNoReceivablesSelected
		}
		return receivables, nil
	}

	ids := lo.Uniq(cmd.SelectedReceivableIDs)
	receivables, err := repos.ReceivableRepo().FindByIDsForUpdate(ctx, cmd.CustomerID, ids)
	if err != nil {
		return nil, err
	}
	if len(receivables) != len(ids) {
		found := lo.Map(receivables, func(r *settlement.Receivable, _ int) uuid.UUID { return r.ID })
		missing, _ := lo.Difference(ids, found)
		return nil, &shared.DomainError{
			Kind:    shared.KindNotFound,
			Code:    settlement.ErrReceivableNotFound.Code,
			Message: fmt.Sprintf("Receivable %s not found for customer", missing[0]),
		}
	}
	for _, r := range receivables {
		if !billedTo(r, cmd.ApplicationID) {
			return nil, shared.NewDomainError(settlement.ErrReceivableApplicationMismatch.Code,
				fmt.Sprintf("Receivable %s belongs to application %s", r.ID, r.ApplicationID))
		}
		if !r.Status.CanApplyPayment() {
			return nil, shared.NewDomainError("RECEIVABLE_NOT_PAYABLE",
				fmt.Sprintf("Receivable %s is %s", r.ID, r.Status))
		}
	}
	return receivables, nil
}

// billedTo reports whether r may be settled under applicationID. Receivables
// raised without an application belong to whichever application collects them.
func billedTo(r *settlement.Receivable, applicationID uuid.UUID) bool {
	return r.ApplicationID == uuid.Nil || r.ApplicationID == applicationID
}

// lockCreditAccount returns the customer's locked account, or nil when none exists
func (s *SettlementService) lockCreditAccount(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID) (*settlement.CreditAccount, error) {
	account, err := repos.CreditAccountRepo().FindByCustomerForUpdate(ctx, customerID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

func (s *SettlementService) assignNumber(ctx context.Context, repos TransactionalRepositories, txn *settlement.Transaction, cmd SettleCommand) (*numberingapp.IssueResult, error) {
	if manual := strings.TrimSpace(cmd.ManualDocumentNumber); manual != "" {
		used, err := repos.TransactionRepo().ExistsByDocumentNumber(ctx, manual, nil)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, ErrManualNumberTaken
		}
		return nil, txn.AssignManualNumber(manual)
	}

	issued, err := s.numbers.IssueNextInScope(ctx, repos, cmd.AsOf)
	if err != nil {
		return nil, err
	}
	txn.AssignIssuedNumber(issued.Issued)
	return issued, nil
}

// propagateStatus advances the application once the customer owes nothing
func (s *SettlementService) propagateStatus(ctx context.Context, repos TransactionalRepositories, cmd SettleCommand) (bool, error) {
	unpaid, err := repos.ReceivableRepo().CountUnpaidByCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return false, err
	}
	if unpaid > 0 {
		return false, nil
	}
	if err := repos.Applications().AdvanceAfterSettlement(ctx, cmd.CustomerID, cmd.ApplicationID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SettlementService) report(ctx context.Context, o *settleOutcome) {
	result := o.result
	s.metrics.RecordSettlement(ctx, result.Transaction.PaymentMode, result.Transaction.TotalAmount, result.Replayed)
	if result.Replayed {
		logger.WithLogger(ctx, s.logger).Info("Settlement replayed",
			zap.String("transaction_id", result.Transaction.ID.String()),
			zap.String("idempotency_key", result.Transaction.IdempotencyKey),
		)
		return
	}
	s.numbers.ReportIssued(ctx, o.issued)
	s.publish(ctx, o.events)
}

func (s *SettlementService) publish(ctx context.Context, events []shared.DomainEvent) {
	log := logger.WithLogger(ctx, s.logger)
	for _, ev := range events {
		switch e := ev.(type) {
		case *settlement.SettlementCompletedEvent:
			log.Info("Settlement completed",
				zap.String("transaction_id", e.TransactionID.String()),
				zap.String("document_number", e.DocumentNumber),
				zap.String("customer_id", e.CustomerID.String()),
				zap.String("total_amount", e.TotalAmount.StringFixed(2)),
				zap.String("payment_mode", string(e.PaymentMode)),
			)
		case *settlement.CreditAddedEvent:
			log.Info("Customer credit added",
				zap.String("customer_id", e.CustomerID.String()),
				zap.String("amount", e.Amount.StringFixed(2)),
				zap.String("balance_after", e.BalanceAfter.StringFixed(2)),
			)
		case *settlement.CreditConsumedEvent:
			log.Info("Customer credit consumed",
				zap.String("customer_id", e.CustomerID.String()),
				zap.String("amount", e.Amount.StringFixed(2)),
				zap.String("balance_after", e.BalanceAfter.StringFixed(2)),
			)
		case *settlement.ReceivableSettledEvent:
			log.Debug("Receivable settled",
				zap.String("receivable_id", e.ReceivableID.String()),
				zap.String("transaction_id", e.TransactionID.String()),
			)
		}
	}
}

// GetTransaction returns one settlement transaction
func (s *SettlementService) GetTransaction(ctx context.Context, id uuid.UUID) (*TransactionResponse, error) {
	txn, err := s.transactionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTransactionResponse(txn), nil
}

// ListTransactionsByCustomer returns a page of a customer's settlements, newest first
func (s *SettlementService) ListTransactionsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]TransactionResponse, int64, error) {
	items, total, err := s.transactionRepo.FindByCustomer(ctx, customerID, filter)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(items, func(t settlement.Transaction, _ int) TransactionResponse {
		return *toTransactionResponse(&t)
	}), total, nil
}

// GetCreditBalance returns the customer's stored credit. A customer without an
// account has a zero balance.
func (s *SettlementService) GetCreditBalance(ctx context.Context, customerID uuid.UUID) (*CreditBalanceResponse, error) {
	account, err := s.creditRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		if shared.IsNotFound(err) {
			return &CreditBalanceResponse{CustomerID: customerID, CreditBalance: decimal.Zero}, nil
		}
		return nil, err
	}
	return &CreditBalanceResponse{CustomerID: customerID, CreditBalance: account.CreditBalance}, nil
}

// ListCreditEntries returns a page of the customer's credit ledger
func (s *SettlementService) ListCreditEntries(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]CreditEntryResponse, int64, error) {
	entries, total, err := s.creditRepo.FindEntries(ctx, customerID, filter)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(entries, func(e settlement.CreditEntry, _ int) CreditEntryResponse {
		return toCreditEntryResponse(e)
	}), total, nil
}

// ListReceivables returns a page of the customer's receivables
func (s *SettlementService) ListReceivables(ctx context.Context, customerID uuid.UUID, filter settlement.ReceivableFilter) ([]ReceivableResponse, int64, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, shared.NewValidationError("INVALID_STATUS", "Unknown receivable status")
	}
	items, total, err := s.receivableRepo.FindByCustomer(ctx, customerID, filter)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(items, func(r settlement.Receivable, _ int) ReceivableResponse {
		return *toReceivableResponse(&r)
	}), total, nil
}
