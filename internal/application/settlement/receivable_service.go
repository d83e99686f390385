package settlement

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceivableService administers receivables outside of settlements
type ReceivableService struct {
	receivableRepo settlement.ReceivableRepository
	txScope        TransactionScope
	logger         *zap.Logger
}

// NewReceivableService creates a new ReceivableService
func NewReceivableService(receivableRepo settlement.ReceivableRepository, txScope TransactionScope, log *zap.Logger) *ReceivableService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReceivableService{receivableRepo: receivableRepo, txScope: txScope, logger: log}
}

// CreateReceivable registers a new unpaid receivable
func (s *ReceivableService) CreateReceivable(ctx context.Context, cmd CreateReceivableCommand) (*ReceivableResponse, error) {
	receivable, err := settlement.NewReceivable(cmd.CustomerID, cmd.ApplicationID, cmd.Description, cmd.TotalAmountDue)
	if err != nil {
		return nil, err
	}
	if err := s.receivableRepo.Create(ctx, receivable); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Receivable created",
		zap.String("receivable_id", receivable.ID.String()),
		zap.String("customer_id", receivable.CustomerID.String()),
		zap.String("total_amount_due", receivable.TotalAmountDue.StringFixed(2)),
	)
	return toReceivableResponse(receivable), nil
}

// GetReceivable returns one receivable
func (s *ReceivableService) GetReceivable(ctx context.Context, id uuid.UUID) (*ReceivableResponse, error) {
	receivable, err := s.receivableRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toReceivableResponse(receivable), nil
}

// CancelReceivable voids a receivable nothing has been paid on
func (s *ReceivableService) CancelReceivable(ctx context.Context, id uuid.UUID, reason string) (*ReceivableResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "cancel")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrReceivableID, id.String())

	var cancelled *settlement.Receivable
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		receivable, err := repos.ReceivableRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := receivable.Cancel(reason); err != nil {
			return err
		}
		cancelled = receivable
		return repos.ReceivableRepo().SaveWithLock(ctx, receivable)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Receivable cancelled",
		zap.String("receivable_id", id.String()),
		zap.String("reason", reason),
	)
	return toReceivableResponse(cancelled), nil
}

// RefundReceivable closes a receivable as REFUNDED and routes the paid amount
// back to the customer as credit, in one transaction.
func (s *ReceivableService) RefundReceivable(ctx context.Context, id uuid.UUID, reason string) (*RefundResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "refund")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrReceivableID, id.String())

	var (
		refunded   *settlement.Receivable
		amount     decimal.Decimal
		newBalance decimal.Decimal
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		receivable, err := repos.ReceivableRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		amount, err = receivable.Refund(reason)
		if err != nil {
			return err
		}
		if err := repos.ReceivableRepo().SaveWithLock(ctx, receivable); err != nil {
			return err
		}

		account, err := repos.CreditAccountRepo().FindByCustomerForUpdate(ctx, receivable.CustomerID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
			if account, err = settlement.NewCreditAccount(receivable.CustomerID); err != nil {
				return err
			}
		}
		if err := account.Credit(amount, nil, &receivable.ID, "Refund: "+reason); err != nil {
			return err
		}
		if err := repos.CreditAccountRepo().Save(ctx, account); err != nil {
			return err
		}
		refunded = receivable
		newBalance = account.CreditBalance
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Receivable refunded",
		zap.String("receivable_id", id.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("credit_balance", newBalance.StringFixed(2)),
	)
	return &RefundResult{
		Receivable:    toReceivableResponse(refunded),
		Refunded:      amount,
		CreditBalance: newBalance,
	}, nil
}
