package numbering

import (
	"context"
	"strings"
	"time"

	"github.com/erp/settlement/internal/application/retry"
	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DocumentNumberLookup answers whether a document number is already used by a settlement
type DocumentNumberLookup interface {
	ExistsByDocumentNumber(ctx context.Context, number string, excludeID *uuid.UUID) (bool, error)
}

// Metrics records numbering activity
type Metrics interface {
	RecordNumberIssued(ctx context.Context, seriesID uuid.UUID, nearLimit bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordNumberIssued(context.Context, uuid.UUID, bool) {}

// SeriesService is the series registry and the sequence generator
type SeriesService struct {
	seriesRepo       numbering.SeriesRepository
	txScope          TransactionScope
	documents        DocumentNumberLookup
	logger           *zap.Logger
	metrics          Metrics
	retryPolicy      retry.Policy
	unboundedWidth   int
	nearLimitPercent int
	now              func() time.Time
}

// SeriesServiceOption is a functional option for configuring SeriesService
type SeriesServiceOption func(*SeriesService)

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) SeriesServiceOption {
	return func(s *SeriesService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) SeriesServiceOption {
	return func(s *SeriesService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRetryPolicy sets the retry policy for issuance conflicts
func WithRetryPolicy(p retry.Policy) SeriesServiceOption {
	return func(s *SeriesService) {
		s.retryPolicy = p
	}
}

// WithRendering sets the pad width for unbounded series and the near-limit threshold
func WithRendering(unboundedWidth, nearLimitPercent int) SeriesServiceOption {
	return func(s *SeriesService) {
		if unboundedWidth > 0 {
			s.unboundedWidth = unboundedWidth
		}
		if nearLimitPercent > 0 {
			s.nearLimitPercent = nearLimitPercent
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) SeriesServiceOption {
	return func(s *SeriesService) {
		s.now = now
	}
}

// NewSeriesService creates a new SeriesService
func NewSeriesService(
	seriesRepo numbering.SeriesRepository,
	txScope TransactionScope,
	documents DocumentNumberLookup,
	opts ...SeriesServiceOption,
) *SeriesService {
	s := &SeriesService{
		seriesRepo:       seriesRepo,
		txScope:          txScope,
		documents:        documents,
		logger:           zap.NewNop(),
		metrics:          nopMetrics{},
		retryPolicy:      retry.DefaultPolicy(),
		unboundedWidth:   numbering.DefaultUnboundedWidth,
		nearLimitPercent: numbering.DefaultNearLimitPercent,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NearLimitPercent returns the configured near-limit threshold
func (s *SeriesService) NearLimitPercent() int {
	return s.nearLimitPercent
}

// CreateSeries registers a new series. An active series deactivates all others
// in the same transaction.
func (s *SeriesService) CreateSeries(ctx context.Context, cmd CreateSeriesCommand) (*SeriesResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering_series", "create")
	defer span.End()

	series, err := numbering.NewSeries(cmd.Name, cmd.FormatTemplate, cmd.StartNumber, cmd.EndNumber, cmd.EffectiveFrom, cmd.EffectiveTo)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if cmd.IsActive {
			if err := repos.SeriesRepo().DeactivateAllExcept(ctx, series.ID); err != nil {
				return err
			}
			series.Activate()
		}
		return repos.SeriesRepo().Create(ctx, series)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, series.GetDomainEvents())
	series.ClearDomainEvents()
	logger.WithLogger(ctx, s.logger).Info("Numbering series created",
		zap.String("series_id", series.ID.String()),
		zap.String("name", series.Name),
		zap.Bool("active", series.IsActive),
	)
	return toSeriesResponse(series), nil
}

// UpdateSeries changes the configuration of an existing series
func (s *SeriesService) UpdateSeries(ctx context.Context, id uuid.UUID, cmd UpdateSeriesCommand) (*SeriesResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering_series", "update")
	defer span.End()

	var updated *numbering.Series
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		series, err := repos.SeriesRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := series.Update(cmd.Name, cmd.FormatTemplate, cmd.StartNumber, cmd.EndNumber, cmd.EffectiveFrom, cmd.EffectiveTo); err != nil {
			return err
		}
		updated = series
		return repos.SeriesRepo().SaveWithLock(ctx, series)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return toSeriesResponse(updated), nil
}

// ActivateSeries makes id the only active series: deactivate-all, then activate-one,
// inside one transaction.
func (s *SeriesService) ActivateSeries(ctx context.Context, id uuid.UUID) (*SeriesResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering_series", "activate")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrSeriesID, id.String())

	var activated *numbering.Series
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		series, err := repos.SeriesRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.SeriesRepo().DeactivateAllExcept(ctx, series.ID); err != nil {
			return err
		}
		series.Activate()
		activated = series
		return repos.SeriesRepo().SaveWithLock(ctx, series)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, activated.GetDomainEvents())
	activated.ClearDomainEvents()
	return toSeriesResponse(activated), nil
}

// DeactivateSeries clears the active flag. No other series becomes active.
func (s *SeriesService) DeactivateSeries(ctx context.Context, id uuid.UUID) (*SeriesResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering_series", "deactivate")
	defer span.End()

	var deactivated *numbering.Series
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		series, err := repos.SeriesRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		series.Deactivate()
		deactivated = series
		return repos.SeriesRepo().SaveWithLock(ctx, series)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.WithLogger(ctx, s.logger).Info("Numbering series deactivated", zap.String("series_id", id.String()))
	return toSeriesResponse(deactivated), nil
}

// GetSeries returns one series
func (s *SeriesService) GetSeries(ctx context.Context, id uuid.UUID) (*SeriesResponse, error) {
	series, err := s.seriesRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSeriesResponse(series), nil
}

// ListSeries returns a page of series
func (s *SeriesService) ListSeries(ctx context.Context, filter shared.Filter) ([]SeriesResponse, int64, error) {
	items, total, err := s.seriesRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(items, func(item numbering.Series, _ int) SeriesResponse {
		return *toSeriesResponse(&item)
	}), total, nil
}

// Statistics reports usage of a series. It never mutates state.
func (s *SeriesService) Statistics(ctx context.Context, id uuid.UUID) (*numbering.Statistics, error) {
	series, err := s.seriesRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := series.Statistics(s.nearLimitPercent)
	return &stats, nil
}

// IssueNext reserves and renders the next number of the series active at asOf
// in its own short transaction. A zero asOf means now.
func (s *SeriesService) IssueNext(ctx context.Context, asOf time.Time) (*IssueResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering_series", "issue_next")
	defer span.End()

	if asOf.IsZero() {
		asOf = s.now()
	}

	var result *IssueResult
	err := retry.OnConflict(ctx, s.retryPolicy, s.logger, "numbering.issue_next", func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := s.IssueNextInScope(ctx, repos, asOf)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSeriesID, result.Issued.SeriesID.String(),
		telemetry.SpanAttrDocumentNumber, result.Issued.Formatted,
		telemetry.SpanAttrNumericValue, result.Issued.NumericValue,
	)
	s.ReportIssued(ctx, result)
	return result, nil
}

// IssueNextInScope issues a number inside a transaction owned by the caller.
// The series row stays locked until that transaction ends, so callers should
// invoke it as late as possible. Call ReportIssued after the commit.
func (s *SeriesService) IssueNextInScope(ctx context.Context, repos TransactionalRepositories, asOf time.Time) (*IssueResult, error) {
	series, err := repos.SeriesRepo().FindActiveForUpdate(ctx, asOf)
	if err != nil {
		return nil, err
	}

	issued, stats, err := series.Issue(asOf, s.unboundedWidth, s.nearLimitPercent)
	if err != nil {
		return nil, err
	}
	if err := repos.SeriesRepo().SaveWithLock(ctx, series); err != nil {
		return nil, err
	}

	events := series.GetDomainEvents()
	series.ClearDomainEvents()
	return &IssueResult{Issued: issued, Statistics: stats, Events: events}, nil
}

// ReportIssued logs and records a committed issuance
func (s *SeriesService) ReportIssued(ctx context.Context, result *IssueResult) {
	if result == nil {
		return
	}
	s.metrics.RecordNumberIssued(ctx, result.Issued.SeriesID, result.Statistics.NearLimit)
	s.publish(ctx, result.Events)
}

// ValidateManualNumber reports whether candidate is free, ignoring excludeID when set
func (s *SeriesService) ValidateManualNumber(ctx context.Context, candidate string, excludeID *uuid.UUID) (*ManualNumberResult, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	used, err := s.documents.ExistsByDocumentNumber(ctx, candidate, excludeID)
	if err != nil {
		return nil, err
	}
	return &ManualNumberResult{Number: candidate, Available: !used}, nil
}

func (s *SeriesService) publish(ctx context.Context, events []shared.DomainEvent) {
	log := logger.WithLogger(ctx, s.logger)
	for _, ev := range events {
		fields := []zap.Field{zap.String("series_id", ev.AggregateID().String())}
		switch e := ev.(type) {
		case *numbering.SeriesNearLimitEvent:
			log.Warn("Numbering series is near its limit", append(fields,
				zap.String("usage_percent", e.UsagePercent.StringFixed(2)),
				zap.Int64("remaining", e.Remaining),
			)...)
		case *numbering.NumberIssuedEvent:
			log.Info("Document number issued", append(fields,
				zap.String("document_number", e.Formatted),
				zap.Int64("numeric_value", e.NumericValue),
			)...)
		case *numbering.SeriesActivatedEvent:
			log.Info("Numbering series activated", append(fields, zap.String("name", e.Name))...)
		}
	}
}
