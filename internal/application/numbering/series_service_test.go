package numbering

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSeriesRepository is a mock implementation of numbering.SeriesRepository
type MockSeriesRepository struct {
	mock.Mock
}

func (m *MockSeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*numbering.Series), args.Error(1)
}

func (m *MockSeriesRepository) FindAll(ctx context.Context, filter shared.Filter) ([]numbering.Series, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]numbering.Series), args.Get(1).(int64), args.Error(2)
}

func (m *MockSeriesRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*numbering.Series), args.Error(1)
}

func (m *MockSeriesRepository) FindActiveForUpdate(ctx context.Context, asOf time.Time) (*numbering.Series, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*numbering.Series), args.Error(1)
}

func (m *MockSeriesRepository) Create(ctx context.Context, series *numbering.Series) error {
	return m.Called(ctx, series).Error(0)
}

func (m *MockSeriesRepository) SaveWithLock(ctx context.Context, series *numbering.Series) error {
	return m.Called(ctx, series).Error(0)
}

func (m *MockSeriesRepository) DeactivateAllExcept(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockDocumentNumberLookup is a mock implementation of DocumentNumberLookup
type MockDocumentNumberLookup struct {
	mock.Mock
}

func (m *MockDocumentNumberLookup) ExistsByDocumentNumber(ctx context.Context, number string, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, number, excludeID)
	return args.Bool(0), args.Error(1)
}

// MockMetrics records issuance calls
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordNumberIssued(ctx context.Context, seriesID uuid.UUID, nearLimit bool) {
	m.Called(ctx, seriesID, nearLimit)
}

var (
	testNow  = time.Date(2025, time.October, 15, 10, 0, 0, 0, time.UTC)
	testFrom = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func int64Ptr(v int64) *int64 { return &v }

func newTestService(repo *MockSeriesRepository, docs *MockDocumentNumberLookup, opts ...SeriesServiceOption) *SeriesService {
	opts = append([]SeriesServiceOption{WithClock(func() time.Time { return testNow })}, opts...)
	return NewSeriesService(repo, NewNoOpTransactionScope(repo), docs, opts...)
}

func newSeries(t *testing.T, start int64, end *int64, active bool) *numbering.Series {
	t.Helper()
	s, err := numbering.NewSeries("OR", "OR-{YEAR}{MONTH}-{NUMBER:6}", start, end, testFrom, nil)
	require.NoError(t, err)
	if active {
		s.Activate()
		s.ClearDomainEvents()
	}
	return s
}

func TestSeriesService_CreateSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("active series deactivates the others first", func(t *testing.T) {
		repo := new(MockSeriesRepository)
		var order []string
		repo.On("DeactivateAllExcept", mock.Anything, mock.Anything).Run(func(mock.Arguments) { order = append(order, "deactivate") }).Return(nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(s *numbering.Series) bool { return s.IsActive })).
			Run(func(mock.Arguments) { order = append(order, "create") }).Return(nil)

		svc := newTestService(repo, nil)
		resp, err := svc.CreateSeries(ctx, CreateSeriesCommand{
			Name: "OR 2025", FormatTemplate: "OR-{NUMBER}", StartNumber: 1, EndNumber: int64Ptr(999),
			EffectiveFrom: testFrom, IsActive: true,
		})
		require.NoError(t, err)
		assert.True(t, resp.IsActive)
		assert.Equal(t, []string{"deactivate", "create"}, order)
		repo.AssertExpectations(t)
	})

	t.Run("inactive series leaves others alone", func(t *testing.T) {
		repo := new(MockSeriesRepository)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		svc := newTestService(repo, nil)
		resp, err := svc.CreateSeries(ctx, CreateSeriesCommand{
			Name: "OR 2026", FormatTemplate: "{NUMBER}", StartNumber: 1, EffectiveFrom: testFrom,
		})
		require.NoError(t, err)
		assert.False(t, resp.IsActive)
		repo.AssertNotCalled(t, "DeactivateAllExcept", mock.Anything, mock.Anything)
	})

	t.Run("invalid range is a validation error and nothing is stored", func(t *testing.T) {
		repo := new(MockSeriesRepository)
		svc := newTestService(repo, nil)
		_, err := svc.CreateSeries(ctx, CreateSeriesCommand{
			Name: "bad", FormatTemplate: "{NUMBER}", StartNumber: 10, EndNumber: int64Ptr(5), EffectiveFrom: testFrom,
		})
		assert.True(t, shared.IsValidation(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("malformed template", func(t *testing.T) {
		repo := new(MockSeriesRepository)
		svc := newTestService(repo, nil)
		_, err := svc.CreateSeries(ctx, CreateSeriesCommand{
			Name: "bad", FormatTemplate: "OR-{SEQ}", StartNumber: 1, EffectiveFrom: testFrom,
		})
		assert.Equal(t, "INVALID_FORMAT_TEMPLATE", shared.CodeOf(err))
	})
}

func TestSeriesService_UpdateSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("saves the new configuration", func(t *testing.T) {
		series := newSeries(t, 1, int64Ptr(100), true)
		repo := new(MockSeriesRepository)
		repo.On("FindByIDForUpdate", mock.Anything, series.ID).Return(series, nil)
		repo.On("SaveWithLock", mock.Anything, series).Return(nil)

		resp, err := newTestService(repo, nil).UpdateSeries(ctx, series.ID, UpdateSeriesCommand{
			Name: "OR 2025 B", FormatTemplate: "ORB-{NUMBER:5}", StartNumber: 1, EndNumber: int64Ptr(500),
			EffectiveFrom: testFrom,
		})
		require.NoError(t, err)
		assert.Equal(t, "OR 2025 B", resp.Name)
		assert.Equal(t, "ORB-{NUMBER:5}", series.FormatTemplate)
		repo.AssertExpectations(t)
	})

	t.Run("start number is frozen once issuing began", func(t *testing.T) {
		series := newSeries(t, 1, int64Ptr(100), true)
		series.CurrentNumber = 3
		repo := new(MockSeriesRepository)
		repo.On("FindByIDForUpdate", mock.Anything, series.ID).Return(series, nil)

		_, err := newTestService(repo, nil).UpdateSeries(ctx, series.ID, UpdateSeriesCommand{
			Name: "OR", FormatTemplate: "{NUMBER}", StartNumber: 10, EffectiveFrom: testFrom,
		})
		assert.Equal(t, "SERIES_ALREADY_STARTED", shared.CodeOf(err))
		repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})
}

func TestSeriesService_ActivateSeries(t *testing.T) {
	ctx := context.Background()
	series := newSeries(t, 1, nil, false)

	repo := new(MockSeriesRepository)
	repo.On("FindByIDForUpdate", mock.Anything, series.ID).Return(series, nil)
	repo.On("DeactivateAllExcept", mock.Anything, series.ID).Return(nil)
	repo.On("SaveWithLock", mock.Anything, series).Return(nil)

	resp, err := newTestService(repo, nil).ActivateSeries(ctx, series.ID)
	require.NoError(t, err)
	assert.True(t, resp.IsActive)
	assert.Empty(t, series.GetDomainEvents())
	repo.AssertExpectations(t)
}

func TestSeriesService_DeactivateSeries(t *testing.T) {
	ctx := context.Background()
	series := newSeries(t, 1, nil, true)

	repo := new(MockSeriesRepository)
	repo.On("FindByIDForUpdate", mock.Anything, series.ID).Return(series, nil)
	repo.On("SaveWithLock", mock.Anything, series).Return(nil)

	resp, err := newTestService(repo, nil).DeactivateSeries(ctx, series.ID)
	require.NoError(t, err)
	assert.False(t, resp.IsActive)
	repo.AssertNotCalled(t, "DeactivateAllExcept", mock.Anything, mock.Anything)
}

func TestSeriesService_IssueNext(t *testing.T) {
	ctx := context.Background()

	t.Run("issues and records metrics", func(t *testing.T) {
		series := newSeries(t, 1, int64Ptr(10), true)
		series.CurrentNumber = 8

		repo := new(MockSeriesRepository)
		repo.On("FindActiveForUpdate", mock.Anything, testNow).Return(series, nil)
		repo.On("SaveWithLock", mock.Anything, series).Return(nil)
		metrics := new(MockMetrics)
		metrics.On("RecordNumberIssued", mock.Anything, series.ID, true).Return()

		result, err := newTestService(repo, nil, WithMetrics(metrics)).IssueNext(ctx, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, int64(9), result.Issued.NumericValue)
		assert.Equal(t, "OR-202510-000009", result.Issued.Formatted)
		assert.True(t, result.Statistics.NearLimit)
		assert.Len(t, result.Events, 2)
		metrics.AssertExpectations(t)
	})

	t.Run("no active series", func(t *testing.T) {
		repo := new(MockSeriesRepository)
		repo.On("FindActiveForUpdate", mock.Anything, testNow).Return(nil, numbering.ErrNoActiveSeries)

		_, err := newTestService(repo, nil).IssueNext(ctx, testNow)
		assert.ErrorIs(t, err, numbering.ErrNoActiveSeries)
		assert.True(t, shared.IsBusinessRule(err))
	})

	t.Run("exhausted series is not saved", func(t *testing.T) {
		series := newSeries(t, 1, int64Ptr(1), true)
		series.CurrentNumber = 1
		repo := new(MockSeriesRepository)
		repo.On("FindActiveForUpdate", mock.Anything, testNow).Return(series, nil)

		_, err := newTestService(repo, nil).IssueNext(ctx, testNow)
		assert.ErrorIs(t, err, numbering.ErrSeriesLimitReached)
		repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("retries version conflicts", func(t *testing.T) {
		series := newSeries(t, 1, nil, true)
		repo := new(MockSeriesRepository)
		repo.On("FindActiveForUpdate", mock.Anything, testNow).Return(series, nil)
		repo.On("SaveWithLock", mock.Anything, series).Return(shared.ErrConcurrencyConflict).Once()
		repo.On("SaveWithLock", mock.Anything, series).Return(nil).Once()

		result, err := newTestService(repo, nil).IssueNext(ctx, testNow)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Issued.NumericValue)
		repo.AssertNumberOfCalls(t, "SaveWithLock", 2)
	})

	t.Run("storage failure is surfaced", func(t *testing.T) {
		repo := new(MockSeriesRepository)
		repo.On("FindActiveForUpdate", mock.Anything, testNow).Return(nil, shared.NewStorageError("find", errors.New("io")))
		_, err := newTestService(repo, nil).IssueNext(ctx, testNow)
		assert.True(t, shared.IsStorageFailure(err))
		repo.AssertNumberOfCalls(t, "FindActiveForUpdate", 1)
	})
}

func TestSeriesService_Statistics(t *testing.T) {
	ctx := context.Background()
	series := newSeries(t, 1, int64Ptr(100), true)
	series.CurrentNumber = 50

	repo := new(MockSeriesRepository)
	repo.On("FindByID", ctx, series.ID).Return(series, nil)

	svc := newTestService(repo, nil)
	first, err := svc.Statistics(ctx, series.ID)
	require.NoError(t, err)
	second, err := svc.Statistics(ctx, series.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "50.00", first.UsagePercent.StringFixed(2))
	assert.Equal(t, int64(50), series.CurrentNumber)
}

func TestSeriesService_ValidateManualNumber(t *testing.T) {
	ctx := context.Background()
	exclude := uuid.New()

	docs := new(MockDocumentNumberLookup)
	docs.On("ExistsByDocumentNumber", ctx, "MAN-1", (*uuid.UUID)(nil)).Return(true, nil)
	docs.On("ExistsByDocumentNumber", ctx, "MAN-1", &exclude).Return(false, nil)

	svc := newTestService(new(MockSeriesRepository), docs)

	res, err := svc.ValidateManualNumber(ctx, " MAN-1 ", nil)
	require.NoError(t, err)
	assert.False(t, res.Available)

	res, err = svc.ValidateManualNumber(ctx, "MAN-1", &exclude)
	require.NoError(t, err)
	assert.True(t, res.Available)

	_, err = svc.ValidateManualNumber(ctx, "", nil)
	assert.True(t, shared.IsValidation(err))
}
