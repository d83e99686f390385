package numbering

import (
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

var testFrom = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func newActiveSeries(t *testing.T, start int64, end *int64) *Series {
	t.Helper()
	s, err := NewSeries("Official Receipts", "OR-{YEAR}{MONTH}-{NUMBER}", start, end, testFrom, nil)
	require.NoError(t, err)
	s.Activate()
	return s
}

func TestNewSeries(t *testing.T) {
	t.Run("valid bounded series", func(t *testing.T) {
		s, err := NewSeries("OR 2025", "OR-{NUMBER:6}", 1, int64Ptr(999999), testFrom, nil)
		require.NoError(t, err)
		assert.Equal(t, "OR 2025", s.Name)
		assert.Equal(t, int64(0), s.CurrentNumber)
		assert.False(t, s.IsActive)
		assert.False(t, s.HasStarted())
		assert.Equal(t, 1, s.Version)
	})

	to := testFrom.AddDate(0, 0, -1)
	tests := []struct {
		name     string
		tpl      string
		start    int64
		end      *int64
		to       *time.Time
		seriesNm string
		code     string
	}{
		{"start greater than end", "{NUMBER}", 10, int64Ptr(5), nil, "S", "INVALID_SERIES_RANGE"},
		{"start below one", "{NUMBER}", 0, nil, nil, "S", "INVALID_SERIES_RANGE"},
		{"malformed template", "{NUMBR}", 1, nil, nil, "S", "INVALID_FORMAT_TEMPLATE"},
		{"window reversed", "{NUMBER}", 1, nil, &to, "S", "INVALID_EFFECTIVE_WINDOW"},
		{"empty name", "{NUMBER}", 1, nil, nil, " ", "INVALID_SERIES_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeries(tt.seriesNm, tt.tpl, tt.start, tt.end, testFrom, tt.to)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Equal(t, tt.code, shared.CodeOf(err))
		})
	}

	t.Run("start equal to end is allowed", func(t *testing.T) {
		_, err := NewSeries("single", "{NUMBER}", 1, int64Ptr(1), testFrom, nil)
		assert.NoError(t, err)
	})
}

func TestSeries_Issue(t *testing.T) {
	at := time.Date(2025, time.October, 15, 9, 30, 0, 0, time.UTC)

	t.Run("first issuance uses start number", func(t *testing.T) {
		s := newActiveSeries(t, 100, int64Ptr(999))
		issued, stats, err := s.Issue(at, 6, 90)
		require.NoError(t, err)
		assert.Equal(t, int64(100), issued.NumericValue)
		assert.Equal(t, "OR-202510-100", issued.Formatted)
		assert.Equal(t, s.ID, issued.SeriesID)
		assert.Equal(t, int64(100), s.CurrentNumber)
		assert.Equal(t, int64(1), stats.Used)
	})

	t.Run("subsequent issuance increments", func(t *testing.T) {
		s := newActiveSeries(t, 1, nil)
		for i := int64(1); i <= 3; i++ {
			issued, _, err := s.Issue(at, 6, 90)
			require.NoError(t, err)
			assert.Equal(t, i, issued.NumericValue)
		}
		assert.Equal(t, "OR-202510-000004", mustIssue(t, s, at).Formatted)
	})

	t.Run("exhausted series fails", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(1))
		s.CurrentNumber = 1
		_, _, err := s.Issue(at, 6, 90)
		assert.ErrorIs(t, err, ErrSeriesLimitReached)
		assert.True(t, shared.IsBusinessRule(err))
		assert.Equal(t, int64(1), s.CurrentNumber)
	})

	t.Run("inactive series fails", func(t *testing.T) {
		s := newActiveSeries(t, 1, nil)
		s.Deactivate()
		_, _, err := s.Issue(at, 6, 90)
		assert.ErrorIs(t, err, ErrNoActiveSeries)
	})

	t.Run("outside effective window fails", func(t *testing.T) {
		s := newActiveSeries(t, 1, nil)
		_, _, err := s.Issue(testFrom.Add(-time.Hour), 6, 90)
		assert.ErrorIs(t, err, ErrNoActiveSeries)
	})

	t.Run("near limit event raised once when crossing threshold", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(10))
		s.ClearDomainEvents()
		s.CurrentNumber = 8
		_, stats, err := s.Issue(at, 6, 90)
		require.NoError(t, err)
		assert.True(t, stats.NearLimit)
		assert.Len(t, s.GetDomainEvents(), 2)
		assert.Equal(t, "SeriesNearLimit", s.GetDomainEvents()[1].EventType())

		s.ClearDomainEvents()
		_, stats, err = s.Issue(at, 6, 90)
		require.NoError(t, err)
		assert.True(t, stats.NearLimit)
		assert.Len(t, s.GetDomainEvents(), 1)
	})
}

func mustIssue(t *testing.T, s *Series, at time.Time) IssuedNumber {
	t.Helper()
	issued, _, err := s.Issue(at, 6, 90)
	require.NoError(t, err)
	return issued
}

func TestSeries_Statistics(t *testing.T) {
	t.Run("nothing issued", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(100))
		stats := s.Statistics(90)
		assert.Equal(t, int64(0), stats.Used)
		require.NotNil(t, stats.Remaining)
		assert.Equal(t, int64(100), *stats.Remaining)
		assert.True(t, stats.UsagePercent.IsZero())
		assert.False(t, stats.NearLimit)
	})

	t.Run("usage percentage and near limit at threshold", func(t *testing.T) {
		s := newActiveSeries(t, 11, int64Ptr(20))
		s.CurrentNumber = 19
		stats := s.Statistics(90)
		assert.Equal(t, int64(9), stats.Used)
		assert.Equal(t, int64(10), *stats.Capacity)
		assert.Equal(t, int64(1), *stats.Remaining)
		assert.True(t, stats.UsagePercent.Equal(decimal.NewFromInt(90)))
		assert.True(t, stats.NearLimit)
	})

	t.Run("below threshold", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(3))
		s.CurrentNumber = 2
		stats := s.Statistics(90)
		assert.Equal(t, "66.67", stats.UsagePercent.StringFixed(2))
		assert.False(t, stats.NearLimit)
	})

	t.Run("unbounded series", func(t *testing.T) {
		s := newActiveSeries(t, 1, nil)
		s.CurrentNumber = 1_000_000
		stats := s.Statistics(90)
		assert.Nil(t, stats.Remaining)
		assert.Nil(t, stats.Capacity)
		assert.False(t, stats.NearLimit)
	})

	t.Run("repeated reads are identical", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(50))
		s.CurrentNumber = 25
		assert.Equal(t, s.Statistics(90), s.Statistics(90))
	})
}

func TestSeries_Update(t *testing.T) {
	t.Run("start number frozen after issuance", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(100))
		s.CurrentNumber = 5
		err := s.Update("Renamed", "{NUMBER}", 2, int64Ptr(100), testFrom, nil)
		assert.Equal(t, "SERIES_ALREADY_STARTED", shared.CodeOf(err))
	})

	t.Run("end number cannot drop below current", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(100))
		s.CurrentNumber = 50
		err := s.Update("Renamed", "{NUMBER}", 1, int64Ptr(49), testFrom, nil)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("updates fields", func(t *testing.T) {
		s := newActiveSeries(t, 1, int64Ptr(100))
		require.NoError(t, s.Update("Renamed", "X-{NUMBER:4}", 1, nil, testFrom, nil))
		assert.Equal(t, "Renamed", s.Name)
		assert.Nil(t, s.EndNumber)
		assert.Equal(t, 6, s.NumberWidth(6))
	})
}

func TestSeries_NumberWidth(t *testing.T) {
	s := newActiveSeries(t, 1, int64Ptr(99999))
	assert.Equal(t, 5, s.NumberWidth(6))

	s.EndNumber = nil
	assert.Equal(t, 8, s.NumberWidth(8))
	assert.Equal(t, DefaultUnboundedWidth, s.NumberWidth(0))
}

func TestSeries_ActivateRaisesEvent(t *testing.T) {
	s, err := NewSeries("S", "{NUMBER}", 1, nil, testFrom, nil)
	require.NoError(t, err)
	s.Activate()
	s.Activate()
	require.Len(t, s.GetDomainEvents(), 1)
	assert.Equal(t, "SeriesActivated", s.GetDomainEvents()[0].EventType())
}
