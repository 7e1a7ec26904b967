package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goerrors "gopkg.in/src-d/go-errors.v1"
)

func TestParseStatistics(t *testing.T) {
	got, err := ParseStatistics([]string{"min", "Avg,QUART", " "})
	require.NoError(t, err)
	assert.Equal(t, []StatisticKind{StatMin, StatAvg, StatQuart}, got)

	_, err = ParseStatistics([]string{"min", "p99"})
	assert.True(t, ErrInvalidInput.Is(err))

	_, err = ParseStatistics(nil)
	assert.True(t, ErrInvalidInput.Is(err))
}

func TestExpandStatistics(t *testing.T) {
	assert.Equal(t, ConcreteStatistics, ExpandStatistics([]StatisticKind{StatAll}))
	assert.Equal(t,
		[]StatisticKind{StatMax, StatMin, StatAvg, StatMedian, StatQuart},
		ExpandStatistics([]StatisticKind{StatMax, StatAll, StatMin}))
	assert.Equal(t, []StatisticKind{StatAvg}, ExpandStatistics([]StatisticKind{StatAvg, StatAvg}))
}

func TestStatisticColumns(t *testing.T) {
	assert.Equal(t, 2, StatQuart.Columns())
	assert.Equal(t, 1, StatMedian.Columns())
	assert.Equal(t, "median", StatMedian.Lower())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"plain", fmt.Errorf("boom"), KindUnknown},
		{"invalid", ErrInvalidInput.New("x"), KindInvalidInput},
		{"wrapped store", fmt.Errorf("query: %w", ErrStoreUnavailable.Wrap(fmt.Errorf("io"), "select")), KindStoreUnavailable},
		{"empty", ErrEmptyResult.New("temp", "a", "b"), KindEmptyResult},
		{"unknown series", ErrUnknownSeries.New("temp"), KindUnknownSeries},
		{"not configured", ErrNotConfigured.New("temp", StatMin, 10.0), KindNotConfigured},
		{"other kind", goerrors.NewKind("other").New(), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
