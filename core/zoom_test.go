package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZoomSpec(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     ZoomSpec
		isFactor bool
		wantErr  bool
	}{
		{name: "factor", in: `{"2":"co"}`, want: ZoomSpec{2: TokenFactor}, isFactor: true},
		{name: "factor upper case", in: `{"4":"CO"}`, want: ZoomSpec{4: TokenFactor}, isFactor: true},
		{name: "calendar", in: `{"1":"hours","7":"days"}`, want: ZoomSpec{1: TokenHours, 7: TokenDays}},
		{name: "singular units", in: `{"1":"hour","2":"week"}`, want: ZoomSpec{1: TokenHours, 2: TokenWeeks}},
		{name: "mixed mode", in: `{"2":"co","1":"days"}`, wantErr: true},
		{name: "empty", in: `{}`, wantErr: true},
		{name: "zero multiplier", in: `{"0":"co"}`, wantErr: true},
		{name: "negative multiplier", in: `{"-1":"days"}`, wantErr: true},
		{name: "unknown unit", in: `{"1":"fortnights"}`, wantErr: true},
		{name: "non numeric key", in: `{"x":"co"}`, wantErr: true},
		{name: "not an object", in: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseZoomSpec([]byte(tt.in))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInvalidInput, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.isFactor, got.IsFactor())
		})
	}
}

func TestZoomSpecJSON(t *testing.T) {
	z := ZoomSpec{1: TokenHours, 3: TokenDays}
	data, err := json.Marshal(z)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"hours","3":"days"}`, string(data))
}

func TestZoomSpecPeriods(t *testing.T) {
	z := ZoomSpec{1: TokenHours, 2: TokenDays, 30: TokenMinutes}
	assert.Equal(t, int64(2*86400), z.LargestPeriod())
	assert.Equal(t, 30, z.LargestFactor())

	next, ok := z.NextLargerPeriod(1800)
	assert.True(t, ok)
	assert.Equal(t, int64(3600), next)

	next, ok = z.NextLargerPeriod(3600)
	assert.True(t, ok)
	assert.Equal(t, int64(2*86400), next)

	_, ok = z.NextLargerPeriod(2 * 86400)
	assert.False(t, ok)
}

func TestZoomUnitSeconds(t *testing.T) {
	tests := []struct {
		unit ZoomUnit
		want int64
	}{
		{Calendar(1, TokenSeconds), 1},
		{Calendar(5, TokenMinutes), 300},
		{Calendar(1, TokenHours), 3600},
		{Calendar(1, TokenDays), 86400},
		{Calendar(1, TokenWeeks), 604800},
		{Calendar(1, TokenMonths), 2629746},
		{Calendar(1, TokenYears), 31557600},
		{Factor(2), 0},
	}
	for _, tt := range tests {
		t.Run(tt.unit.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.unit.Seconds())
		})
	}
}

func TestZoomSpecString(t *testing.T) {
	a := ZoomSpec{7: TokenDays, 1: TokenHours}
	b := ZoomSpec{1: TokenHours, 7: TokenDays}
	assert.Equal(t, "{1=hours,7=days}", a.String())
	assert.Equal(t, a.String(), b.String())
}
