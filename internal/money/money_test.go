package money

import (
	"encoding/json"
	"math"
	"testing"

	"quote_manager/internal/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
		{"10", "10.00"},
		{"-1.005", "-1.00"},
		{"-1.006", "-1.01"},
		{"99.999", "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNew_RejectsNegative(t *testing.T) {
	_, err := New(decimal.NewFromInt(-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
}

func TestFromFloat_RejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := FromFloat(f)
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount, "input %v", f)
	}

	m, err := FromFloat(19.999)
	require.NoError(t, err)
	assert.Equal(t, "20.00", m.String())
}

func TestParse(t *testing.T) {
	m, err := Parse(" 12.3 ")
	require.NoError(t, err)
	assert.Equal(t, "12.30", m.String())

	_, err = Parse("twelve")
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)

	_, err = Parse("-0.01")
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
}

func TestArithmetic(t *testing.T) {
	a := MustParse("10.00")
	b := MustParse("7.50")

	assert.Equal(t, "17.50", a.Add(b).String())
	assert.Equal(t, "2.50", a.Sub(b).String())
	assert.Equal(t, "-2.50", b.Sub(a).String())
	assert.Equal(t, "22.50", b.MulQuantity(3).String())
	assert.Equal(t, "15.00", MustParse("150.00").PercentageOf(decimal.NewFromInt(10)).String())
	assert.Equal(t, "0.00", Zero.PercentageOf(decimal.NewFromInt(25)).String())
	// 33.33 * 12.5% = 4.16625
	assert.Equal(t, "4.17", MustParse("33.33").PercentageOf(decimal.RequireFromString("12.5")).String())
	assert.Equal(t, int64(1750), a.Add(b).Cents())
	assert.True(t, FromCents(1750).Equal(a.Add(b)))
}

func TestExceeds(t *testing.T) {
	assert.False(t, MustParse("9999999999999.99").Exceeds())
	assert.True(t, Round(MaxAmount.Add(decimal.NewFromInt(1))).Exceeds())
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(MustParse("165"))
	require.NoError(t, err)
	assert.Equal(t, `"165.00"`, string(data))

	var fromNumber, fromString Money
	require.NoError(t, json.Unmarshal([]byte(`12.345`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`"7.5"`), &fromString))
	assert.Equal(t, "12.35", fromNumber.String())
	assert.Equal(t, "7.50", fromString.String())

	var negative Money
	err = json.Unmarshal([]byte(`"-3"`), &negative)
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
}

func TestValueAndScan(t *testing.T) {
	v, err := MustParse("42.1").Value()
	require.NoError(t, err)
	assert.Equal(t, "42.10", v)

	var m Money
	require.NoError(t, m.Scan("42.10"))
	assert.Equal(t, "42.10", m.String())

	require.NoError(t, m.Scan(float64(0.3)))
	assert.Equal(t, "0.30", m.String())

	require.NoError(t, m.Scan([]byte("15")))
	assert.Equal(t, "15.00", m.String())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
}
