package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	require.InDelta(t, 1234.56, ParseAmount("$1,234.56"), 0.0001)
	require.InDelta(t, -42.10, ParseAmount("-42.10"), 0.0001)
	require.InDelta(t, 12.34, ParseAmount(12.34), 0.0001)
	require.InDelta(t, 7, ParseAmount(7), 0.0001)
	require.Zero(t, ParseAmount(""))
	require.Zero(t, ParseAmount(nil))
	require.Zero(t, ParseAmount("not a number"))
	require.Zero(t, ParseAmount("$"))
	require.Zero(t, ParseAmount(math.NaN()))
	require.Zero(t, ParseAmount(math.Inf(1)))
}

func TestParseAmountNeverNaN(t *testing.T) {
	inputs := []any{"NaN", "Inf", "-Inf", "1e999", "$,,", "  ", nil, struct{}{}}
	for _, in := range inputs {
		got := ParseAmount(in)
		require.False(t, math.IsNaN(got), "input %v", in)
		require.False(t, math.IsInf(got, 0), "input %v", in)
	}
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "2024-03-04", FormatDate("3/4/2024"))
	require.Equal(t, "2024-12-31", FormatDate("12/31/2024"))
	require.Equal(t, "2024-01-02", FormatDate("1/2/2024"))
	require.Equal(t, "not a date", FormatDate("not a date"))
	require.Equal(t, "2024-03-04", FormatDate(" 3/4/2024 "))
	require.Equal(t, "", FormatDate(""))
	require.Equal(t, "", FormatDate(nil))
	// Already-ISO dates pass through untouched.
	require.Equal(t, "2024-03-04", FormatDate("2024-03-04"))
}
