package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	cents, err := ToCents(decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	require.Equal(t, int64(1999), cents)

	_, err = ToCents(decimal.RequireFromString("1.999"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToCents(decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseAndFormat(t *testing.T) {
	cents, err := ParseCents(" 5 ")
	require.NoError(t, err)
	require.Equal(t, int64(500), cents)
	require.Equal(t, "5.00", Format(cents))

	_, err = ParseCents("abc")
	require.ErrorIs(t, err, ErrInvalidAmount)
}
