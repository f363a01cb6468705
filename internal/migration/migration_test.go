package migration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	require.Equal(t, uint(2), next)

	last, err := src.Next(next)
	require.NoError(t, err)
	require.Equal(t, uint(3), last)

	r, _, err := src.ReadUp(last)
	require.NoError(t, err)
	defer r.Close()
}
