package termbar

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multibar"
)

func TestSchollzAdapterCounts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bar := NewSchollz(4, multibar.Options{Output: &buf, Display: multibar.DisplayOff})
	bar.Advance()
	bar.Advance()
	require.Equal(t, int64(2), bar.Count())

	bar.Set(9)
	require.Equal(t, int64(4), bar.Count(), "overshoot clamps to total")

	bar.Set(-2)
	require.Equal(t, int64(0), bar.Count())

	bar.Finish()
	require.Equal(t, int64(4), bar.Count())
	require.Equal(t, int64(4), bar.Total())
	require.Equal(t, 0, bar.Offset())
}

func TestSchollzFactoryRejectsOffsets(t *testing.T) {
	t.Parallel()

	factory := SchollzFactory()
	var buf bytes.Buffer
	opts := multibar.Options{Output: &buf, Display: multibar.DisplayOff}

	require.NotPanics(t, func() { factory(3, 0, opts) })
	require.Panics(t, func() { factory(3, 1, opts) }, "only the anchor row is addressable")
}
