package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisableTileEvents)})

	t.Run("run if enabled", func(t *testing.T) {
		var ran bool
		f.IfSet(FlagDisableTileEvents, func() {
			ran = true
		})
		require.True(t, ran)

		var ranOther bool
		f.IfSet(FlagDisableFrameSummaries, func() {
			ranOther = true
		})
		require.False(t, ranOther)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var ran bool
		f.IfNotSet(FlagDisableTileEvents, func() {
			ran = true
		})
		require.False(t, ran)

		var ranOther bool
		f.IfNotSet(FlagDisableFrameSummaries, func() {
			ranOther = true
		})
		require.True(t, ranOther)
	})

	t.Run("lookup and listing", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisableTileEvents))
		require.False(t, f.IsSet(FlagDisableDormancySweeps))
		require.Equal(t, []string{string(FlagDisableTileEvents)}, f.Strings())
	})
}
