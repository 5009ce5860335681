package tasks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		current Status
		prior   Status
		target  Status
		want    bool
	}{
		{"pick to packed", StatusPendingPick, "", StatusPacked, true},
		{"packed to handed off", StatusPacked, "", StatusHandedOff, true},
		{"packed to delivered", StatusPacked, "", StatusDelivered, true},
		{"pick straight to handed off", StatusPendingPick, "", StatusHandedOff, false},
		{"pick straight to delivered", StatusPendingPick, "", StatusDelivered, false},
		{"backwards", StatusPacked, "", StatusPendingPick, false},
		{"delay from pick", StatusPendingPick, "", StatusDelayed, true},
		{"delay from packed", StatusPacked, "", StatusDelayed, true},
		{"delay from terminal", StatusHandedOff, "", StatusDelayed, false},
		{"delayed back to prior", StatusDelayed, StatusPacked, StatusPacked, true},
		{"delayed forward from prior", StatusDelayed, StatusPacked, StatusHandedOff, true},
		{"delayed skipping ahead", StatusDelayed, StatusPendingPick, StatusHandedOff, false},
		{"terminal frozen", StatusDelivered, "", StatusPacked, false},
		{"self transition", StatusPacked, "", StatusPacked, false},
		{"unknown target", StatusPacked, "", Status("nope"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanTransition(tc.current, tc.prior, tc.target))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	require.True(t, StatusHandedOff.Terminal())
	require.True(t, StatusDelivered.Terminal())
	require.False(t, StatusDelayed.Terminal())
	require.False(t, StatusPendingPick.Terminal())

	require.True(t, StatusPacked.RequiresReconciliation())
	require.True(t, StatusHandedOff.RequiresReconciliation())
	require.True(t, StatusDelivered.RequiresReconciliation())
	require.False(t, StatusDelayed.RequiresReconciliation())
	require.False(t, StatusPendingPick.RequiresReconciliation())
}
