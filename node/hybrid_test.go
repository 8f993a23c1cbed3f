// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordinatorHandsOffAfterSustainedQuorum(t *testing.T) {
	c := NewCoordinator(3, 3, nil)
	require.Equal(t, ModeMining, c.Mode())

	require.Equal(t, ModeMining, c.ObserveRound(3))
	require.Equal(t, ModeMining, c.ObserveRound(3))
	require.Equal(t, ModeBFT, c.ObserveRound(3))
}

func TestCoordinatorHandoffResetsOnDip(t *testing.T) {
	c := NewCoordinator(3, 3, nil)
	c.ObserveRound(3)
	c.ObserveRound(3)
	c.ObserveRound(1) // dips below quorum, resets the above-streak
	require.Equal(t, ModeMining, c.Mode())
	c.ObserveRound(3)
	c.ObserveRound(3)
	require.Equal(t, ModeMining, c.Mode())
	require.Equal(t, ModeBFT, c.ObserveRound(3))
}

func TestCoordinatorHandsBackOnSustainedDip(t *testing.T) {
	c := NewCoordinator(3, 2, nil)
	c.ObserveRound(3)
	require.Equal(t, ModeBFT, c.ObserveRound(3))

	require.Equal(t, ModeBFT, c.ObserveRound(1))
	require.Equal(t, ModeMining, c.ObserveRound(1))
}
