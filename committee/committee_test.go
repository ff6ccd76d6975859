// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committee

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/commitfinalizer/consensus"
	"github.com/luxfi/ids"
)

func TestQuorumThresholdEqualStake(t *testing.T) {
	stakes := map[consensus.AuthorityId]consensus.Stake{
		ids.GenerateTestNodeID(): 1,
		ids.GenerateTestNodeID(): 1,
		ids.GenerateTestNodeID(): 1,
		ids.GenerateTestNodeID(): 1,
	}
	c := New(stakes, 5, true)
	require.Equal(t, consensus.Stake(4), c.TotalStake())
	require.Equal(t, consensus.Stake(3), c.QuorumThreshold())
}

func TestQuorumThresholdUnevenStake(t *testing.T) {
	a, b, c := ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID()
	stakes := map[consensus.AuthorityId]consensus.Stake{a: 5, b: 3, c: 2}
	com := New(stakes, 0, true)
	require.Equal(t, consensus.Stake(10), com.TotalStake())
	// floor(2*10/3)+1 = 6+1 = 7
	require.Equal(t, consensus.Stake(7), com.QuorumThreshold())
	require.Equal(t, consensus.Stake(5), com.Stake(a))
	require.Equal(t, consensus.Stake(0), com.Stake(ids.GenerateTestNodeID()))
}

func TestNewCopiesStakeMap(t *testing.T) {
	a := ids.GenerateTestNodeID()
	stakes := map[consensus.AuthorityId]consensus.Stake{a: 1}
	com := New(stakes, 0, true)
	stakes[a] = 100
	require.Equal(t, consensus.Stake(1), com.Stake(a))
}
