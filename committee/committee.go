// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committee models the static, per-epoch committee view the
// finalizer reads from: authorities, their stake, the quorum threshold,
// the GC depth, and the fast-path protocol flag. It is read-only from
// the finalizer's perspective.
package committee

import (
	"fmt"

	"github.com/luxfi/commitfinalizer/consensus"
)

// Committee is the narrow, read-only capability the finalizer requires.
// Kept as a small interface so tests can supply deterministic doubles.
type Committee interface {
	// QuorumThreshold is the minimum stake, strictly greater than two
	// thirds of TotalStake, needed to decide a finalization or rejection.
	QuorumThreshold() consensus.Stake
	// Stake returns the voting weight of an authority. Zero for an
	// authority not in the committee.
	Stake(author consensus.AuthorityId) consensus.Stake
	// TotalStake is the sum of all authorities' stake.
	TotalStake() consensus.Stake
	// GCDepth is the number of rounds behind the last emitted leader
	// below which voting state may be dropped.
	GCDepth() consensus.Round
	// FastPathEnabled selects between legacy pass-through mode and the
	// full finalization pipeline.
	FastPathEnabled() bool
}

// Static is a fixed-membership Committee snapshot for one epoch.
type Static struct {
	stakes     map[consensus.AuthorityId]consensus.Stake
	totalStake consensus.Stake
	gcDepth    consensus.Round
	fastPath   bool
}

// New builds a Static committee from a stake map. The quorum threshold
// is computed as the smallest stake strictly greater than two thirds of
// the total.
func New(stakes map[consensus.AuthorityId]consensus.Stake, gcDepth consensus.Round, fastPath bool) *Static {
	var total consensus.Stake
	cp := make(map[consensus.AuthorityId]consensus.Stake, len(stakes))
	for a, s := range stakes {
		cp[a] = s
		total += s
	}
	return &Static{
		stakes:     cp,
		totalStake: total,
		gcDepth:    gcDepth,
		fastPath:   fastPath,
	}
}

// QuorumThreshold implements Committee.
func (s *Static) QuorumThreshold() consensus.Stake {
	// Strictly greater than 2/3: floor(2*total/3) + 1.
	return (2*s.totalStake)/3 + 1
}

// Stake implements Committee.
func (s *Static) Stake(author consensus.AuthorityId) consensus.Stake {
	return s.stakes[author]
}

// TotalStake implements Committee.
func (s *Static) TotalStake() consensus.Stake {
	return s.totalStake
}

// GCDepth implements Committee.
func (s *Static) GCDepth() consensus.Round {
	return s.gcDepth
}

// FastPathEnabled implements Committee.
func (s *Static) FastPathEnabled() bool {
	return s.fastPath
}

func (s *Static) String() string {
	return fmt.Sprintf("Static(authorities=%d, total=%d, quorum=%d, gcDepth=%d, fastPath=%v)",
		len(s.stakes), s.totalStake, s.QuorumThreshold(), s.gcDepth, s.fastPath)
}
