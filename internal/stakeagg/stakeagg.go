// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stakeagg aggregates distinct-author stake towards a quorum
// threshold, deduplicating repeated votes from the same author. The
// accumulator can be queried at any point during a traversal, so the
// result never depends on visit order.
package stakeagg

import "github.com/luxfi/commitfinalizer/consensus"

// Committee is the subset of committee.Committee this package needs;
// any committee.Committee satisfies it.
type Committee interface {
	Stake(author consensus.AuthorityId) consensus.Stake
	QuorumThreshold() consensus.Stake
}

// Aggregator accumulates stake from distinct authors. Adding the same
// author twice counts its stake only once.
type Aggregator struct {
	members map[consensus.AuthorityId]struct{}
	stake   consensus.Stake
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{members: make(map[consensus.AuthorityId]struct{})}
}

// Add records author's stake if not already counted. It returns true
// exactly when this call causes the aggregator to cross the quorum
// threshold for the first time.
func (a *Aggregator) Add(author consensus.AuthorityId, committee Committee) bool {
	wasReached := a.Reached(committee)
	if _, dup := a.members[author]; !dup {
		a.members[author] = struct{}{}
		a.stake += committee.Stake(author)
	}
	return !wasReached && a.Reached(committee)
}

// Reached reports whether the accumulated stake has reached the
// committee's quorum threshold.
func (a *Aggregator) Reached(committee Committee) bool {
	return a.stake >= committee.QuorumThreshold()
}

// Stake returns the currently accumulated stake.
func (a *Aggregator) Stake() consensus.Stake {
	return a.stake
}
