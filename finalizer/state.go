// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizer

import (
	"github.com/luxfi/commitfinalizer/consensus"
	"github.com/luxfi/commitfinalizer/internal/set"
)

// commitState is the per-buffered-commit bookkeeping. Invariants: every
// block key of pendingTransactions or rejectedTransactions is already
// finalized (absent from pendingBlocks), and the three per-block sets
// are pairwise disjoint.
type commitState struct {
	commit consensus.CommittedSubDag

	pendingBlocks set.Set[consensus.BlockRef]

	pendingTransactions  map[consensus.BlockRef]set.Set[consensus.TransactionIndex]
	rejectedTransactions map[consensus.BlockRef]set.Set[consensus.TransactionIndex]
}

func newCommitState(commit consensus.CommittedSubDag) *commitState {
	pending := set.NewSet[consensus.BlockRef](len(commit.Blocks))
	for _, b := range commit.Blocks {
		pending.Add(b.Reference())
	}
	return &commitState{
		commit:               commit,
		pendingBlocks:        pending,
		pendingTransactions:  make(map[consensus.BlockRef]set.Set[consensus.TransactionIndex]),
		rejectedTransactions: make(map[consensus.BlockRef]set.Set[consensus.TransactionIndex]),
	}
}

func (c *commitState) isFinalized() bool {
	return c.pendingBlocks.Len() == 0 && len(c.pendingTransactions) == 0
}

func (c *commitState) pendingEntry(block consensus.BlockRef) set.Set[consensus.TransactionIndex] {
	s, ok := c.pendingTransactions[block]
	if !ok {
		s = set.NewSet[consensus.TransactionIndex](0)
		c.pendingTransactions[block] = s
	}
	return s
}

func (c *commitState) rejectedEntry(block consensus.BlockRef) set.Set[consensus.TransactionIndex] {
	s, ok := c.rejectedTransactions[block]
	if !ok {
		s = set.NewSet[consensus.TransactionIndex](0)
		c.rejectedTransactions[block] = s
	}
	return s
}

// blockState is the per-block link-graph bookkeeping: who points to
// this block, and which transactions this block explicitly (or, after
// inheritance, implicitly) rejects.
type blockState struct {
	children    set.Set[consensus.BlockRef]
	rejectVotes map[consensus.BlockRef]set.Set[consensus.TransactionIndex]
}

func newBlockState() *blockState {
	return &blockState{
		children:    set.NewSet[consensus.BlockRef](0),
		rejectVotes: make(map[consensus.BlockRef]set.Set[consensus.TransactionIndex]),
	}
}

func (b *blockState) rejectsEntry(target consensus.BlockRef) set.Set[consensus.TransactionIndex] {
	s, ok := b.rejectVotes[target]
	if !ok {
		s = set.NewSet[consensus.TransactionIndex](0)
		b.rejectVotes[target] = s
	}
	return s
}
