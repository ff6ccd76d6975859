// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus holds the identifiers and data shapes shared between
// a committed sub-DAG producer (the leader linearizer, out of scope here)
// and the commit finalizer that consumes it.
package consensus

import (
	"fmt"

	"github.com/luxfi/ids"
)

// Round is a monotonic, non-negative DAG round number.
type Round uint64

// AuthorityId identifies a committee member. It is totally ordered via
// String() so that link/inherit passes have a deterministic tie-break.
type AuthorityId = ids.NodeID

// TransactionIndex is the position of a transaction within a block's
// transaction list.
type TransactionIndex int

// CommitIndex is strictly monotonic and dense across successive commits.
type CommitIndex uint64

// Stake is a unit of committee voting weight.
type Stake uint64

// BlockRef uniquely identifies a block: round, author, and a
// content-addressed digest. Ordered by round then author then digest,
// matching the DAG's "ancestor rounds are strictly less" invariant.
type BlockRef struct {
	Round  Round
	Author AuthorityId
	Digest ids.ID
}

// Less reports whether r sorts before other, by round, then author, then
// digest. Used only to produce deterministic traversal/iteration order;
// correctness of the finalizer never depends on this order.
func (r BlockRef) Less(other BlockRef) bool {
	if r.Round != other.Round {
		return r.Round < other.Round
	}
	if r.Author != other.Author {
		return r.Author.String() < other.Author.String()
	}
	return r.Digest.String() < other.Digest.String()
}

func (r BlockRef) String() string {
	return fmt.Sprintf("%d%s@%s", r.Round, r.Author, r.Digest)
}

// TransactionVote is a block's explicit reject-vote for transactions of
// a target block.
type TransactionVote struct {
	Target  BlockRef
	Rejects []TransactionIndex
}

// Block is the read-only view the finalizer needs of a block inside a
// committed sub-DAG. Verification upstream guarantees: at most one
// ancestor per author, and every ancestor round is strictly less than
// this block's round.
type Block interface {
	Reference() BlockRef
	Round() Round
	Author() AuthorityId
	Ancestors() []BlockRef
	TransactionVotes() []TransactionVote
}

// CommitRef identifies a commit produced by the outer consensus protocol.
type CommitRef struct {
	Index CommitIndex
	Round Round
	// Digest identifies the commit's content for recovery/replay bookkeeping.
	Digest ids.ID
}

func (c CommitRef) String() string {
	return fmt.Sprintf("commit(%d@%d/%s)", c.Index, c.Round, c.Digest)
}

// CommittedSubDag is a leader together with the causal history newly
// linearized for this commit. RejectedTransactionsByBlock is populated
// by the finalizer before emission; it is absent (nil/empty) on input.
type CommittedSubDag struct {
	CommitRef                   CommitRef
	Leader                      BlockRef
	Blocks                      []Block
	RejectedTransactionsByBlock map[BlockRef][]TransactionIndex
}
