// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dagtest builds small, fully-connected DAG fixtures for
// finalizer tests: plain exported-field structs plus builder functions,
// no mocking framework needed.
package dagtest

import (
	"github.com/luxfi/commitfinalizer/consensus"
	"github.com/luxfi/ids"
)

// Block is a test double for consensus.Block.
type Block struct {
	Ref      consensus.BlockRef
	Ancestry []consensus.BlockRef
	Votes    []consensus.TransactionVote
}

func (b *Block) Reference() consensus.BlockRef { return b.Ref }

func (b *Block) Round() consensus.Round { return b.Ref.Round }

func (b *Block) Author() consensus.AuthorityId { return b.Ref.Author }

func (b *Block) Ancestors() []consensus.BlockRef { return b.Ancestry }

func (b *Block) TransactionVotes() []consensus.TransactionVote { return b.Votes }

// Builder constructs a fully-connected round-based DAG: every block at
// round r > 1 has exactly one ancestor per authority, all from round
// r-1. It tracks which blocks have already been linearized into a
// previous commit so each new CommittedSubDag carries only the delta,
// matching the causal-history semantics of the leader linearizer this
// package stands in for.
type Builder struct {
	Authorities []consensus.AuthorityId

	rounds     map[consensus.Round][]*Block
	linearized map[consensus.BlockRef]bool
	nextIndex  consensus.CommitIndex
}

// NewBuilder returns a Builder for a committee of n authorities.
func NewBuilder(n int) *Builder {
	authorities := make([]consensus.AuthorityId, n)
	for i := range authorities {
		authorities[i] = ids.GenerateTestNodeID()
	}
	return &Builder{
		Authorities: authorities,
		rounds:      make(map[consensus.Round][]*Block),
		linearized:  make(map[consensus.BlockRef]bool),
	}
}

// AddRound appends a new round of one block per authority, each block
// referencing every authority's block from the previous round as an
// ancestor (round 1 has no ancestors).
func (b *Builder) AddRound() consensus.Round {
	round := consensus.Round(len(b.rounds) + 1)
	prev := b.rounds[round-1]
	blocks := make([]*Block, len(b.Authorities))
	for i, author := range b.Authorities {
		var ancestry []consensus.BlockRef
		for _, p := range prev {
			ancestry = append(ancestry, p.Ref)
		}
		blocks[i] = &Block{
			Ref: consensus.BlockRef{
				Round:  round,
				Author: author,
				Digest: ids.GenerateTestID(),
			},
			Ancestry: ancestry,
		}
	}
	b.rounds[round] = blocks
	return round
}

// BlockAt returns the authorityIdx'th block of round.
func (b *Builder) BlockAt(round consensus.Round, authorityIdx int) *Block {
	return b.rounds[round][authorityIdx]
}

// Vote builds a reject vote against some of target's transactions, to be
// attached to a voter block with SetVotes.
func Vote(target consensus.BlockRef, rejects ...consensus.TransactionIndex) consensus.TransactionVote {
	return consensus.TransactionVote{Target: target, Rejects: rejects}
}

// SetVotes overwrites a block's transaction votes.
func (b *Block) SetVotes(votes ...consensus.TransactionVote) *Block {
	b.Votes = votes
	return b
}

// Commit builds the next CommittedSubDag whose leader is leader:
// its blocks list is the causal history of leader (by full-
// connectivity ancestry closure) minus whatever has already been
// linearized by an earlier call to Commit, matching the upstream
// linearizer's incremental-delta behavior this package stands in for.
func (b *Builder) Commit(leader *Block) consensus.CommittedSubDag {
	seen := make(map[consensus.BlockRef]bool)
	var delta []consensus.Block
	var walk func(ref consensus.BlockRef)
	walk = func(ref consensus.BlockRef) {
		if seen[ref] || b.linearized[ref] {
			return
		}
		seen[ref] = true
		blk := b.lookup(ref)
		for _, a := range blk.Ancestry {
			walk(a)
		}
		delta = append(delta, blk)
	}
	walk(leader.Ref)
	for _, blk := range delta {
		b.linearized[blk.Reference()] = true
	}

	idx := b.nextIndex
	b.nextIndex++
	return consensus.CommittedSubDag{
		CommitRef: consensus.CommitRef{
			Index:  idx,
			Round:  leader.Ref.Round,
			Digest: ids.GenerateTestID(),
		},
		Leader: leader.Ref,
		Blocks: delta,
	}
}

func (b *Builder) lookup(ref consensus.BlockRef) *Block {
	for _, blk := range b.rounds[ref.Round] {
		if blk.Ref == ref {
			return blk
		}
	}
	panic("dagtest: unknown block reference")
}
