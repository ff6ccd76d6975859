// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package finalizer implements the commit finalization core: given a
// contiguous stream of committed sub-DAGs from the outer consensus
// protocol, it decides, for every block and transaction, whether it is
// finalized or rejected, and emits commits downstream once their
// decisions are stable.
//
// Blocks of a directly committed leader are finalized immediately.
// Everything else is decided by later voter blocks reachable through
// the link graph, with a forced-rejection horizon bounding how long a
// transaction can stay undecided.
package finalizer

import (
	"fmt"
	"sort"

	"github.com/luxfi/commitfinalizer/certifier"
	"github.com/luxfi/commitfinalizer/committee"
	"github.com/luxfi/commitfinalizer/consensus"
	"github.com/luxfi/commitfinalizer/internal/logging"
	"github.com/luxfi/commitfinalizer/internal/metrics"
	"github.com/luxfi/commitfinalizer/internal/set"
	"github.com/luxfi/commitfinalizer/internal/stakeagg"
	"github.com/luxfi/log"
)

const (
	// IndirectFinalizeDepth is the number of rounds between the leader
	// that committed a transaction and the latest buffered leader, at
	// which a transaction still pending is forcibly rejected. Indirect
	// finalization itself is not gated by this depth. It bounds the
	// commit buffer and guarantees emission progress.
	IndirectFinalizeDepth consensus.Round = 3

	// VoteDepth is the number of rounds above the leader that committed
	// a transaction, within which accept votes are collected.
	// Conservative; loosening it interacts with liveness arguments
	// outside this package.
	// NOTE: it should be possible to remove this limit.
	VoteDepth consensus.Round = 1
)

// Finalizer owns the block link graph, the commit buffer, and the last
// processed commit index. It is not safe for concurrent use: all calls
// must come from a single task. Use Handle/Run to drive it from a
// mailbox.
type Finalizer struct {
	committee committee.Committee
	certifier certifier.TransactionCertifier
	log       log.Logger
	metrics   *metrics.Set

	lastProcessed *consensus.CommitIndex
	commits       []*commitState
	blocks        map[consensus.BlockRef]*blockState
}

// Option configures a Finalizer.
type Option func(*Finalizer)

// WithLogger overrides the default no-op logger.
func WithLogger(l log.Logger) Option {
	return func(f *Finalizer) { f.log = l }
}

// WithMetrics overrides the metrics set. Pass nil to disable metrics
// (the default).
func WithMetrics(m *metrics.Set) Option {
	return func(f *Finalizer) { f.metrics = m }
}

// New creates a Finalizer over the given committee view and transaction
// certifier.
func New(committee committee.Committee, certifier certifier.TransactionCertifier, opts ...Option) *Finalizer {
	f := &Finalizer{
		committee: committee,
		certifier: certifier,
		log:       logging.Default(),
		blocks:    make(map[consensus.BlockRef]*blockState),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ProcessCommit appends subdag to the buffer and runs finalization,
// returning the commits (if any) that became emittable as a result, in
// strictly increasing commit-index order.
//
// Precondition: subdag.CommitRef.Index is exactly one more than the
// index of the previously processed commit (or is the first commit ever
// processed). With the fast path enabled, violating this is a fatal
// invariant breach and panics; in legacy mode the index is not checked.
func (f *Finalizer) ProcessCommit(subdag consensus.CommittedSubDag, direct bool) []consensus.CommittedSubDag {
	if !f.committee.FastPathEnabled() {
		// Legacy mode: forward unchanged, in order.
		f.lastProcessed = &subdag.CommitRef.Index
		return []consensus.CommittedSubDag{subdag}
	}

	if f.lastProcessed != nil {
		want := *f.lastProcessed + 1
		if subdag.CommitRef.Index != want {
			panic(fmt.Sprintf("commit finalizer: non-contiguous commit index: got %d, want %d", subdag.CommitRef.Index, want))
		}
	}
	idx := subdag.CommitRef.Index
	f.lastProcessed = &idx
	f.commits = append(f.commits, newCommitState(subdag))

	var finalized []consensus.CommittedSubDag

	if direct {
		f.tryDirectFinalize(f.commits[len(f.commits)-1])
		finalized = append(finalized, f.popFinalizedCommits()...)
	}

	// If there are remaining commits, link the newest one into the
	// block graph and try to indirectly finalize a prefix of the
	// buffer. The last (newest) commit can never itself be indirectly
	// finalized within this call.
	if len(f.commits) > 0 {
		newest := f.commits[len(f.commits)-1]
		f.linkBlocks(newest)
		f.inheritRejectVotes(newest)

		n := len(f.commits) - 1
		for i := 0; i < n; i++ {
			if i >= len(f.commits) {
				break
			}
			f.tryIndirectFinalizeCommit(i)
			newly := f.popFinalizedCommits()
			if len(newly) == 0 {
				break
			}
			finalized = append(finalized, newly...)
		}
	}

	// Run certifier GC only with finalized commits; other blocks may
	// still be needed for finalization of what remains buffered.
	if len(finalized) > 0 {
		last := finalized[len(finalized)-1]
		gcRound := saturatingSub(last.Leader.Round, f.committee.GCDepth())
		f.certifier.RunGC(gcRound)
		f.log.Debug("commit finalizer emitted commits", "count", len(finalized), "gcRound", gcRound)
	}

	f.metrics.SetCommitsBuffered(len(f.commits))
	return finalized
}

// tryDirectFinalize finalizes every block of the newest commit (direct
// commits finalize all their blocks by construction) and splits each
// block's transactions into pending/rejected by the current reject-vote
// tally.
func (f *Finalizer) tryDirectFinalize(cs *commitState) {
	pending := cs.pendingBlocks
	cs.pendingBlocks = set.NewSet[consensus.BlockRef](0)
	for _, blockRef := range pending.List() {
		f.splitTransactions(cs, blockRef)
	}
}

// splitTransactions queries the certifier for blockRef's reject-vote
// tally and files each mentioned transaction as pending (below quorum)
// or rejected (at or above quorum). Transactions the certifier never
// mentions are implicitly finalized and need no further tracking.
func (f *Finalizer) splitTransactions(cs *commitState, blockRef consensus.BlockRef) {
	votes, ok := f.certifier.GetRejectVotes(blockRef)
	if !ok {
		panic(fmt.Sprintf("commit finalizer: no vote info for %s; likely gc'ed or failed to be recovered after crash", blockRef))
	}
	threshold := f.committee.QuorumThreshold()
	for txn, stake := range votes {
		if stake < threshold {
			pending := cs.pendingEntry(blockRef)
			pending.Add(txn)
		} else {
			rejected := cs.rejectedEntry(blockRef)
			rejected.Add(txn)
		}
	}
}

// linkBlocks creates a blockState for every block in cs (if absent),
// seeds its explicit reject votes, and links it as a child of each
// ancestor still present in the graph. An ancestor with no state is
// either finalized-and-GC'd or below the GC floor, and is skipped.
func (f *Finalizer) linkBlocks(cs *commitState) {
	blocks := sortedByRoundThenAuthor(cs.commit.Blocks)
	for _, block := range blocks {
		ref := block.Reference()
		bs, ok := f.blocks[ref]
		if !ok {
			bs = newBlockState()
			f.blocks[ref] = bs
		}
		for _, vote := range block.TransactionVotes() {
			rejects := bs.rejectsEntry(vote.Target)
			rejects.Add(vote.Rejects...)
		}
		for _, ancestor := range block.Ancestors() {
			if ancestorState, ok := f.blocks[ancestor]; ok {
				ancestorState.children.Add(ref)
			}
		}
	}
	f.metrics.AddBlocksLinked(len(blocks))
}

// inheritRejectVotes makes same-author inheritance explicit: if block B
// has an ancestor A from the same author, and A carries reject votes, B
// is deemed to repeat them. A is certainly in B's causal past even when
// B does not list the vote targets as direct parents, so counting votes
// later reduces to a per-voter lookup.
func (f *Finalizer) inheritRejectVotes(cs *commitState) {
	blocks := sortedByRoundThenAuthor(cs.commit.Blocks)
	for _, block := range blocks {
		var ownAncestor *consensus.BlockRef
		for _, a := range block.Ancestors() {
			if a.Author == block.Author() {
				a := a
				ownAncestor = &a
				break
			}
		}
		if ownAncestor == nil {
			continue
		}
		ancestorState, ok := f.blocks[*ownAncestor]
		if !ok || len(ancestorState.rejectVotes) == 0 {
			continue
		}
		bs := f.blocks[block.Reference()]
		for target, rejects := range ancestorState.rejectVotes {
			entry := bs.rejectsEntry(target)
			entry.Union(rejects)
		}
	}
}

// tryIndirectFinalizeCommit runs the four indirect-finalization
// substeps against the buffered commit at position index within
// f.commits.
func (f *Finalizer) tryIndirectFinalizeCommit(index int) {
	f.checkPendingTransactions(index)
	f.tryIndirectFinalizePendingBlocks(index)
	f.tryIndirectFinalizePendingTransactions(index)
	f.tryIndirectRejectPendingTransactions(index)
}

// checkPendingTransactions re-queries the certifier for every block
// still carrying pending transactions and moves any that have since
// reached quorum reject-stake into rejected.
func (f *Finalizer) checkPendingTransactions(index int) {
	cs := f.commits[index]
	threshold := f.committee.QuorumThreshold()
	blockRefs := make([]consensus.BlockRef, 0, len(cs.pendingTransactions))
	for ref := range cs.pendingTransactions {
		blockRefs = append(blockRefs, ref)
	}
	for _, blockRef := range blockRefs {
		votes, ok := f.certifier.GetRejectVotes(blockRef)
		if !ok {
			panic(fmt.Sprintf("commit finalizer: no vote info for %s; likely gc'ed or failed to be recovered after crash", blockRef))
		}
		for txn, stake := range votes {
			if stake < threshold {
				continue
			}
			pending, ok := cs.pendingTransactions[blockRef]
			if !ok || !pending.Contains(txn) {
				continue
			}
			pending.Remove(txn)
			if pending.Len() == 0 {
				delete(cs.pendingTransactions, blockRef)
			}
			rejected := cs.rejectedEntry(blockRef)
			rejected.Add(txn)
		}
	}
}

// tryIndirectFinalizePendingBlocks finalizes pending blocks that have
// gathered a quorum of later voters, then splits their transactions the
// same way direct finalization does.
func (f *Finalizer) tryIndirectFinalizePendingBlocks(index int) {
	cs := f.commits[index]
	leaderRound := cs.commit.Leader.Round
	for _, blockRef := range cs.pendingBlocks.List() {
		finalized, _ := f.tryIndirectFinalizeBlock(leaderRound, blockRef, nil)
		if !finalized {
			continue
		}
		cs.pendingBlocks.Remove(blockRef)
		f.splitTransactions(cs, blockRef)
	}
}

// tryIndirectFinalizePendingTransactions runs the accept-vote traversal
// for every block still carrying pending transactions, and removes any
// transaction whose accept-stake reaches quorum.
func (f *Finalizer) tryIndirectFinalizePendingTransactions(index int) {
	cs := f.commits[index]
	leaderRound := cs.commit.Leader.Round
	blockRefs := make([]consensus.BlockRef, 0, len(cs.pendingTransactions))
	for ref := range cs.pendingTransactions {
		blockRefs = append(blockRefs, ref)
	}
	for _, blockRef := range blockRefs {
		txns := cs.pendingTransactions[blockRef]
		acceptVotes := make(map[consensus.TransactionIndex]*stakeagg.Aggregator, txns.Len())
		for _, txn := range txns.List() {
			acceptVotes[txn] = stakeagg.New()
		}
		_, finalizedTxns := f.tryIndirectFinalizeBlock(leaderRound, blockRef, acceptVotes)
		if len(finalizedTxns) == 0 {
			continue
		}
		undecided := cs.pendingTransactions[blockRef]
		for _, t := range finalizedTxns {
			undecided.Remove(t)
		}
		if undecided.Len() == 0 {
			delete(cs.pendingTransactions, blockRef)
		}
	}
}

// tryIndirectRejectPendingTransactions forces any transaction still
// pending in cs once the forced-decision horizon has passed into
// rejectedTransactions, guaranteeing emission liveness.
func (f *Finalizer) tryIndirectRejectPendingTransactions(index int) {
	cs := f.commits[index]
	leaderRound := cs.commit.Leader.Round
	lastLeaderRound := f.commits[len(f.commits)-1].commit.Leader.Round
	if leaderRound+IndirectFinalizeDepth > lastLeaderRound {
		return
	}
	if cs.pendingBlocks.Len() != 0 {
		panic("commit finalizer: pending blocks not empty at forced-decision horizon")
	}
	for blockRef, pending := range cs.pendingTransactions {
		rejected := cs.rejectedEntry(blockRef)
		rejected.Union(pending)
	}
	cs.pendingTransactions = make(map[consensus.BlockRef]set.Set[consensus.TransactionIndex])
}

// tryIndirectFinalizeBlock traverses forward from blockRef through the
// link graph, visiting only voters within (blockRef.Round,
// leaderRound+VoteDepth], aggregating distinct-author stake towards
// quorum and, for every transaction index present in acceptVotes,
// counting a voter as an accept vote unless that voter's (inherited)
// reject set names the transaction. It returns whether blockRef itself
// reached quorum, and which requested transactions reached quorum.
// Traversal order does not affect the outcome: all accumulators are
// set-based.
func (f *Finalizer) tryIndirectFinalizeBlock(
	leaderRound consensus.Round,
	blockRef consensus.BlockRef,
	acceptVotes map[consensus.TransactionIndex]*stakeagg.Aggregator,
) (bool, []consensus.TransactionIndex) {
	horizon := leaderRound + VoteDepth
	root, ok := f.blocks[blockRef]
	if !ok {
		panic(fmt.Sprintf("commit finalizer: block %s missing from link graph", blockRef))
	}

	var finalizedTransactions []consensus.TransactionIndex
	toVisit := make([]consensus.BlockRef, 0, root.children.Len())
	for _, child := range root.children.List() {
		if child.Round <= horizon {
			toVisit = append(toVisit, child)
		}
	}
	visited := set.NewSet[consensus.BlockRef](0)
	visitedStake := stakeagg.New()

	for len(toVisit) > 0 {
		v := toVisit[len(toVisit)-1]
		toVisit = toVisit[:len(toVisit)-1]
		if visited.Contains(v) {
			continue
		}
		visited.Add(v)
		visitedStake.Add(v.Author, f.committee)

		visitState, ok := f.blocks[v]
		if !ok {
			panic(fmt.Sprintf("commit finalizer: block %s missing from link graph", v))
		}
		rejectedByVisitor := visitState.rejectVotes[blockRef]

		var newlyFinalized []consensus.TransactionIndex
		for idx, agg := range acceptVotes {
			if rejectedByVisitor.Contains(idx) {
				continue
			}
			if !agg.Add(v.Author, f.committee) {
				continue
			}
			newlyFinalized = append(newlyFinalized, idx)
			finalizedTransactions = append(finalizedTransactions, idx)
		}
		for _, idx := range newlyFinalized {
			delete(acceptVotes, idx)
		}

		if visitedStake.Reached(f.committee) && len(acceptVotes) == 0 {
			break
		}

		for _, child := range visitState.children.List() {
			if child.Round <= horizon && !visited.Contains(child) {
				toVisit = append(toVisit, child)
			}
		}
	}

	return visitedStake.Reached(f.committee), finalizedTransactions
}

// popFinalizedCommits pops commits from the front of the buffer while
// they have no pending blocks or transactions, filling in their final
// rejected-transaction annotations before returning them.
func (f *Finalizer) popFinalizedCommits() []consensus.CommittedSubDag {
	var out []consensus.CommittedSubDag
	for len(f.commits) > 0 {
		front := f.commits[0]
		if !front.isFinalized() {
			break
		}
		f.commits = f.commits[1:]

		commit := front.commit
		if commit.RejectedTransactionsByBlock == nil {
			commit.RejectedTransactionsByBlock = make(map[consensus.BlockRef][]consensus.TransactionIndex, len(front.rejectedTransactions))
		}
		rejectedCount := 0
		for blockRef, txns := range front.rejectedTransactions {
			commit.RejectedTransactionsByBlock[blockRef] = txns.List()
			rejectedCount += txns.Len()
		}
		out = append(out, commit)
		f.metrics.AddCommitsEmitted(1)
		f.metrics.AddTransactionsRejected(rejectedCount)
	}
	return out
}

// sortedByRoundThenAuthor returns blocks sorted ascending by round, with
// a stable tie-break by author, the order linking and inheritance run in.
func sortedByRoundThenAuthor(blocks []consensus.Block) []consensus.Block {
	sorted := make([]consensus.Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		bi, bj := sorted[i], sorted[j]
		if bi.Round() != bj.Round() {
			return bi.Round() < bj.Round()
		}
		return bi.Author().String() < bj.Author().String()
	})
	return sorted
}

// saturatingSub returns a-b, floored at zero.
func saturatingSub(a, b consensus.Round) consensus.Round {
	if b >= a {
		return 0
	}
	return a - b
}
