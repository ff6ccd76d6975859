// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/commitfinalizer/certifier"
	"github.com/luxfi/commitfinalizer/committee"
	"github.com/luxfi/commitfinalizer/consensus"
	"github.com/luxfi/commitfinalizer/finalizer/dagtest"
)

// fixture bundles a Finalizer with its committee, certifier, and DAG
// builder for the four-authority, equal-stake committee used throughout
// these tests (quorum threshold 3).
type fixture struct {
	t         *testing.T
	committee *committee.Static
	certifier *certifier.MemCertifier
	builder   *dagtest.Builder
	finalizer *Finalizer
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithGCDepth(t, 10)
}

func newFixtureWithGCDepth(t *testing.T, gcDepth consensus.Round) *fixture {
	b := dagtest.NewBuilder(4)
	stakes := make(map[consensus.AuthorityId]consensus.Stake, 4)
	for _, a := range b.Authorities {
		stakes[a] = 1
	}
	com := committee.New(stakes, gcDepth, true)
	cert := certifier.NewMemCertifier()

	// The certifier starts empty: each test seeds the blocks it commits
	// (seedEmpty/seedVotes) so GetRejectVotes never sees an unknown block.
	return &fixture{
		t:         t,
		committee: com,
		certifier: cert,
		builder:   b,
		finalizer: New(com, cert),
	}
}

func (f *fixture) seedEmpty(blocks ...*dagtest.Block) {
	for _, b := range blocks {
		f.certifier.SetRejectVotes(b.Reference(), map[consensus.TransactionIndex]consensus.Stake{})
	}
}

func (f *fixture) seedVotes(ref consensus.BlockRef, votes map[consensus.TransactionIndex]consensus.Stake) {
	f.certifier.SetRejectVotes(ref, votes)
}

// A direct commit with no reject votes anywhere is emitted immediately
// and untouched.
func TestDirectFinalizeNoRejectVotes(t *testing.T) {
	f := newFixture(t)
	f.builder.AddRound()
	f.builder.AddRound()
	leader := f.builder.BlockAt(2, 0)

	commit := f.builder.Commit(leader)
	for _, blk := range commit.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}

	out := f.finalizer.ProcessCommit(commit, true)
	require.Len(t, out, 1)
	require.Equal(t, commit.CommitRef, out[0].CommitRef)
	require.Empty(t, out[0].RejectedTransactionsByBlock)
}

// Indirect commits only become emittable once enough later voters are
// buffered: the first commit emits on the third input, the second on
// the fourth, and the rest stay buffered.
func TestIndirectFinalizeChain(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.builder.AddRound()
	}

	leaders := []*dagtest.Block{
		f.builder.BlockAt(2, 0),
		f.builder.BlockAt(3, 0),
		f.builder.BlockAt(4, 0),
		f.builder.BlockAt(5, 0),
	}
	commits := make([]consensus.CommittedSubDag, len(leaders))
	for i, leader := range leaders {
		commits[i] = f.builder.Commit(leader)
		for _, blk := range commits[i].Blocks {
			f.seedEmpty(blk.(*dagtest.Block))
		}
	}

	out := f.finalizer.ProcessCommit(commits[0], false)
	require.Empty(t, out)

	out = f.finalizer.ProcessCommit(commits[1], false)
	require.Empty(t, out)

	out = f.finalizer.ProcessCommit(commits[2], false)
	require.Len(t, out, 1)
	require.Equal(t, commits[0].CommitRef, out[0].CommitRef)

	out = f.finalizer.ProcessCommit(commits[3], true)
	require.Len(t, out, 1)
	require.Equal(t, commits[1].CommitRef, out[0].CommitRef)
}

// A transaction whose reject-vote stake reaches quorum at direct
// finalization time is carried as rejected in the emission; the rest of
// the block's transactions are implicitly finalized.
func TestDirectCommitTransactionRejectByQuorum(t *testing.T) {
	f := newFixture(t)
	f.builder.AddRound()
	f.builder.AddRound()
	leader := f.builder.BlockAt(2, 0)

	commit := f.builder.Commit(leader)
	for _, blk := range commit.Blocks {
		b := blk.(*dagtest.Block)
		if b.Reference() == leader.Reference() {
			f.seedVotes(b.Reference(), map[consensus.TransactionIndex]consensus.Stake{1: 3})
			continue
		}
		f.seedEmpty(b)
	}

	out := f.finalizer.ProcessCommit(commit, true)
	require.Len(t, out, 1)
	require.Equal(t, []consensus.TransactionIndex{1}, out[0].RejectedTransactionsByBlock[leader.Reference()])
}

// TestIndirectTransactionAccept: three of four round-(L+1)
// blocks do not reject t, the fourth does; t is removed from pending once
// the accept-stake of 3 is gathered.
func TestIndirectTransactionAccept(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.builder.AddRound()
	}
	leader := f.builder.BlockAt(2, 0) // L_i, round 2

	const t0 consensus.TransactionIndex = 7
	f.seedVotes(leader.Reference(), map[consensus.TransactionIndex]consensus.Stake{t0: 1}) // below quorum: stays pending

	round3 := []*dagtest.Block{
		f.builder.BlockAt(3, 0),
		f.builder.BlockAt(3, 1),
		f.builder.BlockAt(3, 2),
		f.builder.BlockAt(3, 3),
	}
	round3[0].SetVotes(dagtest.Vote(leader.Reference(), t0)) // rejects t0
	// the other three round-3 blocks say nothing about t0, so they accept it

	c1 := f.builder.Commit(leader)
	for _, blk := range c1.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}
	// the loop above overwrote the leader's pending vote with an empty tally; restore it
	f.seedVotes(leader.Reference(), map[consensus.TransactionIndex]consensus.Stake{t0: 1})

	c2 := f.builder.Commit(f.builder.BlockAt(3, 1))
	for _, blk := range c2.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}

	c3 := f.builder.Commit(f.builder.BlockAt(4, 0))
	for _, blk := range c3.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}

	require.Empty(t, f.finalizer.ProcessCommit(c1, false))
	require.Empty(t, f.finalizer.ProcessCommit(c2, false))
	out := f.finalizer.ProcessCommit(c3, false)
	require.Len(t, out, 1)
	require.Equal(t, c1.CommitRef, out[0].CommitRef)
	require.Empty(t, out[0].RejectedTransactionsByBlock)
}

// TestForcedIndirectReject: a pending transaction that
// never gathers an accept or reject quorum is force-rejected once the
// forced-decision horizon passes.
//
// Two of the four round-2 voters explicitly reject t0, capping
// achievable accept-stake at 2 (authors 0 and 1) forever within the
// fixed horizon, so t0 can never be indirectly accepted and must
// eventually be force-rejected.
func TestForcedIndirectReject(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.builder.AddRound()
	}
	leader := f.builder.BlockAt(1, 0) // L_i, round 1

	const t0 consensus.TransactionIndex = 3
	f.seedVotes(leader.Reference(), map[consensus.TransactionIndex]consensus.Stake{t0: 1})

	f.builder.BlockAt(2, 2).SetVotes(dagtest.Vote(leader.Reference(), t0))
	f.builder.BlockAt(2, 3).SetVotes(dagtest.Vote(leader.Reference(), t0))

	c1 := f.builder.Commit(leader)
	for _, blk := range c1.Blocks {
		if blk.Reference() == leader.Reference() {
			continue
		}
		f.seedEmpty(blk.(*dagtest.Block))
	}

	require.Empty(t, f.finalizer.ProcessCommit(c1, false))

	// Drive leader rounds forward until the forced-decision horizon
	// (leader.round + IndirectFinalizeDepth) passes for c1.
	var finalized []consensus.CommittedSubDag
	for round := consensus.Round(2); round <= 4; round++ {
		c := f.builder.Commit(f.builder.BlockAt(round, 0))
		for _, blk := range c.Blocks {
			f.seedEmpty(blk.(*dagtest.Block))
		}
		finalized = append(finalized, f.finalizer.ProcessCommit(c, false)...)
	}

	require.NotEmpty(t, finalized)
	require.Equal(t, c1.CommitRef, finalized[0].CommitRef)
	require.Contains(t, finalized[0].RejectedTransactionsByBlock[leader.Reference()], t0)
}

// TestRejectVoteInheritance: an author's later block with
// no explicit votes still counts as rejecting, via inheritance from its
// own-author ancestor. Authors 2 and 3 explicitly reject t0 at round 2;
// their round-3 children carry no explicit votes and must inherit the
// rejection rather than wrongly count as accepts, capping achievable
// accept-stake at 2 forever and forcing t0 to eventual rejection.
func TestRejectVoteInheritance(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.builder.AddRound()
	}
	leader := f.builder.BlockAt(2, 0) // commit leader, round 2
	target := f.builder.BlockAt(1, 1) // T, a non-leader ancestor

	const t0 consensus.TransactionIndex = 9
	f.seedVotes(target.Reference(), map[consensus.TransactionIndex]consensus.Stake{t0: 1})

	f.builder.BlockAt(2, 2).SetVotes(dagtest.Vote(target.Reference(), t0))
	f.builder.BlockAt(2, 3).SetVotes(dagtest.Vote(target.Reference(), t0))
	// Round-3 children of authors 2 and 3 carry no explicit votes; they
	// must inherit the round-2 rejection instead of defaulting to accept.

	c1 := f.builder.Commit(leader)
	for _, blk := range c1.Blocks {
		if blk.Reference() == target.Reference() {
			continue
		}
		f.seedEmpty(blk.(*dagtest.Block))
	}

	var finalized []consensus.CommittedSubDag
	finalized = append(finalized, f.finalizer.ProcessCommit(c1, false)...)
	for round := consensus.Round(3); round <= 5; round++ {
		c := f.builder.Commit(f.builder.BlockAt(round, 0))
		for _, blk := range c.Blocks {
			f.seedEmpty(blk.(*dagtest.Block))
		}
		finalized = append(finalized, f.finalizer.ProcessCommit(c, false)...)
	}

	require.NotEmpty(t, finalized)
	require.Equal(t, c1.CommitRef, finalized[0].CommitRef)
	require.Contains(t, finalized[0].RejectedTransactionsByBlock[target.Reference()], t0)
}

func TestProcessCommitRejectsNonContiguousIndex(t *testing.T) {
	f := newFixture(t)
	f.builder.AddRound()
	f.builder.AddRound()
	leader := f.builder.BlockAt(2, 0)
	commit := f.builder.Commit(leader)
	for _, blk := range commit.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}
	f.finalizer.ProcessCommit(commit, true)

	bogus := commit
	bogus.CommitRef.Index += 5
	require.Panics(t, func() {
		f.finalizer.ProcessCommit(bogus, true)
	})
}

// TestEmissionTriggersCertifierGC checks that a call emitting at least
// one commit invokes certifier GC at the last emitted leader's round
// minus the gc depth, saturating at zero.
func TestEmissionTriggersCertifierGC(t *testing.T) {
	f := newFixtureWithGCDepth(t, 1)
	f.builder.AddRound()
	f.builder.AddRound()
	commit := f.builder.Commit(f.builder.BlockAt(2, 0))
	for _, blk := range commit.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}

	out := f.finalizer.ProcessCommit(commit, true)
	require.Len(t, out, 1)
	require.Equal(t, consensus.Round(1), f.certifier.GCFloor())
}

func TestEmissionGCSaturatesAtZero(t *testing.T) {
	f := newFixtureWithGCDepth(t, 10)
	f.builder.AddRound()
	f.builder.AddRound()
	commit := f.builder.Commit(f.builder.BlockAt(2, 0))
	for _, blk := range commit.Blocks {
		f.seedEmpty(blk.(*dagtest.Block))
	}

	out := f.finalizer.ProcessCommit(commit, true)
	require.Len(t, out, 1)
	require.Equal(t, consensus.Round(0), f.certifier.GCFloor())
}

func TestProcessCommitLegacyPassthrough(t *testing.T) {
	b := dagtest.NewBuilder(4)
	stakes := make(map[consensus.AuthorityId]consensus.Stake, 4)
	for _, a := range b.Authorities {
		stakes[a] = 1
	}
	com := committee.New(stakes, 10, false)
	fin := New(com, certifier.NewMemCertifier())

	b.AddRound()
	b.AddRound()
	leader := b.BlockAt(2, 0)
	commit := b.Commit(leader)

	out := fin.ProcessCommit(commit, false)
	require.Len(t, out, 1)
	require.Equal(t, commit, out[0])
}
