// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package certifier defines the transaction certifier interface the
// finalizer consumes, plus an in-memory reference implementation. The
// certifier records a per-transaction tally of reject-vote stake for
// every known block, and is responsible for its own garbage collection.
package certifier

import (
	"sync"

	"github.com/luxfi/commitfinalizer/consensus"
)

// TransactionCertifier tallies reject-vote stake per transaction, per
// block. GetRejectVotes must be thread-safe: the finalizer calls it from
// its single task, but the certifier is shared with upstream components
// that write to it concurrently.
type TransactionCertifier interface {
	// GetRejectVotes returns the reject-vote stake tally for every
	// transaction of block that has at least one reject vote. ok is
	// false if the block is unknown, GC'd, or its state was not
	// recovered after a crash — the finalizer treats that as fatal if
	// it still references the block.
	GetRejectVotes(block consensus.BlockRef) (votes map[consensus.TransactionIndex]consensus.Stake, ok bool)
	// RunGC drops voting state for blocks strictly below round. It must
	// be idempotent and monotone: round never decreases across calls
	// from the finalizer, and may repeat.
	RunGC(round consensus.Round)
}

// MemCertifier is a simple in-memory TransactionCertifier. It is the
// reference double used by finalizer tests and is adequate as a
// standalone certifier for a single-process deployment.
type MemCertifier struct {
	mu      sync.RWMutex
	tallies map[consensus.BlockRef]map[consensus.TransactionIndex]consensus.Stake
	gcFloor consensus.Round
}

// NewMemCertifier returns an empty certifier.
func NewMemCertifier() *MemCertifier {
	return &MemCertifier{
		tallies: make(map[consensus.BlockRef]map[consensus.TransactionIndex]consensus.Stake),
	}
}

// SetRejectVotes records the known block and its reject-vote tally
// (possibly empty, meaning "no sub-quorum reject stake ever observed").
// It is the test/production write path the real vote-aggregation
// component (out of scope here) would drive.
func (c *MemCertifier) SetRejectVotes(block consensus.BlockRef, votes map[consensus.TransactionIndex]consensus.Stake) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if block.Round < c.gcFloor {
		return
	}
	cp := make(map[consensus.TransactionIndex]consensus.Stake, len(votes))
	for k, v := range votes {
		cp[k] = v
	}
	c.tallies[block] = cp
}

// GetRejectVotes implements TransactionCertifier.
func (c *MemCertifier) GetRejectVotes(block consensus.BlockRef) (map[consensus.TransactionIndex]consensus.Stake, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	votes, ok := c.tallies[block]
	if !ok {
		return nil, false
	}
	cp := make(map[consensus.TransactionIndex]consensus.Stake, len(votes))
	for k, v := range votes {
		cp[k] = v
	}
	return cp, true
}

// RunGC implements TransactionCertifier.
func (c *MemCertifier) RunGC(round consensus.Round) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if round <= c.gcFloor {
		return
	}
	c.gcFloor = round
	for ref := range c.tallies {
		if ref.Round < round {
			delete(c.tallies, ref)
		}
	}
}

// GCFloor returns the current GC floor, for test assertions.
func (c *MemCertifier) GCFloor() consensus.Round {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gcFloor
}
