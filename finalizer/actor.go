// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizer

import (
	"context"
	"sync"

	"github.com/luxfi/commitfinalizer/consensus"
)

// commitRequest is one inbound item: a committed sub-DAG together with
// whether the outer protocol decided it directly.
type commitRequest struct {
	subdag consensus.CommittedSubDag
	direct bool
}

// Handle is the single entry point for feeding commits into a Finalizer
// running on its own task. Send never blocks: the mailbox is unbounded,
// since the upstream linearizer never waits for backpressure.
type Handle struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []commitRequest
	closed bool
}

// NewHandle returns a Handle with an empty mailbox.
func NewHandle() *Handle {
	h := &Handle{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Send enqueues subdag for processing. It is a no-op once Close has been
// called.
func (h *Handle) Send(subdag consensus.CommittedSubDag, direct bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.queue = append(h.queue, commitRequest{subdag: subdag, direct: direct})
	h.cond.Signal()
}

// Close stops future Sends from being accepted and wakes a blocked Run
// loop so it can observe shutdown.
func (h *Handle) Close() {
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

// next blocks until a request is available or the handle is closed with
// an empty queue.
func (h *Handle) next() (commitRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.queue) == 0 && !h.closed {
		h.cond.Wait()
	}
	if len(h.queue) == 0 {
		return commitRequest{}, false
	}
	req := h.queue[0]
	h.queue = h.queue[1:]
	return req, true
}

// Run drives f from h's mailbox until ctx is canceled or h is closed,
// writing every emitted commit to out in order. ctx cancellation aborts
// a blocked send to out rather than the finalizer tracking a separate
// stop signal; a downstream that stops reading therefore shuts the task
// down without retries.
func Run(ctx context.Context, f *Finalizer, h *Handle, out chan<- consensus.CommittedSubDag) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			h.Close()
		case <-stop:
		}
	}()

	for {
		req, ok := h.next()
		if !ok {
			f.log.Debug("commit finalizer mailbox closed, exiting")
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		finalized := f.ProcessCommit(req.subdag, req.direct)
		for _, commit := range finalized {
			select {
			case out <- commit:
			case <-ctx.Done():
				return
			}
		}
	}
}
