// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging provides the no-op log.Logger used as the finalizer's
// default when a caller does not supply one.
package logging

import (
	"github.com/luxfi/log"
)

// NoOp is a no-op implementation of log.Logger.
type NoOp struct {
	log.Logger
}

// Default returns a logger that discards everything.
func Default() log.Logger { return NoOp{Logger: log.Noop()} }
