// Package discovery hosts the Source/Sink capability pair that feeds
// Intent values into the engine's inbox. Discovery never interprets a
// payload's contents: it carries bytes from a source (an on-chain log
// feed, an off-chain API poll) to the engine, tagged with the
// order-standard that knows how to decode them.
package discovery

import (
	"context"

	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/intent-solver/domain/intent"
)

// Source runs until ctx is cancelled, pushing every Intent it discovers
// into the given Sink. Run must return promptly once ctx is done; it
// must never block forever on a full Sink.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// Sink accepts a discovered Intent. Implementations that front a bounded
// queue (see BoundedSink) must not block indefinitely: a source that
// cannot enqueue within a small timeout is expected to drop the item,
// log it, and continue with the next one rather than stall the whole
// feed.
type Sink interface {
	Offer(ctx context.Context, i intent.Intent) error
}

// Decoder turns a standard-specific on-chain payload (an event log's
// topics/data) into the opaque bytes an Intent carries. Discovery holds
// a Decoder by reference rather than importing any concrete
// order-standard package, keeping this package standard-agnostic; the
// wiring that supplies a real Decoder lives in system/bootstrap.
type Decoder func(log gethtypes.Log) ([]byte, error)
