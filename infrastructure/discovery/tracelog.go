package discovery

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/R3E-Network/intent-solver/domain/intent"
)

// TraceLog emits one structured line per intent as it is discovered,
// seen again as a duplicate, or dropped, and one per poll cycle. This is the one hot-path spot in the tree that
// reaches for zerolog instead of pkg/logger: at steady on-chain block
// rates this fires far more often than anything logrus's reflection-
// based field encoding is built for, and zerolog's zero-allocation
// field chain keeps it cheap enough to leave enabled in production.
type TraceLog struct {
	logger zerolog.Logger
}

// NewTraceLog builds a TraceLog writing to w (os.Stdout in production,
// a buffer in tests).
func NewTraceLog(w io.Writer) TraceLog {
	if w == nil {
		w = os.Stdout
	}
	return TraceLog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Discovered records a freshly discovered intent crossing into the
// inbox.
func (t TraceLog) Discovered(i intent.Intent) {
	t.logger.Info().
		Str("event", "discovered").
		Str("intent_id", i.ID).
		Str("source", string(i.Source)).
		Str("standard", i.Standard).
		Time("discovered_at", i.DiscoveredAt).
		Msg("intent discovered")
}

// Dropped records an intent that never made it into the inbox.
func (t TraceLog) Dropped(i intent.Intent, reason string) {
	t.logger.Warn().
		Str("event", "dropped").
		Str("intent_id", i.ID).
		Str("source", string(i.Source)).
		Str("reason", reason).
		Msg("intent dropped")
}

// Duplicate records an intent id the engine already held, so a later
// source copy never double-enters.
func (t TraceLog) Duplicate(id string, source intent.Source) {
	t.logger.Debug().
		Str("event", "duplicate").
		Str("intent_id", id).
		Str("source", string(source)).
		Msg("intent id already known")
}

// PollCycle records one source poll sweep's cost, for tuning poll
// intervals against observed chain/API latency.
func (t TraceLog) PollCycle(sourceName string, found int, took time.Duration) {
	t.logger.Debug().
		Str("event", "poll_cycle").
		Str("source", sourceName).
		Int("found", found).
		Dur("took", took).
		Msg("discovery poll cycle completed")
}
