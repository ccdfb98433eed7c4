package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/pkg/logger"
)

// offchainIntentDTO is the wire shape returned by a quoting/off-chain
// API feed: an already-opaque payload plus the metadata Discovery needs
// to build an Intent, with no standard-specific interpretation.
type offchainIntentDTO struct {
	ID       string `json:"id"`
	Standard string `json:"standard"`
	Payload  []byte `json:"payload"`
	QuoteID  string `json:"quote_id"`
}

// HTTPPollSourceConfig configures the off-chain API discovery channel.
type HTTPPollSourceConfig struct {
	Client       *http.Client
	Endpoint     string
	PollInterval time.Duration
	Trace        TraceLog
}

// HTTPPollSource polls a single HTTP endpoint on an interval, expecting
// a JSON array of offchainIntentDTO, and emits one Intent per entry not
// already seen in this process's lifetime.
type HTTPPollSource struct {
	cfg  HTTPPollSourceConfig
	seen map[string]struct{}
	log  *logger.Logger
}

// NewHTTPPollSource builds an HTTPPollSource against cfg.Endpoint.
func NewHTTPPollSource(cfg HTTPPollSourceConfig, log *logger.Logger) *HTTPPollSource {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("discovery.httppoll")
	}
	return &HTTPPollSource{cfg: cfg, seen: make(map[string]struct{}), log: log}
}

// Run implements Source.
func (s *HTTPPollSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pollOnce(ctx, sink)
		}
	}
}

func (s *HTTPPollSource) pollOnce(ctx context.Context, sink Sink) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint, nil)
	if err != nil {
		s.log.WithError(err).Warn("discovery: failed to build off-chain poll request")
		return
	}

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		s.log.WithError(err).Warn("discovery: off-chain poll request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).Warn("discovery: off-chain poll returned non-200")
		return
	}

	var entries []offchainIntentDTO
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		s.log.WithError(err).Warn("discovery: failed to decode off-chain poll response")
		return
	}

	found := 0
	for _, e := range entries {
		if _, ok := s.seen[e.ID]; ok {
			s.cfg.Trace.Duplicate(e.ID, intent.SourceOffChain)
			continue
		}
		s.seen[e.ID] = struct{}{}
		found++

		discovered := intent.Intent{
			ID:            e.ID,
			Source:        intent.SourceOffChain,
			Standard:      e.Standard,
			DiscoveredAt:  time.Now().UTC(),
			Payload:       e.Payload,
			QuoteID:       e.QuoteID,
			SchemaVersion: intent.CurrentSchemaVersion,
		}
		s.cfg.Trace.Discovered(discovered)

		if err := sink.Offer(ctx, discovered); err != nil {
			return
		}
	}

	s.cfg.Trace.PollCycle(fmt.Sprintf("offchain:%s", s.cfg.Endpoint), found, time.Since(started))
}
