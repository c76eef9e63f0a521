package mesh

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

const (
	// historyScanCap bounds how many candidate entries one page scan reads
	// off the log, so very long channels cannot blow up memory.
	historyScanCap = 5000

	// DefaultPageLimit and MaxPageLimit bound the page size.
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// HistoryReader serves paginated backward scans of a channel's log.
type HistoryReader struct {
	log    store.Log
	logger zerolog.Logger
}

// NewHistoryReader creates a history reader over the given log.
func NewHistoryReader(log store.Log, logger zerolog.Logger) *HistoryReader {
	return &HistoryReader{log: log, logger: logger}
}

// Page returns up to limit messages with timestamp < before (all messages
// when before is zero), sorted ascending by timestamp, and whether strictly
// more qualifying messages exist. History is a convenience: any log failure
// degrades to an empty page, never an error.
func (h *HistoryReader) Page(ctx context.Context, channel string, before float64, limit int) ([]models.Envelope, bool) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	candidates := make([]models.Envelope, 0, 64)
	err := h.log.Replay(ctx, ChannelSubject(channel), func(data []byte) bool {
		env, err := models.DecodeEnvelope(data)
		if err != nil {
			return true
		}
		candidates = append(candidates, env)
		return len(candidates) < historyScanCap
	})
	if err != nil {
		h.logger.Debug().Err(err).Str("channel", channel).Msg("history scan failed, serving empty page")
		return []models.Envelope{}, false
	}

	// Log delivery order is not temporal order; sort before windowing.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp < candidates[j].Timestamp
	})

	filtered := candidates
	if before > 0 {
		cut := sort.Search(len(candidates), func(i int) bool {
			return candidates[i].Timestamp >= before
		})
		filtered = candidates[:cut]
	}

	hasMore := len(filtered) > limit
	if hasMore {
		filtered = filtered[len(filtered)-limit:]
	}

	page := make([]models.Envelope, len(filtered))
	copy(page, filtered)
	return page, hasMore
}
