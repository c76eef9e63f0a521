package mesh

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

const (
	// SearchResultCap caps the returned result buffer.
	SearchResultCap = 100

	// searchDeadline bounds the wall-clock cost of a full-channel scan.
	searchDeadline = 5 * time.Second
)

// SearchScanner performs bounded case-insensitive substring search over a
// channel's full log.
type SearchScanner struct {
	log    store.Log
	logger zerolog.Logger

	// deadline is overridable in tests.
	deadline time.Duration
}

// NewSearchScanner creates a search scanner over the given log.
func NewSearchScanner(log store.Log, logger zerolog.Logger) *SearchScanner {
	return &SearchScanner{log: log, logger: logger, deadline: searchDeadline}
}

// Search scans channel for entries whose text contains query
// (case-insensitive). total counts every match; results holds at most
// SearchResultCap of them, sorted ascending by timestamp. truncated is true
// when the cap was hit or the scan deadline elapsed before the log was
// exhausted.
func (s *SearchScanner) Search(ctx context.Context, channel, query string) (results []models.Envelope, total int, truncated bool) {
	if query == "" {
		return []models.Envelope{}, 0, false
	}
	needle := strings.ToLower(query)
	start := time.Now()

	results = make([]models.Envelope, 0, 16)
	err := s.log.Replay(ctx, ChannelSubject(channel), func(data []byte) bool {
		if time.Since(start) > s.deadline {
			truncated = true
			return false
		}
		env, err := models.DecodeEnvelope(data)
		if err != nil {
			return true
		}
		if !strings.Contains(strings.ToLower(env.Content.Text), needle) {
			return true
		}
		total++
		if len(results) < SearchResultCap {
			results = append(results, env)
		} else {
			truncated = true
		}
		return true
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("channel", channel).Msg("search scan failed, serving empty result")
		return []models.Envelope{}, 0, false
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp < results[j].Timestamp
	})
	return results, total, truncated
}
