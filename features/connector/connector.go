package connector

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"pulsewire/features/source"
)

// RawItem is one opaque record as produced by a connector fetch. Connectors
// flatten their native entry types into this shape so the raw payload can be
// persisted as JSON and re-normalized uniformly.
type RawItem map[string]interface{}

// FetchError marks a transport or parse failure while fetching a source.
// The pipeline treats it as "zero items this run", never as a crash.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for source %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizationError marks a malformed payload or an intentionally
// unimplemented connector variant. The offending item is skipped.
type NormalizationError struct {
	SourceType string
	Reason     string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize %s item: %s", e.SourceType, e.Reason)
}

// Connector adapts one source type into normalized items.
type Connector interface {
	SourceType() string
	FetchLatest(ctx context.Context, src source.Source, limit int) ([]RawItem, error)
	Validate(raw RawItem) bool
	Normalize(src source.Source, raw RawItem) (*NormalizedItem, error)
}

// NormalizedItem is the canonical envelope produced from one raw record.
// It lives only within a single pipeline pass; the persisted form is
// item.CanonicalItem.
type NormalizedItem struct {
	SourceID           string
	SourceType         string
	SourceName         string
	ExternalID         string
	Author             string
	Title              string
	Body               string
	URL                string
	PublishedAt        time.Time
	FetchedAt          time.Time
	Language           string
	Engagement         map[string]int
	CategoryCandidates []string
	RawPayload         RawItem

	// Derived once at construction, both persisted: ContentHash detects
	// byte-identical re-fetches, DedupeKey detects same-resource
	// re-ingestion even when the text changed.
	ContentHash string
	DedupeKey   string
}

// NewNormalizedItem fills the derived fingerprints and defaults.
func NewNormalizedItem(it NormalizedItem) *NormalizedItem {
	if it.Language == "" {
		it.Language = "en"
	}
	if it.Engagement == nil {
		it.Engagement = map[string]int{}
	}
	if it.FetchedAt.IsZero() {
		it.FetchedAt = time.Now().UTC()
	}

	it.ContentHash = hashOf(strings.ToLower(strings.TrimSpace(it.Title + "\n" + it.Body + "\n" + it.URL)))

	key := strings.ToLower(strings.TrimSpace(it.URL))
	if key == "" {
		key = it.SourceType + ":" + it.ExternalID
	}
	it.DedupeKey = hashOf(key)

	return &it
}

func hashOf(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%x", sum)
}

func stringField(raw RawItem, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func intField(raw RawItem, key string) int {
	switch v := raw[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
