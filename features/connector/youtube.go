package connector

import (
	"context"

	"github.com/mmcdole/gofeed"

	"pulsewire/features/source"
	"pulsewire/internal/config"
)

// YouTubeConnector reads channel upload feeds, which are Atom with a
// yt:videoId extension per entry.
type YouTubeConnector struct {
	parser *gofeed.Parser
}

func NewYouTubeConnector(cfg *config.Config) *YouTubeConnector {
	return &YouTubeConnector{parser: newFeedParser(cfg)}
}

func (c *YouTubeConnector) SourceType() string { return "youtube" }

func (c *YouTubeConnector) FetchLatest(ctx context.Context, src source.Source, limit int) ([]RawItem, error) {
	return fetchFeedEntries(ctx, c.parser, src, limit)
}

func (c *YouTubeConnector) Validate(raw RawItem) bool {
	return len(raw) > 0
}

func (c *YouTubeConnector) Normalize(src source.Source, raw RawItem) (*NormalizedItem, error) {
	url := stringField(raw, "link")
	if url == "" {
		url = src.URL
	}
	externalID := stringField(raw, "yt_videoid")
	if externalID == "" {
		externalID = url
	}
	title := stringField(raw, "title")
	if title == "" {
		title = "Untitled"
	}

	var published interface{} = stringField(raw, "published")
	if published == "" {
		published = stringField(raw, "updated")
	}

	return NewNormalizedItem(NormalizedItem{
		SourceID:           src.ID,
		SourceType:         src.SourceType,
		SourceName:         src.Name,
		ExternalID:         externalID,
		Author:             stringField(raw, "author"),
		Title:              title,
		Body:               stripMarkup(stringField(raw, "summary")),
		URL:                url,
		PublishedAt:        ParseTimestamp(published),
		CategoryCandidates: src.CategoryHints,
		RawPayload:         raw,
	}), nil
}
