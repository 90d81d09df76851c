package connector

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"pulsewire/features/source"
	"pulsewire/internal/config"
)

// RSSConnector handles plain RSS and Atom feeds.
type RSSConnector struct {
	parser *gofeed.Parser
}

func NewRSSConnector(cfg *config.Config) *RSSConnector {
	return &RSSConnector{parser: newFeedParser(cfg)}
}

func newFeedParser(cfg *config.Config) *gofeed.Parser {
	fp := gofeed.NewParser()
	fp.UserAgent = cfg.FeedUserAgent
	fp.Client = &http.Client{Timeout: time.Duration(cfg.IngestionTimeoutSeconds) * time.Second}
	return fp
}

func (c *RSSConnector) SourceType() string { return "rss" }

func (c *RSSConnector) FetchLatest(ctx context.Context, src source.Source, limit int) ([]RawItem, error) {
	return fetchFeedEntries(ctx, c.parser, src, limit)
}

func (c *RSSConnector) Validate(raw RawItem) bool {
	return len(raw) > 0
}

func (c *RSSConnector) Normalize(src source.Source, raw RawItem) (*NormalizedItem, error) {
	title := stringField(raw, "title")
	if title == "" {
		title = "Untitled"
	}
	url := stringField(raw, "link")
	if url == "" {
		url = src.URL
	}
	externalID := stringField(raw, "id")
	if externalID == "" {
		externalID = url
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

func fetchFeedEntries(ctx context.Context, parser *gofeed.Parser, src source.Source, limit int) ([]RawItem, error) {
	feed, err := parser.ParseURLWithContext(src.ExternalRef, ctx)
	if err != nil {
		return nil, &FetchError{SourceID: src.ID, Err: err}
	}

	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	raws := make([]RawItem, 0, len(items))
	for _, it := range items {
		raws = append(raws, feedEntryToRaw(it))
	}
	return raws, nil
}

func feedEntryToRaw(it *gofeed.Item) RawItem {
	raw := RawItem{
		"id":        it.GUID,
		"title":     it.Title,
		"summary":   it.Description,
		"link":      it.Link,
		"published": it.Published,
		"updated":   it.Updated,
	}
	if it.Author != nil {
		raw["author"] = it.Author.Name
	}
	if it.PublishedParsed != nil {
		raw["published"] = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if yt := feedExtension(it, "yt", "videoId"); yt != "" {
		raw["yt_videoid"] = yt
	}
	return raw
}

func feedExtension(it *gofeed.Item, namespace, name string) string {
	if exts, ok := it.Extensions[namespace]; ok {
		if values, ok := exts[name]; ok && len(values) > 0 {
			return values[0].Value
		}
	}
	return ""
}

// stripMarkup flattens the HTML fragments feeds put in entry summaries
// down to their text content.
func stripMarkup(body string) string {
	if !strings.Contains(body, "<") {
		return strings.TrimSpace(body)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(doc.Text())
}
