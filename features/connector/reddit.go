package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulsewire/features/source"
	"pulsewire/internal/config"
)

// RedditConnector reads a subreddit's public "new" listing as JSON.
type RedditConnector struct {
	client    *http.Client
	userAgent string
}

func NewRedditConnector(cfg *config.Config) *RedditConnector {
	return &RedditConnector{
		client:    &http.Client{Timeout: time.Duration(cfg.IngestionTimeoutSeconds) * time.Second},
		userAgent: cfg.RedditUserAgent,
	}
}

func (c *RedditConnector) SourceType() string { return "reddit" }

func (c *RedditConnector) FetchLatest(ctx context.Context, src source.Source, limit int) ([]RawItem, error) {
	subreddit := strings.TrimPrefix(strings.TrimSpace(src.ExternalRef), "r/")
	if limit > 100 {
		limit = 100
	}

	endpoint := fmt.Sprintf("https://www.reddit.com/r/%s/new.json", url.PathEscape(subreddit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{SourceID: src.ID, Err: err}
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{SourceID: src.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{SourceID: src.ID, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var listing struct {
		Data struct {
			Children []struct {
				Data RawItem `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, &FetchError{SourceID: src.ID, Err: err}
	}

	posts := make([]RawItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func (c *RedditConnector) Validate(raw RawItem) bool {
	return len(raw) > 0
}

func (c *RedditConnector) Normalize(src source.Source, raw RawItem) (*NormalizedItem, error) {
	permalink := stringField(raw, "permalink")
	postURL := stringField(raw, "url_overridden_by_dest")
	if postURL == "" {
		postURL = "https://reddit.com" + permalink
	}

	externalID := stringField(raw, "id")
	if externalID == "" {
		externalID = postURL
	}
	title := stringField(raw, "title")
	if title == "" {
		title = "Untitled"
	}

	return NewNormalizedItem(NormalizedItem{
		SourceID:    src.ID,
		SourceType:  src.SourceType,
		SourceName:  src.Name,
		ExternalID:  externalID,
		Author:      stringField(raw, "author"),
		Title:       title,
		Body:        stringField(raw, "selftext"),
		URL:         postURL,
		PublishedAt: ParseTimestamp(raw["created_utc"]),
		Engagement: map[string]int{
			"upvotes":  intField(raw, "ups"),
			"comments": intField(raw, "num_comments"),
		},
		CategoryCandidates: src.CategoryHints,
		RawPayload:         raw,
	}), nil
}
