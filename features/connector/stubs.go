package connector

import (
	"context"

	"pulsewire/features/source"
)

// TwitterConnector and DiscordConnector are deliberate placeholders: they
// fetch nothing and always fail normalization, so a misconfigured source
// is observably unimplemented instead of silently empty.

type TwitterConnector struct{}

func NewTwitterConnector() *TwitterConnector { return &TwitterConnector{} }

func (c *TwitterConnector) SourceType() string { return "twitter" }

func (c *TwitterConnector) FetchLatest(_ context.Context, _ source.Source, _ int) ([]RawItem, error) {
	return []RawItem{}, nil
}

func (c *TwitterConnector) Validate(raw RawItem) bool { return len(raw) > 0 }

func (c *TwitterConnector) Normalize(_ source.Source, _ RawItem) (*NormalizedItem, error) {
	return nil, &NormalizationError{SourceType: "twitter", Reason: "connector is a placeholder"}
}

type DiscordConnector struct{}

func NewDiscordConnector() *DiscordConnector { return &DiscordConnector{} }

func (c *DiscordConnector) SourceType() string { return "discord" }

func (c *DiscordConnector) FetchLatest(_ context.Context, _ source.Source, _ int) ([]RawItem, error) {
	return []RawItem{}, nil
}

func (c *DiscordConnector) Validate(raw RawItem) bool { return len(raw) > 0 }

func (c *DiscordConnector) Normalize(_ source.Source, _ RawItem) (*NormalizedItem, error) {
	return nil, &NormalizationError{SourceType: "discord", Reason: "connector is a placeholder"}
}
