package connector

import "pulsewire/internal/config"

// Registry maps a source type discriminant to its connector. An unknown
// discriminant means the source is skipped, not an error.
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{connectors: map[string]Connector{}}
	r.Register(NewRSSConnector(cfg))
	r.Register(NewRedditConnector(cfg))
	r.Register(NewYouTubeConnector(cfg))
	r.Register(NewTwitterConnector())
	r.Register(NewDiscordConnector())
	return r
}

func (r *Registry) Register(c Connector) {
	r.connectors[c.SourceType()] = c
}

func (r *Registry) Lookup(sourceType string) (Connector, bool) {
	c, ok := r.connectors[sourceType]
	return c, ok
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.connectors))
	for t := range r.connectors {
		types = append(types, t)
	}
	return types
}
