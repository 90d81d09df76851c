package config

const (
	// TopicPipelineIngest is the NSQ topic carrying ingestion run requests.
	TopicPipelineIngest = "pipeline.ingest"

	// ChannelBackend is the consumer channel for the backend process.
	ChannelBackend = "backend"
)
