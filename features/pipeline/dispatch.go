package pipeline

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"pulsewire/internal/config"
	"pulsewire/internal/middleware"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// IngestTask is the NSQ payload requesting one ingestion run.
type IngestTask struct {
	JobID         string   `json:"job_id"`
	SourceTypes   []string `json:"source_types,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// Dispatcher queues ingestion runs on the job runner. The runner gives
// at-least-once delivery; the pipeline itself never retries.
type Dispatcher struct {
	pub EventPublisher
}

func NewDispatcher(pub EventPublisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

// Enqueue publishes a run request and returns an opaque job id. When the
// publisher is unavailable the caller is expected to fall back to a
// synchronous Service.Run.
func (d *Dispatcher) Enqueue(ctx context.Context, sourceTypes []string) (string, error) {
	// Tasks enqueued outside a request get a fresh correlation id so the
	// consumer never logs a sentinel value.
	correlationID, ok := middleware.LookupCorrelationID(ctx)
	if !ok {
		correlationID = uuid.New().String()
	}
	task := IngestTask{
		JobID:         uuid.New().String(),
		SourceTypes:   sourceTypes,
		CorrelationID: correlationID,
	}
	body, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	if err := d.pub.Publish(config.TopicPipelineIngest, body); err != nil {
		return "", err
	}
	return task.JobID, nil
}
