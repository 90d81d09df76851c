package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"pulsewire/internal/middleware"
)

// Consumer executes queued ingestion runs. The NSQ channel is configured
// with concurrency 1 upstream, which is what enforces the
// single-writer-per-run assumption.
type Consumer struct {
	service *Service
}

func NewConsumer(service *Service) *Consumer {
	return &Consumer{service: service}
}

func (c *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task IngestTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		slog.Error("invalid ingest task, dropping", "error", err)
		return nil // malformed messages are never retryable
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	slog.InfoContext(ctx, "ingestion run starting", "job_id", task.JobID, "source_types", task.SourceTypes)
	result, err := c.service.Run(ctx, task.SourceTypes)
	if err != nil {
		slog.ErrorContext(ctx, "ingestion run failed", "job_id", task.JobID, "error", err)
		return err // let the runner redeliver
	}

	slog.InfoContext(ctx, "ingestion run completed",
		"job_id", task.JobID,
		"fetched", result.FetchedCount,
		"normalized", result.NormalizedCount,
		"clustered", result.ClusteredCount,
	)
	return nil
}
