package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborview/backoffice/internal/email"
	"github.com/harborview/backoffice/internal/ingest"
)

// NewEmailPollHandler returns the handler for TaskEmailPoll. Each pass
// lists notification messages matching query and runs the extraction
// pipeline on them. Soft outcomes (unknown supplier, no invoice) are
// logged and skipped; infrastructure failures fail the task so asynq
// retries it.
func NewEmailPollHandler(source email.Source, invoices *ingest.InvoiceService, query string, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload EmailPollPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.MaxMessages <= 0 {
			payload.MaxMessages = 10
		}

		ids, err := source.ListMessages(ctx, query, payload.MaxMessages)
		if err != nil {
			return err
		}
		for _, id := range ids {
			result, err := invoices.ProcessNotification(ctx, id, 0)
			if err != nil {
				return err
			}
			if result.Message != "" {
				logger.Info("notification skipped",
					slog.String("message_id", id),
					slog.String("reason", result.Message))
				continue
			}
			logger.Info("notification processed",
				slog.String("message_id", id),
				slog.String("supplier", result.ExtractedSupplier),
				slog.Int("items", len(result.ParsedData.Products)))
		}
		return nil
	}
}
