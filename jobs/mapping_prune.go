package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborview/backoffice/internal/mapping"
)

// NewMappingPruneHandler returns the handler for TaskMappingPrune. It
// drops never-used records for every mapping type whose population hit
// the ceiling.
func NewMappingPruneHandler(service *mapping.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		for _, typ := range []mapping.Type{
			mapping.TypeProductNames,
			mapping.TypeEmailSupplier,
			mapping.TypeEmailProduct,
		} {
			pruned, err := service.Prune(ctx, typ)
			if err != nil {
				return err
			}
			if pruned > 0 {
				logger.Info("mappings pruned",
					slog.String("type", string(typ)),
					slog.Int64("count", pruned))
			}
		}
		return nil
	}
}
