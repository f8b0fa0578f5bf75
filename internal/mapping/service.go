package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists mappings.
type Repository interface {
	Find(ctx context.Context, typ Type, source string) (Mapping, error)
	Insert(ctx context.Context, m Mapping) error
	Update(ctx context.Context, m Mapping) error
	CountByType(ctx context.Context, typ Type) (int, error)
	DeleteUnused(ctx context.Context, typ Type) (int64, error)
	SearchTokens(ctx context.Context, typ Type, tokens []string, limit int) ([]Mapping, error)
	ListConfirmed(ctx context.Context, typ Type, minConfidence, minUsage int) ([]Mapping, error)
}

// Service implements the smart-mapping operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// NormalizeSource lowercases and trims a source key.
func NormalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

// Find performs an exact-match lookup on the normalized source.
func (s *Service) Find(ctx context.Context, typ Type, source string) (Mapping, error) {
	return s.repo.Find(ctx, typ, NormalizeSource(source))
}

// UpsertInput carries creation defaults supplied by the caller.
type UpsertInput struct {
	Type       Type
	Source     string
	Target     string
	TargetID   string
	Metadata   map[string]any
	Confidence int
	UsageCount int
}

// Upsert records an observed mapping. Reuse increments usage; a target
// change on a not-yet-established mapping decays confidence by 10 down
// to the floor. New records trigger a prune of never-used rows when
// the type's population is at the ceiling.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (Mapping, error) {
	source := NormalizeSource(input.Source)
	if source == "" || input.Target == "" {
		return Mapping{}, fmt.Errorf("mapping: source and target required")
	}
	now := s.now()

	existing, err := s.repo.Find(ctx, input.Type, source)
	if err == nil {
		return s.refreshExisting(ctx, existing, input, now)
	}
	if err != ErrNotFound {
		return Mapping{}, err
	}

	count, err := s.repo.CountByType(ctx, input.Type)
	if err != nil {
		return Mapping{}, err
	}
	if count >= populationCeiling {
		pruned, err := s.repo.DeleteUnused(ctx, input.Type)
		if err != nil {
			return Mapping{}, err
		}
		if s.logger != nil {
			s.logger.Info("pruned unused mappings",
				slog.String("type", string(input.Type)),
				slog.Int64("pruned", pruned))
		}
	}

	record := Mapping{
		ID:         uuid.NewString(),
		Type:       input.Type,
		Source:     source,
		Target:     input.Target,
		TargetID:   input.TargetID,
		Confidence: input.Confidence,
		UsageCount: input.UsageCount,
		Metadata:   input.Metadata,
		LastUsed:   now,
		CreatedAt:  now,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		// Lost an insert race on the (type, source) key; the winner's
		// record is the one to refresh.
		if errors.Is(err, ErrDuplicate) {
			existing, findErr := s.repo.Find(ctx, input.Type, source)
			if findErr != nil {
				return Mapping{}, findErr
			}
			return s.refreshExisting(ctx, existing, input, now)
		}
		return Mapping{}, err
	}
	return record, nil
}

// refreshExisting applies an observation to an already-stored mapping:
// reuse increments usage; a target change on a not-yet-established
// mapping decays confidence by 10 down to the floor.
func (s *Service) refreshExisting(ctx context.Context, existing Mapping, input UpsertInput, now time.Time) (Mapping, error) {
	if input.Target != existing.Target {
		existing.Target = input.Target
		existing.TargetID = input.TargetID
		if existing.UsageCount < stableUsageCount {
			existing.Confidence -= 10
			if existing.Confidence < confidenceFloor {
				existing.Confidence = confidenceFloor
			}
		}
	}
	existing.UsageCount++
	existing.LastUsed = now
	existing.Metadata = mergeMetadata(existing.Metadata, input.Metadata)
	if err := s.repo.Update(ctx, existing); err != nil {
		return Mapping{}, err
	}
	return existing, nil
}

// Suggest returns candidate mappings for a source. An exact match
// short-circuits to a singleton; otherwise records containing any
// word token longer than two characters are returned, ordered by the
// repository's relevance then usage.
func (s *Service) Suggest(ctx context.Context, typ Type, source string, maxResults int) ([]Mapping, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	normalized := NormalizeSource(source)
	exact, err := s.repo.Find(ctx, typ, normalized)
	if err == nil {
		return []Mapping{exact}, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	var tokens []string
	for _, word := range strings.Fields(normalized) {
		if len(word) > 2 {
			tokens = append(tokens, word)
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return s.repo.SearchTokens(ctx, typ, tokens, maxResults)
}

// AutoConfirmed returns well-established mappings as a source→record
// lookup so the caller can skip human confirmation for them.
func (s *Service) AutoConfirmed(ctx context.Context, typ Type, confidenceThreshold, minUsage int) (map[string]Mapping, error) {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 85
	}
	if minUsage <= 0 {
		minUsage = stableUsageCount
	}
	records, err := s.repo.ListConfirmed(ctx, typ, confidenceThreshold, minUsage)
	if err != nil {
		return nil, err
	}
	confirmed := make(map[string]Mapping, len(records))
	for _, m := range records {
		confirmed[m.Source] = m
	}
	return confirmed, nil
}

// Prune deletes never-used records of a type. Exposed for the
// background maintenance job.
func (s *Service) Prune(ctx context.Context, typ Type) (int64, error) {
	count, err := s.repo.CountByType(ctx, typ)
	if err != nil {
		return 0, err
	}
	if count < populationCeiling {
		return 0, nil
	}
	return s.repo.DeleteUnused(ctx, typ)
}

func mergeMetadata(existing, incoming map[string]any) map[string]any {
	if len(incoming) == 0 {
		return existing
	}
	if existing == nil {
		existing = make(map[string]any, len(incoming))
	}
	for k, v := range incoming {
		existing[k] = v
	}
	return existing
}
