// Package mapping implements the learned source→target cache the
// statement parser and email extractor consult to improve future
// matches.
package mapping

import (
	"errors"
	"time"
)

// Type partitions mappings by what they translate.
type Type string

const (
	TypeProductNames  Type = "productNames"
	TypeEmailSupplier Type = "emailSupplier"
	TypeEmailProduct  Type = "emailProduct"
)

// Mapping is one learned source→target record. Source is lowercased
// and trimmed; (Type, Source) is the natural key.
type Mapping struct {
	ID         string         `json:"id"`
	Type       Type           `json:"mappingType"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	TargetID   string         `json:"targetId,omitempty"`
	Confidence int            `json:"confidence"`
	UsageCount int            `json:"usageCount"`
	Relevance  float64        `json:"relevance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	LastUsed   time.Time      `json:"lastUsed"`
	CreatedAt  time.Time      `json:"createdAt"`
}

const (
	// populationCeiling caps records per mapping type; exceeding it
	// triggers a prune of never-used records before insert.
	populationCeiling = 500
	// confidenceFloor is the lowest confidence an unstable mapping
	// can decay to.
	confidenceFloor = 60
	// stableUsageCount marks a mapping as established: target changes
	// past this usage no longer decay confidence.
	stableUsageCount = 3
)

// ErrNotFound indicates no mapping exists for the key.
var ErrNotFound = errors.New("mapping: not found")

// ErrDuplicate indicates an insert hit an existing (type, source) key,
// which happens when two upserts of a new source race.
var ErrDuplicate = errors.New("mapping: duplicate source")
