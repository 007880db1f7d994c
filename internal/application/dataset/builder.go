// Package dataset implements the DatasetBuilder of §4.7: quality-gated
// upsert of LearningSample rows for downstream training.
package dataset

import (
	"context"
	"time"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// Mode selects incremental (skip already-materialized) vs full (overwrite)
// dataset builds.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFull        Mode = "full"
)

// Reason is a closed set of hard-gate failure reasons recorded when a sample
// is not created.
type Reason string

const (
	ReasonNoSnapshot         Reason = "NO_SNAPSHOT"
	ReasonNoTrendValidation  Reason = "NO_TREND_VALIDATION"
	ReasonNoAttributionLink  Reason = "NO_ATTRIBUTION_LINK"
	ReasonAlreadyMaterialized Reason = "ALREADY_MATERIALIZED"
)

// Store is the persistence contract for learning samples.
type Store interface {
	HasSample(ctx context.Context, sampleID string) (bool, error)
	Upsert(ctx context.Context, sample ranking.LearningSample) error
}

// Input is everything the builder needs to evaluate one sample's gates.
type Input struct {
	SnapshotID string
	Horizon    ranking.Horizon
	Entity     ranking.Entity

	Trend *ranking.TrendValidation // nil if absent
	Link  *ranking.AttributionOutcomeLink // nil if absent
	Drift ranking.DriftLevel

	Features map[string]float64
	Labels   map[string]float64

	IncludeCriticalDrift bool
}

// Builder upserts LearningSamples under the hard/soft quality gates.
type Builder struct {
	store Store
}

// New constructs a Builder.
func New(store Store) *Builder {
	return &Builder{store: store}
}

// Build evaluates one sample's gates and, if the hard gates pass and the
// sample isn't already materialized under incremental mode, upserts it.
// It returns the created/updated sample (nil if hard gates failed) and the
// failure reason (empty if none).
func (b *Builder) Build(ctx context.Context, mode Mode, in Input, now time.Time) (*ranking.LearningSample, Reason, error) {
	if in.SnapshotID == "" {
		return nil, ReasonNoSnapshot, nil
	}
	if in.Trend == nil {
		return nil, ReasonNoTrendValidation, nil
	}
	if in.Link == nil {
		return nil, ReasonNoAttributionLink, nil
	}

	sampleID := in.SnapshotID + ":" + string(in.Horizon)

	if mode == ModeIncremental {
		exists, err := b.store.HasSample(ctx, sampleID)
		if err != nil {
			return nil, "", err
		}
		if exists {
			return nil, ReasonAlreadyMaterialized, nil
		}
	}

	trainEligible := true
	var reasons []string
	if in.Drift == ranking.DriftCritical && !in.IncludeCriticalDrift {
		trainEligible = false
		reasons = append(reasons, "drift_critical")
	}

	sample := ranking.LearningSample{
		SampleID:       sampleID,
		SnapshotID:     in.SnapshotID,
		Horizon:        in.Horizon,
		Entity:         in.Entity,
		Features:       in.Features,
		Labels:         in.Labels,
		TrainEligible:  trainEligible,
		QualityReasons: reasons,
		Drift:          in.Drift,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := b.store.Upsert(ctx, sample); err != nil {
		return nil, "", err
	}
	return &sample, "", nil
}
