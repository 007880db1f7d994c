package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

// SignalRepo implements lifecycle.Store: exactly one live record per
// signalKey, upserted by key. Upsert overwrites the stored lifecycle fields
// unconditionally; it does not compare-and-set against the prior state.
type SignalRepo struct {
	db *sqlx.DB
}

// NewSignalRepo constructs a SignalRepo.
func NewSignalRepo(db *sqlx.DB) *SignalRepo {
	return &SignalRepo{db: db}
}

type signalRow struct {
	SignalKey               string    `db:"signal_key"`
	Type                    string    `db:"type"`
	Severity                string    `db:"severity"`
	Scope                   string    `db:"scope"`
	Window                  string    `db:"window"`
	EntitiesJSON            []byte    `db:"entities_json"`
	SummaryJSON             []byte    `db:"summary_json"`
	EvidenceJSON            []byte    `db:"evidence_json"`
	ConfidenceScore         float64   `db:"confidence_score"`
	Label                   string    `db:"label"`
	TraceJSON               []byte    `db:"trace_json"`
	Lifecycle               string    `db:"lifecycle"`
	SnapshotsWithoutTrigger int       `db:"snapshots_without_trigger"`
	FirstTriggeredAt        time.Time `db:"first_triggered_at"`
	LastTriggeredAt         time.Time `db:"last_triggered_at"`
	ResolveReason           string    `db:"resolve_reason"`
	CreatedAt               time.Time `db:"created_at"`
	UpdatedAt               time.Time `db:"updated_at"`
}

// Get returns the signal for a key, or nil if none exists.
func (r *SignalRepo) Get(ctx context.Context, key signals.SignalKey) (*signals.Signal, error) {
	var row signalRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM signals WHERE signal_key = $1`, string(key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rowToSignal(row)
}

// Upsert writes a signal, overwriting any prior lifecycle state for the same
// key. The caller (LifecycleManager) is the sole authority on lifecycle
// transitions; this adapter performs no transition logic of its own.
func (r *SignalRepo) Upsert(ctx context.Context, sig signals.Signal) error {
	row, err := signalToRow(sig)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO signals (signal_key, type, severity, scope, window, entities_json, summary_json, evidence_json,
			confidence_score, label, trace_json, lifecycle, snapshots_without_trigger, first_triggered_at,
			last_triggered_at, resolve_reason, created_at, updated_at)
		VALUES (:signal_key, :type, :severity, :scope, :window, :entities_json, :summary_json, :evidence_json,
			:confidence_score, :label, :trace_json, :lifecycle, :snapshots_without_trigger, :first_triggered_at,
			:last_triggered_at, :resolve_reason, :created_at, :updated_at)
		ON CONFLICT (signal_key) DO UPDATE SET
			severity = EXCLUDED.severity,
			entities_json = EXCLUDED.entities_json,
			summary_json = EXCLUDED.summary_json,
			evidence_json = EXCLUDED.evidence_json,
			confidence_score = EXCLUDED.confidence_score,
			label = EXCLUDED.label,
			trace_json = EXCLUDED.trace_json,
			lifecycle = EXCLUDED.lifecycle,
			snapshots_without_trigger = EXCLUDED.snapshots_without_trigger,
			last_triggered_at = EXCLUDED.last_triggered_at,
			resolve_reason = EXCLUDED.resolve_reason,
			updated_at = EXCLUDED.updated_at`, row)
	return err
}

// ListLive returns every ACTIVE or COOLDOWN signal for a window.
func (r *SignalRepo) ListLive(ctx context.Context, window string) ([]signals.Signal, error) {
	var rows []signalRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM signals WHERE window = $1 AND lifecycle IN ('ACTIVE', 'COOLDOWN')`, window)
	if err != nil {
		return nil, err
	}
	out := make([]signals.Signal, 0, len(rows))
	for _, row := range rows {
		sig, err := rowToSignal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, nil
}

func signalToRow(sig signals.Signal) (signalRow, error) {
	entities, err := json.Marshal(sig.Entities)
	if err != nil {
		return signalRow{}, err
	}
	summary, err := json.Marshal(sig.Summary)
	if err != nil {
		return signalRow{}, err
	}
	evidence, err := json.Marshal(sig.Evidence)
	if err != nil {
		return signalRow{}, err
	}
	trace, err := json.Marshal(sig.Trace)
	if err != nil {
		return signalRow{}, err
	}
	return signalRow{
		SignalKey:               string(sig.SignalKey),
		Type:                    string(sig.Type),
		Severity:                string(sig.Severity),
		Scope:                   string(sig.Scope),
		Window:                  sig.Window,
		EntitiesJSON:            entities,
		SummaryJSON:             summary,
		EvidenceJSON:            evidence,
		ConfidenceScore:         sig.ConfidenceScore,
		Label:                   string(sig.Label),
		TraceJSON:               trace,
		Lifecycle:               string(sig.Lifecycle),
		SnapshotsWithoutTrigger: sig.SnapshotsWithoutTrigger,
		FirstTriggeredAt:        sig.FirstTriggeredAt,
		LastTriggeredAt:         sig.LastTriggeredAt,
		ResolveReason:           sig.ResolveReason,
		CreatedAt:               sig.CreatedAt,
		UpdatedAt:               sig.UpdatedAt,
	}, nil
}

func rowToSignal(row signalRow) (*signals.Signal, error) {
	var entities []string
	if err := json.Unmarshal(row.EntitiesJSON, &entities); err != nil {
		return nil, err
	}
	var summary signals.Summary
	if err := json.Unmarshal(row.SummaryJSON, &summary); err != nil {
		return nil, err
	}
	var evidence signals.Evidence
	if err := json.Unmarshal(row.EvidenceJSON, &evidence); err != nil {
		return nil, err
	}
	var trace signals.Trace
	if err := json.Unmarshal(row.TraceJSON, &trace); err != nil {
		return nil, err
	}
	return &signals.Signal{
		SignalKey:               signals.SignalKey(row.SignalKey),
		Type:                    signals.RuleType(row.Type),
		Severity:                signals.Severity(row.Severity),
		Scope:                   signals.Scope(row.Scope),
		Window:                  row.Window,
		Entities:                entities,
		Summary:                 summary,
		Evidence:                evidence,
		ConfidenceScore:         row.ConfidenceScore,
		Label:                   signals.Label(row.Label),
		Trace:                   trace,
		Lifecycle:               signals.Lifecycle(row.Lifecycle),
		SnapshotsWithoutTrigger: row.SnapshotsWithoutTrigger,
		FirstTriggeredAt:        row.FirstTriggeredAt,
		LastTriggeredAt:         row.LastTriggeredAt,
		ResolveReason:           row.ResolveReason,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.UpdatedAt,
	}, nil
}
