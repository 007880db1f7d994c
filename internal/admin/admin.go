// Package admin implements the admin surface contract of spec.md §6: state
// queries and configuration toggles, gated by the single freeze invariant the
// spec keeps in scope. Runs are triggered by the CLI's run subcommands, not
// by this package.
package admin

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/pipelineerr"
)

// AuditEvent records one admin mutation, accepted or rejected.
type AuditEvent struct {
	At       time.Time
	Actor    string
	Action   string
	Accepted bool
	Reason   string
}

// Surface is the process-wide mutable registry of module-level config
// (freeze status, decay constants, …), initialized at startup and updated
// only through this contract (§5 Shared-resource policy, §6).
type Surface struct {
	mu    sync.RWMutex
	cfg   config.Config
	log   zerolog.Logger
	audit []AuditEvent
}

// New initializes the registry with a startup configuration.
func New(initial config.Config, log zerolog.Logger) *Surface {
	return &Surface{cfg: initial, log: log}
}

// Snapshot returns a copy of the current configuration for read-only callers.
func (s *Surface) Snapshot() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Audit returns a copy of the audit log.
func (s *Surface) Audit() []AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEvent, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *Surface) record(actor, action string, accepted bool, reason string) {
	s.audit = append(s.audit, AuditEvent{At: time.Now().UTC(), Actor: actor, Action: action, Accepted: accepted, Reason: reason})
}

// guardFrozen rejects a write when the freeze flag is ACTIVE. Caller must
// hold s.mu for writing.
func (s *Surface) guardFrozen(actor, action string) error {
	if s.cfg.Freeze == config.FreezeActive {
		s.record(actor, action, false, "rejected: freeze active")
		s.log.Warn().Str("actor", actor).Str("action", action).Msg("admin write rejected by freeze")
		return pipelineerr.New(pipelineerr.KindPolicyViolation, "admin", fmt.Errorf("%s rejected: freeze active", action))
	}
	return nil
}

// SetConfidenceWeights updates the confidence-scorer weights. Rejected while frozen.
func (s *Surface) SetConfidenceWeights(actor string, w config.ConfidenceWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardFrozen(actor, "set_confidence_weights"); err != nil {
		return err
	}
	s.cfg.ConfidenceWeights = w
	s.record(actor, "set_confidence_weights", true, "")
	return nil
}

// SetRuleThresholds updates the per-window rule thresholds. Rejected while frozen.
func (s *Surface) SetRuleThresholds(actor, window string, rt config.RuleThresholds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardFrozen(actor, "set_rule_thresholds"); err != nil {
		return err
	}
	if s.cfg.RuleThresholds == nil {
		s.cfg.RuleThresholds = map[string]config.RuleThresholds{}
	}
	s.cfg.RuleThresholds[window] = rt
	s.record(actor, "set_rule_thresholds:"+window, true, "")
	return nil
}

// SetRankingConfig updates ranking weights/caps. Rejected while frozen.
func (s *Surface) SetRankingConfig(actor string, rc config.RankingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardFrozen(actor, "set_ranking_config"); err != nil {
		return err
	}
	s.cfg.Ranking = rc
	s.record(actor, "set_ranking_config", true, "")
	return nil
}

// SetFreeze toggles the freeze flag itself. This write is always accepted —
// the invariant governs everything else — but is itself an audited event
// (§6: "Deactivating the freeze is itself an audited event").
func (s *Surface) SetFreeze(actor string, state config.FreezeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Freeze = state
	s.record(actor, fmt.Sprintf("set_freeze:%s", state), true, "")
	s.log.Info().Str("actor", actor).Str("state", string(state)).Msg("freeze state changed")
}
