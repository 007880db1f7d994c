// Package config is the yaml-backed configuration surface enumerated in
// spec.md §6, loaded from one YAML file by a single Load(path) rather than
// one constructor per surface.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfidenceWeights are the fixed weights of the five confidence subscores
// (§4.4). The defaults sum to 1.0; Sum reports the total, and Load does not
// check it.
type ConfidenceWeights struct {
	Coverage float64 `yaml:"coverage"`
	Actors   float64 `yaml:"actors"`
	Flow     float64 `yaml:"flow"`
	Temporal float64 `yaml:"temporal"`
	Evidence float64 `yaml:"evidence"`
}

// DefaultConfidenceWeights returns the weights fixed by §4.4.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{Coverage: 0.30, Actors: 0.25, Flow: 0.20, Temporal: 0.15, Evidence: 0.10}
}

func (w ConfidenceWeights) Sum() float64 {
	return w.Coverage + w.Actors + w.Flow + w.Temporal + w.Evidence
}

// ConfidenceThresholds are the strictly increasing label boundaries
// HIDDEN<LOW<MEDIUM<HIGH (§4.4, §6).
type ConfidenceThresholds struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// DefaultConfidenceThresholds mirrors the label ladder implied by §8's
// scenario 2 (raw score 71 -> MEDIUM).
func DefaultConfidenceThresholds() ConfidenceThresholds {
	return ConfidenceThresholds{Low: 40, Medium: 60, High: 80}
}

func (t ConfidenceThresholds) Validate() error {
	if !(t.Low < t.Medium && t.Medium < t.High) {
		return fmt.Errorf("confidence thresholds must be strictly increasing, got low=%v medium=%v high=%v", t.Low, t.Medium, t.High)
	}
	return nil
}

// RuleThresholds are the per-window detector thresholds (§4.3, §6).
type RuleThresholds struct {
	MinDensity          int     `yaml:"min_density"`
	HighDensity         int     `yaml:"high_density"`
	MinWeight           float64 `yaml:"min_weight"`
	MinConfidence       float64 `yaml:"min_confidence"`
	HighConfidence      float64 `yaml:"high_confidence"`
	CoverageRequired    float64 `yaml:"coverage_required"`
	MinPrevForSpike     int     `yaml:"min_prev_for_spike"`
	MinSpikeRatio       float64 `yaml:"min_spike_ratio"`
	HighSpikeRatio      float64 `yaml:"high_spike_ratio"`
	HighDensityCurrent  int     `yaml:"high_density_current"`
	MinImbalanceRatio   float64 `yaml:"min_imbalance_ratio"`
	MinNetFlowUSD       float64 `yaml:"min_net_flow_usd"`
	MinTotalFlowUSD     float64 `yaml:"min_total_flow_usd"`
	MinBridgeSync       float64 `yaml:"min_bridge_sync"`
	MaxSignalsPerRun    int     `yaml:"max_signals_per_run"`
}

// DefaultRuleThresholds returns conservative production defaults.
func DefaultRuleThresholds() RuleThresholds {
	return RuleThresholds{
		MinDensity:         10,
		HighDensity:        40,
		MinWeight:          0.5,
		MinConfidence:      0.7,
		HighConfidence:     0.85,
		CoverageRequired:   0.6,
		MinPrevForSpike:    5,
		MinSpikeRatio:      0.5,
		HighSpikeRatio:     1.5,
		HighDensityCurrent: 40,
		MinImbalanceRatio:  0.6,
		MinNetFlowUSD:      50_000,
		MinTotalFlowUSD:    100_000,
		MinBridgeSync:      0.7,
		MaxSignalsPerRun:   200,
	}
}

// RankingConfig holds the RankingEngine's weights and caps (§4.6).
type RankingConfig struct {
	WeightMarketCap      float64 `yaml:"weight_market_cap"`
	WeightVolume         float64 `yaml:"weight_volume"`
	WeightMomentum       float64 `yaml:"weight_momentum"`
	WeightEngine         float64 `yaml:"weight_engine"`
	WeightActorSignal    float64 `yaml:"weight_actor_signal"`
	EngineCap            float64 `yaml:"engine_cap"`       // +/-15 from neutral
	ActorSignalCap       float64 `yaml:"actor_signal_cap"` // +/-20
	BuyScoreMin          float64 `yaml:"buy_score_min"`
	BuyConfidenceMin     float64 `yaml:"buy_confidence_min"`
	BuyRiskMax           float64 `yaml:"buy_risk_max"`
	SellScoreMax         float64 `yaml:"sell_score_max"`
	SellRiskMin          float64 `yaml:"sell_risk_min"`
	WatchThreshold       float64 `yaml:"watch_threshold"` // score floor below which a BUY must downgrade when engine contribution is removed
}

// DefaultRankingConfig mirrors §4.6's formula and bucket thresholds.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		WeightMarketCap:   0.20,
		WeightVolume:      0.15,
		WeightMomentum:    0.15,
		WeightEngine:      0.30,
		WeightActorSignal: 0.20,
		EngineCap:         15,
		ActorSignalCap:    20,
		BuyScoreMin:       60,
		BuyConfidenceMin:  50,
		BuyRiskMax:        45,
		SellScoreMax:      40,
		SellRiskMin:       60,
		WatchThreshold:    40,
	}
}

// LifecycleConfig holds the state machine's N/M run counts and decay
// half-life (§4.5, §6, Open Questions in §9).
type LifecycleConfig struct {
	CooldownAfterRuns int     `yaml:"cooldown_after_runs"` // N
	ResolveAfterRuns  int     `yaml:"resolve_after_runs"`  // M further runs
	MinConfidence     float64 `yaml:"min_confidence"`      // NEW->ACTIVE gate
	DecayHalfLifeHrs  float64 `yaml:"decay_half_life_hours"`
}

// DefaultLifecycleConfig resolves the Open Question in §9: a single decay
// function exp(-ln2*Δt/τ) with τ=72h, reconciled across the source's two
// differing half-life constants.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		CooldownAfterRuns: 3,
		ResolveAfterRuns:  4,
		MinConfidence:     40,
		DecayHalfLifeHrs:  72,
	}
}

// ClusterPolicy is the cluster-confirmation policy (§4.4 P2.B, §6, §9).
type ClusterPolicy struct {
	MinClusters            int     `yaml:"min_clusters"`
	MaxDominance           float64 `yaml:"max_dominance"`
	RequireSourceDiversity bool    `yaml:"require_source_diversity"`
}

// DefaultClusterPolicy resolves the §9 Open Question: minClusters=2,
// maxDominance=0.8, requireSourceDiversity=true.
func DefaultClusterPolicy() ClusterPolicy {
	return ClusterPolicy{MinClusters: 2, MaxDominance: 0.8, RequireSourceDiversity: true}
}

// Config is the root configuration document, loaded from a single YAML file
// by Load. There are no per-surface loaders.
type Config struct {
	ConfidenceWeights    ConfidenceWeights         `yaml:"confidence_weights"`
	ConfidenceThresholds ConfidenceThresholds      `yaml:"confidence_thresholds"`
	RuleThresholds       map[string]RuleThresholds `yaml:"rule_thresholds"` // keyed by window
	Ranking              RankingConfig             `yaml:"ranking"`
	Lifecycle            LifecycleConfig           `yaml:"lifecycle"`
	ClusterPolicy        ClusterPolicy             `yaml:"cluster_policy"`

	// Freeze is the global admin-surface invariant (§6): while ACTIVE, writes
	// to weights/thresholds/caps must be rejected.
	Freeze FreezeState `yaml:"freeze"`
}

// FreezeState is the "Production Freeze"/"Micro-Freeze" policy layer's one
// invariant in scope here (§1, §6).
type FreezeState string

const (
	FreezeInactive FreezeState = "INACTIVE"
	FreezeActive   FreezeState = "ACTIVE"
)

// Default returns a fully-populated default configuration.
func Default() Config {
	return Config{
		ConfidenceWeights:    DefaultConfidenceWeights(),
		ConfidenceThresholds: DefaultConfidenceThresholds(),
		RuleThresholds: map[string]RuleThresholds{
			"1h": DefaultRuleThresholds(), "24h": DefaultRuleThresholds(),
			"7d": DefaultRuleThresholds(), "30d": DefaultRuleThresholds(),
		},
		Ranking:       DefaultRankingConfig(),
		Lifecycle:     DefaultLifecycleConfig(),
		ClusterPolicy: DefaultClusterPolicy(),
		Freeze:        FreezeInactive,
	}
}

// Load reads and parses the root configuration document.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.ConfidenceThresholds.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RuleThresholdsFor returns the per-window thresholds, falling back to
// defaults if the window is unconfigured.
func (c Config) RuleThresholdsFor(window string) RuleThresholds {
	if rt, ok := c.RuleThresholds[window]; ok {
		return rt
	}
	return DefaultRuleThresholds()
}
