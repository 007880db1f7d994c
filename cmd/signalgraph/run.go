package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalgraph/internal/application/confidence"
	"github.com/sawpanic/signalgraph/internal/application/dataset"
	"github.com/sawpanic/signalgraph/internal/application/lifecycle"
	"github.com/sawpanic/signalgraph/internal/application/outcome"
	"github.com/sawpanic/signalgraph/internal/application/pipeline"
	"github.com/sawpanic/signalgraph/internal/application/rankingengine"
	"github.com/sawpanic/signalgraph/internal/application/rules"
	"github.com/sawpanic/signalgraph/internal/application/snapshot"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/domain/ranking"
	"github.com/sawpanic/signalgraph/internal/infrastructure/transfersource"
	"github.com/sawpanic/signalgraph/internal/logging"
	"github.com/sawpanic/signalgraph/internal/persistence/postgres"
)

func newRunCmd(a *app) *cobra.Command {
	run := &cobra.Command{
		Use:   "run",
		Short: "Run one pipeline stage against the configured store",
	}

	run.AddCommand(newRunSnapshotCmd(a))
	run.AddCommand(newRunRulesCmd(a))
	run.AddCommand(newRunRankCmd(a))
	run.AddCommand(newRunOutcomesCmd(a))
	run.AddCommand(newRunDatasetCmd(a))

	return run
}

func parseWindow(s string) (graph.Window, error) {
	switch graph.Window(s) {
	case graph.Window1h, graph.Window24h, graph.Window7d, graph.Window30d:
		return graph.Window(s), nil
	default:
		return "", fmt.Errorf("unknown window %q (want one of 1h,24h,7d,30d)", s)
	}
}

func newRunSnapshotCmd(a *app) *cobra.Command {
	var window string
	var chains string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build and persist a transfer snapshot for one window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			w, err := parseWindow(window)
			if err != nil {
				return err
			}

			raw := postgres.NewTransferSource(a.db)
			guarded := transfersource.New(raw, transfersource.DefaultConfig())
			store := postgres.NewSnapshotRepo(a.db)
			prices := postgres.NewPriceOracle(a.db)
			actors := postgres.NewActorDirectory(a.db)
			if err := actors.Refresh(cmd.Context()); err != nil {
				a.log.Warn().Err(err).Msg("actor directory refresh failed, resolving unlabeled")
			}

			builder := snapshot.New(guarded, store, prices, actors, strings.Split(chains, ","), logging.Component(a.log, "snapshot"))
			snap, err := builder.Build(cmd.Context(), w, time.Now().UTC())
			if err != nil {
				return err
			}
			a.log.Info().Str("snapshot_id", snap.SnapshotID).Str("window", string(w)).
				Int("actors", len(snap.Actors)).Int("edges", len(snap.Edges)).Msg("snapshot built")
			return nil
		},
	}

	cmd.Flags().StringVar(&window, "window", "24h", "window to build (1h|24h|7d|30d)")
	cmd.Flags().StringVar(&chains, "chains", "ethereum", "comma-separated chain list to absorb")
	return cmd
}

func newRunRulesCmd(a *app) *cobra.Command {
	var window string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Detect signal candidates, score confidence, apply lifecycle, dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			w, err := parseWindow(window)
			if err != nil {
				return err
			}

			snapStore := postgres.NewSnapshotRepo(a.db)
			sigStore := postgres.NewSignalRepo(a.db)

			scorer := confidence.New(a.cfg.ConfidenceWeights, a.cfg.ConfidenceThresholds, a.cfg.ClusterPolicy, a.cfg.Lifecycle.DecayHalfLifeHrs)
			lcMgr := lifecycle.New(sigStore, a.cfg.Lifecycle, logging.Component(a.log, "lifecycle")).WithMetrics(a.metrics)

			dispatcher, err := a.newDispatcher()
			if err != nil {
				return err
			}

			th, ok := a.cfg.RuleThresholds[string(w)]
			if !ok {
				return fmt.Errorf("no rule thresholds configured for window %q", w)
			}

			runner := pipeline.NewRuleRunner(snapStore, rules.New(), scorer, lcMgr, dispatcher, a.metrics, logging.Component(a.log, "rules"))
			result, err := runner.Run(cmd.Context(), w, th, time.Now().UTC())
			if err != nil {
				return err
			}
			a.log.Info().Str("run_id", result.RunID).Int("candidates", result.Candidates).
				Int("signals", len(result.Signals)).Int("dispatched", len(result.Dispatched.Sent)).Msg("rule run finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&window, "window", "24h", "window to evaluate (1h|24h|7d|30d)")
	return cmd
}

// rankInput is one entity's pre-normalized ranking inputs, supplied by the
// caller since market-cap/volume/momentum scoring is out of scope here
// (seeded market data is an explicit non-goal).
type rankInput struct {
	Entity ranking.Entity `json:"entity"`
	Inputs ranking.Inputs `json:"inputs"`
}

func newRunRankCmd(a *app) *cobra.Command {
	var inputsPath string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Compute composite rankings for entities from a normalized-inputs file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			b, err := os.ReadFile(inputsPath)
			if err != nil {
				return fmt.Errorf("read inputs file: %w", err)
			}
			var items []rankInput
			if err := json.Unmarshal(b, &items); err != nil {
				return fmt.Errorf("parse inputs file: %w", err)
			}

			repo := postgres.NewRankingRepo(a.db)
			eng := rankingengine.New(a.cfg.Ranking)
			now := time.Now().UTC()

			// The repository exposes bucket-scoped reads, not per-entity lookup
			// (§6); a single rank run therefore always ranks from a fresh
			// (zero-value) previous state rather than reading one back first.
			// A scheduled daily rank job accumulates RecentBuckets/stability
			// penalties across runs via the upserted row itself.
			var rankings []ranking.Ranking
			for _, item := range items {
				result := eng.Rank(item.Entity, item.Inputs, ranking.Ranking{}, now)
				rankings = append(rankings, result.Ranking)
				if result.Transition != nil {
					if err := repo.AppendTransition(cmd.Context(), *result.Transition); err != nil {
						return err
					}
				}
			}

			if err := repo.BulkUpsert(cmd.Context(), rankings); err != nil {
				return err
			}
			a.log.Info().Int("entities", len(rankings)).Msg("ranking run finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&inputsPath, "inputs", "", "path to a JSON array of {entity, inputs}")
	_ = cmd.MarkFlagRequired("inputs")
	return cmd
}

func newRunOutcomesCmd(a *app) *cobra.Command {
	var bucket string
	var horizon string

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Resolve outcome observations for rankings whose horizon has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			repo := postgres.NewRankingRepo(a.db)
			prices := postgres.NewPriceOracle(a.db)
			tracker := outcome.New(prices)

			rankings, err := repo.ReadByBucket(cmd.Context(), ranking.Bucket(bucket), 500)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			resolved := 0
			for _, r := range rankings {
				obs, err := tracker.Resolve(cmd.Context(), "", r.Entity, r.Bucket, r.UpdatedAt, ranking.Horizon(horizon), now)
				if err != nil {
					a.log.Warn().Err(err).Str("entity", r.Entity.Address).Msg("outcome resolution failed")
					continue
				}
				if obs != nil {
					resolved++
				}
			}
			a.log.Info().Int("candidates", len(rankings)).Int("resolved", resolved).Msg("outcome run finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", string(ranking.BucketBuy), "bucket to scan for due outcomes")
	cmd.Flags().StringVar(&horizon, "horizon", string(ranking.Horizon1d), "outcome horizon (1d|7d|30d)")
	return cmd
}

func newRunDatasetCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Materialize learning samples from resolved outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			repo := postgres.NewDatasetRepo(a.db)
			builder := dataset.New(repo)

			var items []dataset.Input
			dec := json.NewDecoder(os.Stdin)
			if err := dec.Decode(&items); err != nil {
				return fmt.Errorf("decode dataset input batch from stdin: %w", err)
			}

			now := time.Now().UTC()
			built, skipped := 0, 0
			for _, in := range items {
				sample, reason, err := builder.Build(cmd.Context(), dataset.Mode(mode), in, now)
				if err != nil {
					return err
				}
				if sample == nil {
					skipped++
					a.log.Debug().Str("reason", string(reason)).Msg("sample skipped")
					continue
				}
				built++
			}
			a.log.Info().Int("built", built).Int("skipped", skipped).Msg("dataset run finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(dataset.ModeIncremental), "incremental|full")
	return cmd
}
