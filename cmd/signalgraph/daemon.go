package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalgraph/internal/application/confidence"
	"github.com/sawpanic/signalgraph/internal/application/lifecycle"
	"github.com/sawpanic/signalgraph/internal/application/pipeline"
	"github.com/sawpanic/signalgraph/internal/application/rules"
	"github.com/sawpanic/signalgraph/internal/application/snapshot"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/infrastructure/transfersource"
	"github.com/sawpanic/signalgraph/internal/logging"
	"github.com/sawpanic/signalgraph/internal/persistence/postgres"
	"github.com/sawpanic/signalgraph/internal/scheduler"
)

// newDaemonCmd runs the snapshot-builder and rule-runner continuously, one
// job pair per window, until interrupted — the long-running counterpart to
// the one-shot `run` subcommands, grounded in the teacher's scheduler usage
// pattern (fixed job table, per-resource exclusivity).
func newDaemonCmd(a *app) *cobra.Command {
	var chains string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the snapshot and rules jobs on a fixed schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireDB(); err != nil {
				return err
			}

			raw := postgres.NewTransferSource(a.db)
			guarded := transfersource.New(raw, transfersource.DefaultConfig())
			snapStore := postgres.NewSnapshotRepo(a.db)
			sigStore := postgres.NewSignalRepo(a.db)
			prices := postgres.NewPriceOracle(a.db)
			actorDir := postgres.NewActorDirectory(a.db)

			snapBuilder := snapshot.New(guarded, snapStore, prices, actorDir, strings.Split(chains, ","), logging.Component(a.log, "snapshot"))
			scorer := confidence.New(a.cfg.ConfidenceWeights, a.cfg.ConfidenceThresholds, a.cfg.ClusterPolicy, a.cfg.Lifecycle.DecayHalfLifeHrs)
			lcMgr := lifecycle.New(sigStore, a.cfg.Lifecycle, logging.Component(a.log, "lifecycle")).WithMetrics(a.metrics)

			dispatcher, err := a.newDispatcher()
			if err != nil {
				return err
			}
			runner := pipeline.NewRuleRunner(snapStore, rules.New(), scorer, lcMgr, dispatcher, a.metrics, logging.Component(a.log, "rules"))

			sched := scheduler.New(a.log).WithMetrics(a.metrics)

			windows := []graph.Window{graph.Window1h, graph.Window24h, graph.Window7d, graph.Window30d}
			for _, w := range windows {
				sched.Register(scheduler.Job{
					Name:    "snapshot:" + string(w),
					Period:  w.Duration() / 4,
					LockKey: "snapshot:" + string(w),
					Run: func(ctx context.Context) error {
						_, err := snapBuilder.Build(ctx, w, time.Now().UTC())
						return err
					},
				})

				th, ok := a.cfg.RuleThresholds[string(w)]
				if !ok {
					continue
				}
				sched.Register(scheduler.Job{
					Name:    "rules:" + string(w),
					Period:  w.Duration() / 4,
					LockKey: "rules:" + string(w),
					Run: func(ctx context.Context) error {
						_, err := runner.Run(ctx, w, th, time.Now().UTC())
						return err
					},
				})
			}

			sched.Register(scheduler.Job{
				Name:    "actor-directory-refresh",
				Period:  time.Hour,
				LockKey: "actor-directory-refresh",
				Run:     actorDir.Refresh,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched.Start(ctx)
			a.log.Info().Msg("daemon started, awaiting interrupt")
			<-ctx.Done()
			a.log.Info().Msg("shutdown signal received, draining in-flight runs")
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&chains, "chains", "ethereum", "comma-separated chain list to absorb")
	return cmd
}
