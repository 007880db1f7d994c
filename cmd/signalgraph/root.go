// Package main wires the cobra CLI entrypoint, grounded in the teacher's
// cmd/cryptorun/main.go root-command-plus-subcommands shape.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sawpanic/signalgraph/internal/admin"
	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/dispatch"
	"github.com/sawpanic/signalgraph/internal/logging"
	"github.com/sawpanic/signalgraph/internal/metrics"
	"github.com/sawpanic/signalgraph/internal/persistence/postgres"
)

const (
	appName = "signalgraph"
	version = "v0.1.0"
)

// app holds every shared dependency a subcommand may need, built once in
// PersistentPreRunE and reused by all leaf commands.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *sqlx.DB
	admin   *admin.Surface
	metrics *metrics.Registry

	configPath string
	dsn        string
	logLevel   string
	dispatchTo string
	webhookURL string
	wsURL      string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     appName,
		Short:   "On-chain transfer and social-signal surveillance pipeline",
		Version: version,
		Long: `signalgraph builds transfer snapshots into corridor/actor/market
features, detects signal candidates, scores confidence and runs the signal
lifecycle, ranks entities and tracks outcomes into a training dataset.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.db != nil {
				_ = a.db.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to the root YAML config document")
	root.PersistentFlags().StringVar(&a.dsn, "db-dsn", os.Getenv("SIGNALGRAPH_DB_DSN"), "Postgres connection string")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&a.dispatchTo, "dispatch", "memory", "dispatch channel (memory|webhook|ws)")
	root.PersistentFlags().StringVar(&a.webhookURL, "webhook-url", "", "webhook URL when --dispatch=webhook")
	root.PersistentFlags().StringVar(&a.wsURL, "ws-url", "", "websocket URL when --dispatch=ws")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newAdminCmd(a))
	root.AddCommand(newDaemonCmd(a))

	return root
}

func (a *app) init() error {
	a.log = logging.New(a.logLevel, nil)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.configPath).Msg("config file unreadable, falling back to defaults")
		cfg = config.Default()
	}
	a.cfg = cfg
	a.admin = admin.New(cfg, logging.Component(a.log, "admin"))
	a.metrics = metrics.NewRegistry(prometheusDefaultRegisterer())

	if a.dsn == "" {
		return nil // snapshot/rules/rank/outcomes/dataset subcommands require it; admin does not
	}
	db, err := postgres.Connect(a.dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.db = db
	return nil
}

func (a *app) requireDB() error {
	if a.db == nil {
		return fmt.Errorf("this command requires --db-dsn (or SIGNALGRAPH_DB_DSN)")
	}
	return nil
}

func (a *app) newDispatcher() (dispatch.Dispatcher, error) {
	switch a.dispatchTo {
	case "", "memory":
		return dispatch.NewInMemory(), nil
	case "webhook":
		if a.webhookURL == "" {
			return nil, fmt.Errorf("--webhook-url is required when --dispatch=webhook")
		}
		return dispatch.NewWebhook(a.webhookURL, 5*time.Second, logging.Component(a.log, "dispatch.webhook")), nil
	case "ws":
		if a.wsURL == "" {
			return nil, fmt.Errorf("--ws-url is required when --dispatch=ws")
		}
		return dispatch.NewWSDispatcher(a.wsURL, logging.Component(a.log, "dispatch.ws")), nil
	default:
		return nil, fmt.Errorf("unknown --dispatch value %q", a.dispatchTo)
	}
}
