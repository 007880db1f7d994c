package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/signalgraph/internal/config"
)

func newAdminCmd(a *app) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Read or mutate the running configuration surface",
	}

	admin.AddCommand(newAdminGetCmd(a))
	admin.AddCommand(newAdminSetFreezeCmd(a))
	admin.AddCommand(newAdminSetWeightsCmd(a))

	return admin
}

func newAdminGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current configuration snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.admin.Snapshot()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}

func newAdminSetFreezeCmd(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "set-freeze [active|inactive]",
		Short: "Toggle the production freeze invariant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var state config.FreezeState
			switch args[0] {
			case "active":
				state = config.FreezeActive
			case "inactive":
				state = config.FreezeInactive
			default:
				return fmt.Errorf("unknown freeze state %q (want active|inactive)", args[0])
			}
			a.admin.SetFreeze(actor, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor name recorded in the audit log")
	return cmd
}

func newAdminSetWeightsCmd(a *app) *cobra.Command {
	var actor string
	var weightsPath string
	cmd := &cobra.Command{
		Use:   "set-weights",
		Short: "Replace the confidence-scorer weights from a JSON file (rejected while frozen)",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(weightsPath)
			if err != nil {
				return fmt.Errorf("read weights file: %w", err)
			}
			var w config.ConfidenceWeights
			if err := json.Unmarshal(b, &w); err != nil {
				return fmt.Errorf("parse weights file: %w", err)
			}
			return a.admin.SetConfidenceWeights(actor, w)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor name recorded in the audit log")
	cmd.Flags().StringVar(&weightsPath, "weights", "", "path to a JSON ConfidenceWeights document")
	_ = cmd.MarkFlagRequired("weights")
	return cmd
}
