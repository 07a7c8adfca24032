package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/restock/pkg/mcp"
)

func newPredictCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <id>",
		Short: "Show when an item runs out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pred, err := opts.client().Forecast(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), pred)
			}
			return writePrediction(cmd.OutOrStdout(), pred)
		},
	}
}

func newShoppingListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "shopping-list",
		Aliases: []string{"shop"},
		Short:   "Show what to buy",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := opts.client().ShoppingList(cmd.Context())
			if err != nil {
				return fmt.Errorf("shopping list: %w", err)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return writeShoppingTable(cmd.OutOrStdout(), list)
		},
	}
}

func newAlertsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Show items that are low or need counting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := opts.client().Alerts(cmd.Context())
			if err != nil {
				return fmt.Errorf("alerts: %w", err)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), alerts)
			}
			return writeAlertsTable(cmd.OutOrStdout(), alerts)
		},
	}
}

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mcp.NewServer(opts.endpoint)
			s.SetToken(opts.token)
			return s.Serve()
		},
	}
}
