package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/restock/pkg/engine"
	"github.com/rmax-ai/restock/pkg/engine/forecast"
)

func newItemsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := opts.client().ListItems(cmd.Context())
			if err != nil {
				return fmt.Errorf("list items: %w", err)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			return writeItemsTable(cmd.OutOrStdout(), items)
		},
	}
}

func newAddCmd(opts *options) *cobra.Command {
	var (
		item       engine.Item
		rate       float64
		difficulty string
		period     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item.Name = args[0]
			item.UsagePeriod = forecast.Period(period)
			d, err := parseDifficulty(difficulty)
			if err != nil {
				return err
			}
			item.AcquisitionDifficulty = d
			if cmd.Flags().Changed("rate") {
				item.UsageRate = &rate
			}

			created, err := opts.client().CreateItem(cmd.Context(), item)
			if err != nil {
				return fmt.Errorf("add item: %w", err)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), created)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", created.Name, created.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&item.ID, "id", "", "Item ID (default: generated)")
	cmd.Flags().StringVarP(&item.Category, "category", "c", "", "Category")
	cmd.Flags().StringVarP(&item.Unit, "unit", "u", "", "Unit (default: un)")
	cmd.Flags().Float64VarP(&item.CurrentQuantity, "quantity", "q", 0, "Current quantity")
	cmd.Flags().Float64VarP(&item.MinimumQuantity, "min", "m", 0, "Minimum quantity")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Declared usage per period")
	cmd.Flags().StringVar(&period, "period", "daily", "Usage period: daily, weekly or monthly")
	cmd.Flags().StringVar(&difficulty, "difficulty", "easy", "Acquisition difficulty: easy, medium or hard")
	cmd.Flags().StringVar(&item.PhoneNumber, "phone", "", "Phone number for low-stock SMS")
	return cmd
}

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <quantity>",
		Short: "Record a counted quantity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			item, err := opts.client().RecordQuantity(cmd.Context(), args[0], qty)
			if err != nil {
				return fmt.Errorf("set quantity: %w", err)
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", item.Name, formatFloat(item.CurrentQuantity), item.Unit)
			return err
		},
	}
}

func newRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().DeleteItem(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete item: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return err
		},
	}
}

func parseDifficulty(s string) (forecast.Difficulty, error) {
	switch s {
	case "", "easy":
		return forecast.DifficultyEasy, nil
	case "medium":
		return forecast.DifficultyMedium, nil
	case "hard":
		return forecast.DifficultyHard, nil
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}
