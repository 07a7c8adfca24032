package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/restock/pkg/client"
)

type options struct {
	endpoint string
	token    string
	format   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "restock",
		Short:         "Household inventory with usage predictions",
		Long:          "restock talks to a running restock-d: it lists items, records counts and shows what to buy and when.",
		Version:       fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.endpoint, "endpoint", "e", envOr("RESTOCK_ENDPOINT", client.DefaultEndpoint), "restock-d base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("RESTOCK_API_TOKEN"), "API bearer token")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")

	root.AddCommand(
		newItemsCmd(opts),
		newAddCmd(opts),
		newSetCmd(opts),
		newRemoveCmd(opts),
		newPredictCmd(opts),
		newShoppingListCmd(opts),
		newAlertsCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

func (o *options) client() *client.Client {
	c := client.NewClient(o.endpoint)
	c.SetToken(o.token)
	return c
}

func (o *options) json() bool {
	return o.format == "json"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
