package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AtRiskMedia/cio-harness/internal/domain/webhook"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/webhookstore"
	"github.com/AtRiskMedia/cio-harness/pkg/config"
	"github.com/spf13/cobra"
)

func newWebhookCmd() *cobra.Command {
	var storePath string

	webhookCmd := &cobra.Command{Use: "webhook", Short: "Inspect and edit the webhook test data store"}
	webhookCmd.PersistentFlags().StringVar(&storePath, "store", "", "store file (default $WEBHOOK_STORE_PATH)")

	openStore := func() (*webhookstore.FileStore, error) {
		if storePath != "" {
			return webhookstore.NewOsFileStore(storePath, nil), nil
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return webhookstore.NewOsFileStore(cfg.WebhookStorePath, nil), nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			summaries, err := store.List(context.Background())
			if err != nil {
				return err
			}
			for _, s := range summaries {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.Key, s.UpdatedAt)
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the payload stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			entry, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	putCmd := &cobra.Command{
		Use:   "put <key> <json-object>",
		Short: "Store a JSON object under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := json.RawMessage(args[1])
			if !webhook.IsObject(data) {
				return webhook.ErrDataNotObject
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			entry, err := store.Put(context.Background(), args[0], data)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stored %s at %s\n", entry.Key, entry.UpdatedAt)
			return nil
		},
	}

	webhookCmd.AddCommand(listCmd, getCmd, putCmd)
	return webhookCmd
}
