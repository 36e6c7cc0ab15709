package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/cdp"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/storage"
	"github.com/AtRiskMedia/cio-harness/pkg/config"
	"github.com/spf13/cobra"
)

// sdkFlags are shared by the commands that talk to the tracking API.
type sdkFlags struct {
	writeKey    string
	region      string
	endpoint    string
	anonymousID string
}

func (f *sdkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.writeKey, "write-key", "", "Pipelines write key (default $CIO_WRITE_KEY)")
	cmd.Flags().StringVar(&f.region, "region", "", "us or eu (default $CIO_REGION)")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "override the regional API base URL")
	cmd.Flags().StringVar(&f.anonymousID, "anonymous-id", "", "anonymous ID to send (generated when empty)")
}

func (f *sdkFlags) client() (*cdp.Client, cdp.Identity, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cdp.Identity{}, err
	}
	writeKey := firstNonEmpty(f.writeKey, cfg.CIOWriteKey)
	region := firstNonEmpty(f.region, cfg.CIORegion)
	endpoint := firstNonEmpty(f.endpoint, cfg.CDPEndpoint)

	client, err := cdp.NewClient(cdp.Config{
		WriteKey: writeKey,
		Region:   region,
		Endpoint: endpoint,
		Timeout:  cfg.CDPTimeout,
		MaxTries: cfg.CDPMaxRetries,
	})
	if err != nil {
		return nil, cdp.Identity{}, err
	}

	anonymousID := f.anonymousID
	if anonymousID == "" {
		anonymousID = security.GenerateULID()
	}
	return client, cdp.Identity{AnonymousID: anonymousID}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseObject(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPageCmd() *cobra.Command {
	var flags sdkFlags
	var name string
	var send bool
	var advance time.Duration

	cmd := &cobra.Command{
		Use:   "page <url> [url...]",
		Short: "Simulate a visit across one or more URLs and print each page payload",
		Long: `Each URL is a page view by the same visitor. Attribution is kept in
in-memory storage between views, so a campaign URL followed by an organic URL
shows the persisted record being carried forward.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var client *cdp.Client
			identity := cdp.Identity{AnonymousID: flags.anonymousID}
			if send {
				var err error
				if client, identity, err = flags.client(); err != nil {
					return err
				}
			}

			now := time.Now()
			durable := storage.NewMemoryDurableStore()
			cookies := storage.NewMemoryCookieJar(func() time.Time { return now })

			for _, raw := range args {
				pageURL, err := url.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid URL %q: %w", raw, err)
				}

				store := attribution.NewStore(durable, cookies, pageURL, nil)
				payload := store.BuildPagePayload(ctx)
				if err := printJSON(cmd.OutOrStdout(), map[string]any{"url": raw, "payload": payload}); err != nil {
					return err
				}

				if client != nil {
					if _, err := client.Page(ctx, identity, name, payload); err != nil {
						return err
					}
				}
				now = now.Add(advance)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "UTM Persistence Test", "page name")
	cmd.Flags().BoolVar(&send, "send", false, "send each page call to the tracking API")
	cmd.Flags().DurationVar(&advance, "advance", 0, "simulated time between page views")
	return cmd
}

func newIdentifyCmd() *cobra.Command {
	var flags sdkFlags
	var traits, options string

	cmd := &cobra.Command{
		Use:   "identify <user-id>",
		Short: "Send an identify call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			traitMap, err := parseObject(traits)
			if err != nil {
				return err
			}
			optionMap, err := parseObject(options)
			if err != nil {
				return err
			}
			client, identity, err := flags.client()
			if err != nil {
				return err
			}
			msg, err := client.Identify(context.Background(), identity, args[0], traitMap, optionMap)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msg)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&traits, "traits", "", "traits as a JSON object")
	cmd.Flags().StringVar(&options, "options", "", "options as a JSON object, e.g. {\"context\":{...}}")
	return cmd
}

func newTrackCmd() *cobra.Command {
	var flags sdkFlags
	var userID, properties string

	cmd := &cobra.Command{
		Use:   "track <event>",
		Short: "Send a track call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseObject(properties)
			if err != nil {
				return err
			}
			client, identity, err := flags.client()
			if err != nil {
				return err
			}
			identity.UserID = userID
			msg, err := client.Track(context.Background(), identity, args[0], props)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), msg)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&userID, "user-id", "", "identified user")
	cmd.Flags().StringVar(&properties, "properties", "", "properties as a JSON object")
	return cmd
}
