package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medhya/medhya/internal/config"
	"github.com/medhya/medhya/internal/platform/eventbus"
	"github.com/medhya/medhya/internal/relay"
)

func relayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Realtime notification relay",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateRelay(); err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.OutOrStdout())

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			transport, err := relay.OpenTransport(ctx, cfg, logger)
			if err != nil {
				logger.Error().Err(err).Str("source", cfg.EventSource).Msg("failed to open event source")
				return err
			}
			return relay.New(cfg, transport, logger).Run(ctx, nil)
		},
	})

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one event to the configured bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envelopeFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateEventSource(); err != nil {
				return err
			}

			pub, err := relay.OpenPublisher(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pub.Close()

			if err := pub.Publish(cmd.Context(), env); err != nil {
				return fmt.Errorf("publish %s: %w", env.Event, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s via %s.\n", env.Event, cfg.EventSource)
			return nil
		},
	}
	publishCmd.Flags().String("event", "", "Event name, e.g. order:updated")
	publishCmd.Flags().StringSlice("to", nil, "Recipient user ids")
	publishCmd.Flags().StringSlice("role", nil, "Recipient roles")
	publishCmd.Flags().String("data", "", "JSON payload")
	cmd.AddCommand(publishCmd)

	return cmd
}

func envelopeFromFlags(cmd *cobra.Command) (eventbus.Envelope, error) {
	event, _ := cmd.Flags().GetString("event")
	to, _ := cmd.Flags().GetStringSlice("to")
	roles, _ := cmd.Flags().GetStringSlice("role")
	data, _ := cmd.Flags().GetString("data")

	env := eventbus.Envelope{Event: event, Recipients: to, Roles: roles}
	if data != "" {
		if !json.Valid([]byte(data)) {
			return env, fmt.Errorf("--data is not valid JSON")
		}
		env.Data = json.RawMessage(data)
	}
	return env, env.Validate()
}
