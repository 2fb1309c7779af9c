package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/medhya/medhya/internal/dashboard"
	"github.com/medhya/medhya/internal/domain/appointment"
	"github.com/medhya/medhya/internal/domain/message"
	"github.com/medhya/medhya/internal/domain/order"
	"github.com/medhya/medhya/internal/platform/realtime"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print orders again whenever they change, until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			uid, role, err := a.identity()
			if err != nil {
				return err
			}
			tab := order.TabActive
			if name, _ := cmd.Flags().GetString("tab"); name != "" {
				t, ok := order.TabByName(name)
				if !ok {
					return fmt.Errorf("unknown tab %q (active, completed, cancelled)", name)
				}
				tab = t
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var printMu sync.Mutex
			ch := realtime.NewChannel(a.cfg.RealtimeURL, realtime.WithLogger(a.logger))
			session := dashboard.NewSession(ch, dashboard.Services{
				Orders:       order.NewService(order.NewRepoHTTP(a.api)),
				Appointments: appointment.NewService(appointment.NewRepoHTTP(a.api)),
				Messages:     message.NewService(message.NewRepoHTTP(a.api)),
			}, dashboard.Options{
				UserID: uid,
				Role:   role,
				Token:  a.creds.Token(),
				Merge:  a.cfg.MergeUpdates,
				Logger: a.logger,
				OnOrders: func(orders []order.Order) {
					printMu.Lock()
					defer printMu.Unlock()
					fmt.Fprintln(cmd.OutOrStdout(), "--")
					printOrders(cmd, order.FilterByStatus(orders, tab))
				},
			})
			defer session.Close()

			if err := session.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().String("tab", "active", "active, completed or cancelled")
	return cmd
}
