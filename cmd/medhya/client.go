package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/medhya/medhya/internal/domain/appointment"
	"github.com/medhya/medhya/internal/domain/conversation"
	"github.com/medhya/medhya/internal/domain/journal"
	"github.com/medhya/medhya/internal/domain/message"
	"github.com/medhya/medhya/internal/domain/order"
	"github.com/medhya/medhya/internal/domain/report"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("MEDHYA_PASSWORD")
			}
			if err := a.api.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			uid, role, err := a.identity()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", uid, role)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (default $MEDHYA_PASSWORD)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			uid, role, err := a.identity()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user: %s\nrole: %s\n", uid, role)
			if claims, err := a.creds.Claims(); err == nil && claims.ExpiresAt != nil {
				fmt.Fprintf(out, "expires: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Medicine orders",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, optionally by tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			orders, err := order.NewService(order.NewRepoHTTP(a.api)).ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			tabName, _ := cmd.Flags().GetString("tab")
			if tabName != "" {
				tab, ok := order.TabByName(tabName)
				if !ok {
					return fmt.Errorf("unknown tab %q (active, completed, cancelled)", tabName)
				}
				orders = order.FilterByStatus(orders, tab)
			}
			printOrders(cmd, orders)
			return nil
		},
	}
	listCmd.Flags().String("tab", "", "active, completed or cancelled")
	cmd.AddCommand(listCmd)
	cmd.AddCommand(watchCmd())

	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a prescription and place an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			address, _ := cmd.Flags().GetString("address")
			days, _ := cmd.Flags().GetInt("days")
			notes, _ := cmd.Flags().GetString("notes")

			req := order.UploadRequest{
				Filename:        path,
				DeliveryAddress: address,
				DurationInDays:  days,
				Notes:           notes,
			}
			if path != "" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open prescription: %w", err)
				}
				defer f.Close()
				req.File = f
			}

			o, err := order.NewService(order.NewRepoHTTP(a.api)).UploadPrescription(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s created: %s\n", o.ID, o.Display().Label)
			return nil
		},
	}
	uploadCmd.Flags().String("file", "", "Prescription file")
	uploadCmd.Flags().String("address", "", "Delivery address")
	uploadCmd.Flags().Int("days", 0, "Duration of the prescription in days")
	uploadCmd.Flags().String("notes", "", "Notes for the doctor")
	cmd.AddCommand(uploadCmd)

	return cmd
}

func printOrders(cmd *cobra.Command, orders []order.Order) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDAYS\tADDRESS")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.ID, o.Display().Label, o.DurationInDays, o.DeliveryAddress)
	}
	w.Flush()
}

func appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Counseling appointments",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			items, err := appointment.NewService(appointment.NewRepoHTTP(a.api)).ListAppointments(cmd.Context())
			if err != nil {
				return err
			}
			if upcoming, _ := cmd.Flags().GetBool("upcoming"); upcoming {
				items = appointment.Upcoming(items, time.Now())
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tSLOT\tTYPE\tSTATUS")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Date.Format("2006-01-02"), it.TimeSlot, it.Type, appointment.DisplayOf(it.Status).Label)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().Bool("upcoming", false, "Only pending or confirmed appointments from today on")
	cmd.AddCommand(listCmd)
	return cmd
}

func loadThreads(cmd *cobra.Command, a *app) (*message.Service, []conversation.Thread, error) {
	uid, _, err := a.identity()
	if err != nil {
		return nil, nil, err
	}
	svc := message.NewService(message.NewRepoHTTP(a.api))
	msgs, err := svc.ListMessages(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return svc, conversation.Build(uid, msgs), nil
}

func threadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			_, threads, err := loadThreads(cmd, a)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WITH\tUNREAD\tLAST")
			for i := range threads {
				last, _ := threads[i].LastMessage()
				fmt.Fprintf(w, "%s\t%d\t%s\n", threads[i].ParticipantID, threads[i].UnreadCount(), truncate(last.Content, 40))
			}
			fmt.Fprintf(w, "\t%d unread\t\n", conversation.TotalUnread(threads))
			return w.Flush()
		},
	}
}

func threadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "A single conversation",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "open <participant-id>",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			svc, threads, err := loadThreads(cmd, a)
			if err != nil {
				return err
			}
			th, ok := conversation.Find(threads, args[0])
			if !ok {
				return fmt.Errorf("no conversation with %s", args[0])
			}
			out := cmd.OutOrStdout()
			for _, m := range th.Messages {
				who := "them"
				if m.Sender == th.CurrentUserID {
					who = "you"
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), who, m.Content)
			}
			n, err := conversation.MarkThreadRead(a.logger.WithContext(cmd.Context()), svc, th)
			if n > 0 {
				fmt.Fprintf(out, "(%d marked read)\n", n)
			}
			return err
		},
	})
	return cmd
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <recipient-id> <message...>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			uid, role, err := a.identity()
			if err != nil {
				return err
			}
			recipientRole := message.RoleCounselor
			if role == message.RoleCounselor {
				recipientRole = message.RoleUser
			}
			req := message.SendRequest{
				Sender:        uid,
				Recipient:     args[0],
				RecipientRole: recipientRole,
				Content:       strings.Join(args[1:], " "),
			}
			if apptID, _ := cmd.Flags().GetString("appointment"); apptID != "" {
				req.AppointmentID = &apptID
			}
			m, err := message.NewService(message.NewRepoHTTP(a.api)).Send(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s.\n", m.ID)
			return nil
		},
	}
	cmd.Flags().String("appointment", "", "Appointment the message is about")
	return cmd
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Mood journal",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "Show today's entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			e, err := journal.NewService(journal.NewRepoHTTP(a.api)).Today(cmd.Context())
			if err != nil {
				return err
			}
			if e == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No entry today.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n%s\n", e.ID, e.Mood, e.Content)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := journal.NewService(journal.NewRepoHTTP(a.api)).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	})
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Medical reports",
	}
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a medical report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			title, _ := cmd.Flags().GetString("title")
			req := report.UploadRequest{Title: title, Filename: path}
			if path != "" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open report: %w", err)
				}
				defer f.Close()
				req.File = f
			}
			stored, err := report.NewService(report.NewRepoHTTP(a.api)).Upload(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %q at %s\n", stored.Title, stored.URL)
			return nil
		},
	}
	uploadCmd.Flags().String("file", "", "Report file (pdf, png, jpg)")
	uploadCmd.Flags().String("title", "", "Report title")
	cmd.AddCommand(uploadCmd)
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
