package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medhya/medhya/internal/config"
	"github.com/medhya/medhya/internal/domain/message"
	"github.com/medhya/medhya/internal/platform/apiclient"
	"github.com/medhya/medhya/internal/platform/auth"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "medhya",
		Short:         "Medhya care client and realtime relay",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(whoamiCmd())
	root.AddCommand(ordersCmd())
	root.AddCommand(appointmentsCmd())
	root.AddCommand(threadsCmd())
	root.AddCommand(threadCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(journalCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(relayCmd())
	return root
}

// newLogger writes JSON to w, or a console format in development.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

// app is what the client commands share.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	creds  *auth.CredentialStore
	api    *apiclient.Client
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	creds, err := auth.OpenCredentialStore(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	api := apiclient.New(cfg.APIBaseURL, creds, apiclient.WithLogger(logger))
	return &app{cfg: cfg, logger: logger, creds: creds, api: api}, nil
}

// identity returns who the stored token belongs to.
func (a *app) identity() (string, message.Role, error) {
	claims, err := a.creds.Claims()
	if err != nil {
		return "", "", err
	}
	uid := claims.UserIDOrSubject()
	if uid == "" {
		return "", "", fmt.Errorf("access token has no subject")
	}
	role := message.RoleUser
	if auth.HasRole(claims.AllRoles(), string(message.RoleCounselor)) {
		role = message.RoleCounselor
	}
	return uid, role, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
