// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/olegiv/webgen-go/internal/config"
	"github.com/olegiv/webgen-go/internal/credential"
	"github.com/olegiv/webgen-go/internal/docstore"
	"github.com/olegiv/webgen-go/internal/logging"
	"github.com/olegiv/webgen-go/internal/registry"
	"github.com/olegiv/webgen-go/internal/service"
	"github.com/olegiv/webgen-go/internal/version"
)

// Set at build time via -ldflags "-X main.appVersion=...".
var (
	appVersion   string
	appGitCommit string
	appBuildTime string
)

func buildInfo() version.Info {
	return version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "webgen",
	Short:         "Static site builder with a small page CMS",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), buildInfo())
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage builder accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a builder account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()

		role := credential.ParseRole(usersAddRole)
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		users := credential.NewStore(cfg.UsersFile, storeOptions(cfg, logger))
		profile, err := users.CreateUser(cmd.Context(), args[0], password, role)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		logger.Info("user created", "category", "user", "username", profile.Username, "role", profile.Role, "source", "cli")
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", profile.Username, profile.Role)
		return nil
	},
}

var usersAddRole string

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Inspect and remove generated sites",
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generated sites and their owners",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, _, closeLog, err := openSites()
		if err != nil {
			return err
		}
		defer closeLog()

		overview, err := sites.Overview(cmd.Context())
		if err != nil {
			return err
		}
		if len(overview) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sites.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SLUG\tOWNER")
		for _, s := range overview {
			owner := s.Owner
			if owner == "" {
				owner = "-"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", s.Slug, owner)
		}
		return tw.Flush()
	},
}

var sitesDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a generated site and its ownership reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, logger, closeLog, err := openSites()
		if err != nil {
			return err
		}
		defer closeLog()

		if err := sites.DeleteSite(cmd.Context(), cliActor, args[0]); err != nil {
			return fmt.Errorf("deleting site: %w", err)
		}
		logger.Info("site deleted", "category", "site", "slug", args[0], "source", "cli")
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

// cliActor performs administrative actions started from the command line.
var cliActor = credential.Profile{Username: "cli", Role: credential.RoleAdmin}

func init() {
	usersAddCmd.Flags().StringVar(&usersAddRole, "role", string(credential.RoleUser), "Account role (User or Admin)")

	usersCmd.AddCommand(usersAddCmd)
	sitesCmd.AddCommand(sitesListCmd, sitesDeleteCmd)
	rootCmd.AddCommand(serveCmd, versionCmd, usersCmd, sitesCmd)
}

// setup loads configuration and installs the default logger. The returned
// func closes the audit log.
func setup() (*config.Config, *slog.Logger, func(), error) {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	closeLog := func() {}
	if cfg.AuditLog != "" {
		f, err := logging.OpenAuditFile(cfg.AuditLog)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
		handler = logging.NewAuditHandler(handler, f)
		closeLog = func() { _ = f.Close() }
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

func storeOptions(cfg *config.Config, logger *slog.Logger) docstore.Options {
	return docstore.Options{LockTimeout: cfg.LockTimeout, Logger: logger}
}

func openSites() (*service.Sites, *slog.Logger, func(), error) {
	cfg, logger, closeLog, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err := registry.NewDisk(cfg.SitesDir, logger)
	if err != nil {
		closeLog()
		return nil, nil, nil, fmt.Errorf("opening sites directory: %w", err)
	}
	users := credential.NewStore(cfg.UsersFile, storeOptions(cfg, logger))
	return service.NewSites(users, reg, logger), logger, closeLog, nil
}

// readPassword prompts twice on a terminal. Piped input is read as one line.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		var line string
		if _, err := fmt.Fscanln(in, &line); err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return line, nil
	}
	fd := int(f.Fd())

	out := cmd.ErrOrStderr()
	_, _ = fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	_, _ = fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return strings.TrimSpace(string(first)), nil
}
