package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"boardsync/internal/apiclient"
	"boardsync/internal/config"
	"boardsync/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	BaseURL    string
	Token      string
	Project    int64
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the boardsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "boardsync",
		Short: "Keep a local Kanban board in sync with the tracker API",
		Long: `boardsync holds a project board locally, moves cards between columns
with immediate local feedback, and reconciles with the tracker API by
refetching the board after every settled change.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath(), "config file")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "API base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token (overrides config)")
	cmd.PersistentFlags().Int64VarP(&opts.Project, "project", "p", 0, "project id (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBoardCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewPermsCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewCommentCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig loads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Token != "" {
		cfg.Token = o.Token
	}
	if o.Project != 0 {
		cfg.Project = o.Project
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// client builds an API client from the resolved config.
func (o *RootOptions) client(cmd *cobra.Command, cfg config.Config) *apiclient.Client {
	return apiclient.New(cfg.BaseURL, cfg.TokenSource(), apiclient.WithLogger(o.logger(cmd.ErrOrStderr())))
}

// openSession loads the board of the configured project.
func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command) (*session.Session, config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	if cfg.Project == 0 {
		return nil, config.Config{}, NewExitError(ExitCommandError, "no project selected: pass --project or set project in the config")
	}
	sess, err := session.Open(ctx, o.client(cmd, cfg), cfg.Project, session.Config{Drag: cfg.Drag()}, o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, config.Config{}, WrapExitError(ExitCommandError, "open board", err)
	}
	return sess, cfg, nil
}
