package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"boardsync/internal/auth"
	"boardsync/internal/config"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Secret string
	UserID int64
	TTL    time.Duration
	Save   bool
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the development API",
		Long: `Mint an HS256 bearer token for a user of the development API. The secret
must match the one the dev API was started with.

Example:
  boardsync token --user 1 --secret "$DEVAPI_JWT_SECRET" --save`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Secret, "secret", os.Getenv("DEVAPI_JWT_SECRET"), "signing secret")
	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "user id to put in the token")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "store the token in the config file")

	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	if opts.UserID <= 0 {
		return NewExitError(ExitCommandError, "--user is required")
	}
	if opts.TTL <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--ttl must be positive, got %s", opts.TTL))
	}
	token, err := auth.MintDevToken([]byte(opts.Secret), opts.UserID, opts.TTL)
	if err != nil {
		return WrapExitError(ExitCommandError, "mint token", err)
	}

	if opts.Save {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "load config", err)
		}
		cfg.Token = token
		if err := config.Write(opts.ConfigPath, cfg); err != nil {
			return WrapExitError(ExitCommandError, "save config", err)
		}
		opts.formatter(cmd).VerboseLog("token saved to %s", opts.ConfigPath)
	}

	data := map[string]any{"token": token, "user_id": opts.UserID, "expires_in": opts.TTL.String()}
	return opts.formatter(cmd).Success(data, func(w io.Writer) { fmt.Fprintln(w, token) })
}
