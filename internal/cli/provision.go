package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"boardsync/internal/apiclient"
	"boardsync/internal/columns"
	"boardsync/internal/models"
)

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the default columns if the project has none",
		Long: `Create the default columns (To Do, In Progress, In Review, Done) when the
project has no columns yet, then print the column set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Project == 0 {
				return NewExitError(ExitCommandError, "no project selected: pass --project or set project in the config")
			}

			prov := columns.NewProvisioner(opts.client(cmd, cfg), opts.logger(cmd.ErrOrStderr()))
			prov.IsDuplicate = func(err error) bool { return errors.Is(err, apiclient.ErrConflict) }
			cols, err := prov.Ensure(cmd.Context(), cfg.Project)
			if err != nil {
				return WrapExitError(ExitCommandError, "provision columns", err)
			}

			return opts.formatter(cmd).Success(cols, func(w io.Writer) { renderColumns(w, cols) })
		},
	}
}

func renderColumns(w io.Writer, cols []models.Column) {
	for _, c := range cols {
		fmt.Fprintf(w, "%d. %s (%s)\n", c.Order, c.Name, c.Status)
	}
}
