package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewBoardCommand creates the board command.
func NewBoardCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "board",
		Short:         "Show the project board",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			v := sess.Board()
			return opts.formatter(cmd).Success(v, func(w io.Writer) {
				renderBoard(w, sess.Project(), sess.Columns(), v)
			})
		},
	}
}
