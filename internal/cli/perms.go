package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPermsCommand creates the perms command.
func NewPermsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "perms [item-id...]",
		Short:         "Show what the current user may do on the project and its items",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			var ids []int64
			for _, raw := range args {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid item id %q", raw))
				}
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				v := sess.Board()
				for _, key := range v.Keys {
					for _, it := range v.Lane(key) {
						ids = append(ids, it.ID)
					}
				}
			}

			rows := make([]permRow, 0, len(ids))
			for _, id := range ids {
				g := sess.Permissions(id)
				row := permRow{ItemID: id, Actions: g.Actions.String(), Reason: g.Reason}
				if it, ok := sess.Store().Item(id); ok {
					row.Title = it.Title
				}
				rows = append(rows, row)
			}

			project := sess.ProjectPermissions()
			data := map[string]any{
				"user":    sess.User(),
				"role":    sess.Role(),
				"project": map[string]any{"actions": projectActions(project), "reason": project.Reason},
				"items":   rows,
			}
			return opts.formatter(cmd).Success(data, func(w io.Writer) {
				renderPerms(w, sess.User(), sess.Role(), project, rows)
			})
		},
	}
}
