package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"boardsync/internal/models"
	"boardsync/internal/session"
)

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <item-id>",
		Short:         "Show an item with its epic, subtasks and comments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid item id %q", args[0]))
			}
			sess, _, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			it, ok := sess.Store().Item(id)
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("item %d is not on the board", id))
			}
			ctx := cmd.Context()

			var epic *models.Item
			if it.IsSubtask() {
				e, err := sess.Epic(ctx, it)
				if err != nil && !errors.Is(err, session.ErrNoParent) {
					return WrapExitError(ExitCommandError, "load epic", err)
				}
				if err == nil {
					epic = &e
				}
			}
			if it.IsEpic() {
				subs, err := sess.Subtasks(ctx, it.ID)
				if err != nil {
					return WrapExitError(ExitCommandError, "load subtasks", err)
				}
				it = models.AttachSubtasks(it, subs)
			}
			comments, err := sess.Comments(ctx, it.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "load comments", err)
			}

			data := map[string]any{"item": it, "epic": epic, "comments": comments}
			return opts.formatter(cmd).Success(data, func(w io.Writer) {
				renderItem(w, it, epic, comments)
			})
		},
	}
}
