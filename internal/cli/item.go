package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"boardsync/internal/columns"
	"boardsync/internal/models"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Type        string
	Column      string
	Priority    string
	Description string
	DueDate     string
	Parent      int64
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "create <title>",
		Short:         "Create an item on the board",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := opts.openSession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			fields := models.ItemFields{
				Title:       strings.Join(args, " "),
				Description: opts.Description,
				Type:        models.ItemType(opts.Type),
				Priority:    models.Priority(opts.Priority),
				DueDate:     opts.DueDate,
			}
			if opts.Column != "" {
				fields.Status = columns.Slug(opts.Column)
			}

			var it models.Item
			if opts.Parent != 0 {
				it, err = sess.CreateSubtask(cmd.Context(), opts.Parent, fields)
			} else {
				it, err = sess.CreateItem(cmd.Context(), fields)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "create item", err)
			}
			return opts.formatter(cmd).Success(it, func(w io.Writer) {
				fmt.Fprintf(w, "created %s  [%s]\n", itemLine(it), it.Status)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", string(models.TypeTask), "item type (task|bug|feature|epic|story)")
	cmd.Flags().StringVar(&opts.Column, "column", "", "column name or status (defaults to the first column)")
	cmd.Flags().StringVar(&opts.Priority, "priority", string(models.PriorityMedium), "priority (Low|Medium|High|Critical)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&opts.Parent, "parent", 0, "parent epic id")

	return cmd
}

// NewCommentCommand creates the comment command.
func NewCommentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "comment <item-id> <text>",
		Short:         "Comment on an item",
		Args:          cobra.MinimumNArgs(2),
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

			c, err := sess.AddComment(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return WrapExitError(ExitFailure, "add comment", err)
			}
			return opts.formatter(cmd).Success(c, func(w io.Writer) {
				fmt.Fprintf(w, "comment #%d added to #%d\n", c.ID, id)
			})
		},
	}
}
