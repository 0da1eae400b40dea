package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"boardsync/internal/columns"
	"boardsync/internal/drag"
)

// MoveOptions holds flags for the move command.
type MoveOptions struct {
	*RootOptions
	OnCard bool
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "move <item-id> <column|card-id>",
		Short: "Move an item to another column",
		Long: `Move an item to another column. The board shows the move at once and
sends a single update to the API; a failed update is rolled back.

Example:
  boardsync move 42 "In Progress"
  boardsync move 42 17 --on-card`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.OnCard, "on-card", false, "treat the target as a card id and use its column")

	return cmd
}

func runMove(opts *MoveOptions, cmd *cobra.Command, rawID, rawTarget string) error {
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid item id %q", rawID))
	}
	target := drag.ToColumn(columns.Slug(rawTarget))
	if opts.OnCard {
		cardID, err := strconv.ParseInt(rawTarget, 10, 64)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid card id %q", rawTarget))
		}
		target = drag.OnCard(cardID)
	}

	sess, _, err := opts.openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.BeginDrag(itemID); err != nil {
		if errors.Is(err, drag.ErrNotPermitted) || errors.Is(err, drag.ErrItemNotFound) {
			return WrapExitError(ExitFailure, "move", err)
		}
		return WrapExitError(ExitCommandError, "move", err)
	}
	out, err := sess.Drop(cmd.Context(), target)
	if err != nil {
		return WrapExitError(ExitCommandError, "move", err)
	}

	f := opts.formatter(cmd)
	if err := f.Success(outcomeJSON(out), func(w io.Writer) { renderOutcome(w, out) }); err != nil {
		return err
	}
	switch out.Result {
	case drag.Reverted:
		return WrapExitError(ExitFailure, out.Notice, out.Err)
	case drag.Aborted:
		return NewExitError(ExitFailure, "drop target is not another column")
	}
	return nil
}

type outcomeView struct {
	Result string `json:"result"`
	ItemID int64  `json:"item_id"`
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Key    string `json:"idempotency_key,omitempty"`
	Notice string `json:"notice,omitempty"`
	Error  string `json:"error,omitempty"`
}

func outcomeJSON(out drag.Outcome) outcomeView {
	v := outcomeView{
		Result: out.Result.String(),
		ItemID: out.ItemID,
		From:   out.From,
		To:     out.To,
		Key:    out.Key,
		Notice: out.Notice,
	}
	if out.Err != nil {
		v.Error = out.Err.Error()
	}
	return v
}
