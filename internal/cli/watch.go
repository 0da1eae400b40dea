package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"boardsync/internal/board"
	"boardsync/internal/session"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval time.Duration
	Reload   time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the board and print it whenever it changes",
		Long: `Poll the board at a fixed interval and print it whenever the refetched
state differs from what is shown. Members and columns are reloaded every
--reload so columns added elsewhere appear. Stops on interrupt.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (defaults to poll_interval from the config)")
	cmd.Flags().DurationVar(&opts.Reload, "reload", time.Minute, "member and column reload interval (0 disables)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, cfg, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	interval := opts.Interval
	if interval <= 0 {
		interval = cfg.PollInterval
	}

	f := opts.formatter(cmd)
	project := sess.Project()
	show := func(v board.View) {
		_ = f.Success(v, func(w io.Writer) {
			renderBoard(w, project, sess.Columns(), v)
			fmt.Fprintln(w)
		})
	}

	// Listeners run on whichever goroutine changed the store.
	var mu sync.Mutex
	last := sess.Board()
	show(last)
	sess.Store().OnChange(func(v board.View) {
		mu.Lock()
		defer mu.Unlock()
		if v.Optimistic == last.Optimistic && v.Equal(last.Snapshot) {
			return
		}
		last = v
		show(v)
	})

	if opts.Reload > 0 {
		go reloadEvery(ctx, sess, opts.Reload, opts.logger(cmd.ErrOrStderr()))
	}

	err = sess.Poll(ctx, interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func reloadEvery(ctx context.Context, sess *session.Session, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sess.Reload(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("reload failed", slog.String("error", err.Error()))
			}
		}
	}
}
