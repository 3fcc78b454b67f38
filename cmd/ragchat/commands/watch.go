package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
	"ragchat/internal/service"
	"ragchat/internal/watch"
)

var watchProcess bool

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file.pdf>",
		Short: "Re-upload a PDF whenever it changes on disk",
		Long: `Watch a local PDF and upload it again each time it is saved. Bursts of
writes are collapsed into one upload. With --process each upload is
followed by processing with the configured options, and the outcome
(ready, reset by the service, or stopped waiting) is reported.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().BoolVar(&watchProcess, "process", false, "Start processing after each upload")
	return cmd
}

// lockedWriter serializes output from the watcher, the processing request
// and the poller.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

// eventLine describes a controller event worth printing; Start's own
// processing transition and uploads are reported elsewhere.
func eventLine(ev service.JobEvent) (string, bool) {
	switch {
	case errors.Is(ev.Err, service.ErrPollTimeout):
		return "Stopped waiting for processing; run `ragchat process --wait` to follow it", true
	case ev.Job == nil:
		return "", false
	case ev.Err != nil && ev.Job.State == domain.StateNotStarted:
		return fmt.Sprintf("Processing %s stopped: %v", ev.Job.Document.Name, ev.Err), true
	case ev.Job.State == domain.StateReady:
		return fmt.Sprintf("%s is ready for questions", ev.Job.Document.Name), true
	}
	return "", false
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	ctrl := a.session.Controller
	if watchProcess {
		ctrl.SetOnChange(func(ev service.JobEvent) {
			if line, ok := eventLine(ev); ok {
				out.printf("%s\n", line)
			}
		})
	}

	w, err := watch.New(args[0], ctrl, watch.Options{
		Logger: a.log,
		OnUpload: func(doc domain.Document, err error) {
			if err != nil {
				out.printf("Upload failed: %v\n", err)
				return
			}
			out.printf("Uploaded %s (%s)\n", doc.Name, doc.Size)
			if !watchProcess {
				return
			}
			go func() {
				err := ctrl.Start(ctx)
				switch {
				case errors.Is(err, service.ErrJobActive), errors.Is(err, service.ErrNoDocument):
					out.printf("Processing not started: %v\n", err)
				case err != nil:
					// a failed request or a newer save; the change hook or the
					// next upload line reports it
				default:
					out.printf("Processing %s\n", doc.Name)
				}
			}()
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	out.printf("Watching %s (Ctrl+C to stop)\n", args[0])
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
