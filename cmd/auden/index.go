package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dshills/auden/pkg/auden"
)

var indexQuiet bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory",
	Long: `Index a directory and wait for the pass to finish. The pass lives in
this process: interrupting it cancels the pass, keeping the chunks stored
so far for the next index to pick up.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := pathArg(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()

		job, started, err := idx.StartIndexing(path)
		if err != nil {
			return err
		}
		if !started {
			fmt.Fprintf(cmd.OutOrStdout(), "already indexing %s (job %s)\n", job.Root, job.ID)
		}
		if err := waitForJob(ctx, job, !indexQuiet); err != nil {
			return err
		}

		s := job.Status()
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d files, %d embedded, %d reused, %d failed in %s\n",
			s.State, s.Root, s.FilesSeen, s.ChunksEmbedded, s.ChunksReused, s.ChunksFailed,
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVarP(&indexQuiet, "quiet", "q", false, "do not draw a progress bar")
}

// waitForJob blocks until the job finishes, optionally drawing
// embedded/submitted chunks on stderr. Interrupting cancels the job.
func waitForJob(ctx context.Context, job *auden.Job, progress bool) error {
	if !progress {
		select {
		case <-job.Done():
		case <-ctx.Done():
			job.Cancel()
			<-job.Done()
		}
		return job.Err()
	}

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("embedding"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	defer func() { _ = bar.Finish() }()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-job.Done():
			return job.Err()
		case <-ctx.Done():
			job.Cancel()
			<-job.Done()
			return job.Err()
		case <-ticker.C:
			s := job.Status()
			if s.ChunksSubmitted > 0 {
				bar.ChangeMax64(s.ChunksSubmitted)
				_ = bar.Set64(s.ChunksSubmitted - s.Outstanding)
			}
		}
	}
}
