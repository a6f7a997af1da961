package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"qupload/internal/config"
	"qupload/internal/history"
	"qupload/internal/policy"
	"qupload/internal/queue"
	"qupload/internal/services"
	"qupload/internal/transport"
	"qupload/internal/uploader"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var maxConcurrent int
	var autoRetries int
	var skipHistory bool
	var useBatch bool

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload stimulus files to the study backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if maxConcurrent > 0 {
				cfg.Upload.MaxConcurrent = maxConcurrent
			}
			if autoRetries >= 0 {
				cfg.Upload.AutoRetries = autoRetries
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "qupload.lock"))
			acquired, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire upload lock: %w", err)
			}
			if !acquired {
				return fmt.Errorf("another qupload instance is already uploading")
			}
			defer lock.Unlock()

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			if useBatch {
				return runBatchUpload(cmd, ctx, args, skipHistory)
			}

			var rejectionLines []string
			manager := uploader.NewManager(cfg, transport.NewClient(cfg, logger), logger, uploader.Callbacks{
				OnError: func(task queue.Task, err error) {
					if task.ID == "" {
						rejectionLines = append(rejectionLines,
							fmt.Sprintf("%s: %s", task.File.Name, services.Message(err)))
					}
				},
			})
			defer manager.Close()

			accepted := 0
			for _, arg := range args {
				file, err := fileRefFromPath(arg)
				if err != nil {
					rejectionLines = append(rejectionLines, err.Error())
					continue
				}
				if _, err := manager.Enqueue(file); err != nil {
					continue
				}
				accepted++
			}
			if accepted == 0 {
				for _, line := range rejectionLines {
					fmt.Fprintln(errOut, line)
				}
				return fmt.Errorf("no files accepted for upload")
			}

			watchProgress(cmd.Context(), manager, out)
			if err := manager.Wait(cmd.Context()); err != nil {
				return err
			}

			tasks := manager.Tasks()
			if !skipHistory {
				if err := recordOutcomes(cmd.Context(), cfg, tasks); err != nil {
					fmt.Fprintf(errOut, "record history: %v\n", err)
				}
			}

			printUploadSummary(out, tasks)
			for _, line := range rejectionLines {
				fmt.Fprintln(errOut, line)
			}

			counts := manager.Counts()
			if failed := counts.Failed + len(rejectionLines); failed > 0 {
				return fmt.Errorf("%d of %d files did not upload", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Override the concurrent upload limit")
	cmd.Flags().IntVar(&autoRetries, "auto-retries", -1, "Override the automatic retry budget for transient failures")
	cmd.Flags().BoolVar(&skipHistory, "no-history", false, "Skip recording outcomes to the history database")
	cmd.Flags().BoolVar(&useBatch, "batch", false, "Send all files in one bulk request instead of individual uploads")
	return cmd
}

// runBatchUpload sends every accepted file in a single bulk call and
// reconciles the per-file outcomes from the reply. Bulk mode trades per-file
// progress and retries for one round trip.
func runBatchUpload(cmd *cobra.Command, ctx *commandContext, args []string, skipHistory bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	gate := policy.NewGate(cfg.Policy)

	var files []queue.FileRef
	rejected := 0
	for _, arg := range args {
		file, err := fileRefFromPath(arg)
		if err == nil {
			err = gate.Validate(file)
		}
		if err != nil {
			rejected++
			fmt.Fprintf(errOut, "%s: %s\n", arg, services.Message(err))
			continue
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files accepted for upload")
	}

	client := transport.NewClient(cfg, logger)
	result, err := client.UploadBatch(cmd.Context(), files)
	if err != nil {
		return err
	}

	byName := make(map[string]transport.BatchFileResult, len(result.Results))
	for _, entry := range result.Results {
		byName[entry.Filename] = entry
	}

	tasks := make([]queue.Task, 0, len(files))
	for _, file := range files {
		task := queue.Task{ID: uuid.NewString(), File: file}
		entry, ok := byName[file.Name]
		switch {
		case ok && entry.URL != "":
			task.SetComplete(entry.URL)
		case ok && entry.Error != "":
			task.SetUploading()
			task.SetFailed(entry.Error)
		default:
			task.SetUploading()
			task.SetFailed("missing from batch reply")
		}
		tasks = append(tasks, task)
	}

	if !skipHistory {
		if err := recordOutcomes(cmd.Context(), cfg, tasks); err != nil {
			fmt.Fprintf(errOut, "record history: %v\n", err)
		}
	}
	printUploadSummary(out, tasks)

	if failed := result.Failed + rejected; failed > 0 {
		return fmt.Errorf("%d of %d files did not upload", failed, len(args))
	}
	return nil
}

// watchProgress redraws an aggregate progress line on a TTY while uploads
// run. Non-interactive output stays quiet until the summary table.
func watchProgress(ctx context.Context, manager *uploader.Manager, out io.Writer) {
	if !isTerminalWriter(out) {
		return
	}

	done := make(chan struct{})
	go func() {
		manager.Wait(ctx)
		close(done)
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			counts := manager.Counts()
			fmt.Fprintf(out, "\rOverall %3d%%  (%d done, %d failed)            \n",
				manager.OverallProgress(), counts.Complete, counts.Failed)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts := manager.Counts()
			fmt.Fprintf(out, "\rOverall %3d%%  (%d uploading, %d pending)  ",
				manager.OverallProgress(), counts.Uploading, counts.Pending)
		}
	}
}

func recordOutcomes(ctx context.Context, cfg *config.Config, tasks []queue.Task) error {
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordAll(ctx, tasks)
}

func printUploadSummary(out io.Writer, tasks []queue.Task) {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		detail := task.URL
		if task.Status == queue.StatusError {
			detail = task.ErrMessage
		}
		rows = append(rows, []string{
			task.File.Name,
			formatSize(task.File.Size),
			statusLabel(task.Status),
			strconv.Itoa(task.RetryCount),
			detail,
		})
	}
	printTable(out, []column{
		{name: "File"},
		{name: "Size", right: true},
		{name: "Result"},
		{name: "Retries", right: true},
		{name: "Detail"},
	}, rows)
}
