// Package watch handles continuous folder watching for new receipt scans
package watch

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fhartmann/bonscan/cmd/process"
	"fhartmann/bonscan/cmd/root"
	"fhartmann/bonscan/internal/watcher"
)

var (
	watchDirs  []string
	skipUpload bool
)

// Cmd represents the watch command
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch folders and process new receipt scans",
	Long: `Watch monitors one or more directories recursively and runs the full
processing pipeline on every new receipt photo or PDF that appears.`,
	Run: watchFunc,
}

func init() {
	Cmd.Flags().StringSliceVarP(&watchDirs, "dir", "d", nil, "Directory to watch (repeatable)")
	Cmd.Flags().BoolVar(&skipUpload, "skip-upload", false, "Skip the document archive upload")
}

func watchFunc(cmd *cobra.Command, args []string) {
	if len(watchDirs) == 0 {
		root.Log.Fatal("No watch directory specified, use --dir")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := process.BuildPipeline(ctx, skipUpload)
	if err != nil {
		root.Log.Fatalf("Error setting up pipeline: %v", err)
	}
	defer cleanup()

	debounce, err := time.ParseDuration(root.Cfg.Watch.Debounce)
	if err != nil {
		root.Log.Warnf("Invalid watch.debounce %q, using 500ms", root.Cfg.Watch.Debounce)
		debounce = 500 * time.Millisecond
	}

	files, errs, err := watcher.Start(ctx, watcher.Config{
		Roots:       watchDirs,
		Extensions:  root.Cfg.Watch.Extensions,
		InitialScan: root.Cfg.Watch.InitialScan,
		Debounce:    debounce,
	})
	if err != nil {
		root.Log.Fatalf("Error starting watcher: %v", err)
	}

	root.Log.WithField("dirs", watchDirs).Info("Watching for new receipts")

	for {
		select {
		case <-ctx.Done():
			root.Log.Info("Shutting down")
			return
		case err, ok := <-errs:
			if ok {
				root.Log.WithError(err).Warn("Watcher reported an error")
			}
		case path, ok := <-files:
			if !ok {
				return
			}
			result, err := p.ProcessFile(ctx, path)
			if err != nil {
				root.Log.WithError(err).WithField("file", path).Error("Failed to process receipt")
				continue
			}
			root.Log.WithFields(logrus.Fields{
				"file":       path,
				"receipt_id": result.ReceiptID,
			}).Info("Receipt processed")
		}
	}
}
