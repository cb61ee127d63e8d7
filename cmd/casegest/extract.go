package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/casegest/internal/mindmap"
	"github.com/dgallion1/casegest/internal/parser"
	"github.com/dgallion1/casegest/internal/pipeline"
	"github.com/dgallion1/casegest/internal/timeline"
)

type extractOutput struct {
	Batch  pipeline.BatchSnapshot `json:"batch"`
	Events []timeline.Event       `json:"events"`
}

func extractCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE...",
		Short: "Extract a timeline from local PDF/DOCX files and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, snap, err := runFiles(cmd, *cfgPath, args)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, extractOutput{Batch: snap, Events: a.store.Timeline().Snapshot()})
		},
	}
}

func mindmapCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mindmap FILE...",
		Short: "Extract events from local files and print the mindmap layout as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := runFiles(cmd, *cfgPath, args)
			if err != nil {
				return err
			}
			defer a.Close()

			canvas := mindmap.Canvas{Width: a.cfg.CanvasWidth, Height: a.cfg.CanvasHeight, Padding: a.cfg.CanvasPadding}
			graph, err := mindmap.Layout(mindmap.FromTimeline(a.store.Timeline().Snapshot()), canvas)
			if err != nil {
				return err
			}
			return printJSON(cmd, graph)
		},
	}
}

// runFiles processes the named files as one synchronous batch. A fully
// failed batch is an error; the caller owns the returned app.
func runFiles(cmd *cobra.Command, cfgPath string, paths []string) (*app, pipeline.BatchSnapshot, error) {
	cfg, err := loadConfig(cmd, cfgPath)
	if err != nil {
		return nil, pipeline.BatchSnapshot{}, err
	}
	if len(paths) > cfg.UploadMaxFiles {
		return nil, pipeline.BatchSnapshot{}, usageError(cmd, "%d files given, at most %d allowed", len(paths), cfg.UploadMaxFiles)
	}

	files := make([]pipeline.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, pipeline.BatchSnapshot{}, err
		}
		if int64(len(data)) > cfg.UploadMaxBytes {
			return nil, pipeline.BatchSnapshot{}, usageError(cmd, "%s exceeds max size (%d bytes)", p, cfg.UploadMaxBytes)
		}
		name := filepath.Base(p)
		files = append(files, pipeline.File{
			Filename: name,
			MimeType: parser.MimeTypeForFilename(name),
			Data:     data,
		})
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return nil, pipeline.BatchSnapshot{}, err
	}

	b := pipeline.NewBatch(files)
	if err := a.orchestrator.Run(cmd.Context(), b); err != nil {
		a.Close()
		return nil, pipeline.BatchSnapshot{}, err
	}
	snap := b.Snapshot()
	for _, it := range snap.Items {
		if it.Error != "" {
			a.log.Warn("file failed", "filename", it.Filename, "kind", it.ErrorKind, "error", it.Error)
		}
	}
	if snap.Status == pipeline.StatusFailed {
		failed, _ := snap.FirstFailure()
		a.Close()
		return nil, snap, fmt.Errorf("no file could be processed: %s: %s", failed.Filename, failed.Error)
	}
	return a, snap, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
