package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/client"
	"github.com/threadline-rugs/roomview/internal/indicator"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/logging"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/orchestrator"
	"github.com/threadline-rugs/roomview/internal/results"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

func newVisualizeCmd() *cobra.Command {
	var (
		room        string
		rugIDs      []string
		remote      string
		output      string
		save        string
		resultsDir  string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Composite a catalog rug into a room photo",
		Long: `Runs the full view-in-room pipeline for a room photo and one or more rugs.

The room may be a local path, an http(s) URL or a data URI. By default the
AI providers are called in-process; with --remote the request is sent to a
running roomview server instead.`,
		Example: `  # Preview one rug and save the composite
  roomview visualize --room living-room.jpg --rug royal-isfahan --save out/

  # Try several rugs against a running server
  roomview visualize --room living-room.jpg --rug royal-isfahan --rug nordic-frost \
    --remote http://localhost:8888 --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configuration()
			if remote == "" {
				remote = cfg.Pipeline.RemoteURL
			}
			if concurrency < 1 {
				concurrency = 1
			}

			cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.AssetsDir)
			if err != nil {
				return err
			}
			rugs := make([]models.Rug, 0, len(rugIDs))
			for _, id := range rugIDs {
				rug, err := cat.Get(id)
				if err != nil {
					return err
				}
				rugs = append(rugs, rug)
			}

			roomRef, err := localRef(room)
			if err != nil {
				return err
			}

			var v visualize.Visualizer
			runCfg := results.RunConfig{Room: room, Remote: remote}
			if remote != "" {
				v = client.New(remote, cfg.AI.UpstreamTimeout.Duration)
			} else {
				if err := cfg.Validate(); err != nil {
					return err
				}
				svc, err := visualize.FromConfig(cfg)
				if err != nil {
					return err
				}
				runCfg.AnalysisModel, runCfg.CompositeModel = svc.AnalysisModel, svc.CompositeModel
				v = svc
			}

			fetcher := ingest.NewFetcher(cfg.Pipeline.FetchTimeout.Duration)
			interactive := len(rugs) == 1 && term.IsTerminal(os.Stderr.Fd())

			var wg sync.WaitGroup
			semaphore := make(chan struct{}, concurrency)
			reports := make([]results.Report, len(rugs))

			for i, rug := range rugs {
				wg.Add(1)
				go func(idx int, rug models.Rug) {
					defer wg.Done()
					semaphore <- struct{}{}        // Acquire
					defer func() { <-semaphore }() // Release

					opts := []orchestrator.Option{
						orchestrator.WithStageDelay(cfg.Pipeline.StageDelay.Duration),
						orchestrator.WithResolver(cat.ResolveImage),
						orchestrator.WithNormalizer(fetcher),
					}
					if interactive {
						opts = append(opts, orchestrator.WithOnChange(func(s orchestrator.State) {
							fmt.Fprint(os.Stderr, "\033[H\033[2J"+indicator.Render(s))
						}))
					} else {
						opts = append(opts, orchestrator.WithOnChange(func(s orchestrator.State) {
							slog.Debug("Stage", "rug", rug.ID, "stage", s.Stage, "progress", s.Progress)
						}))
					}
					orch := orchestrator.New(v, opts...)

					progress := logging.StartProgress()
					slog.Info("Processing rug", "rug", rug.ID, "progress", fmt.Sprintf("%d/%d", idx+1, len(rugs)))
					result, err := orch.ProcessViewInRoom(cmd.Context(), ingest.FromRef(roomRef), rug)
					if err != nil {
						slog.Error("Visualization failed", "rug", rug.ID, "error", err)
						result = orch.State().Result
					} else {
						progress.Done("Visualization complete", "rug", rug.ID)
					}

					rc := runCfg
					rc.Rug = rug.ID
					reports[idx] = results.NewReport(rc, result)
				}(i, rug)
			}
			wg.Wait()

			failed := 0
			for i := range reports {
				report := &reports[i]
				if report.Result == nil || !report.Result.Success {
					failed++
				} else if save != "" {
					target := save
					if len(reports) > 1 {
						target = filepath.Join(save, report.Config.Rug+".png")
					}
					path, err := results.SaveComposite(report.Result, target)
					if err != nil {
						return err
					}
					report.Composite = path
					slog.Info("Composite saved", "rug", report.Config.Rug, "path", path)
				}

				if resultsDir != "" {
					if _, err := results.SaveToYAML(resultsDir, *report); err != nil {
						return err
					}
				}
				if err := results.Write(cmd.OutOrStdout(), *report, output); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d visualizations failed", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "Room photo: path, http(s) URL or data URI")
	cmd.Flags().StringSliceVar(&rugIDs, "rug", nil, "Catalog rug ID (repeatable)")
	cmd.Flags().StringVar(&remote, "remote", "", "Base URL of a roomview server to call instead of the AI providers")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&save, "save", "", "Save the composite image to this file or directory")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Also write each report as YAML into this directory")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Number of rugs to process at once")

	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("rug")

	return cmd
}

// localRef makes relative file paths absolute so the fetcher accepts them
func localRef(ref string) (string, error) {
	if ingest.IsDataURI(ref) || filepath.IsAbs(ref) {
		return ref, nil
	}
	if _, err := os.Stat(ref); err != nil {
		// Not a local file; let the fetcher decide whether it is a URL
		return ref, nil
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	return abs, nil
}
