package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/threadline-rugs/roomview/internal/canvas"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
)

func newPlaceCmd() *cobra.Command {
	var (
		room     string
		rugID    string
		width    int
		x, y     float64
		scale    float64
		rotate   float64
		center   bool
		analysis string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place a rug manually and export the result",
		Long: `Places a catalog rug on a room photo without calling any AI provider.

The rug starts at the default pose (centred, 30% of the photo width) unless a
pose is given. Positions are canvas pixels for a container of --width; the
export is twice the canvas size.`,
		Example: `  # Default pose
  roomview place --room living-room.jpg --rug nordic-frost

  # Reuse the placement recommended by a previous visualize run
  roomview visualize --room living-room.jpg --rug nordic-frost > report.json
  roomview place --room living-room.jpg --rug nordic-frost --analysis report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configuration()
			cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.AssetsDir)
			if err != nil {
				return err
			}
			rug, err := cat.Get(rugID)
			if err != nil {
				return err
			}

			fetcher := ingest.NewFetcher(cfg.Pipeline.FetchTimeout.Duration)
			roomRef, err := localRef(room)
			if err != nil {
				return err
			}
			bg, err := loadImage(cmd, fetcher, roomRef)
			if err != nil {
				return fmt.Errorf("failed to load room image: %w", err)
			}
			rugRef, err := cat.ResolveImage(rug)
			if err != nil {
				return err
			}
			fg, err := loadImage(cmd, fetcher, rugRef)
			if err != nil {
				return fmt.Errorf("failed to load rug image: %w", err)
			}

			var initial *models.PlacementTransform
			switch {
			case analysis != "":
				rec, err := readRecommendation(analysis)
				if err != nil {
					return err
				}
				w, h := canvas.FitSize(bg.Bounds().Dx(), bg.Bounds().Dy(), width)
				pose := canvas.PlacementFromAnalysis(rec, w, h)
				initial = &pose
			case cmd.Flags().Changed("x") || cmd.Flags().Changed("y"):
				initial = &models.PlacementTransform{X: x, Y: y, ScaleX: scale, ScaleY: scale, RotationDeg: rotate}
			}

			host := canvas.NewHost(canvas.NewFactory(bg, fg, initial))
			defer host.Close()
			c, err := host.Mount(width)
			if err != nil {
				return err
			}

			if initial == nil {
				if center {
					if err := c.CenterOnly(); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("scale") {
					pose, err := c.Pose()
					if err != nil {
						return err
					}
					if err := c.ScaleUniform(scale / pose.ScaleX); err != nil {
						return err
					}
				}
				if rotate != 0 {
					if err := c.Rotate(rotate); err != nil {
						return err
					}
				}
			}

			data, err := c.ExportRaster()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			pose, _ := c.Pose()
			slog.Info("Placement exported", "path", out, "x", pose.X, "y", pose.Y, "scale", pose.ScaleX, "rotation", pose.RotationDeg)
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "Room photo: path, http(s) URL or data URI")
	cmd.Flags().StringVar(&rugID, "rug", "", "Catalog rug ID")
	cmd.Flags().IntVar(&width, "width", 800, "Container width the canvas is fitted to")
	cmd.Flags().Float64Var(&x, "x", 0, "Rug centre x in canvas pixels")
	cmd.Flags().Float64Var(&y, "y", 0, "Rug centre y in canvas pixels")
	cmd.Flags().Float64Var(&scale, "scale", 0, "Rug scale (default 30% of the canvas width)")
	cmd.Flags().Float64Var(&rotate, "rotate", 0, "Rug rotation in degrees")
	cmd.Flags().BoolVar(&center, "center", false, "Centre the rug at the photo's floor line")
	cmd.Flags().StringVar(&analysis, "analysis", "", "JSON report or result with a recommendedRugPlacement")
	cmd.Flags().StringVarP(&out, "out", "o", canvas.ExportFileName, "Output PNG path")

	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("rug")

	return cmd
}

func loadImage(cmd *cobra.Command, fetcher *ingest.Fetcher, ref string) (image.Image, error) {
	img, err := fetcher.Load(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	return img.Decode()
}

// readRecommendation pulls the recommended placement out of a visualize
// report, a bare result, or a bare floor analysis.
func readRecommendation(path string) (models.PlacementTransform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.PlacementTransform{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc struct {
		Result        *models.VisualizationResult `json:"result"`
		FloorAnalysis *models.FloorAnalysis       `json:"floorAnalysis"`
		Recommended   *models.PlacementTransform  `json:"recommendedRugPlacement"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.PlacementTransform{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	switch {
	case doc.Result != nil && doc.Result.FloorAnalysis != nil:
		return doc.Result.FloorAnalysis.RecommendedRugPlacement, nil
	case doc.FloorAnalysis != nil:
		return doc.FloorAnalysis.RecommendedRugPlacement, nil
	case doc.Recommended != nil:
		return *doc.Recommended, nil
	}
	return models.PlacementTransform{}, fmt.Errorf("%s has no recommendedRugPlacement", path)
}
