// Package results writes visualization outcomes for the command line.
package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
	"gopkg.in/yaml.v3"
)

// CompositeFileName is the default name of a saved composite
const CompositeFileName = "view-in-room.png"

// RunConfig describes the attempt a report belongs to
type RunConfig struct {
	Rug            string `json:"rug" yaml:"rug"`
	Room           string `json:"room" yaml:"room"`
	AnalysisModel  string `json:"analysisModel,omitempty" yaml:"analysismodel,omitempty"`
	CompositeModel string `json:"compositeModel,omitempty" yaml:"compositemodel,omitempty"`
	Remote         string `json:"remote,omitempty" yaml:"remote,omitempty"`
	Timestamp      string `json:"timestamp" yaml:"timestamp"`
}

// Report is one attempt and its outcome
type Report struct {
	Config RunConfig                   `json:"config" yaml:"config"`
	Result *models.VisualizationResult `json:"result" yaml:"result"`
	// Composite is where the composite was saved, if it was
	Composite string `json:"composite,omitempty" yaml:"composite,omitempty"`
}

// NewReport stamps cfg with the current time
func NewReport(cfg RunConfig, result *models.VisualizationResult) Report {
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}
	return Report{Config: cfg, Result: result}
}

// Write encodes the report as "json" or "yaml". The composite image data is
// left out of the encoded result; only its length is kept.
func Write(w io.Writer, report Report, format string) error {
	report.Result = elideImage(report.Result)

	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&report); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q (must be json or yaml)", format)
	}
	return nil
}

func elideImage(r *models.VisualizationResult) *models.VisualizationResult {
	if r == nil || !ingest.IsDataURI(r.CompositeImageURL) {
		return r
	}
	out := *r
	out.CompositeImageURL = fmt.Sprintf("data:... (%d bytes)", len(r.CompositeImageURL))
	return &out
}

// SaveComposite writes the composite image of a successful result to path.
// A directory path gets the default file name.
func SaveComposite(result *models.VisualizationResult, path string) (string, error) {
	if result == nil || !result.Success || result.CompositeImageURL == "" {
		return "", fmt.Errorf("no composite image to save")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, CompositeFileName)
	}

	img, err := ingest.ParseDataURI(result.CompositeImageURL)
	if err != nil {
		return "", fmt.Errorf("failed to decode composite: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write composite: %w", err)
	}

	absPath, _ := filepath.Abs(path)
	return absPath, nil
}

// SaveToYAML stores the report under dir as <rug>-<timestamp>.yaml
func SaveToYAML(dir string, report Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", report.Config.Rug, report.Config.Timestamp))
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	defer f.Close()

	if err := Write(f, report, "yaml"); err != nil {
		return "", err
	}
	return filename, nil
}
