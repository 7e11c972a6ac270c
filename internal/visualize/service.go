package visualize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/providers"
)

// Method is reported in the processing details of every successful result
const Method = "AI semantic floor detection + perspective rug placement"

// Request is one view-in-room request. Images are data URIs or bare base64.
type Request struct {
	RoomImage     string
	RugImage      string
	RugName       string
	RugDimensions *models.RugSize
}

// RequestFrom converts the wire request of the view-in-room endpoint
func RequestFrom(r models.ViewInRoomRequest) Request {
	return Request{
		RoomImage:     r.RoomImageBase64,
		RugImage:      r.RugImageBase64,
		RugName:       r.RugName,
		RugDimensions: r.RugDimensions,
	}
}

// Reporter receives the stage a running attempt has reached. It may be nil.
type Reporter func(models.Stage)

// Visualizer produces a room composite for a request
type Visualizer interface {
	Visualize(ctx context.Context, req Request, report Reporter) (*models.VisualizationResult, error)
}

// Service runs floor analysis and composite synthesis against AI providers
type Service struct {
	Analyzer       providers.Provider
	Compositor     providers.ImageGenerator
	AnalysisModel  string
	CompositeModel string
	Temperature    float64

	schema *jsonschema.Schema
}

// NewService creates a service over the given providers. Either may be nil,
// in which case Visualize reports ErrNotConfigured.
func NewService(analyzer providers.Provider, compositor providers.ImageGenerator, analysisModel, compositeModel string) (*Service, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Service{
		Analyzer:       analyzer,
		Compositor:     compositor,
		AnalysisModel:  analysisModel,
		CompositeModel: compositeModel,
		schema:         schema,
	}, nil
}

// Visualize analyzes the room floor, then asks the compositor to place the rug.
// Progress is reported at each milestone.
func (s *Service) Visualize(ctx context.Context, req Request, report Reporter) (*models.VisualizationResult, error) {
	if report == nil {
		report = func(models.Stage) {}
	}

	if strings.TrimSpace(req.RoomImage) == "" || strings.TrimSpace(req.RugImage) == "" {
		return nil, ErrMissingImages
	}
	if s.Analyzer == nil || s.Compositor == nil {
		slog.Error("AI provider is not configured")
		return nil, ErrNotConfigured
	}

	room := ingest.WrapBase64(req.RoomImage)
	rug := ingest.WrapBase64(req.RugImage)

	slog.Info("Starting floor detection and rug placement analysis", "model", s.AnalysisModel)
	report(models.StageAnalyzingFloor)

	text, err := s.Analyzer.ExtractText(ctx, providers.Config{
		Model:        s.AnalysisModel,
		Temperature:  s.Temperature,
		SystemPrompt: analysisSystemPrompt,
		Prompt:       analysisUserPrompt,
		Images:       []string{room},
	})
	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		slog.Error("Floor analysis request failed", "status", providers.StatusCode(err), "err", err)
		return nil, &StepError{Step: "Floor analysis", Err: err}
	}
	slog.Debug("Floor analysis raw response", "response", text)

	analysis := s.analyze(text)
	report(models.StageDetectingPerspective)

	slog.Debug("Recommended placement", "placement", analysis.RecommendedRugPlacement)
	report(models.StagePlacingRug)

	prompt := buildCompositePrompt(analysis, req.RugName, req.RugDimensions)

	slog.Info("Generating composite image", "model", s.CompositeModel)
	report(models.StageGeneratingShadows)

	generated, err := s.Compositor.GenerateImage(ctx, providers.Config{
		Model:       s.CompositeModel,
		Temperature: s.Temperature,
		Prompt:      prompt,
		Images:      []string{room, rug},
	})
	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		slog.Error("Composite generation request failed", "status", providers.StatusCode(err), "err", err)
		return nil, &StepError{Step: "Composite generation", Err: err}
	}
	report(models.StageCompositing)

	if generated == nil || generated.ImageURL == "" {
		msg := ""
		if generated != nil {
			msg = generated.Message
		}
		slog.Error("No image generated in response", "message", msg)
		return nil, &NoCompositeError{FloorAnalysis: &analysis, AIMessage: msg}
	}

	slog.Info("Generated composite image", "fallback", analysis.WasFallback, "confidence", analysis.Confidence)
	return &models.VisualizationResult{
		Success:           true,
		CompositeImageURL: generated.ImageURL,
		FloorAnalysis:     &analysis,
		AIMessage:         generated.Message,
		ProcessingDetails: &models.ProcessingDetails{
			FloorDetected:      analysis.FloorDetected,
			Confidence:         analysis.Confidence,
			PerspectiveApplied: true,
			ShadowGenerated:    true,
			Method:             Method,
			WasFallback:        analysis.WasFallback,
		},
	}, nil
}

func (s *Service) analyze(text string) models.FloorAnalysis {
	analysis, err := ParseAnalysis(s.schema, text)
	if err != nil {
		slog.Warn("Failed to parse floor analysis, using fallback values", "err", err)
		return FallbackAnalysis()
	}
	return analysis
}

// String describes the configured models
func (s *Service) String() string {
	return fmt.Sprintf("visualize(analysis=%s, composite=%s)", s.AnalysisModel, s.CompositeModel)
}
