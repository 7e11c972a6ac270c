package visualize

import (
	"fmt"

	"github.com/threadline-rugs/roomview/internal/config"
	"github.com/threadline-rugs/roomview/internal/gateway"
	"github.com/threadline-rugs/roomview/internal/gemini"
	"github.com/threadline-rugs/roomview/internal/ollama"
	"github.com/threadline-rugs/roomview/internal/providers"
)

// FromConfig builds a Service with the providers selected in cfg. A provider
// whose credential is missing is left unset so that Visualize answers with
// ErrNotConfigured instead of calling upstream.
func FromConfig(cfg *config.Config) (*Service, error) {
	timeout := cfg.AI.UpstreamTimeout.Duration

	var analyzer providers.Provider
	switch cfg.AI.AnalysisProvider {
	case "gateway", "":
		if cfg.AI.GatewayAPIKey != "" {
			analyzer = gateway.New(cfg.AI.GatewayURL, cfg.AI.GatewayAPIKey, timeout)
		}
	case "gemini":
		if cfg.AI.GeminiAPIKey != "" {
			analyzer = gemini.New(cfg.AI.GeminiAPIKey)
		}
	case "ollama":
		analyzer = ollama.New(cfg.AI.OllamaURL, timeout)
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", cfg.AI.AnalysisProvider)
	}

	var compositor providers.ImageGenerator
	switch cfg.AI.CompositeProvider {
	case "gateway", "":
		if cfg.AI.GatewayAPIKey != "" {
			compositor = gateway.New(cfg.AI.GatewayURL, cfg.AI.GatewayAPIKey, timeout)
		}
	case "gemini":
		if cfg.AI.GeminiAPIKey != "" {
			compositor = gemini.New(cfg.AI.GeminiAPIKey)
		}
	default:
		return nil, fmt.Errorf("unsupported composite provider: %s", cfg.AI.CompositeProvider)
	}

	analysisModel := cfg.AI.AnalysisModel
	if analysisModel == "" {
		analysisModel = config.DefaultModel(cfg.AI.AnalysisProvider, false)
	}
	compositeModel := cfg.AI.CompositeModel
	if compositeModel == "" {
		compositeModel = config.DefaultModel(cfg.AI.CompositeProvider, true)
	}

	svc, err := NewService(analyzer, compositor, analysisModel, compositeModel)
	if err != nil {
		return nil, err
	}
	svc.Temperature = cfg.AI.Temperature
	return svc, nil
}
