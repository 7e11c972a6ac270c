package visualize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/threadline-rugs/roomview/internal/models"
)

const floorAnalysisSchema = `{
  "type": "object",
  "required": ["floorRegion", "recommendedRugPlacement"],
  "properties": {
    "floorDetected": {"type": "boolean"},
    "floorRegion": {"$ref": "#/$defs/region"},
    "perspectiveAngle": {"type": "number", "minimum": 0, "maximum": 90},
    "vanishingPointY": {"type": "number"},
    "recommendedRugPlacement": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"},
        "scaleX": {"type": "number", "exclusiveMinimum": 0},
        "scaleY": {"type": "number", "exclusiveMinimum": 0},
        "rotationDeg": {"type": "number"}
      }
    },
    "floorMaterial": {"type": "string"},
    "lightDirection": {"type": "string"},
    "shadowIntensity": {"type": "number", "minimum": 0, "maximum": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "$defs": {
    "region": {
      "type": "object",
      "required": ["x", "y", "width", "height"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"},
        "width": {"type": "number", "minimum": 0},
        "height": {"type": "number", "minimum": 0}
      }
    }
  }
}`

// FallbackAnalysis is the record used whenever the model's floor analysis
// cannot be parsed. It describes a typical eye-level room photo.
func FallbackAnalysis() models.FloorAnalysis {
	return models.FloorAnalysis{
		FloorDetected:    true,
		FloorRegion:      models.Region{X: 10, Y: 50, Width: 80, Height: 45},
		PerspectiveAngle: 15,
		VanishingPointY:  35,
		RecommendedRugPlacement: models.PlacementTransform{
			X: 50, Y: 70, ScaleX: 0.6, ScaleY: 0.4, RotationDeg: 0,
		},
		FloorMaterial:   "wood",
		LightDirection:  "left",
		ShadowIntensity: 0.3,
		Confidence:      0.7,
		WasFallback:     true,
	}
}

// compileSchema compiles the floor analysis schema
func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("floor-analysis.json", strings.NewReader(floorAnalysisSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("floor-analysis.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// extractJSONObject trims markdown code fences and returns the outermost
// {...} span of response.
func extractJSONObject(response string) (string, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end < start {
		return "", errors.New("no JSON found in response")
	}
	return response[start : end+1], nil
}

// ParseAnalysis decodes a floor analysis from model output and checks it
// against the schema. Callers substitute FallbackAnalysis on error.
func ParseAnalysis(schema *jsonschema.Schema, response string) (models.FloorAnalysis, error) {
	var analysis models.FloorAnalysis

	raw, err := extractJSONObject(response)
	if err != nil {
		return analysis, err
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return analysis, fmt.Errorf("unmarshal analysis: %w", err)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return analysis, fmt.Errorf("analysis does not match schema: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return analysis, fmt.Errorf("unmarshal analysis: %w", err)
	}
	analysis.WasFallback = false
	return analysis, nil
}
