package visualize

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/threadline-rugs/roomview/internal/models"
)

const defaultRugDescription = "oriental rug with intricate patterns"

const analysisSystemPrompt = `You are an expert computer vision AI specialized in interior design and floor detection. Analyze room images to:
1. Identify floor regions using semantic segmentation principles
2. Detect floor plane orientation and perspective
3. Identify the best placement zone for a rug (typically center of visible floor area)
4. Calculate perspective transformation parameters for realistic rug placement

Respond with a JSON object containing:
- floorDetected: boolean
- floorRegion: { x: number (0-100%), y: number (0-100%), width: number (0-100%), height: number (0-100%) }
- perspectiveAngle: number (degrees from horizontal, 0-90)
- vanishingPointY: number (0-100%, vertical position of vanishing point)
- recommendedRugPlacement: { x: number (0-100%), y: number (0-100%), scaleX: number, scaleY: number, rotationDeg: number }
- floorMaterial: string (wood, carpet, tile, concrete, etc.)
- lightDirection: string (left, right, top, diffuse)
- shadowIntensity: number (0-1)
- confidence: number (0-1)`

const analysisUserPrompt = "Analyze this room image for floor detection and optimal rug placement. Provide precise geometric parameters for perspective-correct rug rendering."

// describeDimensions renders the rug size for the composite prompt
func describeDimensions(size *models.RugSize) string {
	if size == nil || size.Width <= 0 || size.Height <= 0 {
		return "medium-sized"
	}
	return fmt.Sprintf("%sx%s ft", formatNumber(size.Width), formatNumber(size.Height))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// buildCompositePrompt generates the synthesis instructions from the floor
// analysis. The room image follows the prompt first, then the rug.
func buildCompositePrompt(a models.FloorAnalysis, rugName string, size *models.RugSize) string {
	if rugName == "" {
		rugName = defaultRugDescription
	}

	return fmt.Sprintf(`I have two images: a room photo and a rug product image (%s).

TASK: Create a photorealistic composite image placing the rug naturally on the floor of the room.

FLOOR ANALYSIS DATA:
- Floor region: %s
- Perspective angle: %s degrees
- Vanishing point Y: %s%%
- Recommended placement: %s
- Floor material: %s
- Light direction: %s
- Shadow intensity: %s

REQUIREMENTS:
1. Apply correct perspective transformation to the rug to match the floor plane
2. Scale the rug appropriately (%s) for realistic proportions
3. Add a subtle contact shadow on the %s side with %s%% opacity
4. Match the rug lighting to the room's ambient lighting
5. Blend edges naturally with the %s floor
6. Maintain photorealistic quality - this should look like the rug is actually in the room

The rug should appear to lie flat on the floor with proper depth perspective where farther portions appear smaller.

First image is the room, second is the rug to place:`,
		rugName,
		mustJSON(a.FloorRegion),
		formatNumber(a.PerspectiveAngle),
		formatNumber(a.VanishingPointY),
		mustJSON(a.RecommendedRugPlacement),
		a.FloorMaterial,
		a.LightDirection,
		formatNumber(a.ShadowIntensity),
		describeDimensions(size),
		a.LightDirection,
		formatNumber(a.ShadowIntensity*100),
		a.FloorMaterial,
	)
}
