package canvas

import "github.com/threadline-rugs/roomview/internal/models"

// PlacementFromAnalysis converts a recommended placement, whose x and y are
// percentages of the photo, into a pose on a width x height surface. Scale
// and rotation carry over; a zero scale is filled in by New.
func PlacementFromAnalysis(rec models.PlacementTransform, width, height int) models.PlacementTransform {
	return models.PlacementTransform{
		X:           clampPercent(rec.X) / 100 * float64(width),
		Y:           clampPercent(rec.Y) / 100 * float64(height),
		ScaleX:      rec.ScaleX,
		ScaleY:      rec.ScaleY,
		RotationDeg: normalizeAngle(rec.RotationDeg),
	}
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
