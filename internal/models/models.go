package models

import (
	"math"
	"time"
)

// Dimensions is the physical size of a rug.
type Dimensions struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Unit   string  `json:"unit" yaml:"unit"` // "ft", "cm", "m"
}

// Rug represents a purchasable catalog item
type Rug struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	Collection    string     `json:"collection" yaml:"collection"`
	Price         float64    `json:"price" yaml:"price"`
	OriginalPrice *float64   `json:"originalPrice,omitempty" yaml:"originalPrice,omitempty"`
	ImageURL      string     `json:"imageUrl" yaml:"imageUrl"`
	Dimensions    Dimensions `json:"dimensions" yaml:"dimensions"`
	Material      string     `json:"material" yaml:"material"`
	Style         string     `json:"style" yaml:"style"`
	Colors        []string   `json:"colors" yaml:"colors"`
	Description   string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// OnSale reports whether the rug carries a pre-discount price.
func (r Rug) OnSale() bool {
	return r.OriginalPrice != nil && *r.OriginalPrice > r.Price
}

// DiscountPercent returns the whole-number discount, or 0 when not on sale.
func (r Rug) DiscountPercent() int {
	if !r.OnSale() {
		return 0
	}
	ratio := r.Price / *r.OriginalPrice
	return int(math.Round((1 - ratio) * 100))
}

// PlacementTransform is the pose of the rug layer on the placement canvas.
// X and Y anchor the layer centre.
type PlacementTransform struct {
	X           float64 `json:"x" yaml:"x"`
	Y           float64 `json:"y" yaml:"y"`
	ScaleX      float64 `json:"scaleX" yaml:"scaleX"`
	ScaleY      float64 `json:"scaleY" yaml:"scaleY"`
	RotationDeg float64 `json:"rotationDeg" yaml:"rotationDeg"`
}

// Region is a rectangle expressed in percentages (0-100) of the image extent.
type Region struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// FloorAnalysis is the structured floor description produced by the vision step
type FloorAnalysis struct {
	FloorDetected           bool               `json:"floorDetected" yaml:"floorDetected"`
	FloorRegion             Region             `json:"floorRegion" yaml:"floorRegion"`
	PerspectiveAngle        float64            `json:"perspectiveAngle" yaml:"perspectiveAngle"`
	VanishingPointY         float64            `json:"vanishingPointY" yaml:"vanishingPointY"`
	RecommendedRugPlacement PlacementTransform `json:"recommendedRugPlacement" yaml:"recommendedRugPlacement"`
	FloorMaterial           string             `json:"floorMaterial" yaml:"floorMaterial"`
	LightDirection          string             `json:"lightDirection" yaml:"lightDirection"`
	ShadowIntensity         float64            `json:"shadowIntensity" yaml:"shadowIntensity"`
	Confidence              float64            `json:"confidence" yaml:"confidence"`
	// WasFallback is set when the model output could not be used and the
	// fixed default record was substituted.
	WasFallback bool `json:"wasFallback" yaml:"wasFallback"`
}

// ProcessingDetails summarizes which pipeline steps ran
type ProcessingDetails struct {
	FloorDetected      bool    `json:"floorDetected" yaml:"floorDetected"`
	Confidence         float64 `json:"confidence" yaml:"confidence"`
	PerspectiveApplied bool    `json:"perspectiveApplied" yaml:"perspectiveApplied"`
	ShadowGenerated    bool    `json:"shadowGenerated" yaml:"shadowGenerated"`
	Method             string  `json:"method" yaml:"method"`
	WasFallback        bool    `json:"wasFallback" yaml:"wasFallback"`
}

// VisualizationResult is the outcome of one visualization attempt.
// Success implies CompositeImageURL is set; failure implies Error is set and
// the analysis fields are empty.
type VisualizationResult struct {
	Success           bool               `json:"success" yaml:"success"`
	CompositeImageURL string             `json:"compositeImageUrl,omitempty" yaml:"compositeImageUrl,omitempty"`
	FloorAnalysis     *FloorAnalysis     `json:"floorAnalysis,omitempty" yaml:"floorAnalysis,omitempty"`
	AIMessage         string             `json:"aiMessage,omitempty" yaml:"aiMessage,omitempty"`
	ProcessingDetails *ProcessingDetails `json:"processingDetails,omitempty" yaml:"processingDetails,omitempty"`
	Error             string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed builds the failure form of a result.
func Failed(message string) *VisualizationResult {
	return &VisualizationResult{Success: false, Error: message}
}

// RugSize is the rug size sent alongside a visualization request.
type RugSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ViewInRoomRequest is the request body of the view-in-room endpoint
type ViewInRoomRequest struct {
	RoomImageBase64 string   `json:"roomImageBase64"`
	RugImageBase64  string   `json:"rugImageBase64"`
	RugName         string   `json:"rugName,omitempty"`
	RugDimensions   *RugSize `json:"rugDimensions,omitempty"`
}

// ViewInRoomSession is one in-memory visualization session served over HTTP
type ViewInRoomSession struct {
	ID        string               `json:"id"`
	RugID     string               `json:"rug_id"`
	RoomImage ImageItem            `json:"room_image"`
	Stage     Stage                `json:"stage"`
	Progress  int                  `json:"progress"`
	Result    *VisualizationResult `json:"result,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// ImageItem describes an uploaded image
type ImageItem struct {
	MIMEType    string `json:"mime_type"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
	Size        int    `json:"size"`
}
