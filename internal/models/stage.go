package models

// Stage is one named step of a visualization attempt.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageUploading            Stage = "uploading"
	StageAnalyzingFloor       Stage = "analyzing-floor"
	StageDetectingPerspective Stage = "detecting-perspective"
	StagePlacingRug           Stage = "placing-rug"
	StageGeneratingShadows    Stage = "generating-shadows"
	StageCompositing          Stage = "compositing"
	StageComplete             Stage = "complete"
	StageError                Stage = "error"
)

// Pipeline lists the forward stages in order, idle through complete.
var Pipeline = []Stage{
	StageIdle,
	StageUploading,
	StageAnalyzingFloor,
	StageDetectingPerspective,
	StagePlacingRug,
	StageGeneratingShadows,
	StageCompositing,
	StageComplete,
}

type stageInfo struct {
	progress    int
	label       string
	description string
}

var stages = map[Stage]stageInfo{
	StageIdle:                 {0, "Ready", "Upload a room photo to begin"},
	StageUploading:            {10, "Uploading", "Preparing images for AI analysis"},
	StageAnalyzingFloor:       {25, "AI Floor Detection", "Neural network analyzing floor boundaries"},
	StageDetectingPerspective: {40, "Perspective Analysis", "Computing room geometry and vanishing points"},
	StagePlacingRug:           {55, "Rug Placement", "Applying perspective transformation to rug"},
	StageGeneratingShadows:    {70, "Shadow Generation", "Creating realistic contact shadows"},
	StageCompositing:          {90, "Final Compositing", "Blending rug into room environment"},
	StageComplete:             {100, "Complete", "AI-generated preview ready"},
	StageError:                {-1, "Error", "Something went wrong"},
}

// Index returns the position of s in Pipeline, or -1 for error and unknown stages.
func (s Stage) Index() int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Progress returns the nominal percent for s. The error stage has none (-1);
// progress freezes at whatever it was when the attempt failed.
func (s Stage) Progress() int {
	if info, ok := stages[s]; ok {
		return info.progress
	}
	return -1
}

// Label is the short display name of s.
func (s Stage) Label() string {
	return stages[s].label
}

// Description is the one-line explanation shown under the label.
func (s Stage) Description() string {
	return stages[s].description
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stages[s]
	return ok
}

// Active reports whether an attempt is in flight in stage s.
func (s Stage) Active() bool {
	return s != StageIdle && s != StageComplete && s != StageError && s.Valid()
}

// Cosmetic reports whether s exists only to pace the progress display.
func (s Stage) Cosmetic() bool {
	return s == StageDetectingPerspective || s == StagePlacingRug || s == StageGeneratingShadows
}
