// Package indicator renders the processing state for the terminal.
package indicator

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/orchestrator"
)

const barWidth = 30

var (
	colorCyan  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorRed   = lipgloss.Color("167")
	colorWhite = lipgloss.Color("255")
	colorDim   = lipgloss.Color("240")
)

var (
	styleLabel       = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabelDone   = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	styleLabelError  = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleDescription = lipgloss.NewStyle().Foreground(colorDim)
	styleBarFill     = lipgloss.NewStyle().Foreground(colorCyan)
	styleBarEmpty    = lipgloss.NewStyle().Foreground(colorDim)
	styleDone        = lipgloss.NewStyle().Foreground(colorGreen)
	styleCurrent     = lipgloss.NewStyle().Foreground(colorWhite)
	styleFailed      = lipgloss.NewStyle().Foreground(colorRed)
	stylePending     = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	iconDone    = "✓"
	iconCurrent = "›"
	iconFailed  = "✗"
	iconPending = "·"
)

// Steps are the stages shown in the checklist
var Steps = []models.Stage{
	models.StageUploading,
	models.StageAnalyzingFloor,
	models.StageDetectingPerspective,
	models.StagePlacingRug,
	models.StageGeneratingShadows,
	models.StageCompositing,
}

// Render draws the label, description, progress bar and step checklist
func Render(s orchestrator.State) string {
	var b strings.Builder

	label := styleLabel
	switch s.Stage {
	case models.StageComplete:
		label = styleLabelDone
	case models.StageError:
		label = styleLabelError
	}
	b.WriteString(label.Render(s.Stage.Label()))
	b.WriteString("\n")

	desc := s.Stage.Description()
	if s.Stage == models.StageError && s.Result != nil && s.Result.Error != "" {
		desc = s.Result.Error
	}
	b.WriteString(styleDescription.Render(desc))
	b.WriteString("\n")

	b.WriteString(Bar(s.Progress))
	b.WriteString("\n")

	reached := reachedIndex(s)
	for i, step := range Steps {
		var line string
		switch {
		case s.Stage == models.StageError && i == reached:
			line = styleFailed.Render(iconFailed + " " + step.Label())
		case s.Stage == models.StageComplete || i < reached:
			line = styleDone.Render(iconDone + " " + step.Label())
		case i == reached:
			line = styleCurrent.Render(iconCurrent + " " + step.Label())
		default:
			line = stylePending.Render(iconPending + " " + step.Label())
		}
		b.WriteString("  " + line + "\n")
	}

	return b.String()
}

// Bar draws a fixed-width progress bar followed by the percentage
func Bar(progress int) string {
	progress = max(0, min(progress, 100))
	filled := progress * barWidth / 100
	return styleBarFill.Render(strings.Repeat("█", filled)) +
		styleBarEmpty.Render(strings.Repeat("░", barWidth-filled)) +
		fmt.Sprintf(" %3d%%", progress)
}

// reachedIndex is the checklist position of the stage the attempt is in, or
// for a failed attempt the last stage it reached.
func reachedIndex(s orchestrator.State) int {
	if s.Stage == models.StageError {
		for i := len(Steps) - 1; i >= 0; i-- {
			if Steps[i].Progress() <= s.Progress {
				return i
			}
		}
		return 0
	}
	for i, step := range Steps {
		if step == s.Stage {
			return i
		}
	}
	if s.Stage == models.StageComplete {
		return len(Steps)
	}
	return -1
}
