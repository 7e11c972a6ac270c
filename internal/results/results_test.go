package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
	"gopkg.in/yaml.v3"
)

var pngPayload = []byte("\x89PNG\r\n\x1a\nfake")

func testResult() *models.VisualizationResult {
	return &models.VisualizationResult{
		Success:           true,
		CompositeImageURL: ingest.EncodeDataURI("image/png", pngPayload),
		AIMessage:         "Placed the rug",
		ProcessingDetails: &models.ProcessingDetails{Method: "test", Confidence: 0.8},
	}
}

func TestWrite(t *testing.T) {
	report := NewReport(RunConfig{Rug: "royal-isfahan", Room: "room.jpg"}, testResult())
	require.NotEmpty(t, report.Config.Timestamp)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, report, "json"))

		var got Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "royal-isfahan", got.Config.Rug)
		assert.True(t, got.Result.Success)
		assert.Equal(t, "Placed the rug", got.Result.AIMessage)
		assert.Contains(t, got.Result.CompositeImageURL, "bytes")
		assert.NotContains(t, buf.String(), "base64")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, report, "yaml"))

		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		cfg := got["config"].(map[string]any)
		assert.Equal(t, "room.jpg", cfg["room"])
		result := got["result"].(map[string]any)
		assert.Equal(t, true, result["success"])
	})

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, Write(&bytes.Buffer{}, report, "xml"))
	})

	// the caller's result keeps its image
	assert.Contains(t, report.Result.CompositeImageURL, "base64")
}

func TestSaveComposite(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveComposite(testResult(), dir)
	require.NoError(t, err)
	assert.Equal(t, CompositeFileName, filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngPayload, data)

	nested := filepath.Join(dir, "out", "mine.png")
	path, err = SaveComposite(testResult(), nested)
	require.NoError(t, err)
	assert.Equal(t, "mine.png", filepath.Base(path))

	_, err = SaveComposite(models.Failed("nope"), dir)
	assert.Error(t, err)
}

func TestSaveToYAML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	report := NewReport(RunConfig{Rug: "nordic-frost", Timestamp: "2025-01-01_00-00-00"}, models.Failed("boom"))

	path, err := SaveToYAML(dir, report)
	require.NoError(t, err)
	assert.Equal(t, "nordic-frost-2025-01-01_00-00-00.yaml", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "error: boom")
}
