package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline-rugs/roomview/internal/models"
)

func TestReadRecommendation(t *testing.T) {
	want := models.PlacementTransform{X: 50, Y: 70, ScaleX: 0.6, ScaleY: 0.4}

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "visualize report",
			doc:  `{"config":{"rug":"r"},"result":{"success":true,"floorAnalysis":{"recommendedRugPlacement":{"x":50,"y":70,"scaleX":0.6,"scaleY":0.4,"rotationDeg":0}}}}`,
		},
		{
			name: "bare result",
			doc:  `{"success":true,"floorAnalysis":{"recommendedRugPlacement":{"x":50,"y":70,"scaleX":0.6,"scaleY":0.4}}}`,
		},
		{
			name: "bare analysis",
			doc:  `{"floorDetected":true,"recommendedRugPlacement":{"x":50,"y":70,"scaleX":0.6,"scaleY":0.4}}`,
		},
		{
			name:    "no placement",
			doc:     `{"success":false,"error":"boom"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			doc:     `nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "doc.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0644))

			got, err := readRecommendation(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLocalRef(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "room.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	t.Chdir(dir)

	got, err := localRef("room.jpg")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "room.jpg", filepath.Base(got))

	for _, ref := range []string{"data:image/png;base64,AA==", "https://example.com/room.jpg", path} {
		got, err := localRef(ref)
		require.NoError(t, err)
		assert.Equal(t, ref, got)
	}
}
