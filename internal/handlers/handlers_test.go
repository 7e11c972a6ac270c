package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/providers"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngDataURI(t *testing.T, w, h int, c color.Color) string {
	return ingest.EncodeDataURI("image/png", pngBytes(t, w, h, c))
}

type fakeVisualizer struct {
	result *models.VisualizationResult
	err    error
	block  chan struct{}

	mu   sync.Mutex
	reqs []visualize.Request
}

func (f *fakeVisualizer) Visualize(ctx context.Context, req visualize.Request, report visualize.Reporter) (*models.VisualizationResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if report != nil {
		report(models.StageAnalyzingFloor)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeVisualizer) requests() []visualize.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]visualize.Request(nil), f.reqs...)
}

func newTestHandler(t *testing.T, v visualize.Visualizer) (*Handler, http.Handler) {
	t.Helper()
	rugs := []models.Rug{
		{
			ID: "royal-isfahan", Name: "Royal Isfahan", Price: 899, Style: "Traditional",
			ImageURL:   pngDataURI(t, 40, 60, color.NRGBA{R: 200, A: 255}),
			Dimensions: models.Dimensions{Width: 8, Height: 10, Unit: "ft"},
		},
		{
			ID: "nordic-frost", Name: "Nordic Frost", Price: 349, Style: "Modern",
			ImageURL:   pngDataURI(t, 40, 60, color.NRGBA{B: 200, A: 255}),
			Dimensions: models.Dimensions{Width: 160, Height: 230, Unit: "cm"},
		},
	}
	cat, err := catalog.New(rugs, t.TempDir())
	require.NoError(t, err)

	h := New(Options{Catalog: cat, Visualizer: v, StaticDir: t.TempDir()})
	return h, h.Routes()
}

func successResult(t *testing.T) *models.VisualizationResult {
	fa := visualize.FallbackAnalysis()
	return &models.VisualizationResult{
		Success:           true,
		CompositeImageURL: pngDataURI(t, 4, 4, color.White),
		FloorAnalysis:     &fa,
		AIMessage:         "placed",
		ProcessingDetails: &models.ProcessingDetails{Method: visualize.Method},
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestHealthcheck(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})
	rec := doJSON(t, router, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRugs(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantIDs  []string
	}{
		{"all", "/api/rugs", http.StatusOK, []string{"royal-isfahan", "nordic-frost"}},
		{"style filter", "/api/rugs?style=modern", http.StatusOK, []string{"nordic-frost"}},
		{"single", "/api/rugs/royal-isfahan", http.StatusOK, []string{"royal-isfahan"}},
		{"unknown", "/api/rugs/missing", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantIDs == nil {
				assert.Equal(t, "Rug not found", decodeError(t, rec))
				return
			}

			var rugs []models.Rug
			if strings.HasPrefix(tt.path, "/api/rugs/") {
				var rug models.Rug
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rug))
				rugs = []models.Rug{rug}
			} else {
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rugs))
			}
			var ids []string
			for _, r := range rugs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func multipartRequest(t *testing.T, path, field, filename string, data []byte, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})

	t.Run("multipart image", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "/api/upload", "file", "room.png", pngBytes(t, 30, 20, color.Black), nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp uploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "image/png", resp.MIMEType)
		assert.Equal(t, 30, resp.ImageWidth)
		assert.Equal(t, 20, resp.ImageHeight)
		assert.True(t, strings.HasPrefix(resp.DataURI, "data:image/png;base64,"))
	})

	t.Run("files field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "/api/upload", "files", "room.png", pngBytes(t, 5, 5, color.Black), nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("json data uri", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/upload", map[string]string{"image_url": pngDataURI(t, 8, 6, color.White)})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp uploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 8, resp.ImageWidth)
	})

	tests := []struct {
		name     string
		req      func() *http.Request
		wantCode int
	}{
		{
			name: "text file",
			req: func() *http.Request {
				return multipartRequest(t, "/api/upload", "file", "notes.txt", []byte("hello there"), nil)
			},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name: "local path",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"image_url":"/etc/passwd"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name: "missing reference",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "no file",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("x"))
			},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.req())
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestViewInRoom(t *testing.T) {
	partial := visualize.FallbackAnalysis()

	tests := []struct {
		name      string
		v         visualize.Visualizer
		wantCode  int
		wantError string
		wantAI    string
	}{
		{
			name:     "success",
			v:        &fakeVisualizer{result: successResult(t)},
			wantCode: http.StatusOK,
			wantAI:   "placed",
		},
		{
			name:      "missing images",
			v:         &visualize.Service{},
			wantCode:  http.StatusBadRequest,
			wantError: "Both room and rug images are required",
		},
		{
			name:      "rate limited",
			v:         &fakeVisualizer{err: &visualize.StepError{Step: "Floor analysis", Err: &providers.UpstreamError{Provider: "gateway", StatusCode: 429}}},
			wantCode:  http.StatusTooManyRequests,
			wantError: "Rate limit exceeded. Please try again in a moment.",
		},
		{
			name:      "credits exhausted",
			v:         &fakeVisualizer{err: &providers.UpstreamError{Provider: "gateway", StatusCode: 402}},
			wantCode:  http.StatusPaymentRequired,
			wantError: "AI credits exhausted. Please add credits to continue.",
		},
		{
			name:      "no composite keeps partial analysis",
			v:         &fakeVisualizer{err: &visualize.NoCompositeError{FloorAnalysis: &partial, AIMessage: "sorry"}},
			wantCode:  http.StatusInternalServerError,
			wantError: "AI could not generate the composite image",
			wantAI:    "sorry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := newTestHandler(t, tt.v)
			body := models.ViewInRoomRequest{RoomImageBase64: "Uk9PTQ==", RugImageBase64: "UlVH"}
			if tt.wantCode == http.StatusBadRequest {
				body = models.ViewInRoomRequest{RoomImageBase64: "Uk9PTQ=="}
			}

			rec := doJSON(t, router, http.MethodPost, "/api/view-in-room", body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

			var resp models.VisualizationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantAI, resp.AIMessage)
			if tt.wantCode == http.StatusOK {
				assert.True(t, resp.Success)
				assert.NotEmpty(t, resp.CompositeImageURL)
			}
		})
	}
}

func TestViewInRoomPreflight(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})
	rec := doJSON(t, router, http.MethodOptions, "/api/view-in-room", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "content-type")
}

func createSession(t *testing.T, router http.Handler, rugID string) models.ViewInRoomSession {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]string{
		"rug_id":     rugID,
		"room_image": pngDataURI(t, 64, 48, color.NRGBA{G: 180, A: 255}),
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var snap models.ViewInRoomSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.ID)
	return snap
}

func waitForStage(t *testing.T, router http.Handler, id string, stage models.Stage) models.ViewInRoomSession {
	t.Helper()
	var snap models.ViewInRoomSession
	require.Eventually(t, func() bool {
		rec := doJSON(t, router, http.MethodGet, "/api/sessions/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Stage == stage
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestSessionLifecycle(t *testing.T) {
	v := &fakeVisualizer{result: successResult(t)}
	_, router := newTestHandler(t, v)

	created := createSession(t, router, "nordic-frost")
	assert.Equal(t, "nordic-frost", created.RugID)
	assert.Equal(t, 64, created.RoomImage.ImageWidth)
	assert.Equal(t, 48, created.RoomImage.ImageHeight)

	done := waitForStage(t, router, created.ID, models.StageComplete)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.Result)
	assert.Equal(t, "placed", done.Result.AIMessage)

	reqs := v.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Nordic Frost", reqs[0].RugName)
	require.NotNil(t, reqs[0].RugDimensions)
	assert.InDelta(t, 5.2, reqs[0].RugDimensions.Width, 0.001)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	var list []models.ViewInRoomSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID+"/composite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "view-in-room.png")
	_, err := png.Decode(rec.Body)
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/process", map[string]string{"rug_id": "royal-isfahan"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return len(v.requests()) == 2 }, 2*time.Second, 5*time.Millisecond)
	waitForStage(t, router, created.ID, models.StageComplete)
	assert.Equal(t, "Royal Isfahan", v.requests()[1].RugName)

	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reset models.ViewInRoomSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reset))
	assert.Equal(t, models.StageIdle, reset.Stage)
	assert.Nil(t, reset.Result)

	rec = doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID+"/composite", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, router, http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionFailure(t *testing.T) {
	v := &fakeVisualizer{err: &providers.UpstreamError{Provider: "gateway", StatusCode: 429}}
	_, router := newTestHandler(t, v)

	created := createSession(t, router, "royal-isfahan")
	failed := waitForStage(t, router, created.ID, models.StageError)
	require.NotNil(t, failed.Result)
	assert.False(t, failed.Result.Success)
	assert.Equal(t, "Rate limit exceeded. Please try again in a moment.", failed.Result.Error)
	assert.Less(t, failed.Progress, 100)
}

func TestCreateSessionValidation(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{"missing room", map[string]string{"rug_id": "royal-isfahan"}, http.StatusBadRequest},
		{"unknown rug", map[string]string{"rug_id": "nope", "room_image": pngDataURI(t, 2, 2, color.Black)}, http.StatusNotFound},
		{"not an image", map[string]string{"rug_id": "royal-isfahan", "room_image": "data:text/plain;base64,aGVsbG8="}, http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/sessions", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestProcessWhileBusy(t *testing.T) {
	v := &fakeVisualizer{result: successResult(t), block: make(chan struct{})}
	_, router := newTestHandler(t, v)

	created := createSession(t, router, "royal-isfahan")
	require.Eventually(t, func() bool { return len(v.requests()) == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := doJSON(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/process", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(v.block)
	waitForStage(t, router, created.ID, models.StageComplete)
}

func TestSessionEvents(t *testing.T) {
	v := &fakeVisualizer{result: successResult(t), block: make(chan struct{})}
	_, router := newTestHandler(t, v)
	srv := httptest.NewServer(router)
	defer srv.Close()

	created := createSession(t, router, "royal-isfahan")
	require.Eventually(t, func() bool { return len(v.requests()) == 1 }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/sessions/" + created.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	close(v.block)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var stages []models.Stage
	for _, line := range strings.Split(string(body), "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var state struct {
			Stage models.Stage `json:"stage"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &state))
		stages = append(stages, state.Stage)
	}

	require.NotEmpty(t, stages)
	assert.Equal(t, models.StageComplete, stages[len(stages)-1])
	assert.Contains(t, string(body), "event: state")
}

func TestSessionNotFound(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/events", "/api/sessions/nope/composite"} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Session not found", decodeError(t, rec))
	}
}

func TestRender(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})

	rec := doJSON(t, router, http.MethodPost, "/api/render", map[string]any{
		"room_image":      pngDataURI(t, 200, 150, color.White),
		"rug_id":          "royal-isfahan",
		"container_width": 400,
		"transform":       models.PlacementTransform{X: 200, Y: 150, ScaleX: 1, ScaleY: 1},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "room-with-rug.png")

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())

	r, g, b, _ := img.At(400, 300).RGBA()
	assert.Greater(t, r>>8, uint32(150))
	assert.Less(t, g>>8, uint32(50))
	assert.Less(t, b>>8, uint32(50))
}

func TestRenderValidation(t *testing.T) {
	_, router := newTestHandler(t, &fakeVisualizer{})

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{"missing room", map[string]any{"rug_id": "royal-isfahan"}, http.StatusBadRequest},
		{"unknown rug", map[string]any{"room_image": pngDataURI(t, 4, 4, color.White), "rug_id": "nope"}, http.StatusNotFound},
		{"unknown session", map[string]any{"session_id": "nope"}, http.StatusNotFound},
		{"local rug path", map[string]any{"room_image": pngDataURI(t, 4, 4, color.White), "rug_image": "/etc/hosts"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/render", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}
