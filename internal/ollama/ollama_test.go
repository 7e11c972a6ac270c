package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/threadline-rugs/roomview/internal/providers"
)

func TestExtractTextStripsDataURIPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model  string   `json:"model"`
			Images []string `json:"images"`
			Format string   `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Invalid body: %v", err)
			return
		}
		if len(body.Images) != 1 || body.Images[0] != "aGVsbG8=" {
			t.Errorf("Expected raw base64 image, got %v", body.Images)
		}
		if body.Format != "json" {
			t.Errorf("Expected json format, got %q", body.Format)
		}
		w.Write([]byte(`{"response":"{\"confidence\":0.9}"}`))
	}))
	defer server.Close()

	o := New(server.URL, time.Second)
	text, err := o.ExtractText(context.Background(), providers.Config{
		Model:  "llava:13b",
		Prompt: "analyze",
		Images: []string{"data:image/png;base64,aGVsbG8="},
	})
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != `{"confidence":0.9}` {
		t.Errorf("Unexpected response: %s", text)
	}
}

func TestExtractTextUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	o := New(server.URL, time.Second)
	_, err := o.ExtractText(context.Background(), providers.Config{Prompt: "p"})
	if providers.StatusCode(err) != http.StatusNotFound {
		t.Errorf("Expected upstream 404, got %v", err)
	}
}

func TestGenerateImageUnsupported(t *testing.T) {
	o := New("", time.Second)
	_, err := o.GenerateImage(context.Background(), providers.Config{})
	if !errors.Is(err, providers.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}
