package visualize

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/providers"
)

var (
	// ErrMissingImages is returned when either image is absent from a request
	ErrMissingImages = errors.New("Both room and rug images are required")
	// ErrNotConfigured is returned when no credential is available for a provider
	ErrNotConfigured = providers.ErrNotConfigured
	// ErrNoComposite is returned when the model replied without an image
	ErrNoComposite = errors.New("AI could not generate the composite image")
)

const (
	msgRateLimited = "Rate limit exceeded. Please try again in a moment."
	msgQuota       = "AI credits exhausted. Please add credits to continue."
)

// StepError wraps a failed upstream call with the pipeline step it belongs to
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if code := providers.StatusCode(e.Err); code != 0 {
		return fmt.Sprintf("%s failed: %d", e.Step, code)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NoCompositeError carries what the attempt did produce before the composite
// step came back empty.
type NoCompositeError struct {
	FloorAnalysis *models.FloorAnalysis
	AIMessage     string
}

func (e *NoCompositeError) Error() string {
	return ErrNoComposite.Error()
}

func (e *NoCompositeError) Is(target error) bool {
	return target == ErrNoComposite
}

// StatusFor maps a Visualize error to the HTTP status and user-facing message
// returned by the view-in-room endpoint.
func StatusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrMissingImages):
		return http.StatusBadRequest, ErrMissingImages.Error()
	case errors.Is(err, ErrNotConfigured):
		return http.StatusInternalServerError, ErrNotConfigured.Error()
	case errors.Is(err, ErrNoComposite):
		return http.StatusInternalServerError, ErrNoComposite.Error()
	}

	switch providers.StatusCode(err) {
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests, msgRateLimited
	case http.StatusPaymentRequired:
		return http.StatusPaymentRequired, msgQuota
	}
	return http.StatusInternalServerError, err.Error()
}

// Message returns the user-facing text for err
func Message(err error) string {
	_, msg := StatusFor(err)
	return msg
}
