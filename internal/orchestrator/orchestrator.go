package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/threadline-rugs/roomview/internal/catalog"
	"github.com/threadline-rugs/roomview/internal/ingest"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

// ErrBusy is returned when an attempt is started while another is in flight
var ErrBusy = errors.New("a visualization is already in progress")

// State is a snapshot of the processing state
type State struct {
	Stage    models.Stage                `json:"stage"`
	Progress int                         `json:"progress"`
	Result   *models.VisualizationResult `json:"result,omitempty"`
}

// Normalizer turns an image source into an inline data URI
type Normalizer interface {
	Normalize(ctx context.Context, src ingest.Source) (string, error)
}

// Resolver returns the image reference for a rug
type Resolver func(models.Rug) (string, error)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithOnSuccess registers a callback fired with the result of a successful attempt
func WithOnSuccess(fn func(*models.VisualizationResult)) Option {
	return func(o *Orchestrator) { o.onSuccess = fn }
}

// WithOnError registers a callback fired with the message of a failed attempt
func WithOnError(fn func(string)) Option {
	return func(o *Orchestrator) { o.onError = fn }
}

// WithOnChange registers a callback fired after every state change
func WithOnChange(fn func(State)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// WithStageDelay holds each pacing stage on screen for d
func WithStageDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageDelay = d }
}

// WithResolver sets how a rug's image reference is found
func WithResolver(fn Resolver) Option {
	return func(o *Orchestrator) { o.resolve = fn }
}

// WithNormalizer replaces the default image fetcher
func WithNormalizer(n Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// Orchestrator drives one visualization attempt at a time through the
// stage pipeline and keeps the resulting state.
type Orchestrator struct {
	visualizer visualize.Visualizer
	normalizer Normalizer
	resolve    Resolver
	stageDelay time.Duration

	onSuccess func(*models.VisualizationResult)
	onError   func(string)
	onChange  func(State)

	mu         sync.Mutex
	state      State
	generation uint64
}

// New creates an idle orchestrator. Without WithResolver, relative rug image
// paths resolve against catalog.DefaultAssetsDir.
func New(v visualize.Visualizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		visualizer: v,
		normalizer: ingest.NewFetcher(0),
		resolve: func(r models.Rug) (string, error) {
			return catalog.ResolveImage(catalog.DefaultAssetsDir, r)
		},
		state: State{Stage: models.StageIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a snapshot of the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsProcessing reports whether an attempt is in flight
func (o *Orchestrator) IsProcessing() bool {
	return o.State().Stage.Active()
}

// Reset returns to idle. An attempt still running keeps going, but its
// updates and callbacks are discarded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.state = State{Stage: models.StageIdle}
	snap := o.state
	o.mu.Unlock()

	o.emit(gen, snap)
}

// ProcessViewInRoom runs one attempt for the room photo and rug. The room
// image is normalized first, then the rug's own image, then the visualizer is
// called. The returned result and error belong to this attempt even if the
// orchestrator was reset in the meantime.
func (o *Orchestrator) ProcessViewInRoom(ctx context.Context, room ingest.Source, rug models.Rug) (*models.VisualizationResult, error) {
	o.mu.Lock()
	if o.state.Stage.Active() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.generation++
	gen := o.generation
	o.state = State{Stage: models.StageUploading, Progress: models.StageUploading.Progress()}
	snap := o.state
	o.mu.Unlock()

	o.emit(gen, snap)
	slog.Info("Starting view-in-room attempt", "rug", rug.ID)

	roomURI, err := o.normalizer.Normalize(ctx, room)
	if err != nil {
		return nil, o.fail(gen, err)
	}

	ref, err := o.resolve(rug)
	if err != nil {
		return nil, o.fail(gen, err)
	}
	rugURI, err := o.normalizer.Normalize(ctx, ingest.FromRef(ref))
	if err != nil {
		return nil, o.fail(gen, err)
	}

	req := visualize.Request{
		RoomImage:     roomURI,
		RugImage:      rugURI,
		RugName:       rug.Name,
		RugDimensions: sizeInFeet(rug.Dimensions),
	}

	result, err := o.visualizer.Visualize(ctx, req, func(stage models.Stage) {
		o.advance(ctx, gen, stage)
	})
	if err != nil {
		return nil, o.fail(gen, err)
	}
	if result == nil || !result.Success {
		msg := "Failed to generate view"
		if result != nil && result.Error != "" {
			msg = result.Error
		}
		return nil, o.fail(gen, errors.New(msg))
	}
	if result.CompositeImageURL == "" {
		return nil, o.fail(gen, &visualize.NoCompositeError{
			FloorAnalysis: result.FloorAnalysis,
			AIMessage:     result.AIMessage,
		})
	}

	o.advance(ctx, gen, models.StageCompositing)
	if snap, ok := o.update(gen, func(s *State) {
		s.Stage = models.StageComplete
		s.Progress = models.StageComplete.Progress()
		s.Result = result
	}); ok {
		o.emit(gen, snap)
		if o.onSuccess != nil && o.current(gen) {
			o.onSuccess(result)
		}
	}

	slog.Info("View-in-room attempt complete", "rug", rug.ID)
	return result, nil
}

// advance walks the stage forward to target, passing through every stage in
// between. It never moves backward.
func (o *Orchestrator) advance(ctx context.Context, gen uint64, target models.Stage) {
	for {
		o.mu.Lock()
		cur := o.state.Stage
		if gen != o.generation || cur == models.StageError || cur.Index() < 0 || cur.Index() >= target.Index() {
			o.mu.Unlock()
			return
		}
		next := models.Pipeline[cur.Index()+1]
		o.mu.Unlock()

		if next == models.StagePlacingRug || next == models.StageGeneratingShadows {
			o.pause(ctx)
		}

		snap, ok := o.update(gen, func(s *State) {
			if s.Stage != cur {
				return
			}
			s.Stage = next
			if p := next.Progress(); p > s.Progress {
				s.Progress = p
			}
		})
		if !ok {
			return
		}
		if snap.Stage == next {
			o.emit(gen, snap)
		}
	}
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.stageDelay <= 0 {
		return
	}
	t := time.NewTimer(o.stageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// fail moves the attempt to the error stage, keeping progress where it was
func (o *Orchestrator) fail(gen uint64, err error) error {
	msg := visualize.Message(err)
	slog.Error("View-in-room attempt failed", "err", err)

	snap, ok := o.update(gen, func(s *State) {
		s.Stage = models.StageError
		s.Result = models.Failed(msg)
	})
	if ok {
		o.emit(gen, snap)
		if o.onError != nil && o.current(gen) {
			o.onError(msg)
		}
	}
	return err
}

// update applies fn if gen is still current
func (o *Orchestrator) update(gen uint64, fn func(*State)) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return State{}, false
	}
	fn(&o.state)
	return o.state, true
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

func (o *Orchestrator) emit(gen uint64, snap State) {
	if o.onChange != nil && o.current(gen) {
		o.onChange(snap)
	}
}

// sizeInFeet converts catalog dimensions to the feet figures used in prompts
func sizeInFeet(d models.Dimensions) *models.RugSize {
	if d.Width <= 0 || d.Height <= 0 {
		return nil
	}
	factor := 1.0
	switch d.Unit {
	case "cm":
		factor = 1 / 30.48
	case "m":
		factor = 1 / 0.3048
	}
	return &models.RugSize{
		Width:  math.Round(d.Width*factor*10) / 10,
		Height: math.Round(d.Height*factor*10) / 10,
	}
}
