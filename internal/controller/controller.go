package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cloudpose/internal/imagefile"
	"cloudpose/internal/logging"
	"cloudpose/internal/services"
	"cloudpose/internal/services/posesvc"
)

// NoImageMessage is shown when a request is attempted before selecting an image.
const NoImageMessage = "Please select an image first"

// PoseService is the remote collaborator.
type PoseService interface {
	Keypoints(ctx context.Context, env posesvc.Envelope) (*posesvc.PoseResult, error)
	Annotated(ctx context.Context, env posesvc.Envelope) (*posesvc.AnnotatedResult, error)
}

// Controller is the interaction state machine.
type Controller struct {
	service PoseService
	logger  *slog.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int

	// publishMu orders notifications so subscribers see snapshots in mutation order.
	publishMu sync.Mutex

	// previews counts preview goroutines still running; guarded by mu.
	previews     int
	previewsIdle *sync.Cond
}

// Option customizes the controller.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a controller in the idle state with the pose view active.
func New(service PoseService, opts ...Option) *Controller {
	c := &Controller{
		service:     service,
		logger:      logging.NewNop(),
		state:       State{View: ViewPose},
		subscribers: map[int]func(State){},
	}
	c.previewsIdle = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "controller")
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase returns the derived workflow state.
func (c *Controller) Phase() Phase {
	return c.Snapshot().Phase()
}

// Wait blocks until background preview work has finished. It may be called
// concurrently with SelectImage; previews started after Wait returns are not
// waited for.
func (c *Controller) Wait() {
	c.mu.Lock()
	for c.previews > 0 {
		c.previewsIdle.Wait()
	}
	c.mu.Unlock()
}

func (c *Controller) previewDone() {
	c.mu.Lock()
	c.previews--
	if c.previews == 0 {
		c.previewsIdle.Broadcast()
	}
	c.mu.Unlock()
}

// SelectImage replaces the selected image and clears results and errors. A nil
// image is ignored. The preview is computed in the background; if a newer image
// is selected first, the stale preview is discarded.
func (c *Controller) SelectImage(ctx context.Context, img *imagefile.Image) {
	if img == nil {
		return
	}
	if !img.IsImage() {
		logging.WarnWithContext(c.logger, "selected file does not look like an image", "image_type_unexpected",
			logging.String("file_name", img.Name),
			logging.String("mime_type", img.MIMEType),
			logging.String(logging.FieldErrorHint, "the service may reject non-image content"),
		)
	}

	c.mu.Lock()
	c.state.Selection++
	selection := c.state.Selection
	c.state.Image = img
	c.state.Preview = ""
	c.state.Pose = nil
	c.state.Annotated = ""
	c.state.Error = ""
	c.previews++
	c.mu.Unlock()
	c.logger.Info("image selected",
		logging.String("file_name", img.Name),
		logging.String("mime_type", img.MIMEType),
		logging.Int64("size_bytes", img.Size),
	)
	c.publish()

	go func() {
		defer c.previewDone()
		preview, err := imagefile.Preview(ctx, img)

		c.mu.Lock()
		if c.state.Selection != selection {
			c.mu.Unlock()
			c.logger.Debug("discarding stale preview", logging.String("file_name", img.Name))
			return
		}
		if err != nil {
			c.state.Error = errorMessage(err)
		} else {
			c.state.Preview = preview
		}
		c.mu.Unlock()
		if err != nil {
			logging.WarnWithContext(c.logger, "preview failed", "preview_failed",
				logging.String("file_name", img.Name),
				logging.Error(err),
			)
		}
		c.publish()
	}()
}

// SetViewMode switches the active result view. Unknown modes are rejected and
// leave the state unchanged.
func (c *Controller) SetViewMode(mode ViewMode) error {
	if !mode.Valid() {
		return services.Wrap(services.ErrValidation, "controller", "view mode", "unknown view "+string(mode), nil)
	}
	c.mu.Lock()
	changed := c.state.View != mode
	c.state.View = mode
	c.mu.Unlock()
	if changed {
		c.publish()
	}
	return nil
}

// RequestPoseKeypoints submits the selected image to the keypoints endpoint.
// On success the result is stored and the pose view activated; on failure the
// previous result is kept and the error message set. The returned error is the
// one surfaced in state.
func (c *Controller) RequestPoseKeypoints(ctx context.Context) error {
	return c.dispatch(ctx, posesvc.OpKeypoints, func(ctx context.Context, env posesvc.Envelope) (func(*State), error) {
		result, err := c.service.Keypoints(ctx, env)
		if err != nil {
			return nil, err
		}
		return func(s *State) {
			s.Pose = result
			s.View = ViewPose
		}, nil
	})
}

// RequestAnnotatedImage submits the selected image to the annotated endpoint.
// The annotated view is activated on success even when the service returned
// no image.
func (c *Controller) RequestAnnotatedImage(ctx context.Context) error {
	return c.dispatch(ctx, posesvc.OpAnnotated, func(ctx context.Context, env posesvc.Envelope) (func(*State), error) {
		result, err := c.service.Annotated(ctx, env)
		if err != nil {
			return nil, err
		}
		return func(s *State) {
			if result.HasImage() {
				s.Annotated = result.DataURL()
			}
			s.View = ViewAnnotated
		}, nil
	})
}

type call func(ctx context.Context, env posesvc.Envelope) (func(*State), error)

func (c *Controller) dispatch(ctx context.Context, op posesvc.Operation, fn call) error {
	c.mu.Lock()
	img := c.state.Image
	if img == nil {
		c.state.Error = NoImageMessage
		c.mu.Unlock()
		c.publish()
		return services.Wrap(services.ErrValidation, "controller", string(op), NoImageMessage, nil)
	}
	selection := c.state.Selection
	c.state.InFlight++
	c.state.Loading = true
	c.state.Error = ""
	c.mu.Unlock()
	c.publish()

	var (
		apply func(*State)
		err   error
	)
	defer func() {
		c.mu.Lock()
		c.state.InFlight--
		c.state.Loading = c.state.InFlight > 0
		stale := c.state.Selection != selection
		if !stale {
			if err != nil {
				c.state.Error = errorMessage(err)
			} else if apply != nil {
				apply(&c.state)
			}
		}
		c.mu.Unlock()
		if stale {
			c.logger.Info("dropping response for replaced image",
				logging.String(logging.FieldOperation, string(op)),
				logging.String("file_name", img.Name),
			)
		}
		c.publish()
	}()

	payload, err := imagefile.EncodeBase64(ctx, img)
	if err != nil {
		c.logFailure(ctx, op, img, err)
		return err
	}
	env := posesvc.NewEnvelope(payload, img.Name)
	ctx = services.WithOperation(services.WithRequestID(ctx, env.ID), string(op))
	logging.WithContext(ctx, c.logger).Info("request dispatched",
		logging.String("file_name", img.Name),
		logging.Int("payload_chars", len(payload)),
	)

	apply, err = fn(ctx, env)
	if err != nil {
		c.logFailure(ctx, op, img, err)
		return err
	}
	logging.WithContext(ctx, c.logger).Info("request completed", logging.String("file_name", img.Name))
	return nil
}

func (c *Controller) logFailure(ctx context.Context, op posesvc.Operation, img *imagefile.Image, err error) {
	logger := logging.WithContext(ctx, c.logger)
	hint := "check that the pose service is reachable"
	if errors.Is(err, services.ErrEncoding) {
		hint = "check that the image file is readable"
	}
	logging.ErrorWithContext(logger, "request failed", "pose_request_failed",
		logging.String(logging.FieldOperation, string(op)),
		logging.String("file_name", img.Name),
		logging.String("error_kind", string(services.Classify(err))),
		logging.String(logging.FieldErrorHint, hint),
		logging.Error(err),
	)
}

// errorMessage renders err for display. HTTP failures show only the status
// text; the taxonomy prefix stays in the logs.
func errorMessage(err error) string {
	var statusErr *posesvc.HTTPStatusError
	if errors.As(err, &statusErr) {
		return "Error: " + statusErr.Error()
	}
	return "Error: " + err.Error()
}
