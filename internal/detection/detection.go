// Package detection runs one detection request end to end: validate the
// upload, stage it, run the detector, store the image and record the result.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/detector"
	"github.com/pixeon-io/pixeon/internal/models"
	"github.com/pixeon-io/pixeon/internal/storage"
	"github.com/pixeon-io/pixeon/internal/upload"
)

// State is a step of a single detection request
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateStaged    State = "staged"
	StateDetected  State = "detected"
	StatePersisted State = "persisted"
	StateResponded State = "responded"
	StateRejected  State = "rejected"
	StateFailed    State = "failed"
)

type Validator interface {
	Inspect(contentType string, data []byte) (*upload.ImageInfo, error)
}

type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]models.DetectionBox, float64, error)
}

type Blobs interface {
	Store(ctx context.Context, data []byte, originalFilename, contentType string) (storage.Ref, error)
	Delete(ctx context.Context, ref storage.Ref) bool
	PublicURL(ref storage.Ref) string
}

type Recorder interface {
	Record(ctx context.Context, userID string, ref storage.Ref, detections []models.DetectionBox, elapsed float64) (*models.DetectionHistory, error)
}

// Upload is the image as received from the client
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result is returned to the client after a successful detection
type Result struct {
	ID             string                `json:"id"`
	ImageURL       string                `json:"image_url"`
	Detections     []models.DetectionBox `json:"detections"`
	ProcessingTime float64               `json:"processing_time"`
}

type Orchestrator struct {
	validator Validator
	detector  Detector
	blobs     Blobs
	history   Recorder
	log       *slog.Logger

	// where request images are staged, os.TempDir() when empty
	stagingDir string
}

func NewOrchestrator(v Validator, d Detector, b Blobs, h Recorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		validator: v,
		detector:  d,
		blobs:     b,
		history:   h,
		log:       log,
	}
}

// request tracks one pass through the pipeline
type request struct {
	log   *slog.Logger
	state State
}

func (r *request) to(s State, args ...any) {
	r.log.Info("detection state", append([]any{"from", r.state, "to", s}, args...)...)
	r.state = s
}

// fail moves to the failure state matching err and returns err unchanged.
func (r *request) fail(err error) error {
	if errors.Is(err, common.ErrValidation) {
		r.to(StateRejected, "reason", err.Error())
		return err
	}
	r.log.Error("detection failed", "state", r.state, "error", err)
	r.state = StateFailed
	return err
}

// Run processes up on behalf of user.
func (o *Orchestrator) Run(ctx context.Context, user *models.User, up Upload) (*Result, error) {
	req := &request{
		log:   o.log.With("user_id", user.ID, "filename", up.Filename),
		state: StateReceived,
	}

	info, err := o.validator.Inspect(up.ContentType, up.Data)
	if err != nil {
		return nil, req.fail(err)
	}
	req.to(StateValidated, "width", info.Width, "height", info.Height, "size", info.Size)

	staged, cleanup, err := o.stage(up, info.ContentType)
	if err != nil {
		return nil, req.fail(common.Wrap(common.ErrStorage, err, "failed to stage image"))
	}
	defer cleanup()
	req.to(StateStaged)

	detections, elapsed, err := o.detector.Detect(ctx, staged)
	if err != nil {
		return nil, req.fail(err)
	}
	req.to(StateDetected, "detections", len(detections), "elapsed", elapsed)

	ref, err := o.blobs.Store(ctx, up.Data, up.Filename, info.ContentType)
	if err != nil {
		return nil, req.fail(err)
	}

	record, err := o.history.Record(ctx, user.ID, ref, detections, elapsed)
	if err != nil {
		// the blob would otherwise be orphaned
		if !o.blobs.Delete(ctx, ref) {
			req.log.Warn("image left orphaned after failed history write", "backend", ref.Backend, "key", ref.Key)
		}
		return nil, req.fail(common.Wrap(common.ErrStorage, err, "failed to save detection"))
	}
	req.to(StatePersisted, "history_id", record.ID)

	result := &Result{
		ID:             record.ID,
		ImageURL:       o.blobs.PublicURL(ref),
		Detections:     detections,
		ProcessingTime: detector.Round2(elapsed),
	}
	req.to(StateResponded)
	return result, nil
}

// stage writes the upload to a request-scoped temp file. cleanup removes it.
func (o *Orchestrator) stage(up Upload, contentType string) (string, func(), error) {
	f, err := os.CreateTemp(o.stagingDir, "pixeon-*"+storage.Extension(up.Filename, contentType))
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	cleanup := func() {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.log.Warn("failed to remove staged image", "path", name, "error", err)
		}
	}

	if _, err := f.Write(up.Data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write staged image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close staged image: %w", err)
	}
	return name, cleanup, nil
}
