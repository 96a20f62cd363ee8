// Package detector runs object detection against staged image files. The
// model is loaded on first use and inference runs on a bounded worker pool.
package detector

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/models"
	"golang.org/x/sync/semaphore"
)

// Model runs inference on an image file
type Model interface {
	Predict(ctx context.Context, imagePath string) ([]models.DetectionBox, error)
}

// LoadFunc creates the model. It is called at most once per successful load.
type LoadFunc func(ctx context.Context) (Model, error)

type modelBox struct{ Model }

type Options struct {
	// Workers bounds concurrent inference calls. Zero means runtime.NumCPU().
	Workers int
	// Concurrent declares the model safe for parallel Predict calls.
	Concurrent bool
}

// Detector owns the lazily loaded model.
type Detector struct {
	load LoadFunc
	log  *slog.Logger

	mu    sync.Mutex
	model atomic.Pointer[modelBox]

	pool      *semaphore.Weighted
	inferMu   sync.Mutex
	serialize bool
}

func New(load LoadFunc, opts Options, log *slog.Logger) *Detector {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Detector{
		load:      load,
		log:       log,
		pool:      semaphore.NewWeighted(int64(workers)),
		serialize: !opts.Concurrent,
	}
}

// Detect runs the model on imagePath and reports elapsed wall time in
// seconds, including a first-use load.
func (d *Detector) Detect(ctx context.Context, imagePath string) ([]models.DetectionBox, float64, error) {
	start := time.Now()

	model, err := d.getModel(ctx)
	if err != nil {
		return nil, 0, common.Wrap(common.ErrDetection, err, "failed to load detection model")
	}

	if err := d.pool.Acquire(ctx, 1); err != nil {
		return nil, 0, common.Wrap(common.ErrDetection, err, "detection cancelled")
	}
	defer d.pool.Release(1)

	if d.serialize {
		d.inferMu.Lock()
		defer d.inferMu.Unlock()
	}

	boxes, err := model.Predict(ctx, imagePath)
	if err != nil {
		return nil, 0, common.Wrap(common.ErrDetection, err, "detection failed")
	}
	if boxes == nil {
		boxes = []models.DetectionBox{}
	}

	elapsed := time.Since(start).Seconds()
	d.log.Debug("detection finished", "detections", len(boxes), "elapsed", elapsed)
	return boxes, elapsed, nil
}

// Loaded reports whether the model has been created
func (d *Detector) Loaded() bool {
	return d.model.Load() != nil
}

func (d *Detector) getModel(ctx context.Context) (Model, error) {
	if m := d.model.Load(); m != nil {
		return m.Model, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// another caller may have finished loading while we waited
	if m := d.model.Load(); m != nil {
		return m.Model, nil
	}

	d.log.Info("loading detection model")
	start := time.Now()
	model, err := d.load(ctx)
	if err != nil {
		d.log.Error("failed to load detection model", "error", err)
		return nil, err
	}
	d.model.Store(&modelBox{model})
	d.log.Info("detection model loaded", "elapsed", time.Since(start))
	return model, nil
}
