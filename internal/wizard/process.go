package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/slidewizard/backend/internal/models"
)

// ProcessRun holds the single processing slot of a controller until Run
// returns or Abort is called.
type ProcessRun struct {
	c         *Controller
	batchName string
	options   models.GenerateOptions
	config    *models.Configuration
	done      bool
}

// BeginProcess validates a batch upload and claims the processing slot.
// A second call while a run is in flight fails with ErrBusy.
func (c *Controller) BeginProcess(batchName string, size int64, opts models.GenerateOptions) (*ProcessRun, error) {
	c.mu.Lock()
	cur := c.step
	ready := c.configReady
	busy := c.processing
	c.mu.Unlock()

	if cur != StepProcess || !ready {
		return nil, c.fail(cur, KindPrerequisite, ErrNotConfigured)
	}
	if busy {
		return nil, &StepError{Step: cur, Kind: KindBusy, Message: ErrBusy.Error(), Err: ErrBusy}
	}
	if err := checkFile(batchName, size, eofReader{}, ".zip"); err != nil {
		return nil, c.fail(cur, KindValidation, err)
	}
	if opts.ImageOrder == "" {
		opts.ImageOrder = models.ImageOrderAlphabetical
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil, &StepError{Step: cur, Kind: KindBusy, Message: ErrBusy.Error(), Err: ErrBusy}
	}
	c.processing = true
	c.inlineErr = nil
	c.mu.Unlock()
	c.changed()

	return &ProcessRun{
		c:         c,
		batchName: batchName,
		options:   opts,
		config:    c.store.Snapshot(),
	}, nil
}

// Run sends the batch to the generator. Results replace the previous run's
// and reload the slideshow.
func (r *ProcessRun) Run(ctx context.Context, batch io.Reader) (*models.GenerateResult, error) {
	if r.done {
		return nil, errors.New("process run already finished")
	}
	r.done = true
	c := r.c

	res, err := c.generator.Generate(ctx, models.GenerateRequest{
		Config:    r.config,
		BatchName: r.batchName,
		Batch:     batch,
		Options:   r.options,
	})
	if err != nil {
		var details []models.Detail
		var d detailer
		if errors.As(err, &d) {
			details = d.FailureDetails()
		}

		c.mu.Lock()
		c.processing = false
		c.failureDetails = details
		c.mu.Unlock()

		c.log.Warn("generation failed", "batch", r.batchName, "error", err)
		return nil, c.fail(StepProcess, KindRemote, err)
	}

	slides := res.Slides
	if len(slides) == 0 {
		slides = []models.SlidePreview{{
			ID:      res.OutputArtifactID,
			Title:   "Generated presentation",
			Caption: fmt.Sprintf("%d slides from %d folders", res.Stats.CreatedSlides, res.Stats.ProcessedFolders),
		}}
	}
	c.nav.Load(slides)

	c.mu.Lock()
	c.processing = false
	c.results = res
	c.failureDetails = nil
	c.inlineErr = nil
	c.mu.Unlock()

	c.log.Info("generation finished", "batch", r.batchName, "artifact", res.OutputArtifactID,
		"slides", res.Stats.CreatedSlides, "folders", res.Stats.ProcessedFolders)
	c.notify(models.NotifySuccess, "Presentation generated successfully")
	c.changed()
	return res, nil
}

// Abort releases the processing slot without running.
func (r *ProcessRun) Abort() {
	if r.done {
		return
	}
	r.done = true
	r.c.mu.Lock()
	r.c.processing = false
	r.c.mu.Unlock()
	r.c.changed()
}

// Process is BeginProcess followed by Run.
func (c *Controller) Process(ctx context.Context, batchName string, size int64, batch io.Reader, opts models.GenerateOptions) (*models.GenerateResult, error) {
	run, err := c.BeginProcess(batchName, size, opts)
	if err != nil {
		return nil, err
	}
	return run.Run(ctx, batch)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
