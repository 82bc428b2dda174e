// Package wizard drives the upload, configure and process steps.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/slidewizard/backend/internal/binder"
	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/placeholder"
	"github.com/slidewizard/backend/internal/settings"
	"github.com/slidewizard/backend/internal/slideshow"
)

var (
	ErrBusy            = errors.New("processing already in progress")
	ErrNoPlaceholders  = errors.New("no placeholders detected in the template")
	ErrNoPrevious      = errors.New("no previous settings found")
	ErrPreviousStep    = errors.New("previous settings can only be used from the upload step")
	ErrNotConfigured   = errors.New("configuration has not been confirmed")
	ErrNoAnalysis      = errors.New("upload and analyze a template first")
	ErrInvalidStep     = errors.New("invalid step")
	ErrWrongExtension  = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
	ErrMissingFile     = errors.New("no file selected")
	ErrNoConfiguration = errors.New("no configuration to submit")
	ErrNoOutput        = errors.New("no generated file to download")
)

// Analyzer inspects an uploaded template.
type Analyzer interface {
	Analyze(ctx context.Context, name string, r io.Reader) (*models.Analysis, error)
}

// Generator produces the output batch and serves the generated file.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error)
	Download(ctx context.Context, artifactID string) (*models.Artifact, error)
}

// detailer is implemented by remote failures that carry partial diagnostics.
type detailer interface {
	FailureDetails() []models.Detail
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Store     *placeholder.Store
	Binder    *binder.Binder
	Navigator *slideshow.Navigator
	Settings  *settings.Persistence
	Analyzer  Analyzer
	Generator Generator
}

// State is a snapshot of the wizard for rendering.
type State struct {
	Step             Step                   `json:"step"`
	StepName         string                 `json:"stepName"`
	Busy             bool                   `json:"busy"`
	Processing       bool                   `json:"processing"`
	Error            *StepError             `json:"error,omitempty"`
	SkipConfigure    bool                   `json:"skipConfigure"`
	TemplateName     string                 `json:"templateName,omitempty"`
	HasAnalysis      bool                   `json:"hasAnalysis"`
	PlaceholderCount int                    `json:"placeholderCount"`
	Statistics       map[string]int         `json:"statistics,omitempty"`
	ConfigReady      bool                   `json:"configReady"`
	Summary          *placeholder.Summary   `json:"summary,omitempty"`
	Results          *models.GenerateResult `json:"results,omitempty"`
	FailureDetails   []models.Detail        `json:"failureDetails,omitempty"`
	ShowDetails      bool                   `json:"showDetails"`
}

// Controller is the step state machine of one wizard session.
//
// The controller lock is never held across network calls or store
// mutations.
type Controller struct {
	store     *placeholder.Store
	binder    *binder.Binder
	nav       *slideshow.Navigator
	settings  *settings.Persistence
	analyzer  Analyzer
	generator Generator
	log       *slog.Logger

	mu             sync.Mutex
	step           Step
	busy           int
	processing     bool
	inlineErr      *StepError
	analysis       *models.Analysis
	templateName   string
	configReady    bool
	skipConfigure  bool
	noticePending  bool
	summary        *placeholder.Summary
	results        *models.GenerateResult
	failureDetails []models.Detail

	onStep      []func(State)
	onNotify    []func(models.Notification)
	unsubscribe func()
}

// New creates a controller on the upload step.
func New(d Deps) *Controller {
	c := &Controller{
		store:     d.Store,
		binder:    d.Binder,
		nav:       d.Navigator,
		settings:  d.Settings,
		analyzer:  d.Analyzer,
		generator: d.Generator,
		log:       logging.WithComponent("wizard"),
		step:      StepUpload,
	}
	c.unsubscribe = d.Store.Subscribe(c.onStoreChange)
	return c
}

// Detach stops following store changes.
func (c *Controller) Detach() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// onStoreChange withdraws a confirmation once the configuration is edited,
// so ProcessAndResults is only reached again through Confirm.
func (c *Controller) onStoreChange(ch placeholder.Change) {
	if ch.Kind != placeholder.ChangeUpdated && ch.Kind != placeholder.ChangeCreated {
		return
	}
	c.mu.Lock()
	c.configReady = false
	c.mu.Unlock()
}

// OnStep registers a callback run after every state change.
func (c *Controller) OnStep(fn func(State)) {
	c.mu.Lock()
	c.onStep = append(c.onStep, fn)
	c.mu.Unlock()
}

// OnNotify registers a callback for transient notifications.
func (c *Controller) OnNotify(fn func(models.Notification)) {
	c.mu.Lock()
	c.onNotify = append(c.onNotify, fn)
	c.mu.Unlock()
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	st := State{
		Step:          c.step,
		StepName:      c.step.String(),
		Busy:          c.busy > 0 || c.processing,
		Processing:    c.processing,
		Error:         c.inlineErr,
		SkipConfigure: c.skipConfigure,
		TemplateName:  c.templateName,
		HasAnalysis:   c.analysis != nil,
		ConfigReady:   c.configReady,
		Summary:       c.summary,
		Results:       c.results,
	}
	if c.analysis != nil {
		st.PlaceholderCount = c.analysis.Total()
		if len(c.analysis.Statistics) > 0 {
			st.Statistics = make(map[string]int, len(c.analysis.Statistics))
			for k, v := range c.analysis.Statistics {
				st.Statistics[k] = v
			}
		}
	}
	if c.results != nil {
		st.ShowDetails = models.ShowDetailsNeeded(c.results.Details)
	}
	if len(c.failureDetails) > 0 {
		st.FailureDetails = append([]models.Detail(nil), c.failureDetails...)
		st.ShowDetails = st.ShowDetails || models.ShowDetailsNeeded(c.failureDetails)
	}
	return st
}

// Analysis returns the analysis of the current template, if any.
func (c *Controller) Analysis() *models.Analysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis
}

// TakeNotice returns the one-time notice owed to the user, if any.
func (c *Controller) TakeNotice() (models.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.noticePending {
		return models.Notification{}, false
	}
	c.noticePending = false
	return models.Notification{
		Level:   models.NotifyInfo,
		Message: "Previous settings were applied, the configure step was skipped",
	}, true
}

// UploadTemplate validates and analyzes a template, then enters Configure.
func (c *Controller) UploadTemplate(ctx context.Context, name string, size int64, r io.Reader) error {
	if err := checkFile(name, size, r, ".pptx"); err != nil {
		return c.fail(StepUpload, KindValidation, err)
	}

	c.begin()
	analysis, err := c.analyzer.Analyze(ctx, name, r)
	c.end()
	if err != nil {
		c.log.Warn("template analysis failed", "file", name, "error", err)
		return c.fail(StepUpload, KindRemote, err)
	}
	if analysis == nil || analysis.Total() == 0 {
		return c.fail(StepUpload, KindPrerequisite, ErrNoPlaceholders)
	}

	c.store.Reset()
	c.binder.Mount(analysis)
	c.store.Seed(analysis)

	c.mu.Lock()
	c.analysis = analysis
	c.templateName = name
	c.configReady = false
	c.skipConfigure = false
	c.noticePending = false
	c.summary = nil
	c.results = nil
	c.failureDetails = nil
	c.inlineErr = nil
	c.step = StepConfigure
	c.mu.Unlock()
	c.nav.Load(nil)

	c.log.Info("template analyzed", "file", name, "placeholders", analysis.Total())
	c.notify(models.NotifySuccess, "Template analyzed successfully")
	c.changed()
	return nil
}

// GoTo moves to step. Going back is always allowed and keeps all data;
// going forward needs the target step's prerequisite. Entering
// ProcessAndResults from an earlier step clears the previous results.
func (c *Controller) GoTo(step Step) error {
	if !step.Valid() {
		c.mu.Lock()
		cur := c.step
		c.mu.Unlock()
		return c.fail(cur, KindValidation, ErrInvalidStep)
	}

	c.mu.Lock()
	cur := c.step
	analysis := c.analysis
	ready := c.configReady
	c.mu.Unlock()

	if step > cur {
		switch step {
		case StepConfigure:
			if analysis == nil || analysis.Total() == 0 {
				return c.fail(cur, KindPrerequisite, ErrNoAnalysis)
			}
		case StepProcess:
			if !ready {
				return c.fail(cur, KindPrerequisite, ErrNotConfigured)
			}
			c.enterProcess()
			return nil
		}
	}

	c.enter(step, analysis)
	return nil
}

// enter re-renders step from current data.
func (c *Controller) enter(step Step, analysis *models.Analysis) {
	if step == StepConfigure && analysis != nil {
		c.binder.Mount(analysis)
		c.store.Seed(analysis)
	}

	var sum *placeholder.Summary
	if step == StepProcess {
		s := c.store.Summarize()
		sum = &s
	}

	c.mu.Lock()
	c.step = step
	c.inlineErr = nil
	if sum != nil {
		c.summary = sum
	}
	c.mu.Unlock()
	c.changed()
}

// Confirm submits the configuration and enters ProcessAndResults.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	cur := c.step
	analysis := c.analysis
	c.mu.Unlock()

	if analysis == nil {
		return c.fail(cur, KindPrerequisite, ErrNoAnalysis)
	}

	cfg := c.store.Snapshot()

	c.begin()
	_, err := c.settings.Submit(ctx, cfg)
	c.end()
	if err != nil {
		return c.fail(cur, KindRemote, err)
	}
	c.settings.CacheLocally(cfg)

	c.mu.Lock()
	c.configReady = true
	c.skipConfigure = false
	c.mu.Unlock()

	c.enterProcess()
	c.notify(models.NotifySuccess, "Settings saved")
	return nil
}

// UsePreviousSettings submits the cached configuration and jumps from Upload
// straight to ProcessAndResults.
func (c *Controller) UsePreviousSettings(ctx context.Context) error {
	c.mu.Lock()
	cur := c.step
	c.mu.Unlock()
	if cur != StepUpload {
		return c.fail(cur, KindPrerequisite, ErrPreviousStep)
	}

	cfg := c.settings.ReadLocalCache()
	if cfg == nil {
		return c.fail(cur, KindPrerequisite, ErrNoPrevious)
	}

	c.begin()
	_, err := c.settings.Submit(ctx, cfg)
	c.end()
	if err != nil {
		return c.fail(cur, KindRemote, err)
	}

	c.store.Replace(cfg)

	c.mu.Lock()
	c.configReady = true
	c.skipConfigure = true
	c.noticePending = true
	c.mu.Unlock()

	c.enterProcess()
	c.log.Info("previous settings applied", "images", len(cfg.Images), "texts", len(cfg.Texts))
	return nil
}

// AcceptImported makes an imported configuration current after its session
// submission succeeded. The step does not change.
func (c *Controller) AcceptImported(cfg *models.Configuration) {
	if cfg == nil {
		return
	}
	c.store.Replace(cfg)

	c.mu.Lock()
	c.configReady = true
	c.inlineErr = nil
	if c.step == StepProcess {
		s := c.store.Summarize()
		c.summary = &s
	}
	c.mu.Unlock()

	c.notify(models.NotifySuccess, "Template settings imported")
	c.changed()
}

// Restart drops the template, configuration and results and returns to Upload.
// The local settings cache is kept.
func (c *Controller) Restart() {
	c.store.Reset()
	c.binder.Mount(nil)
	c.nav.Load(nil)

	c.mu.Lock()
	c.step = StepUpload
	c.inlineErr = nil
	c.analysis = nil
	c.templateName = ""
	c.configReady = false
	c.skipConfigure = false
	c.noticePending = false
	c.summary = nil
	c.results = nil
	c.failureDetails = nil
	c.mu.Unlock()
	c.changed()
}

// Download opens the output file of the last successful run.
func (c *Controller) Download(ctx context.Context) (*models.Artifact, error) {
	c.mu.Lock()
	cur := c.step
	var id string
	if c.results != nil {
		id = c.results.OutputArtifactID
	}
	c.mu.Unlock()

	if id == "" {
		return nil, &StepError{Step: cur, Kind: KindPrerequisite, Message: ErrNoOutput.Error(), Err: ErrNoOutput}
	}
	a, err := c.generator.Download(ctx, id)
	if err != nil {
		c.log.Warn("output download failed", "artifact", id, "error", err)
		return nil, &StepError{Step: cur, Kind: KindRemote, Message: err.Error(), Err: err}
	}
	return a, nil
}

// Configuration returns the current configuration, nil before any template
// or settings were loaded.
func (c *Controller) Configuration() *models.Configuration {
	c.mu.Lock()
	has := c.analysis != nil || c.configReady
	c.mu.Unlock()
	if !has {
		return nil
	}
	return c.store.Snapshot()
}

func (c *Controller) enterProcess() {
	sum := c.store.Summarize()
	c.nav.Load(nil)

	c.mu.Lock()
	c.step = StepProcess
	c.summary = &sum
	c.results = nil
	c.failureDetails = nil
	c.inlineErr = nil
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) begin() {
	c.mu.Lock()
	c.busy++
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy--
	c.mu.Unlock()
}

// fail records an inline error on step and returns it. The step index is
// left unchanged.
func (c *Controller) fail(step Step, kind ErrorKind, err error) error {
	se := &StepError{Step: step, Kind: kind, Message: err.Error(), Err: err}

	c.mu.Lock()
	c.inlineErr = se
	c.mu.Unlock()

	if kind == KindRemote {
		c.notify(models.NotifyError, se.Message)
	}
	c.changed()
	return se
}

func (c *Controller) notify(level models.NotificationLevel, msg string) {
	c.mu.Lock()
	fns := append([]func(models.Notification){}, c.onNotify...)
	c.mu.Unlock()

	n := models.Notification{Level: level, Message: msg}
	for _, fn := range fns {
		fn(n)
	}
}

func (c *Controller) changed() {
	c.mu.Lock()
	st := c.stateLocked()
	fns := append([]func(State){}, c.onStep...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// checkFile performs the local input checks done before any network call.
func checkFile(name string, size int64, r io.Reader, ext string) error {
	if name == "" || r == nil {
		return ErrMissingFile
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		return fmt.Errorf("%w: expected a %s file", ErrWrongExtension, ext)
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}
