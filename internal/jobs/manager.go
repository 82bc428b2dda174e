// Package jobs runs long operations (batch assembly, generation) in the
// background and exposes their progress for polling.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidewizard/backend/internal/logging"
)

// Status represents the job processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusGenerating    Status = "generating"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Job kinds.
const (
	KindAssemble = "assemble"
	KindGenerate = "generate"
)

// Job is a snapshot of an async job.
type Job struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId,omitempty"`
	Kind          string     `json:"kind"`
	Label         string     `json:"label"`
	Status        Status     `json:"status"`
	Progress      float64    `json:"progress"`
	Stage         string     `json:"stage"`
	StageProgress float64    `json:"stageProgress"`
	Result        any        `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Done reports whether the job finished.
func (j Job) Done() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Reporter updates a running job. overall is the job's total progress 0..100.
type Reporter func(status Status, stage string, stageProgress, overall float64)

// Func is the work of a job. Its result is stored on the job.
type Func func(ctx context.Context, report Reporter) (any, error)

// Manager tracks async jobs.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ctx  context.Context
	log  *slog.Logger

	onUpdate []func(Job)
}

// NewManager creates a manager. Jobs run with ctx, so cancelling it
// cancels running work on shutdown.
func NewManager(ctx context.Context) *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
		ctx:  ctx,
		log:  logging.WithComponent("jobs"),
	}
}

// OnUpdate registers a callback run after every job change.
func (m *Manager) OnUpdate(fn func(Job)) {
	m.mu.Lock()
	m.onUpdate = append(m.onUpdate, fn)
	m.mu.Unlock()
}

// StartJob begins fn in the background.
func (m *Manager) StartJob(sessionID, kind, label string, fn Func) Job {
	job := &Job{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Kind:      kind,
		Label:     label,
		Status:    StatusProcessing,
		Stage:     "preparing",
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	go m.run(job.ID, fn)
	return snapshot
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns the jobs of a session, newest first. An empty sessionID lists all.
func (m *Manager) List(sessionID string) []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Job
	for _, j := range m.jobs {
		if sessionID == "" || j.SessionID == sessionID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

func (m *Manager) run(id string, fn Func) {
	short := id[:8]
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("job panicked", "job", short, "panic", r)
			m.finish(id, nil, fmt.Errorf("job panicked: %v", r))
		}
	}()

	m.log.Info("job started", "job", short)
	report := func(status Status, stage string, stageProgress, overall float64) {
		m.update(id, status, stage, stageProgress, overall)
	}

	result, err := fn(m.ctx, report)
	m.finish(id, result, err)
}

func (m *Manager) update(id string, status Status, stage string, stageProgress, overall float64) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	job.Status = status
	job.Stage = stage
	job.StageProgress = stageProgress
	if overall > job.Progress {
		job.Progress = overall
	}
	snapshot := *job
	fns := append([]func(Job){}, m.onUpdate...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (m *Manager) finish(id string, result any, err error) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok || job.Done() {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusError
		job.Error = err.Error()
	} else {
		job.Status = StatusComplete
		job.Progress = 100
		job.StageProgress = 100
		job.Stage = "done"
		job.Result = result
	}
	snapshot := *job
	fns := append([]func(Job){}, m.onUpdate...)
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("job failed", "job", id[:8], "error", err)
	} else {
		m.log.Info("job complete", "job", id[:8], "elapsed", now.Sub(snapshot.CreatedAt).Round(time.Millisecond))
	}
	for _, fn := range fns {
		fn(snapshot)
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.Done() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
