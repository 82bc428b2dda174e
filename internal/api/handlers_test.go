package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/slidewizard/backend/internal/events"
	"github.com/slidewizard/backend/internal/history"
	"github.com/slidewizard/backend/internal/jobs"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/settings"
	"github.com/slidewizard/backend/internal/storage"
	"github.com/slidewizard/backend/internal/testutil"
)

type memHistory struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memHistory) Record(_ context.Context, run *history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append([]history.Run{*run}, m.runs...)
	return nil
}

func (m *memHistory) Recent(_ context.Context, limit int) ([]history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	return append([]history.Run(nil), m.runs[:limit]...), nil
}

func (m *memHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

type testEnv struct {
	e         *echo.Echo
	sessions  *session.Manager
	store     storage.Store
	jobs      *jobs.Manager
	hub       *events.Hub
	analyzer  *testutil.FakeAnalyzer
	generator *testutil.FakeGenerator
	history   *memHistory
	client    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return newTestEnvWithStore(t, store)
}

func newTestEnvWithStore(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	dir := t.TempDir()

	caches, err := settings.NewClientCaches(filepath.Join(dir, "settings"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		e:         echo.New(),
		store:     store,
		jobs:      jobs.NewManager(ctx),
		hub:       events.NewHub(256),
		analyzer:  &testutil.FakeAnalyzer{Result: testutil.SampleAnalysis()},
		generator: &testutil.FakeGenerator{Result: testutil.SampleResult()},
		history:   &memHistory{},
		client:    uuid.NewString(),
	}
	env.sessions = session.NewManager(session.Services{
		Analyzer:  env.analyzer,
		Generator: env.generator,
		Caches:    caches,
		Hub:       env.hub,
	}, 10)

	SetupMiddleware(env.e)
	RegisterRoutes(env.e, NewHandlers(&Dependencies{
		Sessions: env.sessions,
		Store:    store,
		Jobs:     env.jobs,
		Hub:      env.hub,
		History:  env.history,
		Caches:   caches,
		Version:  "test",
		Now:      func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) },
	}))
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	return env.doAs(t, env.client, method, path, body, contentType)
}

// doAs sends the request with client's cookie; an empty client sends none.
func (env *testEnv) doAs(t *testing.T, client, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if client != "" {
		req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: client})
	}
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) postJSON(t *testing.T, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return env.do(t, http.MethodPost, path, data, echo.MIMEApplicationJSON)
}

func (env *testEnv) postFile(t *testing.T, path, field, name string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if field != "" {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, _ = part.Write(content)
	}
	require.NoError(t, w.Close())
	return env.do(t, http.MethodPost, path, body.Bytes(), w.FormDataContentType())
}

func (env *testEnv) newSession(t *testing.T) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var info session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info.ID
}

func (env *testEnv) upload(t *testing.T, id string) {
	t.Helper()
	rec := env.postFile(t, "/api/sessions/"+id+"/template", "template", "deck.pptx", []byte("pptx"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (env *testEnv) confirm(t *testing.T, id string) {
	t.Helper()
	env.upload(t, id)
	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/confirm", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (env *testEnv) waitJob(t *testing.T, id string) jobs.Job {
	t.Helper()
	var job jobs.Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = env.jobs.GetJob(id)
		return ok && job.Done()
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	h := NewHealthHandler("1.2.3", env.sessions)
	if assert.NoError(t, h.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := env.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stepName":"upload"`)

	rec = env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)
}

func TestUploadTemplate(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := env.postFile(t, "/api/sessions/"+id+"/template", "template", "deck.pptx", []byte("pptx"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stepName":"configure"`)
	assert.Contains(t, rec.Body.String(), `"placeholderCount":4`)

	files, err := env.store.List(0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, models.FileKindTemplate, files[0].Kind)
	assert.Equal(t, models.FileStatusAnalyzed, files[0].Status)
}

func TestUploadTemplateValidation(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		file    string
		content []byte
	}{
		{"wrong extension", "template", "deck.pdf", []byte("pdf")},
		{"empty file", "template", "deck.pptx", nil},
		{"no file", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			id := env.newSession(t)

			rec := env.postFile(t, "/api/sessions/"+id+"/template", tt.field, tt.file, tt.content, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeValidation, decodeError(t, rec).Code)
			assert.Zero(t, env.analyzer.Calls)
		})
	}
}

func TestUploadTemplateRemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.Err = errors.New("analyzer down")
	id := env.newSession(t)

	rec := env.postFile(t, "/api/sessions/"+id+"/template", "template", "deck.pptx", []byte("pptx"), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeRemote, decodeError(t, rec).Code)
}

func TestStepForwardNeedsConfirm(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := env.postJSON(t, "/api/sessions/"+id+"/step", map[string]int{"step": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.upload(t, id)
	rec = env.postJSON(t, "/api/sessions/"+id+"/step", map[string]int{"step": 3})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeConflict, decodeError(t, rec).Code)

	rec = env.postJSON(t, "/api/sessions/"+id+"/step", map[string]int{"step": 1})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.postJSON(t, "/api/sessions/"+id+"/step", map[string]int{"step": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModalAndPanelEditing(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	env.upload(t, id)
	base := "/api/sessions/" + id

	rec := env.postJSON(t, base+"/select", map[string]int{"id": 11})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"open":true`)

	rec = env.postJSON(t, base+"/modal/edit", map[string]any{"control": "use", "value": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.postJSON(t, base+"/panel/20/edit", map[string]any{"control": "fillMode", "value": "literal"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.postJSON(t, base+"/panel/20/edit", map[string]any{"control": "literal", "value": "ACME"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.postJSON(t, base+"/modal/close", map[string]string{"reason": "save"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"open":false`)

	rec = env.do(t, http.MethodGet, base+"/summary", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum struct {
		ActiveImageCount int    `json:"activeImageCount"`
		ActiveTextCount  int    `json:"activeTextCount"`
		Text             string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.ActiveImageCount)
	assert.Equal(t, 1, sum.ActiveTextCount)
	assert.Contains(t, sum.Text, "ACME")

	rec = env.do(t, http.MethodGet, base+"/config", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg models.Configuration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.False(t, cfg.Images["image_11"].Use)
	assert.Equal(t, models.FillLiteral, cfg.Texts["text_20"].FillMode)
}

func TestEditErrors(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	env.upload(t, id)
	base := "/api/sessions/" + id

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"modal closed", base + "/modal/edit", map[string]any{"control": "use", "value": true}, http.StatusConflict, CodeConflict},
		{"missing control", base + "/modal/edit", map[string]any{"value": true}, http.StatusBadRequest, CodeValidation},
		{"unknown placeholder", base + "/select", map[string]int{"id": 99}, http.StatusNotFound, CodeNotFound},
		{"title not configurable", base + "/select", map[string]int{"id": 30}, http.StatusBadRequest, CodeValidation},
		{"missing id", base + "/select", map[string]any{}, http.StatusBadRequest, CodeValidation},
		{"bad order", base + "/panel/10/edit", map[string]any{"control": "order", "value": "x"}, http.StatusBadRequest, CodeValidation},
		{"bad reason", base + "/modal/close", map[string]string{"reason": "explode"}, http.StatusBadRequest, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.postJSON(t, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestConfigMsgpack(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	rec := env.do(t, http.MethodGet, "/api/sessions/"+id+"/config/msgpack", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.upload(t, id)
	rec = env.do(t, http.MethodGet, "/api/sessions/"+id+"/config/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var cfg models.Configuration
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Len(t, cfg.Images, 2)
	assert.Equal(t, 2, cfg.Images["image_11"].Order)
}

func TestProcessRun(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	env.confirm(t, id)
	base := "/api/sessions/" + id

	rec := env.postFile(t, base+"/process", "batch", "folders.zip", []byte("zip"), map[string]string{
		"imageOrder":       "random",
		"skipEmptyFolders": "false",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	job := env.waitJob(t, started.JobID)
	assert.Equal(t, jobs.StatusComplete, job.Status)

	rec = env.do(t, http.MethodGet, "/api/jobs/"+started.JobID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.generator.Requests, 1)
	assert.Equal(t, models.ImageOrderRandom, env.generator.Requests[0].Options.ImageOrder)
	assert.False(t, env.generator.Requests[0].Options.SkipEmptyFolders)

	rec = env.do(t, http.MethodGet, base+"/results", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outputArtifactId":"out-1.pptx"`)
	assert.Contains(t, rec.Body.String(), `"showDetails":true`)
	assert.Contains(t, rec.Body.String(), `"counter":"1 / 1"`)

	rec = env.do(t, http.MethodGet, "/api/runs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.history.count())
	assert.Contains(t, rec.Body.String(), `"templateName":"deck.pptx"`)
	assert.Contains(t, rec.Body.String(), `"warnings":1`)
}

func TestDownloadResult(t *testing.T) {
	env := newTestEnv(t)
	env.generator.Outputs = map[string][]byte{"out-1.pptx": []byte("generated deck")}
	id := env.newSession(t)
	base := "/api/sessions/" + id

	rec := env.do(t, http.MethodGet, base+"/results/download", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.confirm(t, id)
	rec = env.postFile(t, base+"/process", "batch", "folders.zip", []byte("zip"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	env.waitJob(t, started.JobID)

	rec = env.do(t, http.MethodGet, base+"/results/download", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "generated deck", rec.Body.String())
	assert.Equal(t, `attachment; filename="out-1.pptx"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "14", rec.Header().Get(echo.HeaderContentLength))

	env.generator.DownloadErr = errors.New("output expired")
	rec = env.do(t, http.MethodGet, base+"/results/download", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeRemote, decodeError(t, rec).Code)
}

func TestProcessValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	base := "/api/sessions/" + id

	rec := env.postFile(t, base+"/process", "batch", "folders.zip", []byte("zip"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.confirm(t, id)
	rec = env.postFile(t, base+"/process", "batch", "folders.rar", []byte("rar"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postFile(t, base+"/process", "batch", "folders.zip", []byte("zip"), map[string]string{"skipEmptyFolders": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.generator.GenerateHit)
}

func TestProcessBusy(t *testing.T) {
	env := newTestEnv(t)
	env.generator.Block = make(chan struct{})
	env.generator.Started = make(chan struct{}, 1)
	id := env.newSession(t)
	env.confirm(t, id)
	base := "/api/sessions/" + id

	rec := env.postFile(t, base+"/process", "batch", "a.zip", []byte("zip"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-env.generator.Started

	rec = env.postFile(t, base+"/process", "batch", "b.zip", []byte("zip"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeBusy, decodeError(t, rec).Code)

	close(env.generator.Block)
}

func TestProcessFailureRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.generator.Err = &testutil.DetailedError{
		Msg:     "no folders found",
		Details: []models.Detail{{Type: models.DetailError, Message: "empty archive"}},
	}
	id := env.newSession(t)
	env.confirm(t, id)

	rec := env.postFile(t, "/api/sessions/"+id+"/process", "batch", "a.zip", []byte("zip"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	job := env.waitJob(t, started.JobID)
	assert.Equal(t, jobs.StatusError, job.Status)
	assert.Contains(t, job.Error, "no folders found")

	runs, _ := env.history.Recent(context.Background(), 1)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Failed)
	assert.Equal(t, 1, runs[0].Errors)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+id+"/results", nil, "")
	assert.Contains(t, rec.Body.String(), "empty archive")
}

func TestChunkedBatchUpload(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	env.confirm(t, id)

	for i, chunk := range []string{"zip-part-one ", "zip-part-two"} {
		rec := env.postFile(t, "/api/uploads/chunk", "file", "blob", []byte(chunk), map[string]string{
			"uploadId":   "up-1",
			"chunkIndex": []string{"0", "1"}[i],
		})
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}

	rec := env.postJSON(t, "/api/uploads/complete", map[string]any{
		"uploadId": "up-1", "name": "folders.zip", "totalChunks": 2,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	job := env.waitJob(t, started.JobID)
	require.Equal(t, jobs.StatusComplete, job.Status, job.Error)
	info, ok := job.Result.(*models.FileInfo)
	require.True(t, ok)
	assert.Equal(t, int64(25), info.Size)

	rec = env.postFile(t, "/api/sessions/"+id+"/process", "", "", nil, map[string]string{"batchFileId": info.ID})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	env.waitJob(t, started.JobID)
	assert.Equal(t, 1, env.generator.GenerateHit)
}

func TestChunkUploadValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postFile(t, "/api/uploads/chunk", "file", "blob", []byte("x"), map[string]string{"chunkIndex": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postFile(t, "/api/uploads/chunk", "file", "blob", []byte("x"), map[string]string{"uploadId": "../evil", "chunkIndex": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postJSON(t, "/api/uploads/complete", map[string]any{"uploadId": "u", "name": "a.zip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsExportImport(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	base := "/api/sessions/" + id

	rec := env.do(t, http.MethodGet, base+"/settings/export", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.upload(t, id)
	rec = env.do(t, http.MethodGet, base+"/settings/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "template_settings_2024-03-09.json")
	exported := rec.Body.Bytes()

	rec = env.postFile(t, base+"/settings/import", "settings", "s.json", []byte(`{"images":{}}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeMalformedSettings, decodeError(t, rec).Code)

	rec = env.postFile(t, base+"/settings/import", "settings", "s.txt", exported, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decodeError(t, rec).Code)

	modified := strings.Replace(string(exported), `"use": true`, `"use": false`, 1)
	rec = env.postFile(t, base+"/settings/import", "settings", "s.json", []byte(modified), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"requestId":"req-test"`)

	ws, err := env.sessions.Get(id)
	require.NoError(t, err)
	cfg := ws.Store.Snapshot()
	assert.False(t, cfg.Images["image_10"].Use)
	assert.Equal(t, "configure", ws.Controller.State().StepName)
}

func TestSettingsImportSubmissionFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	env.upload(t, id)
	env.generator.SaveErr = errors.New("session expired")

	rec := env.postFile(t, "/api/sessions/"+id+"/settings/import", "settings", "s.json",
		[]byte(`{"images":{"image_10":{"use":false,"order":4}},"texts":{}}`), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, CodeRemote, apiErr.Code)
	assert.Equal(t, "session expired", apiErr.Message)

	ws, err := env.sessions.Get(id)
	require.NoError(t, err)
	assert.True(t, ws.Store.Snapshot().Images["image_10"].Use)
}

func TestCachedSettingsAndPrevious(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/settings/cached", nil, "")
	assert.JSONEq(t, `{"available":false}`, rec.Body.String())

	first := env.newSession(t)
	rec = env.do(t, http.MethodPost, "/api/sessions/"+first+"/previous-settings", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.confirm(t, first)
	rec = env.do(t, http.MethodGet, "/api/settings/cached", nil, "")
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())

	second := env.newSession(t)
	rec = env.do(t, http.MethodPost, "/api/sessions/"+second+"/previous-settings", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"stepName":"process"`)
	assert.Contains(t, rec.Body.String(), `"skipConfigure":true`)
	assert.Contains(t, rec.Body.String(), `"notice"`)
}

func TestPreviousSettingsStayWithClient(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/sessions/"

	mine := env.newSession(t)
	env.upload(t, mine)
	rec := env.postJSON(t, base+mine+"/panel/10/edit", map[string]any{"control": "order", "value": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, base+mine+"/confirm", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	other := uuid.NewString()
	rec = env.doAs(t, other, http.MethodGet, "/api/settings/cached", nil, "")
	assert.JSONEq(t, `{"available":false}`, rec.Body.String())

	rec = env.doAs(t, other, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var info session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	rec = env.doAs(t, other, http.MethodPost, base+info.ID+"/previous-settings", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	again := env.newSession(t)
	rec = env.do(t, http.MethodPost, base+again+"/previous-settings", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ws, err := env.sessions.Get(again)
	require.NoError(t, err)
	assert.Equal(t, 7, ws.Store.Snapshot().Images["image_10"].Order)
}

func TestClientCookieIssued(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doAs(t, "", http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	_, err := uuid.Parse(cookies[0].Value)
	assert.NoError(t, err)

	// a known client is not re-issued a cookie
	rec = env.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSlideshowRoutes(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	base := "/api/sessions/" + id

	rec := env.do(t, http.MethodGet, base+"/slideshow", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"counter":"0 / 0"`)

	ws, err := env.sessions.Get(id)
	require.NoError(t, err)
	ws.Navigator.Load([]models.SlidePreview{{ID: "1"}, {ID: "2"}})

	rec = env.do(t, http.MethodPost, base+"/slideshow/next", nil, "")
	assert.Contains(t, rec.Body.String(), `"counter":"2 / 2"`)
	rec = env.do(t, http.MethodPost, base+"/slideshow/fullscreen", nil, "")
	assert.Contains(t, rec.Body.String(), `"view":"fullscreen"`)
	rec = env.do(t, http.MethodGet, base+"/slideshow", nil, "")
	assert.Contains(t, rec.Body.String(), `"fullscreen":true`)
	rec = env.do(t, http.MethodPost, base+"/slideshow/previous", nil, "")
	assert.Contains(t, rec.Body.String(), `"counter":"1 / 2"`)
	rec = env.do(t, http.MethodPost, base+"/slideshow/exit-fullscreen", nil, "")
	assert.Contains(t, rec.Body.String(), `"view":"inline"`)
}

func TestRestart(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	env.confirm(t, id)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/restart", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stepName":"upload"`)
	assert.Contains(t, rec.Body.String(), `"hasAnalysis":false`)
}

func TestProcessStoredBatch(t *testing.T) {
	store := testutil.NewMockStorage()
	env := newTestEnvWithStore(t, store)
	id := env.newSession(t)
	env.confirm(t, id)
	assert.Equal(t, 1, store.GetFileCount())

	batch := store.AddFile("batch-1", models.FileKindBatch, "folders.zip", []byte("zip-bytes"))

	rec := env.postFile(t, "/api/sessions/"+id+"/process", "", "", nil, map[string]string{"batchFileId": batch.ID})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	env.waitJob(t, started.JobID)

	info, err := store.Get(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusProcessed, info.Status)
	assert.Equal(t, "folders.zip", env.generator.Requests[0].BatchName)

	rec = env.postFile(t, "/api/sessions/"+id+"/process", "", "", nil, map[string]string{"batchFileId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
