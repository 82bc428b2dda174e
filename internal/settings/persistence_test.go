package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidewizard/backend/internal/models"
)

type fakeSubmitter struct {
	calls int
	err   error
	got   *models.Configuration
}

func (f *fakeSubmitter) SaveSettings(_ context.Context, cfg *models.Configuration) (*models.SubmitResult, error) {
	f.calls++
	f.got = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &models.SubmitResult{RequestID: "req-1", Redirect: "/process"}, nil
}

type failingCache struct{}

func (failingCache) Write([]byte) error     { return errors.New("quota exceeded") }
func (failingCache) Read() ([]byte, error) { return nil, ErrCacheEmpty }

func sampleConfig() *models.Configuration {
	cfg := models.NewConfiguration()
	cfg.Images["image_10"] = models.ImageSlot{Use: true, Order: 1}
	cfg.Images["image_11"] = models.ImageSlot{Use: false, Order: 2}
	cfg.Texts["text_20"] = models.TextSlot{FillMode: models.FillLiteral, Value: models.StringPtr("ACME")}
	cfg.Texts["text_21"] = models.TextSlot{FillMode: models.FillDate, Value: models.StringPtr("today"), KeepOriginal: true}
	cfg.Texts["text_22"] = models.TextSlot{FillMode: models.FillEmpty}
	return cfg
}

func newPersistence(t *testing.T) (*Persistence, *FileCache, *fakeSubmitter) {
	t.Helper()
	cache, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	sub := &fakeSubmitter{}
	return New(cache, sub), cache, sub
}

func TestExportImportRoundTrip(t *testing.T) {
	p, _, sub := newPersistence(t)
	cfg := sampleConfig()

	file, err := p.Export(cfg, time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "template_settings_2024-05-06.json", file.Name)
	assert.Equal(t, "application/json", file.ContentType)

	got, res, err := p.Import(context.Background(), file.Name, file.Data)
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, 1, sub.calls)

	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cfg, p.ReadLocalCache()); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}
}

func TestExportNothing(t *testing.T) {
	p, _, _ := newPersistence(t)
	_, err := p.Export(nil, time.Now())
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestImportMalformedLeavesCache(t *testing.T) {
	p, cache, sub := newPersistence(t)
	p.CacheLocally(sampleConfig())
	before, err := os.ReadFile(cache.Path())
	require.NoError(t, err)

	tests := []struct {
		name string
		data string
	}{
		{"missing texts", `{"images": {}}`},
		{"missing images", `{"texts": {}}`},
		{"texts not an object", `{"images": {}, "texts": []}`},
		{"slot not an object", `{"images": {"image_1": true}, "texts": {}}`},
		{"root array", `[]`},
		{"syntax error", `{"images": {`},
		{"empty", ``},
		{"unknown fill mode", `{"images": {}, "texts": {"text_1": {"fillMode": "bold"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Import(context.Background(), "settings.json", []byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedSettings)

			after, err := os.ReadFile(cache.Path())
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
	assert.Zero(t, sub.calls)
}

func TestImportWrongExtension(t *testing.T) {
	p, _, sub := newPersistence(t)
	_, _, err := p.Import(context.Background(), "settings.txt", []byte(`{"images":{},"texts":{}}`))
	assert.ErrorIs(t, err, ErrInvalidExtension)
	assert.Zero(t, sub.calls)

	_, _, err = p.Import(context.Background(), "SETTINGS.JSON", []byte(`{"images":{},"texts":{}}`))
	assert.NoError(t, err)
}

func TestImportSubmissionFailure(t *testing.T) {
	p, _, sub := newPersistence(t)
	sub.err = errors.New("session expired")

	cfg, res, err := p.Import(context.Background(), "a.json", []byte(`{"images":{"image_1":{"use":true,"order":3}},"texts":{}}`))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.NotNil(t, cfg)

	var se *SubmissionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "session expired", se.Message)
}

func TestDecodeLegacyShape(t *testing.T) {
	data := `{
		"images": {"image_1": {"use": true, "order": 2, "placeholder_info": {"id": 1}}},
		"texts": {"text_2": {"type": "نص ثابت", "value": "Hi", "keepOriginal": false}}
	}`
	cfg, err := Decode([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, models.ImageSlot{Use: true, Order: 2}, cfg.Images["image_1"])
	assert.Equal(t, models.FillLiteral, cfg.Texts["text_2"].FillMode)
	assert.Equal(t, "Hi", *cfg.Texts["text_2"].Value)
}

func TestCacheFailureIsSwallowed(t *testing.T) {
	p := New(failingCache{}, &fakeSubmitter{})
	assert.NotPanics(t, func() { p.CacheLocally(sampleConfig()) })
	assert.Nil(t, p.ReadLocalCache())
	assert.False(t, p.HasCached())
}

func TestReadLocalCacheCorrupt(t *testing.T) {
	p, cache, _ := newPersistence(t)
	require.NoError(t, cache.Write([]byte("{not json")))
	assert.Nil(t, p.ReadLocalCache())
}

func TestCacheOverwritesWholesale(t *testing.T) {
	p, _, _ := newPersistence(t)
	p.CacheLocally(sampleConfig())

	next := models.NewConfiguration()
	next.Images["image_5"] = models.ImageSlot{Use: true, Order: 1}
	p.CacheLocally(next)

	got := p.ReadLocalCache()
	require.NotNil(t, got)
	assert.Len(t, got.Images, 1)
	assert.Empty(t, got.Texts)
}

func TestSubmitWithoutGenerator(t *testing.T) {
	p := New(nil, nil)
	_, err := p.Submit(context.Background(), sampleConfig())
	var se *SubmissionError
	assert.True(t, errors.As(err, &se))
}

func TestLoadPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	preset := `images:
  image_1:
    use: true
    order: 2
texts:
  text_2:
    fillMode: folderName
  text_3:
    fillMode: date
    value: today
    keepOriginal: true
`
	require.NoError(t, os.WriteFile(path, []byte(preset), 0o644))

	cfg, err := LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, models.ImageSlot{Use: true, Order: 2}, cfg.Images["image_1"])
	assert.Equal(t, models.FillFolderName, cfg.Texts["text_2"].FillMode)
	assert.Equal(t, models.FillDate, cfg.Texts["text_3"].FillMode)
	assert.True(t, cfg.Texts["text_3"].KeepOriginal)
}

func TestLoadPresetInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("texts:\n  text_1:\n    fillMode: shout\n"), 0o644))
	_, err := LoadPreset(bad)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("images:\n  image_1:\n    use: true\n    order: 0\n"), 0o644))
	_, err = LoadPreset(zero)
	assert.Error(t, err)

	_, err = LoadPreset(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
