package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
)

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

// ErrInvalidUploadID rejects upload ids that would leave the chunk directory.
var ErrInvalidUploadID = errors.New("invalid upload id")

const (
	indexFileName = "index.msgpack"
	chunkDirName  = ".chunks"
)

// Store defines the interface for uploaded template and batch files.
type Store interface {
	Save(kind, name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	Open(id string) (io.ReadCloser, *models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	SetStatus(id, status string) error
	GetFilePath(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID, kind, name string, totalChunks int) (*models.FileInfo, error)
	RegisterFile(info *models.FileInfo)
}

// LocalStore keeps files under <root>/<kind>/<id><ext> and their metadata in
// a msgpack index, so uploads survive a restart.
type LocalStore struct {
	mu    sync.RWMutex
	root  string
	files map[string]*models.FileInfo
	now   func() time.Time
}

// NewLocalStore opens root, loading the index left by a previous run.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		root:  root,
		files: make(map[string]*models.FileInfo),
		now:   time.Now,
	}
	if err := s.loadIndex(); err != nil {
		logging.WithComponent("storage").Warn("upload index unreadable, starting empty", "error", err)
		s.files = make(map[string]*models.FileInfo)
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.root, indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var list []*models.FileInfo
	if err := msgpack.Unmarshal(data, &list); err != nil {
		return err
	}
	for _, info := range list {
		// Entries whose file vanished are dropped
		if _, err := os.Stat(s.pathOf(info)); err == nil {
			s.files[info.ID] = info
		}
	}
	return nil
}

// saveIndexLocked rewrites the index. Callers hold s.mu.
func (s *LocalStore) saveIndexLocked() {
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	data, err := msgpack.Marshal(list)
	if err == nil {
		tmp := filepath.Join(s.root, indexFileName+".tmp")
		if err = os.WriteFile(tmp, data, 0644); err == nil {
			err = os.Rename(tmp, filepath.Join(s.root, indexFileName))
		}
	}
	if err != nil {
		logging.WithComponent("storage").Warn("write upload index", "error", err)
	}
}

// pathOf places a file under its kind directory, keeping the original extension.
func (s *LocalStore) pathOf(info *models.FileInfo) string {
	kind := info.Kind
	if kind == "" {
		kind = "other"
	}
	return filepath.Join(s.root, kind, info.ID+strings.ToLower(filepath.Ext(info.Name)))
}

// Save writes r under a fresh id.
func (s *LocalStore) Save(kind, name string, r io.Reader) (*models.FileInfo, error) {
	info := &models.FileInfo{
		ID:     uuid.New().String(),
		Name:   filepath.Base(name),
		Kind:   kind,
		Status: models.FileStatusUploaded,
	}
	path := s.pathOf(info)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", kind, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info.Size = size
	info.UploadedAt = s.now()
	s.RegisterFile(info)
	return info, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *info
	return &cp, nil
}

// Open returns the file content. The caller closes it.
func (s *LocalStore) Open(id string) (io.ReadCloser, *models.FileInfo, error) {
	info, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.pathOf(info))
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	return f, info, nil
}

// List returns files newest first; limit <= 0 returns all.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		cp := *info
		list = append(list, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a file and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(s.pathOf(info)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	delete(s.files, id)
	s.saveIndexLocked()
	return nil
}

// SetStatus records where a file is in the wizard (analyzed, processed, ...).
func (s *LocalStore) SetStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Status = status
	s.saveIndexLocked()
	return nil
}

// GetFilePath returns the path of a file on disk.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	info, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return s.pathOf(info), nil
}

// RegisterFile adds or replaces file metadata.
func (s *LocalStore) RegisterFile(info *models.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info
	s.saveIndexLocked()
}

// Prune deletes files uploaded before now-maxAge and returns how many were removed.
func (s *LocalStore) Prune(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, info := range s.files {
		if info.UploadedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(s.pathOf(info)); err != nil && !os.IsNotExist(err) {
			continue
		}
		delete(s.files, id)
		removed++
	}
	if removed > 0 {
		s.saveIndexLocked()
	}
	return removed
}

func (s *LocalStore) chunkDir(uploadID string) (string, error) {
	if uploadID == "" || filepath.Base(uploadID) != uploadID || strings.HasPrefix(uploadID, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidUploadID, uploadID)
	}
	return filepath.Join(s.root, chunkDirName, uploadID), nil
}

// SaveChunk stores one chunk of a large upload. Chunks may arrive in any order.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	dir, err := s.chunkDir(uploadID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("chunk_%d", chunkIndex)))
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	return nil
}

// CompleteChunkedUpload concatenates chunks 0..totalChunks-1 into a new file
// and drops the chunk directory.
func (s *LocalStore) CompleteChunkedUpload(uploadID, kind, name string, totalChunks int) (*models.FileInfo, error) {
	dir, err := s.chunkDir(uploadID)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		for i := 0; i < totalChunks; i++ {
			in, err := os.Open(filepath.Join(dir, fmt.Sprintf("chunk_%d", i)))
			if err != nil {
				pw.CloseWithError(fmt.Errorf("opening chunk %d: %w", i, err))
				return
			}
			_, err = io.Copy(pw, in)
			in.Close()
			if err != nil {
				pw.CloseWithError(fmt.Errorf("copying chunk %d: %w", i, err))
				return
			}
		}
		pw.Close()
	}()

	info, err := s.Save(kind, name, pr)
	pr.Close()
	if err != nil {
		return nil, err
	}
	os.RemoveAll(dir)
	return info, nil
}
