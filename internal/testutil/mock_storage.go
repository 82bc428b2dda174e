// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/storage"
)

// MockStorage implements storage.Store in memory
type MockStorage struct {
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	chunks   map[string]map[int][]byte // uploadID -> chunkIndex -> data
	mu       sync.RWMutex
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
		chunks:   make(map[string]map[int][]byte),
	}
}

func (m *MockStorage) Save(kind, name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.AddFile(generateTestID(), kind, name, data), nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	cp := *file
	return &cp, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, *models.FileInfo, error) {
	info, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	data := m.fileData[id]
	m.mu.RUnlock()
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []*models.FileInfo
	for _, file := range m.files {
		files = append(files, file)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) SetStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	file.Status = status
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	return "/mock/path/" + id, nil
}

func (m *MockStorage) RegisterFile(info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[info.ID] = info
}

func (m *MockStorage) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks[uploadID] == nil {
		m.chunks[uploadID] = make(map[int][]byte)
	}
	m.chunks[uploadID][chunkIndex] = data
	return nil
}

func (m *MockStorage) CompleteChunkedUpload(uploadID, kind, name string, totalChunks int) (*models.FileInfo, error) {
	m.mu.Lock()
	uploadChunks, ok := m.chunks[uploadID]
	if !ok {
		m.mu.Unlock()
		return nil, errors.New("upload not found")
	}

	var data bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		chunk, ok := uploadChunks[i]
		if !ok {
			m.mu.Unlock()
			return nil, errors.New("missing chunk")
		}
		data.Write(chunk)
	}
	delete(m.chunks, uploadID)
	m.mu.Unlock()

	return m.AddFile(generateTestID(), kind, name, data.Bytes()), nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// AddFile adds a file directly to the mock
func (m *MockStorage) AddFile(id, kind, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}
	m.files[id] = file
	m.fileData[id] = data
	return file
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

var (
	testIDCounter int
	testIDMutex   sync.Mutex
)

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
