// Package testutil holds fakes shared by package tests.
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/storage"
)

// MockStorage implements storage.Store in memory but writes document
// bytes to a directory so readers can open them by path.
type MockStorage struct {
	mu      sync.RWMutex
	dir     string
	files   map[string]*models.FileInfo
	chunks  map[string]map[int][]byte
	nextID    int
	SaveErr   error
	DeleteErr error
}

var _ storage.Store = (*MockStorage)(nil)

// NewMockStorage creates a mock backed by dir, usually t.TempDir().
func NewMockStorage(dir string) *MockStorage {
	return &MockStorage{
		dir:    dir,
		files:  make(map[string]*models.FileInfo),
		chunks: make(map[string]map[int][]byte),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("test-id-%d", m.nextID)
	m.mu.Unlock()
	return m.AddFile(id, name, data), nil
}

// AddFile stores data under a fixed id.
func (m *MockStorage) AddFile(id, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.WriteFile(m.path(id, name), data, 0644); err != nil {
		panic(fmt.Sprintf("failed to write test file: %v", err))
	}
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     storage.StatusUploaded,
	}
	m.files[id] = info
	c := *info
	return &c
}

func (m *MockStorage) path(id, name string) string {
	return filepath.Join(m.dir, id+"_"+filepath.Base(name))
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *info
	return &c, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []*models.FileInfo
	for _, info := range m.files {
		c := *info
		files = append(files, &c)
		if limit > 0 && len(files) >= limit {
			break
		}
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return storage.ErrNotFound
	}
	os.Remove(m.path(id, info.Name))
	delete(m.files, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := os.Rename(m.path(id, info.Name), m.path(id, newName)); err != nil {
		return nil, err
	}
	info.Name = newName
	c := *info
	return &c, nil
}

func (m *MockStorage) SetStatus(id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return storage.ErrNotFound
	}
	info.Status = status
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	return m.path(id, info.Name), nil
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

func (m *MockStorage) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	m.mu.Lock()
	parts, ok := m.chunks[uploadID]
	if !ok {
		m.mu.Unlock()
		return nil, errors.New("upload not found")
	}
	var data bytes.Buffer
	for i := range totalChunks {
		chunk, ok := parts[i]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("missing chunk %d", i)
		}
		data.Write(chunk)
	}
	delete(m.chunks, uploadID)
	m.nextID++
	id := fmt.Sprintf("test-id-%d", m.nextID)
	m.mu.Unlock()

	return m.AddFile(id, name, data.Bytes()), nil
}

// Status returns the recorded status of a document.
func (m *MockStorage) Status(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info, ok := m.files[id]; ok {
		return info.Status
	}
	return ""
}

// FileCount returns the number of stored documents.
func (m *MockStorage) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
