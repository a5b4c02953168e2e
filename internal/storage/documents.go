package storage

import (
	"encoding/json"
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
	"github.com/hmi-forge/backend/internal/models"
)

// ErrNotFound is returned for unknown document IDs.
var ErrNotFound = errors.New("document not found")

// Document status values stored in FileInfo.Status.
const (
	StatusUploaded   = "uploaded"
	StatusGenerating = "generating"
	StatusGenerated  = "generated"
	StatusError      = "error"
)

const indexFile = "index.json"

// Store defines the interface for uploaded document storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	SetStatus(id string, status string) error
	GetFilePath(id string) (string, error)
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
}

// LocalStore implements Store on the local filesystem. Files are stored
// as <id><ext> so readers can still detect the format by extension, and
// the metadata index is persisted next to them.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a LocalStore and loads any existing index.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.uploadDir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading document index: %w", err)
	}
	var list []*models.FileInfo
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decoding document index: %w", err)
	}
	for _, info := range list {
		if _, err := os.Stat(s.pathFor(info)); err != nil {
			continue
		}
		if info.Status == StatusGenerating {
			info.Status = StatusUploaded
		}
		s.files[info.ID] = info
	}
	return nil
}

// saveIndexLocked writes the index; callers hold s.mu.
func (s *LocalStore) saveIndexLocked() error {
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document index: %w", err)
	}
	tmp := filepath.Join(s.uploadDir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing document index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.uploadDir, indexFile))
}

func (s *LocalStore) pathFor(info *models.FileInfo) string {
	return filepath.Join(s.uploadDir, info.ID+storedExt(info.Name))
}

// storedExt is the lowercased extension of name, or "" when it is not a
// plain alphanumeric suffix.
func storedExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Save stores the content of r under a new ID.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	info := &models.FileInfo{ID: uuid.New().String(), Name: name, Status: StatusUploaded}
	path := s.pathFor(info)

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
	info.UploadedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

// Get retrieves document metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyInfo(info), nil
}

// List returns up to limit documents, newest first. A limit of zero or
// less returns all of them.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, copyInfo(info))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a document and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(s.pathFor(info)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	delete(s.files, id)
	return s.saveIndexLocked()
}

// Rename updates the display name of a document. The stored file keeps
// its original extension.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	oldPath := s.pathFor(info)
	info.Name = newName
	if newPath := s.pathFor(info); newPath != oldPath {
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, fmt.Errorf("renaming file: %w", err)
		}
	}
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

// SetStatus records the generation status of a document.
func (s *LocalStore) SetStatus(id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Status = status
	return s.saveIndexLocked()
}

// GetFilePath returns the path of the stored document.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.pathFor(info), nil
}

func (s *LocalStore) chunkDir(uploadID string) (string, error) {
	if uploadID == "" || strings.ContainsAny(uploadID, `/\`) || strings.Contains(uploadID, "..") {
		return "", fmt.Errorf("invalid upload id %q", uploadID)
	}
	return filepath.Join(s.uploadDir, "chunks", uploadID), nil
}

// SaveChunk saves a single chunk of a chunked upload.
func (s *LocalStore) SaveChunk(uploadID string, chunkIndex int, r io.Reader) error {
	dir, err := s.chunkDir(uploadID)
	if err != nil {
		return err
	}
	if chunkIndex < 0 {
		return fmt.Errorf("invalid chunk index %d", chunkIndex)
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

// CompleteChunkedUpload assembles all chunks into a stored document.
func (s *LocalStore) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	dir, err := s.chunkDir(uploadID)
	if err != nil {
		return nil, err
	}
	info := &models.FileInfo{ID: uuid.New().String(), Name: name, Status: StatusUploaded}
	finalPath := s.pathFor(info)

	out, err := os.Create(finalPath)
	if err != nil {
		return nil, fmt.Errorf("creating final file: %w", err)
	}

	var total int64
	for i := range totalChunks {
		n, err := appendChunk(out, filepath.Join(dir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			out.Close()
			os.Remove(finalPath)
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		total += n
	}
	if err := out.Close(); err != nil {
		os.Remove(finalPath)
		return nil, fmt.Errorf("closing final file: %w", err)
	}
	os.RemoveAll(dir)

	info.Size = total
	info.UploadedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

func appendChunk(out io.Writer, path string) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return io.Copy(out, in)
}

func copyInfo(info *models.FileInfo) *models.FileInfo {
	c := *info
	return &c
}
