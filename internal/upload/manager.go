// Package upload assembles chunked document uploads in the background.
package upload

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hmi-forge/backend/internal/models"
)

// Status represents the upload processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Encodings accepted for a chunked upload.
const (
	EncodingNone = ""
	EncodingGzip = "gzip"
)

// Job represents an async upload processing job.
type Job struct {
	ID             string           `json:"id"`
	UploadID       string           `json:"uploadId"`
	FileName       string           `json:"fileName"`
	TotalChunks    int              `json:"totalChunks"`
	OriginalSize   int64            `json:"originalSize"`
	CompressedSize int64            `json:"compressedSize"`
	Encoding       string           `json:"encoding"`
	Status         Status           `json:"status"`
	Progress       float64          `json:"progress"`
	Stage          string           `json:"stage"`
	FileInfo       *models.FileInfo `json:"fileInfo,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// Done reports whether the job has finished.
func (j *Job) Done() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Store is the part of the document store a job needs.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
	CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error)
}

// Manager handles async upload processing.
type Manager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	store  Store
	logger *slog.Logger
}

// NewManager creates a new upload processing manager.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs:   make(map[string]*Job),
		store:  store,
		logger: logger,
	}
}

// StartJob begins async processing of an upload.
func (m *Manager) StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *Job {
	job := &Job{
		ID:             uuid.New().String(),
		UploadID:       uploadID,
		FileName:       fileName,
		TotalChunks:    totalChunks,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Encoding:       encoding,
		Status:         StatusProcessing,
		Stage:          "preparing",
		CreatedAt:      time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	go m.processJob(job)

	return &snapshot
}

// GetJob returns a snapshot of a job.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

func (m *Manager) processJob(job *Job) {
	log := m.logger.With("job", job.ID[:8], "file", job.FileName)
	log.Info("assembling upload", "chunks", job.TotalChunks)

	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 0)
	info, err := m.store.CompleteChunkedUpload(job.UploadID, job.FileName, job.TotalChunks)
	if err != nil {
		m.markJobError(job, fmt.Sprintf("failed to assemble chunks: %v", err))
		return
	}
	m.updateJobStatus(job, StatusAssembling, "assembling chunks", 100)

	if job.Encoding == EncodingGzip {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", 0)
		inflated, err := m.inflate(log, job, info)
		if err != nil {
			m.discard(log, info.ID)
			m.markJobError(job, fmt.Sprintf("failed to decompress upload: %v", err))
			return
		}
		m.discard(log, info.ID)
		info = inflated
	}

	m.markJobComplete(job, info)
	log.Info("upload complete", "id", info.ID, "bytes", info.Size)
}

// discard deletes an intermediate document, logging a failed delete.
func (m *Manager) discard(log *slog.Logger, id string) {
	if err := m.store.Delete(id); err != nil {
		log.Warn("could not remove intermediate upload", "id", id, "error", err)
	}
}

// inflate stores the gunzipped content of a compressed document as a new
// document.
func (m *Manager) inflate(log *slog.Logger, job *Job, info *models.FileInfo) (*models.FileInfo, error) {
	path, err := m.store.GetFilePath(info.ID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return nil, errors.New("not a gzip stream")
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	pr := &progressReader{r: zr, total: job.OriginalSize, report: func(p float64) {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file", p)
	}}
	out, err := m.store.Save(job.FileName, pr)
	if err != nil {
		return nil, err
	}
	if job.OriginalSize > 0 && out.Size != job.OriginalSize {
		m.discard(log, out.ID)
		return nil, fmt.Errorf("decompressed size mismatch: got %d bytes, expected %d bytes", out.Size, job.OriginalSize)
	}
	return out, nil
}

// progressReader reports read progress at most every 100ms.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   time.Time
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && time.Since(p.last) > 100*time.Millisecond {
		p.report(min(float64(p.read)/float64(p.total)*100, 99))
		p.last = time.Now()
	}
	return n, err
}

func (m *Manager) updateJobStatus(job *Job, status Status, stage string, stageProgress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Assembling: 0-40%, Decompressing: 40-90%
	switch status {
	case StatusAssembling:
		job.Progress = stageProgress * 0.4
	case StatusDecompressing:
		job.Progress = 40 + stageProgress*0.5
	}
}

func (m *Manager) markJobComplete(job *Job, info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "complete"
	job.Progress = 100
	job.FileInfo = info
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	m.logger.Error("upload failed", "job", job.ID[:8], "error", errMsg)
}

// CleanupOldJobs removes finished jobs older than maxAge and returns how
// many were removed.
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
