package upload

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/analyzer"
	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/storage"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrNotRetryable = errors.New("job cannot be retried")
)

// SessionCreator turns a successful analysis into a viewer session.
type SessionCreator interface {
	Create(fileID, fileName string, res *models.AnalysisResult) (*models.ViewSession, error)
}

// Manager runs spooled uploads through the analyzer and tracks each call as a job.
type Manager struct {
	jobs     map[string]*models.AnalysisJob
	mu       sync.RWMutex
	wg       sync.WaitGroup
	store    storage.Store
	analyzer analyzer.Analyzer
	sessions SessionCreator
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewManager creates a new analysis job manager. A zero timeout leaves analyzer
// calls bounded only by the caller's context.
func NewManager(store storage.Store, a analyzer.Analyzer, sessions SessionCreator, timeout time.Duration, m *metrics.Metrics) *Manager {
	return &Manager{
		jobs:     make(map[string]*models.AnalysisJob),
		store:    store,
		analyzer: a,
		sessions: sessions,
		timeout:  timeout,
		metrics:  m,
	}
}

func (m *Manager) newJob(info *models.FileInfo) *models.AnalysisJob {
	job := &models.AnalysisJob{
		ID:        uuid.New().String(),
		FileID:    info.ID,
		FileName:  info.Name,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job
}

// StartJob begins async analysis of a spooled upload and returns the pending job.
func (m *Manager) StartJob(info *models.FileInfo) *models.AnalysisJob {
	job := m.newJob(info)
	snapshot := m.snapshot(job)
	m.launch(job)
	return snapshot
}

// Run analyzes a spooled upload synchronously. The returned job is always set; the
// error is the analyzer failure, if any.
func (m *Manager) Run(ctx context.Context, info *models.FileInfo) (*models.AnalysisJob, error) {
	job := m.newJob(info)
	err := m.process(ctx, job)
	return m.snapshot(job), err
}

// Retry re-runs a job that failed to reach the analyzer. Wrong file types are final.
func (m *Manager) Retry(id string) (*models.AnalysisJob, error) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != models.JobStatusError || job.ErrorKind != analyzer.KindUploadFailed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: status %s", ErrNotRetryable, job.Status)
	}
	job.Status = models.JobStatusPending
	job.ErrorKind = ""
	job.Error = ""
	job.CompletedAt = nil
	cp := *job
	m.mu.Unlock()

	m.launch(job)
	return &cp, nil
}

func (m *Manager) launch(job *models.AnalysisJob) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.L.Error("analysis panicked",
					zap.String("job", logging.ShortID(job.ID)), zap.Any("panic", r))
				m.markJobError(job, analyzer.KindUploadFailed, fmt.Sprintf("analysis panicked: %v", r))
			}
		}()
		_ = m.process(context.Background(), job)
	}()
}

// Wait blocks until every running job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(id string) (*models.AnalysisJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

func (m *Manager) process(ctx context.Context, job *models.AnalysisJob) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	job.Attempts++
	m.mu.Unlock()

	log := logging.L.With(zap.String("job", logging.ShortID(job.ID)), zap.String("file", job.FileName))
	log.Info("analyzing upload", zap.Int("attempt", job.Attempts))
	_ = m.store.SetStatus(job.FileID, storage.StatusAnalyzing)

	res, err := m.analyze(ctx, job)
	if err != nil {
		kind := analyzer.ErrorKind(err)
		_ = m.store.SetStatus(job.FileID, storage.StatusError)
		m.markJobError(job, kind, err.Error())
		m.observe(kind)
		log.Warn("analysis failed", zap.String("kind", kind), zap.Error(err))
		return err
	}

	sess, err := m.sessions.Create(job.FileID, job.FileName, res)
	if err != nil {
		_ = m.store.SetStatus(job.FileID, storage.StatusError)
		m.markJobError(job, analyzer.KindUploadFailed, err.Error())
		m.observe(analyzer.KindUploadFailed)
		return fmt.Errorf("creating session: %w", err)
	}

	_ = m.store.SetStatus(job.FileID, storage.StatusAnalyzed)
	m.markJobComplete(job, sess.ID)
	m.observe("success")
	log.Info("analysis complete",
		zap.String("session", logging.ShortID(sess.ID)),
		zap.Int("requests", res.TotalRequests))
	return nil
}

// analyze streams the spooled upload to the analyzer, inflating gzip uploads first.
func (m *Manager) analyze(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisResult, error) {
	if err := analyzer.ValidateFileName(job.FileName); err != nil {
		return nil, err
	}

	f, err := m.store.Open(job.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analyzer.ErrUploadFailed, err)
	}
	defer f.Close()

	r, closeFn, err := maybeGunzip(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analyzer.ErrUploadFailed, err)
	}
	defer closeFn()

	return m.analyzer.Analyze(ctx, job.FileName, r)
}

// maybeGunzip checks the gzip magic and wraps r in a decompressor when present.
func maybeGunzip(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, func() {}, nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing upload: %w", err)
	}
	return gz, func() { gz.Close() }, nil
}

func (m *Manager) snapshot(job *models.AnalysisJob) *models.AnalysisJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *job
	return &cp
}

func (m *Manager) observe(outcome string) {
	if m.metrics != nil {
		m.metrics.AnalyzerUploads.WithLabelValues(outcome).Inc()
	}
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *models.AnalysisJob, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = models.JobStatusComplete
	job.SessionID = sessionID
	now := time.Now()
	job.CompletedAt = &now
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *models.AnalysisJob, kind, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = models.JobStatusError
	job.ErrorKind = kind
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == models.JobStatusPending {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
